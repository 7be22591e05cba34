package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("reflexgate")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/reflexgate/")
	viper.AddConfigPath("$HOME/.reflexgate/")

	// Environment variable overrides
	viper.SetEnvPrefix("REFLEXGATE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if !validPatternSet(config.PII.PatternSet) {
		return fmt.Errorf("invalid pii pattern set: %s (must be strict, standard, or relaxed)", config.PII.PatternSet)
	}

	if !validPatternSet(config.Injection.PatternSet) {
		return fmt.Errorf("invalid injection pattern set: %s (must be strict, standard, or relaxed)", config.Injection.PatternSet)
	}

	if config.PII.MinConfidence < 0 || config.PII.MinConfidence > 1 {
		return fmt.Errorf("invalid pii min_confidence: %f (must be within [0, 1])", config.PII.MinConfidence)
	}

	if config.Injection.MinConfidence < 0 || config.Injection.MinConfidence > 1 {
		return fmt.Errorf("invalid injection min_confidence: %f (must be within [0, 1])", config.Injection.MinConfidence)
	}

	if config.Security.MaxTextChars <= 0 {
		return fmt.Errorf("invalid max_text_chars: %d", config.Security.MaxTextChars)
	}

	if config.Cache.TTL.Short <= 0 || config.Cache.TTL.Medium <= 0 || config.Cache.TTL.Long <= 0 {
		return fmt.Errorf("cache TTL durations must be positive")
	}

	switch config.Audit.Backend {
	case "none", "postgres", "parquet":
	default:
		return fmt.Errorf("invalid audit backend: %s (must be none, postgres, or parquet)", config.Audit.Backend)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

func validPatternSet(set string) bool {
	return set == "strict" || set == "standard" || set == "relaxed"
}

// Watch starts watching the configuration file for changes. Only the
// detector snapshot consumes reloads; server and store settings need a
// restart.
func Watch(callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			// Keep serving with the previous configuration
			return
		}

		if err := validateConfig(newConfig); err != nil {
			return
		}

		callback(newConfig)
	})

	return nil
}
