package ratelimit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reflexgate/reflexgate/internal/config"
)

// Tier is one caller class: a bucket shape, or an unlimited bypass for
// trusted internal callers.
type Tier struct {
	Name      string
	Unlimited bool
	Bucket    config.BucketConfig
}

// TierTable maps caller IDs to tiers. The table is immutable after load;
// a config reload builds a fresh one.
type TierTable struct {
	tiers       map[string]Tier
	callers     map[string]string
	defaultTier string
}

type tierFile struct {
	Tiers       map[string]tierSpec `yaml:"tiers"`
	Callers     map[string]string   `yaml:"callers"`
	DefaultTier string              `yaml:"default_tier"`
}

type tierSpec struct {
	Capacity     float64 `yaml:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec"`
	Unlimited    bool    `yaml:"unlimited"`
}

// builtinTiers is the table used when no tiers file is configured. Shapes
// are requests per minute expressed as a burst capacity plus steady refill.
func builtinTiers() map[string]Tier {
	return map[string]Tier{
		"free":       {Name: "free", Bucket: config.BucketConfig{Capacity: 10, RefillPerSec: 10.0 / 60.0}},
		"basic":      {Name: "basic", Bucket: config.BucketConfig{Capacity: 60, RefillPerSec: 1}},
		"pro":        {Name: "pro", Bucket: config.BucketConfig{Capacity: 300, RefillPerSec: 5}},
		"enterprise": {Name: "enterprise", Bucket: config.BucketConfig{Capacity: 1200, RefillPerSec: 20}},
		"unlimited":  {Name: "unlimited", Unlimited: true},
	}
}

// LoadTiers builds the tier table. A configured file extends and overrides
// the built-in tiers and supplies caller assignments; an empty path yields
// the built-ins with no assignments, so every caller lands on defaultTier.
func LoadTiers(path, defaultTier string) (*TierTable, error) {
	t := &TierTable{
		tiers:       builtinTiers(),
		callers:     map[string]string{},
		defaultTier: defaultTier,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tiers file: %w", err)
		}
		var f tierFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse tiers file: %w", err)
		}
		for name, spec := range f.Tiers {
			if !spec.Unlimited && (spec.Capacity <= 0 || spec.RefillPerSec <= 0) {
				return nil, fmt.Errorf("tier %q: capacity and refill_per_sec must be positive", name)
			}
			t.tiers[name] = Tier{
				Name:      name,
				Unlimited: spec.Unlimited,
				Bucket:    config.BucketConfig{Capacity: spec.Capacity, RefillPerSec: spec.RefillPerSec},
			}
		}
		if f.Callers != nil {
			t.callers = f.Callers
		}
		if f.DefaultTier != "" {
			t.defaultTier = f.DefaultTier
		}
	}

	if _, ok := t.tiers[t.defaultTier]; !ok {
		return nil, fmt.Errorf("default tier %q is not defined", t.defaultTier)
	}
	for caller, name := range t.callers {
		if _, ok := t.tiers[name]; !ok {
			return nil, fmt.Errorf("caller %q assigned to unknown tier %q", caller, name)
		}
	}
	return t, nil
}

// For resolves a caller's tier, falling back to the default tier for
// callers with no explicit assignment.
func (t *TierTable) For(callerID string) Tier {
	name, ok := t.callers[callerID]
	if !ok {
		name = t.defaultTier
	}
	return t.tiers[name]
}
