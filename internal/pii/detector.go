package pii

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/patterns"
)

// parallelThreshold is the input size in bytes above which pattern scanning
// fans out across worker lanes. Below it a single pass beats the fan-out cost.
const parallelThreshold = 16 * 1024

// Detector scans text for sensitive data using the registry's compiled
// patterns. Detection is pure: the same input always yields the same matches
// in the same order, and nothing is mutated or persisted.
type Detector struct {
	patterns []patterns.PIIPattern
	cfg      config.PIIConfig
	log      *logger.Logger
}

// New creates a sensitive-data detector over the given compiled patterns.
func New(cfg config.PIIConfig, pats []patterns.PIIPattern, log *logger.Logger) *Detector {
	return &Detector{
		patterns: pats,
		cfg:      cfg,
		log:      log.WithComponent("pii"),
	}
}

// Detect returns every match at or above the configured confidence floor,
// ordered by span start and then pattern id, together with the ids of
// patterns whose scan lane faulted. A faulted lane is skipped and counted;
// it never aborts the remaining patterns. Overlapping matches from
// different patterns are all reported.
func (d *Detector) Detect(ctx context.Context, text string) ([]patterns.Match, []string) {
	if !d.cfg.Enabled || text == "" {
		return nil, nil
	}

	var (
		matches []patterns.Match
		faults  []string
	)
	if len(text) >= parallelThreshold && len(d.patterns) > 1 {
		matches, faults = d.scanParallel(ctx, text)
	} else {
		matches, faults = d.scanSerial(ctx, text)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].PatternID < matches[j].PatternID
	})
	return matches, faults
}

func (d *Detector) scanSerial(ctx context.Context, text string) ([]patterns.Match, []string) {
	var (
		matches []patterns.Match
		faults  []string
	)
	for _, p := range d.patterns {
		if ctx.Err() != nil {
			break
		}
		out, err := d.scanPattern(text, p)
		if err != nil {
			faults = append(faults, p.ID)
			d.log.Warn("Pattern lane faulted", zap.String("pattern", p.ID), zap.Error(err))
			continue
		}
		matches = append(matches, out...)
	}
	return matches, faults
}

func (d *Detector) scanParallel(ctx context.Context, text string) ([]patterns.Match, []string) {
	lanes := runtime.GOMAXPROCS(0)
	if lanes > len(d.patterns) {
		lanes = len(d.patterns)
	}

	jobs := make(chan patterns.PIIPattern)
	var (
		mu      sync.Mutex
		matches []patterns.Match
		faults  []string
		wg      sync.WaitGroup
	)
	for i := 0; i < lanes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				out, err := d.scanPattern(text, p)
				mu.Lock()
				if err != nil {
					faults = append(faults, p.ID)
				} else {
					matches = append(matches, out...)
				}
				mu.Unlock()
				if err != nil {
					d.log.Warn("Pattern lane faulted", zap.String("pattern", p.ID), zap.Error(err))
				}
			}
		}()
	}

feed:
	for _, p := range d.patterns {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- p:
		}
	}
	close(jobs)
	wg.Wait()
	return matches, faults
}

// scanPattern runs one pattern over the whole input. A panic inside the lane
// is recovered and reported as a fault so the remaining patterns still run.
func (d *Detector) scanPattern(text string, p patterns.PIIPattern) (out []patterns.Match, fault error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			fault = fmt.Errorf("pii pattern %s: %v", p.ID, r)
		}
	}()

	for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
		value := text[loc[0]:loc[1]]

		if d.cfg.EnableValidation && p.RequiresValidation && !validate(p.ID, value) {
			continue
		}

		conf := d.baseConfidence(p)
		if d.cfg.EnableContext {
			conf += d.contextBoost(text, p, loc[0], loc[1])
			if conf > 1.0 {
				conf = 1.0
			}
		}
		if conf < d.cfg.MinConfidence {
			continue
		}

		out = append(out, patterns.Match{
			PatternID:   p.ID,
			Category:    patterns.CategoryPII,
			Start:       loc[0],
			End:         loc[1],
			Confidence:  conf,
			Severity:    p.Severity,
			MatchedText: value,
			Redacted:    redactValue(p, value, loc[0]),
		})
	}
	return out, nil
}

func (d *Detector) baseConfidence(p patterns.PIIPattern) float64 {
	if !d.cfg.EnableValidation {
		return 0.8
	}
	if p.RequiresValidation {
		// The value already survived its validator, so the checksum agrees.
		return 1.0
	}
	return 0.9
}

// contextBoost returns 0.1 when one of the pattern's context keywords
// appears within the configured window around the match.
func (d *Detector) contextBoost(text string, p patterns.PIIPattern, start, end int) float64 {
	if len(p.ContextKeywords) == 0 {
		return 0
	}
	lo := start - d.cfg.ContextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + d.cfg.ContextWindow
	if hi > len(text) {
		hi = len(text)
	}
	window := strings.ToLower(text[lo:hi])
	for _, kw := range p.ContextKeywords {
		if strings.Contains(window, kw) {
			return 0.1
		}
	}
	return 0
}

func validate(id, value string) bool {
	switch id {
	case patterns.PIICreditCard:
		return ValidateLuhn(value)
	case patterns.PIISSN:
		return ValidateSSN(value)
	case patterns.PIIEmail:
		return ValidateEmail(value)
	case patterns.PIIPhone:
		return ValidatePhone(value)
	default:
		return true
	}
}
