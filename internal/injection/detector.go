package injection

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/patterns"
)

// parallelThreshold is the input size in bytes above which pattern scanning
// fans out across worker lanes. Below it a single pass beats the fan-out cost.
const parallelThreshold = 16 * 1024

// Confidence adjustments layered on top of each pattern's base confidence.
// Benign cues subtract, obfuscation signals add; the result is clamped to
// [0, 1] before the severity thresholds apply.
const (
	negationPenalty  = 0.25
	quotedPenalty    = 0.20
	benignPenalty    = 0.15
	obfuscationBonus = 0.10
	longMatchBonus   = 0.05

	longMatchLen     = 50
	structureWindow  = 40
	entropyThreshold = 4.5
	densityThreshold = 0.25
)

// Severity is derived from the final adjusted confidence, not carried per
// pattern, so context cues move a hit across severity levels.
const (
	severityHighMin   = 0.80
	severityMediumMin = 0.55
)

// Detector scans text for adversarial-instruction signatures. Like the
// sensitive-data detector it is pure and deterministic, but each hit passes
// through a context adjustment step before it is scored and classified.
type Detector struct {
	patterns []patterns.InjectionPattern
	cfg      config.InjectionConfig
	log      *logger.Logger
}

// New creates an injection detector over the given compiled patterns.
func New(cfg config.InjectionConfig, pats []patterns.InjectionPattern, log *logger.Logger) *Detector {
	return &Detector{
		patterns: pats,
		cfg:      cfg,
		log:      log.WithComponent("injection"),
	}
}

// Detect returns every signature hit at or above the configured confidence
// floor, ordered by severity (highest first), then confidence, then span
// start, together with the ids of patterns whose scan lane faulted.
//
// Negated, quoted, or academic/testing phrasing anywhere in the text lowers
// every hit's confidence; high entropy or symbol density near a match,
// encoded payloads, and unusually long matches raise it. When several
// signatures fire on one input they reinforce each other with a small
// mutual boost before the floor is applied.
func (d *Detector) Detect(ctx context.Context, text string) ([]patterns.Match, []string) {
	if !d.cfg.Enabled || text == "" {
		return nil, nil
	}

	cues := analyzeContext(text)
	encoded := hasEncodedRun(text)

	var (
		matches []patterns.Match
		faults  []string
	)
	if len(text) >= parallelThreshold && len(d.patterns) > 1 {
		matches, faults = d.scanParallel(ctx, text, cues, encoded)
	} else {
		matches, faults = d.scanSerial(ctx, text, cues, encoded)
	}

	if len(matches) > 1 {
		boost := math.Min(float64(len(matches))*0.05, 0.15)
		for i := range matches {
			matches[i].Confidence = math.Min(matches[i].Confidence+boost, 1.0)
		}
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Confidence < d.cfg.MinConfidence {
			continue
		}
		m.Severity = severityFor(m.Confidence)
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return nil, faults
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Severity != kept[j].Severity {
			return kept[i].Severity.Rank() > kept[j].Severity.Rank()
		}
		if kept[i].Confidence != kept[j].Confidence {
			return kept[i].Confidence > kept[j].Confidence
		}
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].PatternID < kept[j].PatternID
	})
	return kept, faults
}

func (d *Detector) scanSerial(ctx context.Context, text string, cues Context, encoded bool) ([]patterns.Match, []string) {
	var (
		matches []patterns.Match
		faults  []string
	)
	for _, p := range d.patterns {
		if ctx.Err() != nil {
			break
		}
		out, err := d.scanPattern(text, p, cues, encoded)
		if err != nil {
			faults = append(faults, p.ID)
			d.log.Warn("Pattern lane faulted", zap.String("pattern", p.ID), zap.Error(err))
			continue
		}
		matches = append(matches, out...)
	}
	return matches, faults
}

func (d *Detector) scanParallel(ctx context.Context, text string, cues Context, encoded bool) ([]patterns.Match, []string) {
	lanes := runtime.GOMAXPROCS(0)
	if lanes > len(d.patterns) {
		lanes = len(d.patterns)
	}

	jobs := make(chan patterns.InjectionPattern)
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
				out, err := d.scanPattern(text, p, cues, encoded)
				mu.Lock()
				if err != nil {
					faults = append(faults, p.ID)
					d.log.Warn("Pattern lane faulted", zap.String("pattern", p.ID), zap.Error(err))
				} else {
					matches = append(matches, out...)
				}
				mu.Unlock()
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

// scanPattern runs one signature over the whole input. A panic inside the
// lane is recovered and reported as a fault so the remaining patterns still
// run.
func (d *Detector) scanPattern(text string, p patterns.InjectionPattern, cues Context, encoded bool) (out []patterns.Match, fault error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			fault = fmt.Errorf("injection pattern %s: %v", p.ID, r)
		}
	}()

	for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
		value := text[loc[0]:loc[1]]
		out = append(out, patterns.Match{
			PatternID:   p.ID,
			Category:    patterns.CategoryInjection,
			Start:       loc[0],
			End:         loc[1],
			Confidence:  d.score(p, text, value, loc[0], loc[1], cues, encoded),
			MatchedText: value,
		})
	}
	return out, nil
}

func (d *Detector) score(p patterns.InjectionPattern, text, value string, start, end int, cues Context, encoded bool) float64 {
	conf := p.BaseConfidence

	if cues.Negation {
		conf -= negationPenalty
	}
	if cues.Quoted {
		conf -= quotedPenalty
	}
	if cues.Academic || cues.Testing {
		conf -= benignPenalty
	}

	win := window(text, start, end, structureWindow)
	if encoded || shannonEntropy(win) > entropyThreshold {
		conf += obfuscationBonus
	}
	if symbolDensity(win) > densityThreshold {
		conf += obfuscationBonus
	}
	if len(value) > longMatchLen {
		conf += longMatchBonus
	}

	return math.Max(0, math.Min(conf, 1))
}

// severityFor maps a final confidence score onto the three-level scale the
// pipeline uses for its block, flag, or log decision.
func severityFor(confidence float64) patterns.Severity {
	switch {
	case confidence >= severityHighMin:
		return patterns.SeverityHigh
	case confidence >= severityMediumMin:
		return patterns.SeverityMedium
	default:
		return patterns.SeverityLow
	}
}
