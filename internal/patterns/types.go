package patterns

import (
	"fmt"
	"strings"
)

// Category identifies which detector family produced a match.
type Category string

const (
	CategoryPII       Category = "pii"
	CategoryInjection Category = "injection"
)

// Severity ranks how damaging a detected value or technique is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns an ordinal for severity comparisons; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// RedactionStrategy selects how a matched value is rewritten before it
// leaves the process in logs, events, or audit records.
type RedactionStrategy string

const (
	// RedactFull replaces the value with a typed marker, e.g. "[SSN-REDACTED]".
	RedactFull RedactionStrategy = "full"
	// RedactPartialMask keeps the last four characters, e.g. "XXXXXXX6789".
	RedactPartialMask RedactionStrategy = "partial_mask"
	// RedactHash replaces the value with the first 16 hex chars of its SHA-256.
	RedactHash RedactionStrategy = "hash"
	// RedactMask replaces every character with an asterisk, preserving length.
	RedactMask RedactionStrategy = "mask"
	// RedactToken replaces the value with a positional token, e.g. "<SSN-TOKEN-10>".
	RedactToken RedactionStrategy = "token"
)

// Set selects how aggressive detection is. Sets are nested: everything in
// strict is also in standard, and everything in standard is also in relaxed.
type Set string

const (
	SetStrict   Set = "strict"
	SetStandard Set = "standard"
	SetRelaxed  Set = "relaxed"
)

// ParseSet maps a config string to a pattern set.
func ParseSet(s string) (Set, error) {
	switch Set(strings.ToLower(strings.TrimSpace(s))) {
	case SetStrict:
		return SetStrict, nil
	case SetStandard:
		return SetStandard, nil
	case SetRelaxed:
		return SetRelaxed, nil
	default:
		return "", fmt.Errorf("unknown pattern set: %q", s)
	}
}

func (s Set) rank() int {
	switch s {
	case SetRelaxed:
		return 2
	case SetStandard:
		return 1
	default:
		return 0
	}
}

// covers reports whether a set configured at s enables a pattern whose
// minimum set is min.
func (s Set) covers(min Set) bool {
	return s.rank() >= min.rank()
}

// Match is a single detector hit within the scanned text. Start and End are
// byte offsets into the original input. MatchedText holds the verbatim value
// and is never serialized; only Redacted leaves the process.
type Match struct {
	PatternID   string   `json:"pattern_id"`
	Category    Category `json:"category"`
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Confidence  float64  `json:"confidence"`
	Severity    Severity `json:"severity"`
	MatchedText string   `json:"-"`
	Redacted    string   `json:"redacted,omitempty"`
}

// Len returns the byte length of the matched span.
func (m Match) Len() int {
	return m.End - m.Start
}
