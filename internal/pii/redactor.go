package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/reflexgate/reflexgate/internal/patterns"
)

// redactValue renders a single matched value under the pattern's strategy.
// start is the byte offset of the match, used by the token strategy so the
// same value at different positions yields distinct tokens.
func redactValue(p patterns.PIIPattern, value string, start int) string {
	switch p.Strategy {
	case patterns.RedactMask:
		return strings.Repeat("*", len(value))
	case patterns.RedactHash:
		sum := sha256.Sum256([]byte(value))
		return hex.EncodeToString(sum[:])[:16]
	case patterns.RedactPartialMask:
		if len(value) <= 4 {
			return strings.Repeat("X", len(value))
		}
		keep := value[len(value)-4:]
		return strings.Repeat("X", len(value)-4) + keep
	case patterns.RedactToken:
		return fmt.Sprintf("<%s-TOKEN-%d>", strings.ToUpper(p.ID), start)
	default:
		return fmt.Sprintf("[%s-REDACTED]", strings.ToUpper(p.ID))
	}
}

// Redact rewrites every matched span in text with the match's precomputed
// redacted form. Replacements are applied back to front so earlier offsets
// stay valid; spans that fall outside the current text are skipped.
func Redact(text string, matches []patterns.Match) string {
	if len(matches) == 0 {
		return text
	}

	sorted := make([]patterns.Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start > sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	result := text
	for _, m := range sorted {
		if m.Start < 0 || m.End < m.Start || m.End > len(result) {
			continue
		}
		result = result[:m.Start] + m.Redacted + result[m.End:]
	}
	return result
}
