package injection

import (
	"math"
	"regexp"
	"strings"
)

// Context carries the benign-context cues found in the input text. A
// signature hit inside quoted or negated phrasing is usually someone
// talking about an attack rather than mounting one, so each cue lowers
// the confidence of every match in the text.
type Context struct {
	Academic bool
	Testing  bool
	Quoted   bool
	Negation bool
}

var (
	academicRe = regexp.MustCompile(`(?i)(for\s+)?(research|academic|educational|study|paper|thesis|dissertation)`)
	testingRe  = regexp.MustCompile(`(?i)(test|example|demonstration|sample|illustration|case\s+study)`)
	quotedRe   = regexp.MustCompile(`["'].*["']`)
	negationRe = regexp.MustCompile(`(?i)(don't|do\s+not|avoid|never|should\s+not|shouldn't|must\s+not|mustn't)`)
)

func analyzeContext(text string) Context {
	return Context{
		Academic: academicRe.MatchString(text),
		Testing:  testingRe.MatchString(text),
		Quoted:   quotedRe.MatchString(text),
		Negation: negationRe.MatchString(text),
	}
}

// window returns up to pad bytes of text on either side of [start, end).
func window(text string, start, end, pad int) string {
	lo := start - pad
	if lo < 0 {
		lo = 0
	}
	hi := end + pad
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

// shannonEntropy measures the randomness of s in bits per rune. Natural
// language sits around 4 bits; dense encoded payloads push past 4.5.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}
	var entropy float64
	for _, count := range freq {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// symbolDensity is the fraction of runes in s that are neither
// alphanumeric nor whitespace. Shell and template injection lean
// heavily on punctuation.
func symbolDensity(s string) float64 {
	symbols, total := 0, 0
	for _, r := range s {
		total++
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ' ', r == '\t', r == '\n', r == '\r':
		default:
			symbols++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(symbols) / float64(total)
}

// hasEncodedRun reports whether any whitespace-delimited token in text
// looks like a base64 or hex payload. Both checks require at least 20
// characters so ordinary words never trip them.
func hasEncodedRun(text string) bool {
	for _, tok := range strings.Fields(text) {
		if isBase64Run(tok) || isHexRun(tok) {
			return true
		}
	}
	return false
}

func isBase64Run(s string) bool {
	if len(s) < 20 || len(s)%4 != 0 {
		return false
	}
	letters := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z':
			letters++
		case '0' <= c && c <= '9', c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	// Real base64 mixes cases and digits; all-alpha or all-digit runs
	// are far more likely to be ordinary text.
	ratio := float64(letters) / float64(len(s))
	return ratio > 0.3 && ratio < 0.9
}

func isHexRun(s string) bool {
	if len(s) < 20 || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F') {
			continue
		}
		return false
	}
	return true
}
