package pipeline

import (
	"github.com/reflexgate/reflexgate/internal/patterns"
)

// Request status values.
const (
	StatusClean   = "clean"
	StatusFlagged = "flagged"
	StatusBlocked = "blocked"
)

// ProcessRequest is the inbound payload. Text is examined, never stored
// or forwarded verbatim by this service.
type ProcessRequest struct {
	Text          string `json:"text"`
	CallerID      string `json:"caller_id,omitempty"`
	SourceAddress string `json:"source_address,omitempty"`
	EndpointTag   string `json:"endpoint_tag,omitempty"`
}

// ProcessResponse is the verdict returned to the caller. Matches carry
// spans, confidence, and redacted forms; the verbatim matched text is
// never serialized.
type ProcessResponse struct {
	RequestID        string           `json:"request_id"`
	Status           string           `json:"status"`
	PIIMatches       []patterns.Match `json:"pii_matches"`
	InjectionMatches []patterns.Match `json:"injection_matches"`
	CacheHit         bool             `json:"cache_hit"`
	LatencyMS        float64          `json:"latency_ms"`
}
