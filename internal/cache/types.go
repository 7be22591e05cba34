package cache

import (
	"time"

	"github.com/reflexgate/reflexgate/internal/patterns"
)

// TTLClass names a cache expiration tier. Flagged content may reflect
// transient probing and is re-evaluated sooner than clean content.
type TTLClass string

const (
	// TTLShort is used for any result that contains detections.
	TTLShort TTLClass = "short"
	// TTLMedium is used for clean results.
	TTLMedium TTLClass = "medium"
	// TTLLong is reserved for clean results on endpoints explicitly
	// configured as idempotent.
	TTLLong TTLClass = "long"
)

// Verdict is the cacheable part of a processing result. Volatile fields
// (request id, latency) are never stored, and match entries lose their
// verbatim text on serialization; only redacted forms survive.
type Verdict struct {
	Flagged   bool             `json:"flagged"`
	PII       []patterns.Match `json:"pii,omitempty"`
	Injection []patterns.Match `json:"injection,omitempty"`
	CachedAt  time.Time        `json:"cached_at"`
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}
