package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/apperr"
	"github.com/reflexgate/reflexgate/internal/audit"
	"github.com/reflexgate/reflexgate/internal/cache"
	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/events"
	"github.com/reflexgate/reflexgate/internal/injection"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/metrics"
	"github.com/reflexgate/reflexgate/internal/patterns"
	"github.com/reflexgate/reflexgate/internal/pii"
	"github.com/reflexgate/reflexgate/internal/ratelimit"
)

// defaultEndpointTag partitions requests that do not name an endpoint.
const defaultEndpointTag = "process"

// snapshot binds a configuration to the detectors compiled from it. A
// reload publishes a fresh snapshot; in-flight requests keep the one they
// loaded at entry, so a request never sees mixed configuration.
type snapshot struct {
	cfg       *config.Config
	registry  *patterns.Registry
	pii       *pii.Detector
	injection *injection.Detector
}

// Pipeline sequences a request through cache lookup, admission, the two
// detectors, aggregation, and the cache write.
type Pipeline struct {
	current atomic.Pointer[snapshot]

	store   *cache.Store
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	hub     *events.Hub
	trail   *audit.Trail
	log     *logger.Logger
}

// New compiles the pattern registry for the given configuration and wires
// the pipeline. A malformed pattern set is a startup failure.
func New(
	cfg *config.Config,
	store *cache.Store,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	hub *events.Hub,
	trail *audit.Trail,
	log *logger.Logger,
) (*Pipeline, error) {
	p := &Pipeline{
		store:   store,
		limiter: limiter,
		metrics: m,
		hub:     hub,
		trail:   trail,
		log:     log.WithComponent("pipeline"),
	}
	if err := p.Reload(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload compiles detectors for a new configuration and publishes them
// atomically. On error the previous snapshot stays active.
func (p *Pipeline) Reload(cfg *config.Config) error {
	reg, err := patterns.Build(cfg.PII.PatternSet, cfg.Injection.PatternSet)
	if err != nil {
		return err
	}
	p.current.Store(&snapshot{
		cfg:       cfg,
		registry:  reg,
		pii:       pii.New(cfg.PII, reg.PII(), p.log),
		injection: injection.New(cfg.Injection, reg.Injection(), p.log),
	})
	return nil
}

// Process runs one request through the pipeline. The second return value
// is non-nil only for terminal failures: validation, rate limiting, or an
// exceeded deadline. Store outages and detector faults degrade instead.
func (p *Pipeline) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, *apperr.Error) {
	start := time.Now()
	defer func() {
		p.metrics.RequestDuration.Observe(msSince(start))
	}()

	snap := p.current.Load()
	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	rlog := p.log.WithRequestID(requestID)

	if strings.TrimSpace(req.Text) == "" {
		p.metrics.RequestsTotal.WithLabelValues("validation_error").Inc()
		return nil, apperr.Validation("text must not be empty")
	}
	chars := utf8.RuneCountInString(req.Text)
	if limit := snap.cfg.Security.MaxTextChars; chars > limit {
		p.metrics.RequestsTotal.WithLabelValues("validation_error").Inc()
		return nil, apperr.Validation("text exceeds maximum length of %d characters", limit)
	}
	p.metrics.TextChars.Observe(float64(chars))

	endpoint := req.EndpointTag
	if endpoint == "" {
		endpoint = defaultEndpointTag
	}

	// Cache lookup. A hit short-circuits before the rate check: cached
	// verdicts cost no detection CPU, so they spend no admission budget.
	key := cache.Key(snap.cfg.Cache.KeyPrefix, endpoint, req.CallerID, req.Text)
	stageStart := time.Now()
	if v := p.store.Get(ctx, key); v != nil {
		p.metrics.CacheHits.Inc()
		p.metrics.StageDuration.WithLabelValues("cache_lookup").Observe(msSince(stageStart))

		resp := p.respond(snap, requestID, v, true, start)
		p.finish(snap, req, endpoint, requestID, resp)
		return resp, nil
	}
	p.metrics.CacheMisses.Inc()
	p.metrics.StageDuration.WithLabelValues("cache_lookup").Observe(msSince(stageStart))

	// Admission.
	stageStart = time.Now()
	decision := p.limiter.Check(ctx, req.CallerID, req.SourceAddress, endpoint)
	p.metrics.StageDuration.WithLabelValues("rate_check").Observe(msSince(stageStart))
	if decision.Degraded {
		p.metrics.RateLimitDegraded.Inc()
	}
	if !decision.Allowed {
		p.metrics.RequestsTotal.WithLabelValues("rate_limited").Inc()
		p.metrics.RateLimitDenied.WithLabelValues(string(decision.Dimension)).Inc()
		p.emitDenial(req, endpoint, requestID, decision)
		rlog.Debug("Request denied by rate limiter",
			zap.String("dimension", string(decision.Dimension)),
			zap.Duration("retry_after", decision.RetryAfter))
		return nil, apperr.RateLimited(decision.RetryAfter, "rate limit exceeded")
	}

	// Detection. The two detectors are independent reads over the same
	// text; the join below is the only synchronization in a request.
	stageStart = time.Now()
	var (
		wg         sync.WaitGroup
		piiMatches []patterns.Match
		piiFaults  []string
		injMatches []patterns.Match
		injFaults  []string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		piiMatches, piiFaults = snap.pii.Detect(ctx, req.Text)
	}()
	go func() {
		defer wg.Done()
		injMatches, injFaults = snap.injection.Detect(ctx, req.Text)
	}()
	wg.Wait()
	p.metrics.StageDuration.WithLabelValues("detect").Observe(msSince(stageStart))

	for range piiFaults {
		p.metrics.DetectorFaults.WithLabelValues("pii").Inc()
	}
	for range injFaults {
		p.metrics.DetectorFaults.WithLabelValues("injection").Inc()
	}

	// An expired deadline abandons the request without publishing a
	// cache entry; a partial verdict must never be served later.
	if ctx.Err() != nil {
		p.metrics.RequestsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Internal(ctx.Err(), "processing deadline exceeded")
	}

	verdict := &cache.Verdict{
		Flagged:   len(piiMatches) > 0 || len(injMatches) > 0,
		PII:       piiMatches,
		Injection: injMatches,
	}

	stageStart = time.Now()
	p.store.Put(ctx, key, verdict, p.store.Classify(verdict, endpoint))
	p.metrics.StageDuration.WithLabelValues("cache_write").Observe(msSince(stageStart))

	resp := p.respond(snap, requestID, verdict, false, start)
	p.finish(snap, req, endpoint, requestID, resp)

	if resp.Status != StatusClean {
		rlog.Info("Request flagged",
			zap.String("status", resp.Status),
			zap.String("endpoint_tag", endpoint),
			zap.Int("pii_matches", len(piiMatches)),
			zap.Int("injection_matches", len(injMatches)))
	}
	return resp, nil
}

// respond assembles the client-facing verdict. The blocked status is
// derived from the verdict on every request, cached or fresh, so a
// policy change applies to existing cache entries immediately.
func (p *Pipeline) respond(snap *snapshot, requestID string, v *cache.Verdict, cacheHit bool, start time.Time) *ProcessResponse {
	status := StatusClean
	if v.Flagged {
		status = StatusFlagged
	}
	if snap.cfg.Security.BlockOnHigh && hasHighInjection(v.Injection) {
		status = StatusBlocked
	}

	piiMatches := v.PII
	if piiMatches == nil {
		piiMatches = []patterns.Match{}
	}
	injMatches := v.Injection
	if injMatches == nil {
		injMatches = []patterns.Match{}
	}

	return &ProcessResponse{
		RequestID:        requestID,
		Status:           status,
		PIIMatches:       piiMatches,
		InjectionMatches: injMatches,
		CacheHit:         cacheHit,
		LatencyMS:        msSince(start),
	}
}

// finish records the per-request observability: counters, events, and
// the audit trail for flagged traffic.
func (p *Pipeline) finish(snap *snapshot, req ProcessRequest, endpoint, requestID string, resp *ProcessResponse) {
	p.metrics.RequestsTotal.WithLabelValues(resp.Status).Inc()
	if resp.Status == StatusBlocked {
		p.metrics.BlockedRequests.Inc()
	}
	for _, m := range resp.PIIMatches {
		p.metrics.PIIDetections.WithLabelValues(m.PatternID).Inc()
	}
	for _, m := range resp.InjectionMatches {
		p.metrics.InjectionDetections.WithLabelValues(string(m.Severity)).Inc()
	}

	p.emitDetections(req, endpoint, requestID, resp)

	if resp.Status != StatusClean {
		p.trail.Record(audit.Entry{
			RequestID:         requestID,
			OccurredAt:        time.Now().UTC(),
			EndpointTag:       endpoint,
			CallerID:          req.CallerID,
			SourceAddress:     req.SourceAddress,
			TextChars:         int64(utf8.RuneCountInString(req.Text)),
			Flagged:           true,
			Blocked:           resp.Status == StatusBlocked,
			CacheHit:          resp.CacheHit,
			PIIPatterns:       audit.PatternList(resp.PIIMatches),
			InjectionPatterns: audit.PatternList(resp.InjectionMatches),
			TopSeverity:       string(topSeverity(resp)),
			ProcessingMS:      resp.LatencyMS,
		})
	}
}

func (p *Pipeline) emitDetections(req ProcessRequest, endpoint, requestID string, resp *ProcessResponse) {
	if p.hub == nil {
		return
	}

	if len(resp.PIIMatches) > 0 {
		p.hub.BroadcastEvent(events.Event{
			Type:      events.EventTypePIIDetection,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: events.PIIDetectionEvent{
				RequestID:     requestID,
				EndpointTag:   endpoint,
				CallerID:      req.CallerID,
				SourceAddress: req.SourceAddress,
				Patterns:      patternIDs(resp.PIIMatches),
				Count:         len(resp.PIIMatches),
				CacheHit:      resp.CacheHit,
				ProcessingMS:  resp.LatencyMS,
			},
		})
	}
	if len(resp.InjectionMatches) > 0 {
		// Matches are ordered most severe first.
		top := resp.InjectionMatches[0]
		p.hub.BroadcastEvent(events.Event{
			Type:      events.EventTypeInjectionDetection,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: events.InjectionDetectionEvent{
				RequestID:     requestID,
				EndpointTag:   endpoint,
				CallerID:      req.CallerID,
				SourceAddress: req.SourceAddress,
				Patterns:      patternIDs(resp.InjectionMatches),
				TopSeverity:   string(top.Severity),
				TopConfidence: top.Confidence,
				Blocked:       resp.Status == StatusBlocked,
				Count:         len(resp.InjectionMatches),
				CacheHit:      resp.CacheHit,
				ProcessingMS:  resp.LatencyMS,
			},
		})
	}
}

func (p *Pipeline) emitDenial(req ProcessRequest, endpoint, requestID string, d ratelimit.Decision) {
	if p.hub == nil {
		return
	}
	p.hub.BroadcastEvent(events.Event{
		Type:      events.EventTypeRateLimitDenied,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: events.RateLimitDeniedEvent{
			RequestID:     requestID,
			EndpointTag:   endpoint,
			CallerID:      req.CallerID,
			SourceAddress: req.SourceAddress,
			Dimension:     string(d.Dimension),
			RetryAfterMS:  d.RetryAfter.Milliseconds(),
			Degraded:      d.Degraded,
		},
	})
}

func hasHighInjection(matches []patterns.Match) bool {
	for _, m := range matches {
		if m.Severity.Rank() >= patterns.SeverityHigh.Rank() {
			return true
		}
	}
	return false
}

func topSeverity(resp *ProcessResponse) patterns.Severity {
	var top patterns.Severity
	for _, m := range resp.PIIMatches {
		if top == "" || m.Severity.Rank() > top.Rank() {
			top = m.Severity
		}
	}
	for _, m := range resp.InjectionMatches {
		if top == "" || m.Severity.Rank() > top.Rank() {
			top = m.Severity
		}
	}
	return top
}

func patternIDs(matches []patterns.Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.PatternID
	}
	return ids
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
