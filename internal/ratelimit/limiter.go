package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
)

// keyPrefix namespaces every bucket key in the shared store.
const keyPrefix = "reflexgate"

// Dimension names one independently limited axis of a request.
type Dimension string

const (
	DimCaller   Dimension = "caller"
	DimSource   Dimension = "source"
	DimEndpoint Dimension = "endpoint"
	DimGlobal   Dimension = "global"
)

// Result is the outcome of a single bucket check.
type Result struct {
	Allowed   bool
	Remaining int64
	Wait      time.Duration
}

// Decision is the outcome of a full multi-dimension check.
type Decision struct {
	Allowed bool
	// Dimension is the axis that denied the request; empty when allowed.
	Dimension Dimension
	// RetryAfter is the longest wait observed across every dimension
	// checked, so a retry that honors it can pass all of them.
	RetryAfter time.Duration
	// Degraded marks a decision taken without the backing store.
	Degraded bool
}

// Limiter enforces token buckets across four dimensions, in order: caller,
// source, endpoint, global. The first exhausted bucket denies the request;
// earlier buckets keep their consumed token, matching what a successful
// retry will need anyway. Dimensions with an empty id and buckets with a
// non-positive shape are skipped.
type Limiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	tiers  *TierTable
	log    *logger.Logger

	// now is injectable for tests; the script trusts this clock.
	now func() time.Time

	// local bounds fail-open admissions during a store outage. Sized from
	// the global bucket, per instance rather than fleet-wide.
	local *rate.Limiter
}

func New(client *redis.Client, cfg config.RateLimitConfig, tiers *TierTable, log *logger.Logger) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		tiers:  tiers,
		log:    log.WithComponent("ratelimit"),
		now:    time.Now,
		local:  rate.NewLimiter(rate.Limit(cfg.Global.RefillPerSec), int(cfg.Global.Capacity)),
	}
}

type bucketCheck struct {
	dim    Dimension
	key    string
	bucket config.BucketConfig
}

// Check runs the request through every applicable dimension. Anonymous
// requests skip the caller bucket, and callers on an unlimited tier skip
// it too; the shared endpoint and global buckets always apply.
func (l *Limiter) Check(ctx context.Context, callerID, sourceAddr, endpointTag string) Decision {
	if !l.cfg.Enabled {
		return Decision{Allowed: true}
	}

	checks := make([]bucketCheck, 0, 4)
	if callerID != "" {
		if tier := l.tiers.For(callerID); !tier.Unlimited {
			checks = append(checks, bucketCheck{DimCaller, l.key(DimCaller, callerID), tier.Bucket})
		}
	}
	if sourceAddr != "" {
		checks = append(checks, bucketCheck{DimSource, l.key(DimSource, sourceAddr), l.cfg.Source})
	}
	if endpointTag != "" {
		checks = append(checks, bucketCheck{DimEndpoint, l.key(DimEndpoint, endpointTag), l.cfg.Endpoint})
	}
	checks = append(checks, bucketCheck{DimGlobal, l.key(DimGlobal, ""), l.cfg.Global})

	var maxWait time.Duration
	for _, c := range checks {
		if c.bucket.Capacity <= 0 || c.bucket.RefillPerSec <= 0 {
			continue
		}
		res, err := l.checkBucket(ctx, c.key, c.bucket)
		if err != nil {
			return l.degraded(err)
		}
		if res.Wait > maxWait {
			maxWait = res.Wait
		}
		if !res.Allowed {
			l.log.Debug("Rate limit exceeded",
				zap.String("dimension", string(c.dim)),
				zap.Duration("retry_after", maxWait))
			return Decision{Allowed: false, Dimension: c.dim, RetryAfter: maxWait}
		}
	}
	return Decision{Allowed: true, RetryAfter: maxWait}
}

// checkBucket consumes one token from a single bucket.
func (l *Limiter) checkBucket(ctx context.Context, key string, b config.BucketConfig) (Result, error) {
	raw, err := tokenBucketScript.Run(ctx, l.client, []string{key},
		b.Capacity, b.RefillPerSec, 1, l.now().UnixMilli()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("token bucket %s: %w", key, err)
	}
	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return Result{}, fmt.Errorf("token bucket %s: unexpected reply %v", key, raw)
	}
	allowed, _ := vals[0].(int64)
	remaining, _ := vals[1].(int64)
	waitMS, _ := vals[2].(int64)
	return Result{
		Allowed:   allowed == 1,
		Remaining: remaining,
		Wait:      time.Duration(waitMS) * time.Millisecond,
	}, nil
}

// degraded applies the outage policy. Fail-open admits through the local
// per-instance limiter so a store outage cannot turn into an unbounded
// flood; fail-closed denies with the configured retry hint.
func (l *Limiter) degraded(err error) Decision {
	if l.cfg.FailOpen {
		if l.local.Allow() {
			l.log.Warn("Rate limit store unavailable, admitting via local bound", zap.Error(err))
			return Decision{Allowed: true, Degraded: true}
		}
		return Decision{Allowed: false, Dimension: DimGlobal, RetryAfter: l.cfg.OutageRetryAfter, Degraded: true}
	}
	l.log.Warn("Rate limit store unavailable, failing closed", zap.Error(err))
	return Decision{Allowed: false, Dimension: DimGlobal, RetryAfter: l.cfg.OutageRetryAfter, Degraded: true}
}

// Reset clears one bucket. The global bucket takes an empty id.
func (l *Limiter) Reset(ctx context.Context, dim Dimension, id string) error {
	return l.client.Del(ctx, l.key(dim, id)).Err()
}

func (l *Limiter) key(dim Dimension, id string) string {
	if id == "" {
		return fmt.Sprintf("%s:ratelimit:%s", keyPrefix, dim)
	}
	return fmt.Sprintf("%s:ratelimit:%s:%s", keyPrefix, dim, id)
}
