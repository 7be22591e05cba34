package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
)

// Store wraps the Redis-backed response cache. Caching is a performance
// optimization, never a correctness dependency: every store failure
// degrades to a miss or a dropped write, and the request proceeds.
type Store struct {
	client *redis.Client
	cfg    config.CacheConfig
	log    *logger.Logger

	hits   int64
	misses int64
	sets   int64
	errors int64
}

// New creates a cache store over an existing Redis client. The client is
// shared with the rate limiter and owned by the caller.
func New(client *redis.Client, cfg config.CacheConfig, log *logger.Logger) *Store {
	return &Store{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("cache"),
	}
}

// Get returns the cached verdict for key, or nil on a miss. A store error
// is treated identically to a miss so an unavailable backend never fails
// the request.
func (s *Store) Get(ctx context.Context, key string) *Verdict {
	if !s.cfg.Enabled {
		return nil
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&s.misses, 1)
		return nil
	}
	if err != nil {
		atomic.AddInt64(&s.errors, 1)
		atomic.AddInt64(&s.misses, 1)
		s.log.Warn("Cache lookup failed, treating as miss", zap.Error(err))
		return nil
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		atomic.AddInt64(&s.errors, 1)
		atomic.AddInt64(&s.misses, 1)
		s.log.Warn("Corrupted cache entry, dropping",
			zap.String("key", key), zap.Error(err))
		s.client.Del(ctx, key)
		return nil
	}

	atomic.AddInt64(&s.hits, 1)
	return &v
}

// Put writes a verdict under the TTL of its class. Failures are logged at
// warning level and swallowed.
func (s *Store) Put(ctx context.Context, key string, v *Verdict, class TTLClass) {
	if !s.cfg.Enabled || v == nil {
		return
	}

	v.CachedAt = time.Now().UTC()
	data, err := json.Marshal(v)
	if err != nil {
		atomic.AddInt64(&s.errors, 1)
		s.log.Warn("Failed to serialize cache entry", zap.Error(err))
		return
	}

	if err := s.client.Set(ctx, key, data, s.TTLFor(class)).Err(); err != nil {
		atomic.AddInt64(&s.errors, 1)
		s.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	atomic.AddInt64(&s.sets, 1)
}

// Classify picks the TTL class for a finished verdict: any detection means
// Short, clean means Medium, and clean results for endpoints explicitly
// listed as idempotent get Long.
func (s *Store) Classify(v *Verdict, endpointTag string) TTLClass {
	if len(v.PII) > 0 || len(v.Injection) > 0 {
		return TTLShort
	}
	for _, tag := range s.cfg.LongTTLEndpoints {
		if tag == endpointTag {
			return TTLLong
		}
	}
	return TTLMedium
}

// TTLFor maps a TTL class to its configured duration.
func (s *Store) TTLFor(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return s.cfg.TTL.Short
	case TTLLong:
		return s.cfg.TTL.Long
	default:
		return s.cfg.TTL.Medium
	}
}

// Ping verifies backing-store connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Stats returns a snapshot of the cache performance counters.
func (s *Store) Stats() Stats {
	st := Stats{
		Hits:   atomic.LoadInt64(&s.hits),
		Misses: atomic.LoadInt64(&s.misses),
		Sets:   atomic.LoadInt64(&s.sets),
		Errors: atomic.LoadInt64(&s.errors),
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total) * 100
	}
	return st
}
