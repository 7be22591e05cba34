package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/patterns"
)

const (
	flushBatch    = 64
	flushInterval = time.Second
	flushTimeout  = 5 * time.Second
)

// Entry is one audited request. It carries pattern IDs and redacted
// metadata only; request text never enters the trail.
type Entry struct {
	RequestID         string    `db:"request_id" parquet:"request_id" json:"request_id"`
	OccurredAt        time.Time `db:"occurred_at" parquet:"occurred_at" json:"occurred_at"`
	EndpointTag       string    `db:"endpoint_tag" parquet:"endpoint_tag" json:"endpoint_tag"`
	CallerID          string    `db:"caller_id" parquet:"caller_id" json:"caller_id"`
	SourceAddress     string    `db:"source_address" parquet:"source_address" json:"source_address"`
	TextChars         int64     `db:"text_chars" parquet:"text_chars" json:"text_chars"`
	Flagged           bool      `db:"flagged" parquet:"flagged" json:"flagged"`
	Blocked           bool      `db:"blocked" parquet:"blocked" json:"blocked"`
	CacheHit          bool      `db:"cache_hit" parquet:"cache_hit" json:"cache_hit"`
	PIIPatterns       string    `db:"pii_patterns" parquet:"pii_patterns" json:"pii_patterns"`
	InjectionPatterns string    `db:"injection_patterns" parquet:"injection_patterns" json:"injection_patterns"`
	TopSeverity       string    `db:"top_severity" parquet:"top_severity" json:"top_severity"`
	ProcessingMS      float64   `db:"processing_ms" parquet:"processing_ms" json:"processing_ms"`
}

// PatternList flattens match pattern IDs into the comma-joined form the
// trail stores. IDs never contain commas.
func PatternList(matches []patterns.Match) string {
	if len(matches) == 0 {
		return ""
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.PatternID
	}
	return strings.Join(ids, ",")
}

// Sink persists batches of audit entries.
type Sink interface {
	Write(ctx context.Context, entries []Entry) error
	Close() error
}

// Trail buffers entries and writes them to the configured sink from a
// single worker. Recording never blocks request processing: a full buffer
// drops the entry and counts it. All methods are safe on a nil Trail, so
// callers need no guard when auditing is off.
type Trail struct {
	sink Sink
	log  *logger.Logger

	entries chan Entry
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	dropped int64
}

// NewTrail builds the trail for the configured backend. Backend "none"
// returns a nil trail.
func NewTrail(cfg config.AuditConfig, log *logger.Logger) (*Trail, error) {
	var (
		sink Sink
		err  error
	)
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "postgres":
		sink, err = NewPostgresSink(cfg.Postgres, log)
	case "parquet":
		sink, err = NewParquetSink(cfg.Parquet, log)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1024
	}
	t := &Trail{
		sink:    sink,
		log:     log.WithComponent("audit"),
		entries: make(chan Entry, buffer),
		stop:    make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t, nil
}

// Record queues an entry. Entries offered after Close, or while the
// buffer is full, are dropped.
func (t *Trail) Record(e Entry) {
	if t == nil {
		return
	}
	select {
	case <-t.stop:
		return
	default:
	}
	select {
	case t.entries <- e:
	default:
		if n := atomic.AddInt64(&t.dropped, 1); n == 1 || n%1000 == 0 {
			t.log.Warn("Audit buffer full, dropping entries", zap.Int64("dropped_total", n))
		}
	}
}

// Dropped reports how many entries were lost to a full buffer.
func (t *Trail) Dropped() int64 {
	if t == nil {
		return 0
	}
	return atomic.LoadInt64(&t.dropped)
}

// Close drains buffered entries, flushes them, and closes the sink.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	t.once.Do(func() { close(t.stop) })
	t.wg.Wait()
	return t.sink.Close()
}

func (t *Trail) run() {
	defer t.wg.Done()

	batch := make([]Entry, 0, flushBatch)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-t.entries:
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				t.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}
		case <-t.stop:
			for {
				select {
				case e := <-t.entries:
					batch = append(batch, e)
				default:
					if len(batch) > 0 {
						t.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush is best-effort: a failed write is logged and the batch is lost,
// never retried into the request path.
func (t *Trail) flush(batch []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := t.sink.Write(ctx, batch); err != nil {
		t.log.Error("Audit flush failed",
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
	}
}
