package audit

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/parquet-go"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/patterns"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]Entry
	closed  bool
}

func (s *captureSink) Write(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]Entry, len(entries))
	copy(batch, entries)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func newTestTrail(sink Sink, buffer int) *Trail {
	t := &Trail{
		sink:    sink,
		log:     logger.Nop().WithComponent("audit"),
		entries: make(chan Entry, buffer),
		stop:    make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

func sampleEntry(id string) Entry {
	return Entry{
		RequestID:    id,
		OccurredAt:   time.UnixMilli(1_700_000_000_000).UTC(),
		EndpointTag:  "process",
		CallerID:     "caller-1",
		TextChars:    42,
		Flagged:      true,
		PIIPatterns:  "ssn",
		TopSeverity:  "critical",
		ProcessingMS: 1.5,
	}
}

func TestPatternList(t *testing.T) {
	matches := []patterns.Match{
		{PatternID: patterns.PIIEmail},
		{PatternID: patterns.PIISSN},
	}
	if got := PatternList(matches); got != "email,ssn" {
		t.Errorf("PatternList = %q", got)
	}
	if got := PatternList(nil); got != "" {
		t.Errorf("PatternList(nil) = %q", got)
	}
}

func TestTrailFlushOnClose(t *testing.T) {
	sink := &captureSink{}
	trail := newTestTrail(sink, 16)

	for i := 0; i < 3; i++ {
		trail.Record(sampleEntry("r-1"))
	}
	if err := trail.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := sink.total(); got != 3 {
		t.Errorf("Flushed entries = %d, want 3", got)
	}
	if !sink.closed {
		t.Error("Close should close the sink")
	}
	// Recording after Close is a silent no-op.
	trail.Record(sampleEntry("r-2"))
}

func TestTrailBatches(t *testing.T) {
	sink := &captureSink{}
	trail := newTestTrail(sink, 256)

	for i := 0; i < 130; i++ {
		trail.Record(sampleEntry("r-1"))
	}
	if err := trail.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := sink.total(); got != 130 {
		t.Errorf("Flushed entries = %d, want 130", got)
	}
	sink.mu.Lock()
	batches := len(sink.batches)
	sink.mu.Unlock()
	if batches < 2 {
		t.Errorf("Batches = %d, want the worker to flush in chunks", batches)
	}
}

func TestTrailDropsWhenFull(t *testing.T) {
	// No worker draining: the buffer fills and overflow is counted.
	trail := &Trail{
		sink:    &captureSink{},
		log:     logger.Nop().WithComponent("audit"),
		entries: make(chan Entry, 1),
		stop:    make(chan struct{}),
	}

	trail.Record(sampleEntry("r-1"))
	trail.Record(sampleEntry("r-2"))

	if got := trail.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestNilTrail(t *testing.T) {
	var trail *Trail

	trail.Record(sampleEntry("r-1"))
	if got := trail.Dropped(); got != 0 {
		t.Errorf("Dropped on nil trail = %d", got)
	}
	if err := trail.Close(); err != nil {
		t.Errorf("Close on nil trail = %v", err)
	}
}

func TestNewTrailBackends(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		trail, err := NewTrail(config.AuditConfig{Backend: "none"}, logger.Nop())
		if err != nil || trail != nil {
			t.Errorf("NewTrail(none) = %v, %v", trail, err)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := NewTrail(config.AuditConfig{Backend: "kafka"}, logger.Nop()); err == nil {
			t.Error("Expected an error for an unknown backend")
		}
	})

	t.Run("Parquet", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.AuditConfig{
			Backend:    "parquet",
			BufferSize: 16,
			Parquet:    config.AuditParquetConfig{Dir: dir, EventsPerFile: 100},
		}
		trail, err := NewTrail(cfg, logger.Nop())
		if err != nil {
			t.Fatalf("NewTrail failed: %v", err)
		}
		trail.Record(sampleEntry("r-1"))
		if err := trail.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
		if len(files) != 1 {
			t.Errorf("Audit files = %v, want one", files)
		}
	})
}

func TestParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewParquetSink(config.AuditParquetConfig{Dir: dir, EventsPerFile: 2}, logger.Nop())
	if err != nil {
		t.Fatalf("NewParquetSink failed: %v", err)
	}
	ctx := context.Background()

	first := sampleEntry("r-1")
	second := sampleEntry("r-2")
	second.Flagged = false
	second.PIIPatterns = ""
	third := sampleEntry("r-3")

	// Two entries hit the rotation threshold; the third opens a new file.
	if err := sink.Write(ctx, []Entry{first, second}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Write(ctx, []Entry{third}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if len(files) != 2 {
		t.Fatalf("Audit files = %v, want two after rotation", files)
	}
	sort.Strings(files)

	got := readParquet(t, files[0])
	if len(got) != 2 {
		t.Fatalf("First file entries = %d, want 2", len(got))
	}
	if got[0].RequestID != "r-1" || !got[0].Flagged || got[0].PIIPatterns != "ssn" {
		t.Errorf("First entry = %+v", got[0])
	}
	if !got[0].OccurredAt.Equal(first.OccurredAt) {
		t.Errorf("OccurredAt = %v, want %v", got[0].OccurredAt, first.OccurredAt)
	}
	if got[1].RequestID != "r-2" || got[1].Flagged {
		t.Errorf("Second entry = %+v", got[1])
	}

	if rest := readParquet(t, files[1]); len(rest) != 1 || rest[0].RequestID != "r-3" {
		t.Errorf("Second file entries = %+v", rest)
	}
}

func readParquet(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	reader := parquet.NewReader(f)
	defer reader.Close()

	var entries []Entry
	for {
		var e Entry
		err := reader.Read(&e)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read %s: %v", path, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestInsertQuery(t *testing.T) {
	q := insertQuery(2)

	if !strings.Contains(q, "INSERT INTO audit_events") {
		t.Error("Query should target audit_events")
	}
	if got := strings.Count(q, "$"); got != 2*auditColumns {
		t.Errorf("Placeholders = %d, want %d", got, 2*auditColumns)
	}
	if !strings.Contains(q, "($1, $2") || !strings.Contains(q, "($14, $15") {
		t.Errorf("Row placeholders misnumbered:\n%s", q)
	}
}

func TestScanParquetDir(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewParquetSink(config.AuditParquetConfig{Dir: dir, EventsPerFile: 2}, logger.Nop())
	if err != nil {
		t.Fatalf("NewParquetSink failed: %v", err)
	}
	ctx := context.Background()
	if err := sink.Write(ctx, []Entry{sampleEntry("r-1"), sampleEntry("r-2")}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Write(ctx, []Entry{sampleEntry("r-3")}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var ids []string
	if err := ScanParquetDir(dir, func(e Entry) error {
		ids = append(ids, e.RequestID)
		return nil
	}); err != nil {
		t.Fatalf("ScanParquetDir failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "r-1" || ids[1] != "r-2" || ids[2] != "r-3" {
		t.Errorf("Entries = %v, want r-1 r-2 r-3 across rotated files", ids)
	}

	stop := errors.New("stop")
	seen := 0
	err = ScanParquetDir(dir, func(Entry) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Scan error = %v, want the callback's error", err)
	}
	if seen != 1 {
		t.Errorf("Callback ran %d times after stop, want 1", seen)
	}

	if err := ScanParquetDir(t.TempDir(), func(Entry) error { return nil }); err != nil {
		t.Errorf("Empty directory scan failed: %v", err)
	}
}
