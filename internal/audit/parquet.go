package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
)

// ParquetSink writes audit entries to rotating Parquet files. Rotation
// happens at batch boundaries once a file reaches the configured event
// count, so a file can run slightly over by one batch.
type ParquetSink struct {
	cfg config.AuditParquetConfig
	log *logger.Logger

	mu     sync.Mutex
	file   *os.File
	writer *parquet.GenericWriter[Entry]
	inFile int
	seq    int
}

func NewParquetSink(cfg config.AuditParquetConfig, log *logger.Logger) (*ParquetSink, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	if cfg.EventsPerFile <= 0 {
		cfg.EventsPerFile = 10000
	}

	log.WithComponent("audit").Info("Parquet audit sink ready",
		zap.String("dir", cfg.Dir),
		zap.Int("events_per_file", cfg.EventsPerFile))

	return &ParquetSink{cfg: cfg, log: log.WithComponent("audit")}, nil
}

func (s *ParquetSink) Write(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	n, err := s.writer.Write(entries)
	if err != nil {
		return fmt.Errorf("write audit parquet: %w", err)
	}
	s.inFile += n

	if s.inFile >= s.cfg.EventsPerFile {
		return s.rotate()
	}
	return nil
}

func (s *ParquetSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCurrent()
}

func (s *ParquetSink) open() error {
	s.seq++
	name := fmt.Sprintf("audit-%s-%04d.parquet", time.Now().UTC().Format("20060102T150405"), s.seq)
	file, err := os.Create(filepath.Join(s.cfg.Dir, name))
	if err != nil {
		return fmt.Errorf("create audit file: %w", err)
	}

	s.file = file
	s.writer = parquet.NewGenericWriter[Entry](file)
	s.inFile = 0
	s.log.Debug("Opened audit file", zap.String("file", name))
	return nil
}

func (s *ParquetSink) rotate() error {
	if err := s.closeCurrent(); err != nil {
		return err
	}
	// The next Write opens a fresh file.
	return nil
}

func (s *ParquetSink) closeCurrent() error {
	if s.writer == nil {
		return nil
	}
	werr := s.writer.Close()
	ferr := s.file.Close()
	s.writer = nil
	s.file = nil
	if werr != nil {
		return fmt.Errorf("finalize audit parquet: %w", werr)
	}
	if ferr != nil {
		return fmt.Errorf("close audit file: %w", ferr)
	}
	return nil
}
