package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/storage"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	endpoint_tag TEXT NOT NULL,
	caller_id TEXT NOT NULL DEFAULT '',
	source_address TEXT NOT NULL DEFAULT '',
	text_chars BIGINT NOT NULL,
	flagged BOOLEAN NOT NULL,
	blocked BOOLEAN NOT NULL,
	cache_hit BOOLEAN NOT NULL,
	pii_patterns TEXT NOT NULL DEFAULT '',
	injection_patterns TEXT NOT NULL DEFAULT '',
	top_severity TEXT NOT NULL DEFAULT '',
	processing_ms DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at ON audit_events (occurred_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_flagged ON audit_events (flagged) WHERE flagged;
`

const auditColumns = 13

// PostgresSink writes audit entries to a Postgres table in batches.
type PostgresSink struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewPostgresSink(cfg config.AuditPostgresConfig, log *logger.Logger) (*PostgresSink, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	log.WithComponent("audit").Info("Postgres audit sink ready",
		zap.String("database_url", storage.MaskURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return &PostgresSink{db: db, log: log.WithComponent("audit")}, nil
}

func (s *PostgresSink) Write(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	valueArgs := make([]interface{}, 0, len(entries)*auditColumns)
	for _, e := range entries {
		valueArgs = append(valueArgs,
			e.RequestID,
			e.OccurredAt,
			e.EndpointTag,
			e.CallerID,
			e.SourceAddress,
			e.TextChars,
			e.Flagged,
			e.Blocked,
			e.CacheHit,
			e.PIIPatterns,
			e.InjectionPatterns,
			e.TopSeverity,
			e.ProcessingMS,
		)
	}

	if _, err := s.db.ExecContext(ctx, insertQuery(len(entries)), valueArgs...); err != nil {
		return fmt.Errorf("insert audit batch: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// insertQuery builds the multi-row insert statement for n entries.
func insertQuery(n int) string {
	valueStrings := make([]string, 0, n)
	for i := 0; i < n; i++ {
		placeholders := make([]string, auditColumns)
		for j := 0; j < auditColumns; j++ {
			placeholders[j] = fmt.Sprintf("$%d", i*auditColumns+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
	}
	return fmt.Sprintf(`
		INSERT INTO audit_events (
			request_id, occurred_at, endpoint_tag, caller_id, source_address,
			text_chars, flagged, blocked, cache_hit,
			pii_patterns, injection_patterns, top_severity, processing_ms
		) VALUES %s`, strings.Join(valueStrings, ","))
}
