package writer

import (
	"context"
	"fmt"
	"time"

	"lifeline/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// copyThreshold is the batch size from which the COPY path is used.
const copyThreshold = 100

// PostgresWriter defines the interface for writing batches to PostgreSQL
type PostgresWriter interface {
	// WriteBatch upserts progress records. Uses COPY protocol for large batches,
	// per-row statements for small ones.
	WriteBatch(ctx context.Context, records []ProgressRecord) error

	// Close closes the database connection pool
	Close() error
}

// PGWriter implements PostgresWriter using pgxpool
type PGWriter struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	URI      string
	MinConns int32
	MaxConns int32
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS player_progress (
		sku               TEXT PRIMARY KEY,
		nickname          TEXT NOT NULL DEFAULT '',
		level             INTEGER NOT NULL,
		life              INTEGER NOT NULL,
		max_life          INTEGER NOT NULL,
		client_version    TEXT NOT NULL DEFAULT '',
		first_achieved_at TIMESTAMPTZ NOT NULL,
		last_event_type   TEXT NOT NULL,
		last_event_at     TIMESTAMPTZ NOT NULL,
		version           BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS player_progress_ranking
		ON player_progress (level DESC, first_achieved_at ASC)
`

// Older versions never overwrite newer ones; level never decreases and first_achieved_at only
// moves with a strictly higher level.
const upsertSet = `
	ON CONFLICT (sku) DO UPDATE SET
		nickname = CASE WHEN EXCLUDED.nickname <> '' THEN EXCLUDED.nickname ELSE player_progress.nickname END,
		level = GREATEST(player_progress.level, EXCLUDED.level),
		life = EXCLUDED.life,
		max_life = EXCLUDED.max_life,
		client_version = EXCLUDED.client_version,
		first_achieved_at = CASE WHEN EXCLUDED.level > player_progress.level
			THEN EXCLUDED.first_achieved_at ELSE player_progress.first_achieved_at END,
		last_event_type = EXCLUDED.last_event_type,
		last_event_at = EXCLUDED.last_event_at,
		version = EXCLUDED.version
	WHERE player_progress.version < EXCLUDED.version
`

const insertSQL = `
	INSERT INTO player_progress (sku, nickname, level, life, max_life, client_version,
		first_achieved_at, last_event_type, last_event_at, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
` + upsertSet

const copyUpsertSQL = `
	INSERT INTO player_progress SELECT * FROM player_progress_staging
` + upsertSet

// NewPostgresWriter connects, pings and makes sure the progress table exists.
func NewPostgresWriter(ctx context.Context, cfg PostgresConfig, l *logger.Logger) (*PGWriter, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	w := &PGWriter{pool: pool, logger: l.Named("writer")}
	if err := w.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

// EnsureSchema creates player_progress and its ranking index if missing.
func (w *PGWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create player_progress: %w", err)
	}
	return nil
}

// WriteBatch writes the records using the best available protocol
func (w *PGWriter) WriteBatch(ctx context.Context, records []ProgressRecord) error {
	records = Coalesce(records)
	if len(records) == 0 {
		return nil
	}

	if w.ShouldUseCopy(records) {
		return w.writeBatchCopy(ctx, records)
	}
	return w.writeBatchInsert(ctx, records)
}

func (w *PGWriter) writeBatchInsert(ctx context.Context, records []ProgressRecord) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertSQL, r.values()...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, r := range records {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("upsert %s: %w", r.SKU, err)
		}
		if tag.RowsAffected() == 0 {
			w.logger.Debug("skipped stale progress", zap.String("sku", r.SKU), zap.Int64("version", r.Version))
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}
	return tx.Commit(ctx)
}

// writeBatchCopy stages rows with COPY and upserts them in one statement.
func (w *PGWriter) writeBatchCopy(ctx context.Context, records []ProgressRecord) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "CREATE TEMP TABLE player_progress_staging (LIKE player_progress) ON COMMIT DROP")
	if err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	rows := make([][]interface{}, len(records))
	for i, r := range records {
		rows[i] = r.values()
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"player_progress_staging"}, progressColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy from failed: %w", err)
	}

	tag, err := tx.Exec(ctx, copyUpsertSQL)
	if err != nil {
		return fmt.Errorf("upsert from staging table failed: %w", err)
	}
	w.logger.Debug("copied progress batch",
		zap.Int("staged", len(records)),
		zap.Int64("applied", tag.RowsAffected()))

	return tx.Commit(ctx)
}

// Close closes the pool
func (w *PGWriter) Close() error {
	w.pool.Close()
	return nil
}

// Ping checks the pool, used by readiness checks.
func (w *PGWriter) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// ShouldUseCopy reports whether a coalesced batch goes through COPY.
func (w *PGWriter) ShouldUseCopy(records []ProgressRecord) bool {
	return len(records) >= copyThreshold
}
