package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

// JournalRepository keeps one row per finished ingestion run.
type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JournalRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *JournalRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025080101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS workflow_runs (
	workflow_id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	stage TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	record_id TEXT NOT NULL DEFAULT '',
	model_used TEXT NOT NULL DEFAULT '',
	degraded BOOLEAN NOT NULL DEFAULT FALSE,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflow_runs_finished_at ON workflow_runs(finished_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JournalRepository) RecordOutcome(ctx context.Context, outcome domain.WorkflowOutcome) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO workflow_runs (
	workflow_id, file_name, channel_id, success, stage, error_message, record_id, model_used, degraded, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (workflow_id) DO UPDATE SET
	success = EXCLUDED.success,
	stage = EXCLUDED.stage,
	error_message = EXCLUDED.error_message,
	record_id = EXCLUDED.record_id,
	model_used = EXCLUDED.model_used,
	degraded = EXCLUDED.degraded,
	finished_at = EXCLUDED.finished_at
`,
		outcome.WorkflowID, outcome.FileName, outcome.ChannelID, outcome.Success, string(outcome.Stage),
		outcome.Error, outcome.RecordID, outcome.ModelUsed, outcome.Degraded, outcome.StartedAt, outcome.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]domain.WorkflowOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT workflow_id, file_name, channel_id, success, stage, error_message, record_id, model_used, degraded, started_at, finished_at
FROM workflow_runs
ORDER BY finished_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query workflow runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WorkflowOutcome, 0, limit)
	for rows.Next() {
		var o domain.WorkflowOutcome
		var stage string
		if err := rows.Scan(
			&o.WorkflowID, &o.FileName, &o.ChannelID, &o.Success, &stage, &o.Error,
			&o.RecordID, &o.ModelUsed, &o.Degraded, &o.StartedAt, &o.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		o.Stage = domain.WorkflowStage(stage)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow runs: %w", err)
	}
	return out, nil
}
