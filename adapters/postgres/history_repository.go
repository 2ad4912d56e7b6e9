package postgres

import (
	"context"
	"fmt"

	"battforge/internal/errors"
	"battforge/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// historyRepository implements analysis history persistence. The engine core
// never calls this; only the API layer records completed analyses.
type historyRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository connects to Postgres and ensures the history table
// exists. An empty URL returns a nil port, which disables persistence.
func NewHistoryRepository(databaseURL string) (ports.HistoryRepositoryPort, error) {
	if databaseURL == "" {
		return nil, nil
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to history database")
	}

	schema := `CREATE TABLE IF NOT EXISTS analysis_history (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		dataset_type TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		metrics_json TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to ensure analysis_history table")
	}

	return &historyRepository{db: db}, nil
}

// SaveRecord inserts one analysis outcome.
func (r *historyRepository) SaveRecord(ctx context.Context, record ports.AnalysisRecord) error {
	query := `INSERT INTO analysis_history (id, filename, dataset_type, summary, metrics_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Filename, record.DatasetType, record.Summary, record.MetricsJSON, record.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to save analysis record")
	}
	return nil
}

// ListRecent returns the newest records first.
func (r *historyRepository) ListRecent(ctx context.Context, limit int) ([]ports.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, filename, dataset_type, summary, metrics_json, created_at
		FROM analysis_history ORDER BY created_at DESC LIMIT $1`

	var records []ports.AnalysisRecord
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to list last %d analysis records", limit))
	}
	return records, nil
}
