package ports

import (
	"context"
	"time"
)

// AnalysisRecord is one persisted analysis outcome. Metrics are stored as a
// JSON document since the two analysis paths produce different shapes.
type AnalysisRecord struct {
	ID          string    `db:"id" json:"id"`
	Filename    string    `db:"filename" json:"filename"`
	DatasetType string    `db:"dataset_type" json:"dataset_type"`
	Summary     string    `db:"summary" json:"summary"`
	MetricsJSON string    `db:"metrics_json" json:"metrics_json"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// HistoryRepositoryPort stores analysis outcomes. The engine core never
// touches it; only the API layer records history, and a nil repository
// disables persistence.
type HistoryRepositoryPort interface {
	SaveRecord(ctx context.Context, record AnalysisRecord) error
	ListRecent(ctx context.Context, limit int) ([]AnalysisRecord, error)
}
