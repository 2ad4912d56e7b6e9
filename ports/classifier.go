package ports

import (
	"context"

	"battforge/domain/telemetry"
)

// DatasetSignature is the classifier's first-pass read of an upload:
// what kind of export it is and whether it looks like standard cycling data.
type DatasetSignature struct {
	DatasetType       string `json:"dataset_type"`
	Summary           string `json:"summary"`
	IsStandardCycling bool   `json:"is_standard_cycling"`
}

// SemanticClassifierPort is the optional LLM collaborator used for header
// resolution. Every call is time-bounded by the implementation; callers must
// treat any error or incomplete mapping as a signal to fall through to the
// deterministic path.
type SemanticClassifierPort interface {
	// ClassifySignature identifies the dataset type from headers and a
	// small row preview.
	ClassifySignature(ctx context.Context, headers []string, sampleCSV string) (*DatasetSignature, error)

	// MapCyclingColumns maps arbitrary headers onto the canonical cycling
	// schema (time/voltage/current mandatory, capacity/temperature/soc
	// opportunistic).
	MapCyclingColumns(ctx context.Context, headers []string, sampleCSV string) (telemetry.ColumnMapping, error)

	// MapEISColumns maps headers onto the impedance schema keys
	// freq/real/imag. Missing keys are omitted.
	MapEISColumns(ctx context.Context, headers []string, sampleCSV string) (map[string]string, error)
}
