package telemetry

import (
	"strconv"
	"strings"
)

// CanonicalKey identifies a column in the canonical cycling schema.
type CanonicalKey string

const (
	KeyTime        CanonicalKey = "time"
	KeyVoltage     CanonicalKey = "voltage"
	KeyCurrent     CanonicalKey = "current"
	KeyCapacity    CanonicalKey = "capacity"
	KeyTemperature CanonicalKey = "temperature"
	KeySOC         CanonicalKey = "soc"
)

// MandatoryKeys are the canonical keys every cycling dataset must resolve.
var MandatoryKeys = []CanonicalKey{KeyTime, KeyVoltage, KeyCurrent}

// OptionalKeys are resolved opportunistically and carried as extras.
var OptionalKeys = []CanonicalKey{KeyCapacity, KeyTemperature, KeySOC}

// RawTable is the in-memory form of an uploaded export: original headers and
// positional string rows, plus provenance kept for logging only.
type RawTable struct {
	Headers  []string
	Rows     [][]string
	ByteSize int
	Filename string
}

// ColumnIndex returns the position of an original header, or -1.
func (t *RawTable) ColumnIndex(header string) int {
	for i, h := range t.Headers {
		if h == header {
			return i
		}
	}
	return -1
}

// HasHeader reports whether the table carries the given original header.
func (t *RawTable) HasHeader(header string) bool {
	return t.ColumnIndex(header) >= 0
}

// Column returns the raw string values of an original header column.
func (t *RawTable) Column(header string) ([]string, bool) {
	idx := t.ColumnIndex(header)
	if idx < 0 {
		return nil, false
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values, true
}

// NumericColumn coerces a column to float64. Unparseable cells become NaN
// markers via the ok slice. The second return reports how many cells parsed.
func (t *RawTable) NumericColumn(header string) ([]float64, int) {
	raw, found := t.Column(header)
	if !found {
		return nil, 0
	}
	values := make([]float64, len(raw))
	parsed := 0
	for i, cell := range raw {
		v, ok := ParseNumeric(cell)
		if ok {
			values[i] = v
			parsed++
		} else {
			values[i] = nan
		}
	}
	return values, parsed
}

// SampleCSV renders the header row plus up to n data rows as CSV text, the
// preview shape the semantic classifier collaborator expects.
func (t *RawTable) SampleCSV(n int) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Headers, ","))
	b.WriteString("\n")
	for i, row := range t.Rows {
		if i >= n {
			break
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	return b.String()
}

// ColumnMapping is a partial mapping from canonical key to original header.
// A canonical key maps to at most one header; a header is claimed by at most
// one key (ties broken by pattern priority during resolution).
type ColumnMapping map[CanonicalKey]string

// HasMandatory reports whether all mandatory cycling keys are resolved.
func (m ColumnMapping) HasMandatory() bool {
	for _, key := range MandatoryKeys {
		if m[key] == "" {
			return false
		}
	}
	return true
}

// MissingMandatory lists the unresolved mandatory keys.
func (m ColumnMapping) MissingMandatory() []CanonicalKey {
	var missing []CanonicalKey
	for _, key := range MandatoryKeys {
		if m[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// ValidAgainst reports whether every mapped header actually exists in the
// table. Classifier responses pointing at invented headers are rejected.
func (m ColumnMapping) ValidAgainst(t *RawTable) bool {
	for _, header := range m {
		if header != "" && !t.HasHeader(header) {
			return false
		}
	}
	return true
}

// StandardizedCyclingTable holds the numeric canonical columns. Rows with any
// unparseable mandatory value have been dropped. Degraded lists the reasons a
// fallback was taken; an empty slice means a clean resolution.
type StandardizedCyclingTable struct {
	Time     []float64
	Voltage  []float64
	Current  []float64
	Extras   map[string][]float64
	Degraded []string
}

// Len returns the number of standardized rows.
func (t *StandardizedCyclingTable) Len() int {
	return len(t.Time)
}

// IsDegraded reports whether any fallback was taken while building the table.
func (t *StandardizedCyclingTable) IsDegraded() bool {
	return len(t.Degraded) > 0
}

// CyclingMetrics is a pure derived value, recomputed per call.
type CyclingMetrics struct {
	CapacityAh      float64 `json:"capacity_ah"`
	EnergyWh        float64 `json:"energy_wh"`
	DurationMinutes float64 `json:"duration_minutes"`
	AvgVoltage      float64 `json:"avg_voltage"`
	MaxCurrent      float64 `json:"max_current"`
}

// SafetyAudit is the deterministic 0-100 safety score with the subtracted
// terms exposed for explainability.
type SafetyAudit struct {
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// ReferenceTrace is an aligned time/voltage series from the physics
// reference collaborator.
type ReferenceTrace struct {
	Time    []float64 `json:"time"`
	Voltage []float64 `json:"voltage"`
}

// ParseNumeric coerces a raw cell to a float64. Empty and non-numeric cells
// fail; surrounding whitespace is tolerated.
func ParseNumeric(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
