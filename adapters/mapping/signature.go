package mapping

import (
	"strings"

	"battforge/domain/telemetry"
	"battforge/ports"
)

// Dataset type labels.
const (
	DatasetCycling   = "Cycling"
	DatasetImpedance = "Impedance"
	DatasetUnknown   = "Unknown"
)

var cyclingKeywords = []string{"volt", "curr", "cap", "cycle", "time"}
var impedanceKeywords = []string{"freq", "z_real", "z_img", "real", "imag", "z'", `z"`}

// ClassifySignature is the deterministic dataset-type classifier: simple
// keyword counting over normalized headers. Impedance wins ties since its
// keywords are the more specific ones.
func ClassifySignature(table *telemetry.RawTable) ports.DatasetSignature {
	scoreCycling := 0
	scoreImpedance := 0
	for _, header := range table.Headers {
		norm := strings.TrimSpace(strings.ToLower(header))
		if containsAny(norm, cyclingKeywords) {
			scoreCycling++
		}
		if containsAny(norm, impedanceKeywords) {
			scoreImpedance++
		}
	}

	switch {
	case scoreImpedance > 0 && scoreImpedance >= scoreCycling:
		return ports.DatasetSignature{
			DatasetType: DatasetImpedance,
			Summary:     "Frequency-domain impedance sweep detected from headers",
		}
	case scoreCycling > 0:
		return ports.DatasetSignature{
			DatasetType:       DatasetCycling,
			Summary:           "Time-domain cycling log detected from headers",
			IsStandardCycling: true,
		}
	default:
		return ports.DatasetSignature{
			DatasetType: DatasetUnknown,
			Summary:     "Could not identify data structure from headers",
		}
	}
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
