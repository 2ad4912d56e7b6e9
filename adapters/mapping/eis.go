package mapping

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"battforge/domain/impedance"
	"battforge/domain/telemetry"
	"battforge/internal/errors"
	"battforge/ports"
)

// EIS canonical keys.
const (
	EISKeyFreq = "freq"
	EISKeyReal = "real"
	EISKeyImag = "imag"
)

// eisNeedles are substring lists per key, checked against headers normalized
// by lowercasing and stripping underscores and parentheses. Opposite stage
// order from the cycling mapper: the deterministic pass runs first here and
// the classifier is only consulted when it fails.
var eisNeedles = map[string][]string{
	EISKeyFreq: {"freq", "hz"},
	EISKeyReal: {"real", "z'", "zreal", "z_re", "re(z)"},
	EISKeyImag: {"imag", "z''", "zimag", "z_im", "im(z)", "-im(z)"},
}

// EISColumns names the resolved original headers of an impedance sweep.
type EISColumns struct {
	Freq string
	Real string
	Imag string
}

// EISMapper resolves frequency/real/imaginary impedance columns.
type EISMapper struct {
	classifier ports.SemanticClassifierPort
}

// NewEISMapper creates a mapper. A nil classifier leaves only the
// deterministic stage.
func NewEISMapper(classifier ports.SemanticClassifierPort) *EISMapper {
	return &EISMapper{classifier: classifier}
}

// Resolve finds the three impedance columns or returns MappingError.
func (m *EISMapper) Resolve(ctx context.Context, table *telemetry.RawTable) (EISColumns, error) {
	cols := substringResolve(table.Headers)

	if !cols.complete() && m.classifier != nil {
		log.Printf("[EIS] substring detection incomplete, attempting semantic mapping")
		mapped, err := m.classifier.MapEISColumns(ctx, table.Headers, table.SampleCSV(sampleRowCount))
		if err != nil {
			log.Printf("[EIS] semantic mapping failed: %v", err)
		} else {
			if h := mapped[EISKeyFreq]; cols.Freq == "" && table.HasHeader(h) {
				cols.Freq = h
			}
			if h := mapped[EISKeyReal]; cols.Real == "" && table.HasHeader(h) {
				cols.Real = h
			}
			if h := mapped[EISKeyImag]; cols.Imag == "" && table.HasHeader(h) {
				cols.Imag = h
			}
		}
	}

	if !cols.complete() {
		return EISColumns{}, errors.MappingError(fmt.Sprintf(
			"could not detect EIS columns (frequency, z-real, z-imag), headers: %v", table.Headers))
	}
	return cols, nil
}

// BuildSpectrum coerces the resolved columns to numeric and assembles the
// sweep ordered high frequency first. Rows with unparseable values or
// non-positive frequencies are dropped.
func BuildSpectrum(table *telemetry.RawTable, cols EISColumns) impedance.Spectrum {
	freq, _ := table.NumericColumn(cols.Freq)
	re, _ := table.NumericColumn(cols.Real)
	im, _ := table.NumericColumn(cols.Imag)

	spectrum := make(impedance.Spectrum, 0, len(freq))
	for i := range freq {
		if math.IsNaN(freq[i]) || math.IsNaN(re[i]) || math.IsNaN(im[i]) || freq[i] <= 0 {
			continue
		}
		spectrum = append(spectrum, impedance.ImpedancePoint{
			FrequencyHz: freq[i],
			ZRealOhm:    re[i],
			ZImagOhm:    im[i],
		})
	}
	spectrum.SortByFrequencyDesc()
	return spectrum
}

func (c EISColumns) complete() bool {
	return c.Freq != "" && c.Real != "" && c.Imag != ""
}

func substringResolve(headers []string) EISColumns {
	cols := EISColumns{}
	claimed := make(map[string]bool)

	resolve := func(key string) string {
		for _, header := range headers {
			if claimed[header] {
				continue
			}
			norm := normalizeEISHeader(header)
			for _, needle := range eisNeedles[key] {
				if strings.Contains(norm, needle) {
					claimed[header] = true
					return header
				}
			}
		}
		return ""
	}

	cols.Freq = resolve(EISKeyFreq)
	cols.Real = resolve(EISKeyReal)
	cols.Imag = resolve(EISKeyImag)
	return cols
}

func normalizeEISHeader(header string) string {
	norm := strings.ToLower(strings.TrimSpace(header))
	for _, cut := range []string{"_", "(", ")"} {
		norm = strings.ReplaceAll(norm, cut, "")
	}
	return norm
}
