package mapping

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"battforge/domain/telemetry"

	"github.com/montanaflynn/stats"
)

// DisplacedVoltageKey is the extras key under which an implausible voltage
// column is retained after a swap. The displaced column is frequently the
// true time column, so it is never discarded.
const DisplacedVoltageKey = "bad_voltage_mapped"

// voltagePlausibilityCeiling: a cell/pack voltage above this is assumed to
// be a mis-mapped time or capacity column.
const voltagePlausibilityCeiling = 100.0

// excludedNameFragments disqualify a column from the voltage hunt.
var excludedNameFragments = []string{
	"mode", "status", "step", "index", "flag", "state", "time", "soc",
	"cap", "energy", "wh", "ah", "temp", "current", "amp", "cycle",
}

// excludedExactNames disqualify current columns named too tersely for the
// fragment list to catch.
var excludedExactNames = map[string]bool{"i": true, "current": true, "cur": true}

// Corrector validates and repairs the voltage mapping, then materializes the
// standardized numeric table. It never fails: every anomaly becomes a
// degraded-state note on the output.
type Corrector struct{}

// NewCorrector creates a plausibility corrector.
func NewCorrector() *Corrector {
	return &Corrector{}
}

type voltageCandidate struct {
	header string
	score  float64
	values []float64
}

// Correct coerces the mapped columns to numeric, swaps in a better voltage
// column when the mapped one is physically implausible, fills any missing
// mandatory column with zeros, and drops rows with unparseable mandatory
// values.
func (c *Corrector) Correct(table *telemetry.RawTable, mapping telemetry.ColumnMapping) *telemetry.StandardizedCyclingTable {
	rowCount := len(table.Rows)
	out := &telemetry.StandardizedCyclingTable{Extras: map[string][]float64{}}

	columns := map[telemetry.CanonicalKey][]float64{}
	for _, key := range telemetry.MandatoryKeys {
		if header := mapping[key]; header != "" {
			if values, parsed := table.NumericColumn(header); parsed > 0 {
				columns[key] = values
			}
		}
	}

	if voltage, ok := columns[telemetry.KeyVoltage]; ok && nanMax(voltage) > voltagePlausibilityCeiling {
		log.Printf("[Corrector] voltage column %q has max %.1f, hunting for replacement",
			mapping[telemetry.KeyVoltage], nanMax(voltage))
		c.repairVoltage(table, mapping, columns, out)
	}

	for _, key := range telemetry.MandatoryKeys {
		if _, ok := columns[key]; !ok {
			log.Printf("[Corrector] %s missing after correction, filling with 0.0", key)
			columns[key] = make([]float64, rowCount)
			out.Degraded = append(out.Degraded, fmt.Sprintf("%s column unresolved; filled with 0.0", key))
		}
	}

	// Optional canonical columns ride along as extras.
	for _, key := range telemetry.OptionalKeys {
		if header := mapping[key]; header != "" {
			if values, parsed := table.NumericColumn(header); parsed > 0 {
				out.Extras[string(key)] = values
			}
		}
	}

	c.materialize(columns, out, rowCount)
	return out
}

// repairVoltage scores every sibling column and swaps the best positive
// candidate in. When nothing scores above zero the voltage is zeroed out,
// an explicit degraded state rather than a failure.
func (c *Corrector) repairVoltage(
	table *telemetry.RawTable,
	mapping telemetry.ColumnMapping,
	columns map[telemetry.CanonicalKey][]float64,
	out *telemetry.StandardizedCyclingTable,
) {
	voltageHeader := mapping[telemetry.KeyVoltage]

	var candidates []voltageCandidate
	for _, header := range table.Headers {
		if header == voltageHeader {
			continue
		}
		if excludedFromHunt(header) {
			continue
		}

		values, parsed := table.NumericColumn(header)
		if parsed == 0 {
			continue
		}
		finite := finiteValues(values)

		mean, _ := stats.Mean(finite)
		stdDev, _ := stats.StandardDeviation(finite)

		score := 0.0
		// Cell voltage sits in the 2-5V window; module and pack voltages
		// run up to the high hundreds.
		if mean > 2.0 && mean < 5.0 {
			score += 50
		} else if mean > 10.0 && mean < 900.0 {
			score += 20
		}

		name := strings.ToLower(header)
		if strings.Contains(name, "volt") || strings.Contains(name, "u_meas") {
			score += 100
		}
		if strings.Contains(name, "u_meas") {
			score += 100
		}
		if strings.Contains(name, "meas") {
			score += 5
		}
		if stdDev < 0.0001 {
			score -= 50
		}

		if score > 0 {
			candidates = append(candidates, voltageCandidate{header: header, score: score, values: values})
		}
	}

	if len(candidates) == 0 {
		log.Printf("[Corrector] no plausible voltage candidate; zeroing voltage")
		columns[telemetry.KeyVoltage] = make([]float64, len(table.Rows))
		out.Degraded = append(out.Degraded, "voltage implausible and no replacement candidate; voltage zeroed")
		return
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	best := candidates[0]
	log.Printf("[Corrector] swapping voltage to %q (score %.0f)", best.header, best.score)

	// Retain the displaced column rather than dropping it.
	out.Extras[DisplacedVoltageKey] = zeroFillNaN(columns[telemetry.KeyVoltage])
	columns[telemetry.KeyVoltage] = best.values
	out.Degraded = append(out.Degraded,
		fmt.Sprintf("voltage implausible; swapped to %q, original retained as %s", best.header, DisplacedVoltageKey))
}

// materialize drops rows with unparseable mandatory values and aligns extras
// to the surviving rows.
func (c *Corrector) materialize(columns map[telemetry.CanonicalKey][]float64, out *telemetry.StandardizedCyclingTable, rowCount int) {
	timeCol := columns[telemetry.KeyTime]
	voltageCol := columns[telemetry.KeyVoltage]
	currentCol := columns[telemetry.KeyCurrent]

	keep := make([]int, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		if math.IsNaN(timeCol[i]) || math.IsNaN(voltageCol[i]) || math.IsNaN(currentCol[i]) {
			continue
		}
		keep = append(keep, i)
	}

	out.Time = make([]float64, len(keep))
	out.Voltage = make([]float64, len(keep))
	out.Current = make([]float64, len(keep))
	for j, i := range keep {
		out.Time[j] = timeCol[i]
		out.Voltage[j] = voltageCol[i]
		out.Current[j] = currentCol[i]
	}

	for name, values := range out.Extras {
		aligned := make([]float64, len(keep))
		for j, i := range keep {
			if i < len(values) && !math.IsNaN(values[i]) {
				aligned[j] = values[i]
			}
		}
		out.Extras[name] = aligned
	}
}

func excludedFromHunt(header string) bool {
	name := strings.ToLower(header)
	if excludedExactNames[name] {
		return true
	}
	for _, fragment := range excludedNameFragments {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func zeroFillNaN(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			out[i] = v
		}
	}
	return out
}

func nanMax(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if !math.IsNaN(v) && v > m {
			m = v
		}
	}
	return m
}
