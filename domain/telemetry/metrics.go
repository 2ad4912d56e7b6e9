package telemetry

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

var nan = math.NaN()

// CalculateMetrics derives the key electrochemical metrics from a
// standardized cycling table. Capacity is coulomb counting over |I|; energy
// integrates |I*V|. An empty table yields zeros rather than an error,
// matching the engine's degrade-don't-fail policy.
func CalculateMetrics(table *StandardizedCyclingTable) CyclingMetrics {
	if table == nil || table.Len() == 0 {
		return CyclingMetrics{}
	}

	timeS, voltageV, currentA := sortedByTime(table)

	absCurrent := make([]float64, len(currentA))
	power := make([]float64, len(currentA))
	for i := range currentA {
		absCurrent[i] = math.Abs(currentA[i])
		power[i] = math.Abs(currentA[i] * voltageV[i])
	}

	capacityAh := trapezoid(absCurrent, timeS) / 3600.0
	energyWh := trapezoid(power, timeS) / 3600.0
	durationS := timeS[len(timeS)-1] - timeS[0]

	avgVoltage, _ := stats.Mean(voltageV)
	maxCurrent, _ := stats.Max(absCurrent)

	return CyclingMetrics{
		CapacityAh:      roundTo(capacityAh, 4),
		EnergyWh:        roundTo(energyWh, 4),
		DurationMinutes: roundTo(durationS/60.0, 2),
		AvgVoltage:      roundTo(avgVoltage, 2),
		MaxCurrent:      roundTo(maxCurrent, 2),
	}
}

// sortedByTime returns the three mandatory series ordered by ascending time
// without mutating the input table.
func sortedByTime(table *StandardizedCyclingTable) (timeS, voltageV, currentA []float64) {
	n := table.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return table.Time[order[a]] < table.Time[order[b]]
	})

	timeS = make([]float64, n)
	voltageV = make([]float64, n)
	currentA = make([]float64, n)
	for i, idx := range order {
		timeS[i] = table.Time[idx]
		voltageV[i] = table.Voltage[idx]
		currentA[i] = table.Current[idx]
	}
	return timeS, voltageV, currentA
}

// trapezoid integrates y over x using the composite trapezoidal rule.
func trapezoid(y, x []float64) float64 {
	if len(y) < 2 || len(y) != len(x) {
		return 0
	}
	total := 0.0
	for i := 1; i < len(y); i++ {
		total += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2.0
	}
	return total
}

func roundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
