package telemetry

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/interp"
)

// Breakdown keys reported by ScoreSafety.
const (
	BreakdownStability       = "voltage_stability_penalty"
	BreakdownPhysics         = "physics_deviation_penalty"
	BreakdownRMSE            = "rmse_v"
	BreakdownNoReference     = "reference_unavailable_penalty"
	minReferenceOverlapCount = 10
)

// ScoreSafety computes the deterministic 0-100 safety score.
//
// The stability penalty derives from the variance of dV: micro-shorts and
// contact faults show up as jitter in the first derivative. When a physics
// reference trace is available, the measured curve is compared against it
// over the overlapping time window and the RMSE is penalized. Without a
// reference the stability penalty is subtracted a second time, reported
// under reference_unavailable_penalty.
func ScoreSafety(table *StandardizedCyclingTable, reference *ReferenceTrace) SafetyAudit {
	score := 100.0
	breakdown := make(map[string]float64)

	stabilityPenalty := stabilityPenalty(table)
	score -= stabilityPenalty
	breakdown[BreakdownStability] = roundTo(stabilityPenalty, 1)

	if reference != nil && len(reference.Time) > 0 {
		if rmse, ok := referenceRMSE(table, reference); ok {
			penalty := clamp(rmse*100, 0, 40)
			score -= penalty
			breakdown[BreakdownPhysics] = roundTo(penalty, 1)
			breakdown[BreakdownRMSE] = roundTo(rmse, 4)
		} else {
			breakdown[BreakdownPhysics] = 0
		}
	} else {
		score -= stabilityPenalty
		breakdown[BreakdownNoReference] = roundTo(stabilityPenalty, 1)
	}

	return SafetyAudit{
		Score:     roundTo(clamp(score, 0, 100), 1),
		Breakdown: breakdown,
	}
}

// stabilityPenalty is min(40, var(diff(V)) * 1e4 * 10).
func stabilityPenalty(table *StandardizedCyclingTable) float64 {
	if table == nil || table.Len() < 3 {
		return 0
	}
	dv := make([]float64, table.Len()-1)
	for i := 1; i < table.Len(); i++ {
		dv[i-1] = table.Voltage[i] - table.Voltage[i-1]
	}
	dvVar, err := stats.PopulationVariance(dv)
	if err != nil {
		return 0
	}
	return math.Min(40, dvVar*10000*10)
}

// referenceRMSE compares measured voltage against the reference trace over
// the overlapping time window. Requires more than ten overlapping points;
// the reference voltage is linearly interpolated onto measured timestamps.
func referenceRMSE(table *StandardizedCyclingTable, reference *ReferenceTrace) (float64, bool) {
	if table == nil || table.Len() == 0 || len(reference.Time) != len(reference.Voltage) || len(reference.Time) < 2 {
		return 0, false
	}

	tMin := math.Max(minOf(reference.Time), minOf(table.Time))
	tMax := math.Min(maxOf(reference.Time), maxOf(table.Time))

	var overlapT, overlapV []float64
	for i, t := range table.Time {
		if t >= tMin && t <= tMax {
			overlapT = append(overlapT, t)
			overlapV = append(overlapV, table.Voltage[i])
		}
	}
	if len(overlapT) <= minReferenceOverlapCount {
		return 0, false
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(reference.Time, reference.Voltage); err != nil {
		return 0, false
	}

	sumSq := 0.0
	for i, t := range overlapT {
		diff := overlapV[i] - pl.Predict(t)
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(overlapT))), true
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
