package telemetry

import (
	"math"
	"testing"
)

func constantDischargeTable(points int, stepS, currentA, voltageV float64) *StandardizedCyclingTable {
	t := &StandardizedCyclingTable{
		Time:    make([]float64, points),
		Voltage: make([]float64, points),
		Current: make([]float64, points),
		Extras:  map[string][]float64{},
	}
	for i := 0; i < points; i++ {
		t.Time[i] = float64(i) * stepS
		t.Voltage[i] = voltageV
		t.Current[i] = currentA
	}
	return t
}

func TestCalculateMetricsConstantDischarge(t *testing.T) {
	// 1 A held for exactly one hour must integrate to 1 Ah.
	table := constantDischargeTable(101, 36.0, 1.0, 3.7)

	metrics := CalculateMetrics(table)

	if math.Abs(metrics.CapacityAh-1.0) > 0.01 {
		t.Errorf("capacity = %v, want 1.0 +- 0.01", metrics.CapacityAh)
	}
	if math.Abs(metrics.EnergyWh-3.7) > 0.05 {
		t.Errorf("energy = %v, want about 3.7", metrics.EnergyWh)
	}
	if metrics.DurationMinutes != 60.0 {
		t.Errorf("duration = %v, want 60.0", metrics.DurationMinutes)
	}
	if metrics.AvgVoltage != 3.7 {
		t.Errorf("avg voltage = %v, want 3.7", metrics.AvgVoltage)
	}
	if metrics.MaxCurrent != 1.0 {
		t.Errorf("max current = %v, want 1.0", metrics.MaxCurrent)
	}
}

func TestCalculateMetricsNegativeCurrent(t *testing.T) {
	// Discharge logs often record negative current; magnitude must be used.
	table := constantDischargeTable(101, 36.0, -2.0, 3.5)

	metrics := CalculateMetrics(table)

	if math.Abs(metrics.CapacityAh-2.0) > 0.01 {
		t.Errorf("capacity = %v, want 2.0 +- 0.01", metrics.CapacityAh)
	}
	if metrics.MaxCurrent != 2.0 {
		t.Errorf("max current = %v, want 2.0", metrics.MaxCurrent)
	}
}

func TestCalculateMetricsUnsortedTime(t *testing.T) {
	sorted := constantDischargeTable(60, 60.0, 1.5, 3.6)
	shuffled := &StandardizedCyclingTable{
		Extras: map[string][]float64{},
	}
	// Reverse order; integration must not produce a negative capacity.
	for i := sorted.Len() - 1; i >= 0; i-- {
		shuffled.Time = append(shuffled.Time, sorted.Time[i])
		shuffled.Voltage = append(shuffled.Voltage, sorted.Voltage[i])
		shuffled.Current = append(shuffled.Current, sorted.Current[i])
	}

	got := CalculateMetrics(shuffled)
	want := CalculateMetrics(sorted)

	if got != want {
		t.Errorf("metrics differ for shuffled input: got %+v want %+v", got, want)
	}
	if got.CapacityAh <= 0 {
		t.Errorf("capacity = %v, want positive", got.CapacityAh)
	}
}

func TestCalculateMetricsDegenerateInputs(t *testing.T) {
	cases := []struct {
		name  string
		table *StandardizedCyclingTable
	}{
		{"nil table", nil},
		{"empty table", &StandardizedCyclingTable{Extras: map[string][]float64{}}},
		{"single row", constantDischargeTable(1, 1.0, 1.0, 3.7)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := CalculateMetrics(tc.table)
			if metrics.CapacityAh != 0 || metrics.EnergyWh != 0 {
				t.Errorf("expected zero integrals, got %+v", metrics)
			}
		})
	}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"3.7", 3.7, true},
		{" 3.7 ", 3.7, true},
		{"-1.5e2", -150, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"12,5", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumeric(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseNumeric(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
