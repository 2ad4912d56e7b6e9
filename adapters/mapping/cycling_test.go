package mapping

import (
	"context"
	"fmt"
	"testing"

	"battforge/domain/telemetry"
	"battforge/internal/errors"
	"battforge/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTable(headers []string, rows ...[]string) *telemetry.RawTable {
	return &telemetry.RawTable{Headers: headers, Rows: rows}
}

func TestResolveRegexOnly(t *testing.T) {
	cases := []struct {
		name    string
		headers []string
		want    telemetry.ColumnMapping
	}{
		{
			name:    "canonical names",
			headers: []string{"time", "voltage", "current"},
			want: telemetry.ColumnMapping{
				telemetry.KeyTime:    "time",
				telemetry.KeyVoltage: "voltage",
				telemetry.KeyCurrent: "current",
			},
		},
		{
			name:    "instrumented units",
			headers: []string{"Test Time (s)", "Voltage (V)", "Current (A)", "Capacity (Ah)"},
			want: telemetry.ColumnMapping{
				telemetry.KeyTime:     "Test Time (s)",
				telemetry.KeyVoltage:  "Voltage (V)",
				telemetry.KeyCurrent:  "Current (A)",
				telemetry.KeyCapacity: "Capacity (Ah)",
			},
		},
		{
			name:    "terse single letters",
			headers: []string{"t", "V", "I", "Temp_C"},
			want: telemetry.ColumnMapping{
				telemetry.KeyTime:        "t",
				telemetry.KeyVoltage:     "V",
				telemetry.KeyCurrent:     "I",
				telemetry.KeyTemperature: "Temp_C",
			},
		},
		{
			name:    "underscored exports",
			headers: []string{"test_time", "cell_voltage_v", "amperage", "SOC"},
			want: telemetry.ColumnMapping{
				telemetry.KeyTime:    "test_time",
				telemetry.KeyVoltage: "cell_voltage_v",
				telemetry.KeyCurrent: "amperage",
				telemetry.KeySOC:     "SOC",
			},
		},
	}

	mapper := NewCyclingMapper(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := mapper.Resolve(context.Background(), rawTable(tc.headers))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	table := rawTable([]string{"Test Time (s)", "Voltage (V)", "Current (A)"})
	mapper := NewCyclingMapper(nil)

	first, err := mapper.Resolve(context.Background(), table)
	require.NoError(t, err)
	second, err := mapper.Resolve(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolveFailsOnUnmappableHeaders(t *testing.T) {
	table := rawTable([]string{"alpha", "beta", "gamma"})

	_, err := NewCyclingMapper(nil).Resolve(context.Background(), table)
	require.Error(t, err)
	assert.Equal(t, errors.CodeMappingError, errors.GetCode(err))
	assert.Contains(t, err.Error(), "alpha")
}

func TestResolvePrefersValidSemanticMapping(t *testing.T) {
	table := rawTable([]string{"ts", "u_cell", "i_cell"})
	classifier := &testkit.FakeClassifier{
		CyclingCols: telemetry.ColumnMapping{
			telemetry.KeyTime:    "ts",
			telemetry.KeyVoltage: "u_cell",
			telemetry.KeyCurrent: "i_cell",
		},
	}

	got, err := NewCyclingMapper(classifier).Resolve(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, classifier.CyclingCols, got)
	assert.Equal(t, 1, classifier.Calls)
}

func TestResolveRejectsInventedSemanticHeaders(t *testing.T) {
	// The classifier points at a header the table does not have; the regex
	// stage must take over.
	table := rawTable([]string{"time", "voltage", "current"})
	classifier := &testkit.FakeClassifier{
		CyclingCols: telemetry.ColumnMapping{
			telemetry.KeyTime:    "timestamp_invented",
			telemetry.KeyVoltage: "voltage",
			telemetry.KeyCurrent: "current",
		},
	}

	got, err := NewCyclingMapper(classifier).Resolve(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, "time", got[telemetry.KeyTime])
}

func TestResolveSurvivesClassifierOutage(t *testing.T) {
	table := rawTable([]string{"time", "voltage", "current"})
	classifier := &testkit.FakeClassifier{Err: fmt.Errorf("upstream timeout")}

	got, err := NewCyclingMapper(classifier).Resolve(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, "voltage", got[telemetry.KeyVoltage])
}

func TestRegexResolveClaimsHeaderOnce(t *testing.T) {
	// "time" must not be claimed by both the time key and anything else;
	// each header resolves to at most one canonical key.
	mapping := regexResolve([]string{"time", "time_2", "voltage", "current"})

	assert.Equal(t, "time", mapping[telemetry.KeyTime])
	claimed := map[string]int{}
	for _, header := range mapping {
		claimed[header]++
	}
	for header, count := range claimed {
		assert.Equalf(t, 1, count, "header %q claimed %d times", header, count)
	}
}
