package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySignature(t *testing.T) {
	cases := []struct {
		name     string
		headers  []string
		wantType string
	}{
		{"cycling log", []string{"time", "voltage", "current"}, DatasetCycling},
		{"cycler export", []string{"Test Time (s)", "Voltage (V)", "Cycle Index"}, DatasetCycling},
		{"impedance sweep", []string{"freq", "z_real", "z_imag"}, DatasetImpedance},
		{"potentiostat primes", []string{"Frequency (Hz)", "Z'", `Z"`}, DatasetImpedance},
		{"ambiguous leans impedance", []string{"time", "freq"}, DatasetImpedance},
		{"unrecognizable", []string{"alpha", "beta"}, DatasetUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifySignature(rawTable(tc.headers))
			assert.Equal(t, tc.wantType, got.DatasetType)
			assert.NotEmpty(t, got.Summary)
		})
	}
}

func TestClassifySignatureMarksStandardCycling(t *testing.T) {
	got := ClassifySignature(rawTable([]string{"time", "voltage", "current"}))
	assert.True(t, got.IsStandardCycling)

	got = ClassifySignature(rawTable([]string{"freq", "z_real"}))
	assert.False(t, got.IsStandardCycling)
}
