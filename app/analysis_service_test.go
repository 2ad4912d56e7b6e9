package app

import (
	"context"
	"fmt"
	"math"
	"testing"

	"battforge/adapters/mapping"
	"battforge/domain/telemetry"
	"battforge/internal/errors"
	"battforge/internal/testkit"
	"battforge/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCyclingLocalMode(t *testing.T) {
	// One hour at 1 A: the full path from raw CSV to metrics and safety.
	service := NewAnalysisService(nil, nil)
	content := testkit.ConstantDischargeCSV(3601, 1.0, 4.2, 3.0)

	report, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:   content,
		Filename:  "discharge.csv",
		LocalMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, mapping.DatasetCycling, report.DatasetType)
	require.NotNil(t, report.Cycling)
	assert.Nil(t, report.Impedance)
	assert.NotEmpty(t, report.ID)

	metrics := report.Cycling.Metrics
	assert.InDelta(t, 1.0, metrics.CapacityAh, 0.01)
	assert.InDelta(t, 60.0, metrics.DurationMinutes, 0.1)
	assert.Equal(t, 1.0, metrics.MaxCurrent)

	// Linear decline, no jitter, no reference: a perfect score.
	assert.Equal(t, 100.0, report.Cycling.Safety.Score)
	assert.InDelta(t, 1.0, report.Cycling.CRate, 0.05)
}

func TestAnalyzeImpedancePath(t *testing.T) {
	service := NewAnalysisService(nil, nil)
	spectrum := testkit.SyntheticRandlesSpectrum(0.05, 0.3, 1e-4, 8.0, 50, 1e5, 0.01)
	content := testkit.EISCSV(spectrum, "freq", "z_real", "z_imag")

	report, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:   content,
		Filename:  "eis.csv",
		LocalMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, mapping.DatasetImpedance, report.DatasetType)
	require.NotNil(t, report.Impedance)
	assert.Nil(t, report.Cycling)

	require.NotNil(t, report.Impedance.Fit)
	assert.InDelta(t, 0.05, report.Impedance.Fit.Parameters.Rs, 0.05*0.05)
	assert.Len(t, report.Impedance.Nyquist, 50)
	assert.NotEmpty(t, report.Impedance.Diagnosis.OverallHealth)
}

func TestAnalyzeImpedanceFitFailureIsNotFatal(t *testing.T) {
	// Three points cannot support a four-parameter fit, but the band
	// diagnosis and the Nyquist data must still come back.
	service := NewAnalysisService(nil, nil)
	content := []byte("freq,z_real,z_imag\n1000,0.1,-0.01\n100,0.15,-0.03\n10,0.2,-0.05\n")

	report, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:   content,
		Filename:  "sparse_eis.csv",
		LocalMode: true,
	})
	require.NoError(t, err)

	require.NotNil(t, report.Impedance)
	assert.Nil(t, report.Impedance.Fit)
	assert.NotEmpty(t, report.Impedance.FitNote)
	assert.Equal(t, 3, report.Impedance.Diagnosis.DataPoints)
	assert.Len(t, report.Impedance.Nyquist, 3)
}

func TestAnalyzeUnparseableUpload(t *testing.T) {
	service := NewAnalysisService(nil, nil)

	_, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:  []byte{},
		Filename: "empty.bin",
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeParseError, errors.GetCode(err))
}

func TestAnalyzeUnknownSignatureFailsWithMappingError(t *testing.T) {
	service := NewAnalysisService(nil, nil)
	content := []byte("alpha,beta,gamma\n1,2,3\n4,5,6\n")

	_, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:   content,
		Filename:  "mystery.csv",
		LocalMode: true,
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeMappingError, errors.GetCode(err))
}

func TestAnalyzeLocalModeSkipsClassifier(t *testing.T) {
	classifier := &testkit.FakeClassifier{
		Signature: &ports.DatasetSignature{DatasetType: mapping.DatasetCycling, Summary: "from classifier"},
	}
	service := NewAnalysisService(classifier, nil)
	content := testkit.ConstantDischargeCSV(10, 1.0, 4.2, 4.1)

	_, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:   content,
		Filename:  "discharge.csv",
		LocalMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, classifier.Calls)
}

func TestAnalyzeSemanticSignatureOutageFallsBack(t *testing.T) {
	classifier := &testkit.FakeClassifier{Err: fmt.Errorf("quota exhausted")}
	service := NewAnalysisService(classifier, nil)
	content := testkit.ConstantDischargeCSV(10, 1.0, 4.2, 4.1)

	report, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:  content,
		Filename: "discharge.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, mapping.DatasetCycling, report.DatasetType)
}

func TestAnalyzeUsesPhysicsReference(t *testing.T) {
	// Reference matching the measurement exactly: no deviation penalty and
	// the trace is attached to the result.
	rows := 100
	trace := &telemetry.ReferenceTrace{
		Time:    make([]float64, rows),
		Voltage: make([]float64, rows),
	}
	for i := 0; i < rows; i++ {
		trace.Time[i] = float64(i)
		trace.Voltage[i] = 4.2 + (3.0-4.2)*float64(i)/float64(rows-1)
	}
	physics := &testkit.FakePhysics{Trace: trace}

	service := NewAnalysisService(nil, physics)
	content := testkit.ConstantDischargeCSV(rows, 1.0, 4.2, 3.0)

	report, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:   content,
		Filename:  "discharge.csv",
		Chemistry: "LFP",
		LocalMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, physics.Calls)
	require.NotNil(t, report.Cycling.Reference)
	assert.Equal(t, 100.0, report.Cycling.Safety.Score)
	assert.Contains(t, report.Cycling.Safety.Breakdown, telemetry.BreakdownPhysics)
}

func TestAnalyzePhysicsOutageDegradesGracefully(t *testing.T) {
	physics := &testkit.FakePhysics{Err: fmt.Errorf("solver offline")}
	service := NewAnalysisService(nil, physics)
	content := testkit.ConstantDischargeCSV(100, 1.0, 4.2, 3.0)

	report, err := service.Analyze(context.Background(), AnalysisRequest{
		Content:   content,
		Filename:  "discharge.csv",
		LocalMode: true,
	})
	require.NoError(t, err)

	assert.Nil(t, report.Cycling.Reference)
	assert.Contains(t, report.Cycling.Safety.Breakdown, telemetry.BreakdownNoReference)
}

func TestEstimateCRate(t *testing.T) {
	cases := []struct {
		metrics telemetry.CyclingMetrics
		want    float64
	}{
		{telemetry.CyclingMetrics{CapacityAh: 2.0, MaxCurrent: 1.0}, 0.5},
		{telemetry.CyclingMetrics{CapacityAh: 1.0, MaxCurrent: 3.0}, 3.0},
		{telemetry.CyclingMetrics{CapacityAh: 0, MaxCurrent: 3.0}, 1.0},
		{telemetry.CyclingMetrics{CapacityAh: 100.0, MaxCurrent: 0.5}, 0.1},
	}
	for _, tc := range cases {
		got := estimateCRate(tc.metrics)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("estimateCRate(%+v) = %v, want %v", tc.metrics, got, tc.want)
		}
	}
}
