package report

import (
	"strings"
	"testing"
	"time"

	"battforge/app"
	"battforge/domain/impedance"
	"battforge/domain/telemetry"

	"github.com/stretchr/testify/assert"
)

func cyclingReport() *app.AnalysisReport {
	return &app.AnalysisReport{
		ID:          "11111111-2222-3333-4444-555555555555",
		Filename:    "discharge.csv",
		DatasetType: "Cycling",
		Summary:     "Time-domain cycling log detected from headers",
		Degraded:    []string{"current column unresolved; filled with 0.0"},
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Cycling: &app.CyclingResult{
			Metrics: telemetry.CyclingMetrics{
				CapacityAh:      1.0,
				EnergyWh:        3.7,
				DurationMinutes: 60,
				AvgVoltage:      3.7,
				MaxCurrent:      1.0,
			},
			Safety: telemetry.SafetyAudit{
				Score:     87.5,
				Breakdown: map[string]float64{telemetry.BreakdownStability: 12.5},
			},
			CRate: 1.0,
		},
	}
}

func impedanceReport() *app.AnalysisReport {
	return &app.AnalysisReport{
		ID:          "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		Filename:    "eis.csv",
		DatasetType: "Impedance",
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Impedance: &app.ImpedanceResult{
			FitNote: "equivalent-circuit fit needs at least 4 spectrum points",
			Diagnosis: impedance.Diagnosis{
				Ohmic:         impedance.LayerDiagnosis{Status: impedance.StatusNormal, ValueOhm: 0.05},
				Kinetics:      impedance.LayerDiagnosis{Status: impedance.StatusNormal, ValueOhm: 0.3},
				Diffusion:     impedance.LayerDiagnosis{Status: impedance.StatusNormal},
				OverallHealth: impedance.HealthHealthy,
				DataPoints:    3,
			},
		},
	}
}

func TestMarkdownCyclingSections(t *testing.T) {
	md := Markdown(cyclingReport())

	assert.Contains(t, md, "# Analysis Report 11111111")
	assert.Contains(t, md, "discharge.csv")
	assert.Contains(t, md, "## Electrochemical Metrics")
	assert.Contains(t, md, "| Capacity | 1.0000 Ah |")
	assert.Contains(t, md, "## Safety Score: 87.5 / 100")
	assert.Contains(t, md, "voltage_stability_penalty")
	assert.Contains(t, md, "## Degraded-State Notes")
	assert.Contains(t, md, "current column unresolved")
	assert.NotContains(t, md, "Randles")
}

func TestMarkdownImpedanceWithoutFit(t *testing.T) {
	md := Markdown(impedanceReport())

	assert.Contains(t, md, "## Equivalent Circuit (Randles)")
	assert.Contains(t, md, "Fit unavailable")
	assert.Contains(t, md, "## Band Diagnosis (3 points)")
	assert.Contains(t, md, "**Overall Health:** Healthy")
	assert.NotContains(t, md, "Electrochemical Metrics")
}

func TestHTMLRendersMarkdown(t *testing.T) {
	out := string(HTML(cyclingReport()))

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<table>")
	assert.True(t, strings.Contains(out, "discharge.csv"))
}
