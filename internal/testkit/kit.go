package testkit

import (
	"context"
	"fmt"
	"math"
	"strings"

	"battforge/domain/impedance"
	"battforge/domain/telemetry"
	"battforge/ports"

	"gonum.org/v1/gonum/floats"
)

// FakeClassifier is a deterministic stand-in for the semantic classifier
// collaborator. Configure the response fields, or Err to simulate an outage.
type FakeClassifier struct {
	Signature   *ports.DatasetSignature
	CyclingCols telemetry.ColumnMapping
	EISCols     map[string]string
	Err         error

	// Calls counts every port invocation, letting tests assert the
	// collaborator was (or was not) consulted.
	Calls int
}

var _ ports.SemanticClassifierPort = (*FakeClassifier)(nil)

func (f *FakeClassifier) ClassifySignature(ctx context.Context, headers []string, sampleCSV string) (*ports.DatasetSignature, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Signature == nil {
		return nil, fmt.Errorf("no signature configured")
	}
	return f.Signature, nil
}

func (f *FakeClassifier) MapCyclingColumns(ctx context.Context, headers []string, sampleCSV string) (telemetry.ColumnMapping, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.CyclingCols, nil
}

func (f *FakeClassifier) MapEISColumns(ctx context.Context, headers []string, sampleCSV string) (map[string]string, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.EISCols, nil
}

// FakePhysics returns a canned reference trace, or an error.
type FakePhysics struct {
	Trace *telemetry.ReferenceTrace
	Err   error
	Calls int
}

var _ ports.PhysicsReferencePort = (*FakePhysics)(nil)

func (f *FakePhysics) GenerateReference(ctx context.Context, chemistry string, cRate, temperatureC float64) (*telemetry.ReferenceTrace, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Trace, nil
}

// SyntheticRandlesSpectrum evaluates the Randles model on log-spaced
// frequencies between fMax and fMin, giving fitters a noise-free target.
func SyntheticRandlesSpectrum(rs, rct, cdl, sigma float64, points int, fMax, fMin float64) impedance.Spectrum {
	freqs := make([]float64, points)
	floats.LogSpan(freqs, fMax, fMin)

	spectrum := make(impedance.Spectrum, points)
	for i, f := range freqs {
		w := 2 * math.Pi * f
		z := impedance.ModelImpedance(rs, rct, cdl, sigma, w)
		spectrum[i] = impedance.ImpedancePoint{
			FrequencyHz: f,
			ZRealOhm:    real(z),
			ZImagOhm:    imag(z),
		}
	}
	return spectrum
}

// ConstantDischargeCSV renders a cycling log with fixed current and linearly
// declining voltage: rows seconds apart, headers time_s, voltage_v, current_a.
func ConstantDischargeCSV(rows int, currentA, startV, endV float64) []byte {
	var b strings.Builder
	b.WriteString("time_s,voltage_v,current_a\n")
	for i := 0; i < rows; i++ {
		frac := 0.0
		if rows > 1 {
			frac = float64(i) / float64(rows-1)
		}
		v := startV + (endV-startV)*frac
		fmt.Fprintf(&b, "%d,%.4f,%.3f\n", i, v, currentA)
	}
	return []byte(b.String())
}

// EISCSV renders an impedance sweep as CSV with the given headers.
func EISCSV(spectrum impedance.Spectrum, freqHeader, realHeader, imagHeader string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,%s,%s\n", freqHeader, realHeader, imagHeader)
	for _, p := range spectrum {
		fmt.Fprintf(&b, "%g,%g,%g\n", p.FrequencyHz, p.ZRealOhm, p.ZImagOhm)
	}
	return []byte(b.String())
}

// StandardTable builds a standardized cycling table directly from series.
func StandardTable(timeS, voltageV, currentA []float64) *telemetry.StandardizedCyclingTable {
	return &telemetry.StandardizedCyclingTable{
		Time:    timeS,
		Voltage: voltageV,
		Current: currentA,
		Extras:  map[string][]float64{},
	}
}
