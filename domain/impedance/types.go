package impedance

import "sort"

// ImpedancePoint is a single frequency-domain measurement. ZImagOhm carries
// the raw sign convention: a capacitive response is typically negative.
type ImpedancePoint struct {
	FrequencyHz float64 `json:"freq"`
	ZRealOhm    float64 `json:"z_real"`
	ZImagOhm    float64 `json:"z_imag"`
}

// Spectrum is an ordered impedance sweep.
type Spectrum []ImpedancePoint

// SortByFrequencyDesc orders the sweep high frequency first, the standard
// presentation for Nyquist data.
func (s Spectrum) SortByFrequencyDesc() {
	sort.SliceStable(s, func(a, b int) bool {
		return s[a].FrequencyHz > s[b].FrequencyHz
	})
}

// Frequencies returns the frequency column.
func (s Spectrum) Frequencies() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.FrequencyHz
	}
	return out
}

// Reals returns the real impedance column.
func (s Spectrum) Reals() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.ZRealOhm
	}
	return out
}

// Imags returns the raw imaginary impedance column.
func (s Spectrum) Imags() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.ZImagOhm
	}
	return out
}

// NyquistPoint is a plot-oriented sample: YPlot is -Im(Z) when the imaginary
// part is negative so capacitive loops render above the axis.
type NyquistPoint struct {
	Freq  float64 `json:"freq"`
	ZReal float64 `json:"z_real"`
	ZImag float64 `json:"z_imag"`
	YPlot float64 `json:"y_plot"`
}

// NyquistData converts the sweep to plot points.
func (s Spectrum) NyquistData() []NyquistPoint {
	out := make([]NyquistPoint, len(s))
	for i, p := range s {
		y := p.ZImagOhm
		if y < 0 {
			y = -y
		}
		out[i] = NyquistPoint{Freq: p.FrequencyHz, ZReal: p.ZRealOhm, ZImag: p.ZImagOhm, YPlot: y}
	}
	return out
}

// RandlesParameters are the fitted equivalent-circuit values, each
// box-constrained to be non-negative.
type RandlesParameters struct {
	Rs         float64 `json:"r_s"`
	Rct        float64 `json:"r_ct"`
	Cdl        float64 `json:"c_dl"`
	Sigma      float64 `json:"sigma"`
	FitQuality float64 `json:"fit_quality"`
}

// RandlesFit is the fitter output: parameters plus a smooth reconstructed
// curve over the measured frequency span.
type RandlesFit struct {
	Parameters RandlesParameters `json:"parameters"`
	Curve      []NyquistPoint    `json:"fit_curve"`
}

// Band statuses reported by the diagnoser.
const (
	StatusNormal           = "Normal"
	StatusWarning          = "Warning"
	StatusDegraded         = "Degraded"
	StatusCritical         = "Critical"
	StatusEstimated        = "Estimated"
	StatusAnomalous        = "Anomalous"
	StatusInsufficientData = "Insufficient data"
	StatusNoLowFreqData    = "No low-freq data"
)

// Overall health values.
const (
	HealthHealthy     = "Healthy"
	HealthDegraded    = "Degraded"
	HealthMinorIssues = "Minor Issues"
)

// LayerDiagnosis is one frequency band's interpretation.
type LayerDiagnosis struct {
	Status      string  `json:"status"`
	ValueOhm    float64 `json:"value_ohm"`
	Description string  `json:"description"`
}

// Diagnosis is the multi-layer interpretation of a spectrum.
type Diagnosis struct {
	Ohmic         LayerDiagnosis `json:"ohmic"`
	Kinetics      LayerDiagnosis `json:"kinetics"`
	Diffusion     LayerDiagnosis `json:"diffusion"`
	OverallHealth string         `json:"overall_health"`
	DataPoints    int            `json:"data_points"`
	Summary       string         `json:"summary"`
}
