package impedance

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Frequency band boundaries in Hz. High frequency probes the ohmic
// resistance, mid frequency the charge-transfer semicircle, low frequency
// the Warburg diffusion tail.
const (
	highBandFloorHz = 1000.0
	midBandFloorHz  = 1.0
)

// Diagnose partitions the spectrum by frequency band and interprets each
// layer. It never fails: empty bands degrade to the documented statuses.
func Diagnose(spectrum Spectrum) Diagnosis {
	rOhmic, ohmicStatus := diagnoseOhmic(spectrum)
	rCt, kineticsStatus := diagnoseKinetics(spectrum, rOhmic)
	diffusionStatus := diagnoseDiffusion(spectrum)

	overall := HealthMinorIssues
	switch {
	case ohmicStatus == StatusNormal && kineticsStatus == StatusNormal && diffusionStatus == StatusNormal:
		overall = HealthHealthy
	case kineticsStatus == StatusCritical || ohmicStatus == StatusWarning:
		overall = HealthDegraded
	}

	return Diagnosis{
		Ohmic: LayerDiagnosis{
			Status:      ohmicStatus,
			ValueOhm:    roundOhm(rOhmic),
			Description: fmt.Sprintf("Ohmic resistance: %.4f Ohm", rOhmic),
		},
		Kinetics: LayerDiagnosis{
			Status:      kineticsStatus,
			ValueOhm:    roundOhm(rCt),
			Description: fmt.Sprintf("Charge transfer resistance: %.4f Ohm", rCt),
		},
		Diffusion: LayerDiagnosis{
			Status:      diffusionStatus,
			Description: fmt.Sprintf("Diffusion behavior: %s", diffusionStatus),
		},
		OverallHealth: overall,
		DataPoints:    len(spectrum),
		Summary: fmt.Sprintf("EIS analysis shows %s cell condition. R_ohmic=%.4f Ohm, R_ct=%.4f Ohm",
			strings.ToLower(overall), rOhmic, rCt),
	}
}

// diagnoseOhmic reads the series resistance from the high-frequency band.
// With no band coverage it falls back to the single highest-frequency point
// and marks the value as estimated.
func diagnoseOhmic(spectrum Spectrum) (float64, string) {
	rOhmic := math.Inf(1)
	found := false
	for _, p := range spectrum {
		if p.FrequencyHz > highBandFloorHz && p.ZRealOhm < rOhmic {
			rOhmic = p.ZRealOhm
			found = true
		}
	}
	if found {
		if rOhmic < 0.1 {
			return rOhmic, StatusNormal
		}
		return rOhmic, StatusWarning
	}

	if len(spectrum) == 0 {
		return 0, StatusEstimated
	}
	highest := spectrum[0]
	for _, p := range spectrum[1:] {
		if p.FrequencyHz > highest.FrequencyHz {
			highest = p
		}
	}
	return highest.ZRealOhm, StatusEstimated
}

// diagnoseKinetics estimates the charge-transfer resistance from the
// mid-frequency semicircle: Re(Z) at the |Im(Z)| peak minus the ohmic
// intercept.
func diagnoseKinetics(spectrum Spectrum, rOhmic float64) (float64, string) {
	peakImag := -1.0
	rCt := 0.0
	found := false
	for _, p := range spectrum {
		if p.FrequencyHz < midBandFloorHz || p.FrequencyHz > highBandFloorHz {
			continue
		}
		if absImag := math.Abs(p.ZImagOhm); absImag > peakImag {
			peakImag = absImag
			rCt = p.ZRealOhm - rOhmic
			found = true
		}
	}
	if !found {
		return 0, StatusInsufficientData
	}

	switch {
	case rCt < 0.5:
		return rCt, StatusNormal
	case rCt < 1.0:
		return rCt, StatusDegraded
	default:
		return rCt, StatusCritical
	}
}

// diagnoseDiffusion checks the Warburg tail: a healthy diffusion branch has
// a ~45 degree slope of |Im(Z)| against Re(Z) in the low-frequency band.
func diagnoseDiffusion(spectrum Spectrum) string {
	var re, absIm []float64
	for _, p := range spectrum {
		if p.FrequencyHz < midBandFloorHz {
			re = append(re, p.ZRealOhm)
			absIm = append(absIm, math.Abs(p.ZImagOhm))
		}
	}
	if len(re) == 0 {
		return StatusNoLowFreqData
	}
	if len(re) < 3 {
		return StatusInsufficientData
	}

	_, slope := stat.LinearRegression(re, absIm, nil, false)
	if slope > 0.8 && slope < 1.2 {
		return StatusNormal
	}
	return StatusAnomalous
}

func roundOhm(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return math.Round(v*10000) / 10000
}
