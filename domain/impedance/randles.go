package impedance

import (
	"math"

	"battforge/internal/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Randles circuit with Warburg element:
//
//	Zw     = sigma * w^-0.5 * (1 - j)
//	Zf     = Rct + Zw
//	Zpar   = Zf / (1 + j*w*Cdl*Zf)
//	Z      = Rs + Zpar
//
// Fitted parameters are [Rs, Rct, Cdl, sigma], all constrained >= 0.

const (
	fitCurvePoints   = 50
	maxFitIterations = 200
	negativePenalty  = 1e6
)

// ModelImpedance evaluates the Randles model at angular frequency w.
func ModelImpedance(rs, rct, cdl, sigma, w float64) complex128 {
	zw := complex(sigma*math.Pow(w, -0.5), -sigma*math.Pow(w, -0.5))
	zf := complex(rct, 0) + zw
	zpar := zf / (1 + complex(0, w*cdl)*zf)
	return complex(rs, 0) + zpar
}

// FitRandles fits the equivalent circuit to a measured sweep with a
// box-constrained Levenberg-Marquardt loop. Returns FitError for degenerate
// input (fewer than 4 points, a single repeated frequency) or when the
// iteration limit is reached before the cost settles.
func FitRandles(spectrum Spectrum) (*RandlesFit, error) {
	n := len(spectrum)
	if n < 4 {
		return nil, errors.FitError("equivalent-circuit fit needs at least 4 spectrum points")
	}

	freqs := spectrum.Frequencies()
	fMin := floats.Min(freqs)
	fMax := floats.Max(freqs)
	if fMin == fMax {
		return nil, errors.FitError("all spectrum frequencies are identical")
	}
	if fMin <= 0 {
		return nil, errors.FitError("spectrum contains non-positive frequencies")
	}

	omega := make([]float64, n)
	for i, f := range freqs {
		omega[i] = 2 * math.Pi * f
	}
	zReal := spectrum.Reals()
	zImag := spectrum.Imags()

	residuals := func(p []float64) []float64 {
		res := make([]float64, 2*n)
		for _, v := range p {
			if v < 0 {
				for i := range res {
					res[i] = negativePenalty
				}
				return res
			}
		}
		for i, w := range omega {
			z := ModelImpedance(p[0], p[1], p[2], p[3], w)
			res[i] = zReal[i] - real(z)
			res[n+i] = zImag[i] - imag(z)
		}
		return res
	}

	// Initial guesses: Rs from the high-frequency intercept, Rct from the
	// semicircle diameter, Cdl and sigma from typical cell magnitudes.
	p := []float64{
		floats.Min(zReal),
		floats.Max(zReal) - floats.Min(zReal),
		1e-4,
		10.0,
	}

	p, cost, converged := levenbergMarquardt(residuals, p)
	if !converged {
		return nil, errors.FitError("equivalent-circuit fit did not converge")
	}

	params := RandlesParameters{
		Rs:         p[0],
		Rct:        p[1],
		Cdl:        p[2],
		Sigma:      p[3],
		FitQuality: cost,
	}

	return &RandlesFit{
		Parameters: params,
		Curve:      reconstructCurve(params, fMin, fMax),
	}, nil
}

// levenbergMarquardt minimizes the sum of squared residuals with damped
// normal-equation steps and projection onto the non-negative orthant.
func levenbergMarquardt(residuals func([]float64) []float64, p0 []float64) (p []float64, cost float64, converged bool) {
	p = append([]float64(nil), p0...)
	r := residuals(p)
	cost = sumSquares(r)
	lambda := 1e-3

	for iter := 0; iter < maxFitIterations; iter++ {
		jac := numericJacobian(residuals, p, r)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		grad := mat.NewVecDense(len(p), nil)
		grad.MulVec(jac.T(), mat.NewVecDense(len(r), r))

		accepted := false
		for attempt := 0; attempt < 24; attempt++ {
			damped := mat.DenseCopyOf(&jtj)
			for i := 0; i < len(p); i++ {
				damped.Set(i, i, damped.At(i, i)+lambda)
			}

			step := mat.NewVecDense(len(p), nil)
			if err := step.SolveVec(damped, grad); err != nil {
				lambda *= 10
				continue
			}

			trial := make([]float64, len(p))
			for i := range p {
				trial[i] = p[i] + step.AtVec(i)
				if trial[i] < 0 {
					trial[i] = 0
				}
			}

			trialRes := residuals(trial)
			trialCost := sumSquares(trialRes)
			if trialCost < cost {
				improvement := cost - trialCost
				p, r, cost = trial, trialRes, trialCost
				lambda = math.Max(lambda/10, 1e-12)
				accepted = true

				if improvement <= 1e-12*(cost+1e-12) {
					return p, cost, true
				}
				break
			}

			lambda *= 10
			if lambda > 1e12 {
				break
			}
		}

		if !accepted {
			// No damped step improves the cost: the minimum is reached.
			return p, cost, iter > 0
		}
		if cost < 1e-18 {
			return p, cost, true
		}
	}

	return p, cost, false
}

// numericJacobian builds the forward-difference Jacobian of the residual
// vector. The residual sign convention means dr/dp = -dZ/dp.
func numericJacobian(residuals func([]float64) []float64, p, r []float64) *mat.Dense {
	jac := mat.NewDense(len(r), len(p), nil)
	for j := range p {
		h := 1e-7 * math.Max(math.Abs(p[j]), 1e-7)
		bumped := append([]float64(nil), p...)
		bumped[j] += h
		rb := residuals(bumped)
		for i := range r {
			jac.Set(i, j, -(rb[i]-r[i])/h)
		}
	}
	return jac
}

// reconstructCurve samples the fitted model at 50 log-spaced frequencies
// over the measured span for smooth Nyquist overlay plotting.
func reconstructCurve(params RandlesParameters, fMin, fMax float64) []NyquistPoint {
	grid := make([]float64, fitCurvePoints)
	floats.LogSpan(grid, fMin, fMax)

	curve := make([]NyquistPoint, len(grid))
	for i, f := range grid {
		z := ModelImpedance(params.Rs, params.Rct, params.Cdl, params.Sigma, 2*math.Pi*f)
		y := imag(z)
		if y < 0 {
			y = -y
		}
		curve[i] = NyquistPoint{Freq: f, ZReal: real(z), ZImag: imag(z), YPlot: y}
	}
	return curve
}

func sumSquares(v []float64) float64 {
	total := 0.0
	for _, x := range v {
		if math.IsNaN(x) {
			return math.Inf(1)
		}
		total += x * x
	}
	return total
}
