// Package lgd implements Loss-Given-Default models: time-decay curves,
// guarantee blending and the per-loan LGD dispatch. All functions are pure
// and every returned LGD lies in [0, 1].
package lgd

import (
	"math"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

// DefaultLGD is used when a constant-LGD loan carries no value.
const DefaultLGD = 0.45

// defaultLogRate is the logarithmic model rate when none is configured.
const defaultLogRate = 0.1

// Clamp bounds v to [0, 1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Linear returns v0 + rate·t.
func Linear(v0, t float64, p models.LGDModelParams) float64 {
	return Clamp(v0 + deref(p.Rate, 0)*t)
}

// Exponential grows or decays v0 over t years. Appreciation, depreciation
// and half-life are checked in that order; the first present one wins.
func Exponential(v0, t float64, p models.LGDModelParams) float64 {
	switch {
	case p.AppreciationRate != nil:
		return Clamp(v0 * math.Pow(1+*p.AppreciationRate, t))
	case p.DepreciationRate != nil:
		return Clamp(v0 * math.Pow(1-*p.DepreciationRate, t))
	case p.HalfLife != nil && *p.HalfLife != 0:
		return Clamp(v0 * math.Pow(0.5, t / *p.HalfLife))
	default:
		return Clamp(v0)
	}
}

// Logarithmic returns v0 + rate·ln(1+t), rate defaulting to 0.1.
func Logarithmic(v0, t float64, p models.LGDModelParams) float64 {
	return Clamp(v0 + deref(p.Rate, defaultLogRate)*math.Log1p(t))
}

// Polynomial returns v0 + Σ coefficients[i]·t^(i+1). There is no constant
// term beyond v0.
func Polynomial(v0, t float64, p models.LGDModelParams) float64 {
	v := v0
	pow := t
	for _, c := range p.Coefficients {
		v += c * pow
		pow *= t
	}
	return Clamp(v)
}

// Evaluate dispatches to the named model. Unknown models return v0 clamped.
func Evaluate(model models.LGDModelType, v0, t float64, p models.LGDModelParams) float64 {
	switch model {
	case models.ModelLinear:
		return Linear(v0, t, p)
	case models.ModelExponential:
		return Exponential(v0, t, p)
	case models.ModelLogarithmic:
		return Logarithmic(v0, t, p)
	case models.ModelPolynomial:
		return Polynomial(v0, t, p)
	default:
		return Clamp(v0)
	}
}

// Guaranteed blends borrower and guarantor LGD by coverage:
// baseLGD·(1−coverage) + guarantorLGD·coverage, coverage clamped to [0, 1].
func Guaranteed(g models.GuaranteedLGD) float64 {
	coverage := Clamp(g.Coverage)
	return Clamp(g.BaseLGD*(1-coverage) + g.GuarantorLGD*coverage)
}

func deref(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
