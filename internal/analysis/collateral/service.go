// Package collateral computes valuation, diversification, concentration,
// market-risk and regulatory aggregates for a pool of pledged assets, and
// the LGD reduction a pool provides to the loan it secures.
package collateral

import (
	"math"
	"time"

	"github.com/Ouadii-Zine/financify/pkg/models"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

// Service analyses collateral pools. It holds no mutable state; the clock
// is injected so valuations are reproducible.
type Service struct {
	now func() time.Time
}

// NewServiceAt returns a Service valuing collateral as of a fixed instant.
func NewServiceAt(asOf time.Time) *Service {
	return &Service{now: func() time.Time { return asOf }}
}

// Analyze values every item and recomputes all aggregates. The input pool
// is not modified.
func (s *Service) Analyze(p models.CollateralPortfolio) models.CollateralPortfolio {
	out := p.Clone()
	asOf := s.now()
	for i := range out.Items {
		out.Items[i].CurrentValue = CurrentValue(out.Items[i], asOf)
	}

	items := out.Items
	out.TotalValue = TotalValue(items)
	out.DiversificationScore = DiversificationScore(items)
	out.ConcentrationRisk = ConcentrationRisk(items)
	out.RiskMetrics = RiskMetrics(items)
	out.Regulatory = Regulatory(items)
	return out
}

// CurrentValue applies the item's valuation model to the years elapsed
// since its valuation date. Items without a model, a parseable valuation
// date, or with an unknown model keep their appraised value.
func CurrentValue(item models.CollateralItem, asOf time.Time) float64 {
	base := item.Value
	if base == 0 {
		base = item.CurrentValue
	}
	if item.ValuationModel == nil {
		return nonNegative(base)
	}
	valued, err := utils.ParseDate(item.ValuationDate)
	if err != nil {
		return nonNegative(base)
	}
	t := math.Max(0, utils.YearsBetween(valued, asOf))
	return nonNegative(base * growthFactor(*item.ValuationModel, t))
}

// growthFactor is the relative value change after t years.
func growthFactor(m models.ValuationModel, t float64) float64 {
	p := m.Parameters
	switch m.Type {
	case models.ModelLinear:
		if p.Rate == nil {
			return 1
		}
		return 1 + *p.Rate*t
	case models.ModelExponential:
		switch {
		case p.AppreciationRate != nil:
			return math.Pow(1+*p.AppreciationRate, t)
		case p.DepreciationRate != nil:
			return math.Pow(1-*p.DepreciationRate, t)
		case p.HalfLife != nil && *p.HalfLife != 0:
			return math.Pow(0.5, t / *p.HalfLife)
		}
		return 1
	case models.ModelLogarithmic:
		rate := 0.1
		if p.Rate != nil {
			rate = *p.Rate
		}
		return 1 + rate*math.Log1p(t)
	case models.ModelPolynomial:
		f, pow := 1.0, t
		for _, c := range p.Coefficients {
			f += c * pow
			pow *= t
		}
		return f
	default:
		return 1
	}
}

// TotalValue sums current values.
func TotalValue(items []models.CollateralItem) float64 {
	var total float64
	for _, it := range items {
		total += it.CurrentValue
	}
	return total
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
