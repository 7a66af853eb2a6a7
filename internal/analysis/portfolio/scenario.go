package portfolio

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/Ouadii-Zine/financify/internal/analysis/lgd"
	"github.com/Ouadii-Zine/financify/internal/analysis/loan"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// Shock is a what-if adjustment: PD and LGD are multiplied (and capped at
// 1), reference rate and margin shifted.
type Shock struct {
	PDMultiplier  float64 `json:"pdMultiplier"`
	LGDMultiplier float64 `json:"lgdMultiplier"`
	RateShift     float64 `json:"rateShift"`
	SpreadShift   float64 `json:"spreadShift"`
}

// ShockFrom converts a configured stress definition.
func ShockFrom(d models.StressScenarioDefinition) Shock {
	return Shock{
		PDMultiplier:  d.PDMultiplier,
		LGDMultiplier: d.LGDMultiplier,
		RateShift:     d.RateShift,
		SpreadShift:   d.SpreadShift,
	}
}

// multipliers treats non-positive multipliers as "unchanged".
func (s Shock) multipliers() (pdMult, lgdMult float64) {
	pdMult, lgdMult = s.PDMultiplier, s.LGDMultiplier
	if pdMult <= 0 {
		pdMult = 1
	}
	if lgdMult <= 0 {
		lgdMult = 1
	}
	return pdMult, lgdMult
}

// Simulator recomputes portfolio metrics under shocks.
type Simulator struct {
	calc    *loan.Calculator
	workers int
}

// NewSimulator returns a Simulator computing loan metrics with calc.
func NewSimulator(calc *loan.Calculator, workers int) *Simulator {
	return &Simulator{calc: calc, workers: workers}
}

// Metrics computes loan metrics for the book and aggregates them.
func (s *Simulator) Metrics(ctx context.Context, loans []models.Loan, params models.CalculationParameters) (models.PortfolioMetrics, error) {
	computed, err := s.calc.CalculateAll(ctx, loans, params, s.workers)
	if err != nil {
		return models.PortfolioMetrics{}, err
	}
	return Aggregate(computed, params), nil
}

// ApplyShock returns shocked clones of loans; the inputs are not modified.
func (s *Simulator) ApplyShock(loans []models.Loan, params models.CalculationParameters, shock Shock) []models.Loan {
	pdMult, lgdMult := shock.multipliers()
	out := models.CloneLoans(loans)
	for i := range out {
		l := &out[i]
		l.PD = math.Min(1, s.calc.EffectivePD(l, params)*pdMult)
		l.LGD = math.Min(1, lgd.Constant(l)*lgdMult)
		if g := l.GuaranteedLGD; g != nil {
			g.BaseLGD = math.Min(1, g.BaseLGD*lgdMult)
			g.GuarantorLGD = math.Min(1, g.GuarantorLGD*lgdMult)
		}
		if v := l.VariableLGD; v != nil {
			v.InitialValue = math.Min(1, v.InitialValue*lgdMult)
		}
		l.ReferenceRate += shock.RateShift
		l.Margin += shock.SpreadShift
		l.Metrics = nil
	}
	return out
}

// Simulate applies shock to a clone of the book and recomputes the full
// portfolio metrics.
func (s *Simulator) Simulate(ctx context.Context, loans []models.Loan, params models.CalculationParameters, shock Shock) (models.PortfolioMetrics, error) {
	return s.Metrics(ctx, s.ApplyShock(loans, params, shock), params)
}

// RunStress simulates every stress definition in params concurrently.
// Results follow the order of params.StressScenarios.
func (s *Simulator) RunStress(ctx context.Context, loans []models.Loan, params models.CalculationParameters) ([]models.ScenarioResult, error) {
	results := make([]models.ScenarioResult, len(params.StressScenarios))
	g, gctx := errgroup.WithContext(ctx)

	for i, def := range params.StressScenarios {
		g.Go(func() error {
			pm, err := s.Simulate(gctx, loans, params, ShockFrom(def))
			if err != nil {
				return fmt.Errorf("scenario %q: %w", def.Name, err)
			}
			results[i] = models.ScenarioResult{Scenario: def, Metrics: pm}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
