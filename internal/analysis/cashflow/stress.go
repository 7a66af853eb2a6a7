package cashflow

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

// Scenario names a stressed schedule.
type Scenario string

const (
	ScenarioDefault         Scenario = "DEFAULT"
	ScenarioLiquidityCrisis Scenario = "LIQUIDITY_CRISIS"
	ScenarioInterestShock   Scenario = "INTEREST_SHOCK"
)

// Scenarios lists the supported stress scenarios.
var Scenarios = []Scenario{ScenarioDefault, ScenarioLiquidityCrisis, ScenarioInterestShock}

const (
	DefaultStressPD        = 0.01
	DefaultStressLGD       = 0.45
	DefaultUtilizationRate = 0.7
	DefaultShockBps        = 200.0
)

// ErrUnknownScenario is returned for a scenario outside Scenarios.
var ErrUnknownScenario = errors.New("unknown stress scenario")

// StressOptions selects a scenario and overrides its defaults. Nil fields
// take the loan-derived or package default.
type StressOptions struct {
	Scenario Scenario `json:"scenario"`

	// DEFAULT
	PD          *float64 `json:"pd,omitempty"`
	LGD         *float64 `json:"lgd,omitempty"`
	Outstanding *float64 `json:"outstanding,omitempty"`

	// LIQUIDITY_CRISIS
	UtilizationRate    *float64 `json:"stressUtilizationRate,omitempty"`
	ScheduledOutflows  *float64 `json:"scheduledOutflows,omitempty"`
	AvailableLiquidity *float64 `json:"availableLiquidity,omitempty"`

	// INTEREST_SHOCK, in basis points
	ShockBps *float64 `json:"shockBps,omitempty"`
}

func valueOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func unit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// BuildStress layers a stress scenario onto the contractual schedule. The
// result is ordered by date, then by flow type.
func BuildStress(loan *models.Loan, opts StressOptions) ([]models.CashFlow, error) {
	base, err := BuildContractual(loan)
	if err != nil {
		return nil, err
	}
	flows := slices.Clone(base)
	first, last := base[0].Date, base[len(base)-1].Date

	switch opts.Scenario {
	case ScenarioDefault:
		flows = appendDefault(flows, loan, opts, last)
	case ScenarioLiquidityCrisis:
		flows = appendLiquidityCrisis(flows, loan, opts, first)
	case ScenarioInterestShock:
		shockInterest(flows, loan, valueOr(opts.ShockBps, DefaultShockBps))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, opts.Scenario)
	}

	slices.SortStableFunc(flows, func(a, b models.CashFlow) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return flows, nil
}

// GenerateStress is BuildStress with failures reported as the sentinel
// error flow.
func GenerateStress(loan *models.Loan, opts StressOptions) []models.CashFlow {
	return generate(func() ([]models.CashFlow, error) { return BuildStress(loan, opts) })
}

func stressFlow(loan *models.Loan, seq int, date string, typ models.CashFlowType, amount decimal.Decimal, desc string) models.CashFlow {
	return models.CashFlow{
		ID:          FlowID(loan.ID, date, typ, seq),
		Date:        date,
		Type:        typ,
		Amount:      amount.InexactFloat64(),
		Description: desc,
	}
}

func appendDefault(flows []models.CashFlow, loan *models.Loan, opts StressOptions, date string) []models.CashFlow {
	pd := unit(valueOr(opts.PD, DefaultStressPD))
	lgd := unit(valueOr(opts.LGD, DefaultStressLGD))
	outstanding := loan.OutstandingAmount
	if outstanding <= 0 {
		outstanding = loan.OriginalAmount
	}
	outstanding = valueOr(opts.Outstanding, outstanding)

	defaulted := cents(outstanding * pd)
	recovery := defaulted.Mul(decimal.NewFromFloat(1 - lgd)).Round(2)
	loss := defaulted.Sub(recovery)

	n := len(flows)
	return append(flows,
		stressFlow(loan, n, date, models.FlowDefault, defaulted, fmt.Sprintf("Default (PD %.2f%%)", pd*100)),
		stressFlow(loan, n+1, date, models.FlowRecovery, recovery, fmt.Sprintf("Recovery (LGD %.2f%%)", lgd*100)),
		stressFlow(loan, n+2, date, models.FlowNetLoss, loss, "Net loss after recovery"),
	)
}

func appendLiquidityCrisis(flows []models.CashFlow, loan *models.Loan, opts StressOptions, date string) []models.CashFlow {
	utilization := valueOr(opts.UtilizationRate, DefaultUtilizationRate)
	outflows := valueOr(opts.ScheduledOutflows, loan.OriginalAmount)
	liquidity := valueOr(opts.AvailableLiquidity, loan.DrawnAmount)

	n := len(flows)
	return append(flows,
		stressFlow(loan, n, date, models.FlowDrawdown, cents(loan.UndrawnAmount*utilization),
			fmt.Sprintf("Stressed drawdown (%.0f%% utilization)", utilization*100)),
		stressFlow(loan, n+1, date, models.FlowLiquidityCrisis, cents(outflows-liquidity), "Liquidity gap"),
	)
}

// shockInterest rescales interest flows in place so that each reflects the
// all-in rate raised by bps. Other flows are untouched.
func shockInterest(flows []models.CashFlow, loan *models.Loan, bps float64) {
	rate := loan.AllInRate()
	if rate <= 0 {
		return
	}
	factor := decimal.NewFromFloat(1 + bps/10000/rate)
	for i := range flows {
		if flows[i].Type != models.FlowInterest {
			continue
		}
		flows[i].Amount = decimal.NewFromFloat(flows[i].Amount).Mul(factor).Round(2).InexactFloat64()
		flows[i].Description += fmt.Sprintf(" (+%.0fbps)", bps)
	}
}
