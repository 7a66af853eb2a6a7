// Package engine ties a loan book to the calculation packages. The CLI
// and the HTTP API both go through it so that parameters, sector LGD
// defaults and the valuation clock are resolved the same way.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ouadii-Zine/financify/internal/analysis/cashflow"
	"github.com/Ouadii-Zine/financify/internal/analysis/collateral"
	"github.com/Ouadii-Zine/financify/internal/analysis/lgd"
	"github.com/Ouadii-Zine/financify/internal/analysis/loan"
	"github.com/Ouadii-Zine/financify/internal/analysis/portfolio"
	"github.com/Ouadii-Zine/financify/internal/loanbook"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// ScheduleKind selects a cash-flow schedule.
type ScheduleKind string

const (
	ScheduleContractual ScheduleKind = "contractual"
	ScheduleForecast    ScheduleKind = "forecast"
	ScheduleStress      ScheduleKind = "stress"
)

// ErrUnknownSchedule is returned for a ScheduleKind outside the constants.
var ErrUnknownSchedule = errors.New("unknown schedule kind")

// Engine runs calculations over loan books.
type Engine struct {
	params  models.CalculationParameters
	workers int
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds batch concurrency. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithClock fixes the valuation instant.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine using params unless a book carries its own.
func New(params models.CalculationParameters, opts ...Option) *Engine {
	e := &Engine{params: params, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parameters returns the default parameters of the engine.
func (e *Engine) Parameters() models.CalculationParameters {
	return e.params
}

// prepare resolves the parameters of a book and fills sector LGDs.
func (e *Engine) prepare(book *loanbook.Book) (models.CalculationParameters, *loan.Calculator) {
	params := book.ParametersOr(e.params)
	if n := book.Normalize(params); n > 0 {
		e.logger.Debug("filled LGD from sector assumptions", "loans", n)
	}
	calc := loan.NewCalculator(loan.WithCollateral(book.Pools()), loan.WithClock(e.now))
	return params, calc
}

func (e *Engine) simulator(calc *loan.Calculator) *portfolio.Simulator {
	return portfolio.NewSimulator(calc, e.workers)
}

// LoanMetrics returns copies of the book loans with metrics set.
func (e *Engine) LoanMetrics(ctx context.Context, book *loanbook.Book) ([]models.Loan, error) {
	params, calc := e.prepare(book)
	start := time.Now()
	out, err := calc.CalculateAll(ctx, book.Loans, params, e.workers)
	if err != nil {
		return nil, fmt.Errorf("loan metrics: %w", err)
	}
	e.logger.Debug("loan metrics computed", "loans", len(out), "elapsed", time.Since(start))
	return out, nil
}

// Portfolio returns the aggregate metrics of the book.
func (e *Engine) Portfolio(ctx context.Context, book *loanbook.Book) (models.PortfolioMetrics, error) {
	params, calc := e.prepare(book)
	pm, err := e.simulator(calc).Metrics(ctx, book.Loans, params)
	if err != nil {
		return models.PortfolioMetrics{}, fmt.Errorf("portfolio metrics: %w", err)
	}
	return pm, nil
}

// SimulationResult pairs base and shocked portfolio metrics.
type SimulationResult struct {
	Shock     portfolio.Shock         `json:"shock"`
	Base      models.PortfolioMetrics `json:"base"`
	Simulated models.PortfolioMetrics `json:"simulated"`
}

// Simulate computes the book under shock alongside its base metrics.
func (e *Engine) Simulate(ctx context.Context, book *loanbook.Book, shock portfolio.Shock) (SimulationResult, error) {
	params, calc := e.prepare(book)
	sim := e.simulator(calc)
	base, err := sim.Metrics(ctx, book.Loans, params)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("base metrics: %w", err)
	}
	shocked, err := sim.Simulate(ctx, book.Loans, params, shock)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("simulate: %w", err)
	}
	return SimulationResult{Shock: shock, Base: base, Simulated: shocked}, nil
}

// Stress runs every configured stress scenario over the book.
func (e *Engine) Stress(ctx context.Context, book *loanbook.Book) ([]models.ScenarioResult, error) {
	params, calc := e.prepare(book)
	if len(params.StressScenarios) == 0 {
		return nil, errors.New("no stress scenarios configured")
	}
	return e.simulator(calc).RunStress(ctx, book.Loans, params)
}

// AnalyzeCollateral values a pool and computes its aggregates.
func (e *Engine) AnalyzeCollateral(p models.CollateralPortfolio) models.CollateralPortfolio {
	return collateral.NewServiceAt(e.now()).Analyze(p)
}

// Collateral analyses the pool with the given id, or every pool of the book
// when id is empty.
func (e *Engine) Collateral(book *loanbook.Book, id string) ([]models.CollateralPortfolio, error) {
	if id != "" {
		p, err := book.Portfolio(id)
		if err != nil {
			return nil, err
		}
		return []models.CollateralPortfolio{e.AnalyzeCollateral(*p)}, nil
	}
	out := make([]models.CollateralPortfolio, len(book.CollateralPortfolios))
	for i, p := range book.CollateralPortfolios {
		out[i] = e.AnalyzeCollateral(p)
	}
	return out, nil
}

// CashFlows generates a schedule. Generation failures come back as the
// sentinel error schedule, not as an error; only an unknown kind errors.
func (e *Engine) CashFlows(l *models.Loan, kind ScheduleKind, opts cashflow.StressOptions) ([]models.CashFlow, error) {
	var flows []models.CashFlow
	switch kind {
	case ScheduleContractual, "":
		flows = cashflow.GenerateContractual(l)
	case ScheduleForecast:
		flows = cashflow.GenerateForecast(l)
	case ScheduleStress:
		flows = cashflow.GenerateStress(l, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchedule, kind)
	}
	if cashflow.IsErrorSchedule(flows) {
		e.logger.Warn("cash flow generation failed", "loan", loanID(l), "kind", kind, "error", flows[0].Description)
	}
	return flows, nil
}

// Curve samples the LGD of a loan over its life.
func (e *Engine) Curve(l *models.Loan, stepMonths int) ([]models.LGDPoint, error) {
	if stepMonths <= 0 {
		stepMonths = 1
	}
	return lgd.CurveForLoan(l, stepMonths)
}

func loanID(l *models.Loan) string {
	if l == nil {
		return ""
	}
	return l.ID
}
