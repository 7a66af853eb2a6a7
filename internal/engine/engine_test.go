package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ouadii-Zine/financify/internal/analysis/cashflow"
	"github.com/Ouadii-Zine/financify/internal/analysis/portfolio"
	"github.com/Ouadii-Zine/financify/internal/loanbook"
	"github.com/Ouadii-Zine/financify/internal/logging"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

func testEngine() *Engine {
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	return New(models.DefaultCalculationParameters(),
		WithWorkers(2),
		WithClock(func() time.Time { return now }),
		WithLogger(logging.Nop()),
	)
}

func testBook() *loanbook.Book {
	return &loanbook.Book{
		Loans: []models.Loan{
			{
				ID: "L1", StartDate: "2024-01-01", EndDate: "2029-01-01",
				OriginalAmount: 1_000_000, DrawnAmount: 1_000_000,
				PD: 0.01, LGD: 0.45, Margin: 0.02, ReferenceRate: 0.03,
				InternalRating: "BBB", RepaymentFrequency: models.FrequencyAnnual,
			},
			{
				ID: "L2", StartDate: "2024-01-01", EndDate: "2027-01-01",
				OriginalAmount: 500_000, DrawnAmount: 500_000,
				InternalRating: "BB", Sector: "Real Estate",
				LGDType: models.LGDCollateralized, CollateralPortfolioID: "P1",
				Margin: 0.025, ReferenceRate: 0.03,
			},
			{
				ID: "L3", StartDate: "2024-01-01", EndDate: "2027-01-01",
				OriginalAmount: 300_000, DrawnAmount: 300_000, PD: 0.02,
				InternalRating: "B", Sector: "real estate",
				Margin: 0.03, ReferenceRate: 0.03,
			},
		},
		CollateralPortfolios: []models.CollateralPortfolio{
			{ID: "P1", Items: []models.CollateralItem{
				{ID: "C1", Category: models.CategoryRealEstate, Value: 200_000, CurrentValue: 200_000, Volatility: 0.1},
			}},
		},
	}
}

func TestLoanMetricsUsesSectorAndCurve(t *testing.T) {
	out, err := testEngine().LoanMetrics(context.Background(), testBook())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("loans: got %d, want 3", len(out))
	}
	m := out[1].Metrics
	if m == nil {
		t.Fatal("metrics missing")
	}
	// PD from the curve for BB; default LGD 0.45 reduced by
	// 200k * 0.75 / 500k of collateral.
	if m.PD != 0.008 {
		t.Errorf("PD: got %f, want 0.008", m.PD)
	}
	if m.LGD < 0.149 || m.LGD > 0.151 {
		t.Errorf("LGD: got %f, want ~0.15", m.LGD)
	}
	if got := out[2].Metrics.LGD; got != 0.35 {
		t.Errorf("sector LGD: got %f, want 0.35", got)
	}
}

func TestSimulateAndStress(t *testing.T) {
	e := testEngine()
	book := testBook()

	res, err := e.Simulate(context.Background(), book, portfolio.Shock{PDMultiplier: 2, LGDMultiplier: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Simulated.TotalExpectedLoss <= res.Base.TotalExpectedLoss {
		t.Errorf("shocked EL %f should exceed base %f", res.Simulated.TotalExpectedLoss, res.Base.TotalExpectedLoss)
	}
	if book.Loans[0].PD != 0.01 {
		t.Error("simulation mutated the book")
	}

	results, err := e.Stress(context.Background(), book)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(models.DefaultCalculationParameters().StressScenarios) {
		t.Errorf("stress results: got %d, want 3", len(results))
	}
}

func TestStressWithoutScenarios(t *testing.T) {
	book := testBook()
	params := models.DefaultCalculationParameters()
	params.StressScenarios = nil
	book.Parameters = &params
	if _, err := testEngine().Stress(context.Background(), book); err == nil {
		t.Error("expected error without scenarios")
	}
}

func TestCollateral(t *testing.T) {
	e := testEngine()
	pools, err := e.Collateral(testBook(), "")
	if err != nil || len(pools) != 1 {
		t.Fatalf("got %d pools, %v", len(pools), err)
	}
	if pools[0].TotalValue != 200_000 {
		t.Errorf("TotalValue: got %f, want 200000", pools[0].TotalValue)
	}
	if _, err := e.Collateral(testBook(), "nope"); !errors.Is(err, loanbook.ErrPortfolioNotFound) {
		t.Errorf("got %v, want ErrPortfolioNotFound", err)
	}
}

func TestCashFlows(t *testing.T) {
	e := testEngine()
	l := testBook().Loans[0]

	flows, err := e.CashFlows(&l, ScheduleStress, cashflow.StressOptions{Scenario: cashflow.ScenarioDefault})
	if err != nil {
		t.Fatal(err)
	}
	if cashflow.IsErrorSchedule(flows) {
		t.Fatalf("unexpected error schedule: %+v", flows)
	}

	l.EndDate = "bogus"
	flows, err = e.CashFlows(&l, ScheduleContractual, cashflow.StressOptions{})
	if err != nil || !cashflow.IsErrorSchedule(flows) {
		t.Errorf("malformed loan: got %v, %v", flows, err)
	}

	if _, err := e.CashFlows(&l, "weekly", cashflow.StressOptions{}); !errors.Is(err, ErrUnknownSchedule) {
		t.Errorf("got %v, want ErrUnknownSchedule", err)
	}
}

func TestCurve(t *testing.T) {
	l := testBook().Loans[0]
	points, err := testEngine().Curve(&l, 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) == 0 {
		t.Fatal("empty curve")
	}
	for _, p := range points {
		if p.LGD != 0.45 {
			t.Errorf("flat curve point: got %f, want 0.45", p.LGD)
		}
	}
}

func TestReport(t *testing.T) {
	book := testBook()
	book.Name = "test book"
	book.Loans = append(book.Loans, models.Loan{
		ID: "BAD", StartDate: "garbage", EndDate: "2027-01-01", OriginalAmount: 1, PD: 0.01,
	})

	in, err := testEngine().Report(context.Background(), book)
	if err != nil {
		t.Fatal(err)
	}
	if in.Name != "test book" {
		t.Errorf("Name: got %q", in.Name)
	}
	if len(in.Loans) != len(book.Loans) || in.Loans[0].Metrics == nil {
		t.Fatalf("loans: got %d", len(in.Loans))
	}
	if in.Portfolio.LoanCount != len(book.Loans) {
		t.Errorf("LoanCount: got %d, want %d", in.Portfolio.LoanCount, len(book.Loans))
	}
	if len(in.Stress) != len(models.DefaultCalculationParameters().StressScenarios) {
		t.Errorf("stress results: got %d", len(in.Stress))
	}
	if len(in.Collateral) != 1 {
		t.Errorf("collateral pools: got %d, want 1", len(in.Collateral))
	}
	if _, ok := in.Curves["L1"]; !ok {
		t.Error("missing curve for L1")
	}
	if _, ok := in.Curves["BAD"]; ok {
		t.Error("unparseable loan should have no curve")
	}
}
