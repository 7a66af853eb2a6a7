package loan

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

var fixedNow = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func testCalculator(opts ...Option) *Calculator {
	return NewCalculator(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

// sampleLoan is a fully drawn five-year (1825-day) BBB term loan.
func sampleLoan() models.Loan {
	return models.Loan{
		ID:                "L-001",
		StartDate:         "2024-01-01",
		EndDate:           "2028-12-30",
		OriginalAmount:    1_000_000,
		OutstandingAmount: 1_000_000,
		DrawnAmount:       1_000_000,
		PD:                0.01,
		LGD:               0.45,
		EAD:               1_000_000,
		LGDType:           models.LGDConstant,
		Margin:            0.02,
		ReferenceRate:     0.03,
		Fees:              models.Fees{Upfront: 10_000},
		InternalRating:    "BBB",
	}
}

func TestExpectedLoss(t *testing.T) {
	if got := ExpectedLoss(0.02, 0.45, 1_000_000); !approxEqual(got, 9000, 1e-9) {
		t.Errorf("ExpectedLoss: got %f, want 9000", got)
	}
}

func TestRiskWeight(t *testing.T) {
	tests := []struct {
		rating string
		want   float64
	}{
		{"AAA", 0.20},
		{"a-", 0.50},
		{" BBB ", 0.75},
		{"BB-", 1.00},
		{"CCC", 1.50},
		{"", 1.00},
		{"NR", 1.00},
	}
	for _, tt := range tests {
		if got := RiskWeight(tt.rating); got != tt.want {
			t.Errorf("RiskWeight(%q): got %f, want %f", tt.rating, got, tt.want)
		}
	}
}

func TestDurationYearsFloor(t *testing.T) {
	l := sampleLoan()
	if got := DurationYears(&l); !approxEqual(got, 5, 1e-12) {
		t.Errorf("five-year loan: got %f", got)
	}
	l.EndDate = "2024-02-01"
	if got := DurationYears(&l); got != 1 {
		t.Errorf("one-month loan: got %f, want floor 1", got)
	}
	l.EndDate = "bad"
	if got := DurationYears(&l); got != 1 {
		t.Errorf("bad date: got %f, want 1", got)
	}
}

func TestCalculateWorkedExample(t *testing.T) {
	l := sampleLoan()
	params := models.DefaultCalculationParameters()
	m := testCalculator().Calculate(&l, params)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"ExpectedLoss", m.ExpectedLoss, 4500},
		{"RWA", m.RWA, 750_000},
		{"CapitalConsumption", m.CapitalConsumption, 60_000},
		{"ROE", m.ROE, 13_125.0 / 60_000},
		{"RAROC", m.RAROC, 17_500.0 / 60_000},
		{"EVAIntrinsic", m.EVAIntrinsic, 5925},
		{"EVASale", m.EVASale, 5925 + (1-1_000_000)*0.75},
		{"CostOfRisk", m.CostOfRisk, 0.0045},
		{"NetMargin", m.NetMargin, -0.0145},
		{"EffectiveYield", m.EffectiveYield, 0.052},
		{"LGD", m.LGD, 0.45},
		{"PD", m.PD, 0.01},
	}
	for _, c := range checks {
		if !approxEqual(c.got, c.want, 1e-6) {
			t.Errorf("%s: got %f, want %f", c.name, c.got, c.want)
		}
	}
}

func TestCalculateUsesLoanSalePrice(t *testing.T) {
	l := sampleLoan()
	l.SalePrice = models.Float(990_000)
	params := models.DefaultCalculationParameters()
	m := testCalculator().Calculate(&l, params)
	want := m.EVAIntrinsic + (990_000-1_000_000)*0.75
	if !approxEqual(m.EVASale, want, 1e-6) {
		t.Errorf("EVASale: got %f, want %f", m.EVASale, want)
	}
}

func TestCalculateZeroCapital(t *testing.T) {
	l := models.Loan{ID: "empty", StartDate: "2024-01-01", EndDate: "2025-01-01"}
	m := testCalculator().Calculate(&l, models.DefaultCalculationParameters())
	if m.ROE != 0 || m.RAROC != 0 {
		t.Errorf("zero capital: ROE=%f RAROC=%f, want 0", m.ROE, m.RAROC)
	}
	if math.IsNaN(m.CostOfRisk) || math.IsInf(m.EffectiveYield, 0) {
		t.Errorf("guards failed: %+v", m)
	}
}

func TestCalculateDoesNotMutateLoan(t *testing.T) {
	l := sampleLoan()
	before := l
	testCalculator().Calculate(&l, models.DefaultCalculationParameters())
	if l.PD != before.PD || l.LGD != before.LGD || l.Metrics != nil {
		t.Error("Calculate mutated the loan")
	}
}

func TestEffectivePDFallsBackToCurve(t *testing.T) {
	l := sampleLoan()
	l.PD = 0
	l.InternalRating = "bb"
	params := models.DefaultCalculationParameters()
	if got := testCalculator().EffectivePD(&l, params); got != params.PDCurve["BB"] {
		t.Errorf("EffectivePD: got %f, want %f", got, params.PDCurve["BB"])
	}
	l.InternalRating = "unrated"
	if got := testCalculator().EffectivePD(&l, params); got != 0 {
		t.Errorf("EffectivePD unknown rating: got %f, want 0", got)
	}
}

func TestEffectiveLGDModes(t *testing.T) {
	params := models.DefaultCalculationParameters()
	pools := NewPools([]models.CollateralPortfolio{{
		ID: "pool-1",
		Items: []models.CollateralItem{
			{ID: "bldg", Category: models.CategoryRealEstate, Value: 100_000},
		},
	}})
	calc := testCalculator(WithCollateral(pools))

	guaranteed := sampleLoan()
	guaranteed.LGDType = models.LGDGuaranteed
	guaranteed.GuaranteedLGD = &models.GuaranteedLGD{BaseLGD: 0.5, Coverage: 0.5, GuarantorLGD: 0.1}

	secured := sampleLoan()
	secured.LGDType = models.LGDCollateralized
	secured.CollateralPortfolioID = "pool-1"

	missing := sampleLoan()
	missing.LGDType = models.LGDCollateralized
	missing.CollateralPortfolioID = "nope"
	missing.LGD = 0

	tests := []struct {
		name string
		loan models.Loan
		want float64
	}{
		{"guaranteed", guaranteed, 0.30},
		{"collateralized", secured, 0.375},
		{"missing pool falls back", missing, 0.45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calc.EffectiveLGD(&tt.loan, params); !approxEqual(got, tt.want, 1e-12) {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}

	noHaircut := params
	noHaircut.CollateralHaircut = 0
	if got := calc.EffectiveLGD(&secured, noHaircut); !approxEqual(got, 0.35, 1e-12) {
		t.Errorf("collateralized without haircut: got %f, want 0.35", got)
	}
	fullHaircut := params
	fullHaircut.CollateralHaircut = 1.5
	if got := calc.EffectiveLGD(&secured, fullHaircut); !approxEqual(got, 0.45, 1e-12) {
		t.Errorf("collateralized with haircut above one: got %f, want 0.45", got)
	}

	m := calc.Calculate(&guaranteed, params)
	if !approxEqual(m.ExpectedLoss, 0.01*0.30*1_000_000, 1e-6) {
		t.Errorf("guaranteed EL: got %f", m.ExpectedLoss)
	}
}

func TestCalculateAll(t *testing.T) {
	loans := make([]models.Loan, 20)
	for i := range loans {
		loans[i] = sampleLoan()
		loans[i].ID = string(rune('A' + i))
		loans[i].PD = float64(i+1) / 100
	}

	out, err := testCalculator().CalculateAll(context.Background(), loans, models.DefaultCalculationParameters(), 4)
	if err != nil {
		t.Fatalf("CalculateAll error: %v", err)
	}
	if len(out) != len(loans) {
		t.Fatalf("got %d loans, want %d", len(out), len(loans))
	}
	for i := range out {
		if out[i].ID != loans[i].ID {
			t.Errorf("order changed at %d: %s vs %s", i, out[i].ID, loans[i].ID)
		}
		if out[i].Metrics == nil {
			t.Fatalf("loan %s has no metrics", out[i].ID)
		}
		want := loans[i].PD * 0.45 * 1_000_000
		if !approxEqual(out[i].Metrics.ExpectedLoss, want, 1e-6) {
			t.Errorf("loan %s EL: got %f, want %f", out[i].ID, out[i].Metrics.ExpectedLoss, want)
		}
		if loans[i].Metrics != nil {
			t.Errorf("input loan %s was mutated", loans[i].ID)
		}
	}
}

func TestCalculateAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loans := []models.Loan{sampleLoan(), sampleLoan(), sampleLoan()}
	if _, err := testCalculator().CalculateAll(ctx, loans, models.DefaultCalculationParameters(), 2); err == nil {
		t.Error("expected context error")
	}
}
