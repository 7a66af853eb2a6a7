package loan

import (
	"math"
	"strings"
	"time"

	"github.com/Ouadii-Zine/financify/internal/analysis/collateral"
	"github.com/Ouadii-Zine/financify/internal/analysis/lgd"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// CollateralSource resolves the collateral pool of a collateralized loan.
type CollateralSource interface {
	CollateralPortfolio(id string) (*models.CollateralPortfolio, bool)
}

// Pools is an in-memory CollateralSource keyed by portfolio id.
type Pools map[string]*models.CollateralPortfolio

// CollateralPortfolio implements CollateralSource.
func (p Pools) CollateralPortfolio(id string) (*models.CollateralPortfolio, bool) {
	pool, ok := p[id]
	return pool, ok
}

// NewPools indexes a list of pools by id.
func NewPools(pools []models.CollateralPortfolio) Pools {
	out := make(Pools, len(pools))
	for i := range pools {
		out[pools[i].ID] = &pools[i]
	}
	return out
}

// Calculator computes LoanMetrics. It holds no mutable state and is safe
// for concurrent use.
type Calculator struct {
	source CollateralSource
	now    func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithCollateral sets the source used for collateralized LGD.
func WithCollateral(src CollateralSource) Option {
	return func(c *Calculator) { c.source = src }
}

// WithClock fixes the valuation instant of variable LGDs and collateral.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// NewCalculator returns a Calculator with the given options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate derives the full metric record of a loan. The loan is not
// modified.
func (c *Calculator) Calculate(loan *models.Loan, params models.CalculationParameters) models.LoanMetrics {
	pd := c.EffectivePD(loan, params)
	lgdValue := c.EffectiveLGD(loan, params)
	ead := loan.Exposure()

	el := ExpectedLoss(pd, lgdValue, ead)
	rwa := RWA(ead, loan.InternalRating)
	profit := AnnualProfit(loan, params, el, rwa)

	roe := profit.ROE()
	evaIntrinsic := EVAIntrinsic(roe, params.TargetROE, profit.CapitalRequired)
	salePrice := params.DefaultSalePrice
	if loan.SalePrice != nil {
		salePrice = *loan.SalePrice
	}
	costOfRisk := CostOfRisk(el, loan.DrawnAmount)

	return models.LoanMetrics{
		EVAIntrinsic:       evaIntrinsic,
		EVASale:            EVASale(evaIntrinsic, salePrice, loan.DrawnAmount, params.TaxRate),
		ExpectedLoss:       el,
		RWA:                rwa,
		ROE:                roe,
		RAROC:              profit.RAROC(),
		CostOfRisk:         costOfRisk,
		CapitalConsumption: profit.CapitalRequired,
		NetMargin:          NetMargin(loan.Margin, params, costOfRisk),
		EffectiveYield:     EffectiveYield(loan),
		LGD:                lgdValue,
		PD:                 pd,
	}
}

// EffectivePD returns the loan PD or, when the loan carries none, the PD of
// its rating on the parameter curve. A PD of zero counts as none.
func (c *Calculator) EffectivePD(loan *models.Loan, params models.CalculationParameters) float64 {
	if loan.PD > 0 {
		return loan.PD
	}
	if pd, ok := params.PDCurve[strings.ToUpper(strings.TrimSpace(loan.InternalRating))]; ok {
		return pd
	}
	return 0
}

// EffectiveLGD resolves the LGD of a loan. Collateralized loans whose pool
// cannot be found fall back to their flat LGD. The configured haircut is
// used as given, clamped to [0,1]; zero means no haircut.
func (c *Calculator) EffectiveLGD(loan *models.Loan, params models.CalculationParameters) float64 {
	if loan.LGDType != models.LGDCollateralized {
		return lgd.Effective(loan, c.now())
	}
	pool, ok := c.pool(loan)
	if !ok {
		return lgd.Constant(loan)
	}
	haircut := math.Max(0, math.Min(1, params.CollateralHaircut))
	return collateral.EffectiveLGD(lgd.Constant(loan), pool.Items, loan.Exposure(), haircut)
}

// Collateral returns the analysed collateral pool of a loan, if any.
func (c *Calculator) Collateral(loan *models.Loan) (models.CollateralPortfolio, bool) {
	return c.pool(loan)
}

func (c *Calculator) pool(loan *models.Loan) (models.CollateralPortfolio, bool) {
	if c.source == nil || loan.CollateralPortfolioID == "" {
		return models.CollateralPortfolio{}, false
	}
	raw, ok := c.source.CollateralPortfolio(loan.CollateralPortfolioID)
	if !ok || raw == nil {
		return models.CollateralPortfolio{}, false
	}
	return collateral.NewServiceAt(c.now()).Analyze(*raw), true
}
