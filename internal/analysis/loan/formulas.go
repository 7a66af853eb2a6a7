// Package loan computes per-loan credit-risk and profitability metrics:
// expected loss, risk-weighted assets, ROE, RAROC, EVA, cost of risk and
// yields. Every metric is a pure function of the loan and the calculation
// parameters.
package loan

import (
	"math"
	"strings"

	"github.com/Ouadii-Zine/financify/pkg/models"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

// DefaultRating is the rating whose risk weight applies to unrated or
// unrecognised loans.
const DefaultRating = "BB-"

// riskWeights follows the Basel standardised corporate scale.
var riskWeights = map[string]float64{
	"AAA": 0.20, "AA+": 0.20, "AA": 0.20, "AA-": 0.20,
	"A+": 0.50, "A": 0.50, "A-": 0.50,
	"BBB+": 0.75, "BBB": 0.75, "BBB-": 0.75,
	"BB+": 1.00, "BB": 1.00, "BB-": 1.00,
	"B+": 1.50, "B": 1.50, "B-": 1.50,
	"CCC+": 1.50, "CCC": 1.50, "CCC-": 1.50,
	"CC": 1.50, "C": 1.50, "D": 1.50,
}

// RiskWeight returns the regulatory weight of a rating, the BB- weight when
// the rating is unknown.
func RiskWeight(rating string) float64 {
	if w, ok := riskWeights[strings.ToUpper(strings.TrimSpace(rating))]; ok {
		return w
	}
	return riskWeights[DefaultRating]
}

// ExpectedLoss = PD × LGD × EAD.
func ExpectedLoss(pd, lgd, ead float64) float64 {
	return pd * lgd * ead
}

// RWA = EAD × risk weight.
func RWA(ead float64, rating string) float64 {
	return ead * RiskWeight(rating)
}

// DurationYears is the loan life in 365-day years, floored at one year.
// Unparseable dates count as one year.
func DurationYears(loan *models.Loan) float64 {
	start, err := utils.ParseDate(loan.StartDate)
	if err != nil {
		return 1
	}
	end, err := utils.ParseDate(loan.EndDate)
	if err != nil {
		return 1
	}
	return math.Max(utils.YearsBetween(start, end), 1)
}

// FeesPerYear is the commitment fee on the undrawn amount plus one-off fees
// spread over the loan life.
func FeesPerYear(loan *models.Loan) float64 {
	return loan.Fees.Commitment*loan.UndrawnAmount + loan.Fees.OneOff()/DurationYears(loan)
}

// Profit is the annual income statement of one loan or of a portfolio.
type Profit struct {
	Income          float64
	Costs           float64
	PreTax          float64
	AfterTax        float64
	CapitalRequired float64
}

// ROE is after-tax profit over capital required, 0 without capital.
func (p Profit) ROE() float64 {
	if p.CapitalRequired == 0 {
		return 0
	}
	return p.AfterTax / p.CapitalRequired
}

// RAROC is pre-tax profit over capital required, 0 without capital.
func (p Profit) RAROC() float64 {
	if p.CapitalRequired == 0 {
		return 0
	}
	return p.PreTax / p.CapitalRequired
}

// Add accumulates another statement.
func (p Profit) Add(o Profit) Profit {
	return Profit{
		Income:          p.Income + o.Income,
		Costs:           p.Costs + o.Costs,
		PreTax:          p.PreTax + o.PreTax,
		AfterTax:        p.AfterTax + o.AfterTax,
		CapitalRequired: p.CapitalRequired + o.CapitalRequired,
	}
}

// AnnualProfit builds the income statement of a loan given its expected
// loss and RWA.
//
//	income = (margin+ref)·drawn + commitment·undrawn + oneOffFees/max(years,1)
//	costs  = fundingCost·drawn + opCostRatio·original + EL
func AnnualProfit(loan *models.Loan, params models.CalculationParameters, el, rwa float64) Profit {
	income := loan.AllInRate()*loan.DrawnAmount + FeesPerYear(loan)
	costs := params.FundingCost*loan.DrawnAmount + params.OperationalCostRatio*loan.OriginalAmount + el
	preTax := income - costs
	return Profit{
		Income:          income,
		Costs:           costs,
		PreTax:          preTax,
		AfterTax:        preTax * (1 - params.TaxRate),
		CapitalRequired: rwa * params.CapitalRatio,
	}
}

// EVAIntrinsic = (ROE − target ROE) × capital required.
func EVAIntrinsic(roe, targetROE, capitalRequired float64) float64 {
	return (roe - targetROE) * capitalRequired
}

// EVASale adds the after-tax gain or loss of selling the drawn amount at
// salePrice to the intrinsic EVA.
func EVASale(evaIntrinsic, salePrice, drawn, taxRate float64) float64 {
	return evaIntrinsic + (salePrice-drawn)*(1-taxRate)
}

// CostOfRisk = EL / max(drawn, 1).
func CostOfRisk(el, drawn float64) float64 {
	return el / math.Max(drawn, 1)
}

// NetMargin = margin − (funding cost + operational cost ratio + cost of risk).
func NetMargin(margin float64, params models.CalculationParameters, costOfRisk float64) float64 {
	return margin - (params.FundingCost + params.OperationalCostRatio + costOfRisk)
}

// EffectiveYield = all-in rate + fees per year / max(drawn, 1).
func EffectiveYield(loan *models.Loan) float64 {
	return loan.AllInRate() + FeesPerYear(loan)/math.Max(loan.DrawnAmount, 1)
}
