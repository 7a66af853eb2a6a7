// Package portfolio aggregates per-loan metrics into portfolio totals and
// runs what-if scenarios over cloned loan books.
package portfolio

import (
	"github.com/Ouadii-Zine/financify/internal/analysis/loan"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// diversificationBenefitRatio is a flat reduction of total expected loss.
// It has no correlation basis and stands in until a correlation-weighted
// model exists.
const diversificationBenefitRatio = 0.20

// Included reports whether a loan takes part in portfolio aggregates.
func Included(l *models.Loan) bool {
	return l.OriginalAmount > 0
}

// Aggregate builds portfolio metrics from loans carrying precomputed
// Metrics; a loan without metrics contributes exposure only. Loans with a
// non-positive original amount are ignored entirely.
//
// Portfolio ROE and RAROC are rebuilt from the summed income statements
// over summed capital, not averaged from per-loan ratios.
func Aggregate(loans []models.Loan, params models.CalculationParameters) models.PortfolioMetrics {
	var pm models.PortfolioMetrics
	var profit loan.Profit
	var pdWeighted, lgdWeighted float64

	for i := range loans {
		l := &loans[i]
		if !Included(l) {
			continue
		}
		m := models.LoanMetrics{PD: l.PD, LGD: l.LGD}
		if l.Metrics != nil {
			m = *l.Metrics
		}
		exposure := l.Exposure()

		pm.LoanCount++
		pm.TotalExposure += exposure
		pm.TotalDrawn += l.DrawnAmount
		pm.TotalUndrawn += l.UndrawnAmount
		pm.TotalExpectedLoss += m.ExpectedLoss
		pm.TotalRWA += m.RWA
		pm.TotalEVAIntrinsic += m.EVAIntrinsic
		pm.TotalEVASale += m.EVASale
		pdWeighted += m.PD * exposure
		lgdWeighted += m.LGD * exposure

		profit = profit.Add(loan.AnnualProfit(l, params, m.ExpectedLoss, m.RWA))
	}

	if pm.TotalExposure > 0 {
		pm.WeightedAveragePD = pdWeighted / pm.TotalExposure
		pm.WeightedAverageLGD = lgdWeighted / pm.TotalExposure
	}
	pm.CapitalRequired = profit.CapitalRequired
	pm.PortfolioROE = profit.ROE()
	pm.PortfolioRAROC = profit.RAROC()
	pm.DiversificationBenefit = pm.TotalExpectedLoss * diversificationBenefitRatio
	return pm
}
