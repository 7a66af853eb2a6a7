package collateral

import (
	"math"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

// CorrelationAdjustment is the value-weighted average of each item's
// correlation with the secured loan.
func CorrelationAdjustment(items []models.CollateralItem) float64 {
	total := TotalValue(items)
	if total <= 0 {
		return 0
	}
	var adj float64
	for _, it := range items {
		adj += it.CurrentValue / total * it.CorrelationWithLoan
	}
	return adj
}

// EffectiveLGD reduces baseLGD by the haircut pool value, discounted by
// wrong-way correlation, per unit of loan amount:
//
//	max(0, baseLGD − total·(1−haircut)·(1−ρ)/loanAmount), capped at 1.
//
// A non-positive loan amount leaves baseLGD unchanged.
func EffectiveLGD(baseLGD float64, items []models.CollateralItem, loanAmount, haircut float64) float64 {
	if loanAmount <= 0 {
		return math.Max(0, math.Min(1, baseLGD))
	}
	haircutValue := TotalValue(items) * (1 - haircut)
	reduction := haircutValue * (1 - CorrelationAdjustment(items)) / loanAmount
	return math.Min(1, math.Max(0, baseLGD-reduction))
}
