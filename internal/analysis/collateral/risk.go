package collateral

import (
	"math"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

// Correlation seeds and caps.
const (
	baseCorrelation     = 0.1
	sameCategoryCorr    = 0.7
	relatedCategoryCorr = 0.4
	sameLocationBump    = 0.2
	sameIssuerBump      = 0.3
	maxCorrelation      = 0.9
)

// z-scores of the one-sided normal quantile.
const (
	z95 = 1.645
	z99 = 2.326
)

var relatedCategories = [][2]models.CollateralCategory{
	{models.CategoryRealEstate, models.CategoryEquipment},
	{models.CategorySecurities, models.CategoryCash},
	{models.CategoryInventory, models.CategoryReceivables},
	{models.CategoryVehicle, models.CategoryEquipment},
	{models.CategoryIntellectualProperty, models.CategorySecurities},
	{models.CategoryCommodities, models.CategoryInventory},
}

var categoryBeta = map[models.CollateralCategory]float64{
	models.CategoryRealEstate:           0.8,
	models.CategoryEquipment:            0.9,
	models.CategoryVehicle:              1.0,
	models.CategoryCash:                 0.0,
	models.CategorySecurities:           1.2,
	models.CategoryInventory:            1.1,
	models.CategoryReceivables:          0.7,
	models.CategoryIntellectualProperty: 1.3,
	models.CategoryCommodities:          1.4,
	models.CategoryOther:                1.0,
}

// StressScenario is a uniform shock applied to the pool value.
type StressScenario struct {
	Name  string
	Shock float64
}

// StressScenarios is the fixed collateral stress table.
var StressScenarios = []StressScenario{
	{Name: "Market Crash", Shock: 0.30},
	{Name: "Liquidity Crisis", Shock: 0.40},
	{Name: "Interest Rate Shock", Shock: 0.15},
	{Name: "Economic Recession", Shock: 0.25},
}

// RiskMetrics computes the full market-risk block of a pool.
func RiskMetrics(items []models.CollateralItem) models.CollateralRiskMetrics {
	return models.CollateralRiskMetrics{
		VaR95:              ValueAtRisk(items, 0.95),
		VaR99:              ValueAtRisk(items, 0.99),
		ExpectedShortfall:  ExpectedShortfall(items),
		WeightedVolatility: WeightedVolatility(items),
		CorrelationMatrix:  CorrelationMatrix(items),
		StressTests:        StressTests(TotalValue(items)),
		Beta:               Beta(items),
	}
}

// CorrelationMatrix returns pairwise item correlations. The diagonal is 1.
func CorrelationMatrix(items []models.CollateralItem) [][]float64 {
	n := len(items)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := pairCorrelation(items[i], items[j])
			m[i][j], m[j][i] = c, c
		}
	}
	return m
}

func pairCorrelation(a, b models.CollateralItem) float64 {
	c := baseCorrelation
	switch {
	case a.Category != "" && a.Category == b.Category:
		c = sameCategoryCorr
	case related(a.Category, b.Category):
		c = relatedCategoryCorr
	}
	if a.Location != "" && a.Location == b.Location {
		c += sameLocationBump
	}
	if a.Issuer != "" && a.Issuer == b.Issuer {
		c += sameIssuerBump
	}
	return math.Min(c, maxCorrelation)
}

func related(a, b models.CollateralCategory) bool {
	for _, pair := range relatedCategories {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return true
		}
	}
	return false
}

// WeightedVolatility is the value-weighted average item volatility.
func WeightedVolatility(items []models.CollateralItem) float64 {
	total := TotalValue(items)
	if total <= 0 {
		return 0
	}
	var wv float64
	for _, it := range items {
		wv += it.CurrentValue / total * it.Volatility
	}
	return wv
}

// averageCorrelation is the mean off-diagonal correlation.
func averageCorrelation(items []models.CollateralItem) float64 {
	n := len(items)
	if n < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += pairCorrelation(items[i], items[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// ValueAtRisk is the parametric VaR of the pool:
// total × weightedVolatility × √(1 + ρ̄·(n−1)/n) × z.
// Confidence at or above 99% uses z=2.326, anything lower z=1.645.
func ValueAtRisk(items []models.CollateralItem, confidence float64) float64 {
	n := len(items)
	total := TotalValue(items)
	if n == 0 || total <= 0 {
		return 0
	}
	z := z95
	if confidence >= 0.99 {
		z = z99
	}
	effect := 1 + averageCorrelation(items)*float64(n-1)/float64(n)
	return total * WeightedVolatility(items) * math.Sqrt(effect) * z
}

// ExpectedShortfall averages the 95% and 99% VaR. It is a proxy, not a tail
// integral.
func ExpectedShortfall(items []models.CollateralItem) float64 {
	return (ValueAtRisk(items, 0.95) + ValueAtRisk(items, 0.99)) / 2
}

// Beta is the value-weighted sum of per-category betas. Unknown categories
// count as 1.
func Beta(items []models.CollateralItem) float64 {
	total := TotalValue(items)
	if total <= 0 {
		return 0
	}
	var beta float64
	for _, it := range items {
		b, ok := categoryBeta[it.Category]
		if !ok {
			b = 1
		}
		beta += it.CurrentValue / total * b
	}
	return beta
}

// StressTests applies every entry of StressScenarios to total.
func StressTests(total float64) []models.StressTestResult {
	out := make([]models.StressTestResult, 0, len(StressScenarios))
	for _, s := range StressScenarios {
		out = append(out, models.StressTestResult{
			Scenario:       s.Name,
			Shock:          s.Shock,
			ResultingValue: total * (1 - s.Shock),
			Loss:           total * s.Shock,
			ImpactPct:      s.Shock * 100,
		})
	}
	return out
}
