package collateral

import (
	"fmt"
	"strings"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

// Basel liquidity tiers.
const (
	Level1  = "Level 1"
	Level2A = "Level 2A"
	Level2B = "Level 2B"
	NonHQLA = "Non-HQLA"
)

// HQLA haircuts per tier.
const (
	level2AHaircut = 0.15
	level2BHaircut = 0.50
)

// Compliance thresholds.
const (
	maxEncumbrance     = 0.80
	maxVolatility      = 0.50
	maxLiquidationTime = 12 // months
)

var ratingRank = map[string]int{
	"AAA": 1, "AA+": 2, "AA": 3, "AA-": 4,
	"A+": 5, "A": 6, "A-": 7,
	"BBB+": 8, "BBB": 9, "BBB-": 10,
}

// Classify assigns the Basel/LCR tier of an item: cash is Level 1,
// securities rated AA- or better Level 2A, securities rated A+ to BBB-
// Level 2B, everything else Non-HQLA.
func Classify(item models.CollateralItem) models.BaselClassification {
	c := models.BaselClassification{ItemID: item.ID, Level: NonHQLA, Haircut: 1, Value: item.CurrentValue}
	switch item.Category {
	case models.CategoryCash:
		c.Level, c.Haircut = Level1, 0
	case models.CategorySecurities:
		rank, ok := ratingRank[strings.ToUpper(strings.TrimSpace(item.Rating))]
		switch {
		case !ok:
		case rank <= ratingRank["AA-"]:
			c.Level, c.Haircut = Level2A, level2AHaircut
		default:
			c.Level, c.Haircut = Level2B, level2BHaircut
		}
	}
	return c
}

// Regulatory classifies every item, lists compliance issues and derives the
// simplified liquidity ratios, each a value-over-total proxy.
func Regulatory(items []models.CollateralItem) models.RegulatoryCompliance {
	rc := models.RegulatoryCompliance{
		Classifications: make([]models.BaselClassification, 0, len(items)),
	}

	for _, it := range items {
		c := Classify(it)
		rc.Classifications = append(rc.Classifications, c)
		switch c.Level {
		case Level1:
			rc.Level1Value += it.CurrentValue
		case Level2A:
			rc.Level2AValue += it.CurrentValue
		case Level2B:
			rc.Level2BValue += it.CurrentValue
		}
		rc.Issues = append(rc.Issues, issues(it)...)
	}

	rc.HQLAValue = rc.Level1Value + rc.Level2AValue*(1-level2AHaircut) + rc.Level2BValue*(1-level2BHaircut)
	if total := TotalValue(items); total > 0 {
		rc.HQLARatio = rc.HQLAValue / total
		rc.LCRRatio = rc.HQLARatio
		rc.NSFRatio = (rc.Level1Value + rc.Level2AValue + rc.Level2BValue) / total
	}
	rc.Compliant = len(rc.Issues) == 0
	return rc
}

func issues(it models.CollateralItem) []string {
	name := it.Name
	if name == "" {
		name = it.ID
	}
	var out []string
	if !it.Legal.Registered {
		out = append(out, fmt.Sprintf("%s: pledge is not registered", name))
	}
	if it.Legal.EncumbranceRatio > maxEncumbrance {
		out = append(out, fmt.Sprintf("%s: highly encumbered (%.0f%%)", name, it.Legal.EncumbranceRatio*100))
	}
	if it.Volatility > maxVolatility {
		out = append(out, fmt.Sprintf("%s: highly volatile (%.0f%%)", name, it.Volatility*100))
	}
	if it.LiquidationTimeMonths > maxLiquidationTime {
		out = append(out, fmt.Sprintf("%s: slow to liquidate (%.0f months)", name, it.LiquidationTimeMonths))
	}
	return out
}
