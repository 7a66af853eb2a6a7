package collateral

import (
	"fmt"
	"math"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

// DiversificationScore converts the average of the item-level and
// category-level Herfindahl-Hirschman indices into a score in [0, 1]:
// (1 − HHI) / (1 − 1/n). Pools of one item or less score 0. Items without a
// category form their own bucket in the category index.
func DiversificationScore(items []models.CollateralItem) float64 {
	n := len(items)
	total := TotalValue(items)
	if n <= 1 || total <= 0 {
		return 0
	}

	var itemHHI float64
	for _, it := range items {
		share := it.CurrentValue / total
		itemHHI += share * share
	}

	var categoryHHI float64
	for _, v := range sumBy(items, categoryKey) {
		share := v / total
		categoryHHI += share * share
	}

	combined := (itemHHI + categoryHHI) / 2
	score := (1 - combined) / (1 - 1/float64(n))
	return math.Max(0, math.Min(1, score))
}

// ConcentrationRisk blends the largest single-item share (40%), the largest
// category share (40%) and the largest location share (20%, zero when no
// item has a location). An empty or worthless pool is fully concentrated.
func ConcentrationRisk(items []models.CollateralItem) float64 {
	total := TotalValue(items)
	if len(items) == 0 || total <= 0 {
		return 1
	}

	var maxItem float64
	for _, it := range items {
		maxItem = math.Max(maxItem, it.CurrentValue/total)
	}
	maxCategory := maxShare(sumBy(items, categoryKey), total)
	maxLocation := maxShare(sumBy(items, func(i int, it models.CollateralItem) string { return it.Location }), total)

	return 0.4*maxItem + 0.4*maxCategory + 0.2*maxLocation
}

// sumBy totals current value per key, skipping empty keys.
func sumBy(items []models.CollateralItem, key func(int, models.CollateralItem) string) map[string]float64 {
	sums := make(map[string]float64)
	for i, it := range items {
		k := key(i, it)
		if k == "" {
			continue
		}
		sums[k] += it.CurrentValue
	}
	return sums
}

func maxShare(sums map[string]float64, total float64) float64 {
	var m float64
	for _, v := range sums {
		m = math.Max(m, v/total)
	}
	return m
}

func categoryKey(i int, it models.CollateralItem) string {
	if it.Category == "" {
		return fmt.Sprintf("item#%d", i)
	}
	return string(it.Category)
}
