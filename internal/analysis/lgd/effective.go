package lgd

import (
	"time"

	"github.com/Ouadii-Zine/financify/pkg/models"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

// Effective returns the LGD of a loan as of asOf, selected by its LGD type.
// Guaranteed loans use the blend, variable loans evaluate their model at the
// time elapsed since the start date, and everything else (including a
// collateralized loan, whose collateral is applied by the loan engine) uses
// the flat LGD or DefaultLGD when none is set.
func Effective(loan *models.Loan, asOf time.Time) float64 {
	switch loan.LGDType {
	case models.LGDGuaranteed:
		if loan.GuaranteedLGD != nil {
			return Guaranteed(*loan.GuaranteedLGD)
		}
	case models.LGDVariable:
		if v := loan.VariableLGD; v != nil {
			return Evaluate(v.Model, v.InitialValue, elapsedYears(loan.StartDate, asOf), v.Parameters)
		}
	case models.LGDConstant, models.LGDCollateralized:
	}
	return Constant(loan)
}

// Constant returns the flat LGD of a loan, DefaultLGD if absent. Loan books
// carry no presence flag, so an LGD of zero counts as absent.
func Constant(loan *models.Loan) float64 {
	if loan.LGD > 0 {
		return Clamp(loan.LGD)
	}
	return DefaultLGD
}

// elapsedYears is never negative; an unparseable start date counts as t=0.
func elapsedYears(startDate string, asOf time.Time) float64 {
	start, err := utils.ParseDate(startDate)
	if err != nil {
		return 0
	}
	t := utils.YearsBetween(start, asOf)
	if t < 0 {
		return 0
	}
	return t
}
