package lgd

import (
	"iter"
	"slices"
	"time"

	"github.com/Ouadii-Zine/financify/pkg/models"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

// Curve samples a variable LGD every stepMonths between start and end
// (inclusive). Dates advance by 30-day months, so they drift from calendar
// month ends over long horizons. The sequence is finite and can be ranged
// over any number of times.
func Curve(v models.VariableLGD, start, end time.Time, stepMonths int) iter.Seq[models.LGDPoint] {
	if stepMonths <= 0 {
		stepMonths = 1
	}
	return func(yield func(models.LGDPoint) bool) {
		for k := 0; ; k++ {
			d := utils.AddApproxMonths(start, k*stepMonths)
			if d.After(end) {
				return
			}
			t := utils.YearsBetween(start, d)
			p := models.LGDPoint{
				Date:        utils.FormatDate(d),
				LGD:         Evaluate(v.Model, v.InitialValue, t, v.Parameters),
				TimeInYears: t,
			}
			if !yield(p) {
				return
			}
		}
	}
}

// SampleCurve collects Curve into a slice.
func SampleCurve(v models.VariableLGD, start, end time.Time, stepMonths int) []models.LGDPoint {
	return slices.Collect(Curve(v, start, end, stepMonths))
}

// CurveForLoan samples the LGD of a loan over its life. Loans without a
// variable model produce a flat curve at their effective LGD.
func CurveForLoan(loan *models.Loan, stepMonths int) ([]models.LGDPoint, error) {
	start, err := utils.ParseDate(loan.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := utils.ParseDate(loan.EndDate)
	if err != nil {
		return nil, err
	}

	v := models.VariableLGD{Model: models.ModelCustom, InitialValue: Effective(loan, start)}
	if loan.LGDType == models.LGDVariable && loan.VariableLGD != nil {
		v = *loan.VariableLGD
	}
	return SampleCurve(v, start, end, stepMonths), nil
}
