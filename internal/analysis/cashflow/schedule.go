// Package cashflow builds contractual, forecast and stressed cash-flow
// schedules for term loans.
//
// Every builder comes in two forms. Build* returns an error; Generate*
// never fails and instead returns a single sentinel flow whose id starts
// with models.ErrorFlowPrefix. Callers of Generate* must check
// IsErrorSchedule before using the result.
package cashflow

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ouadii-Zine/financify/pkg/models"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

var errNilLoan = errors.New("nil loan")

const forecastSuffix = " (forecast)"

// PaymentDates returns the scheduled dates after start at the given month
// cadence. The last date is always end, even when it breaks the cadence.
// Each date is stepped from start and clamped to the end of its month, so a
// loan starting on the 31st pays on the last day of shorter months.
func PaymentDates(start, end time.Time, months int) []time.Time {
	if months <= 0 {
		months = 3
	}
	var dates []time.Time
	for i := 1; ; i++ {
		d := utils.AddMonths(start, i*months)
		if !d.Before(end) {
			break
		}
		dates = append(dates, d)
	}
	return append(dates, end)
}

// flowNamespace scopes the name-based ids of generated flows.
var flowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Ouadii-Zine/financify/cashflow"))

// FlowID returns the stable id of the seq-th generated flow of a loan. The
// same loan always yields the same ids, so contractual, forecast and
// stressed schedules can be matched flow by flow.
func FlowID(loanID, date string, typ models.CashFlowType, seq int) string {
	name := fmt.Sprintf("%s|%s|%s|%d", loanID, date, typ, seq)
	return uuid.NewSHA1(flowNamespace, []byte(name)).String()
}

type builder struct {
	loanID string
	flows  []models.CashFlow
}

func (b *builder) add(date time.Time, typ models.CashFlowType, amount decimal.Decimal, desc string) {
	day := utils.FormatDate(date)
	b.flows = append(b.flows, models.CashFlow{
		ID:          FlowID(b.loanID, day, typ, len(b.flows)),
		Date:        day,
		Type:        typ,
		Amount:      amount.InexactFloat64(),
		Description: desc,
	})
}

func cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// BuildContractual returns the contractual schedule of a loan: the initial
// drawdown, one-off fees, then interest and principal per period from the
// grace-period index onward. Manual flows on the loan are merged in by date.
func BuildContractual(loan *models.Loan) ([]models.CashFlow, error) {
	if loan == nil {
		return nil, errNilLoan
	}
	start, err := utils.ParseDate(loan.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	end, err := utils.ParseDate(loan.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end date %s is not after start date %s", utils.FormatDate(end), utils.FormatDate(start))
	}

	amount := loan.DrawnAmount
	if amount <= 0 {
		amount = loan.OriginalAmount
	}
	if amount < 0 {
		return nil, fmt.Errorf("negative principal %.2f", amount)
	}

	freq := loan.RepaymentFrequency
	dates := PaymentDates(start, end, freq.MonthsPerPeriod())
	grace := loan.GracePeriodMonths / freq.MonthsPerPeriod()
	if grace >= len(dates) {
		grace = len(dates) - 1
	}

	b := &builder{loanID: loan.ID, flows: make([]models.CashFlow, 0, 2*len(dates)+4)}
	outstanding := cents(amount)
	b.add(start, models.FlowDrawdown, outstanding, "Initial drawdown")
	for _, fee := range []struct {
		name   string
		amount float64
	}{
		{"Upfront fee", loan.Fees.Upfront},
		{"Agency fee", loan.Fees.Agency},
		{"Other fees", loan.Fees.Other},
	} {
		if fee.amount > 0 {
			b.add(start, models.FlowFee, cents(fee.amount), fee.name)
		}
	}

	periodRate := loan.AllInRate() * freq.YearFraction()
	rate := decimal.NewFromFloat(periodRate)
	installment := installmentFor(loan.AmortizationType, outstanding, periodRate, len(dates)-grace)

	for i, d := range dates {
		if i < grace {
			continue
		}
		period := i + 1
		interest := outstanding.Mul(rate).Round(2)
		b.add(d, models.FlowInterest, interest, fmt.Sprintf("Interest period %d", period))

		var repay decimal.Decimal
		switch {
		case i == len(dates)-1:
			repay = outstanding
		case loan.AmortizationType == models.AmortizationConstant:
			repay = installment
		case loan.AmortizationType == models.AmortizationAnnuity:
			repay = installment.Sub(interest)
		}
		if repay.GreaterThan(outstanding) {
			repay = outstanding
		}
		if repay.IsPositive() {
			b.add(d, models.FlowRepayment, repay, fmt.Sprintf("Principal repayment period %d", period))
			outstanding = outstanding.Sub(repay)
		}
	}

	return mergeManual(loan.ID, b.flows, loan.CashFlows)
}

// installmentFor returns the per-period principal (constant) or total
// payment (annuity) over n amortizing periods. In fine loans have none.
func installmentFor(amort models.AmortizationType, principal decimal.Decimal, rate float64, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	switch amort {
	case models.AmortizationConstant:
		return principal.Div(decimal.NewFromInt(int64(n))).Round(2)
	case models.AmortizationAnnuity:
		if rate <= 0 {
			return principal.Div(decimal.NewFromInt(int64(n))).Round(2)
		}
		factor := rate / (1 - math.Pow(1+rate, -float64(n)))
		return principal.Mul(decimal.NewFromFloat(factor)).Round(2)
	default:
		return decimal.Zero
	}
}

// mergeManual adds the manual flows of a loan to a generated schedule and
// orders the result by date. Generated flows keep their relative order.
func mergeManual(loanID string, flows, stored []models.CashFlow) ([]models.CashFlow, error) {
	for i, cf := range stored {
		if !cf.IsManual {
			continue
		}
		d, err := utils.ParseDate(cf.Date)
		if err != nil {
			return nil, fmt.Errorf("manual flow %s: %w", cf.ID, err)
		}
		cf.Date = utils.FormatDate(d)
		if cf.ID == "" {
			cf.ID = FlowID(loanID, cf.Date, "manual", i)
		}
		flows = append(flows, cf)
	}
	slices.SortStableFunc(flows, func(a, b models.CashFlow) int {
		return strings.Compare(a.Date, b.Date)
	})
	return flows, nil
}

// BuildForecast returns the contractual schedule with every repayment
// relabelled as a prepayment and descriptions marked as forecast. Flows keep
// their contractual ids.
func BuildForecast(loan *models.Loan) ([]models.CashFlow, error) {
	base, err := BuildContractual(loan)
	if err != nil {
		return nil, err
	}
	out := make([]models.CashFlow, len(base))
	for i, cf := range base {
		if cf.Type == models.FlowRepayment {
			cf.Type = models.FlowPrepayment
		}
		cf.Description += forecastSuffix
		out[i] = cf
	}
	return out, nil
}

// ErrorFlow returns the sentinel flow reporting a failed generation.
func ErrorFlow(err error) models.CashFlow {
	return models.CashFlow{
		ID:          models.ErrorFlowPrefix + uuid.NewString(),
		Date:        utils.FormatDate(time.Now()),
		Type:        models.FlowFee,
		Description: "Cash flow generation failed: " + err.Error(),
	}
}

// IsErrorSchedule reports whether flows is a sentinel error schedule.
func IsErrorSchedule(flows []models.CashFlow) bool {
	return len(flows) == 1 && flows[0].IsError()
}

func generate(build func() ([]models.CashFlow, error)) (flows []models.CashFlow) {
	defer func() {
		if r := recover(); r != nil {
			flows = []models.CashFlow{ErrorFlow(fmt.Errorf("panic: %v", r))}
		}
	}()
	out, err := build()
	if err != nil {
		return []models.CashFlow{ErrorFlow(err)}
	}
	return out
}

// GenerateContractual is BuildContractual with failures reported as the
// sentinel error flow.
func GenerateContractual(loan *models.Loan) []models.CashFlow {
	return generate(func() ([]models.CashFlow, error) { return BuildContractual(loan) })
}

// GenerateForecast is BuildForecast with failures reported as the sentinel
// error flow.
func GenerateForecast(loan *models.Loan) []models.CashFlow {
	return generate(func() ([]models.CashFlow, error) { return BuildForecast(loan) })
}
