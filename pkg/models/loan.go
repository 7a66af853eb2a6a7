package models

// --- Loans ---

// RepaymentFrequency is the cadence of scheduled interest and principal flows.
type RepaymentFrequency string

const (
	FrequencyMonthly    RepaymentFrequency = "monthly"
	FrequencyQuarterly  RepaymentFrequency = "quarterly"
	FrequencySemiannual RepaymentFrequency = "semiannual"
	FrequencyAnnual     RepaymentFrequency = "annual"
)

// MonthsPerPeriod returns the number of months between two scheduled dates.
// Unknown frequencies fall back to quarterly.
func (f RepaymentFrequency) MonthsPerPeriod() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencySemiannual:
		return 6
	case FrequencyAnnual:
		return 12
	default:
		return 3
	}
}

// YearFraction is the accrual fraction of a single period (30/360 style).
func (f RepaymentFrequency) YearFraction() float64 {
	return float64(f.MonthsPerPeriod()) / 12
}

// AmortizationType selects how principal is repaid over the schedule.
type AmortizationType string

const (
	AmortizationInFine   AmortizationType = "inFine"
	AmortizationConstant AmortizationType = "constant"
	AmortizationAnnuity  AmortizationType = "annuity"
)

// LoanType describes the facility shape.
type LoanType string

const (
	LoanTypeTerm      LoanType = "term"
	LoanTypeRevolver  LoanType = "revolver"
	LoanTypeBridge    LoanType = "bridge"
	LoanTypeGuarantee LoanType = "guarantee"
)

// Fees holds the fee schedule of a facility. Commitment is an annual rate
// on the undrawn amount, the others are one-off amounts.
type Fees struct {
	Upfront    float64 `json:"upfront,omitempty"    validate:"gte=0"`
	Commitment float64 `json:"commitment,omitempty" validate:"gte=0"`
	Agency     float64 `json:"agency,omitempty"     validate:"gte=0"`
	Other      float64 `json:"other,omitempty"      validate:"gte=0"`
}

// OneOff returns upfront + agency + other fees.
func (f Fees) OneOff() float64 {
	return f.Upfront + f.Agency + f.Other
}

// Loan is a single credit exposure.
//
// Dates are ISO-8601 strings ("2006-01-02" or RFC3339). Metrics are derived
// by the loan engine and recomputed on every calculation.
type Loan struct {
	ID       string   `json:"id"                 validate:"required"`
	Name     string   `json:"name,omitempty"`
	Borrower string   `json:"borrower,omitempty"`
	Type     LoanType `json:"type,omitempty"`
	Status   string   `json:"status,omitempty"`

	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate"   validate:"required"`
	Currency  string `json:"currency,omitempty"`

	OriginalAmount    float64 `json:"originalAmount"              validate:"gte=0"`
	OutstandingAmount float64 `json:"outstandingAmount,omitempty" validate:"gte=0"`
	DrawnAmount       float64 `json:"drawnAmount,omitempty"       validate:"gte=0"`
	UndrawnAmount     float64 `json:"undrawnAmount,omitempty"     validate:"gte=0"`

	PD  float64 `json:"pd"            validate:"gte=0,lte=1"`
	LGD float64 `json:"lgd,omitempty" validate:"gte=0,lte=1"`
	EAD float64 `json:"ead,omitempty" validate:"gte=0"`

	LGDType               LGDType        `json:"lgdType,omitempty"               validate:"omitempty,oneof=constant variable guaranteed collateralized"`
	VariableLGD           *VariableLGD   `json:"variableLgd,omitempty"`
	GuaranteedLGD         *GuaranteedLGD `json:"guaranteedLgd,omitempty"`
	CollateralPortfolioID string         `json:"collateralPortfolioId,omitempty"`

	Margin         float64  `json:"margin"`
	ReferenceRate  float64  `json:"referenceRate"`
	ReferenceIndex string   `json:"referenceIndex,omitempty"`
	Fees           Fees     `json:"fees"`
	SalePrice      *float64 `json:"salePrice,omitempty"`

	InternalRating string `json:"internalRating,omitempty"`
	Sector         string `json:"sector,omitempty"`
	Country        string `json:"country,omitempty"`

	RepaymentFrequency RepaymentFrequency `json:"repaymentFrequency,omitempty" validate:"omitempty,oneof=monthly quarterly semiannual annual"`
	AmortizationType   AmortizationType   `json:"amortizationType,omitempty"   validate:"omitempty,oneof=inFine constant annuity"`
	GracePeriodMonths  int                `json:"gracePeriodMonths,omitempty"  validate:"gte=0"`

	CashFlows []CashFlow   `json:"cashFlows,omitempty"`
	Metrics   *LoanMetrics `json:"metrics,omitempty"`
}

// Exposure returns EAD, falling back to outstanding, drawn and finally
// original amount when EAD was not supplied.
func (l *Loan) Exposure() float64 {
	switch {
	case l.EAD > 0:
		return l.EAD
	case l.OutstandingAmount > 0:
		return l.OutstandingAmount
	case l.DrawnAmount > 0:
		return l.DrawnAmount
	default:
		return l.OriginalAmount
	}
}

// AllInRate is margin plus reference rate.
func (l *Loan) AllInRate() float64 {
	return l.Margin + l.ReferenceRate
}

// Clone returns a deep copy. Pointer payloads and slices are duplicated so
// that mutating the clone never reaches the original.
func (l *Loan) Clone() Loan {
	c := *l
	if l.VariableLGD != nil {
		v := *l.VariableLGD
		v.Parameters = l.VariableLGD.Parameters.Clone()
		c.VariableLGD = &v
	}
	if l.GuaranteedLGD != nil {
		g := *l.GuaranteedLGD
		c.GuaranteedLGD = &g
	}
	if l.SalePrice != nil {
		p := *l.SalePrice
		c.SalePrice = &p
	}
	if l.CashFlows != nil {
		c.CashFlows = append([]CashFlow(nil), l.CashFlows...)
	}
	if l.Metrics != nil {
		m := *l.Metrics
		c.Metrics = &m
	}
	return c
}

// CloneLoans deep-copies a loan list.
func CloneLoans(loans []Loan) []Loan {
	out := make([]Loan, len(loans))
	for i := range loans {
		out[i] = loans[i].Clone()
	}
	return out
}
