package models

// --- Loss Given Default configuration ---

// LGDType selects which LGD payload on a loan is consulted.
type LGDType string

const (
	LGDConstant       LGDType = "constant"
	LGDVariable       LGDType = "variable"
	LGDGuaranteed     LGDType = "guaranteed"
	LGDCollateralized LGDType = "collateralized"
)

// LGDModelType is the time-decay shape of a variable LGD or a collateral
// valuation.
type LGDModelType string

const (
	ModelLinear      LGDModelType = "linear"
	ModelExponential LGDModelType = "exponential"
	ModelLogarithmic LGDModelType = "logarithmic"
	ModelPolynomial  LGDModelType = "polynomial"
	ModelCustom      LGDModelType = "custom"
)

// LGDModelParams parameterises a decay model. Nil pointers mean "absent";
// the exponential model honours the first non-nil of AppreciationRate,
// DepreciationRate and HalfLife in that order.
type LGDModelParams struct {
	Rate             *float64  `json:"rate,omitempty"`
	AppreciationRate *float64  `json:"appreciationRate,omitempty"`
	DepreciationRate *float64  `json:"depreciationRate,omitempty"`
	HalfLife         *float64  `json:"halfLife,omitempty"`
	Coefficients     []float64 `json:"coefficients,omitempty"`
}

// Clone deep-copies the parameters.
func (p LGDModelParams) Clone() LGDModelParams {
	c := LGDModelParams{Coefficients: append([]float64(nil), p.Coefficients...)}
	c.Rate = clonePtr(p.Rate)
	c.AppreciationRate = clonePtr(p.AppreciationRate)
	c.DepreciationRate = clonePtr(p.DepreciationRate)
	c.HalfLife = clonePtr(p.HalfLife)
	return c
}

// VariableLGD drives a time-dependent LGD curve.
type VariableLGD struct {
	Type         string         `json:"type,omitempty"` // "time" or "market"
	Model        LGDModelType   `json:"model"`
	InitialValue float64        `json:"initialValue" validate:"gte=0,lte=1"`
	Parameters   LGDModelParams `json:"parameters"`
}

// GuaranteedLGD blends the borrower LGD with the guarantor's.
type GuaranteedLGD struct {
	BaseLGD       float64 `json:"baseLGD"       validate:"gte=0,lte=1"`
	GuaranteeType string  `json:"guaranteeType,omitempty"`
	Coverage      float64 `json:"coverage"`
	GuarantorLGD  float64 `json:"guarantorLGD"  validate:"gte=0,lte=1"`
}

// LGDPoint is a single sample of an LGD curve.
type LGDPoint struct {
	Date        string  `json:"date"`
	LGD         float64 `json:"lgd"`
	TimeInYears float64 `json:"timeInYears"`
}

// Float returns a pointer to v. Handy for building LGDModelParams literals.
func Float(v float64) *float64 { return &v }

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
