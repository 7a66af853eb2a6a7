package models

// --- Calculation parameters ---

// StressScenarioDefinition describes a portfolio-level shock. PD and LGD
// multipliers are multiplicative, rate and spread shifts additive.
type StressScenarioDefinition struct {
	Name          string  `json:"name"                  mapstructure:"name"`
	Description   string  `json:"description,omitempty" mapstructure:"description"`
	PDMultiplier  float64 `json:"pdMultiplier"          mapstructure:"pd_multiplier"`
	LGDMultiplier float64 `json:"lgdMultiplier"         mapstructure:"lgd_multiplier"`
	RateShift     float64 `json:"rateShift"             mapstructure:"rate_shift"`
	SpreadShift   float64 `json:"spreadShift"           mapstructure:"spread_shift"`
}

// CalculationParameters are the global assumptions of one calculation. The
// engine treats them as read-only.
type CalculationParameters struct {
	TargetROE            float64                    `json:"targetROE"`
	TaxRate              float64                    `json:"taxRate"`
	CapitalRatio         float64                    `json:"capitalRatio"`
	FundingCost          float64                    `json:"fundingCost"`
	OperationalCostRatio float64                    `json:"operationalCostRatio"`
	DefaultSalePrice     float64                    `json:"defaultSalePrice"`
	CollateralHaircut    float64                    `json:"collateralHaircut"`
	PDCurve              map[string]float64         `json:"pdCurve,omitempty"`
	LGDAssumptions       map[string]float64         `json:"lgdAssumptions,omitempty"`
	StressScenarios      []StressScenarioDefinition `json:"stressScenarios,omitempty"`
}

// DefaultCalculationParameters returns the built-in assumptions used when no
// parameter store is configured.
func DefaultCalculationParameters() CalculationParameters {
	return CalculationParameters{
		TargetROE:            0.12,
		TaxRate:              0.25,
		CapitalRatio:         0.08,
		FundingCost:          0.02,
		OperationalCostRatio: 0.01,
		DefaultSalePrice:     1,
		CollateralHaircut:    0.25,
		PDCurve: map[string]float64{
			"AAA": 0.0001, "AA+": 0.0002, "AA": 0.0003, "AA-": 0.0004,
			"A+": 0.0005, "A": 0.0007, "A-": 0.0009,
			"BBB+": 0.0013, "BBB": 0.0020, "BBB-": 0.0030,
			"BB+": 0.0050, "BB": 0.0080, "BB-": 0.0120,
			"B+": 0.0200, "B": 0.0350, "B-": 0.0550,
			"CCC+": 0.1000, "CCC": 0.1800, "CCC-": 0.2500,
			"CC": 0.3500, "C": 0.5000, "D": 1,
		},
		LGDAssumptions: map[string]float64{
			"Financial Services": 0.40,
			"Real Estate":        0.35,
			"Energy":             0.45,
			"Technology":         0.50,
			"Healthcare":         0.45,
			"Consumer Goods":     0.45,
			"Industrials":        0.40,
			"Utilities":          0.35,
			"Telecommunications": 0.45,
			"Materials":          0.40,
		},
		StressScenarios: []StressScenarioDefinition{
			{Name: "Baseline", PDMultiplier: 1, LGDMultiplier: 1},
			{Name: "Adverse", Description: "Moderate recession", PDMultiplier: 1.5, LGDMultiplier: 1.1, RateShift: 0.01, SpreadShift: 0.005},
			{Name: "Severely Adverse", Description: "Deep recession with rate spike", PDMultiplier: 2.5, LGDMultiplier: 1.25, RateShift: 0.02, SpreadShift: 0.01},
		},
	}
}
