package models

// --- Collateral ---

// CollateralCategory classifies a pledged asset.
type CollateralCategory string

const (
	CategoryRealEstate           CollateralCategory = "real_estate"
	CategoryEquipment            CollateralCategory = "equipment"
	CategoryVehicle              CollateralCategory = "vehicle"
	CategoryCash                 CollateralCategory = "cash"
	CategorySecurities           CollateralCategory = "securities"
	CategoryInventory            CollateralCategory = "inventory"
	CategoryReceivables          CollateralCategory = "receivables"
	CategoryIntellectualProperty CollateralCategory = "intellectual_property"
	CategoryCommodities          CollateralCategory = "commodities"
	CategoryOther                CollateralCategory = "other"
)

// RiskLevel is a qualitative risk grade.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// ValuationModel projects a collateral value forward in time.
type ValuationModel struct {
	Type       LGDModelType   `json:"type"`
	Parameters LGDModelParams `json:"parameters"`
}

// LegalStatus captures registration and encumbrance of a pledge.
type LegalStatus struct {
	Registered       bool    `json:"registered"`
	EncumbranceRatio float64 `json:"encumbranceRatio" validate:"gte=0,lte=1"`
	Jurisdiction     string  `json:"jurisdiction,omitempty"`
}

// CollateralItem is a single pledged asset. Value is the appraisal at
// ValuationDate; CurrentValue is derived from the valuation model.
type CollateralItem struct {
	ID                    string             `json:"id"                   validate:"required"`
	Name                  string             `json:"name,omitempty"`
	Category              CollateralCategory `json:"category,omitempty"`
	Value                 float64            `json:"value"                validate:"gte=0"`
	CurrentValue          float64            `json:"currentValue"`
	ValuationDate         string             `json:"valuationDate,omitempty"`
	ValuationModel        *ValuationModel    `json:"valuationModel,omitempty"`
	Volatility            float64            `json:"volatility"           validate:"gte=0"`
	CorrelationWithLoan   float64            `json:"correlationWithLoan"  validate:"gte=-1,lte=1"`
	RiskLevel             RiskLevel          `json:"riskLevel,omitempty"`
	Legal                 LegalStatus        `json:"legal"`
	LiquidationTimeMonths float64            `json:"liquidationTimeMonths" validate:"gte=0"`
	Location              string             `json:"location,omitempty"`
	Issuer                string             `json:"issuer,omitempty"`
	Rating                string             `json:"rating,omitempty"`
}

// StressTestResult is the outcome of one collateral stress scenario.
type StressTestResult struct {
	Scenario       string  `json:"scenario"`
	Shock          float64 `json:"shock"`
	ResultingValue float64 `json:"resultingValue"`
	Loss           float64 `json:"loss"`
	ImpactPct      float64 `json:"impactPct"`
}

// CollateralRiskMetrics aggregates market-risk measures of a pool.
type CollateralRiskMetrics struct {
	VaR95              float64            `json:"var95"`
	VaR99              float64            `json:"var99"`
	ExpectedShortfall  float64            `json:"expectedShortfall"`
	WeightedVolatility float64            `json:"weightedVolatility"`
	CorrelationMatrix  [][]float64        `json:"correlationMatrix"`
	StressTests        []StressTestResult `json:"stressTests"`
	Beta               float64            `json:"beta"`
}

// BaselClassification is the liquidity tier of one item.
type BaselClassification struct {
	ItemID  string  `json:"itemId"`
	Level   string  `json:"level"` // "Level 1", "Level 2A", "Level 2B", "Non-HQLA"
	Haircut float64 `json:"haircut"`
	Value   float64 `json:"value"`
}

// RegulatoryCompliance summarises the Basel/LCR view of a pool.
type RegulatoryCompliance struct {
	Compliant       bool                  `json:"compliant"`
	Classifications []BaselClassification `json:"classifications"`
	Level1Value     float64               `json:"level1Value"`
	Level2AValue    float64               `json:"level2aValue"`
	Level2BValue    float64               `json:"level2bValue"`
	HQLAValue       float64               `json:"hqlaValue"`
	LCRRatio        float64               `json:"lcrRatio"`
	NSFRatio        float64               `json:"nsfRatio"`
	HQLARatio       float64               `json:"hqlaRatio"`
	Issues          []string              `json:"issues,omitempty"`
}

// CollateralPortfolio is an ordered pool of items plus aggregates that are
// always recomputed from Items.
type CollateralPortfolio struct {
	ID                   string                `json:"id"    validate:"required"`
	Name                 string                `json:"name,omitempty"`
	LoanID               string                `json:"loanId,omitempty"`
	Items                []CollateralItem      `json:"items" validate:"dive"`
	TotalValue           float64               `json:"totalValue"`
	DiversificationScore float64               `json:"diversificationScore"`
	ConcentrationRisk    float64               `json:"concentrationRisk"`
	RiskMetrics          CollateralRiskMetrics `json:"portfolioRiskMetrics"`
	Regulatory           RegulatoryCompliance  `json:"regulatoryCompliance"`
}

// Clone deep-copies the pool. Valuation model parameters are duplicated.
func (p *CollateralPortfolio) Clone() CollateralPortfolio {
	c := *p
	c.Items = make([]CollateralItem, len(p.Items))
	for i, it := range p.Items {
		if it.ValuationModel != nil {
			vm := *it.ValuationModel
			vm.Parameters = it.ValuationModel.Parameters.Clone()
			it.ValuationModel = &vm
		}
		c.Items[i] = it
	}
	c.RiskMetrics.StressTests = append([]StressTestResult(nil), p.RiskMetrics.StressTests...)
	c.Regulatory.Classifications = append([]BaselClassification(nil), p.Regulatory.Classifications...)
	c.Regulatory.Issues = append([]string(nil), p.Regulatory.Issues...)
	return c
}
