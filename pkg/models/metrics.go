package models

// --- Derived metrics ---

// LoanMetrics is always recomputed as a whole by the loan engine.
type LoanMetrics struct {
	EVAIntrinsic       float64 `json:"evaIntrinsic"`
	EVASale            float64 `json:"evaSale"`
	ExpectedLoss       float64 `json:"expectedLoss"`
	RWA                float64 `json:"rwa"`
	ROE                float64 `json:"roe"`
	RAROC              float64 `json:"raroc"`
	CostOfRisk         float64 `json:"costOfRisk"`
	CapitalConsumption float64 `json:"capitalConsumption"`
	NetMargin          float64 `json:"netMargin"`
	EffectiveYield     float64 `json:"effectiveYield"`
	LGD                float64 `json:"lgd"`
	PD                 float64 `json:"pd"`
}

// PortfolioMetrics aggregates loan metrics across a portfolio.
type PortfolioMetrics struct {
	LoanCount              int     `json:"loanCount"`
	TotalExposure          float64 `json:"totalExposure"`
	TotalDrawn             float64 `json:"totalDrawn"`
	TotalUndrawn           float64 `json:"totalUndrawn"`
	TotalExpectedLoss      float64 `json:"totalExpectedLoss"`
	TotalRWA               float64 `json:"totalRWA"`
	WeightedAveragePD      float64 `json:"weightedAveragePD"`
	WeightedAverageLGD     float64 `json:"weightedAverageLGD"`
	PortfolioROE           float64 `json:"portfolioROE"`
	PortfolioRAROC         float64 `json:"portfolioRAROC"`
	TotalEVAIntrinsic      float64 `json:"totalEVAIntrinsic"`
	TotalEVASale           float64 `json:"totalEVASale"`
	CapitalRequired        float64 `json:"capitalRequired"`
	DiversificationBenefit float64 `json:"diversificationBenefit"`
}

// ScenarioResult pairs a stress definition with the metrics it produced.
type ScenarioResult struct {
	Scenario StressScenarioDefinition `json:"scenario"`
	Metrics  PortfolioMetrics         `json:"metrics"`
}
