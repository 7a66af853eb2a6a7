package loanbook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

const jsonBook = `{
  "name": "Corporate book",
  "loans": [
    {
      "id": "L1",
      "startDate": "2024-01-01",
      "endDate": "2029-01-01",
      "originalAmount": 1000000,
      "drawnAmount": 1000000,
      "pd": 0.01,
      "lgd": 0.45,
      "margin": 0.02,
      "referenceRate": 0.03,
      "internalRating": "BBB",
      "repaymentFrequency": "annual",
      "amortizationType": "inFine",
      "fees": {"upfront": 10000}
    },
    {
      "id": "L2",
      "startDate": "2024-06-01",
      "endDate": "2027-06-01",
      "originalAmount": 500000,
      "pd": 0.02,
      "lgdType": "collateralized",
      "collateralPortfolioId": "P1",
      "sector": "Real Estate",
      "margin": 0.025,
      "referenceRate": 0.03
    }
  ],
  "collateralPortfolios": [
    {"id": "P1", "items": [{"id": "C1", "category": "real_estate", "value": 400000, "volatility": 0.1}]}
  ]
}`

const yamlBook = `
name: Corporate book
loans:
  - id: L1
    startDate: 2024-01-01
    endDate: 2029-01-01
    originalAmount: 1000000
    drawnAmount: 1000000
    pd: 0.01
    lgd: 0.45
    margin: 0.02
    referenceRate: 0.03
    internalRating: BBB
    variableLgd:
      type: time
      model: linear
      initialValue: 0.4
      parameters:
        rate: -0.02
`

func TestParseJSON(t *testing.T) {
	b, err := Parse([]byte(jsonBook), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Name != "Corporate book" || len(b.Loans) != 2 || len(b.CollateralPortfolios) != 1 {
		t.Fatalf("got %q with %d loans and %d pools", b.Name, len(b.Loans), len(b.CollateralPortfolios))
	}
	l := b.Loans[0]
	if l.Fees.Upfront != 10000 || l.RepaymentFrequency != models.FrequencyAnnual || l.AmortizationType != models.AmortizationInFine {
		t.Errorf("loan fields: got %+v", l)
	}
	if b.Loans[1].LGDType != models.LGDCollateralized || b.Loans[1].CollateralPortfolioID != "P1" {
		t.Errorf("collateral link: got %+v", b.Loans[1])
	}
	if _, ok := b.Pools().CollateralPortfolio("P1"); !ok {
		t.Error("pool P1 not indexed")
	}
}

func TestParseYAML(t *testing.T) {
	b, err := Parse([]byte(yamlBook), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := b.Loans[0]
	if l.StartDate != "2024-01-01" {
		t.Errorf("StartDate: got %q, want 2024-01-01", l.StartDate)
	}
	if l.VariableLGD == nil || l.VariableLGD.Parameters.Rate == nil || *l.VariableLGD.Parameters.Rate != -0.02 {
		t.Errorf("variable LGD: got %+v", l.VariableLGD)
	}
}

func TestParseBareList(t *testing.T) {
	b, err := Parse([]byte(`[{"id":"A","startDate":"2024-01-01","endDate":"2025-01-01","originalAmount":1}]`), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(b.Loans) != 1 || b.Loans[0].ID != "A" {
		t.Errorf("got %+v", b.Loans)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing id", `{"loans":[{"startDate":"2024-01-01","endDate":"2025-01-01"}]}`, "loans[0].id is required"},
		{"pd above one", `{"loans":[{"id":"A","startDate":"2024-01-01","endDate":"2025-01-01","pd":1.5}]}`, "loans[0].pd must be lte 1"},
		{"bad frequency", `{"loans":[{"id":"A","startDate":"2024-01-01","endDate":"2025-01-01","repaymentFrequency":"weekly"}]}`, "repaymentFrequency must be one of"},
		{"duplicate id", `{"loans":[{"id":"A","startDate":"2024-01-01","endDate":"2025-01-01"},{"id":"A","startDate":"2024-01-01","endDate":"2025-01-01"}]}`, `duplicate id "A"`},
		{"collateral item", `{"loans":[],"collateralPortfolios":[{"id":"P","items":[{"id":"C","value":-1}]}]}`, "items[0].value must be gte 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error: got %v, want one containing %q", err, tt.want)
			}
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := Load("book.csv"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Load csv: got %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Parse([]byte("{}"), "toml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Parse toml: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestNormalize(t *testing.T) {
	b := &Book{Loans: []models.Loan{
		{ID: "a", Sector: "real estate"},
		{ID: "b", Sector: "Energy", LGD: 0.2},
		{ID: "c", Sector: "Energy", LGDType: models.LGDGuaranteed},
		{ID: "d", Sector: "Unknown"},
	}}
	n := b.Normalize(models.DefaultCalculationParameters())
	if n != 1 {
		t.Errorf("changed: got %d, want 1", n)
	}
	if b.Loans[0].LGD != 0.35 {
		t.Errorf("sector LGD: got %f, want 0.35", b.Loans[0].LGD)
	}
	if b.Loans[1].LGD != 0.2 || b.Loans[2].LGD != 0 || b.Loans[3].LGD != 0 {
		t.Errorf("untouched loans changed: %+v", b.Loans[1:])
	}
}

func TestLookups(t *testing.T) {
	b, err := Parse([]byte(jsonBook), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if l, err := b.Loan("L2"); err != nil || l.ID != "L2" {
		t.Errorf("Loan(L2): got %v, %v", l, err)
	}
	if _, err := b.Loan("nope"); !errors.Is(err, ErrLoanNotFound) {
		t.Errorf("Loan(nope): got %v, want ErrLoanNotFound", err)
	}
	if _, err := b.Portfolio("nope"); !errors.Is(err, ErrPortfolioNotFound) {
		t.Errorf("Portfolio(nope): got %v, want ErrPortfolioNotFound", err)
	}

	def := models.DefaultCalculationParameters()
	if got := b.ParametersOr(def); got.TargetROE != def.TargetROE {
		t.Errorf("ParametersOr: got %+v", got)
	}
}

func TestSaveAndLoadYAML(t *testing.T) {
	b, err := Parse([]byte(jsonBook), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	b.Loans[0].ReferenceRate = 0.0431

	path := filepath.Join(t.TempDir(), "book.yaml")
	if err := Save(path, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "referenceRate: 0.0431") {
		t.Errorf("yaml output missing updated rate:\n%s", raw)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Loans[0].ReferenceRate != 0.0431 || len(got.CollateralPortfolios) != 1 {
		t.Errorf("reloaded book: got %+v", got.Loans[0])
	}
}

func TestYAMLKeepsScalarText(t *testing.T) {
	const doc = `
loans:
  - id: 1001
    startDate: 2024-01-01
    endDate: 2026-01-31
    originalAmount: 250000
    internalRating: 2
    collateralPortfolioId: 77
    lgdType: collateralized
collateralPortfolios:
  - id: 77
    items:
      - id: 1
        value: 300000
        valuationDate: 2023-12-15
`
	b, err := Parse([]byte(doc), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := b.Loans[0]
	if l.ID != "1001" || l.CollateralPortfolioID != "77" || l.InternalRating != "2" {
		t.Errorf("ids: got id=%q pool=%q rating=%q", l.ID, l.CollateralPortfolioID, l.InternalRating)
	}
	if l.StartDate != "2024-01-01" || l.EndDate != "2026-01-31" {
		t.Errorf("dates: got %q to %q", l.StartDate, l.EndDate)
	}
	if l.OriginalAmount != 250000 {
		t.Errorf("OriginalAmount: got %v, want 250000", l.OriginalAmount)
	}
	item := b.CollateralPortfolios[0].Items[0]
	if item.ID != "1" || item.ValuationDate != "2023-12-15" || item.Value != 300000 {
		t.Errorf("collateral item: got %+v", item)
	}

	out, err := Encode(b, FormatYAML)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(out), "T00:00:00Z") {
		t.Errorf("dates rewritten as timestamps:\n%s", out)
	}
	again, err := Parse(out, FormatYAML)
	if err != nil {
		t.Fatalf("Parse encoded: %v", err)
	}
	if again.Loans[0].StartDate != "2024-01-01" || again.Loans[0].ID != "1001" {
		t.Errorf("round trip: got %+v", again.Loans[0])
	}
}

func TestParametersOverlayDefaults(t *testing.T) {
	const doc = `{
  "parameters": {"collateralHaircut": 0, "targetROE": 0.15, "pdCurve": {"BBB": 0.003}},
  "loans": [{"id": "A", "startDate": "2024-01-01", "endDate": "2025-01-01", "originalAmount": 1}]
}`
	b, err := Parse([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	def := models.DefaultCalculationParameters()
	def.TaxRate = 0.3
	p := b.ParametersOr(def)
	if p.CollateralHaircut != 0 {
		t.Errorf("CollateralHaircut: got %v, want 0", p.CollateralHaircut)
	}
	if p.TargetROE != 0.15 {
		t.Errorf("TargetROE: got %v, want 0.15", p.TargetROE)
	}
	if p.TaxRate != 0.25 {
		t.Errorf("TaxRate: got %v, want built-in 0.25", p.TaxRate)
	}
	if p.PDCurve["BBB"] != 0.003 || p.PDCurve["AAA"] != 0.0001 {
		t.Errorf("PD curve: got BBB=%v AAA=%v, want 0.003 and 0.0001", p.PDCurve["BBB"], p.PDCurve["AAA"])
	}

	plain, err := Parse([]byte(`{"loans": []}`), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if plain.Parameters != nil {
		t.Errorf("book without parameters: got %+v, want nil", plain.Parameters)
	}
	if got := plain.ParametersOr(def); got.TaxRate != 0.3 {
		t.Errorf("ParametersOr without section: got TaxRate %v, want 0.3", got.TaxRate)
	}

	y, err := Parse([]byte("parameters:\n  collateralHaircut: 0\nloans: []\n"), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if y.Parameters == nil || y.Parameters.CollateralHaircut != 0 || y.Parameters.CapitalRatio != 0.08 {
		t.Errorf("yaml parameters: got %+v", y.Parameters)
	}
}
