package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"slices"
	"strings"
	"time"

	"github.com/Ouadii-Zine/financify/pkg/models"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Rendering
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// ErrUnknownFormat is returned by Render for formats other than html and text.
var ErrUnknownFormat = errors.New("unknown report format")

// Section identifies a section to include/exclude.
type Section string

const (
	SectionSummary    Section = "summary"
	SectionLoans      Section = "loans"
	SectionStress     Section = "stress"
	SectionCollateral Section = "collateral"
	SectionLGD        Section = "lgd"
)

// AllSections returns all report sections in display order.
func AllSections() []Section {
	return []Section{SectionSummary, SectionLoans, SectionStress, SectionCollateral, SectionLGD}
}

// Config controls report generation behaviour.
type Config struct {
	Format      Format      // output format (default: HTML)
	Sections    []Section   // sections to include (default: all)
	Title       string      // custom report title (optional)
	Author      string      // author name (optional)
	Currency    string      // currency code prefixed to amounts (optional)
	GeneratedAt time.Time   // report timestamp (default: now)
	ChartCfg    ChartConfig // chart rendering config
	MaxLoanBars int         // loans shown in the expected-loss chart (default: 10)
	MaxCurves   int         // LGD curves drawn (default: 6)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:      FormatHTML,
		Sections:    AllSections(),
		Author:      "financify",
		ChartCfg:    DefaultChartConfig(),
		MaxLoanBars: 10,
		MaxCurves:   6,
	}
}

func (c Config) hasSection(s Section) bool {
	return slices.Contains(c.Sections, s)
}

// Input is everything a report shows. Loans are expected to carry their
// metrics; Curves are keyed by loan id.
type Input struct {
	Name       string
	Parameters models.CalculationParameters
	Loans      []models.Loan
	Portfolio  models.PortfolioMetrics
	Stress     []models.ScenarioResult
	Collateral []models.CollateralPortfolio
	Curves     map[string][]models.LGDPoint
}

// ════════════════════════════════════════════════════════════════════
// Template data
// ════════════════════════════════════════════════════════════════════

// ReportData is the template model passed to HTML templates.
type ReportData struct {
	Title       string
	BookName    string
	Author      string
	GeneratedAt string

	KPIs       []KPI
	Loans      []LoanRow
	Stress     []StressRow
	Collateral []CollateralRow

	ROEGauge    template.HTML
	LossChart   template.HTML
	StressChart template.HTML
	LGDChart    template.HTML

	ShowSummary    bool
	ShowLoans      bool
	ShowStress     bool
	ShowCollateral bool
	ShowLGD        bool
}

// KPI is a labelled headline figure.
type KPI struct {
	Label string
	Value string
}

// LoanRow is one loan in the loan table.
type LoanRow struct {
	ID       string
	Name     string
	Rating   string
	Exposure string
	PD       string
	LGD      string
	EL       string
	RWA      string
	ROE      string
	RAROC    string
	EVA      string
	EVAClass string // CSS class: positive, negative
}

// StressRow is one scenario in the stress table.
type StressRow struct {
	Name          string
	Description   string
	PDMultiplier  string
	LGDMultiplier string
	EL            string
	ELChange      string
	RWA           string
	Capital       string
	ROE           string
}

// CollateralRow summarises one collateral pool.
type CollateralRow struct {
	ID              string
	Items           int
	TotalValue      string
	Diversification string
	Concentration   string
	VaR95           string
	HQLARatio       string
	Compliant       bool
	Issues          []string
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// Render generates the report in cfg.Format.
func Render(in *Input, cfg Config) (string, error) {
	switch cfg.Format {
	case FormatHTML, "":
		return GenerateHTML(in, cfg)
	case FormatText:
		return GenerateText(in, cfg)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}
}

var reportTmpl = template.Must(template.New("report").Parse(ReportTemplate))

// GenerateHTML generates a self-contained HTML risk report.
func GenerateHTML(in *Input, cfg Config) (string, error) {
	if in == nil {
		return "", errors.New("report input is nil")
	}

	data := buildReportData(in, cfg)

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText generates a plain-text report (terminal / CLI friendly).
func GenerateText(in *Input, cfg Config) (string, error) {
	if in == nil {
		return "", errors.New("report input is nil")
	}
	return renderTextReport(buildReportData(in, cfg)), nil
}

// ════════════════════════════════════════════════════════════════════
// Building template data
// ════════════════════════════════════════════════════════════════════

func buildReportData(in *Input, cfg Config) ReportData {
	if len(cfg.Sections) == 0 {
		cfg.Sections = AllSections()
	}
	if cfg.ChartCfg.Width == 0 {
		cfg.ChartCfg = DefaultChartConfig()
	}
	generated := cfg.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	amount := func(v float64) string { return utils.FormatAmount(v, cfg.Currency) }

	d := ReportData{
		Title:          cfg.Title,
		BookName:       in.Name,
		Author:         cfg.Author,
		GeneratedAt:    generated.Format("02 Jan 2006 15:04 MST"),
		ShowSummary:    cfg.hasSection(SectionSummary),
		ShowLoans:      cfg.hasSection(SectionLoans) && len(in.Loans) > 0,
		ShowStress:     cfg.hasSection(SectionStress) && len(in.Stress) > 0,
		ShowCollateral: cfg.hasSection(SectionCollateral) && len(in.Collateral) > 0,
		ShowLGD:        cfg.hasSection(SectionLGD) && len(in.Curves) > 0,
	}
	if d.Title == "" {
		d.Title = "Portfolio Risk Report"
		if in.Name != "" {
			d.Title += ": " + in.Name
		}
	}

	pm := in.Portfolio
	if d.ShowSummary {
		d.KPIs = []KPI{
			{"Loans", fmt.Sprintf("%d", pm.LoanCount)},
			{"Exposure", amount(pm.TotalExposure)},
			{"Expected loss", amount(pm.TotalExpectedLoss)},
			{"RWA", amount(pm.TotalRWA)},
			{"Capital required", amount(pm.CapitalRequired)},
			{"Weighted PD", utils.FormatPercent(pm.WeightedAveragePD)},
			{"Weighted LGD", utils.FormatPercent(pm.WeightedAverageLGD)},
			{"ROE", utils.FormatPercent(pm.PortfolioROE)},
			{"RAROC", utils.FormatPercent(pm.PortfolioRAROC)},
			{"EVA intrinsic", amount(pm.TotalEVAIntrinsic)},
			{"EVA sale", amount(pm.TotalEVASale)},
			{"Diversification benefit", amount(pm.DiversificationBenefit)},
		}
		if target := in.Parameters.TargetROE; target > 0 {
			score := pm.PortfolioROE / target * 100
			d.ROEGauge = template.HTML(GaugeChart(score, "ROE vs target "+utils.FormatPercent(target), 200))
		}
	}

	if d.ShowLoans {
		d.Loans = buildLoanRows(in.Loans, amount)
		d.LossChart = template.HTML(lossChart(in.Loans, cfg))
	}

	if d.ShowStress {
		d.Stress = buildStressRows(in.Stress, amount)
		bars := make([]BarItem, len(in.Stress))
		for i, r := range in.Stress {
			bars[i] = BarItem{
				Label:   r.Scenario.Name,
				Value:   r.Metrics.TotalExpectedLoss,
				Display: utils.FormatAmountCompact(r.Metrics.TotalExpectedLoss),
			}
		}
		cc := cfg.ChartCfg
		cc.Title = "Expected loss by scenario"
		d.StressChart = template.HTML(HorizontalBarChart(bars, cc))
	}

	if d.ShowCollateral {
		for _, p := range in.Collateral {
			d.Collateral = append(d.Collateral, CollateralRow{
				ID:              p.ID,
				Items:           len(p.Items),
				TotalValue:      amount(p.TotalValue),
				Diversification: fmt.Sprintf("%.1f", p.DiversificationScore),
				Concentration:   fmt.Sprintf("%.1f", p.ConcentrationRisk),
				VaR95:           amount(p.RiskMetrics.VaR95),
				HQLARatio:       utils.FormatPercent(p.Regulatory.HQLARatio),
				Compliant:       p.Regulatory.Compliant,
				Issues:          p.Regulatory.Issues,
			})
		}
	}

	if d.ShowLGD {
		d.LGDChart = template.HTML(lgdChart(in, cfg))
	}
	return d
}

func buildLoanRows(loans []models.Loan, amount func(float64) string) []LoanRow {
	rows := make([]LoanRow, 0, len(loans))
	for _, l := range loans {
		m := l.Metrics
		if m == nil {
			m = &models.LoanMetrics{}
		}
		evaClass := "positive"
		if m.EVAIntrinsic < 0 {
			evaClass = "negative"
		}
		rows = append(rows, LoanRow{
			ID:       l.ID,
			Name:     l.Name,
			Rating:   l.InternalRating,
			Exposure: amount(l.Exposure()),
			PD:       utils.FormatPercent(m.PD),
			LGD:      utils.FormatPercent(m.LGD),
			EL:       amount(m.ExpectedLoss),
			RWA:      amount(m.RWA),
			ROE:      utils.FormatPercent(m.ROE),
			RAROC:    utils.FormatPercent(m.RAROC),
			EVA:      amount(m.EVAIntrinsic),
			EVAClass: evaClass,
		})
	}
	return rows
}

// buildStressRows reports each scenario against the first one, which is
// conventionally the baseline.
func buildStressRows(results []models.ScenarioResult, amount func(float64) string) []StressRow {
	rows := make([]StressRow, len(results))
	base := results[0].Metrics.TotalExpectedLoss
	for i, r := range results {
		m := r.Metrics
		change := "-"
		if i > 0 && base > 0 {
			change = fmt.Sprintf("%+.1f%%", (m.TotalExpectedLoss/base-1)*100)
		}
		rows[i] = StressRow{
			Name:          r.Scenario.Name,
			Description:   r.Scenario.Description,
			PDMultiplier:  fmt.Sprintf("%.2fx", r.Scenario.PDMultiplier),
			LGDMultiplier: fmt.Sprintf("%.2fx", r.Scenario.LGDMultiplier),
			EL:            amount(m.TotalExpectedLoss),
			ELChange:      change,
			RWA:           amount(m.TotalRWA),
			Capital:       amount(m.CapitalRequired),
			ROE:           utils.FormatPercent(m.PortfolioROE),
		}
	}
	return rows
}

// lossChart plots the loans with the largest expected loss.
func lossChart(loans []models.Loan, cfg Config) string {
	var bars []BarItem
	for _, l := range loans {
		if l.Metrics == nil {
			continue
		}
		label := l.ID
		if l.Name != "" {
			label = l.Name
		}
		bars = append(bars, BarItem{
			Label:   label,
			Value:   l.Metrics.ExpectedLoss,
			Display: utils.FormatAmountCompact(l.Metrics.ExpectedLoss),
		})
	}
	slices.SortStableFunc(bars, func(a, b BarItem) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
	if n := cfg.MaxLoanBars; n > 0 && len(bars) > n {
		bars = bars[:n]
	}
	cc := cfg.ChartCfg
	cc.Title = "Expected loss by loan"
	return HorizontalBarChart(bars, cc)
}

// lgdChart draws the LGD curves of the book, in loan order, against the
// time axis of the longest one.
func lgdChart(in *Input, cfg Config) string {
	var (
		series  []LineChartSeries
		longest []models.LGDPoint
	)
	for _, l := range in.Loans {
		points, ok := in.Curves[l.ID]
		if !ok || len(points) == 0 {
			continue
		}
		if n := cfg.MaxCurves; n > 0 && len(series) >= n {
			break
		}
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.LGD
		}
		series = append(series, LineChartSeries{Name: l.ID, Values: values})
		if len(points) > len(longest) {
			longest = points
		}
	}
	labels := make([]string, len(longest))
	for i, p := range longest {
		labels[i] = fmt.Sprintf("%.1fy", p.TimeInYears)
	}
	cc := cfg.ChartCfg
	cc.Title = "LGD over loan life"
	cc.Percent = true
	return LineChart(series, labels, cc)
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 72)
	thinLine := strings.Repeat("─", 72)

	sb.WriteString("\n" + line + "\n")
	fmt.Fprintf(&sb, "  %s\n", d.Title)
	fmt.Fprintf(&sb, "  Generated: %s | Author: %s\n", d.GeneratedAt, d.Author)
	sb.WriteString(line + "\n")

	if d.ShowSummary {
		sb.WriteString("\n  ■ PORTFOLIO SUMMARY\n")
		for _, k := range d.KPIs {
			fmt.Fprintf(&sb, "    %-26s %s\n", k.Label, k.Value)
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowLoans {
		sb.WriteString("\n  ■ LOANS\n")
		fmt.Fprintf(&sb, "    %-12s %-6s %8s %8s %16s %8s %18s\n", "ID", "Rating", "PD", "LGD", "EL", "ROE", "EVA")
		for _, r := range d.Loans {
			fmt.Fprintf(&sb, "    %-12s %-6s %8s %8s %16s %8s %18s\n", r.ID, r.Rating, r.PD, r.LGD, r.EL, r.ROE, r.EVA)
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowStress {
		sb.WriteString("\n  ■ STRESS SCENARIOS\n")
		for _, r := range d.Stress {
			fmt.Fprintf(&sb, "    %-20s PD %s LGD %s  EL %s (%s)  ROE %s\n",
				r.Name, r.PDMultiplier, r.LGDMultiplier, r.EL, r.ELChange, r.ROE)
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowCollateral {
		sb.WriteString("\n  ■ COLLATERAL\n")
		for _, c := range d.Collateral {
			status := "compliant"
			if !c.Compliant {
				status = "NOT compliant"
			}
			fmt.Fprintf(&sb, "    %-12s %d items  value %s  VaR95 %s  HQLA %s  %s\n",
				c.ID, c.Items, c.TotalValue, c.VaR95, c.HQLARatio, status)
			for _, issue := range c.Issues {
				fmt.Fprintf(&sb, "      - %s\n", issue)
			}
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n" + line + "\n")
	return sb.String()
}
