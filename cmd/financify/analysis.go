package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ouadii-Zine/financify/internal/analysis/cashflow"
	"github.com/Ouadii-Zine/financify/internal/analysis/portfolio"
	"github.com/Ouadii-Zine/financify/internal/engine"
	"github.com/Ouadii-Zine/financify/internal/report"
	"github.com/Ouadii-Zine/financify/pkg/models"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
}

// --- Metrics Command ---

var metricsCmd = &cobra.Command{
	Use:   "metrics [book]",
	Short: "Compute metrics for every loan of a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		loans, err := newEngine().LoanMetrics(cmd.Context(), book)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(loans)
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tExposure\tPD\tLGD\tEL\tRWA\tROE\tRAROC\tEVA\t")
		for _, l := range loans {
			m := l.Metrics
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				l.ID,
				utils.FormatAmountCompact(l.Exposure()),
				utils.FormatPercent(m.PD),
				utils.FormatPercent(m.LGD),
				utils.FormatAmount(m.ExpectedLoss, ""),
				utils.FormatAmountCompact(m.RWA),
				utils.FormatPercent(m.ROE),
				utils.FormatPercent(m.RAROC),
				utils.FormatAmount(m.EVAIntrinsic, ""),
			)
		}
		return w.Flush()
	},
}

// --- Portfolio Command ---

var portfolioCmd = &cobra.Command{
	Use:   "portfolio [book]",
	Short: "Aggregate the metrics of a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		pm, err := newEngine().Portfolio(cmd.Context(), book)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(pm)
		}
		printPortfolio(book.Name, pm)
		return nil
	},
}

func printPortfolio(title string, pm models.PortfolioMetrics) {
	if title != "" {
		fmt.Printf("%s\n\n", title)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Loans\t%d\n", pm.LoanCount)
	fmt.Fprintf(w, "Exposure\t%s\n", utils.FormatAmount(pm.TotalExposure, ""))
	fmt.Fprintf(w, "Drawn / undrawn\t%s / %s\n", utils.FormatAmountCompact(pm.TotalDrawn), utils.FormatAmountCompact(pm.TotalUndrawn))
	fmt.Fprintf(w, "Expected loss\t%s\n", utils.FormatAmount(pm.TotalExpectedLoss, ""))
	fmt.Fprintf(w, "RWA\t%s\n", utils.FormatAmount(pm.TotalRWA, ""))
	fmt.Fprintf(w, "Capital required\t%s\n", utils.FormatAmount(pm.CapitalRequired, ""))
	fmt.Fprintf(w, "Weighted PD / LGD\t%s / %s\n", utils.FormatPercent(pm.WeightedAveragePD), utils.FormatPercent(pm.WeightedAverageLGD))
	fmt.Fprintf(w, "ROE / RAROC\t%s / %s\n", utils.FormatPercent(pm.PortfolioROE), utils.FormatPercent(pm.PortfolioRAROC))
	fmt.Fprintf(w, "EVA intrinsic / sale\t%s / %s\n", utils.FormatAmount(pm.TotalEVAIntrinsic, ""), utils.FormatAmount(pm.TotalEVASale, ""))
	fmt.Fprintf(w, "Diversification benefit\t%s\n", utils.FormatAmount(pm.DiversificationBenefit, ""))
	w.Flush()
}

// --- Simulate Command ---

var simulateCmd = &cobra.Command{
	Use:   "simulate [book]",
	Short: "Recompute a book under a PD/LGD/rate shock",
	Long: `Apply a what-if shock to every loan of a book and compare the
portfolio metrics with the unshocked book.

Examples:
  financify simulate book.yaml --pd 1.5 --lgd 1.1
  financify simulate book.json --rate 0.01 --spread 0.005`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		var shock portfolio.Shock
		shock.PDMultiplier, _ = cmd.Flags().GetFloat64("pd")
		shock.LGDMultiplier, _ = cmd.Flags().GetFloat64("lgd")
		shock.RateShift, _ = cmd.Flags().GetFloat64("rate")
		shock.SpreadShift, _ = cmd.Flags().GetFloat64("spread")

		res, err := newEngine().Simulate(cmd.Context(), book, shock)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(res)
		}

		w := newTable()
		fmt.Fprintln(w, "\tBase\tSimulated\tChange\t")
		row := func(name string, base, sim float64) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", name,
				utils.FormatAmount(base, ""), utils.FormatAmount(sim, ""), utils.FormatAmount(sim-base, ""))
		}
		row("Expected loss", res.Base.TotalExpectedLoss, res.Simulated.TotalExpectedLoss)
		row("RWA", res.Base.TotalRWA, res.Simulated.TotalRWA)
		row("Capital", res.Base.CapitalRequired, res.Simulated.CapitalRequired)
		row("EVA", res.Base.TotalEVAIntrinsic, res.Simulated.TotalEVAIntrinsic)
		fmt.Fprintf(w, "ROE\t%s\t%s\t\t\n", utils.FormatPercent(res.Base.PortfolioROE), utils.FormatPercent(res.Simulated.PortfolioROE))
		return w.Flush()
	},
}

func init() {
	simulateCmd.Flags().Float64("pd", 1, "PD multiplier")
	simulateCmd.Flags().Float64("lgd", 1, "LGD multiplier")
	simulateCmd.Flags().Float64("rate", 0, "reference rate shift (0.01 = +100bp)")
	simulateCmd.Flags().Float64("spread", 0, "margin shift (0.005 = +50bp)")
}

// --- Stress Command ---

var stressCmd = &cobra.Command{
	Use:   "stress [book]",
	Short: "Run the configured stress scenarios over a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		results, err := newEngine().Stress(cmd.Context(), book)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(results)
		}

		w := newTable()
		fmt.Fprintln(w, "Scenario\tPD x\tLGD x\tEL\tRWA\tCapital\tROE\tEVA\t")
		for _, r := range results {
			m := r.Metrics
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%s\t%s\t%s\t%s\t%s\t\n",
				r.Scenario.Name, r.Scenario.PDMultiplier, r.Scenario.LGDMultiplier,
				utils.FormatAmount(m.TotalExpectedLoss, ""),
				utils.FormatAmountCompact(m.TotalRWA),
				utils.FormatAmountCompact(m.CapitalRequired),
				utils.FormatPercent(m.PortfolioROE),
				utils.FormatAmount(m.TotalEVAIntrinsic, ""),
			)
		}
		return w.Flush()
	},
}

// --- Cash Flows Command ---

var cashflowsCmd = &cobra.Command{
	Use:   "cashflows [book] [loan-id]",
	Short: "Generate the cash-flow schedule of a loan",
	Long: `Generate the contractual, forecast or stressed cash-flow schedule
of one loan of a book.

Examples:
  financify cashflows book.yaml L1
  financify cashflows book.yaml L1 --kind forecast
  financify cashflows book.yaml L1 --kind stress --scenario INTEREST_SHOCK --shock-bps 300`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		l, err := book.Loan(args[1])
		if err != nil {
			return err
		}

		kind, _ := cmd.Flags().GetString("kind")
		scenario, _ := cmd.Flags().GetString("scenario")
		opts := cashflow.StressOptions{Scenario: cashflow.Scenario(scenario)}
		if cmd.Flags().Changed("shock-bps") {
			bps, _ := cmd.Flags().GetFloat64("shock-bps")
			opts.ShockBps = &bps
		}

		flows, err := newEngine().CashFlows(l, engine.ScheduleKind(kind), opts)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(flows)
		}
		if cashflow.IsErrorSchedule(flows) {
			return errors.New(flows[0].Description)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Date\tType\tAmount\tDescription")
		for _, f := range flows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Date, f.Type, utils.FormatAmount(f.Amount, l.Currency), f.Description)
		}
		return w.Flush()
	},
}

func init() {
	cashflowsCmd.Flags().String("kind", string(engine.ScheduleContractual), "schedule kind (contractual, forecast, stress)")
	cashflowsCmd.Flags().String("scenario", string(cashflow.ScenarioDefault), "stress scenario (DEFAULT, LIQUIDITY_CRISIS, INTEREST_SHOCK)")
	cashflowsCmd.Flags().Float64("shock-bps", cashflow.DefaultShockBps, "interest shock in basis points")
}

// --- Collateral Command ---

var collateralCmd = &cobra.Command{
	Use:   "collateral [book] [pool-id]",
	Short: "Analyse the collateral pools of a book",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		var id string
		if len(args) == 2 {
			id = args[1]
		}
		pools, err := newEngine().Collateral(book, id)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(pools)
		}

		for _, p := range pools {
			fmt.Printf("%s (%d items)\n", p.ID, len(p.Items))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  Total value\t%s\n", utils.FormatAmount(p.TotalValue, ""))
			fmt.Fprintf(w, "  Diversification\t%.1f\n", p.DiversificationScore)
			fmt.Fprintf(w, "  Concentration\t%.1f\n", p.ConcentrationRisk)
			fmt.Fprintf(w, "  VaR 95 / 99\t%s / %s\n", utils.FormatAmount(p.RiskMetrics.VaR95, ""), utils.FormatAmount(p.RiskMetrics.VaR99, ""))
			fmt.Fprintf(w, "  Expected shortfall\t%s\n", utils.FormatAmount(p.RiskMetrics.ExpectedShortfall, ""))
			fmt.Fprintf(w, "  HQLA\t%s (%s)\n", utils.FormatAmount(p.Regulatory.HQLAValue, ""), utils.FormatPercent(p.Regulatory.HQLARatio))
			fmt.Fprintf(w, "  Compliant\t%t\n", p.Regulatory.Compliant)
			w.Flush()
			for _, issue := range p.Regulatory.Issues {
				fmt.Printf("  - %s\n", issue)
			}
			fmt.Println()
		}
		return nil
	},
}

// --- LGD Curve Command ---

var lgdCurveCmd = &cobra.Command{
	Use:   "lgd-curve [book] [loan-id]",
	Short: "Sample the LGD of a loan over its life",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		l, err := book.Loan(args[1])
		if err != nil {
			return err
		}
		step, _ := cmd.Flags().GetInt("step")
		points, err := newEngine().Curve(l, step)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(points)
		}

		w := newTable()
		fmt.Fprintln(w, "Date\tYears\tLGD\t")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%.2f\t%s\t\n", p.Date, p.TimeInYears, utils.FormatPercent(p.LGD))
		}
		return w.Flush()
	},
}

func init() {
	lgdCurveCmd.Flags().Int("step", 3, "months between points")

	for _, c := range []*cobra.Command{metricsCmd, portfolioCmd, simulateCmd, stressCmd, cashflowsCmd, collateralCmd, lgdCurveCmd} {
		c.Flags().Bool("json", false, "print JSON instead of a table")
	}
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report [book]",
	Short: "Render a portfolio risk report",
	Long: `Render an HTML or plain-text risk report for a book: portfolio
summary, loan table, stress scenarios, collateral pools and LGD curves.

Examples:
  financify report book.yaml --out risk.html
  financify report book.yaml --format text`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		in, err := newEngine().Report(cmd.Context(), book)
		if err != nil {
			return err
		}

		rc := report.DefaultConfig()
		format, _ := cmd.Flags().GetString("format")
		rc.Format = report.Format(format)
		rc.Title, _ = cmd.Flags().GetString("title")
		rc.Currency, _ = cmd.Flags().GetString("currency")
		if sections, _ := cmd.Flags().GetStringSlice("sections"); len(sections) > 0 {
			rc.Sections = rc.Sections[:0]
			for _, s := range sections {
				rc.Sections = append(rc.Sections, report.Section(s))
			}
		}

		out, err := report.Render(in, rc)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("out")
		if path == "" {
			_, err = fmt.Print(out)
			return err
		}
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("report written", "path", path, "bytes", len(out))
		return nil
	},
}

func init() {
	reportCmd.Flags().String("format", string(report.FormatHTML), "output format (html, text)")
	reportCmd.Flags().String("out", "", "output file (default: stdout)")
	reportCmd.Flags().String("title", "", "report title")
	reportCmd.Flags().String("currency", "", "currency code shown with amounts")
	reportCmd.Flags().StringSlice("sections", nil, "sections to include (summary, loans, stress, collateral, lgd)")
}
