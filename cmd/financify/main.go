// financify is a credit-risk engine for loan books: loan metrics, portfolio
// aggregates, stress testing, cash-flow schedules, collateral analysis and
// LGD curves.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ouadii-Zine/financify/api"
	"github.com/Ouadii-Zine/financify/internal/config"
	"github.com/Ouadii-Zine/financify/internal/engine"
	"github.com/Ouadii-Zine/financify/internal/loanbook"
	"github.com/Ouadii-Zine/financify/internal/logging"
	"github.com/Ouadii-Zine/financify/internal/rates"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfg      *config.Config
	logger   *slog.Logger
	syncLogs = func() error { return nil }
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "financify",
	Short: "Credit-risk engine for loan portfolios",
	Long: `financify computes risk and profitability metrics for loan books:
EVA, expected loss, RWA, ROE and RAROC per loan, portfolio aggregates,
what-if and stress scenarios, cash-flow schedules, collateral risk and
time-varying LGD curves.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		opts := cfg.Logging.Options()
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			opts.Level = lvl
		}
		logger, syncLogs, err = logging.New(opts)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = syncLogs()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(cashflowsCmd)
	rootCmd.AddCommand(collateralCmd)
	rootCmd.AddCommand(lgdCurveCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(reportCmd)
}

// newEngine builds an engine from the loaded configuration.
func newEngine() *engine.Engine {
	return engine.New(cfg.Engine.Parameters(),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithLogger(logger),
	)
}

// loadBook reads the book at path, logging its size.
func loadBook(path string) (*loanbook.Book, error) {
	book, err := loanbook.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("loan book loaded", "path", path, "loans", len(book.Loans), "pools", len(book.CollateralPortfolios))
	return book, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("financify %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rs *rates.Service
		if len(cfg.Rates.Feeds) > 0 {
			var err error
			rs, err = rates.FromConfig(cfg.Rates, logger)
			if err != nil {
				return err
			}
		}

		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		api.Version = version
		srv := api.NewServer(cfg, newEngine(), rs, logger)
		return srv.ListenAndServe(fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := cfg.Engine.Parameters()

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  financify: system status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		file := cfg.File
		if file == "" {
			file = "(defaults)"
		}
		fmt.Printf("  Config file:   %s\n", file)
		fmt.Println()

		fmt.Println("  Parameters:")
		fmt.Printf("    Target ROE:       %.2f%%\n", params.TargetROE*100)
		fmt.Printf("    Tax rate:         %.2f%%\n", params.TaxRate*100)
		fmt.Printf("    Capital ratio:    %.2f%%\n", params.CapitalRatio*100)
		fmt.Printf("    Funding cost:     %.2f%%\n", params.FundingCost*100)
		fmt.Printf("    Haircut:          %.2f%%\n", params.CollateralHaircut*100)
		fmt.Printf("    Rated grades:     %d\n", len(params.PDCurve))
		fmt.Printf("    Sector LGDs:      %d\n", len(params.LGDAssumptions))
		fmt.Printf("    Stress scenarios: %d\n", len(params.StressScenarios))
		fmt.Printf("    Rate feeds:       %d\n", len(cfg.Rates.Feeds))
		fmt.Printf("    API Server:       %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
