// Package config handles configuration loading for financify.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ouadii-Zine/financify/internal/logging"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// Config represents the complete application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Rates   RatesConfig   `mapstructure:"rates"   yaml:"rates"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-" yaml:"-"`
}

// EngineConfig holds the calculation assumptions and batch settings.
type EngineConfig struct {
	TargetROE            float64                           `mapstructure:"target_roe"             yaml:"target_roe"`
	TaxRate              float64                           `mapstructure:"tax_rate"               yaml:"tax_rate"`
	CapitalRatio         float64                           `mapstructure:"capital_ratio"          yaml:"capital_ratio"`
	FundingCost          float64                           `mapstructure:"funding_cost"           yaml:"funding_cost"`
	OperationalCostRatio float64                           `mapstructure:"operational_cost_ratio" yaml:"operational_cost_ratio"`
	DefaultSalePrice     float64                           `mapstructure:"default_sale_price"     yaml:"default_sale_price"`
	CollateralHaircut    float64                           `mapstructure:"collateral_haircut"     yaml:"collateral_haircut"`
	Workers              int                               `mapstructure:"workers"                yaml:"workers"` // 0 = GOMAXPROCS
	PDCurve              map[string]float64                `mapstructure:"pd_curve"               yaml:"pd_curve"`
	LGDAssumptions       map[string]float64                `mapstructure:"lgd_assumptions"        yaml:"lgd_assumptions"`
	StressScenarios      []models.StressScenarioDefinition `mapstructure:"stress_scenarios"       yaml:"stress_scenarios"`
}

// RatesConfig holds reference-rate source settings.
type RatesConfig struct {
	Feeds             []FeedConfig `mapstructure:"feeds"               yaml:"feeds"`
	RequestsPerSecond float64      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	CacheTTL          int          `mapstructure:"cache_ttl"           yaml:"cache_ttl"` // seconds
	Timeout           int          `mapstructure:"timeout"             yaml:"timeout"`   // seconds
	APIKey            string       `mapstructure:"api_key"             yaml:"api_key"`
}

// FeedConfig describes one reference-rate source.
type FeedConfig struct {
	Index    string `mapstructure:"index"    yaml:"index"` // e.g. "SOFR", "EURIBOR3M"
	URL      string `mapstructure:"url"      yaml:"url"`
	Kind     string `mapstructure:"kind"     yaml:"kind"`     // "feed" (RSS/Atom) or "table" (HTML)
	Selector string `mapstructure:"selector" yaml:"selector"` // table rows, for kind "table"
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "text" or "json"
	File       string `mapstructure:"file"         yaml:"file"`   // empty = stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress"     yaml:"compress"`
}

// Options converts the section into logger options.
func (l LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// CacheDuration returns the rate cache TTL.
func (r RatesConfig) CacheDuration() time.Duration {
	return time.Duration(r.CacheTTL) * time.Second
}

// TimeoutDuration returns the per-source fetch timeout.
func (r RatesConfig) TimeoutDuration() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}

// Parameters builds the calculation parameters for one run. PD curve keys
// are upper-cased since viper lower-cases map keys read from files.
func (e EngineConfig) Parameters() models.CalculationParameters {
	pd := make(map[string]float64, len(e.PDCurve))
	for rating, v := range e.PDCurve {
		pd[strings.ToUpper(rating)] = v
	}
	lgd := make(map[string]float64, len(e.LGDAssumptions))
	for sector, v := range e.LGDAssumptions {
		lgd[sector] = v
	}
	return models.CalculationParameters{
		TargetROE:            e.TargetROE,
		TaxRate:              e.TaxRate,
		CapitalRatio:         e.CapitalRatio,
		FundingCost:          e.FundingCost,
		OperationalCostRatio: e.OperationalCostRatio,
		DefaultSalePrice:     e.DefaultSalePrice,
		CollateralHaircut:    e.CollateralHaircut,
		PDCurve:              pd,
		LGDAssumptions:       lgd,
		StressScenarios:      append([]models.StressScenarioDefinition(nil), e.StressScenarios...),
	}
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.financify/config.yaml (home directory)
//  3. /etc/financify/config.yaml (system)
//
// Environment variables override config file values.
// Format: FINANCIFY_<SECTION>_<KEY>, e.g., FINANCIFY_ENGINE_TAX_RATE
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".financify"))
	v.AddConfigPath("/etc/financify")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FINANCIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	d := models.DefaultCalculationParameters()

	// Engine defaults
	v.SetDefault("engine.target_roe", d.TargetROE)
	v.SetDefault("engine.tax_rate", d.TaxRate)
	v.SetDefault("engine.capital_ratio", d.CapitalRatio)
	v.SetDefault("engine.funding_cost", d.FundingCost)
	v.SetDefault("engine.operational_cost_ratio", d.OperationalCostRatio)
	v.SetDefault("engine.default_sale_price", d.DefaultSalePrice)
	v.SetDefault("engine.collateral_haircut", d.CollateralHaircut)
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.pd_curve", lowerKeys(d.PDCurve))
	v.SetDefault("engine.lgd_assumptions", lowerKeys(d.LGDAssumptions))
	scenarios := make([]map[string]any, 0, len(d.StressScenarios))
	for _, s := range d.StressScenarios {
		scenarios = append(scenarios, map[string]any{
			"name":           s.Name,
			"description":    s.Description,
			"pd_multiplier":  s.PDMultiplier,
			"lgd_multiplier": s.LGDMultiplier,
			"rate_shift":     s.RateShift,
			"spread_shift":   s.SpreadShift,
		})
	}
	v.SetDefault("engine.stress_scenarios", scenarios)

	// Rates defaults
	v.SetDefault("rates.requests_per_second", 2.0)
	v.SetDefault("rates.cache_ttl", 900) // 15 minutes
	v.SetDefault("rates.timeout", 20)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// lowerKeys matches viper's key casing so that file entries override the
// defaults instead of sitting next to them.
func lowerKeys(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(envRatesAPIKey); key != "" {
		cfg.Rates.APIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
