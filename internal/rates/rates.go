// Package rates fetches benchmark reference rates (SOFR, EURIBOR, ...) from
// RSS/Atom feeds and HTML rate tables, and applies them to floating-rate
// loans.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ouadii-Zine/financify/internal/config"
	"github.com/Ouadii-Zine/financify/internal/infra"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// Source fetches reference rates from one location.
type Source interface {
	// Name returns a short label used in logs and on fetched rates.
	Name() string
	// Fetch returns the rates currently published by the source.
	Fetch(ctx context.Context) ([]models.ReferenceRate, error)
}

// ErrNoRates is returned when no source produced a rate.
var ErrNoRates = errors.New("no reference rates found")

var percentPattern = regexp.MustCompile(`(-?\d+(?:[.,]\d+)?)\s*%`)

// parsePercent extracts the first "x.xx%" figure of s as a fraction.
func parsePercent(s string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return parseNumber(m[1])
}

// parseNumber reads a percentage figure, with or without the % sign, as a
// fraction.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v / 100, true
}

// normalizeIndex canonicalises an index name for matching:
// "Euribor 3M" and "EURIBOR3M" are the same index.
func normalizeIndex(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// Service fans out to every source and merges their rates, keeping the
// most recent fixing per index.
type Service struct {
	sources []Source
	cache   *infra.Cache[[]models.ReferenceRate]
	logger  *slog.Logger
}

// NewService creates a service over sources. Results are cached for ttl.
func NewService(sources []Source, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sources: sources,
		cache:   infra.NewCache[[]models.ReferenceRate](ttl),
		logger:  logger,
	}
}

// FromConfig builds the configured sources. All sources share one rate
// limiter.
func FromConfig(cfg config.RatesConfig, logger *slog.Logger) (*Service, error) {
	limiter := infra.NewRateLimiterPerSecond(cfg.RequestsPerSecond)
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	sources := make([]Source, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		if f.URL == "" {
			return nil, fmt.Errorf("rates feed %q: missing url", f.Index)
		}
		switch strings.ToLower(f.Kind) {
		case "", "feed", "rss", "atom":
			sources = append(sources, NewFeedSource(f.Index, f.URL, limiter, headers))
		case "table", "html":
			sources = append(sources, NewTableSource(f.Index, f.URL, f.Selector, limiter, headers))
		default:
			return nil, fmt.Errorf("rates feed %q: unknown kind %q", f.Index, f.Kind)
		}
	}
	return NewService(sources, cfg.CacheDuration(), logger), nil
}

const cacheKey = "rates:all"

// Fetch returns the merged rates of all sources, sorted by index. A failing
// source is logged and skipped; ErrNoRates is returned when nothing was
// found.
func (s *Service) Fetch(ctx context.Context) ([]models.ReferenceRate, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var (
		mu     sync.Mutex
		merged = make(map[string]models.ReferenceRate)
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range s.sources {
		g.Go(func() error {
			fetched, err := src.Fetch(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("reference rate source failed", "source", src.Name(), "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
				return nil
			}
			for _, r := range fetched {
				key := normalizeIndex(r.Index)
				if cur, ok := merged[key]; !ok || r.AsOf.After(cur.AsOf) {
					merged[key] = r
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(merged) == 0 {
		if len(errs) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoRates, errors.Join(errs...))
		}
		return nil, ErrNoRates
	}

	out := make([]models.ReferenceRate, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sortRates(out)
	s.cache.Set(cacheKey, out)
	s.logger.Info("reference rates fetched", "count", len(out), "sources", len(s.sources), "failed", len(errs))
	return out, nil
}

// Invalidate drops cached rates.
func (s *Service) Invalidate() {
	s.cache.Invalidate(cacheKey)
}

// Apply sets the reference rate of every loan whose ReferenceIndex matches
// a fetched rate. It returns the number of loans updated.
func Apply(loans []models.Loan, fetched []models.ReferenceRate) int {
	byIndex := make(map[string]models.ReferenceRate, len(fetched))
	for _, r := range fetched {
		byIndex[normalizeIndex(r.Index)] = r
	}
	var n int
	for i := range loans {
		if loans[i].ReferenceIndex == "" {
			continue
		}
		if r, ok := byIndex[normalizeIndex(loans[i].ReferenceIndex)]; ok {
			loans[i].ReferenceRate = r.Rate
			n++
		}
	}
	return n
}
