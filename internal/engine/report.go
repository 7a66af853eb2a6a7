package engine

import (
	"context"
	"fmt"

	"github.com/Ouadii-Zine/financify/internal/analysis/lgd"
	"github.com/Ouadii-Zine/financify/internal/analysis/portfolio"
	"github.com/Ouadii-Zine/financify/internal/loanbook"
	"github.com/Ouadii-Zine/financify/internal/report"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// DefaultCurveStep is the sampling interval of report LGD curves, in months.
const DefaultCurveStep = 3

// Report gathers everything the risk report shows for a book. Stress
// results are omitted when no scenarios are configured; loans whose dates
// cannot be parsed get no LGD curve.
func (e *Engine) Report(ctx context.Context, book *loanbook.Book) (*report.Input, error) {
	params, calc := e.prepare(book)

	loans, err := calc.CalculateAll(ctx, book.Loans, params, e.workers)
	if err != nil {
		return nil, fmt.Errorf("loan metrics: %w", err)
	}

	in := &report.Input{
		Name:       book.Name,
		Parameters: params,
		Loans:      loans,
		Portfolio:  portfolio.Aggregate(loans, params),
		Curves:     make(map[string][]models.LGDPoint, len(loans)),
	}

	if len(params.StressScenarios) > 0 {
		in.Stress, err = e.simulator(calc).RunStress(ctx, book.Loans, params)
		if err != nil {
			return nil, fmt.Errorf("stress: %w", err)
		}
	}

	in.Collateral, err = e.Collateral(book, "")
	if err != nil {
		return nil, err
	}

	for i := range loans {
		points, err := lgd.CurveForLoan(&loans[i], DefaultCurveStep)
		if err != nil {
			e.logger.Debug("skipping LGD curve", "loan", loans[i].ID, "error", err)
			continue
		}
		in.Curves[loans[i].ID] = points
	}
	return in, nil
}
