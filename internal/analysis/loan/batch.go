package loan

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Ouadii-Zine/financify/pkg/models"
)

// CalculateAll computes metrics for every loan concurrently, at most
// workers at a time (GOMAXPROCS when workers <= 0). It returns copies of
// the loans with Metrics set, in input order; the inputs are not modified.
func (c *Calculator) CalculateAll(ctx context.Context, loans []models.Loan, params models.CalculationParameters, workers int) ([]models.Loan, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := models.CloneLoans(loans)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range out {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := c.Calculate(&out[i], params)
			out[i].Metrics = &m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
