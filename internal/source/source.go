package source

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mida-project/mission-cli/internal/model"
)

// Source produces raw records from one upstream feed, file drop, or
// spreadsheet. Fetch must be safe to call repeatedly.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawRecord, error)
}

// FetchAll runs every source concurrently and collects the results. A
// failing source is logged and skipped so one broken feed does not starve
// the reconciliation batch. Only context cancellation aborts the whole
// fetch.
func FetchAll(ctx context.Context, sources []Source) ([]model.RawRecord, error) {
	results := make([][]model.RawRecord, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			records, err := src.Fetch(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("source fetch failed, skipping",
					zap.String("source", src.Name()),
					zap.Error(err))
				return nil
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.RawRecord
	for _, records := range results {
		all = append(all, records...)
	}
	return all, nil
}
