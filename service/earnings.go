package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/monitor"
)

// RecomputeEarnings rebuilds the earnings rollups from the commission ledger.
// The figures are display only and eventually consistent with the ledger.
func (service *Service) RecomputeEarnings(ctx context.Context) (int, error) {
	start := time.Now()
	own, err := service.ledger.CommissionTotals(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "unable to load commission totals")
	}
	updated, err := service.store.ApplyEarnings(ctx, own)
	if err != nil {
		return 0, errors.Wrap(err, "unable to apply earnings")
	}
	monitor.EarningsRecomputed.Observe(time.Since(start).Seconds())

	log.Info().
		Str("section", "service").
		Str("action", "recompute_earnings").
		Int("credited_members", len(own)).
		Int("updated", updated).
		Dur("duration", time.Since(start)).
		Msg("Earnings rollups recomputed")
	return updated, nil
}
