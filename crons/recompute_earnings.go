package crons

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var recomputing int32

// CronRecomputeEarnings godoc
// Skips the tick while the previous recompute is still running
func CronRecomputeEarnings(ctx context.Context, recomputer EarningsRecomputer) {
	if !atomic.CompareAndSwapInt32(&recomputing, 0, 1) {
		log.Debug().Str("cron", "recompute_earnings").Msg("Previous recompute still running")
		return
	}
	defer atomic.StoreInt32(&recomputing, 0)

	if _, err := recomputer.RecomputeEarnings(ctx); err != nil {
		log.Error().Err(err).Str("cron", "recompute_earnings").Msg("Unable to recompute earnings")
	}
}
