package crons

import (
	"context"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
)

// EarningsRecomputer rebuilds the earnings rollups
type EarningsRecomputer interface {
	RecomputeEarnings(ctx context.Context) (int, error)
}

var cronService *cron.Cron

// Start Initiate the crons based on the given configuration file
func Start(ctx context.Context, crons config.Crons, recomputer EarningsRecomputer) {
	cronService = cron.New()
	for id, schedule := range crons {
		callback := GetCronByID(ctx, id, recomputer)
		if err := cronService.AddFunc(schedule, callback); err != nil {
			log.Error().Err(err).Str("cron", id).Str("schedule", schedule).Msg("Unable to schedule cron")
			continue
		}
		// run once at startup so the rollups are fresh before the first tick
		callback()
	}
	cronService.Start()
}

// GetCronByID get a function to execute based on the id
func GetCronByID(ctx context.Context, id string, recomputer EarningsRecomputer) func() {
	switch id {
	case "recompute_earnings":
		return func() {
			CronRecomputeEarnings(ctx, recomputer)
		}
	}
	log.Warn().Str("cron", id).Msg("Unknown cron id")
	return func() {}
}

// Close godoc
func Close() {
	if cronService != nil {
		cronService.Stop()
	}
}
