package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/server"
)

func init() {
	rootCmd.AddCommand(recomputeCmd)
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute-earnings",
	Short: "Rebuild the earnings rollups from the commission ledger once",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig(viper.GetViper())
		srv, closeFn := server.NewService(cfg)
		defer closeFn()

		updated, err := srv.RecomputeEarnings(context.Background())
		if err != nil {
			log.Error().Err(err).Str("section", "recompute").Msg("Unable to recompute earnings")
			return
		}
		log.Info().Str("section", "recompute").Int("updated", updated).Msg("Earnings recomputed")
	},
}
