package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/paramountdax-exchange/genealogy_api/cmd/commands"
	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/server"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the referral network API",
	Long:  `Run the migrations, connect to the configured storage and serve the network read and write endpoints`,
	Run: func(cmd *cobra.Command, args []string) {
		// load server configuration from server
		log.Debug().Msg("Loading server configuration")
		if viper.ConfigFileUsed() != "" {
			log.Debug().Str("section", "init").Str("path", viper.ConfigFileUsed()).Msg("Configuration file loaded")
		}
		cfg := config.LoadConfig(viper.GetViper())
		if cfg.Network.Storage == "postgres" {
			log.Debug().Msg("Running migrations")
			commands.Migrate(cfg)
		}

		// start a new server
		log.Debug().Str("section", "init").Msg("Starting new server instance")
		srv := server.NewServer(cfg)
		log.Info().Str("section", "init").Msg("Listening for incoming requests")
		srv.Listen()
	},
}
