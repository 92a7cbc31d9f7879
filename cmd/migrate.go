package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/paramountdax-exchange/genealogy_api/cmd/commands"
	"gitlab.com/paramountdax-exchange/genealogy_api/config"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		commands.Migrate(config.LoadConfig(viper.GetViper()))
	},
}
