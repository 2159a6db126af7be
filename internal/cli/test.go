package cli

import (
	"github.com/Abk90/pointage-bot/internal/app"
	"github.com/Abk90/pointage-bot/internal/config"
	"github.com/spf13/cobra"
)

func NewTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "test",
		Short:         "Check connectivity to the ledger and the clock",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return app.TestConnections(cmd.Context(), cfg)
		},
	}
}
