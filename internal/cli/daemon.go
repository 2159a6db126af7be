package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Abk90/pointage-bot/internal/app"
	"github.com/Abk90/pointage-bot/internal/config"
	"github.com/spf13/cobra"
)

func NewDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon [interval_minutes]",
		Short: "Sync continuously on a fixed interval",
		Long: `Run the reconciliation loop until interrupted. The first sync happens
immediately; later syncs follow the interval. When STATUS_ADDR is set a
read-only status API is served alongside the loop.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			interval := cfg.SyncInterval
			if len(args) == 1 {
				minutes, err := strconv.Atoi(args[0])
				if err != nil || minutes <= 0 {
					return fmt.Errorf("invalid interval %q: want a positive number of minutes", args[0])
				}
				interval = time.Duration(minutes) * time.Minute
			}

			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.RunDaemon(cmd.Context(), interval)
		},
	}
}
