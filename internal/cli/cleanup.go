package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Abk90/pointage-bot/internal/app"
	"github.com/Abk90/pointage-bot/internal/config"
	"github.com/spf13/cobra"
)

func NewCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup [hours]",
		Short: "Force-close sessions left open longer than the given age",
		Long: `Find sessions still open after the given number of hours (default 24)
and close them at check_in plus the assumed shift length. Sessions opened
more recently are left alone.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			maxAge := cfg.StaleSessionAge
			if len(args) == 1 {
				hours, err := strconv.Atoi(args[0])
				if err != nil || hours <= 0 {
					return fmt.Errorf("invalid age %q: want a positive number of hours", args[0])
				}
				maxAge = time.Duration(hours) * time.Hour
			}

			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.RunCleanup(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("Cleanup: %d open, %d closed, %d skipped, %d errors\n",
				report.Found, report.Closed, report.Skipped, report.Errors)
			return nil
		},
	}
}
