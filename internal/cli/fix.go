package cli

import (
	"fmt"
	"strconv"

	"github.com/Abk90/pointage-bot/internal/app"
	"github.com/Abk90/pointage-bot/internal/config"
	"github.com/spf13/cobra"
)

const defaultFixDaysBack = 7

func NewFixCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fix [days_back]",
		Short: "Repair sessions where check-in equals check-out",
		Long: `Scan the last days_back days (default 7) for sessions whose check_out
equals their check_in. Per employee the earliest such session is reopened
and any further ones are deleted as duplicates.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			daysBack := defaultFixDaysBack
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid days_back %q: want a positive number of days", args[0])
				}
				daysBack = n
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.RunFix(cmd.Context(), daysBack)
			if err != nil {
				return err
			}
			fmt.Printf("Fix: %d scanned, %d corrupted, %d reopened, %d deleted, %d errors\n",
				report.Scanned, report.Corrupted, report.Reopened, report.Deleted, report.Errors)
			return nil
		},
	}
}
