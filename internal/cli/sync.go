package cli

import (
	"fmt"
	"time"

	"github.com/Abk90/pointage-bot/internal/app"
	"github.com/Abk90/pointage-bot/internal/config"
	"github.com/spf13/cobra"
)

// Window bounds accept either RFC3339 or the ledger's wire format.
var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func NewSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		Long: `Fetch punches from the clock for the sync window and reconcile them
into the ledger. Without --from the window starts at the last successful
run's watermark, or at the start of the current day on a first run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseBoundFlag(cmd, "from")
			if err != nil {
				return err
			}
			to, err := parseBoundFlag(cmd, "to")
			if err != nil {
				return err
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

			report, err := a.RunSync(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			app.PrintSummary(report)
			return nil
		},
	}

	cmd.Flags().String("from", "", "window start (RFC3339 or \"2006-01-02 15:04:05\")")
	cmd.Flags().String("to", "", "window end, defaults to now")
	return cmd
}

func parseBoundFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil || raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --%s value %q", name, raw)
}
