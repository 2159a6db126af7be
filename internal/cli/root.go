package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the pointage command tree. Running the bare binary is
// the same as running "pointage sync".
func NewRootCommand() *cobra.Command {
	syncCmd := NewSyncCommand()

	cmd := &cobra.Command{
		Use:   "pointage",
		Short: "Reconcile biometric clock punches into the HR attendance ledger",
		Long: `pointage pulls raw punches from a BioTime-style time clock and turns
them into attendance sessions in the HR ledger. Direction (check-in vs
check-out) is derived from the ledger's open-session state, not from the
device, so duplicate and out-of-order scans never corrupt the ledger.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          syncCmd.RunE,
	}
	cmd.Flags().AddFlagSet(syncCmd.Flags())

	cmd.AddCommand(syncCmd)
	cmd.AddCommand(NewDaemonCommand())
	cmd.AddCommand(NewTestCommand())
	cmd.AddCommand(NewCleanupCommand())
	cmd.AddCommand(NewFixCommand())

	return cmd
}
