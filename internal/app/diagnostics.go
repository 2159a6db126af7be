package app

import (
	"context"
	"fmt"

	"github.com/Abk90/pointage-bot/internal/clock"
	"github.com/Abk90/pointage-bot/internal/config"
	"github.com/Abk90/pointage-bot/internal/ledger"
)

// TestConnections probes both external systems and prints what it finds. Each
// side is checked independently so one outage does not hide the other's
// diagnosis.
func TestConnections(ctx context.Context, cfg config.Config) error {
	failures := 0

	fmt.Println("Testing HR ledger connection...")
	ledgerClient := ledger.NewClient(cfg.LedgerURL, cfg.LedgerDB, cfg.LedgerUser, cfg.LedgerAPIKey)
	if err := ledgerClient.Connect(ctx); err != nil {
		failures++
		fmt.Printf("  [error] %v\n", err)
	} else {
		fmt.Printf("  [ok] authenticated as %s\n", cfg.LedgerUser)
		attendance := ledger.NewAttendance(ledgerClient)
		employees, err := attendance.Employees(ctx)
		if err != nil {
			failures++
			fmt.Printf("  [warning] employee listing failed: %v\n", err)
		} else {
			fmt.Printf("  [ok] %d employees in roster\n", len(employees))
		}
	}

	fmt.Println("Testing clock device connection...")
	clockClient := clock.NewClient(cfg.ClockURL, cfg.ClockUsername, cfg.ClockPassword)
	diag := clockClient.TestConnection(ctx)
	fmt.Printf("  [%s] %s\n", diag.Status, diag.Message)
	for _, emp := range diag.Sample {
		fmt.Printf("    - %s (badge: %s)\n", emp.Name, emp.Badge)
	}
	if diag.Status == "error" {
		failures++
	}

	if failures > 0 {
		return fmt.Errorf("%d connection check(s) failed", failures)
	}
	return nil
}
