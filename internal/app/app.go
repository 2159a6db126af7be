package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Abk90/pointage-bot/internal/clock"
	"github.com/Abk90/pointage-bot/internal/config"
	"github.com/Abk90/pointage-bot/internal/identity"
	"github.com/Abk90/pointage-bot/internal/ledger"
	"github.com/Abk90/pointage-bot/internal/maintenance"
	"github.com/Abk90/pointage-bot/internal/reconcile"
	"github.com/Abk90/pointage-bot/internal/store"
	"go.uber.org/zap"
)

const stateFileName = "pointage.db"

// App owns the wired collaborators for one process. Build connects both
// external systems; a connection failure there aborts before any mutation is
// attempted.
type App struct {
	Cfg config.Config

	Store       *store.Store
	Clock       *clock.Client
	Ledger      *ledger.Client
	Attendance  *ledger.Attendance
	Resolver    *identity.Resolver
	Reconciler  *reconcile.Service
	Maintenance *maintenance.Service

	log *zap.Logger
}

func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger := zap.L().Named("app")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	stateStore, err := store.Open(filepath.Join(cfg.DataDir, stateFileName))
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	ledgerClient := ledger.NewClient(cfg.LedgerURL, cfg.LedgerDB, cfg.LedgerUser, cfg.LedgerAPIKey)
	if err := ledgerClient.Connect(ctx); err != nil {
		stateStore.Close()
		return nil, err
	}

	clockClient := clock.NewClient(cfg.ClockURL, cfg.ClockUsername, cfg.ClockPassword)
	if err := clockClient.Connect(ctx); err != nil {
		stateStore.Close()
		return nil, err
	}

	attendance := ledger.NewAttendance(ledgerClient)
	resolver := identity.NewResolver(stateStore, attendance, clockClient, cfg.FuzzyThreshold, cfg.MappingMaxAge)
	if err := resolver.Prepare(ctx); err != nil {
		stateStore.Close()
		return nil, fmt.Errorf("preparing employee mapping: %w", err)
	}

	app := &App{
		Cfg:         cfg,
		Store:       stateStore,
		Clock:       clockClient,
		Ledger:      ledgerClient,
		Attendance:  attendance,
		Resolver:    resolver,
		Reconciler:  reconcile.NewService(clockClient, attendance, resolver, stateStore, cfg.DuplicateTolerance),
		Maintenance: maintenance.NewService(attendance, cfg.AssumedShift),
		log:         logger,
	}
	return app, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// RunSync executes one manual run. With no explicit window and no watermark
// the window starts at the beginning of the current day.
func (a *App) RunSync(ctx context.Context, from, to time.Time) (*reconcile.Report, error) {
	return a.Reconciler.Run(ctx, reconcile.RunOptions{
		Start:    from,
		End:      to,
		Fallback: startOfToday(),
	})
}

// runSyncDaemon is one daemon tick: with no watermark yet, look 7 days back.
func (a *App) runSyncDaemon(ctx context.Context) (*reconcile.Report, error) {
	return a.Reconciler.Run(ctx, reconcile.RunOptions{
		Fallback: time.Now().UTC().AddDate(0, 0, -7),
	})
}

func (a *App) RunCleanup(ctx context.Context, maxAge time.Duration) (maintenance.CleanupReport, error) {
	return a.Maintenance.CleanupOpenSessions(ctx, maxAge)
}

func (a *App) RunFix(ctx context.Context, daysBack int) (maintenance.FixReport, error) {
	return a.Maintenance.FixCorruptedSessions(ctx, daysBack)
}

func startOfToday() time.Time {
	year, month, day := time.Now().UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// PrintSummary writes the end-of-run counters to stdout, mirroring what the
// audit log records.
func PrintSummary(report *reconcile.Report) {
	fmt.Println("Sync summary:")
	fmt.Printf("  total punches:       %d\n", report.Stats.TotalPunches)
	fmt.Printf("  check-ins created:   %d\n", report.Stats.CheckinsCreated)
	fmt.Printf("  check-outs updated:  %d\n", report.Stats.CheckoutsUpdated)
	fmt.Printf("  duplicates skipped:  %d\n", report.Stats.SkippedDuplicate)
	fmt.Printf("  unmatched skipped:   %d\n", report.Stats.SkippedNoMatch)
	fmt.Printf("  errors:              %d\n", report.Stats.Errors)
}
