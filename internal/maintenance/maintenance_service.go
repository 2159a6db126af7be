package maintenance

import (
	"context"
	"time"

	"github.com/Abk90/pointage-bot/internal/ledger"
	"go.uber.org/zap"
)

// Ledger is the attendance surface the repair routines need. Both routines
// mutate records the reconciler never touches on its own.
type Ledger interface {
	OpenSessions(ctx context.Context, limit int) ([]ledger.AttendanceSession, error)
	SessionsSince(ctx context.Context, since time.Time) ([]ledger.AttendanceSession, error)
	CloseSession(ctx context.Context, sessionID int64, at time.Time) error
	ReopenSession(ctx context.Context, sessionID int64) error
	DeleteSessions(ctx context.Context, sessionIDs []int64) error
}

const openSessionScanLimit = 500

type CleanupReport struct {
	Found   int
	Closed  int
	Skipped int
	Errors  int
}

type FixReport struct {
	Scanned   int
	Corrupted int
	Reopened  int
	Deleted   int
	Errors    int
}

// Service hosts the batch repair routines behind the cleanup and fix
// commands.
type Service struct {
	ledger Ledger
	shift  time.Duration // assumed shift length used to force-close

	now func() time.Time
	log *zap.Logger
}

func NewService(ledgerStore Ledger, assumedShift time.Duration) *Service {
	return &Service{
		ledger: ledgerStore,
		shift:  assumedShift,
		now:    time.Now,
		log:    zap.L().Named("maintenance"),
	}
}

// CleanupOpenSessions force-closes every session that has been open longer
// than maxAge, stamping check_out = check_in + assumed shift. Younger open
// sessions are left alone. Best-effort: the stamped duration is a policy
// constant, not schedule data.
func (s *Service) CleanupOpenSessions(ctx context.Context, maxAge time.Duration) (CleanupReport, error) {
	report := CleanupReport{}

	sessions, err := s.ledger.OpenSessions(ctx, openSessionScanLimit)
	if err != nil {
		return report, err
	}
	report.Found = len(sessions)
	s.log.Info("open sessions found", zap.Int("count", len(sessions)))

	cutoff := s.now().Add(-maxAge)
	for _, session := range sessions {
		if !session.CheckIn.Before(cutoff) {
			report.Skipped++
			continue
		}

		checkOut := session.CheckIn.Add(s.shift)
		if err := s.ledger.CloseSession(ctx, session.ID, checkOut); err != nil {
			report.Errors++
			s.log.Error("force-close failed",
				zap.Int64("session", session.ID),
				zap.String("employee", session.EmployeeName),
				zap.Error(err))
			continue
		}
		report.Closed++
		s.log.Info("session force-closed",
			zap.Int64("session", session.ID),
			zap.String("employee", session.EmployeeName),
			zap.Time("check_in", session.CheckIn),
			zap.Time("check_out", checkOut))
	}

	s.log.Info("cleanup finished",
		zap.Int("closed", report.Closed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))
	return report, nil
}

// FixCorruptedSessions repairs records where check_in == check_out, a known
// corruption pattern. Per employee: a single corrupted session is reopened;
// with several, the earliest is reopened and the rest deleted as duplicates.
func (s *Service) FixCorruptedSessions(ctx context.Context, daysBack int) (FixReport, error) {
	report := FixReport{}

	since := startOfDay(s.now().AddDate(0, 0, -daysBack))
	sessions, err := s.ledger.SessionsSince(ctx, since)
	if err != nil {
		return report, err
	}
	report.Scanned = len(sessions)

	// Sessions arrive check_in ascending, so each employee's bucket is
	// already oldest-first.
	byEmployee := map[int64][]ledger.AttendanceSession{}
	var order []int64
	for _, session := range sessions {
		if session.CheckOut == nil || !session.CheckOut.Equal(session.CheckIn) {
			continue
		}
		report.Corrupted++
		if _, seen := byEmployee[session.EmployeeKey]; !seen {
			order = append(order, session.EmployeeKey)
		}
		byEmployee[session.EmployeeKey] = append(byEmployee[session.EmployeeKey], session)
	}
	s.log.Info("corrupted sessions found",
		zap.Int("corrupted", report.Corrupted),
		zap.Int("scanned", report.Scanned))

	for _, employeeKey := range order {
		corrupted := byEmployee[employeeKey]

		first := corrupted[0]
		if err := s.ledger.ReopenSession(ctx, first.ID); err != nil {
			report.Errors++
			s.log.Error("reopen failed",
				zap.Int64("session", first.ID),
				zap.String("employee", first.EmployeeName),
				zap.Error(err))
		} else {
			report.Reopened++
			s.log.Info("session reopened",
				zap.Int64("session", first.ID),
				zap.String("employee", first.EmployeeName),
				zap.Time("check_in", first.CheckIn))
		}

		for _, duplicate := range corrupted[1:] {
			if err := s.ledger.DeleteSessions(ctx, []int64{duplicate.ID}); err != nil {
				report.Errors++
				s.log.Error("duplicate delete failed",
					zap.Int64("session", duplicate.ID),
					zap.String("employee", duplicate.EmployeeName),
					zap.Error(err))
				continue
			}
			report.Deleted++
			s.log.Info("duplicate session deleted",
				zap.Int64("session", duplicate.ID),
				zap.String("employee", duplicate.EmployeeName),
				zap.Time("check_in", duplicate.CheckIn))
		}
	}

	s.log.Info("fix finished",
		zap.Int("reopened", report.Reopened),
		zap.Int("deleted", report.Deleted),
		zap.Int("errors", report.Errors))
	return report, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
