package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abk90/pointage-bot/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	openSessionsFn  func(ctx context.Context, limit int) ([]ledger.AttendanceSession, error)
	sessionsSinceFn func(ctx context.Context, since time.Time) ([]ledger.AttendanceSession, error)
	closeSessionFn  func(ctx context.Context, sessionID int64, at time.Time) error
	reopenFn        func(ctx context.Context, sessionID int64) error
	deleteFn        func(ctx context.Context, sessionIDs []int64) error
}

func (f *fakeLedger) OpenSessions(ctx context.Context, limit int) ([]ledger.AttendanceSession, error) {
	return f.openSessionsFn(ctx, limit)
}
func (f *fakeLedger) SessionsSince(ctx context.Context, since time.Time) ([]ledger.AttendanceSession, error) {
	return f.sessionsSinceFn(ctx, since)
}
func (f *fakeLedger) CloseSession(ctx context.Context, sessionID int64, at time.Time) error {
	return f.closeSessionFn(ctx, sessionID, at)
}
func (f *fakeLedger) ReopenSession(ctx context.Context, sessionID int64) error {
	return f.reopenFn(ctx, sessionID)
}
func (f *fakeLedger) DeleteSessions(ctx context.Context, sessionIDs []int64) error {
	return f.deleteFn(ctx, sessionIDs)
}

func TestCleanup_ClosesOnlyStaleSessions(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	stale := ledger.AttendanceSession{ID: 1, EmployeeKey: 1, EmployeeName: "Alice Martin", CheckIn: now.Add(-30 * time.Hour)}
	fresh := ledger.AttendanceSession{ID: 2, EmployeeKey: 2, EmployeeName: "Bob Dupont", CheckIn: now.Add(-2 * time.Hour)}

	closed := map[int64]time.Time{}
	led := &fakeLedger{
		openSessionsFn: func(ctx context.Context, limit int) ([]ledger.AttendanceSession, error) {
			return []ledger.AttendanceSession{stale, fresh}, nil
		},
		closeSessionFn: func(ctx context.Context, sessionID int64, at time.Time) error {
			closed[sessionID] = at
			return nil
		},
	}

	svc := NewService(led, 8*time.Hour)
	svc.now = func() time.Time { return now }

	report, err := svc.CleanupOpenSessions(context.Background(), 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 1, report.Closed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Errors)

	// Closed at check_in plus the assumed shift, not at now.
	require.Contains(t, closed, int64(1))
	assert.Equal(t, stale.CheckIn.Add(8*time.Hour), closed[1])
	assert.NotContains(t, closed, int64(2))
}

func TestCleanup_CloseFailureIsIsolated(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	sessions := []ledger.AttendanceSession{
		{ID: 1, EmployeeKey: 1, CheckIn: now.Add(-30 * time.Hour)},
		{ID: 2, EmployeeKey: 2, CheckIn: now.Add(-40 * time.Hour)},
	}
	led := &fakeLedger{
		openSessionsFn: func(ctx context.Context, limit int) ([]ledger.AttendanceSession, error) {
			return sessions, nil
		},
		closeSessionFn: func(ctx context.Context, sessionID int64, at time.Time) error {
			if sessionID == 1 {
				return errors.New("write rejected")
			}
			return nil
		},
	}

	svc := NewService(led, 8*time.Hour)
	svc.now = func() time.Time { return now }

	report, err := svc.CleanupOpenSessions(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Closed)
	assert.Equal(t, 1, report.Errors)
}

func sessionAt(id, employee int64, checkIn time.Time, checkOut *time.Time) ledger.AttendanceSession {
	return ledger.AttendanceSession{ID: id, EmployeeKey: employee, CheckIn: checkIn, CheckOut: checkOut}
}

func TestFix_ReopensFirstAndDeletesRest(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	a := now.Add(-50 * time.Hour)
	b := now.Add(-26 * time.Hour)
	good := now.Add(-10 * time.Hour)
	goodOut := good.Add(8 * time.Hour)

	// Two corrupted sessions for employee 1, one healthy for employee 2.
	sessions := []ledger.AttendanceSession{
		sessionAt(1, 1, a, &a),
		sessionAt(2, 1, b, &b),
		sessionAt(3, 2, good, &goodOut),
	}

	var reopened []int64
	var deleted []int64
	led := &fakeLedger{
		sessionsSinceFn: func(ctx context.Context, since time.Time) ([]ledger.AttendanceSession, error) {
			return sessions, nil
		},
		reopenFn: func(ctx context.Context, sessionID int64) error {
			reopened = append(reopened, sessionID)
			return nil
		},
		deleteFn: func(ctx context.Context, sessionIDs []int64) error {
			deleted = append(deleted, sessionIDs...)
			return nil
		},
	}

	svc := NewService(led, 8*time.Hour)
	svc.now = func() time.Time { return now }

	report, err := svc.FixCorruptedSessions(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Corrupted)
	assert.Equal(t, 1, report.Reopened)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, []int64{1}, reopened, "earliest corrupted session is reopened")
	assert.Equal(t, []int64{2}, deleted, "later duplicates are deleted")
}

func TestFix_SingleCorruptedSessionIsOnlyReopened(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	a := now.Add(-26 * time.Hour)
	sessions := []ledger.AttendanceSession{sessionAt(1, 1, a, &a)}

	var reopened, deleted []int64
	led := &fakeLedger{
		sessionsSinceFn: func(ctx context.Context, since time.Time) ([]ledger.AttendanceSession, error) {
			return sessions, nil
		},
		reopenFn: func(ctx context.Context, sessionID int64) error {
			reopened = append(reopened, sessionID)
			return nil
		},
		deleteFn: func(ctx context.Context, sessionIDs []int64) error {
			deleted = append(deleted, sessionIDs...)
			return nil
		},
	}

	svc := NewService(led, 8*time.Hour)
	svc.now = func() time.Time { return now }

	report, err := svc.FixCorruptedSessions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reopened)
	assert.Equal(t, 0, report.Deleted)
	assert.Empty(t, deleted)
	assert.Equal(t, []int64{1}, reopened)
}

func TestFix_ScanWindowStartsAtMidnight(t *testing.T) {
	now := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	var gotSince time.Time
	led := &fakeLedger{
		sessionsSinceFn: func(ctx context.Context, since time.Time) ([]ledger.AttendanceSession, error) {
			gotSince = since
			return nil, nil
		},
	}

	svc := NewService(led, 8*time.Hour)
	svc.now = func() time.Time { return now }

	_, err := svc.FixCorruptedSessions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC), gotSince)
}

func TestFix_ReopenFailureStillDeletesDuplicates(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	a := now.Add(-50 * time.Hour)
	b := now.Add(-26 * time.Hour)
	sessions := []ledger.AttendanceSession{
		sessionAt(1, 1, a, &a),
		sessionAt(2, 1, b, &b),
	}

	var deleted []int64
	led := &fakeLedger{
		sessionsSinceFn: func(ctx context.Context, since time.Time) ([]ledger.AttendanceSession, error) {
			return sessions, nil
		},
		reopenFn: func(ctx context.Context, sessionID int64) error {
			return errors.New("write rejected")
		},
		deleteFn: func(ctx context.Context, sessionIDs []int64) error {
			deleted = append(deleted, sessionIDs...)
			return nil
		},
	}

	svc := NewService(led, 8*time.Hour)
	svc.now = func() time.Time { return now }

	report, err := svc.FixCorruptedSessions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, []int64{2}, deleted)
}
