package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Abk90/pointage-bot/internal/clock"
	"github.com/Abk90/pointage-bot/internal/ledger"
	"github.com/Abk90/pointage-bot/internal/shared/apperror"
	"github.com/Abk90/pointage-bot/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the attendance surface of the HR ledger.
type Ledger interface {
	OpenSession(ctx context.Context, employeeKey int64) (*ledger.AttendanceSession, error)
	CheckinWithin(ctx context.Context, employeeKey int64, at time.Time, tolerance time.Duration) (bool, error)
	CheckoutWithin(ctx context.Context, employeeKey int64, at time.Time, tolerance time.Duration) (bool, error)
	CreateCheckin(ctx context.Context, employeeKey int64, at time.Time) (int64, error)
	CloseSession(ctx context.Context, sessionID int64, at time.Time) error
}

// ClockSource provides the raw punches for a window.
type ClockSource interface {
	GetAttendances(ctx context.Context, start, end time.Time, filter []string) ([]clock.Punch, error)
}

// Resolver maps device identities to ledger keys.
type Resolver interface {
	Resolve(ctx context.Context, deviceRef, displayName string) (int64, bool)
}

// StateStore persists the audit log and the watermark.
type StateStore interface {
	AppendRun(ctx context.Context, run store.SyncRun) error
	Watermark(ctx context.Context) (time.Time, error)
	SetWatermark(ctx context.Context, at time.Time) error
}

// Service drives one sync run: fetch, sort, group, resolve, decide, log.
// Punches are processed strictly sequentially; the open-session state is
// re-read from the ledger before every decision.
type Service struct {
	clock    ClockSource
	ledger   Ledger
	resolver Resolver
	state    StateStore
	guard    *Guard

	now func() time.Time
	log *zap.Logger
}

func NewService(clockSource ClockSource, ledgerStore Ledger, resolver Resolver, state StateStore, tolerance time.Duration) *Service {
	return &Service{
		clock:    clockSource,
		ledger:   ledgerStore,
		resolver: resolver,
		state:    state,
		guard:    NewGuard(ledgerStore, tolerance),
		now:      time.Now,
		log:      zap.L().Named("reconcile"),
	}
}

// RunOptions selects the sync window. A zero Start falls back to the stored
// watermark, then to Fallback (start of day for manual runs, 7 days back for
// daemon runs). A zero End means now.
type RunOptions struct {
	Start    time.Time
	End      time.Time
	Fallback time.Time
}

func (s *Service) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	start := opts.Start
	if start.IsZero() {
		watermark, err := s.state.Watermark(ctx)
		if err != nil {
			return nil, err
		}
		start = watermark
	}
	if start.IsZero() {
		start = opts.Fallback
	}
	end := opts.End
	if end.IsZero() {
		end = s.now()
	}

	s.log.Info("sync starting",
		zap.Time("window_start", start),
		zap.Time("window_end", end))

	punches, err := s.clock.GetAttendances(ctx, start, end, nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeConnectionFailure, "fetching punches failed")
	}

	// Stable: equal timestamps keep retrieval order.
	sort.SliceStable(punches, func(i, j int) bool {
		return punches[i].Timestamp.Before(punches[j].Timestamp)
	})

	report := &Report{
		RunID:       uuid.New().String(),
		RanAt:       s.now(),
		WindowStart: start,
		WindowEnd:   end,
		Stats:       Stats{TotalPunches: len(punches)},
	}

	groups, order := groupByEmployee(punches)
	s.log.Info("processing punches",
		zap.Int("punches", len(punches)),
		zap.Int("employees", len(order)))

	for _, ref := range order {
		group := groups[ref]

		// One identity lookup per group, keyed off the first punch's name.
		key, ok := s.resolver.Resolve(ctx, ref, group[0].EmployeeName)
		if !ok {
			for _, punch := range group {
				report.Stats.SkippedNoMatch++
				report.Results = append(report.Results, skippedResult(punch, nil, apperror.CodeIdentityUnresolved, "employee not found in ledger"))
				s.log.Warn("punch skipped: employee not found",
					zap.String("ref", ref),
					zap.String("name", punch.EmployeeName),
					zap.Time("timestamp", punch.Timestamp))
			}
			continue
		}

		for _, punch := range group {
			result := s.processPunch(ctx, key, punch)
			s.tally(&report.Stats, result)
			report.Results = append(report.Results, result)
		}
	}

	if err := s.export(ctx, report); err != nil {
		return report, err
	}
	s.log.Info("sync finished",
		zap.Int("total", report.Stats.TotalPunches),
		zap.Int("checkins", report.Stats.CheckinsCreated),
		zap.Int("checkouts", report.Stats.CheckoutsUpdated),
		zap.Int("duplicates", report.Stats.SkippedDuplicate),
		zap.Int("no_match", report.Stats.SkippedNoMatch),
		zap.Int("errors", report.Stats.Errors))
	return report, nil
}

// groupByEmployee buckets punches by device reference, keeping groups in
// order of first appearance so runs are deterministic.
func groupByEmployee(punches []clock.Punch) (map[string][]clock.Punch, []string) {
	groups := map[string][]clock.Punch{}
	var order []string
	for _, punch := range punches {
		if _, seen := groups[punch.EmployeeRef]; !seen {
			order = append(order, punch.EmployeeRef)
		}
		groups[punch.EmployeeRef] = append(groups[punch.EmployeeRef], punch)
	}
	return groups, order
}

// processPunch decides one punch against the employee's current ledger
// state. Direction is never taken from the device's punch type: an open
// session makes this a check-out candidate, no open session makes it a
// check-in. Every failure is converted to an error result; later punches
// are unaffected.
func (s *Service) processPunch(ctx context.Context, employeeKey int64, punch clock.Punch) Result {
	dup, err := s.guard.IsDuplicate(ctx, employeeKey, punch.Timestamp)
	if err != nil {
		return errorResult(punch, &employeeKey, apperror.Wrap(err, apperror.CodeMutationFailure, "duplicate check failed"))
	}
	if dup {
		s.log.Debug("punch skipped: duplicate",
			zap.Int64("employee", employeeKey),
			zap.Time("timestamp", punch.Timestamp))
		return skippedResult(punch, &employeeKey, apperror.CodeDuplicateDetected, "duplicate")
	}

	open, err := s.ledger.OpenSession(ctx, employeeKey)
	if err != nil {
		return errorResult(punch, &employeeKey, apperror.Wrap(err, apperror.CodeMutationFailure, "open session lookup failed"))
	}

	if open == nil {
		sessionID, err := s.ledger.CreateCheckin(ctx, employeeKey, punch.Timestamp)
		if err != nil {
			return errorResult(punch, &employeeKey, apperror.Wrap(err, apperror.CodeMutationFailure, "check-in create failed"))
		}
		s.log.Info("check-in",
			zap.String("employee", punch.EmployeeName),
			zap.Int64("key", employeeKey),
			zap.Time("timestamp", punch.Timestamp),
			zap.Int64("session", sessionID))
		res := newResult(punch, &employeeKey, ActionCheckin)
		res.SessionID = sessionID
		return res
	}

	if !s.guard.ValidOrder(open.CheckIn, punch.Timestamp) {
		reason := fmt.Sprintf("punch precedes open check-in (%s)", open.CheckIn.Format(ledger.TimeFormat))
		s.log.Warn("punch skipped: order violation",
			zap.Int64("employee", employeeKey),
			zap.Time("punch", punch.Timestamp),
			zap.Time("open_checkin", open.CheckIn))
		return skippedResult(punch, &employeeKey, apperror.CodeOrderViolation, reason)
	}

	if err := s.ledger.CloseSession(ctx, open.ID, punch.Timestamp); err != nil {
		return errorResult(punch, &employeeKey, apperror.Wrap(err, apperror.CodeMutationFailure, "check-out update failed"))
	}
	s.log.Info("check-out",
		zap.String("employee", punch.EmployeeName),
		zap.Int64("key", employeeKey),
		zap.Time("timestamp", punch.Timestamp),
		zap.Int64("session", open.ID))
	out := newResult(punch, &employeeKey, ActionCheckout)
	out.SessionID = open.ID
	return out
}

func (s *Service) tally(stats *Stats, r Result) {
	switch r.Action {
	case ActionCheckin:
		stats.CheckinsCreated++
	case ActionCheckout:
		stats.CheckoutsUpdated++
	case ActionSkipped:
		if r.Code == apperror.CodeDuplicateDetected {
			stats.SkippedDuplicate++
		} else {
			stats.SkippedNoMatch++
		}
	case ActionError:
		stats.Errors++
	}
}

// export writes the audit entry, then advances the watermark to now. The
// watermark only moves once the log write has succeeded.
func (s *Service) export(ctx context.Context, report *Report) error {
	results, err := json.Marshal(report.Results)
	if err != nil {
		return err
	}

	entry := store.SyncRun{
		ID:               report.RunID,
		RanAt:            report.RanAt,
		WindowStart:      report.WindowStart,
		WindowEnd:        report.WindowEnd,
		TotalPunches:     report.Stats.TotalPunches,
		CheckinsCreated:  report.Stats.CheckinsCreated,
		CheckoutsUpdated: report.Stats.CheckoutsUpdated,
		SkippedDuplicate: report.Stats.SkippedDuplicate,
		SkippedNoMatch:   report.Stats.SkippedNoMatch,
		Errors:           report.Stats.Errors,
		Results:          string(results),
	}
	if err := s.state.AppendRun(ctx, entry); err != nil {
		return err
	}
	return s.state.SetWatermark(ctx, s.now())
}

func newResult(punch clock.Punch, key *int64, action Action) Result {
	return Result{
		EmployeeRef:  punch.EmployeeRef,
		EmployeeKey:  key,
		EmployeeName: punch.EmployeeName,
		Timestamp:    punch.Timestamp,
		PunchType:    punch.Type,
		Action:       action,
	}
}

func skippedResult(punch clock.Punch, key *int64, code, reason string) Result {
	r := newResult(punch, key, ActionSkipped)
	r.Code = code
	r.Reason = reason
	return r
}

func errorResult(punch clock.Punch, key *int64, err error) Result {
	r := newResult(punch, key, ActionError)
	r.Code = apperror.CodeOf(err)
	r.Reason = err.Error()
	return r
}
