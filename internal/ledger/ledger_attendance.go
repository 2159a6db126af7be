package ledger

import (
	"context"
	"time"
)

const (
	modelEmployee   = "hr.employee"
	modelAttendance = "hr.attendance"

	rosterLimit = 500
)

// Employee is one roster entry from the ledger.
type Employee struct {
	ID    int64
	Name  string
	Badge string
}

// AttendanceSession is one open/close attendance record. A nil CheckOut
// means the session is still open.
type AttendanceSession struct {
	ID           int64
	EmployeeKey  int64
	EmployeeName string
	CheckIn      time.Time
	CheckOut     *time.Time
}

// Attendance wraps the generic client with the hr.attendance operations the
// reconciler and maintenance routines need.
type Attendance struct {
	client *Client
}

func NewAttendance(client *Client) *Attendance {
	return &Attendance{client: client}
}

var sessionFields = []string{"id", "employee_id", "check_in", "check_out"}

// Employees returns the active roster in the ledger's stable order.
func (a *Attendance) Employees(ctx context.Context) ([]Employee, error) {
	records, err := a.client.SearchRead(ctx, modelEmployee,
		Domain{Cond("active", "=", true)},
		SearchOptions{Fields: []string{"id", "name", "barcode"}, Limit: rosterLimit},
	)
	if err != nil {
		return nil, err
	}

	employees := make([]Employee, 0, len(records))
	for _, r := range records {
		employees = append(employees, Employee{
			ID:    r.ID(),
			Name:  r.Str("name"),
			Badge: r.Str("barcode"),
		})
	}
	return employees, nil
}

// OpenSession returns the employee's newest session without a check-out, or
// nil when none exists.
func (a *Attendance) OpenSession(ctx context.Context, employeeKey int64) (*AttendanceSession, error) {
	records, err := a.client.SearchRead(ctx, modelAttendance,
		Domain{
			Cond("employee_id", "=", employeeKey),
			Cond("check_out", "=", false),
		},
		SearchOptions{Fields: sessionFields, Limit: 1, Order: "check_in desc"},
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	s := sessionFromRecord(records[0])
	return &s, nil
}

// CheckinWithin reports whether any session's check-in falls inside
// [at-tolerance, at+tolerance] for the employee.
func (a *Attendance) CheckinWithin(ctx context.Context, employeeKey int64, at time.Time, tolerance time.Duration) (bool, error) {
	return a.existsWithin(ctx, employeeKey, "check_in", at, tolerance)
}

// CheckoutWithin is CheckinWithin for the check-out column.
func (a *Attendance) CheckoutWithin(ctx context.Context, employeeKey int64, at time.Time, tolerance time.Duration) (bool, error) {
	return a.existsWithin(ctx, employeeKey, "check_out", at, tolerance)
}

func (a *Attendance) existsWithin(ctx context.Context, employeeKey int64, field string, at time.Time, tolerance time.Duration) (bool, error) {
	records, err := a.client.SearchRead(ctx, modelAttendance,
		Domain{
			Cond("employee_id", "=", employeeKey),
			Cond(field, ">=", at.Add(-tolerance).UTC().Format(TimeFormat)),
			Cond(field, "<=", at.Add(tolerance).UTC().Format(TimeFormat)),
		},
		SearchOptions{Fields: []string{"id"}, Limit: 1},
	)
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// CreateCheckin opens a new session and returns its ledger id.
func (a *Attendance) CreateCheckin(ctx context.Context, employeeKey int64, at time.Time) (int64, error) {
	return a.client.Create(ctx, modelAttendance, map[string]any{
		"employee_id": employeeKey,
		"check_in":    at.UTC().Format(TimeFormat),
	})
}

// CloseSession stamps the check-out on an open session.
func (a *Attendance) CloseSession(ctx context.Context, sessionID int64, at time.Time) error {
	return a.client.Update(ctx, modelAttendance, sessionID, map[string]any{
		"check_out": at.UTC().Format(TimeFormat),
	})
}

// ReopenSession clears the check-out, making the session open again.
func (a *Attendance) ReopenSession(ctx context.Context, sessionID int64) error {
	return a.client.Update(ctx, modelAttendance, sessionID, map[string]any{
		"check_out": false,
	})
}

func (a *Attendance) DeleteSessions(ctx context.Context, sessionIDs []int64) error {
	return a.client.Delete(ctx, modelAttendance, sessionIDs)
}

// OpenSessions lists sessions without a check-out across all employees.
func (a *Attendance) OpenSessions(ctx context.Context, limit int) ([]AttendanceSession, error) {
	records, err := a.client.SearchRead(ctx, modelAttendance,
		Domain{Cond("check_out", "=", false)},
		SearchOptions{Fields: sessionFields, Limit: limit},
	)
	if err != nil {
		return nil, err
	}
	return sessionsFromRecords(records), nil
}

// SessionsSince lists all sessions whose check-in is at or after the given
// instant, oldest first.
func (a *Attendance) SessionsSince(ctx context.Context, since time.Time) ([]AttendanceSession, error) {
	records, err := a.client.SearchRead(ctx, modelAttendance,
		Domain{Cond("check_in", ">=", since.UTC().Format(TimeFormat))},
		SearchOptions{Fields: sessionFields, Order: "check_in asc"},
	)
	if err != nil {
		return nil, err
	}
	return sessionsFromRecords(records), nil
}

func sessionsFromRecords(records []Record) []AttendanceSession {
	sessions := make([]AttendanceSession, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, sessionFromRecord(r))
	}
	return sessions
}

func sessionFromRecord(r Record) AttendanceSession {
	s := AttendanceSession{ID: r.ID()}
	if key, name, ok := r.Many2One("employee_id"); ok {
		s.EmployeeKey = key
		s.EmployeeName = name
	}
	if in, ok := r.Time("check_in"); ok {
		s.CheckIn = in
	}
	if out, ok := r.Time("check_out"); ok {
		s.CheckOut = &out
	}
	return s
}
