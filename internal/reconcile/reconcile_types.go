package reconcile

import (
	"time"

	"github.com/Abk90/pointage-bot/internal/clock"
)

// Action is the terminal outcome for one processed punch. Every punch maps
// to exactly one action.
type Action string

const (
	ActionCheckin  Action = "checkin"
	ActionCheckout Action = "checkout"
	ActionSkipped  Action = "skipped"
	ActionError    Action = "error"
)

// Result is the audit record for one processed punch. Skipped and error
// results carry the taxonomy code of what stopped them; Reason is the
// human-readable rendering.
type Result struct {
	EmployeeRef  string          `json:"employee_ref"`
	EmployeeKey  *int64          `json:"employee_key,omitempty"`
	EmployeeName string          `json:"employee_name"`
	Timestamp    time.Time       `json:"timestamp"`
	PunchType    clock.PunchType `json:"punch_type"`
	Action       Action          `json:"action"`
	SessionID    int64           `json:"session_id,omitempty"`
	Code         string          `json:"code,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// Stats are the per-run counters.
type Stats struct {
	TotalPunches     int `json:"total_punches"`
	CheckinsCreated  int `json:"checkins_created"`
	CheckoutsUpdated int `json:"checkouts_updated"`
	SkippedDuplicate int `json:"skipped_duplicates"`
	SkippedNoMatch   int `json:"skipped_no_match"`
	Errors           int `json:"errors"`
}

// Report is the outcome of one sync run.
type Report struct {
	RunID       string
	RanAt       time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Stats       Stats
	Results     []Result
}
