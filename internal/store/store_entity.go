package store

import "time"

const (
	KindBadge = "badge"
	KindName  = "name"
)

// EmployeeMapping is one persisted (badge|name) → ledger key association.
type EmployeeMapping struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Kind      string    `gorm:"column:kind;size:10;not null;uniqueIndex:idx_mapping_kind_ref"`
	Ref       string    `gorm:"column:ref;size:200;not null;uniqueIndex:idx_mapping_kind_ref"`
	LedgerKey int64     `gorm:"column:ledger_key;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (EmployeeMapping) TableName() string {
	return "employee_mappings"
}

// SyncRun is one audit log entry: the counters of a run plus its per-punch
// results serialized as JSON. The table is capped to the newest 100 rows.
type SyncRun struct {
	ID               string    `gorm:"column:id;size:36;primaryKey"`
	RanAt            time.Time `gorm:"column:ran_at;not null;index"`
	WindowStart      time.Time `gorm:"column:window_start"`
	WindowEnd        time.Time `gorm:"column:window_end"`
	TotalPunches     int       `gorm:"column:total_punches;not null"`
	CheckinsCreated  int       `gorm:"column:checkins_created;not null"`
	CheckoutsUpdated int       `gorm:"column:checkouts_updated;not null"`
	SkippedDuplicate int       `gorm:"column:skipped_duplicates;not null"`
	SkippedNoMatch   int       `gorm:"column:skipped_no_match;not null"`
	Errors           int       `gorm:"column:errors;not null"`
	Results          string    `gorm:"column:results;type:text"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// SyncState is a key/value row: the watermark and the mapping build
// timestamp live here.
type SyncState struct {
	Key       string    `gorm:"column:key;size:50;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
