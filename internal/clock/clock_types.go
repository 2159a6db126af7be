package clock

import "time"

type PunchType string

const (
	PunchIn  PunchType = "IN"
	PunchOut PunchType = "OUT"
	// PunchAuto means the device did not classify direction; the reconciler
	// derives it from the ledger's open/closed state instead.
	PunchAuto PunchType = "AUTO"
)

// Punch is one immutable badge/biometric scan event.
type Punch struct {
	EmployeeRef  string
	EmployeeName string
	Timestamp    time.Time
	Type         PunchType
	DeviceID     string
	DeviceName   string
}

// Employee is one device-side roster entry.
type Employee struct {
	ID    string
	Name  string
	Badge string
}

// Diagnostics is the result of TestConnection.
type Diagnostics struct {
	Status        string // "ok", "warning" or "error"
	Mode          string
	Message       string
	EmployeeCount int
	Sample        []Employee
}
