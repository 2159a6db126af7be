package clock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Abk90/pointage-bot/internal/shared/apperror"
	"go.uber.org/zap"
)

// Endpoint paths vary between device firmware generations; each capability
// is probed in order and the first path that answers is kept.
var (
	authPaths = []string{
		"/api-token-auth/",
		"/jwt-api-token-auth/",
		"/api/v1/auth/login/",
	}
	employeePaths = []string{
		"/personnel/api/employees/",
		"/api/v1/personnel/employee/",
		"/iclock/api/employees/",
	}
	transactionPaths = []string{
		"/iclock/api/transactions/",
		"/api/v1/attendance/transaction/",
		"/att/api/attRecord/",
	}
)

const pageSize = 100

// Client fetches punches and the device roster from a BioTime-style REST
// service. Which endpoint variant answered is an internal detail; callers
// only see the stable capability surface.
type Client struct {
	baseURL  string
	username string
	password string

	token           string
	employeePath    string
	transactionPath string

	httpc *http.Client
	log   *zap.Logger
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		log:      zap.L().Named("clock"),
	}
}

// Connect probes the token-auth endpoints until one yields a token.
func (c *Client) Connect(ctx context.Context) error {
	creds := map[string]string{"username": c.username, "password": c.password}

	for _, path := range authPaths {
		body, err := json.Marshal(creds)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			continue
		}
		var payload map[string]any
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || decodeErr != nil {
			continue
		}

		if token := firstString(payload, "token", "access_token", "Token"); token != "" {
			c.token = token
			c.log.Info("connected to clock source", zap.String("auth_path", path))
			return nil
		}
	}

	return apperror.New(apperror.CodeConnectionFailure, "no clock auth endpoint accepted the credentials")
}

func (c *Client) Connected() bool { return c.token != "" }

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	return c.httpc.Do(req)
}

// records unwraps the three response shapes in the wild: a bare list, or an
// object with the rows under "data" or "results".
func records(payload any) []map[string]any {
	var raw []any
	switch v := payload.(type) {
	case []any:
		raw = v
	case map[string]any:
		for _, key := range []string{"data", "results"} {
			if list, ok := v[key].([]any); ok {
				raw = list
				break
			}
		}
	}

	rows := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// GetEmployees fetches the device roster.
func (c *Client) GetEmployees(ctx context.Context) ([]Employee, error) {
	paths := employeePaths
	if c.employeePath != "" {
		paths = []string{c.employeePath}
	}

	for _, path := range paths {
		resp, err := c.get(ctx, path, nil)
		if err != nil {
			continue
		}
		var payload any
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || decodeErr != nil {
			continue
		}

		c.employeePath = path
		employees := make([]Employee, 0)
		for _, row := range records(payload) {
			id := firstString(row, "emp_code", "id", "badge_number")
			name := fullName(row)
			employees = append(employees, Employee{
				ID:    id,
				Name:  name,
				Badge: firstString(row, "emp_code", "badge_number", "id"),
			})
		}
		return employees, nil
	}

	return nil, apperror.New(apperror.CodeConnectionFailure, "no clock employee endpoint answered")
}

// GetAttendances fetches the punches recorded in [start, end]. When filter is
// non-empty only punches for those device employee refs are returned. The
// result keeps the device's retrieval order; callers re-sort.
func (c *Client) GetAttendances(ctx context.Context, start, end time.Time, filter []string) ([]Punch, error) {
	wanted := map[string]bool{}
	for _, ref := range filter {
		wanted[ref] = true
	}

	paths := transactionPaths
	if c.transactionPath != "" {
		paths = []string{c.transactionPath}
	}

	for _, path := range paths {
		rows, ok, err := c.fetchTransactionPages(ctx, path, start, end)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeConnectionFailure, "transaction fetch interrupted")
		}
		if !ok {
			continue
		}

		c.transactionPath = path
		punches := make([]Punch, 0, len(rows))
		for _, row := range rows {
			punch, ok := punchFromRecord(row)
			if !ok {
				continue
			}
			if len(wanted) > 0 && !wanted[punch.EmployeeRef] {
				continue
			}
			punches = append(punches, punch)
		}
		return punches, nil
	}

	return nil, apperror.New(apperror.CodeConnectionFailure, "no clock transaction endpoint answered")
}

// fetchTransactionPages walks the paginated transaction listing. A failure on
// page one means the endpoint variant does not exist on this firmware (second
// return false, caller probes the next path). A failure on a later page is a
// mid-fetch outage: returning partial rows would let the caller treat a
// truncated window as complete, so it is an error instead.
func (c *Client) fetchTransactionPages(ctx context.Context, path string, start, end time.Time) ([]map[string]any, bool, error) {
	var all []map[string]any

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("start_time", start.Format(ledgerTimeFormat))
		query.Set("end_time", end.Format(ledgerTimeFormat))
		query.Set("page", fmt.Sprint(page))
		query.Set("page_size", fmt.Sprint(pageSize))

		resp, err := c.get(ctx, path, query)
		if err != nil {
			if page == 1 {
				return nil, false, nil
			}
			return nil, true, fmt.Errorf("transactions page %d: %w", page, err)
		}
		var payload any
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || decodeErr != nil {
			if page == 1 {
				return nil, false, nil
			}
			if decodeErr != nil {
				return nil, true, fmt.Errorf("transactions page %d: %w", page, decodeErr)
			}
			return nil, true, fmt.Errorf("transactions page %d: status %d", page, resp.StatusCode)
		}

		rows := records(payload)
		all = append(all, rows...)

		total := 0
		if obj, ok := payload.(map[string]any); ok {
			if count, ok := obj["count"].(float64); ok {
				total = int(count)
			}
		}
		if len(rows) < pageSize || (total > 0 && len(all) >= total) {
			return all, true, nil
		}
	}
}

const ledgerTimeFormat = "2006-01-02 15:04:05"

func punchFromRecord(row map[string]any) (Punch, bool) {
	ref := firstString(row, "emp_code", "employee_id", "pin")
	if ref == "" {
		return Punch{}, false
	}

	ts, ok := parseTimestamp(firstString(row, "punch_time", "att_time", "timestamp"))
	if !ok {
		return Punch{}, false
	}

	name := fullName(row)
	if name == "" {
		name = firstString(row, "emp_name", "employee_name")
	}

	return Punch{
		EmployeeRef:  ref,
		EmployeeName: name,
		Timestamp:    ts,
		Type:         punchTypeFromState(firstNumber(row, "punch_state", "status", "state")),
		DeviceID:     firstString(row, "terminal_sn", "terminal_id", "device_id"),
		DeviceName:   firstString(row, "terminal_alias", "terminal_name", "device_name"),
	}, true
}

// Device status codes: 0=Check-In, 1=Check-Out, 2=Break-Out, 3=Break-In,
// 4=OT-In, 5=OT-Out, 255=auto-detect. The reconciler ignores the direction
// anyway; it is kept for the audit trail.
func punchTypeFromState(state int) PunchType {
	switch state {
	case 255:
		return PunchAuto
	case 0, 4:
		return PunchIn
	default:
		return PunchOut
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), true
		}
		// Some firmwares emit ISO timestamps without a zone
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(ledgerTimeFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func fullName(row map[string]any) string {
	first := firstString(row, "first_name")
	if first == "" {
		return firstString(row, "name")
	}
	return strings.TrimSpace(first + " " + firstString(row, "last_name"))
}

func firstString(row map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := row[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func firstNumber(row map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := row[key].(type) {
		case float64:
			return int(v)
		case string:
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
				return n
			}
		}
	}
	return 0
}

// TestConnection reports connectivity diagnostics without mutating anything.
func (c *Client) TestConnection(ctx context.Context) Diagnostics {
	if err := c.Connect(ctx); err != nil {
		return Diagnostics{Status: "error", Message: "connection failed: " + err.Error()}
	}

	diag := Diagnostics{Mode: "api"}
	employees, err := c.GetEmployees(ctx)
	if err != nil {
		diag.Status = "warning"
		diag.Message = "connected but employee listing failed: " + err.Error()
		return diag
	}

	diag.EmployeeCount = len(employees)
	if len(employees) == 0 {
		diag.Status = "warning"
		diag.Message = "connected but no employees found"
		return diag
	}

	sort.SliceStable(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })
	sample := employees
	if len(sample) > 3 {
		sample = sample[:3]
	}
	diag.Status = "ok"
	diag.Message = fmt.Sprintf("connected, %d employees found", len(employees))
	diag.Sample = sample
	return diag
}
