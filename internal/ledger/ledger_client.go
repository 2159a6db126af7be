package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Abk90/pointage-bot/internal/shared/apperror"
	"go.uber.org/zap"
)

// TimeFormat is the ledger's wire format for timestamps (UTC, second
// precision, no zone suffix).
const TimeFormat = "2006-01-02 15:04:05"

// Client speaks the ledger's JSON-RPC endpoint. All record access goes
// through the generic execute_kw surface: SearchRead, Create, Update, Delete.
type Client struct {
	url      string
	database string
	username string
	apiKey   string

	uid    int64
	httpc  *http.Client
	nextID atomic.Int64
	log    *zap.Logger
}

func NewClient(url, database, username, apiKey string) *Client {
	return &Client{
		url:      strings.TrimRight(url, "/"),
		database: database,
		username: username,
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		log:      zap.L().Named("ledger"),
	}
}

// Connect authenticates and keeps the resulting user id for later calls.
func (c *Client) Connect(ctx context.Context) error {
	raw, err := c.call(ctx, "common", "authenticate", c.database, c.username, c.apiKey, map[string]any{})
	if err != nil {
		return apperror.Wrap(err, apperror.CodeConnectionFailure, "ledger authentication failed")
	}

	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid == 0 {
		return apperror.New(apperror.CodeConnectionFailure, "ledger rejected the credentials")
	}

	c.uid = uid
	c.log.Info("connected to ledger", zap.String("url", c.url), zap.Int64("uid", uid))
	return nil
}

func (c *Client) Connected() bool { return c.uid != 0 }

type rpcRequest struct {
	Jsonrpc string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

func (c *Client) call(ctx context.Context, service, method string, args ...any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ledger call %s.%s failed with status %d: %s", service, method, resp.StatusCode, string(b))
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("ledger call %s.%s: decoding response: %w", service, method, err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("ledger call %s.%s: %w", service, method, rr.Error)
	}
	return rr.Result, nil
}

// ExecuteKw invokes a method on a ledger model.
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	if c.uid == 0 {
		return nil, apperror.New(apperror.CodeConnectionFailure, "not connected to ledger")
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return c.call(ctx, "object", "execute_kw", c.database, c.uid, c.apiKey, model, method, args, kwargs)
}

// Cond builds one domain predicate. The ledger understands equality,
// inequality and range operators, plus `=` against false for "field absent".
func Cond(field, op string, value any) []any {
	return []any{field, op, value}
}

// Domain is a conjunction of predicates.
type Domain [][]any

type SearchOptions struct {
	Fields []string
	Limit  int
	Offset int
	Order  string
}

func (c *Client) SearchRead(ctx context.Context, model string, domain Domain, opts SearchOptions) ([]Record, error) {
	if domain == nil {
		domain = Domain{}
	}
	kwargs := map[string]any{}
	if len(opts.Fields) > 0 {
		kwargs["fields"] = opts.Fields
	}
	if opts.Limit > 0 {
		kwargs["limit"] = opts.Limit
	}
	if opts.Offset > 0 {
		kwargs["offset"] = opts.Offset
	}
	if opts.Order != "" {
		kwargs["order"] = opts.Order
	}

	raw, err := c.ExecuteKw(ctx, model, "search_read", []any{domain}, kwargs)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("search_read %s: decoding records: %w", model, err)
	}
	return records, nil
}

func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	raw, err := c.ExecuteKw(ctx, model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}

	// create may answer a bare id or a one-element list depending on version
	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err == nil && len(ids) > 0 {
		return ids[0], nil
	}
	return 0, fmt.Errorf("create %s: unexpected response %s", model, string(raw))
}

func (c *Client) Update(ctx context.Context, model string, id int64, values map[string]any) error {
	_, err := c.ExecuteKw(ctx, model, "write", []any{[]int64{id}, values}, nil)
	return err
}

func (c *Client) Delete(ctx context.Context, model string, ids []int64) error {
	_, err := c.ExecuteKw(ctx, model, "unlink", []any{ids}, nil)
	return err
}

// Record is one row as returned by search_read. Field accessors tolerate the
// ledger's habit of sending false for absent values.
type Record map[string]any

func (r Record) ID() int64 { return r.Int("id") }

func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func (r Record) Str(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// Time parses a wire-format timestamp field. Returns false for absent or
// malformed values.
func (r Record) Time(key string) (time.Time, bool) {
	s, ok := r[key].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimeFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Many2One decodes a relational field, which arrives as [id, label] or false.
func (r Record) Many2One(key string) (int64, string, bool) {
	pair, ok := r[key].([]any)
	if !ok || len(pair) < 2 {
		return 0, "", false
	}
	id, ok := pair[0].(float64)
	if !ok {
		return 0, "", false
	}
	label, _ := pair[1].(string)
	return int64(id), label, true
}
