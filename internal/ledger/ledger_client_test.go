package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Service string
	Method  string
	Args    []any
}

// newRPCServer fakes the /jsonrpc endpoint. respond picks the result payload
// for each decoded call; calls are recorded for assertions.
func newRPCServer(t *testing.T, respond func(call rpcCall) any) (*httptest.Server, *[]rpcCall) {
	t.Helper()
	var calls []rpcCall

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jsonrpc", r.URL.Path)

		var req struct {
			Params struct {
				Service string `json:"service"`
				Method  string `json:"method"`
				Args    []any  `json:"args"`
			} `json:"params"`
			ID int64 `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		call := rpcCall{Service: req.Params.Service, Method: req.Params.Method, Args: req.Params.Args}
		calls = append(calls, call)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  respond(call),
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func connectedClient(t *testing.T, respond func(call rpcCall) any) (*Client, *[]rpcCall) {
	t.Helper()
	server, calls := newRPCServer(t, func(call rpcCall) any {
		if call.Service == "common" && call.Method == "authenticate" {
			return 7
		}
		return respond(call)
	})
	c := NewClient(server.URL, "hrdb", "bot@example.com", "secret")
	require.NoError(t, c.Connect(context.Background()))
	return c, calls
}

func TestConnect_KeepsUID(t *testing.T) {
	server, calls := newRPCServer(t, func(call rpcCall) any { return 42 })
	c := NewClient(server.URL, "hrdb", "bot@example.com", "secret")

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "common", call.Service)
	assert.Equal(t, "authenticate", call.Method)
	assert.Equal(t, []any{"hrdb", "bot@example.com", "secret", map[string]any{}}, call.Args)
}

func TestConnect_RejectedCredentials(t *testing.T) {
	// The endpoint answers false instead of a uid.
	server, _ := newRPCServer(t, func(call rpcCall) any { return false })
	c := NewClient(server.URL, "hrdb", "bot@example.com", "wrong")

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, c.Connected())
}

func TestExecuteKw_RequiresConnection(t *testing.T) {
	c := NewClient("http://localhost:1", "hrdb", "bot@example.com", "secret")
	_, err := c.ExecuteKw(context.Background(), "hr.employee", "search_read", nil, nil)
	assert.Error(t, err)
}

func TestCall_SurfacesRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":200,"message":"Odoo Server Error","data":{"message":"Access Denied"}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "hrdb", "bot@example.com", "secret")
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access Denied")
}

func TestSearchRead_SendsDomainAndOptions(t *testing.T) {
	c, calls := connectedClient(t, func(call rpcCall) any {
		return []map[string]any{{"id": 1, "name": "Alice Martin"}}
	})

	records, err := c.SearchRead(context.Background(), "hr.employee",
		Domain{Cond("active", "=", true)},
		SearchOptions{Fields: []string{"id", "name"}, Limit: 10, Order: "name asc"},
	)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID())
	assert.Equal(t, "Alice Martin", records[0].Str("name"))

	call := (*calls)[1]
	assert.Equal(t, "object", call.Service)
	assert.Equal(t, "execute_kw", call.Method)
	// db, uid, key, model, method, args, kwargs
	require.Len(t, call.Args, 7)
	assert.Equal(t, "hr.employee", call.Args[3])
	assert.Equal(t, "search_read", call.Args[4])
	kwargs := call.Args[6].(map[string]any)
	assert.Equal(t, float64(10), kwargs["limit"])
	assert.Equal(t, "name asc", kwargs["order"])
}

func TestCreate_AcceptsBareIDAndList(t *testing.T) {
	c, _ := connectedClient(t, func(call rpcCall) any { return 55 })
	id, err := c.Create(context.Background(), "hr.attendance", map[string]any{"employee_id": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)

	c2, _ := connectedClient(t, func(call rpcCall) any { return []int64{56} })
	id, err = c2.Create(context.Background(), "hr.attendance", map[string]any{"employee_id": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(56), id)
}

func TestRecord_Accessors(t *testing.T) {
	r := Record{
		"id":          float64(9),
		"name":        "Alice Martin",
		"check_in":    "2024-03-04 08:00:00",
		"check_out":   false,
		"employee_id": []any{float64(3), "Alice Martin"},
	}

	assert.Equal(t, int64(9), r.ID())
	assert.Equal(t, "Alice Martin", r.Str("name"))
	assert.Equal(t, "", r.Str("check_out"), "false reads as empty string")

	in, ok := r.Time("check_in")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), in)

	_, ok = r.Time("check_out")
	assert.False(t, ok, "false reads as absent timestamp")

	key, label, ok := r.Many2One("employee_id")
	require.True(t, ok)
	assert.Equal(t, int64(3), key)
	assert.Equal(t, "Alice Martin", label)

	_, _, ok = r.Many2One("check_out")
	assert.False(t, ok)
}
