package status_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abk90/pointage-bot/internal/status"
	"github.com/Abk90/pointage-bot/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditLog struct {
	recentRunsFn func(ctx context.Context, limit int) ([]store.SyncRun, error)
	latestRunFn  func(ctx context.Context) (*store.SyncRun, error)
	watermarkFn  func(ctx context.Context) (time.Time, error)
}

func (f *fakeAuditLog) RecentRuns(ctx context.Context, limit int) ([]store.SyncRun, error) {
	return f.recentRunsFn(ctx, limit)
}
func (f *fakeAuditLog) LatestRun(ctx context.Context) (*store.SyncRun, error) {
	return f.latestRunFn(ctx)
}
func (f *fakeAuditLog) Watermark(ctx context.Context) (time.Time, error) {
	return f.watermarkFn(ctx)
}

func newRouter(log *fakeAuditLog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	status.RegisterRoutes(router, status.NewHandler(log))
	return router
}

func TestHealth_IncludesLastSync(t *testing.T) {
	watermark := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	router := newRouter(&fakeAuditLog{
		watermarkFn: func(ctx context.Context) (time.Time, error) { return watermark, nil },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), "last_sync")
}

func TestHealth_BeforeFirstSync(t *testing.T) {
	router := newRouter(&fakeAuditLog{
		watermarkFn: func(ctx context.Context) (time.Time, error) { return time.Time{}, nil },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "last_sync")
}

func TestListRuns_PassesLimitAndOmitsResults(t *testing.T) {
	var gotLimit int
	router := newRouter(&fakeAuditLog{
		recentRunsFn: func(ctx context.Context, limit int) ([]store.SyncRun, error) {
			gotLimit = limit
			return []store.SyncRun{
				{ID: "run-1", TotalPunches: 4, Results: `[{"action":"checkin"}]`},
			}, nil
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)

	var body struct {
		Ok   bool                 `json:"ok"`
		Data []status.RunResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Ok)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "run-1", body.Data[0].ID)
	assert.Nil(t, body.Data[0].Results, "list endpoint stays counters-only")
}

func TestListRuns_DefaultLimit(t *testing.T) {
	var gotLimit int
	router := newRouter(&fakeAuditLog{
		recentRunsFn: func(ctx context.Context, limit int) ([]store.SyncRun, error) {
			gotLimit = limit
			return nil, nil
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, gotLimit)
}

func TestLatestRun_IncludesResults(t *testing.T) {
	router := newRouter(&fakeAuditLog{
		latestRunFn: func(ctx context.Context) (*store.SyncRun, error) {
			return &store.SyncRun{ID: "run-9", Results: `[{"action":"checkout"}]`}, nil
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run-9"`)
	assert.Contains(t, w.Body.String(), `"checkout"`)
}

func TestLatestRun_EmptyLogIs404(t *testing.T) {
	router := newRouter(&fakeAuditLog{
		latestRunFn: func(ctx context.Context) (*store.SyncRun, error) { return nil, nil },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no sync run recorded yet")
}
