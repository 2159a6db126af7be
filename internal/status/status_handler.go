package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Abk90/pointage-bot/internal/shared/apperror"
	"github.com/Abk90/pointage-bot/internal/shared/response"
	"github.com/Abk90/pointage-bot/internal/store"
	"github.com/gin-gonic/gin"
)

// AuditLog is the read-only slice of the state store the status API serves.
type AuditLog interface {
	RecentRuns(ctx context.Context, limit int) ([]store.SyncRun, error)
	LatestRun(ctx context.Context) (*store.SyncRun, error)
	Watermark(ctx context.Context) (time.Time, error)
}

type Handler struct {
	log AuditLog
}

func NewHandler(log AuditLog) *Handler {
	return &Handler{log: log}
}

type RunResponse struct {
	ID               string          `json:"id"`
	RanAt            time.Time       `json:"ran_at"`
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        time.Time       `json:"window_end"`
	TotalPunches     int             `json:"total_punches"`
	CheckinsCreated  int             `json:"checkins_created"`
	CheckoutsUpdated int             `json:"checkouts_updated"`
	SkippedDuplicate int             `json:"skipped_duplicates"`
	SkippedNoMatch   int             `json:"skipped_no_match"`
	Errors           int             `json:"errors"`
	Results          json.RawMessage `json:"results,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	watermark, err := h.log.Watermark(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, apperror.CodeInternalError, err.Error())
		return
	}

	payload := gin.H{"status": "ok"}
	if !watermark.IsZero() {
		payload["last_sync"] = watermark
	}
	response.Success(c, http.StatusOK, payload)
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.log.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, apperror.CodeInternalError, err.Error())
		return
	}

	out := make([]RunResponse, len(runs))
	for i, run := range runs {
		out[i] = mapToResponse(run, false)
	}
	response.Success(c, http.StatusOK, out)
}

func (h *Handler) LatestRun(c *gin.Context) {
	run, err := h.log.LatestRun(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, apperror.CodeInternalError, err.Error())
		return
	}
	if run == nil {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "no sync run recorded yet")
		return
	}
	resp := mapToResponse(*run, true)
	response.Success(c, http.StatusOK, resp)
}

// mapToResponse converts a store row. Per-punch results are only attached on
// single-run responses; the list endpoint stays counters-only.
func mapToResponse(run store.SyncRun, includeResults bool) RunResponse {
	resp := RunResponse{
		ID:               run.ID,
		RanAt:            run.RanAt,
		WindowStart:      run.WindowStart,
		WindowEnd:        run.WindowEnd,
		TotalPunches:     run.TotalPunches,
		CheckinsCreated:  run.CheckinsCreated,
		CheckoutsUpdated: run.CheckoutsUpdated,
		SkippedDuplicate: run.SkippedDuplicate,
		SkippedNoMatch:   run.SkippedNoMatch,
		Errors:           run.Errors,
	}
	if includeResults && run.Results != "" {
		resp.Results = json.RawMessage(run.Results)
	}
	return resp
}
