package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bling-mirror/internal/model"
	"bling-mirror/internal/service"
	"bling-mirror/pkg/apierror"
	"bling-mirror/pkg/response"
)

// SyncRunner is the part of the scheduler the admin API drives.
type SyncRunner interface {
	Trigger(trigger string) (string, error)
	Running() bool
	History(ctx context.Context, limit int) ([]model.SyncRun, error)
}

// TokenInvalidator drops a cached tenant token.
type TokenInvalidator interface {
	Invalidate(ctx context.Context, tenant string) error
}

// SyncHandler handles admin sync and token requests.
type SyncHandler struct {
	runner SyncRunner
	tokens TokenInvalidator
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(runner SyncRunner, tokens TokenInvalidator) *SyncHandler {
	return &SyncHandler{runner: runner, tokens: tokens}
}

// TriggerResponse is returned when a manual cycle is accepted.
type TriggerResponse struct {
	RunID string `json:"run_id"`
}

// TriggerSync handles POST /api/v1/admin/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	runID, err := h.runner.Trigger(service.TriggerManual)
	if err != nil {
		if errors.Is(err, service.ErrCycleRunning) {
			response.Error(w, r, apierror.Conflict("a sync cycle is already running"))
			return
		}
		response.Error(w, r, err)
		return
	}

	response.Accepted(w, TriggerResponse{RunID: runID})
}

// ListRuns handles GET /api/v1/admin/sync/runs
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 500)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	runs, err := h.runner.History(r.Context(), limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.SyncRun{}
	}

	response.OK(w, map[string]interface{}{
		"running": h.runner.Running(),
		"runs":    runs,
	})
}

// InvalidateToken handles DELETE /api/v1/admin/token/{tenant}
func (h *SyncHandler) InvalidateToken(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	if tenant == "" {
		response.Error(w, r, apierror.BadRequest("tenant is required"))
		return
	}

	if err := h.tokens.Invalidate(r.Context(), tenant); err != nil {
		response.Error(w, r, err)
		return
	}

	response.NoContent(w)
}

// intParam reads a positive integer query parameter capped at max.
func intParam(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apierror.ValidationError("invalid query parameter",
			apierror.FieldError{Field: name, Message: "must be a positive integer"})
	}
	if n > max {
		n = max
	}
	return n, nil
}
