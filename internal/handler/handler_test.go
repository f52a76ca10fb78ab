package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/logging"
	"bling-mirror/internal/model"
	"bling-mirror/internal/service"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeRunner struct {
	runID      string
	triggerErr error
	running    bool
	runs       []model.SyncRun
	historyErr error
	gotLimit   int
	triggers   []string
}

func (f *fakeRunner) Trigger(trigger string) (string, error) {
	f.triggers = append(f.triggers, trigger)
	return f.runID, f.triggerErr
}

func (f *fakeRunner) Running() bool { return f.running }

func (f *fakeRunner) History(_ context.Context, limit int) ([]model.SyncRun, error) {
	f.gotLimit = limit
	return f.runs, f.historyErr
}

type fakeInvalidator struct {
	tenants []string
	err     error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, tenant string) error {
	f.tenants = append(f.tenants, tenant)
	return f.err
}

type fakeReader struct {
	recs []model.ReceivableRecord
	err  error
}

func (f fakeReader) Stored(context.Context) ([]model.ReceivableRecord, error) { return f.recs, f.err }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		cache      Pinger
		wantStatus int
		wantReady  bool
	}{
		{"all ok", fakePinger{}, fakePinger{}, http.StatusOK, true},
		{"memory cache", fakePinger{}, nil, http.StatusOK, true},
		{"store down", fakePinger{err: errors.New("dial tcp")}, nil, http.StatusServiceUnavailable, false},
		{"redis down", fakePinger{}, fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New("bling-mirror", "1.0.0", tt.store, tt.cache, nil)
			rec := httptest.NewRecorder()
			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decodeBody(t, rec)
			var resp ReadyResponse
			require.NoError(t, json.Unmarshal(env.Data, &resp))
			assert.Equal(t, tt.wantReady, resp.Ready)
		})
	}
}

func TestStatus_ReportsSyncRunning(t *testing.T) {
	h := New("bling-mirror", "1.0.0", fakePinger{}, nil, &fakeRunner{running: true})
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "bling-mirror", resp.Service)
	assert.True(t, resp.Checks.SyncRunning)
}

func TestTriggerSync(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		runner := &fakeRunner{runID: "run-1"}
		rec := httptest.NewRecorder()
		NewSyncHandler(runner, nil).TriggerSync(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync", nil))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
		assert.Equal(t, []string{service.TriggerManual}, runner.triggers)
	})

	t.Run("already running", func(t *testing.T) {
		runner := &fakeRunner{triggerErr: service.ErrCycleRunning}
		rec := httptest.NewRecorder()
		NewSyncHandler(runner, nil).TriggerSync(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync", nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
		env := decodeBody(t, rec)
		require.NotNil(t, env.Error)
		assert.Equal(t, "CONFLICT", env.Error.Code)
	})
}

func TestListRuns(t *testing.T) {
	runner := &fakeRunner{runs: []model.SyncRun{{RunID: "r1", Entity: model.EntitySellers, Outcome: model.OutcomeSynced}}}
	h := NewSyncHandler(runner, nil)

	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/runs?limit=5000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, runner.gotLimit)
	assert.Contains(t, rec.Body.String(), `"entity":"sellers"`)

	rec = httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/runs?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	runner.historyErr = errors.New("boom")
	rec = httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 50, runner.gotLimit)

	runner.historyErr = bling.NewError(bling.KindPersistence, "find sync runs", 0, errors.New("closed"))
	rec = httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInvalidateToken(t *testing.T) {
	inv := &fakeInvalidator{}
	r := chi.NewRouter()
	r.Delete("/token/{tenant}", NewSyncHandler(&fakeRunner{}, inv).InvalidateToken)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/token/lojaodositio", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"lojaodositio"}, inv.tenants)

	inv.err = bling.NewError(bling.KindPersistence, "invalidate token", 0, errors.New("redis down"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/token/lojaodositio", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func sampleRecords(n int) []model.ReceivableRecord {
	recs := make([]model.ReceivableRecord, n)
	for i := range recs {
		emissao := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
		recs[i] = model.ReceivableRecord{CRParcelaID: int64(i + 1), CREmissao: &emissao}
	}
	return recs
}

func TestReceivablesList_Paginates(t *testing.T) {
	h := NewReceivablesHandler(fakeReader{recs: sampleRecords(5)}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/receivables?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeBody(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(5), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.Page)

	var got []model.ReceivableRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].CRParcelaID)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/receivables?page=9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestReceivablesExportCSV(t *testing.T) {
	h := NewReceivablesHandler(fakeReader{recs: sampleRecords(2)}, service.NewReceivablesReport(time.UTC))

	rec := httptest.NewRecorder()
	h.ExportCSV(rec, httptest.NewRequest(http.MethodGet, "/api/v1/receivables/export.csv?columns=CRParcelaID,CREmissao", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, []string{"CRParcelaID,CREmissao", "1,2024-02-20", "2,2024-02-20"}, lines)

	rec = httptest.NewRecorder()
	h.ExportCSV(rec, httptest.NewRequest(http.MethodGet, "/api/v1/receivables/export.csv?columns=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewReceivablesHandler(fakeReader{err: errors.New("down")}, nil).
		ExportCSV(rec, httptest.NewRequest(http.MethodGet, "/api/v1/receivables/export.csv", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReceivables_StoreFailureIs503(t *testing.T) {
	storeErr := bling.NewError(bling.KindPersistence, "find receivables", 0, errors.New("server selection timeout"))
	h := NewReceivablesHandler(fakeReader{err: storeErr}, nil)

	for _, path := range []string{"/api/v1/receivables", "/api/v1/receivables/export.csv"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req = req.WithContext(logging.WithRequestID(req.Context(), "req-42"))
			rec := httptest.NewRecorder()
			if strings.HasSuffix(path, ".csv") {
				h.ExportCSV(rec, req)
			} else {
				h.List(rec, req)
			}

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			assert.Contains(t, body, `"code":"STORE_UNAVAILABLE"`)
			assert.Contains(t, body, `"request_id":"req-42"`)
			assert.NotContains(t, body, "server selection timeout")
		})
	}
}
