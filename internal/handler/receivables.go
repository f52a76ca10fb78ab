package handler

import (
	"context"
	"net/http"
	"strings"

	"bling-mirror/internal/logging"
	"bling-mirror/internal/model"
	"bling-mirror/internal/service"
	"bling-mirror/pkg/apierror"
	"bling-mirror/pkg/response"
)

// ReceivableReader returns the persisted receivables.
type ReceivableReader interface {
	Stored(ctx context.Context) ([]model.ReceivableRecord, error)
}

// ReceivablesHandler serves the mirrored receivables.
type ReceivablesHandler struct {
	reader ReceivableReader
	report *service.ReceivablesReport
}

// NewReceivablesHandler creates a new receivables handler.
func NewReceivablesHandler(reader ReceivableReader, report *service.ReceivablesReport) *ReceivablesHandler {
	if report == nil {
		report = service.NewReceivablesReport(nil)
	}
	return &ReceivablesHandler{reader: reader, report: report}
}

// List handles GET /api/v1/receivables
func (h *ReceivablesHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1, 1<<20)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 100, 1000)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	recs, err := h.reader.Stored(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.Page(w, recs, page, limit)
}

// ExportCSV handles GET /api/v1/receivables/export.csv
func (h *ReceivablesHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var columns []string
	if raw := r.URL.Query().Get("columns"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				columns = append(columns, c)
			}
		}
		for _, c := range columns {
			if !service.IsReceivableColumn(c) {
				response.Error(w, r, apierror.ValidationError("unknown column",
					apierror.FieldError{Field: "columns", Message: c}))
				return
			}
		}
	}

	recs, err := h.reader.Stored(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.CSV(w, "receivables.csv")
	if err := h.report.WriteCSV(w, recs, columns); err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Int("rows", len(recs)).Msg("failed to write receivables CSV")
	}
}
