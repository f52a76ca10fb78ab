package response

import (
	"net/http"

	"github.com/goccy/go-json"

	"bling-mirror/internal/logging"
	"bling-mirror/pkg/apierror"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: true, Data: data})
}

// JSONWithMeta sends a JSON response with pagination metadata.
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, page, limit int, total int64) {
	write(w, statusCode, Response{
		Success: true,
		Data:    data,
		Meta:    &Meta{Page: page, Limit: limit, Total: total},
	})
}

// Page sends the page-th slice of limit items. A page past the end is empty.
func Page[T any](w http.ResponseWriter, items []T, page, limit int) {
	total := len(items)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]T, 0, end-start)
	out = append(out, items[start:end]...)
	JSONWithMeta(w, http.StatusOK, out, page, limit, int64(total))
}

func write(w http.ResponseWriter, statusCode int, v Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps err to an API error (see apierror.FromError), tags it with the
// request id and writes it. Server-side failures are logged with the cause.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.FromError(err)
	apiErr.RequestID = logging.RequestID(r.Context())

	if apiErr.StatusCode >= http.StatusInternalServerError {
		log := logging.Ctx(r.Context())
		log.Error().
			Err(err).
			Str("code", apiErr.Code).
			Str("kind", string(apiErr.Kind)).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_, _ = w.Write(apiErr.ToJSON())
}

// CSV sets the headers of a CSV attachment download.
func CSV(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Accepted sends a 202 Accepted response.
func Accepted(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusAccepted, data)
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}
