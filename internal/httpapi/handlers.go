package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dsjohal14/segqueue/internal/queue"
)

// Handler contains the HTTP handlers for a single queue.
type Handler struct {
	q      *queue.Queue
	logger zerolog.Logger
}

// NewHandler creates a new HTTP handler over q.
func NewHandler(q *queue.Queue, logger zerolog.Logger) *Handler {
	return &Handler{q: q, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeStatus maps a queue.Status to an HTTP response, using the Kind to
// pick both the status code and a stable error code string for clients.
func writeStatus(w http.ResponseWriter, err error) {
	kind, _ := queue.KindOf(err)
	switch kind {
	case queue.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case queue.KindInfeasible:
		writeError(w, http.StatusRequestTimeout, err.Error(), "INFEASIBLE")
	case queue.KindCanceled:
		writeError(w, http.StatusServiceUnavailable, err.Error(), "CANCELED")
	case queue.KindPrecondition:
		writeError(w, http.StatusConflict, err.Error(), "PRECONDITION_ERROR")
	case queue.KindBrokenData:
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "BROKEN_DATA")
	case queue.KindApplication:
		writeError(w, http.StatusBadRequest, err.Error(), "APPLICATION_ERROR")
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "SYSTEM_ERROR")
	}
}
