package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dsjohal14/segqueue/internal/queue"
)

// HandleStream serves one message at or after the "from" query parameter
// (a timestamp in milliseconds), blocking up to "timeout" seconds for one
// to become available. Each call opens and closes its own reader, so
// callers poll with from = the timestamp of the last message received + 1.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	from, err := parseInt64Param(r, "from", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be an integer", "INVALID_PARAM")
		return
	}
	timeoutSeconds, err := parseFloat64Param(r, "timeout", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timeout must be a number", "INVALID_PARAM")
		return
	}

	reader, err := h.q.MakeReader(from)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to open reader")
		writeStreamStatus(w, err)
		return
	}
	defer reader.Close()

	timeout := time.Duration(timeoutSeconds * float64(time.Second))
	ts, payload, err := reader.Read(timeout)
	if err != nil {
		writeStreamStatus(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StreamResponse{TimestampMs: ts, Payload: payload})
}

// writeStreamStatus maps a queue.Status to the status codes documented for
// GET /v1/stream: 204 when there is nothing at or after "from" yet to exist
// at all, 408 when the wait timed out with nothing new, 410 once the queue
// has been closed out from under a blocked read.
func writeStreamStatus(w http.ResponseWriter, err error) {
	kind, _ := queue.KindOf(err)
	switch kind {
	case queue.KindNotFound:
		writeError(w, http.StatusNoContent, err.Error(), "NOT_FOUND")
	case queue.KindInfeasible:
		writeError(w, http.StatusRequestTimeout, err.Error(), "INFEASIBLE")
	case queue.KindCanceled:
		writeError(w, http.StatusGone, err.Error(), "CANCELED")
	default:
		writeStatus(w, err)
	}
}

func parseInt64Param(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseFloat64Param(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}
