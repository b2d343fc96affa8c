package httpapi

import (
	"encoding/json"
	"net/http"
)

// HandleWrite appends one message to the queue.
func (h *Handler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid write request")
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}

	ts := int64(-1)
	if req.TimestampMs != nil {
		ts = *req.TimestampMs
	}

	effectiveTS, err := h.q.Write(ts, req.Payload)
	if err != nil {
		h.logger.Error().Err(err).Msg("write failed")
		writeStatus(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WriteResponse{TimestampMs: effectiveTS})
}
