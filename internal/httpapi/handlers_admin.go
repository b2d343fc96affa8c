package httpapi

import (
	"encoding/json"
	"net/http"
)

// HandleSync forces a flush of any buffered writes.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
			return
		}
	}

	if err := h.q.Synchronize(req.Hard); err != nil {
		h.logger.Error().Err(err).Msg("sync failed")
		writeStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"synced": true})
}

// HandleRemoveSegments deletes sealed segments older than the "before"
// query parameter (a timestamp in milliseconds).
func (h *Handler) HandleRemoveSegments(w http.ResponseWriter, r *http.Request) {
	before, err := parseInt64Param(r, "before", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be an integer", "INVALID_PARAM")
		return
	}

	if err := h.q.Remove(before); err != nil {
		h.logger.Error().Err(err).Msg("segment removal failed")
		writeStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}
