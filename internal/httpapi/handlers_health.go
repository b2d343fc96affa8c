package httpapi

import "net/http"

// HandleHealth reports liveness and the newest timestamp written so far.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:          "healthy",
		NewestTimestamp: h.q.GetTimestamp(),
	}
	writeJSON(w, http.StatusOK, resp)
}
