package api

import (
	"net/http"
)

// StatsProvider reports service counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	stats  StatsProvider
	models ModelManager
}

// NewStatsHandler creates a stats handler. models may be nil.
func NewStatsHandler(stats StatsProvider, models ModelManager) *StatsHandler {
	return &StatsHandler{stats: stats, models: models}
}

// HandleStats handles GET /stats requests. The active model version is
// included when one is published; store failures leave it out rather than
// failing the request.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out := make(map[string]interface{})
	for k, v := range h.stats.GetStats() {
		out[k] = v
	}
	if h.models != nil {
		if status, err := h.models.ModelStatus(r.Context()); err == nil && status.Active != nil {
			out["modelVersion"] = status.Active.Version
			out["modelVersions"] = len(status.Versions)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
