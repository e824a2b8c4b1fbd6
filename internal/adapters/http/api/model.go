package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// maxRollbackBody bounds rollback requests, which only carry a version name.
const maxRollbackBody = 4 << 10

type rollbackRequest struct {
	Version string `json:"version"`
}

// ModelHandler handles model version requests.
type ModelHandler struct {
	deps    ModelManager
	maxBody int64
}

// NewModelHandler creates a new model handler. Rollback bodies are limited
// to maxBody or maxRollbackBody, whichever is smaller.
func NewModelHandler(deps ModelManager, maxBody int64) *ModelHandler {
	if maxBody <= 0 || maxBody > maxRollbackBody {
		maxBody = maxRollbackBody
	}
	return &ModelHandler{deps: deps, maxBody: maxBody}
}

// HandleGetModel handles GET /model requests.
func (h *ModelHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	status, err := h.deps.ModelStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleRollback handles POST /model/rollback requests.
func (h *ModelHandler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	const op = "api.rollback"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req rollbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Version) == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}

	if err := h.deps.Rollback(r.Context(), req.Version); err != nil {
		writeError(w, err)
		return
	}
	status, err := h.deps.ModelStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
