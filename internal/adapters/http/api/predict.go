package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/okian/jobfit/internal/domain/model"
)

const maxTopK = 50

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps    Predictor
	maxBody int64
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Predictor, maxBody int64) *PredictHandler {
	return &PredictHandler{deps: deps, maxBody: maxBody}
}

// HandlePredict handles POST /predict requests. The body is a candidate
// profile; ?top_k= overrides the default ranking length.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 || k > maxTopK {
			writeError(w, NewKind(op, ErrBadRequest))
			return
		}
		topK = k
	}

	var profile model.CandidateProfile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&profile); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	result, err := h.deps.Predict(r.Context(), profile, topK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
