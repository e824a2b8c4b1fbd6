package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/domain/artifact"
	"github.com/okian/jobfit/internal/domain/model"
)

// idempotencyKeyHeader lets clients resubmit an asynchronous retrain safely.
const idempotencyKeyHeader = "Idempotency-Key"

// retrainRequest selects an object storage dataset.
type retrainRequest struct {
	Object string `json:"object"`
}

type retrainResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Manifest artifact.Manifest `json:"manifest"`
}

// RetrainHandler handles retraining requests.
type RetrainHandler struct {
	deps    Retrainer
	maxBody int64
	objects ObjectSource
}

// NewRetrainHandler creates a new retrain handler. objects may be nil.
func NewRetrainHandler(deps Retrainer, maxBody int64, objects ObjectSource) *RetrainHandler {
	return &RetrainHandler{deps: deps, maxBody: maxBody, objects: objects}
}

// HandleRetrain handles POST /retrain requests.
//
// A JSON body {"object": key} trains from object storage; any other body is
// the CSV dataset itself. With ?wait=true the call blocks until the new
// model is published, otherwise a job is queued and 202 returned.
func (h *RetrainHandler) HandleRetrain(w http.ResponseWriter, r *http.Request) {
	const op = "api.retrain"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	wait := false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		wait = v
	}

	src, err := h.source(w, r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	if wait {
		manifest, err := h.deps.Retrain(r.Context(), src)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, retrainResponse{Status: string(model.JobSucceeded), Version: manifest.Version, Manifest: manifest})
		return
	}

	info, err := h.deps.SubmitRetrain(r.Context(), src, strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/retrain/"+info.ID)
	writeJSON(w, http.StatusAccepted, info)
}

// HandleGetJob handles GET /retrain/{job_id} requests.
func (h *RetrainHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/retrain/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	info, err := h.deps.Job(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *RetrainHandler) source(w http.ResponseWriter, r *http.Request) (model.DatasetSource, error) {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req retrainRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Object) == "" {
			return nil, errors.New("missing object")
		}
		if h.objects == nil {
			return nil, ErrNoObjectSource
		}
		return h.objects(req.Object)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty dataset upload")
	}
	return dataset.BytesSource{Name: uploadName(r), Data: data}, nil
}

func uploadName(r *http.Request) string {
	if name := r.Header.Get("X-Dataset-Name"); name != "" {
		return name
	}
	return "request"
}
