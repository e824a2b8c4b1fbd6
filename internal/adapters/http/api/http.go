// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/adapters/repository"
	"github.com/okian/jobfit/internal/domain/artifact"
	"github.com/okian/jobfit/internal/domain/model"
)

const defaultMaxUploadBytes = 32 << 20

// Predictor ranks job roles for a candidate.
type Predictor interface {
	Predict(ctx context.Context, profile model.CandidateProfile, topK int) (model.PredictionResult, error)
}

// Retrainer runs and tracks retraining.
type Retrainer interface {
	Retrain(ctx context.Context, src model.DatasetSource) (artifact.Manifest, error)
	SubmitRetrain(ctx context.Context, src model.DatasetSource, idempotencyKey string) (model.JobInfo, error)
	Job(id string) (model.JobInfo, error)
}

// ModelManager exposes the stored model versions.
type ModelManager interface {
	ModelStatus(ctx context.Context) (repository.Status, error)
	Rollback(ctx context.Context, version string) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Predictor
	Retrainer
	ModelManager
}

// ObjectSource resolves an object key in the configured bucket.
type ObjectSource func(key string) (model.DatasetSource, error)

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes bounds request bodies, including dataset uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithObjectSource enables retraining from object storage keys.
func WithObjectSource(src ObjectSource) Option {
	return func(s *Server) {
		s.objects = src
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler
	retrainHandler *RetrainHandler
	modelHandler   *ModelHandler

	maxUploadBytes int64
	objects        ObjectSource
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider, deps)
	s.predictHandler = NewPredictHandler(deps, s.maxUploadBytes)
	s.retrainHandler = NewRetrainHandler(deps, s.maxUploadBytes, s.objects)
	s.modelHandler = NewModelHandler(deps, s.maxUploadBytes)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/retrain", MetricsMiddleware(s.retrainHandler.HandleRetrain, "retrain"))
	mux.HandleFunc("/retrain/", MetricsMiddleware(s.retrainHandler.HandleGetJob, "retrain_job"))
	mux.HandleFunc("/model", MetricsMiddleware(s.modelHandler.HandleGetModel, "model"))
	mux.HandleFunc("/model/rollback", MetricsMiddleware(s.modelHandler.HandleRollback, "model_rollback"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Column names the dataset column a schema error is about.
	Column string `json:"column,omitempty"`
	Row    int    `json:"row,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status and code matching err's kind.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := errorResponse{Code: code, Message: http.StatusText(status)}
	if err != nil {
		resp.Message = err.Error()
	}
	var sve *dataset.SchemaValidationError
	if errors.As(err, &sve) {
		resp.Column = sve.Column
		resp.Row = sve.Row
	}
	writeJSON(w, status, resp)
}
