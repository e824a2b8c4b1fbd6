package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/jobfit/internal/adapters/repository"
	"github.com/okian/jobfit/internal/domain/model"
)

// Outcome of a single request.
const (
	resultOK          = "ok"
	resultUnavailable = "unavailable"
	resultRejected    = "rejected"
	resultFailed      = "failed"
)

// errJobForgotten means the service evicted the job from its history.
var errJobForgotten = errors.New("job no longer tracked")

// client wraps http.Client for the service routes.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *client) do(ctx context.Context, method, path, contentType string, body []byte, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (c *client) health(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// predict returns the parsed ranking and the request outcome.
func (c *client) predict(ctx context.Context, p model.CandidateProfile, topK int) (model.PredictionResult, string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return model.PredictionResult{}, resultFailed, err
	}
	path := "/predict"
	if topK > 0 {
		path += "?top_k=" + strconv.Itoa(topK)
	}

	status, data, err := c.do(ctx, http.MethodPost, path, "application/json", body, nil)
	switch {
	case err != nil:
		return model.PredictionResult{}, resultFailed, err
	case status == http.StatusServiceUnavailable:
		return model.PredictionResult{}, resultUnavailable, nil
	case status != http.StatusOK:
		return model.PredictionResult{}, resultFailed, fmt.Errorf("predict: status %d: %s", status, data)
	}

	var result model.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.PredictionResult{}, resultFailed, fmt.Errorf("decode prediction: %w", err)
	}
	return result, resultOK, nil
}

// retrainWait uploads a dataset and blocks until it is published.
func (c *client) retrainWait(ctx context.Context, name string, data []byte) (string, error) {
	header := http.Header{"X-Dataset-Name": []string{name}}
	status, body, err := c.do(ctx, http.MethodPost, "/retrain?wait=true", "text/csv", data, header)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("retrain: status %d: %s", status, body)
	}
	var resp struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode retrain: %w", err)
	}
	return resp.Version, nil
}

// submitRetrain queues a dataset under an idempotency key.
func (c *client) submitRetrain(ctx context.Context, key, name string, data []byte) (model.JobInfo, string, error) {
	header := http.Header{
		"X-Dataset-Name":  []string{name},
		"Idempotency-Key": []string{key},
	}
	status, body, err := c.do(ctx, http.MethodPost, "/retrain", "text/csv", data, header)
	switch {
	case err != nil:
		return model.JobInfo{}, resultFailed, err
	case status == http.StatusTooManyRequests:
		return model.JobInfo{}, resultRejected, nil
	case status != http.StatusAccepted:
		return model.JobInfo{}, resultFailed, fmt.Errorf("submit retrain: status %d: %s", status, body)
	}
	var info model.JobInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return model.JobInfo{}, resultFailed, fmt.Errorf("decode job: %w", err)
	}
	return info, resultOK, nil
}

func (c *client) job(ctx context.Context, id string) (model.JobInfo, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/retrain/"+id, "", nil, nil)
	if err != nil {
		return model.JobInfo{}, err
	}
	if status == http.StatusNotFound {
		return model.JobInfo{}, errJobForgotten
	}
	if status != http.StatusOK {
		return model.JobInfo{}, fmt.Errorf("job %s: status %d", id, status)
	}
	var info model.JobInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return model.JobInfo{}, fmt.Errorf("decode job: %w", err)
	}
	return info, nil
}

func (c *client) modelStatus(ctx context.Context) (repository.Status, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/model", "", nil, nil)
	if err != nil {
		return repository.Status{}, err
	}
	if status != http.StatusOK {
		return repository.Status{}, fmt.Errorf("model: status %d", status)
	}
	var st repository.Status
	if err := json.Unmarshal(body, &st); err != nil {
		return repository.Status{}, fmt.Errorf("decode model status: %w", err)
	}
	return st, nil
}
