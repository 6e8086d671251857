// Package fabrica is the HTTP client for the Fabrica generation API: job
// submission, polling, artifact retrieval, and schema generation.
package fabrica

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kiranshivaraju/fabrica/pkg/models"
)

// Sentinel errors for Fabrica client failures.
var (
	ErrRequestFailed     = errors.New("fabrica request failed")
	ErrUnreachable       = errors.New("fabrica unreachable")
	ErrJobFailed         = errors.New("generation job failed")
	ErrJobTimeout        = errors.New("job polling timed out")
	ErrMalformedResponse = errors.New("malformed fabrica response")
)

const (
	defaultTimeout     = 30 * time.Second
	healthCheckTimeout = 3 * time.Second

	defaultPollAttempts = 60
	defaultPollInterval = time.Second

	defaultPreviewLimit = 100
)

// Client talks to the Fabrica API. All methods are bounded by the request
// timeout except DownloadFiles and GenerateSchema, which can legitimately
// run long and are bounded by the caller's context instead.
type Client struct {
	baseURL       string
	apiKey        string
	timeout       time.Duration
	healthTimeout time.Duration
	client        *http.Client
}

// NewClient creates a Fabrica API client. apiKey may be empty for
// unauthenticated deployments.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		timeout:       timeout,
		healthTimeout: healthCheckTimeout,
		client:        &http.Client{},
	}
}

// SubmitJob posts a schema configuration and returns the created job record.
func (c *Client) SubmitJob(ctx context.Context, doc *models.SchemaDocument) (*models.JobRecord, error) {
	var rec models.JobRecord
	if err := c.doJSON(ctx, http.MethodPost, "/jobs", map[string]any{"schema_config": doc}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetJobStatus fetches the current record for a job.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*models.JobRecord, error) {
	var rec models.JobRecord
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PollOptions tunes PollUntilComplete. Zero values select the defaults:
// 60 attempts, one second apart.
type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration

	// OnProgress, when set, is called once per poll with a best-effort
	// progress signal: the record's progress (or 0) and message (or status).
	OnProgress func(progress float64, message string)
}

// PollUntilComplete polls a job at a fixed cadence until it reaches a
// terminal status. SUCCESS returns the record; FAILURE returns ErrJobFailed
// carrying the record's error text; running out of attempts returns
// ErrJobTimeout. Transport errors propagate immediately, and ctx
// cancellation is honored at every wait.
func (c *Client) PollUntilComplete(ctx context.Context, jobID string, opts PollOptions) (*models.JobRecord, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultPollAttempts
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	lastStatus := models.JobStatusPending
	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := c.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		lastStatus = rec.Status

		if opts.OnProgress != nil {
			progress := 0.0
			if rec.Progress != nil {
				progress = *rec.Progress
			}
			message := rec.Status
			if rec.Message != nil {
				message = *rec.Message
			}
			opts.OnProgress(progress, message)
		}

		switch rec.Status {
		case models.JobStatusSuccess:
			return rec, nil
		case models.JobStatusFailure:
			if rec.Error != nil && *rec.Error != "" {
				return nil, fmt.Errorf("%w: %s", ErrJobFailed, *rec.Error)
			}
			return nil, fmt.Errorf("%w: job %s reported no error detail", ErrJobFailed, jobID)
		}

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: job %s still %s after %d attempts", ErrJobTimeout, jobID, lastStatus, maxAttempts)
}

// DownloadFiles opens a stream over the job's artifact bundle. The caller
// must close the returned reader.
func (c *Client) DownloadFiles(ctx context.Context, jobID string) (io.ReadCloser, error) {
	u := c.baseURL + "/jobs/" + url.PathEscape(jobID) + "/download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Status)
	}
	return resp.Body, nil
}

// DeleteJob removes a job and its artifacts from the server.
func (c *Client) DeleteJob(ctx context.Context, jobID string) (*models.DeleteResult, error) {
	var res models.DeleteResult
	if err := c.doJSON(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetJobData fetches a row preview for a completed job. limit <= 0 selects
// the default of 100 rows per table.
func (c *Client) GetJobData(ctx context.Context, jobID string, limit int) (*models.JobData, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	path := "/jobs/" + url.PathEscape(jobID) + "/data?limit=" + strconv.Itoa(limit)

	var data models.JobData
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CompletedJobs lists jobs that have finished, most recent first.
func (c *Client) CompletedJobs(ctx context.Context) ([]models.JobSummary, error) {
	var resp struct {
		Jobs []models.JobSummary `json:"jobs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/completed", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Jobs == nil {
		return []models.JobSummary{}, nil
	}
	return resp.Jobs, nil
}

// CheckHealth probes the API root with a short timeout. It never returns an
// error: unreachable, slow, or unhealthy all report false.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// GetLLMConfig reads the server's generator model configuration.
func (c *Client) GetLLMConfig(ctx context.Context) (*models.LLMConfig, error) {
	var cfg models.LLMConfig
	if err := c.doJSON(ctx, http.MethodGet, "/config/llm", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateLLMConfig replaces the server's generator model configuration.
func (c *Client) UpdateLLMConfig(ctx context.Context, cfg *models.LLMConfig) (*models.LLMConfig, error) {
	var updated models.LLMConfig
	if err := c.doJSON(ctx, http.MethodPut, "/config/llm", cfg, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListTemplates lists the server's starter schemas.
func (c *Client) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var resp struct {
		Templates []models.Template `json:"templates"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/templates", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Templates == nil {
		return []models.Template{}, nil
	}
	return resp.Templates, nil
}

// doJSON performs one bounded JSON round trip: marshal body (if any), apply
// the request timeout, check for a 2xx status, decode into out (if any).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", ErrRequestFailed, resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyError maps transport-level errors to sentinel errors. Context
// cancellation and deadlines pass through untouched so callers can
// distinguish their own cancellation from an unreachable server.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
