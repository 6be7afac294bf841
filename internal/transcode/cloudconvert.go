package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
)

const (
	defaultCloudConvertURL = "https://api.cloudconvert.com/v2"
	defaultPollInterval    = 2 * time.Second
	defaultMaxPolls        = 30

	taskImport  = "import-file"
	taskConvert = "convert-file"
	taskExport  = "export-file"
)

// CloudConvertOptions configures the remote strategy.
type CloudConvertOptions struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	HTTPClient   *http.Client
}

// CloudConvert transcodes through the CloudConvert v2 jobs API.
//
// A job is an import/upload task feeding a convert task feeding an export/url task.
// The result is a download URL that the packager retrieves.
type CloudConvert struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
	logger       *log.Logger
}

// NewCloudConvert creates a remote transcoder with defaults for unset options.
func NewCloudConvert(opts CloudConvertOptions, logger *log.Logger) *CloudConvert {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultCloudConvertURL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = defaultMaxPolls
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &CloudConvert{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		httpClient:   opts.HTTPClient,
		logger:       logger,
	}
}

func (c *CloudConvert) Name() string {
	return "remote"
}

type ccTask struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Result    *struct {
		Form *struct {
			URL        string                     `json:"url"`
			Parameters map[string]json.RawMessage `json:"parameters"`
		} `json:"form"`
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"files"`
	} `json:"result"`
}

type ccJob struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Tasks  []ccTask `json:"tasks"`
}

type ccEnvelope struct {
	Data ccJob `json:"data"`
}

func (j *ccJob) task(name string) *ccTask {
	for i := range j.Tasks {
		if j.Tasks[i].Name == name {
			return &j.Tasks[i]
		}
	}
	return nil
}

// jobStatus maps the provider's status vocabulary onto [models.JobStatus].
func jobStatus(s string) models.JobStatus {
	switch s {
	case "finished":
		return models.JobFinished
	case "error":
		return models.JobFailed
	case "processing":
		return models.JobProcessing
	default:
		return models.JobQueued
	}
}

func (j *ccJob) model() *models.ConversionJob {
	job := &models.ConversionJob{ID: j.ID, Status: jobStatus(j.Status)}

	if t := j.task(taskImport); t != nil && t.Result != nil && t.Result.Form != nil {
		job.Upload = models.UploadTarget{URL: t.Result.Form.URL, Fields: make(map[string]string)}
		for k, v := range t.Result.Form.Parameters {
			job.Upload.Fields[k] = formValue(v)
		}
	}

	if t := j.task(taskExport); t != nil {
		switch jobStatus(t.Status) {
		case models.JobFinished:
			if t.Result != nil && len(t.Result.Files) > 0 {
				job.ResultURL = t.Result.Files[0].URL
			}
		case models.JobFailed:
			job.Status = models.JobFailed
		}
	}
	return job
}

// formValue renders a signed form parameter exactly as issued: strings unquoted, numbers and literals verbatim.
func formValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func (c *CloudConvert) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("%w: cloudconvert error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("%w: cloudconvert error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreateJob submits the import, convert and export task graph.
func (c *CloudConvert) CreateJob(ctx context.Context) (*models.ConversionJob, error) {
	payload := map[string]any{
		"tasks": map[string]any{
			taskImport: map[string]any{
				"operation": "import/upload",
			},
			taskConvert: map[string]any{
				"operation":       "convert",
				"input":           taskImport,
				"output_format":   OutputFormat,
				"engine":          "ffmpeg",
				"audio_codec":     "mp3",
				"audio_bitrate":   Bitrate,
				"audio_frequency": SampleRate,
			},
			taskExport: map[string]any{
				"operation":              "export/url",
				"input":                  taskConvert,
				"inline":                 false,
				"archive_multiple_files": false,
			},
		},
	}

	var env ccEnvelope
	if err := c.doRequest(ctx, http.MethodPost, "/jobs", payload, &env); err != nil {
		return nil, err
	}

	job := env.Data.model()
	if job.Upload.URL == "" {
		return nil, fmt.Errorf("%w: job %s has no upload form", shared.ErrAPIRequest, job.ID)
	}
	return job, nil
}

// Upload streams the file at path to the job's upload form as a single multipart request.
func (c *CloudConvert) Upload(ctx context.Context, target models.UploadTarget, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		for k, v := range target.Fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("%w: upload failed: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: upload rejected: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return nil
}

// Job fetches the current state of a job.
func (c *CloudConvert) Job(ctx context.Context, id string) (*models.ConversionJob, error) {
	var env ccEnvelope
	if err := c.doRequest(ctx, http.MethodGet, "/jobs/"+id, nil, &env); err != nil {
		return nil, err
	}
	return env.Data.model(), nil
}

// Await polls the job every poll interval until the export task yields a file, the job fails or the budget runs out.
func (c *CloudConvert) Await(ctx context.Context, id string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", &TranscodeError{Strategy: c.Name(), Err: ctx.Err()}
		case <-ticker.C:
		}

		job, err := c.Job(ctx, id)
		if err != nil {
			return "", &TranscodeError{Strategy: c.Name(), Err: err}
		}

		c.logger.Debug("polled conversion", "job", id, "attempt", attempt, "status", job.Status)

		if job.ResultURL != "" {
			return job.ResultURL, nil
		}
		if job.Status == models.JobFailed {
			return "", &TranscodeError{Strategy: c.Name(), Err: fmt.Errorf("job %s: conversion failed", id)}
		}
	}

	return "", &TranscodeError{
		Strategy: c.Name(),
		Timeout:  true,
		Err:      fmt.Errorf("job %s: conversion timed out after %d polls", id, c.maxPolls),
	}
}

// Transcode runs the full remote flow for inputPath and returns the result URL.
func (c *CloudConvert) Transcode(ctx context.Context, inputPath string) (*Output, error) {
	job, err := c.CreateJob(ctx)
	if err != nil {
		return nil, &TranscodeError{Strategy: c.Name(), Err: err}
	}

	c.logger.Info("conversion job created", "job", job.ID)

	if err := c.Upload(ctx, job.Upload, inputPath); err != nil {
		return nil, &TranscodeError{Strategy: c.Name(), Err: err}
	}

	url, err := c.Await(ctx, job.ID)
	if err != nil {
		var te *TranscodeError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &TranscodeError{Strategy: c.Name(), Err: err}
	}

	c.logger.Info("conversion finished", "job", job.ID)
	return &Output{URL: url}, nil
}
