// API service for making HTTP requests to a spotdown server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/spotdown/internal/delivery"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
)

const defaultAPIBaseURL = "http://localhost:3000"

// APIService provides methods for making raw HTTP requests to the core API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the core API.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return a.do(req)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *APIService) do(req *http.Request) (*APIResponse, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// RemoteError is a pipeline failure reported by a server.
type RemoteError struct {
	Status  int
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
	}
	return e.Message
}

// Unwrap lets callers match [shared.ErrAPIRequest].
func (e *RemoteError) Unwrap() error {
	return shared.ErrAPIRequest
}

type downloadRequest struct {
	TrackID string `json:"trackId"`
}

type downloadResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	File    *struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	} `json:"file"`
}

// PipelineClient runs downloads on a remote server through POST /api/download.
type PipelineClient struct {
	api *APIService
}

// NewPipelineClient creates a client for the server at baseURL.
func NewPipelineClient(baseURL string, client *http.Client) *PipelineClient {
	return &PipelineClient{api: NewAPIService(baseURL, client)}
}

// Health checks that the server is reachable.
func (p *PipelineClient) Health(ctx context.Context) error {
	resp, err := p.api.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// Download requests the encoded form of the track's MP3 and decodes it.
func (p *PipelineClient) Download(ctx context.Context, trackID string) (*models.DeliveredFile, error) {
	body, err := json.Marshal(downloadRequest{TrackID: trackID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.api.Post(ctx, "/api/download?"+url.Values{"format": {"encoded"}}.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	var result downloadResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, &RemoteError{Status: resp.StatusCode, Message: string(resp.Body)}
	}

	if !result.Success || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &RemoteError{Status: resp.StatusCode, Kind: result.Kind, Message: msg}
	}

	if result.File == nil {
		return nil, &RemoteError{Status: resp.StatusCode, Message: "response carried no file"}
	}

	data, err := delivery.DecodePayload(result.File.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	return &models.DeliveredFile{
		FileName:    result.File.Name,
		ContentType: delivery.ContentTypeMP3,
		Data:        data,
	}, nil
}
