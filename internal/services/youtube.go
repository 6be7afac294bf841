// YouTube Music implementation of [SourceLocator]
//
// Communicates with the FastAPI proxy server running on port 8080.
// The proxy wraps the ytmusicapi Python library for YouTube Music search.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
)

const (
	defaultYTBaseURL string = "http://localhost:8080"
	watchURLPrefix   string = "https://www.youtube.com/watch?v="
)

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeSearchResult is a single entry of the proxy's search response.
type YouTubeSearchResult struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	ResultType  string          `json:"resultType"`
}

// YouTubeService locates media sources through the YouTube Music proxy.
type YouTubeService struct {
	baseURL    string
	filter     string
	httpClient *http.Client
	logger     *log.Logger
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string, logger *log.Logger) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		filter:     "videos",
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	apiURL := y.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube music API error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube music API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// Search finds a playable source for the track, taking the provider's first result as-is.
//
// Calls GET /api/search?q={title} {artist}&filter=videos on the proxy. Zero results yield (nil, nil).
func (y *YouTubeService) Search(ctx context.Context, title, artist string) (*models.SourceCandidate, error) {
	query := strings.TrimSpace(fmt.Sprintf("%s %s", title, artist))
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=%s", url.QueryEscape(query), y.filter)

	var results []YouTubeSearchResult
	if err := y.doRequest(ctx, http.MethodGet, endpoint, &results); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.VideoID == "" {
			continue
		}

		candidate := &models.SourceCandidate{
			Address:       watchURLPrefix + r.VideoID,
			Title:         r.Title,
			DurationLabel: r.Duration,
		}
		if len(r.Artists) > 0 {
			candidate.Author = r.Artists[0].Name
		}

		y.logger.Debug("source located", "query", query, "address", candidate.Address)
		return candidate, nil
	}

	y.logger.Debug("no source located", "query", query, "results", len(results))
	return nil, nil
}
