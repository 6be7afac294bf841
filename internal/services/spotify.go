// Spotify Web API implementation of [MetadataResolver] and [CatalogReader]
//
// Built on github.com/zmb3/spotify/v2; response types are documented at https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const spotifyBaseURL = "https://api.spotify.com/v1/"

// SpotifyService resolves catalog metadata.
//
// A fresh access token is requested from the [TokenProvider] on every call and never stored.
type SpotifyService struct {
	tokens     TokenProvider
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyService creates a catalog client. An empty apiURL selects the public Spotify API.
func NewSpotifyService(tokens TokenProvider, apiURL string, logger *log.Logger) *SpotifyService {
	if apiURL == "" {
		apiURL = spotifyBaseURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyService{tokens: tokens, baseURL: apiURL, logger: logger}
}

// SetHTTPClient sets the transport used beneath the OAuth2 client.
func (s *SpotifyService) SetHTTPClient(c *http.Client) {
	s.httpClient = c
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// client builds a per-call catalog client authorized with a freshly issued token.
func (s *SpotifyService) client(ctx context.Context) (*spotify.Client, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, statusClient(s.httpClient))
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	return spotify.New(httpClient, spotify.WithBaseURL(s.baseURL)), nil
}

// Resolve looks up a single track by id.
//
// Errors wrap [shared.ErrInvalidReference] for malformed ids, [shared.ErrTrackNotFound] when the catalog has no such track,
// [shared.ErrAuthFailed] for credential failures and [shared.ErrAPIRequest] for everything else.
func (s *SpotifyService) Resolve(ctx context.Context, trackID string) (*models.TrackRef, error) {
	if !models.ValidTrackID(trackID) {
		return nil, fmt.Errorf("%w: malformed track id %q", shared.ErrInvalidReference, trackID)
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	track, err := client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return nil, classifySpotifyError(err, shared.ErrTrackNotFound, "track "+trackID)
	}

	ref := trackRef(track.SimpleTrack, track.Album)
	if ref.Title == "" || ref.Artist == "" {
		return nil, fmt.Errorf("%w: track %s has no title or artist", shared.ErrAPIRequest, trackID)
	}

	s.logger.Debug("resolved track", "id", ref.ID, "title", ref.Title, "artist", ref.Artist)
	return &ref, nil
}

// Collection loads a track, album or playlist with every page of tracks.
func (s *SpotifyService) Collection(ctx context.Context, ref models.Reference) (*models.Collection, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	switch ref.Kind {
	case models.KindTrack:
		return s.trackCollection(ctx, client, ref.ID)
	case models.KindAlbum:
		return s.albumCollection(ctx, client, ref.ID)
	case models.KindPlaylist:
		return s.playlistCollection(ctx, client, ref.ID)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", shared.ErrInvalidReference, ref.Kind)
	}
}

func (s *SpotifyService) trackCollection(ctx context.Context, client *spotify.Client, id string) (*models.Collection, error) {
	track, err := client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, classifySpotifyError(err, shared.ErrTrackNotFound, "track "+id)
	}

	t := trackRef(track.SimpleTrack, track.Album)
	return &models.Collection{
		Kind:     models.KindTrack,
		ID:       t.ID,
		Name:     t.Title,
		Owner:    t.Artist,
		ImageURL: t.ImageURL,
		Tracks:   []models.TrackRef{t},
	}, nil
}

func (s *SpotifyService) albumCollection(ctx context.Context, client *spotify.Client, id string) (*models.Collection, error) {
	album, err := client.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return nil, classifySpotifyError(err, shared.ErrNotFound, "album "+id)
	}

	c := &models.Collection{
		Kind:     models.KindAlbum,
		ID:       string(album.ID),
		Name:     album.Name,
		Owner:    joinArtists(album.Artists),
		ImageURL: firstImage(album.Images),
	}

	page := &album.Tracks
	for {
		for _, t := range page.Tracks {
			c.Tracks = append(c.Tracks, trackRef(t, album.SimpleAlbum))
		}

		err := client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, classifySpotifyError(err, shared.ErrNotFound, "album "+id)
		}
	}

	s.logger.Debug("loaded album", "id", c.ID, "tracks", len(c.Tracks))
	return c, nil
}

func (s *SpotifyService) playlistCollection(ctx context.Context, client *spotify.Client, id string) (*models.Collection, error) {
	playlist, err := client.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return nil, classifySpotifyError(err, shared.ErrNotFound, "playlist "+id)
	}

	c := &models.Collection{
		Kind:        models.KindPlaylist,
		ID:          string(playlist.ID),
		Name:        playlist.Name,
		Owner:       playlist.Owner.DisplayName,
		Description: playlist.Description,
		ImageURL:    firstImage(playlist.Images),
	}

	page := &playlist.Tracks
	for {
		for _, item := range page.Tracks {
			// local files and podcast episodes carry no catalog id
			if item.Track.ID == "" {
				continue
			}
			c.Tracks = append(c.Tracks, trackRef(item.Track.SimpleTrack, item.Track.Album))
		}

		err := client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, classifySpotifyError(err, shared.ErrNotFound, "playlist "+id)
		}
	}

	s.logger.Debug("loaded playlist", "id", c.ID, "tracks", len(c.Tracks))
	return c, nil
}

// statusClient copies base with a transport that keeps the HTTP status of every failed response visible to the
// Spotify client, which otherwise only reports statuses it finds in a JSON error body.
func statusClient(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	c := *base
	c.Transport = statusTransport{base: base.Transport}
	return &c
}

type statusTransport struct {
	base http.RoundTripper
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// RoundTrip rewrites non-2xx bodies that are not Spotify error objects into one carrying the response status.
func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read error response: %w", err)
	}

	var parsed spotifyErrorBody
	if json.Unmarshal(body, &parsed) != nil || parsed.Error.Status == 0 {
		parsed.Error.Status = resp.StatusCode
		parsed.Error.Message = strings.TrimSpace(string(body))
		if parsed.Error.Message == "" {
			parsed.Error.Message = http.StatusText(resp.StatusCode)
		}
		body, _ = json.Marshal(parsed)
		resp.Header.Set("Content-Type", "application/json")
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return resp, nil
}

func trackRef(t spotify.SimpleTrack, album spotify.SimpleAlbum) models.TrackRef {
	return models.TrackRef{
		ID:         string(t.ID),
		Title:      t.Name,
		Artist:     joinArtists(t.Artists),
		Album:      album.Name,
		DurationMS: int(t.Duration),
		ImageURL:   firstImage(album.Images),
	}
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// classifySpotifyError maps catalog failures onto shared sentinels. notFound is used for 400 and 404 responses.
func classifySpotifyError(err error, notFound error, what string) error {
	if errors.Is(err, shared.ErrAuthFailed) {
		return err
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusNotFound:
			return fmt.Errorf("%w: %s: %s", notFound, what, apiErr.Message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %s", shared.ErrAuthFailed, what, apiErr.Message)
		default:
			return fmt.Errorf("%w: %s: status %d: %s", shared.ErrAPIRequest, what, apiErr.Status, apiErr.Message)
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %w", shared.ErrAuthFailed, what, err)
	}

	return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, what, err)
}
