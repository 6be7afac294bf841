package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotdown/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

var spotifyScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-library-read",
}

// TokenProvider hands out a valid access credential for each catalog call.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// RefreshTokenProvider exchanges a long-lived refresh token for a fresh access token on every call.
type RefreshTokenProvider struct {
	config       *oauth2.Config
	refreshToken string
}

// NewRefreshTokenProvider builds a provider from the Spotify credentials map (see [shared.SpotifyConfig.Map]).
func NewRefreshTokenProvider(credentials map[string]string) (*RefreshTokenProvider, error) {
	config, err := spotifyOAuthConfig(credentials)
	if err != nil {
		return nil, err
	}

	refresh := credentials["refresh_token"]
	if refresh == "" {
		return nil, fmt.Errorf("%w: run `spotdown spotify auth` first", shared.ErrNoRefreshToken)
	}

	return &RefreshTokenProvider{config: config, refreshToken: refresh}, nil
}

// Token performs a refresh-token grant against the token endpoint.
func (p *RefreshTokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	seed := &oauth2.Token{RefreshToken: p.refreshToken}
	token, err := p.config.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// OAuthConfig returns the authorization code flow configuration used by the bootstrap command.
func (p *RefreshTokenProvider) OAuthConfig() *oauth2.Config {
	return p.config
}

// NewSpotifyOAuthConfig builds the authorization code flow configuration from the credentials map.
func NewSpotifyOAuthConfig(credentials map[string]string) (*oauth2.Config, error) {
	return spotifyOAuthConfig(credentials)
}

// AuthURL returns the consent page URL for the authorization code flow.
func AuthURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func spotifyOAuthConfig(credentials map[string]string) (*oauth2.Config, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	tokenURL := credentials["token_url"]
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyAuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}, nil
}
