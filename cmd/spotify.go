package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/desertthunder/spotdown/internal/formatter"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/server"
	"github.com/desertthunder/spotdown/internal/services"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// SpotifyAuth performs the authorization code flow once and stores the refresh token.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrInvalidArgument, r.configPath)
	}

	oauthConfig, err := services.NewSpotifyOAuthConfig(creds.Map())
	if err != nil {
		return fmt.Errorf("failed to build Spotify OAuth config: %w", err)
	}

	token, err := r.doOAuth(ctx, config.Server.Addr(), oauthConfig)
	if err != nil {
		return err
	}

	if err := r.saveRefreshToken(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Refresh token saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: spotdown download <spotify url>\n")

	return nil
}

// saveRefreshToken writes token's refresh token into the config file.
//
// The file is re-read without environment overrides so secrets supplied through the environment stay out of it.
func (r *Runner) saveRefreshToken(token *oauth2.Token) error {
	stored := shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		if stored, err = shared.ReadConfigFile(r.configPath); err != nil {
			return err
		}
	}

	if err := stored.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, stored); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.config.Credentials.Spotify.RefreshToken = stored.Credentials.Spotify.RefreshToken
	return nil
}

// SpotifyShow prints the tracks behind a reference in the requested format.
func (r *Runner) SpotifyShow(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	outputFile := cmd.String("output")

	collection, err := r.collection(ctx, cmd.StringArg("ref"))
	if err != nil {
		return err
	}

	if outputFile != "" {
		if err := formatter.WriteExportFile(outputFile, collection, format); err != nil {
			return err
		}
		r.logger.Info("collection exported", "file", outputFile, "tracks", len(collection.Tracks))
		r.writePlain("✓ %s exported to %s\n", collection.Name, outputFile)
		return nil
	}

	return formatter.WriteExport(r.output, collection, format)
}

// collection parses input and loads its tracks from the catalog.
func (r *Runner) collection(ctx context.Context, input string) (*models.Collection, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: a Spotify url, uri or track id is required", shared.ErrMissingArgument)
	}

	ref, err := models.ParseReference(input)
	if err != nil {
		return nil, err
	}

	catalog, err := r.spotify()
	if err != nil {
		return nil, err
	}

	r.logger.Info("loading collection", "ref", ref.String())
	return catalog.Collection(ctx, ref)
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, addr string, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := services.AuthURL(oauthConfig, state)
	oauthHandler := server.NewOAuthHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serverCtx, stop := context.WithCancel(ctx)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", addr)
		serverErrors <- server.NewServer(addr, router, r.logger).Serve(serverCtx, ln)
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := openConsentPage(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	stop()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
