package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/delivery"
	"github.com/desertthunder/spotdown/internal/media"
	"github.com/desertthunder/spotdown/internal/services"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/tasks"
	"github.com/desertthunder/spotdown/internal/transcode"
	"github.com/urfave/cli/v3"
)

// Catalog is the Spotify side of a download: metadata for single tracks and listings for batches.
type Catalog interface {
	services.MetadataResolver
	services.CatalogReader
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the configuration on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    Catalog
	locator    services.SourceLocator
	fetcher    tasks.Fetcher
	transcoder transcode.Transcoder
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	progress   bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    Catalog
	Locator    services.SourceLocator
	Fetcher    tasks.Fetcher
	Transcoder transcode.Transcoder
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Progress   bool // Draw progress bars for batch downloads
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		locator:    opts.Locator,
		fetcher:    opts.Fetcher,
		transcoder: opts.Transcoder,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		progress:   opts.Progress,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, downloadCommand, serveCommand, healthCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands and the collaborators they build afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// spotify returns the catalog, building a refresh-token backed Spotify client when none was injected.
func (r *Runner) spotify() (Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	creds := r.config.Credentials.Spotify
	tokens, err := services.NewRefreshTokenProvider(creds.Map())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}

	svc := services.NewSpotifyService(tokens, creds.APIURL, r.logger)
	svc.SetHTTPClient(r.httpClient)
	r.catalog = svc
	return svc, nil
}

func (r *Runner) youtube() services.SourceLocator {
	if r.locator == nil {
		r.locator = services.NewYouTubeService(r.config.Credentials.YouTube.ProxyURL, r.logger)
	}
	return r.locator
}

// pipeline assembles the in-process download pipeline for the configured transcoder strategy.
func (r *Runner) pipeline() (*tasks.Pipeline, error) {
	catalog, err := r.spotify()
	if err != nil {
		return nil, err
	}

	if r.transcoder == nil {
		t, err := transcode.New(r.config, r.logger)
		if err != nil {
			return nil, err
		}
		r.transcoder = t
	}
	if r.fetcher == nil {
		r.fetcher = media.NewFetcher(r.httpClient, r.logger)
	}

	return tasks.NewPipeline(tasks.PipelineOpts{
		Resolver:   catalog,
		Locator:    r.youtube(),
		Fetcher:    r.fetcher,
		Transcoder: r.transcoder,
		Packager:   delivery.NewPackager(r.httpClient, r.logger),
		TempDir:    r.config.Download.TempPath(),
		Logger:     r.logger,
	}), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
