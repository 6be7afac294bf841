package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/delivery"
	"github.com/desertthunder/spotdown/internal/media"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/services"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/transcode"
)

// Fetcher streams a source's audio into a file chosen by dest.
type Fetcher interface {
	Fetch(ctx context.Context, address string, dest func(ext string) string) (*media.Fetched, error)
}

// Packager turns transcoder output into the delivered file.
type Packager interface {
	Package(ctx context.Context, ws *delivery.Workspace, ref *models.TrackRef, out *transcode.Output) (*models.DeliveredFile, error)
}

var (
	_ Fetcher  = (*media.Fetcher)(nil)
	_ Packager = (*delivery.Packager)(nil)
)

// PipelineOpts wires the stages of a [Pipeline].
type PipelineOpts struct {
	Resolver   services.MetadataResolver
	Locator    services.SourceLocator
	Fetcher    Fetcher
	Transcoder transcode.Transcoder
	Packager   Packager
	TempDir    string // Directory for transient artifacts
	Logger     *log.Logger
}

// Pipeline turns one catalog track id into a delivered MP3.
//
// Stages run strictly in order with no retries. Every run gets its own [delivery.Workspace],
// purged on success, failure and panic alike. A Pipeline holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	resolver   services.MetadataResolver
	locator    services.SourceLocator
	fetcher    Fetcher
	transcoder transcode.Transcoder
	packager   Packager
	tempDir    string
	logger     *log.Logger
}

// NewPipeline creates a pipeline from opts.
func NewPipeline(opts PipelineOpts) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		resolver:   opts.Resolver,
		locator:    opts.Locator,
		fetcher:    opts.Fetcher,
		transcoder: opts.Transcoder,
		packager:   opts.Packager,
		tempDir:    opts.TempDir,
		logger:     opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (p *Pipeline) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes the pipeline for trackID.
//
// The returned error is always a [*PipelineError].
func (p *Pipeline) Run(ctx context.Context, trackID string, progress chan<- ProgressUpdate) (file *models.DeliveredFile, err error) {
	logger := shared.WithLogger(p.logger, "track", trackID)

	var failure *PipelineError
	defer func() {
		if r := recover(); r != nil {
			file = nil
			failure = internalError(fmt.Errorf("panic: %v", r))
		}
		if failure != nil {
			logger.Error("pipeline failed", "kind", failure.Kind, "error", failure.Err)
			p.sendProgress(progress, failedUpdate(failure))
			err = failure
		}
	}()

	if p.resolver == nil || p.locator == nil || p.fetcher == nil || p.transcoder == nil || p.packager == nil {
		failure = internalError(fmt.Errorf("%w: pipeline stages not configured", shared.ErrServiceUnavailable))
		return nil, failure
	}

	p.sendProgress(progress, resolvingUpdate(trackID))
	ref, rerr := p.resolver.Resolve(ctx, trackID)
	if rerr != nil {
		failure = metadataError(rerr)
		return nil, failure
	}
	logger.Info("resolved", "title", ref.Title, "artist", ref.Artist)

	ws, werr := delivery.NewWorkspace(p.tempDir, trackID)
	if werr != nil {
		failure = internalError(werr)
		return nil, failure
	}
	logger = shared.WithLogger(logger, "run", ws.RunID())
	defer func() {
		if perr := ws.Purge(); perr != nil {
			logger.Warn("failed to purge artifacts", "error", perr)
		}
	}()

	p.sendProgress(progress, locatingUpdate(ref))
	candidate, lerr := p.locator.Search(ctx, ref.Title, ref.Artist)
	if lerr != nil {
		failure = locateError(lerr)
		return nil, failure
	}
	if candidate == nil {
		failure = noSourceError(fmt.Sprintf("%s - %s", ref.Artist, ref.Title))
		return nil, failure
	}
	logger.Info("located source", "address", candidate.Address, "title", candidate.Title)

	p.sendProgress(progress, fetchingUpdate(candidate))
	fetched, ferr := p.fetcher.Fetch(ctx, candidate.Address, ws.Path)
	if ferr != nil {
		failure = fetchError(ferr)
		return nil, failure
	}

	p.sendProgress(progress, transcodingUpdate(p.transcoder.Name()))
	out, terr := p.transcoder.Transcode(ctx, fetched.Path)
	if terr != nil {
		failure = transcodeError(terr)
		return nil, failure
	}

	p.sendProgress(progress, packagingUpdate())
	file, perr := p.packager.Package(ctx, ws, ref, out)
	if perr != nil {
		failure = internalError(perr)
		return nil, failure
	}

	logger.Info("delivered", "file", file.FileName)
	p.sendProgress(progress, doneUpdate(file))
	return file, nil
}

// PipelineDownloader runs downloads in process.
type PipelineDownloader struct {
	Pipeline *Pipeline
	Progress chan<- ProgressUpdate
}

// Download implements [Downloader].
func (d PipelineDownloader) Download(ctx context.Context, trackID string) (*models.DeliveredFile, error) {
	return d.Pipeline.Run(ctx, trackID, d.Progress)
}
