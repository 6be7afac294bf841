package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cheggaaa/pb/v3"
	"github.com/desertthunder/spotdown/internal/delivery"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/services"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/tasks"
	"github.com/urfave/cli/v3"
)

const barTemplate = `{{ string . "prefix" }} {{ counters . }} {{ bar . }} {{ percent . }} {{ string . "phase" }}`

// Download runs the pipeline for every track behind a reference and saves the delivered files.
//
// Tracks are launched one after another through a [tasks.Orchestrator], so a failed track does not stop the batch.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("ref")
	if input == "" {
		return fmt.Errorf("%w: a Spotify url, uri or track id is required", shared.ErrMissingArgument)
	}

	ref, err := models.ParseReference(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	name, tracks, err := r.batch(ctx, ref)
	if err != nil {
		return err
	}

	bar := r.newProgressBar(len(tracks), name)
	progress := make(chan tasks.ProgressUpdate, 16)
	go func() {
		for u := range progress {
			r.logger.Debug("pipeline", "phase", u.Phase, "step", u.Step, "message", u.Message)
			bar.Phase(u.Phase.String())
		}
	}()
	defer close(progress)

	downloader, err := r.downloader(ctx, cmd.String("remote"), progress)
	if err != nil {
		return err
	}

	outputDir := cmd.String("output-dir")
	if outputDir == "" {
		outputDir = r.config.Download.OutputDir
	}
	delay := cmd.Duration("delay")
	if delay == 0 {
		delay = r.config.Download.BulkDelay
	}

	orch := tasks.NewOrchestrator(tracks, tasks.OrchestratorOpts{
		Downloader: downloader,
		Saver:      delivery.DirSaver{Dir: outputDir},
		BulkDelay:  delay,
		OnChange: func(_ string, st models.TrackDownloadState) {
			if st.Status == models.StatusCompleted || st.Status == models.StatusError {
				bar.Increment()
			}
		},
		Logger: r.logger,
	})

	runErr := orch.DownloadAll(ctx)
	bar.Finish()

	snapshot := orch.Snapshot()
	if cmd.Bool("json") {
		if err := r.writeJSON(snapshot, true); err != nil {
			return err
		}
	} else {
		r.printSummary(outputDir, snapshot)
	}

	if runErr == nil {
		return nil
	}
	if len(tracks) == 1 {
		return runErr
	}

	failed := 0
	for _, tp := range snapshot {
		if tp.State.Status != models.StatusCompleted {
			failed++
		}
	}
	return fmt.Errorf("%d of %d tracks failed: %w", failed, len(tracks), runErr)
}

// batch lists the tracks to download. A track reference needs no catalog lookup.
func (r *Runner) batch(ctx context.Context, ref models.Reference) (string, []models.TrackRef, error) {
	if ref.Kind == models.KindTrack {
		return ref.ID, []models.TrackRef{{ID: ref.ID}}, nil
	}

	catalog, err := r.spotify()
	if err != nil {
		return "", nil, err
	}

	r.logger.Info("loading collection", "ref", ref.String())
	c, err := catalog.Collection(ctx, ref)
	if err != nil {
		return "", nil, err
	}
	if len(c.Tracks) == 0 {
		return "", nil, fmt.Errorf("%w: %s has no tracks", shared.ErrNotFound, ref.String())
	}
	return c.Name, c.Tracks, nil
}

// downloader returns a remote client when remote is set and the in-process pipeline otherwise.
func (r *Runner) downloader(ctx context.Context, remote string, progress chan<- tasks.ProgressUpdate) (tasks.Downloader, error) {
	if remote != "" {
		client := services.NewPipelineClient(remote, r.httpClient)
		if err := client.Health(ctx); err != nil {
			return nil, err
		}
		r.logger.Info("using remote pipeline", "server", remote)
		return client, nil
	}

	p, err := r.pipeline()
	if err != nil {
		return nil, err
	}
	return tasks.PipelineDownloader{Pipeline: p, Progress: progress}, nil
}

func (r *Runner) printSummary(dir string, snapshot []tasks.TrackProgress) {
	completed := 0
	for _, tp := range snapshot {
		label := tp.Track.ID
		if tp.Track.Title != "" {
			label = tp.Track.Artist + " - " + tp.Track.Title
		}

		switch tp.State.Status {
		case models.StatusCompleted:
			completed++
			r.writePlain("✓ %s\n", label)
		case models.StatusError:
			r.writePlain("✗ %s: %s\n", label, tp.State.Message)
		default:
			r.writePlain("- %s: skipped\n", label)
		}
	}
	r.writePlainln("%d of %d saved to %s", completed, len(snapshot), dir)
}

// progressBar draws batch progress on a terminal and does nothing otherwise.
type progressBar struct {
	bar *pb.ProgressBar
}

func (r *Runner) newProgressBar(total int, prefix string) *progressBar {
	if !r.progress {
		return &progressBar{}
	}

	bar := pb.New(total)
	bar.SetTemplateString(barTemplate)
	bar.SetWriter(r.output)
	bar.Set("prefix", truncate(prefix, 32))
	bar.Start()
	return &progressBar{bar: bar}
}

func (p *progressBar) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progressBar) Phase(phase string) {
	if p.bar != nil {
		p.bar.Set("phase", phase)
	}
}

func (p *progressBar) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
