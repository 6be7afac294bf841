package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotdown/internal/delivery"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/tasks"
	"github.com/desertthunder/spotdown/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/spotdown-tui.log"

// TUI launches the interactive terminal UI for a collection.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("ref")
	if input == "" {
		return fmt.Errorf("%w: a Spotify url, uri or track id is required", shared.ErrMissingArgument)
	}

	ref, err := models.ParseReference(input)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	catalog, err := r.spotify()
	if err != nil {
		return err
	}

	downloader, err := r.downloader(ctx, cmd.String("remote"), nil)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ref, catalog, r.orchestratorFactory(downloader))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// orchestratorFactory builds batch orchestrators that save into the configured output directory.
func (r *Runner) orchestratorFactory(downloader tasks.Downloader) ui.OrchestratorFactory {
	return func(tracks []models.TrackRef, onChange func(string, models.TrackDownloadState)) *tasks.Orchestrator {
		return tasks.NewOrchestrator(tracks, tasks.OrchestratorOpts{
			Downloader: downloader,
			Saver:      delivery.DirSaver{Dir: r.config.Download.OutputDir},
			BulkDelay:  r.config.Download.BulkDelay,
			OnChange:   onChange,
			Logger:     r.logger,
		})
	}
}
