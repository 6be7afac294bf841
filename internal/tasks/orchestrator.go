package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultBulkDelay spaces the launches of [Orchestrator.DownloadAll].
const DefaultBulkDelay = 300 * time.Millisecond

// Downloader produces the MP3 for a track id.
type Downloader interface {
	Download(ctx context.Context, trackID string) (*models.DeliveredFile, error)
}

// Saver persists a delivered file and returns where it went.
type Saver interface {
	Save(ctx context.Context, file *models.DeliveredFile) (string, error)
}

// OrchestratorOpts configures an [Orchestrator].
type OrchestratorOpts struct {
	Downloader Downloader
	Saver      Saver         // Optional; nil discards delivered files
	BulkDelay  time.Duration // Spacing between bulk launches (default: 300ms)
	OnChange   func(trackID string, state models.TrackDownloadState)
	Logger     *log.Logger
}

// TrackProgress pairs a track with its current state.
type TrackProgress struct {
	Track models.TrackRef          `json:"track"`
	State models.TrackDownloadState `json:"state"`
}

// Orchestrator tracks the download state of every track in one batch.
//
// States start idle. A track that is downloading or completed is never launched again.
// Failed tracks keep their message and may be retried with [Orchestrator.Download].
type Orchestrator struct {
	mu     sync.Mutex
	tracks []models.TrackRef
	states map[string]*models.TrackDownloadState
	bulk   bool

	downloader Downloader
	saver      Saver
	delay      time.Duration
	onChange   func(string, models.TrackDownloadState)
	logger     *log.Logger
}

// NewOrchestrator creates an orchestrator for tracks in their original order.
func NewOrchestrator(tracks []models.TrackRef, opts OrchestratorOpts) *Orchestrator {
	if opts.BulkDelay == 0 {
		opts.BulkDelay = DefaultBulkDelay
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	states := make(map[string]*models.TrackDownloadState, len(tracks))
	for _, t := range tracks {
		states[t.ID] = &models.TrackDownloadState{Status: models.StatusIdle}
	}

	return &Orchestrator{
		tracks:     tracks,
		states:     states,
		downloader: opts.Downloader,
		saver:      opts.Saver,
		delay:      opts.BulkDelay,
		onChange:   opts.OnChange,
		logger:     opts.Logger,
	}
}

// update applies fn to the state of trackID under the lock and reports the result.
func (o *Orchestrator) update(trackID string, fn func(s *models.TrackDownloadState)) {
	o.mu.Lock()
	st := o.states[trackID]
	fn(st)
	snapshot := *st
	o.mu.Unlock()

	if o.onChange != nil {
		o.onChange(trackID, snapshot)
	}
}

// Download runs a single track.
//
// It returns nil without doing anything when the track is already downloading or completed.
func (o *Orchestrator) Download(ctx context.Context, trackID string) error {
	o.mu.Lock()
	st, ok := o.states[trackID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s is not part of this batch", shared.ErrTrackNotFound, trackID)
	}
	if st.Status == models.StatusDownloading || st.Status == models.StatusCompleted {
		o.mu.Unlock()
		return nil
	}
	st.Status, st.Progress, st.Message = models.StatusDownloading, 50, ""
	snapshot := *st
	o.mu.Unlock()

	if o.onChange != nil {
		o.onChange(trackID, snapshot)
	}

	err := o.run(ctx, trackID)
	if err != nil {
		o.logger.Error("download failed", "track", trackID, "error", err)
		o.update(trackID, func(s *models.TrackDownloadState) {
			s.Status, s.Progress, s.Message = models.StatusError, 0, err.Error()
		})
		return err
	}

	o.update(trackID, func(s *models.TrackDownloadState) {
		s.Status, s.Progress, s.Message = models.StatusCompleted, 100, ""
	})
	return nil
}

func (o *Orchestrator) run(ctx context.Context, trackID string) error {
	if o.downloader == nil {
		return fmt.Errorf("%w: no downloader configured", shared.ErrServiceUnavailable)
	}

	file, err := o.downloader.Download(ctx, trackID)
	if err != nil {
		return err
	}
	if o.saver == nil {
		return nil
	}

	path, err := o.saver.Save(ctx, file)
	if err != nil {
		return err
	}
	o.logger.Info("saved", "track", trackID, "path", path)
	return nil
}

// DownloadAll launches every idle track one after another, in batch order.
//
// Launches are spaced by the bulk delay. A call made while another is running returns nil immediately.
// Per-track failures are recorded in their state and returned joined.
func (o *Orchestrator) DownloadAll(ctx context.Context) error {
	o.mu.Lock()
	if o.bulk {
		o.mu.Unlock()
		return nil
	}
	o.bulk = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.bulk = false
		o.mu.Unlock()
	}()

	limiter := rate.NewLimiter(rate.Every(o.delay), 1)

	var errs []error
	for _, t := range o.tracks {
		if st, _ := o.State(t.ID); st.Status != models.StatusIdle {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := o.Download(ctx, t.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}

// State returns a copy of the state of trackID.
func (o *Orchestrator) State(trackID string) (models.TrackDownloadState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.states[trackID]
	if !ok {
		return models.TrackDownloadState{}, false
	}
	return *st, true
}

// Snapshot returns every track with its state, in batch order.
func (o *Orchestrator) Snapshot() []TrackProgress {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]TrackProgress, len(o.tracks))
	for i, t := range o.tracks {
		out[i] = TrackProgress{Track: t, State: *o.states[t.ID]}
	}
	return out
}

// Progress returns the percentage of tracks completed.
func (o *Orchestrator) Progress() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.states) == 0 {
		return 0
	}

	completed := 0
	for _, st := range o.states {
		if st.Status == models.StatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(o.states)) * 100
}

// BulkInProgress reports whether [Orchestrator.DownloadAll] is running.
func (o *Orchestrator) BulkInProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bulk
}

// Tracks returns the batch in its original order.
func (o *Orchestrator) Tracks() []models.TrackRef {
	return o.tracks
}
