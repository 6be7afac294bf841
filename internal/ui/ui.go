package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/services"
	"github.com/desertthunder/spotdown/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	BatchView
)

// OrchestratorFactory builds the orchestrator for a loaded batch. onChange must be passed through to it.
type OrchestratorFactory func(tracks []models.TrackRef, onChange func(string, models.TrackDownloadState)) *tasks.Orchestrator

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	ref        models.Reference
	catalog    services.CatalogReader
	newOrch    OrchestratorFactory
	orch       *tasks.Orchestrator
	collection *models.Collection
	changes    chan stateChangedMsg
	width      int
	height     int
	trackList  list.Model
	spinner    spinner.Model
	progress   progress.Model
	status     string
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model for the collection behind ref.
func NewModel(ctx context.Context, ref models.Reference, catalog services.CatalogReader, newOrch OrchestratorFactory) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title

	return &Model{
		ctx:      ctx,
		view:     LoadingView,
		ref:      ref,
		catalog:  catalog,
		newOrch:  newOrch,
		changes:  make(chan stateChangedMsg, 64),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts loading the collection.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCollection(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		if m.view == BatchView {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && (m.view == LoadingView || m.trackList.FilterState() != list.Filtering) {
			return m, tea.Quit
		}
		if m.view == BatchView {
			return m.handleBatchKeys(msg)
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != LoadingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case collectionLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.loadBatch(msg.collection)
		return m, m.waitForChange()

	case stateChangedMsg:
		m.setState(msg.trackID, msg.state)
		return m, m.waitForChange()

	case downloadDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.trackID, msg.err)
		}
		return m, nil

	case bulkDoneMsg:
		m.status = m.summary()
		return m, nil
	}

	if m.view == BatchView {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case LoadingView:
		return fmt.Sprintf("%s Loading %s...\n", m.spinner.View(), m.ref.String())
	case BatchView:
		return m.renderBatch()
	default:
		return ""
	}
}

func (m *Model) handleBatchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.download):
		if item, ok := m.trackList.SelectedItem().(trackItem); ok {
			m.status = ""
			return m, m.download(item.track.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		if m.orch.BulkInProgress() {
			return m, nil
		}
		m.status = "Downloading all tracks..."
		return m, m.downloadAll()
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) loadBatch(c *models.Collection) {
	m.collection = c
	m.orch = m.newOrch(c.Tracks, m.onChange)

	snapshot := m.orch.Snapshot()
	items := make([]list.Item, len(snapshot))
	for i, tp := range snapshot {
		items[i] = trackItem{track: tp.Track, state: tp.State}
	}

	m.trackList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
	m.trackList.Title = c.Name
	m.trackList.Styles.Title = styles.title
	m.trackList.SetShowHelp(false)
	m.view = BatchView
}

// onChange is called from orchestrator goroutines.
func (m *Model) onChange(trackID string, state models.TrackDownloadState) {
	select {
	case m.changes <- stateChangedMsg{trackID: trackID, state: state}:
	case <-m.ctx.Done():
	}
}

func (m *Model) setState(trackID string, state models.TrackDownloadState) {
	for i, it := range m.trackList.Items() {
		if item, ok := it.(trackItem); ok && item.track.ID == trackID {
			item.state = state
			m.trackList.SetItem(i, item)
		}
	}
}

func (m *Model) summary() string {
	var completed, failed int
	for _, tp := range m.orch.Snapshot() {
		switch tp.State.Status {
		case models.StatusCompleted:
			completed++
		case models.StatusError:
			failed++
		}
	}
	return fmt.Sprintf("Done: %d saved, %d failed", completed, failed)
}

func (m *Model) fetchCollection() tea.Cmd {
	return func() tea.Msg {
		c, err := m.catalog.Collection(m.ctx, m.ref)
		return collectionLoadedMsg{collection: c, err: err}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.changes:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) download(trackID string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		return downloadDoneMsg{trackID: trackID, err: orch.Download(m.ctx, trackID)}
	}
}

func (m *Model) downloadAll() tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		return bulkDoneMsg{err: orch.DownloadAll(m.ctx)}
	}
}

func (m *Model) renderBatch() string {
	bar := m.progress.ViewAs(m.orch.Progress() / 100)

	status := ""
	if m.status != "" {
		status = "\n" + styles.help.Render(m.status)
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n\n%s%s\n\n%s", m.trackList.View(), bar, status, helpView)
}
