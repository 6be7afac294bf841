package ui

import (
	"github.com/desertthunder/spotdown/internal/models"
)

// collectionLoadedMsg carries the batch fetched from the catalog.
type collectionLoadedMsg struct {
	collection *models.Collection
	err        error
}

// stateChangedMsg reports a transition of one track.
type stateChangedMsg struct {
	trackID string
	state   models.TrackDownloadState
}

// downloadDoneMsg ends a single-track download started from the UI.
type downloadDoneMsg struct {
	trackID string
	err     error
}

// bulkDoneMsg ends a download-all sequence.
type bulkDoneMsg struct {
	err error
}
