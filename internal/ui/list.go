package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.TrackRef] and its download state to implement [list.Item].
type trackItem struct {
	track models.TrackRef
	state models.TrackDownloadState
}

func (i trackItem) FilterValue() string { return i.track.Artist + " " + i.track.Title }
func (i trackItem) Title() string {
	return fmt.Sprintf("%s %s - %s", statusIcon(i.state.Status), i.track.Artist, i.track.Title)
}
func (i trackItem) Description() string {
	desc := shared.FormatDuration(i.track.DurationMS)
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}

	switch i.state.Status {
	case models.StatusDownloading:
		desc = fmt.Sprintf("%s • downloading…", desc)
	case models.StatusCompleted:
		desc = fmt.Sprintf("%s • saved", desc)
	case models.StatusError:
		desc = fmt.Sprintf("%s • %s", desc, styles.err.Render(i.state.Message))
	}
	return desc
}

func statusIcon(s models.DownloadStatus) string {
	switch s {
	case models.StatusDownloading:
		return styles.warn.Render("↓")
	case models.StatusCompleted:
		return styles.ok.Render("✓")
	case models.StatusError:
		return styles.err.Render("✗")
	default:
		return styles.help.Render("•")
	}
}
