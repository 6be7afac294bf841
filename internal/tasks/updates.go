package tasks

import (
	"fmt"

	"github.com/desertthunder/spotdown/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number
	Total   int    // Total steps in a run
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline phase enumeration
type Phase int

const (
	ResolvingMetadata Phase = iota
	LocatingSource
	Fetching
	Transcoding
	Packaging
	Done
	Failed
)

// totalSteps counts the working phases of a run.
const totalSteps = int(Done)

func (p Phase) String() string {
	switch p {
	case ResolvingMetadata:
		return "resolving_metadata"
	case LocatingSource:
		return "locating_source"
	case Fetching:
		return "fetching"
	case Transcoding:
		return "transcoding"
	case Packaging:
		return "packaging"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether no further phase follows.
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}

func resolvingUpdate(trackID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvingMetadata,
		Step:    1,
		Total:   totalSteps,
		Message: fmt.Sprintf("Resolving track %s...", trackID),
	}
}

func locatingUpdate(ref *models.TrackRef) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LocatingSource,
		Step:    2,
		Total:   totalSteps,
		Message: fmt.Sprintf("Searching for %s by %s...", ref.Title, ref.Artist),
		Data:    ref,
	}
}

func fetchingUpdate(candidate *models.SourceCandidate) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetching,
		Step:    3,
		Total:   totalSteps,
		Message: fmt.Sprintf("Downloading %s...", candidate.Address),
		Data:    candidate,
	}
}

func transcodingUpdate(strategy string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Transcoding,
		Step:    4,
		Total:   totalSteps,
		Message: fmt.Sprintf("Converting to mp3 (%s)...", strategy),
	}
}

func packagingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Packaging,
		Step:    5,
		Total:   totalSteps,
		Message: "Packaging mp3...",
	}
}

func doneUpdate(file *models.DeliveredFile) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    totalSteps,
		Total:   totalSteps,
		Message: fmt.Sprintf("Delivered %s", file.FileName),
		Data:    file,
	}
}

func failedUpdate(err *PipelineError) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Total:   totalSteps,
		Message: err.Message,
		Data:    err,
	}
}
