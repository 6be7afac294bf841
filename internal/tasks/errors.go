package tasks

import (
	"errors"
	"fmt"

	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/transcode"
)

// ErrorKind classifies a failed run for clients.
type ErrorKind string

const (
	KindInvalidReference    ErrorKind = "InvalidReference"
	KindMetadataUnavailable ErrorKind = "MetadataUnavailable"
	KindUpstream            ErrorKind = "UpstreamError"
	KindNoMatchingSource    ErrorKind = "NoMatchingSource"
	KindFetchFailed         ErrorKind = "FetchFailed"
	KindTranscodeFailed     ErrorKind = "TranscodeFailed"
	KindInternal            ErrorKind = "InternalError"
)

// PipelineError is the only error type [Pipeline.Run] returns.
//
// Message is safe to show to end users. Err keeps the stage error for logs and [errors.Is].
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a pipeline failure, or [KindInternal] for any other error.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func metadataError(err error) *PipelineError {
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		return &PipelineError{Kind: KindInvalidReference, Message: "track not found", Err: err}
	case errors.Is(err, shared.ErrInvalidReference):
		return &PipelineError{Kind: KindInvalidReference, Message: "invalid track reference", Err: err}
	default:
		return &PipelineError{Kind: KindMetadataUnavailable, Message: "could not load track details, try again later", Err: err}
	}
}

func locateError(err error) *PipelineError {
	return &PipelineError{Kind: KindUpstream, Message: "search provider unavailable, try again later", Err: err}
}

func noSourceError(ref string) *PipelineError {
	return &PipelineError{
		Kind:    KindNoMatchingSource,
		Message: "no source found for this track",
		Err:     fmt.Errorf("%w: no search results for %s", shared.ErrNotFound, ref),
	}
}

func fetchError(err error) *PipelineError {
	return &PipelineError{Kind: KindFetchFailed, Message: "could not download the source audio, try again later", Err: err}
}

func transcodeError(err error) *PipelineError {
	var te *transcode.TranscodeError
	if errors.As(err, &te) && te.Timeout {
		return &PipelineError{Kind: KindTranscodeFailed, Message: "conversion timed out", Err: err}
	}
	return &PipelineError{Kind: KindTranscodeFailed, Message: "conversion failed", Err: err}
}

func internalError(err error) *PipelineError {
	return &PipelineError{Kind: KindInternal, Message: "internal error", Err: err}
}
