// Package transcode converts fetched source audio into 128 kbps, 44.1 kHz MP3.
//
// Exactly one strategy is active per deployment, chosen by the [transcoder] section of config.toml:
//   - [FFmpeg] runs a local ffmpeg process per call
//   - [CloudConvert] delegates to the CloudConvert v2 jobs API and polls for the result
//
// Every failure is a [*TranscodeError], which matches [shared.ErrTranscode] with errors.Is.
package transcode

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/shared"
)

const (
	Bitrate      = 128
	SampleRate   = 44100
	OutputFormat = "mp3"
)

// Output locates a transcoded artifact. Exactly one of Path and URL is set.
type Output struct {
	Path string
	URL  string
}

// Remote reports whether the artifact still has to be retrieved.
func (o *Output) Remote() bool {
	return o.URL != ""
}

// Transcoder converts the file at inputPath.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath string) (*Output, error)
	Name() string
}

// TranscodeError describes a failed conversion.
//
// ExitCode is the process exit status for the local strategy (-1 when the process never ran).
// Timeout is set when the remote strategy exhausted its poll budget.
type TranscodeError struct {
	Strategy string
	ExitCode int
	Timeout  bool
	Err      error
}

func (e *TranscodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s transcode", e.Strategy)
	switch {
	case e.Timeout:
		b.WriteString(" timed out")
	case e.ExitCode != 0:
		fmt.Fprintf(&b, " failed (exit %d)", e.ExitCode)
	default:
		b.WriteString(" failed")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TranscodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrTranscode}
	}
	return []error{shared.ErrTranscode, e.Err}
}

// New returns the strategy selected by cfg.
func New(cfg *shared.Config, logger *log.Logger) (Transcoder, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	switch cfg.Transcoder.Strategy {
	case shared.StrategyLocal, "":
		return NewFFmpeg(cfg.Transcoder.FFmpegPath, logger), nil
	case shared.StrategyRemote:
		cc := cfg.Credentials.CloudConvert
		if cc.APIKey == "" {
			return nil, fmt.Errorf("%w: cloudconvert api_key is required for the remote strategy", shared.ErrMissingCredentials)
		}
		return NewCloudConvert(CloudConvertOptions{
			APIKey:       cc.APIKey,
			BaseURL:      cc.BaseURL,
			PollInterval: cfg.Transcoder.PollInterval,
			MaxPolls:     cfg.Transcoder.MaxPolls,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown transcoder strategy %q", shared.ErrInvalidConfig, cfg.Transcoder.Strategy)
	}
}
