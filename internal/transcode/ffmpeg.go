package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/shared"
)

const stderrTail = 512

// FFmpeg transcodes with a local ffmpeg binary. Each call spawns its own process.
type FFmpeg struct {
	bin    string
	logger *log.Logger
}

// NewFFmpeg creates a local transcoder. An empty bin resolves "ffmpeg" from PATH.
func NewFFmpeg(bin string, logger *log.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FFmpeg{bin: bin, logger: logger}
}

func (f *FFmpeg) Name() string {
	return "local"
}

// OutputPath swaps the extension of input for .mp3.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	if strings.EqualFold(ext, ".mp3") {
		return strings.TrimSuffix(input, ext) + ".out.mp3"
	}
	return strings.TrimSuffix(input, ext) + ".mp3"
}

// Args returns the ffmpeg argument list converting input to output.
func Args(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-vn",
		"-ar", strconv.Itoa(SampleRate),
		"-b:a", strconv.Itoa(Bitrate) + "k",
		"-f", OutputFormat,
		output,
	}
}

// Transcode runs ffmpeg and waits for it to exit. A zero exit status is success.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath string) (*Output, error) {
	out := OutputPath(inputPath)
	cmd := exec.CommandContext(ctx, f.bin, Args(inputPath, out)...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}

		f.logger.Warn("ffmpeg failed", "exit", code, "input", filepath.Base(inputPath))
		return nil, &TranscodeError{
			Strategy: f.Name(),
			ExitCode: code,
			Err:      fmt.Errorf("%w%s", err, tail(stderr.String())),
		}
	}

	f.logger.Debug("ffmpeg finished", "output", filepath.Base(out), "elapsed", time.Since(start).Round(time.Millisecond))
	return &Output{Path: out}, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return ": " + s
}
