// package media streams source audio from YouTube into local artifacts
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/kkdai/youtube/v2"
)

// VideoClient is the subset of [youtube.Client] the fetcher needs.
type VideoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

var _ VideoClient = (*youtube.Client)(nil)

// Fetched describes a stream written to disk.
type Fetched struct {
	Path     string
	Size     int64
	MimeType string
}

// Fetcher downloads the best audio stream of a video.
type Fetcher struct {
	client VideoClient
	logger *log.Logger
}

// NewFetcher creates a fetcher backed by [youtube.Client]. A nil httpClient uses [http.DefaultClient].
func NewFetcher(httpClient *http.Client, logger *log.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return NewFetcherWithClient(&youtube.Client{HTTPClient: httpClient}, logger)
}

// NewFetcherWithClient creates a fetcher on top of any [VideoClient].
func NewFetcherWithClient(client VideoClient, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch streams the audio of the video at address into the file named by dest.
//
// dest receives the container extension of the chosen format. The payload is copied straight to disk.
// A partially written file is left in place for the caller to purge. Every failure wraps [shared.ErrFetch].
func (f *Fetcher) Fetch(ctx context.Context, address string, dest func(ext string) string) (*Fetched, error) {
	video, err := f.client.GetVideoContext(ctx, address)
	if err != nil {
		return nil, wrapFetchError(err, "failed to load video")
	}

	format, err := SelectAudioFormat(video.Formats)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrFetch, video.ID, err)
	}

	stream, _, err := f.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, wrapFetchError(err, "failed to open stream")
	}
	defer stream.Close()

	path := dest(ExtensionFor(format.MimeType))
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %w", shared.ErrFetch, path, err)
	}

	written, copyErr := io.Copy(out, stream)
	closeErr := out.Close()
	if copyErr != nil {
		return nil, wrapFetchError(copyErr, "stream interrupted")
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: failed to close %s: %w", shared.ErrFetch, path, closeErr)
	}
	if written == 0 {
		return nil, fmt.Errorf("%w: empty stream for %s", shared.ErrFetch, video.ID)
	}

	f.logger.Info("fetched source",
		"video", video.ID,
		"itag", format.ItagNo,
		"mime", format.MimeType,
		"size", humanize.Bytes(uint64(written)),
	)

	return &Fetched{Path: path, Size: written, MimeType: format.MimeType}, nil
}

// SelectAudioFormat picks the audio-only format with the highest bitrate, falling back to any format that carries audio.
func SelectAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	var bestAudioOnly, bestWithAudio *youtube.Format

	for i := range formats {
		format := &formats[i]
		if format.AudioChannels == 0 && !strings.HasPrefix(format.MimeType, "audio/") {
			continue
		}

		if bestWithAudio == nil || bitrate(format) > bitrate(bestWithAudio) {
			bestWithAudio = format
		}

		if format.Width == 0 && format.Height == 0 && strings.HasPrefix(format.MimeType, "audio/") {
			if bestAudioOnly == nil || bitrate(format) > bitrate(bestAudioOnly) {
				bestAudioOnly = format
			}
		}
	}

	if bestAudioOnly != nil {
		return bestAudioOnly, nil
	}
	if bestWithAudio != nil {
		return bestWithAudio, nil
	}
	return nil, errors.New("no format carries audio")
}

// ExtensionFor maps a stream MIME type to a file extension.
func ExtensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/mp4":
		return "m4a"
	case "video/mp4":
		return "mp4"
	case "audio/mpeg":
		return "mp3"
	default:
		return "bin"
	}
}

func bitrate(f *youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}

func wrapFetchError(err error, context string) error {
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("%w: restricted content: %s: %w", shared.ErrFetch, context, err)
	}

	var statusErr *youtube.ErrPlayabiltyStatus
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: video unavailable: %s: %w", shared.ErrFetch, context, err)
	}

	return fmt.Errorf("%w: %s: %w", shared.ErrFetch, context, err)
}
