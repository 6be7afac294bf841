// Package delivery turns a transcoded artifact into the named MP3 handed back to clients.
//
// A [Workspace] owns the transient files of one run. The [Packager] retrieves remote results into it,
// tags the MP3 and reads it into a [models.DeliveredFile]. [EncodePayload] and [DecodePayload] convert
// between bytes and the data URI form used by the encoded API response.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/transcode"
	"github.com/dustin/go-humanize"
)

const maxArtworkBytes = 5 << 20

var fileNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "'", "<", "_", ">", "_", "|", "_",
)

// FileName returns "<Artist> - <Title>.mp3" with characters that are unsafe in file names replaced.
func FileName(ref *models.TrackRef) string {
	name := fmt.Sprintf("%s - %s", ref.Artist, ref.Title)
	name = fileNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" || name == "-" {
		name = ref.ID
	}
	return name + ".mp3"
}

// Packager produces [models.DeliveredFile] values from transcoder output.
type Packager struct {
	httpClient *http.Client
	artwork    bool
	logger     *log.Logger
}

// NewPackager creates a packager. A nil httpClient uses [http.DefaultClient].
func NewPackager(httpClient *http.Client, logger *log.Logger) *Packager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Packager{httpClient: httpClient, artwork: true, logger: logger}
}

// SetArtwork toggles embedding the album cover.
func (p *Packager) SetArtwork(enabled bool) {
	p.artwork = enabled
}

// Package retrieves a remote output into ws when needed, tags it and reads the bytes.
//
// Tagging failures are logged and do not fail the run.
func (p *Packager) Package(ctx context.Context, ws *Workspace, ref *models.TrackRef, out *transcode.Output) (*models.DeliveredFile, error) {
	path := out.Path
	if out.Remote() {
		path = ws.Path("mp3")
		if err := p.retrieve(ctx, out.URL, path); err != nil {
			return nil, err
		}
	}

	if err := WriteTags(path, ref, p.fetchArtwork(ctx, ref)); err != nil {
		p.logger.Warn("failed to tag mp3", "track", ref.ID, "error", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", shared.ErrPackage, path, err)
	}

	file := &models.DeliveredFile{
		FileName:    FileName(ref),
		ContentType: ContentTypeMP3,
		Data:        data,
	}

	p.logger.Info("packaged", "file", file.FileName, "size", humanize.Bytes(uint64(len(data))))
	return file, nil
}

// retrieve streams url into path.
func (p *Packager) retrieve(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", shared.ErrPackage, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to retrieve result: %w", shared.ErrPackage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: failed to retrieve result: status %d", shared.ErrPackage, resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPackage, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to write result: %w", shared.ErrPackage, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPackage, err)
	}
	return nil
}

// fetchArtwork downloads the album cover. Any failure yields nil.
func (p *Packager) fetchArtwork(ctx context.Context, ref *models.TrackRef) *Artwork {
	if !p.artwork || ref.ImageURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.ImageURL, nil)
	if err != nil {
		return nil
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("artwork unavailable", "url", ref.ImageURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Debug("artwork unavailable", "url", ref.ImageURL, "status", resp.StatusCode)
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil || len(data) == 0 {
		return nil
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &Artwork{MimeType: mimeType, Data: data}
}
