package delivery

import (
	"errors"
	"fmt"
	"os"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/spotdown/internal/models"
)

// Artwork is cover art to embed as the front cover picture.
type Artwork struct {
	MimeType string
	Data     []byte
}

// WriteTags stores title, artist and album frames (and optional cover art) in the MP3 at path.
func WriteTags(path string, ref *models.TrackRef, art *Artwork) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		return fmt.Errorf("failed to parse tags: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(ref.Title)
	tag.SetArtist(ref.Artist)
	if ref.Album != "" {
		tag.SetAlbum(ref.Album)
	}

	if art != nil && len(art.Data) > 0 {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    art.MimeType,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     art.Data,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	return nil
}
