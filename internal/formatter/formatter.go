// package formatter renders catalog collections in various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/dustin/go-humanize"
)

const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the supported format names.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ExportToJSON renders the collection as indented JSON.
func ExportToJSON(c *models.Collection) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collection: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts a Collection to CSV format with columns: ID, Title, Artist, Album, Duration
func ExportToCSV(c *models.Collection) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range c.Tracks {
		record := []string{
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.DurationMS),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Collection to Markdown format with the cover image when known
func ExportToMarkdown(c *models.Collection) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", c.Name)

	if c.ImageURL != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", c.ImageURL)
	}

	if c.Owner != "" {
		fmt.Fprintf(&buf, "**By**: %s\n\n", c.Owner)
	}
	if c.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", c.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %s\n", humanize.Comma(int64(len(c.Tracks))))
	fmt.Fprintf(&buf, "**Length**: %s\n\n", shared.FormatDuration(c.TotalDurationMS()))

	buf.WriteString("## Tracks\n\n")
	for i, track := range c.Tracks {
		albumPart := ""
		if track.Album != "" && c.Kind != models.KindAlbum {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.Artist, track.Title, albumPart, shared.FormatDuration(track.DurationMS))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Collection to plain text format
func ExportToText(c *models.Collection) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s: %s\n", kindLabel(c.Kind), c.Name)
	if c.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", c.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(c.Tracks))

	for i, track := range c.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Title)
	}

	return buf.Bytes(), nil
}

// Export renders c in the named format.
func Export(c *models.Collection, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return ExportToJSON(c)
	case FormatCSV:
		return ExportToCSV(c)
	case FormatMarkdown, "md":
		return ExportToMarkdown(c)
	case FormatText, "text":
		return ExportToText(c)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// WriteExport renders c to w.
func WriteExport(w io.Writer, c *models.Collection, format string) error {
	data, err := Export(c, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// WriteExportFile renders c into the file at path.
func WriteExportFile(path string, c *models.Collection, format string) error {
	data, err := Export(c, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

func kindLabel(k models.ReferenceKind) string {
	switch k {
	case models.KindAlbum:
		return "Album"
	case models.KindPlaylist:
		return "Playlist"
	default:
		return "Track"
	}
}
