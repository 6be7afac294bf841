// package services defines the upstream collaborators of the download pipeline
//
// Spotify (catalog), YouTube Music (via proxy) and a remote spotdown server
package services

import (
	"context"

	"github.com/desertthunder/spotdown/internal/models"
)

// MetadataResolver turns a catalog track id into its title and artist.
type MetadataResolver interface {
	Resolve(ctx context.Context, trackID string) (*models.TrackRef, error)
}

// CatalogReader loads the tracks behind a catalog reference for display.
type CatalogReader interface {
	Collection(ctx context.Context, ref models.Reference) (*models.Collection, error)
}

// SourceLocator finds a media source for a title and artist.
//
// A nil candidate with a nil error means the search ran and found nothing.
type SourceLocator interface {
	Search(ctx context.Context, title, artist string) (*models.SourceCandidate, error)
}

var (
	_ MetadataResolver = (*SpotifyService)(nil)
	_ CatalogReader    = (*SpotifyService)(nil)
	_ SourceLocator    = (*YouTubeService)(nil)
	_ TokenProvider    = (*RefreshTokenProvider)(nil)
)
