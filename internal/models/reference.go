package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/spotdown/internal/shared"
)

// ReferenceKind is the kind of catalog object a [Reference] points at.
type ReferenceKind string

const (
	KindTrack    ReferenceKind = "track"
	KindAlbum    ReferenceKind = "album"
	KindPlaylist ReferenceKind = "playlist"
)

var (
	shareURLPattern = regexp.MustCompile(`^https://open\.spotify\.com/(?:embed/)?(track|album|playlist)/([a-zA-Z0-9]+)`)
	idPattern       = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// Reference is a parsed catalog reference.
type Reference struct {
	Kind ReferenceKind `json:"kind"`
	ID   string        `json:"id"`
}

// String returns the reference in spotify:<kind>:<id> form.
func (r Reference) String() string {
	return fmt.Sprintf("spotify:%s:%s", r.Kind, r.ID)
}

// URL returns the public share URL for the reference.
func (r Reference) URL() string {
	return fmt.Sprintf("https://open.spotify.com/%s/%s", r.Kind, r.ID)
}

// ParseReference accepts a bare track id, a spotify:<kind>:<id> URI or an open.spotify.com share URL.
func ParseReference(input string) (Reference, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reference{}, fmt.Errorf("%w: empty reference", shared.ErrInvalidReference)
	}

	if strings.HasPrefix(input, "spotify:") {
		parts := strings.Split(input, ":")
		if len(parts) != 3 {
			return Reference{}, fmt.Errorf("%w: malformed uri %q", shared.ErrInvalidReference, input)
		}
		return newReference(parts[1], parts[2])
	}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, err := url.Parse(input)
		if err != nil {
			return Reference{}, fmt.Errorf("%w: %v", shared.ErrInvalidReference, err)
		}
		u.RawQuery, u.Fragment = "", ""

		m := shareURLPattern.FindStringSubmatch(u.String())
		if m == nil {
			return Reference{}, fmt.Errorf("%w: not a spotify track, album or playlist url", shared.ErrInvalidReference)
		}
		return Reference{Kind: ReferenceKind(m[1]), ID: m[2]}, nil
	}

	return newReference(string(KindTrack), input)
}

// ValidTrackID reports whether id could be a catalog track id.
func ValidTrackID(id string) bool {
	return idPattern.MatchString(id)
}

func newReference(kind, id string) (Reference, error) {
	k := ReferenceKind(kind)
	switch k {
	case KindTrack, KindAlbum, KindPlaylist:
	default:
		return Reference{}, fmt.Errorf("%w: unsupported kind %q", shared.ErrInvalidReference, kind)
	}

	if !idPattern.MatchString(id) {
		return Reference{}, fmt.Errorf("%w: malformed id %q", shared.ErrInvalidReference, id)
	}
	return Reference{Kind: k, ID: id}, nil
}
