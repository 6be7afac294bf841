package models

// Collection is a resolved catalog object with its tracks in catalog order. A track reference yields a single-track collection.
type Collection struct {
	Kind        ReferenceKind `json:"kind"`
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Owner       string        `json:"owner,omitempty"`
	Description string        `json:"description,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	Tracks      []TrackRef    `json:"tracks"`
}

// TrackIDs returns the ids of the collection's tracks in order.
func (c *Collection) TrackIDs() []string {
	ids := make([]string, 0, len(c.Tracks))
	for _, t := range c.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

// TotalDurationMS sums the duration of every track.
func (c *Collection) TotalDurationMS() int {
	total := 0
	for _, t := range c.Tracks {
		total += t.DurationMS
	}
	return total
}
