// package models defines the data model for the download pipeline
package models

// TrackRef identifies a catalog track. Title and Artist are always populated once resolved.
type TrackRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// SourceCandidate is a media source chosen for a track.
type SourceCandidate struct {
	Address       string `json:"address"`
	Title         string `json:"title"`
	DurationLabel string `json:"duration,omitempty"`
	Author        string `json:"author,omitempty"`
}

// JobStatus is the lifecycle state of a [ConversionJob].
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobFinished   JobStatus = "finished"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change status again.
func (s JobStatus) Terminal() bool {
	return s == JobFinished || s == JobFailed
}

// UploadTarget is the form endpoint a remote job accepts its input on.
type UploadTarget struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"parameters"`
}

// ConversionJob tracks a remote conversion. ResultURL is set once Status is [JobFinished].
type ConversionJob struct {
	ID        string       `json:"id"`
	Upload    UploadTarget `json:"upload"`
	Status    JobStatus    `json:"status"`
	ResultURL string       `json:"result_url,omitempty"`
}

// DeliveredFile is the packaged MP3 handed back to a client.
type DeliveredFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DownloadStatus is the per-track state inside a batch.
type DownloadStatus string

const (
	StatusIdle        DownloadStatus = "idle"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusError       DownloadStatus = "error"
)

// TrackDownloadState is the orchestrator's view of one track.
type TrackDownloadState struct {
	Status   DownloadStatus `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message,omitempty"`
}
