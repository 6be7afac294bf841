// Package tasks runs the download pipeline and the batch orchestrator with real-time progress reporting.
//
// # Pipeline
//
// [Pipeline.Run] turns one catalog track id into an MP3, in fixed phases:
//
//  1. [ResolvingMetadata] : title and artist from the catalog
//  2. [LocatingSource] : first search result for "<title> <artist>"
//  3. [Fetching] : audio stream written to a run-scoped artifact
//  4. [Transcoding] : local ffmpeg or remote conversion, per deployment
//  5. [Packaging] : tagging and naming "<Artist> - <Title>.mp3"
//
// Each run ends in [Done] or [Failed]. Failures are returned as [*PipelineError] whose [ErrorKind]
// decides the HTTP status the server reports. Artifacts of a run are purged on every exit path.
//
// # Progress Reporting
//
// Runs use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Orchestrator
//
// [Orchestrator] keeps the per-track [models.TrackDownloadState] of a batch and launches downloads
// through a [Downloader], either in process ([PipelineDownloader]) or against a remote server.
// [Orchestrator.DownloadAll] is sequential and paced with a [rate.Limiter].
package tasks
