// Package models defines the domain entities shared by the acquisition pipeline, the download orchestrator and the presentation layers.
//
// The package contains three categories of types:
//
// 1. Catalog entities: immutable values resolved from the music catalog
//   - [TrackRef] : Track identity with the title and artist used to search for a source
//   - [Collection] : A track, album or playlist with its ordered tracks
//   - [Reference] : A parsed catalog reference (bare id, URI or share URL)
//
// 2. Pipeline values: data that flows between stages of a single run
//   - [SourceCandidate] : The chosen media source for a track
//   - [ConversionJob] : A remote conversion job and its upload target
//   - [DeliveredFile] : The final named MP3 payload
//
// 3. Batch state: per-track download bookkeeping owned by the orchestrator
//   - [TrackDownloadState] : Status, progress and preserved failure message
//
// None of these types are persisted.
package models
