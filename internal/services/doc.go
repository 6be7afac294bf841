// Package services implements the upstream collaborators of the download pipeline.
//
// # Spotify Implementation
//
// [SpotifyService] implements [MetadataResolver] and [CatalogReader] on top of github.com/zmb3/spotify/v2.
// It holds no token: every call asks its [TokenProvider] for a fresh access token, so a long-lived
// refresh token in config.toml is the only credential kept.
//
// [RefreshTokenProvider] performs the refresh-token grant with golang.org/x/oauth2. The one-time
// authorization code flow that produces the refresh token lives in the `spotify auth` command.
//
// # YouTube Music Implementation
//
// [YouTubeService] implements [SourceLocator] against the FastAPI proxy wrapping ytmusicapi.
// The first search result is taken as-is and turned into a watch URL.
//
// # Remote Pipeline
//
// [PipelineClient] runs downloads on another spotdown server (POST /api/download?format=encoded)
// and decodes the data URI payload back into a [models.DeliveredFile].
//
// # Error Handling
//
// Services wrap sentinels from the shared package:
//   - [shared.ErrInvalidReference] : malformed track id
//   - [shared.ErrTrackNotFound] : catalog has no such track
//   - [shared.ErrNotFound] : catalog has no such album or playlist
//   - [shared.ErrAuthFailed] : token refresh or catalog authorization failed
//   - [shared.ErrAPIRequest] : any other upstream failure
package services
