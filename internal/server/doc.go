// Package server provides HTTP routing, middleware, the core download API and OAuth handling.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the stock middleware.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Core API
//
// [API] exposes:
//
//	POST /api/download          → run the pipeline for {"trackId": "..."}
//	GET  /api/catalog?url=...   → tracks behind a track, album or playlist reference
//	GET  /health                → liveness
//
// Download failures are JSON bodies of the form {"success":false,"error":msg,"kind":kind}
// with the status chosen by [StatusFor].
//
// # Spotify Authorization
//
// [OAuthHandler] serves /callback for the one-time authorization code flow behind `spotdown spotify auth`.
// It checks the state token in constant time, exchanges the code, insists on a refresh token and hands
// exactly one [OAuthResult] to the waiting command. Replayed callbacks are rejected.
//
// # Handler Interface
//
// A [Handler] is an [http.Handler] that also names its routes, so [BasicRouter.Handler] can mount it in one call.
// Mounted handlers match any method and show up as "*" in [BasicRouter.Routes].
//
// # Lifecycle
//
// [Server] serves until its context is canceled and then shuts down gracefully.
package server
