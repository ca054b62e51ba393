// Package services wraps the Spotify Web API for the sync engine.
//
// [SpotifyClient] combines three collaborators on every call: a [RateLimiter] that spaces requests per
// endpoint and subject, a [TokenSource] that yields a valid bearer token for the subject, and an
// [http.Client] with a per-call timeout. Responses are mapped as follows:
//
//   - 2xx : decoded into the caller's value
//   - 429, or X-RateLimit-Remaining: 0 on an error status : the limiter's reactive wait runs, then an
//     [*APIError] wrapping [shared.ErrRateLimited] is returned so the caller can retry
//   - other non-2xx : [*APIError] wrapping [shared.ErrUpstreamRequest]; 401 also wraps
//     [shared.ErrAuthentication] and 404 also wraps [shared.ErrNotFound]
//
// The client never paginates on its own. Typed helpers such as [SpotifyClient.PlaylistTracks] return
// a single [Paging] page and callers follow Next themselves.
//
// Wire types mirror https://developer.spotify.com/documentation/web-api/reference/ and keep only the
// fields the engine stores.
package services
