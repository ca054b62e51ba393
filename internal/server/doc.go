// Package server exposes the sync engine over HTTP.
//
// # Routes
//
//	POST /sync    run one sync for the authenticated caller
//	GET  /health  liveness probe
//
// POST /sync accepts {"subjectId", "syncType", "playlistId", "artistId"} and always answers 200 with the
// run's summary once the request is well formed. Callers must inspect "success". Malformed bodies get 400.
//
// # Authentication
//
// Every /sync request carries an HS256 bearer token issued by [CallerTokens]. Its "sub" claim is the
// caller. A caller syncing a subject other than itself is rejected by the engine before any network call,
// which surfaces as a 200 with success false.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [ChiRouter] implements it on top
// of go-chi. [Middleware] wraps handlers in reverse order (last added executes first).
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds
// routes, allowing handlers to register multiple routes to encapsulate route definitions within the
// implementation.
package server
