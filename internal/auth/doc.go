// Package auth keeps upstream access tokens valid.
//
// [TokenManager] is the only component that talks to the provider's token endpoint. Before any
// upstream call the client asks it for a subject's access token; a token that is expired, or
// will expire within the configured skew, is first exchanged through an OAuth2 refresh-token
// grant and the rotated credential is persisted. Refreshes for one subject are serialized so
// concurrent syncs reuse a single grant instead of racing.
//
// A refresh failure is fatal for the calling sync and is never retried here.
package auth
