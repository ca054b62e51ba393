// Package tasks implements the sync engine: pulling a subject's catalog data from the upstream API
// and folding it into canonical records.
//
// # Pipeline
//
// A run is driven by [Orchestrator.Run] and moves through the [State] machine
//
//	Init → TokenReady → Fetching → Extracting → Persisting → Logged → Done
//
// with Failed reachable from every step. The [models.SyncType] of the [Request] selects the pipeline:
//
//  1. playlists : page the subject's playlists and upsert each one
//  2. playlist_tracks : replace one playlist's track rows in source order
//  3. full : playlists, then every playlist's tracks, then the unique artists and songs found in them
//  4. artist_profile, artist_songs, artist_albums : one artist and, optionally, its top songs or albums
//
// # Components
//
//   - [Extractor] : pages track listings and de-duplicates artist and song candidates. It never writes.
//   - [Upserter] : insert-if-absent for artists, songs and albums; insert-or-update for playlists;
//     full replacement for playlist tracks.
//   - [SyncLogger] : appends one audit row per run and swallows its own failures.
//
// # Failure model
//
// Fatal errors (bad request, missing or unrefreshable credentials, ownership mismatch, a failed
// top-level listing, timeout) end the run with [SyncResult.Success] false. Every other error is
// charged to the item that caused it, so processed + failed always equals the items examined.
//
// # Progress Reporting
//
// Runs accept an optional channel of [ProgressUpdate]. Updates use select with default so a slow
// reader never blocks a sync.
package tasks
