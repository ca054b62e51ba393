// Package models defines the records the sync engine persists and the vocabulary shared by its callers.
//
// The package contains two groups of types:
//
// 1. Catalog records, written by the sync engine and read by the presentation layer:
//   - [Playlist] : a subject's playlist keyed by its upstream id
//   - [Track] : one ordered entry of a playlist, fully replaced on every track sync
//   - [Artist] : a canonical artist, inserted once per upstream id
//   - [Song] : a canonical song owned by an [Artist]
//   - [Album] : an artist's release, populated by the artist_albums sync
//
// 2. Engine bookkeeping:
//   - [Credential] : a subject's upstream OAuth tokens
//   - [SyncLog] : one append-only audit row per sync run
//   - [SyncType] and [SyncStatus] : the declared pipelines and their outcomes
//
// Every record implements [Model] so repositories can validate before writing.
// Upstream ids are plain strings; an empty ExternalID is stored as NULL (local files have none).
package models
