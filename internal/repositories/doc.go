// Package repositories implements SQLite persistence for the sync engine's records.
//
// Each repository owns one table and is a thin layer over [database/sql]: validation, id and
// sequence assignment, and mapping of NULLable columns. Lookups that find nothing return an error
// wrapping [shared.ErrNotFound]; inserts that collide with a unique key wrap [shared.ErrDuplicate].
//
// Key Implementations:
//   - [CredentialRepository] : upstream tokens keyed by subject
//   - [PlaylistRepository] : playlists keyed by their globally unique upstream id
//   - [TrackRepository] : ordered playlist entries, replaced wholesale in one transaction
//   - [ArtistRepository], [SongRepository], [AlbumRepository] : canonical catalog records
//   - [SyncLogRepository] : the append-only sync audit trail
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
