package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

// TrackRepository persists the ordered entries of a playlist.
//
// Rows are never edited in place: each sync replaces a playlist's full list, so position always
// matches the upstream order.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// ReplaceForPlaylist deletes every track of playlistID and inserts tracks in order, in one transaction.
//
// Each track's Position is overwritten with its index in tracks. On error nothing is changed.
func (r *TrackRepository) ReplaceForPlaylist(playlistID string, tracks []*models.Track) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM playlist_tracks WHERE playlist_id = ?", playlistID); err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO playlist_tracks (id, playlist_id, external_id, name, artist_external_id, artist_name,
			album_name, duration_ms, cover_url, position, added_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, t := range tracks {
		t.PlaylistID = playlistID
		t.Position = i
		t.CreatedAt = now
		if err := t.Validate(); err != nil {
			return fmt.Errorf("validation failed at position %d: %w", i, err)
		}

		id := shared.GenerateID()
		_, err := stmt.Exec(
			id,
			playlistID,
			nullString(t.ExternalID),
			t.Name,
			nullString(t.ArtistExternalID),
			t.ArtistName,
			t.AlbumName,
			t.DurationMs,
			t.CoverURL,
			t.Position,
			nullTime(t.AddedAt),
			t.CreatedAt,
		)
		if err != nil {
			return insertErr(err, "track", fmt.Sprintf("%s#%d", playlistID, i))
		}
		t.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit track replace: %w", err)
	}
	return nil
}

// ListByPlaylist returns the tracks of playlistID ordered by position.
func (r *TrackRepository) ListByPlaylist(playlistID string) ([]*models.Track, error) {
	query := `
		SELECT id, playlist_id, external_id, name, artist_external_id, artist_name, album_name,
			duration_ms, cover_url, position, added_at, created_at
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		var (
			t          models.Track
			externalID sql.NullString
			artistID   sql.NullString
			addedAt    sql.NullTime
		)
		err := rows.Scan(&t.ID, &t.PlaylistID, &externalID, &t.Name, &artistID, &t.ArtistName, &t.AlbumName,
			&t.DurationMs, &t.CoverURL, &t.Position, &addedAt, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		t.ExternalID = externalID.String
		t.ArtistExternalID = artistID.String
		t.AddedAt = timePtr(addedAt)
		tracks = append(tracks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// CountByPlaylist returns how many tracks are stored for playlistID.
func (r *TrackRepository) CountByPlaylist(playlistID string) (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?", playlistID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}
