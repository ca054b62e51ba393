package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

const playlistColumns = `id, sequence, external_id, owner_id, external_owner_id, name, description, cover_url,
	is_public, is_collaborative, track_count, last_synced_at, created_at, updated_at`

// PlaylistRepository persists [models.Playlist] rows keyed by their upstream id.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	stamp(&p.CreatedAt, &p.UpdatedAt)

	query := `
		INSERT INTO playlists (` + playlistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		p.ExternalID,
		p.OwnerID,
		p.ExternalOwnerID,
		p.Name,
		p.Description,
		p.CoverURL,
		p.IsPublic,
		p.IsCollaborative,
		p.TrackCount,
		nullTime(p.LastSyncedAt),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return insertErr(err, "playlist", p.ExternalID)
	}

	p.ID = id
	p.Sequence = sequence
	return nil
}

// Get retrieves a playlist by internal ID
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`

	p, err := scanPlaylist(r.db.QueryRow(query, id))
	if err != nil {
		return nil, notFound(err, "playlist", id)
	}
	return p, nil
}

// GetByExternalID retrieves a playlist by its upstream id
func (r *PlaylistRepository) GetByExternalID(externalID string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE external_id = ?`

	p, err := scanPlaylist(r.db.QueryRow(query, externalID))
	if err != nil {
		return nil, notFound(err, "playlist", externalID)
	}
	return p, nil
}

// Update writes the playlist's mutable fields.
//
// Ownership and the upstream id never change after insert.
func (r *PlaylistRepository) Update(p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE playlists
		SET name = ?, description = ?, cover_url = ?, is_public = ?, is_collaborative = ?,
			track_count = ?, external_owner_id = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		p.Name,
		p.Description,
		p.CoverURL,
		p.IsPublic,
		p.IsCollaborative,
		p.TrackCount,
		p.ExternalOwnerID,
		nullTime(p.LastSyncedAt),
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return requireRow(result, "playlist", p.ID)
}

// MarkSynced records a completed track sync for the playlist.
//
// The track count is left alone: it mirrors the upstream total, which also counts unavailable items.
func (r *PlaylistRepository) MarkSynced(id string, at time.Time) error {
	result, err := r.db.Exec(
		"UPDATE playlists SET last_synced_at = ?, updated_at = ? WHERE id = ?",
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark playlist synced: %w", err)
	}
	return requireRow(result, "playlist", id)
}

// List retrieves playlists matching criteria ("owner_id"), ordered by sequence.
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE 1 = 1`
	args := []any{}

	if ownerID, ok := criteria["owner_id"].(string); ok && ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

func scanPlaylist(s scanner) (*models.Playlist, error) {
	var (
		p          models.Playlist
		lastSynced sql.NullTime
	)

	err := s.Scan(
		&p.ID, &p.Sequence, &p.ExternalID, &p.OwnerID, &p.ExternalOwnerID, &p.Name, &p.Description, &p.CoverURL,
		&p.IsPublic, &p.IsCollaborative, &p.TrackCount, &lastSynced, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.LastSyncedAt = timePtr(lastSynced)
	return &p, nil
}

func requireRow(result sql.Result, kind, key string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound(sql.ErrNoRows, kind, key)
	}
	return nil
}
