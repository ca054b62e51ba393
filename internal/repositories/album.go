package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

const albumColumns = `id, sequence, external_id, artist_id, name, album_type, release_date, total_tracks, cover_url, created_at, updated_at`

// AlbumRepository persists [models.Album] rows.
type AlbumRepository struct {
	db *sql.DB
}

// NewAlbumRepository creates a new AlbumRepository with the given database connection
func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

// Create inserts a new album with generated ID and sequence
func (r *AlbumRepository) Create(a *models.Album) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "albums")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	stamp(&a.CreatedAt, &a.UpdatedAt)

	_, err = r.db.Exec(
		`INSERT INTO albums (`+albumColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		sequence,
		a.ExternalID,
		a.ArtistID,
		a.Name,
		a.AlbumType,
		a.ReleaseDate,
		a.TotalTracks,
		a.CoverURL,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return insertErr(err, "album", a.ExternalID)
	}

	a.ID = id
	a.Sequence = sequence
	return nil
}

// GetByExternalID retrieves an album by its upstream id
func (r *AlbumRepository) GetByExternalID(externalID string) (*models.Album, error) {
	var a models.Album
	err := r.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE external_id = ?`, externalID).Scan(
		&a.ID, &a.Sequence, &a.ExternalID, &a.ArtistID, &a.Name, &a.AlbumType, &a.ReleaseDate, &a.TotalTracks,
		&a.CoverURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "album", externalID)
	}
	return &a, nil
}

// ListByArtist returns an artist's albums ordered by sequence.
func (r *AlbumRepository) ListByArtist(artistID string) ([]*models.Album, error) {
	rows, err := r.db.Query(`SELECT `+albumColumns+` FROM albums WHERE artist_id = ? ORDER BY sequence ASC`, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		var a models.Album
		err := rows.Scan(&a.ID, &a.Sequence, &a.ExternalID, &a.ArtistID, &a.Name, &a.AlbumType, &a.ReleaseDate,
			&a.TotalTracks, &a.CoverURL, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return albums, nil
}
