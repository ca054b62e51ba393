package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

const artistColumns = `id, sequence, external_id, name, avatar_url, genres, followers, respect_count, created_at, updated_at`

// ArtistRepository persists canonical [models.Artist] rows.
//
// Artists are insert-only from the sync engine's point of view; there is no Update.
type ArtistRepository struct {
	db *sql.DB
}

// NewArtistRepository creates a new ArtistRepository with the given database connection
func NewArtistRepository(db *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Create inserts a new artist with generated ID and sequence
func (r *ArtistRepository) Create(a *models.Artist) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "artists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	stamp(&a.CreatedAt, &a.UpdatedAt)

	_, err = r.db.Exec(
		`INSERT INTO artists (`+artistColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		sequence,
		nullString(a.ExternalID),
		a.Name,
		a.AvatarURL,
		joinGenres(a.Genres),
		a.Followers,
		a.RespectCount,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return insertErr(err, "artist", a.ExternalID)
	}

	a.ID = id
	a.Sequence = sequence
	return nil
}

// Get retrieves an artist by internal ID
func (r *ArtistRepository) Get(id string) (*models.Artist, error) {
	a, err := scanArtist(r.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "artist", id)
	}
	return a, nil
}

// GetByExternalID retrieves an artist by its upstream id
func (r *ArtistRepository) GetByExternalID(externalID string) (*models.Artist, error) {
	a, err := scanArtist(r.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE external_id = ?`, externalID))
	if err != nil {
		return nil, notFound(err, "artist", externalID)
	}
	return a, nil
}

// List returns every artist ordered by sequence.
func (r *ArtistRepository) List() ([]*models.Artist, error) {
	rows, err := r.db.Query(`SELECT ` + artistColumns + ` FROM artists ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

// CountByExternalID returns the number of rows carrying externalID (zero or one).
func (r *ArtistRepository) CountByExternalID(externalID string) (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM artists WHERE external_id = ?", externalID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count artists: %w", err)
	}
	return n, nil
}

func scanArtist(s scanner) (*models.Artist, error) {
	var (
		a          models.Artist
		externalID sql.NullString
		genres     string
	)

	err := s.Scan(&a.ID, &a.Sequence, &externalID, &a.Name, &a.AvatarURL, &genres, &a.Followers, &a.RespectCount,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.ExternalID = externalID.String
	a.Genres = splitGenres(genres)
	return &a, nil
}
