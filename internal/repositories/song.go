package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

const songColumns = `id, sequence, external_id, artist_id, name, album_name, cover_url, duration_ms, respect_count, created_at, updated_at`

// SongRepository persists canonical [models.Song] rows.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Create inserts a new song. The referenced artist must already exist.
func (r *SongRepository) Create(s *models.Song) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "songs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	stamp(&s.CreatedAt, &s.UpdatedAt)

	_, err = r.db.Exec(
		`INSERT INTO songs (`+songColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		sequence,
		nullString(s.ExternalID),
		s.ArtistID,
		s.Name,
		s.AlbumName,
		s.CoverURL,
		s.DurationMs,
		s.RespectCount,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return insertErr(err, "song", s.ExternalID)
	}

	s.ID = id
	s.Sequence = sequence
	return nil
}

// GetByExternalID retrieves a song by its upstream id
func (r *SongRepository) GetByExternalID(externalID string) (*models.Song, error) {
	s, err := scanSong(r.db.QueryRow(`SELECT `+songColumns+` FROM songs WHERE external_id = ?`, externalID))
	if err != nil {
		return nil, notFound(err, "song", externalID)
	}
	return s, nil
}

// ListByArtist returns an artist's songs ordered by sequence.
func (r *SongRepository) ListByArtist(artistID string) ([]*models.Song, error) {
	rows, err := r.db.Query(`SELECT `+songColumns+` FROM songs WHERE artist_id = ? ORDER BY sequence ASC`, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return songs, nil
}

// Count returns the total number of songs.
func (r *SongRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

func scanSong(sc scanner) (*models.Song, error) {
	var (
		s          models.Song
		externalID sql.NullString
	)

	err := sc.Scan(&s.ID, &s.Sequence, &externalID, &s.ArtistID, &s.Name, &s.AlbumName, &s.CoverURL, &s.DurationMs,
		&s.RespectCount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.ExternalID = externalID.String
	return &s, nil
}
