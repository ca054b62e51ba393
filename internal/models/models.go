// package models defines the data model for the respect sync engine
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/respect/internal/shared"
)

// Model is implemented by every persisted record.
type Model interface {
	Validate() error // Validate reports whether the record can be written
}

// Credential holds a subject's upstream OAuth tokens.
type Credential struct {
	SubjectID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the access token is expired at now, or will be within skew.
func (c *Credential) ExpiresWithin(now time.Time, skew time.Duration) bool {
	return c.AccessToken == "" || !now.Before(c.ExpiresAt.Add(-skew))
}

func (c *Credential) Validate() error {
	if c.SubjectID == "" {
		return fmt.Errorf("%w: credential subject is required", shared.ErrInvalidInput)
	}
	return nil
}

// Playlist is a subject's playlist. ExternalID is unique across all subjects.
type Playlist struct {
	ID              string
	Sequence        int
	ExternalID      string
	OwnerID         string
	ExternalOwnerID string
	Name            string
	Description     string
	CoverURL        string
	IsPublic        bool
	IsCollaborative bool
	TrackCount      int
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p *Playlist) Validate() error {
	switch {
	case p.ExternalID == "":
		return fmt.Errorf("%w: playlist external id is required", shared.ErrInvalidInput)
	case p.OwnerID == "":
		return fmt.Errorf("%w: playlist owner is required", shared.ErrInvalidInput)
	case p.Name == "":
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	case p.TrackCount < 0:
		return fmt.Errorf("%w: playlist track count cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Track is one entry of a playlist at Position, counted from zero in source order.
type Track struct {
	ID               string
	PlaylistID       string
	ExternalID       string
	Name             string
	ArtistExternalID string
	ArtistName       string
	AlbumName        string
	DurationMs       int
	CoverURL         string
	Position         int
	AddedAt          *time.Time
	CreatedAt        time.Time
}

func (t *Track) Validate() error {
	switch {
	case t.PlaylistID == "":
		return fmt.Errorf("%w: track playlist is required", shared.ErrInvalidInput)
	case t.Position < 0:
		return fmt.Errorf("%w: track position cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Artist is a canonical artist record.
type Artist struct {
	ID           string
	Sequence     int
	ExternalID   string
	Name         string
	AvatarURL    string
	Genres       []string
	Followers    int
	RespectCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Artist) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: artist name is required", shared.ErrInvalidInput)
	}
	return nil
}

// Song is a canonical song record. ArtistID is the internal id of its primary artist.
type Song struct {
	ID           string
	Sequence     int
	ExternalID   string
	ArtistID     string
	Name         string
	AlbumName    string
	CoverURL     string
	DurationMs   int
	RespectCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Song) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: song name is required", shared.ErrInvalidInput)
	case s.ArtistID == "":
		return fmt.Errorf("%w: song %q has no artist", shared.ErrReferentialIntegrity, s.Name)
	}
	return nil
}

// Album is a release credited to an artist.
type Album struct {
	ID          string
	Sequence    int
	ExternalID  string
	ArtistID    string
	Name        string
	AlbumType   string
	ReleaseDate string
	TotalTracks int
	CoverURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Album) Validate() error {
	switch {
	case a.ExternalID == "":
		return fmt.Errorf("%w: album external id is required", shared.ErrInvalidInput)
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: album name is required", shared.ErrInvalidInput)
	case a.ArtistID == "":
		return fmt.Errorf("%w: album %q has no artist", shared.ErrReferentialIntegrity, a.Name)
	}
	return nil
}
