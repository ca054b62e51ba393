package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/repositories"
	"github.com/desertthunder/respect/internal/services"
	"github.com/desertthunder/respect/internal/shared"
)

// Store bundles the repositories a sync run writes to.
type Store struct {
	Playlists *repositories.PlaylistRepository
	Tracks    *repositories.TrackRepository
	Artists   *repositories.ArtistRepository
	Songs     *repositories.SongRepository
	Albums    *repositories.AlbumRepository
	SyncLogs  *repositories.SyncLogRepository
}

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Playlists: repositories.NewPlaylistRepository(db),
		Tracks:    repositories.NewTrackRepository(db),
		Artists:   repositories.NewArtistRepository(db),
		Songs:     repositories.NewSongRepository(db),
		Albums:    repositories.NewAlbumRepository(db),
		SyncLogs:  repositories.NewSyncLogRepository(db),
	}
}

// UpsertOutcome describes the effect of one upsert.
type UpsertOutcome struct {
	ID      string // Internal id of the stored row
	Created bool   // A row was inserted
	Updated bool   // An existing row was rewritten
}

// Upserter writes candidates to storage keyed by their upstream ids.
//
// Artists, songs and albums are populated once and never overwritten. Playlists are refreshed when
// their upstream fields change.
type Upserter struct {
	store        *Store
	upstream     Upstream
	fetchDetails bool
	now          func() time.Time
	logger       *log.Logger
}

// NewUpserter creates an Upserter. When fetchDetails is set, new artists are enriched with their
// full profile before insert.
func NewUpserter(store *Store, upstream Upstream, fetchDetails bool, logger *log.Logger) *Upserter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Upserter{store: store, upstream: upstream, fetchDetails: fetchDetails, now: time.Now, logger: logger}
}

// UpsertArtist inserts the artist unless one with the same upstream id exists.
func (u *Upserter) UpsertArtist(ctx context.Context, subject string, c ArtistCandidate) (UpsertOutcome, error) {
	if existing, err := u.store.Artists.GetByExternalID(c.ExternalID); err == nil {
		return UpsertOutcome{ID: existing.ID}, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return UpsertOutcome{}, err
	}

	detail := c.Detail
	if detail == nil && u.fetchDetails && c.ExternalID != "" {
		fetched, err := u.upstream.Artist(ctx, subject, c.ExternalID)
		switch {
		case err == nil:
			detail = fetched
		case isFatal(ctx, err):
			return UpsertOutcome{}, err
		default:
			u.logger.Warn("artist detail unavailable, storing credit only", "artist", c.ExternalID, "error", err)
		}
	}

	artist := &models.Artist{ExternalID: c.ExternalID, Name: c.Name}
	if detail != nil {
		if name := shared.NormalizeName(detail.Name); name != "" {
			artist.Name = name
		}
		artist.AvatarURL = services.CoverURL(detail.Images)
		artist.Genres = detail.Genres
		artist.Followers = detail.FollowerCount()
	}

	if err := u.store.Artists.Create(artist); err != nil {
		if errors.Is(err, shared.ErrDuplicate) && c.ExternalID != "" {
			existing, lookupErr := u.store.Artists.GetByExternalID(c.ExternalID)
			if lookupErr == nil {
				return UpsertOutcome{ID: existing.ID}, nil
			}
		}
		return UpsertOutcome{}, err
	}

	u.logger.Debug("artist created", "artist", artist.ExternalID, "name", artist.Name)
	return UpsertOutcome{ID: artist.ID, Created: true}, nil
}

// ResolveArtistID returns the internal id of the artist with the given upstream id.
//
// An artist that has not been synced yields [shared.ErrReferentialIntegrity].
func (u *Upserter) ResolveArtistID(ctx context.Context, externalID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	artist, err := u.store.Artists.GetByExternalID(externalID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", fmt.Errorf("%w: artist %s", shared.ErrReferentialIntegrity, externalID)
	}
	if err != nil {
		return "", err
	}
	return artist.ID, nil
}

// UpsertSong inserts the song under artistID unless one with the same upstream id exists.
func (u *Upserter) UpsertSong(ctx context.Context, c SongCandidate, artistID string) (UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return UpsertOutcome{}, err
	}
	if artistID == "" {
		return UpsertOutcome{}, fmt.Errorf("%w: song %s has no stored artist", shared.ErrReferentialIntegrity, c.ExternalID)
	}

	if existing, err := u.store.Songs.GetByExternalID(c.ExternalID); err == nil {
		return UpsertOutcome{ID: existing.ID}, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return UpsertOutcome{}, err
	}

	song := &models.Song{
		ExternalID: c.ExternalID,
		ArtistID:   artistID,
		Name:       c.Name,
		AlbumName:  c.AlbumName,
		CoverURL:   c.CoverURL,
		DurationMs: c.DurationMs,
	}
	if err := u.store.Songs.Create(song); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			if existing, lookupErr := u.store.Songs.GetByExternalID(c.ExternalID); lookupErr == nil {
				return UpsertOutcome{ID: existing.ID}, nil
			}
		}
		return UpsertOutcome{}, err
	}
	return UpsertOutcome{ID: song.ID, Created: true}, nil
}

// UpsertAlbum inserts the album under artistID unless one with the same upstream id exists.
func (u *Upserter) UpsertAlbum(ctx context.Context, c AlbumCandidate, artistID string) (UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return UpsertOutcome{}, err
	}

	if existing, err := u.store.Albums.GetByExternalID(c.ExternalID); err == nil {
		return UpsertOutcome{ID: existing.ID}, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return UpsertOutcome{}, err
	}

	album := &models.Album{
		ExternalID:  c.ExternalID,
		ArtistID:    artistID,
		Name:        c.Name,
		AlbumType:   c.AlbumType,
		ReleaseDate: c.ReleaseDate,
		TotalTracks: c.TotalTracks,
		CoverURL:    c.CoverURL,
	}
	if err := u.store.Albums.Create(album); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			if existing, lookupErr := u.store.Albums.GetByExternalID(c.ExternalID); lookupErr == nil {
				return UpsertOutcome{ID: existing.ID}, nil
			}
		}
		return UpsertOutcome{}, err
	}
	return UpsertOutcome{ID: album.ID, Created: true}, nil
}

// UpsertPlaylist creates the playlist or refreshes its upstream fields.
//
// A playlist stored under another subject yields [shared.ErrAuthorizationMismatch]. An unchanged
// playlist is left untouched, so its last-synced time only moves when something was written.
func (u *Upserter) UpsertPlaylist(ctx context.Context, c PlaylistCandidate) (UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return UpsertOutcome{}, err
	}

	now := u.now().UTC()
	existing, err := u.store.Playlists.GetByExternalID(c.ExternalID)
	if errors.Is(err, shared.ErrNotFound) {
		p := &models.Playlist{
			LastSyncedAt:    &now,
			ExternalID:      c.ExternalID,
			OwnerID:         c.OwnerID,
			ExternalOwnerID: c.ExternalOwnerID,
			Name:            c.Name,
			Description:     c.Description,
			CoverURL:        c.CoverURL,
			IsPublic:        c.IsPublic,
			IsCollaborative: c.IsCollaborative,
			TrackCount:      c.TrackCount,
		}
		err := u.store.Playlists.Create(p)
		if err == nil {
			return UpsertOutcome{ID: p.ID, Created: true}, nil
		}
		if !errors.Is(err, shared.ErrDuplicate) {
			return UpsertOutcome{}, err
		}
		// Another run stored it after the lookup.
		if existing, err = u.store.Playlists.GetByExternalID(c.ExternalID); err != nil {
			return UpsertOutcome{}, err
		}
	} else if err != nil {
		return UpsertOutcome{}, err
	}

	return u.refreshPlaylist(existing, c, now)
}

func (u *Upserter) refreshPlaylist(existing *models.Playlist, c PlaylistCandidate, now time.Time) (UpsertOutcome, error) {
	if existing.OwnerID != c.OwnerID {
		return UpsertOutcome{}, fmt.Errorf("%w: playlist %s belongs to another subject", shared.ErrAuthorizationMismatch, c.ExternalID)
	}

	if !playlistChanged(existing, c) {
		return UpsertOutcome{ID: existing.ID}, nil
	}

	existing.ExternalOwnerID = c.ExternalOwnerID
	existing.Name = c.Name
	existing.Description = c.Description
	existing.CoverURL = c.CoverURL
	existing.IsPublic = c.IsPublic
	existing.IsCollaborative = c.IsCollaborative
	existing.TrackCount = c.TrackCount
	existing.LastSyncedAt = &now
	if err := u.store.Playlists.Update(existing); err != nil {
		return UpsertOutcome{}, err
	}
	return UpsertOutcome{ID: existing.ID, Updated: true}, nil
}

func playlistChanged(p *models.Playlist, c PlaylistCandidate) bool {
	return p.ExternalOwnerID != c.ExternalOwnerID ||
		p.Name != c.Name ||
		p.Description != c.Description ||
		p.CoverURL != c.CoverURL ||
		p.IsPublic != c.IsPublic ||
		p.IsCollaborative != c.IsCollaborative ||
		p.TrackCount != c.TrackCount
}

// ReplacePlaylistTracks swaps the playlist's stored tracks for cands in one transaction and stamps
// the playlist as synced.
func (u *Upserter) ReplacePlaylistTracks(ctx context.Context, playlistID string, cands []TrackCandidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tracks := make([]*models.Track, 0, len(cands))
	for _, c := range cands {
		t := &models.Track{
			PlaylistID: playlistID,
			ExternalID: c.ExternalID,
			Name:       c.Name,
			AlbumName:  c.AlbumName,
			DurationMs: c.DurationMs,
			CoverURL:   c.CoverURL,
			Position:   c.Position,
			AddedAt:    c.AddedAt,
		}
		if primary, ok := c.PrimaryArtist(); ok {
			t.ArtistExternalID = primary.ExternalID
			t.ArtistName = primary.Name
		}
		tracks = append(tracks, t)
	}

	if err := u.store.Tracks.ReplaceForPlaylist(playlistID, tracks); err != nil {
		return err
	}
	return u.store.Playlists.MarkSynced(playlistID, u.now())
}
