package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/respect/internal/shared"
)

// SyncType names one of the declared sync pipelines.
type SyncType string

const (
	SyncPlaylists      SyncType = "playlists"
	SyncPlaylistTracks SyncType = "playlist_tracks"
	SyncFull           SyncType = "full"
	SyncArtistProfile  SyncType = "artist_profile"
	SyncArtistSongs    SyncType = "artist_songs"
	SyncArtistAlbums   SyncType = "artist_albums"
)

// SyncTypes lists every declared pipeline in display order.
var SyncTypes = []SyncType{
	SyncPlaylists,
	SyncPlaylistTracks,
	SyncFull,
	SyncArtistProfile,
	SyncArtistSongs,
	SyncArtistAlbums,
}

// ParseSyncType converts s to a [SyncType].
func ParseSyncType(s string) (SyncType, error) {
	st := SyncType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SyncTypes {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sync type %q", shared.ErrInvalidArgument, s)
}

// NeedsPlaylist reports whether the pipeline requires a playlist id.
func (t SyncType) NeedsPlaylist() bool { return t == SyncPlaylistTracks }

// NeedsArtist reports whether the pipeline requires an artist id.
func (t SyncType) NeedsArtist() bool {
	return t == SyncArtistProfile || t == SyncArtistSongs || t == SyncArtistAlbums
}

// Description returns a one-line summary used by the CLI and TUI.
func (t SyncType) Description() string {
	switch t {
	case SyncPlaylists:
		return "Import the subject's playlists"
	case SyncPlaylistTracks:
		return "Replace one playlist's tracks"
	case SyncFull:
		return "Playlists, tracks, artists and songs"
	case SyncArtistProfile:
		return "Import one artist's profile"
	case SyncArtistSongs:
		return "Import an artist's top songs"
	case SyncArtistAlbums:
		return "Import an artist's albums"
	default:
		return ""
	}
}

// SyncStatus is the audit outcome of a run.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusPartial SyncStatus = "partial"
	StatusFailed  SyncStatus = "failed"
)

// StatusFor maps a run outcome to its audit status.
func StatusFor(success bool, failed int) SyncStatus {
	switch {
	case !success:
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

// SyncLog is one append-only audit row.
type SyncLog struct {
	ID             string
	SubjectID      string
	SyncType       SyncType
	Status         SyncStatus
	ItemsProcessed int
	ItemsFailed    int
	ErrorMessage   string
	CreatedAt      time.Time
}

func (l *SyncLog) Validate() error {
	switch {
	case l.SubjectID == "":
		return fmt.Errorf("%w: sync log subject is required", shared.ErrInvalidInput)
	case l.SyncType == "":
		return fmt.Errorf("%w: sync log type is required", shared.ErrInvalidInput)
	case l.Status != StatusSuccess && l.Status != StatusPartial && l.Status != StatusFailed:
		return fmt.Errorf("%w: unknown sync status %q", shared.ErrInvalidInput, l.Status)
	case l.ItemsProcessed < 0 || l.ItemsFailed < 0:
		return fmt.Errorf("%w: sync log counters cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}
