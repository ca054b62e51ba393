package tasks

import (
	"time"

	"github.com/desertthunder/respect/internal/services"
	"github.com/desertthunder/respect/internal/shared"
)

// ArtistCandidate is an artist credit extracted from upstream data. Detail, when set, is a full
// profile already fetched by the caller.
type ArtistCandidate struct {
	ExternalID string
	Name       string
	Detail     *services.Artist
}

// SongCandidate is a unique track extracted from upstream data, credited to its primary artist.
type SongCandidate struct {
	ExternalID       string
	Name             string
	AlbumName        string
	CoverURL         string
	DurationMs       int
	ArtistExternalID string
	Artists          []ArtistCandidate
}

// TrackCandidate is one non-null item of a playlist listing, at Position among the kept items.
type TrackCandidate struct {
	ExternalID string
	Name       string
	Artists    []ArtistCandidate
	AlbumName  string
	CoverURL   string
	DurationMs int
	Position   int
	AddedAt    *time.Time
}

// PrimaryArtist returns the track's primary artist, which is always the first credit.
func (t TrackCandidate) PrimaryArtist() (ArtistCandidate, bool) {
	if len(t.Artists) == 0 {
		return ArtistCandidate{}, false
	}
	return t.Artists[0], true
}

// PlaylistCandidate is a playlist as seen upstream, owned by the syncing subject.
type PlaylistCandidate struct {
	ExternalID      string
	OwnerID         string
	ExternalOwnerID string
	Name            string
	Description     string
	CoverURL        string
	IsPublic        bool
	IsCollaborative bool
	TrackCount      int
}

// AlbumCandidate is an album credited to an artist.
type AlbumCandidate struct {
	ExternalID  string
	Name        string
	AlbumType   string
	ReleaseDate string
	TotalTracks int
	CoverURL    string
}

func playlistCandidate(p services.SimplePlaylist, subjectID string) PlaylistCandidate {
	return PlaylistCandidate{
		ExternalID:      p.ID,
		OwnerID:         subjectID,
		ExternalOwnerID: p.Owner.ID,
		Name:            shared.NormalizeName(p.Name),
		Description:     p.Description,
		CoverURL:        services.CoverURL(p.Images),
		IsPublic:        p.Public,
		IsCollaborative: p.Collaborative,
		TrackCount:      p.Tracks.Total,
	}
}

func albumCandidate(a services.Album) AlbumCandidate {
	return AlbumCandidate{
		ExternalID:  a.ID,
		Name:        shared.NormalizeName(a.Name),
		AlbumType:   a.AlbumType,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: a.TotalTracks,
		CoverURL:    services.CoverURL(a.Images),
	}
}

func artistCandidates(credits []services.SimpleArtist) []ArtistCandidate {
	out := make([]ArtistCandidate, 0, len(credits))
	for _, a := range credits {
		out = append(out, ArtistCandidate{ExternalID: a.ID, Name: shared.NormalizeName(a.Name)})
	}
	return out
}

func trackCandidate(tr services.Track, position int) TrackCandidate {
	return TrackCandidate{
		ExternalID: tr.ID,
		Name:       shared.NormalizeName(tr.Name),
		Artists:    artistCandidates(tr.Artists),
		AlbumName:  shared.NormalizeName(tr.Album.Name),
		CoverURL:   services.CoverURL(tr.Album.Images),
		DurationMs: tr.DurationMs,
		Position:   position,
	}
}

// songCandidate derives the canonical song of a track. Tracks without an upstream id, or whose
// primary artist has none, produce no song.
func songCandidate(t TrackCandidate) (SongCandidate, bool) {
	primary, ok := t.PrimaryArtist()
	if t.ExternalID == "" || !ok || primary.ExternalID == "" {
		return SongCandidate{}, false
	}
	return SongCandidate{
		ExternalID:       t.ExternalID,
		Name:             t.Name,
		AlbumName:        t.AlbumName,
		CoverURL:         t.CoverURL,
		DurationMs:       t.DurationMs,
		ArtistExternalID: primary.ExternalID,
		Artists:          t.Artists,
	}, true
}
