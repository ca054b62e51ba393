package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/respect/internal/shared"
)

func TestCredential(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh token is not expiring", func(t *testing.T) {
		c := &Credential{SubjectID: "U1", AccessToken: "tok", ExpiresAt: now.Add(time.Hour)}
		if c.ExpiresWithin(now, 30*time.Second) {
			t.Error("expected fresh token")
		}
	})

	t.Run("token inside the skew window is expiring", func(t *testing.T) {
		c := &Credential{SubjectID: "U1", AccessToken: "tok", ExpiresAt: now.Add(10 * time.Second)}
		if !c.ExpiresWithin(now, 30*time.Second) {
			t.Error("expected token within skew to be treated as expired")
		}
	})

	t.Run("empty access token is expiring", func(t *testing.T) {
		c := &Credential{SubjectID: "U1", ExpiresAt: now.Add(time.Hour)}
		if !c.ExpiresWithin(now, 0) {
			t.Error("expected empty token to need a refresh")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("playlist requires an owner", func(t *testing.T) {
		p := &Playlist{ExternalID: "p1", Name: "Chill"}
		if err := p.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("song without artist is a referential integrity error", func(t *testing.T) {
		s := &Song{Name: "Track"}
		if err := s.Validate(); !errors.Is(err, shared.ErrReferentialIntegrity) {
			t.Errorf("expected ErrReferentialIntegrity, got %v", err)
		}
	})

	t.Run("sync log rejects unknown status", func(t *testing.T) {
		l := &SyncLog{SubjectID: "U1", SyncType: SyncFull, Status: "meh"}
		if err := l.Validate(); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestSyncType(t *testing.T) {
	t.Run("ParseSyncType accepts known types", func(t *testing.T) {
		for _, st := range SyncTypes {
			got, err := ParseSyncType(" " + string(st) + " ")
			if err != nil || got != st {
				t.Errorf("ParseSyncType(%q) = %q, %v", st, got, err)
			}
		}
	})

	t.Run("ParseSyncType rejects unknown types", func(t *testing.T) {
		if _, err := ParseSyncType("everything"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("parameter requirements", func(t *testing.T) {
		if !SyncPlaylistTracks.NeedsPlaylist() || SyncFull.NeedsPlaylist() {
			t.Error("only playlist_tracks needs a playlist")
		}
		if !SyncArtistSongs.NeedsArtist() || SyncPlaylists.NeedsArtist() {
			t.Error("only artist pipelines need an artist")
		}
	})

	t.Run("StatusFor", func(t *testing.T) {
		cases := []struct {
			success bool
			failed  int
			want    SyncStatus
		}{
			{true, 0, StatusSuccess},
			{true, 2, StatusPartial},
			{false, 0, StatusFailed},
		}
		for _, c := range cases {
			if got := StatusFor(c.success, c.failed); got != c.want {
				t.Errorf("StatusFor(%v, %d) = %s, want %s", c.success, c.failed, got, c.want)
			}
		}
	})
}
