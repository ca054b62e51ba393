package tasks

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/auth"
	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/ratelimit"
	"github.com/desertthunder/respect/internal/repositories"
	"github.com/desertthunder/respect/internal/services"
	"github.com/desertthunder/respect/internal/shared"
	tu "github.com/desertthunder/respect/internal/testing"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	db       *sql.DB
	store    *Store
	creds    *repositories.CredentialRepository
	upstream *tu.FakeUpstream
	clock    *tu.FakeClock
	orch     *Orchestrator
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newHarness wires a real client, limiter, token manager and store against a fake upstream.
// Subject U1 holds a valid credential.
func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	discard := log.New(io.Discard)
	db := setupTestDB(t)
	upstream := tu.NewFakeUpstream(t)
	clock := tu.NewFakeClock(epoch)

	creds := repositories.NewCredentialRepository(db)
	if err := creds.Save(&models.Credential{
		SubjectID: "U1", AccessToken: "tok", RefreshToken: "r1", ExpiresAt: epoch.Add(time.Hour),
	}); err != nil {
		t.Fatalf("failed to save credential: %v", err)
	}

	tokens := auth.NewTokenManager(creds,
		shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", TokenURL: upstream.TokenURL()},
		auth.WithClock(clock.Now),
		auth.WithLogger(discard),
	)
	limiter := ratelimit.New(ratelimit.Options{GeneralInterval: time.Second, HighVolumeInterval: time.Second}, clock)
	client := services.NewSpotifyClient(limiter, tokens,
		services.WithBaseURL(upstream.APIBaseURL()),
		services.WithTimeout(5*time.Second),
		services.WithLogger(discard),
	)

	store := NewStore(db)
	return &harness{
		db:       db,
		store:    store,
		creds:    creds,
		upstream: upstream,
		clock:    clock,
		orch:     NewOrchestrator(client, tokens, store, opts, discard),
	}
}

func (h *harness) run(t *testing.T, req Request) SyncResult {
	t.Helper()
	return h.orch.Run(context.Background(), req, nil)
}

func playlistJSON(id, name string, total int) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"description":   "",
		"owner":         map[string]any{"id": "spotify-u1", "display_name": "U1"},
		"public":        true,
		"collaborative": false,
		"tracks":        map[string]any{"total": total},
		"images":        []any{map[string]any{"url": "https://img/" + id}},
	}
}

func artistCredit(id, name string) map[string]any {
	return map[string]any{"id": id, "name": name}
}

func trackJSON(id, name string, artists ...map[string]any) map[string]any {
	credits := make([]any, 0, len(artists))
	for _, a := range artists {
		credits = append(credits, a)
	}
	return map[string]any{
		"id":          id,
		"name":        name,
		"artists":     credits,
		"album":       map[string]any{"id": "al-" + id, "name": "Album " + id, "images": []any{map[string]any{"url": "https://img/" + id}}},
		"duration_ms": 180000,
		"is_local":    false,
	}
}

func item(track map[string]any) map[string]any {
	return map[string]any{"added_at": "2025-01-02T03:04:05Z", "is_local": false, "track": track}
}

func nullItem() map[string]any {
	return map[string]any{"added_at": "2025-01-02T03:04:05Z", "is_local": false, "track": nil}
}

func page(items ...map[string]any) map[string]any {
	list := make([]any, 0, len(items))
	for _, i := range items {
		list = append(list, i)
	}
	return tu.Page(list, "")
}

func assertResult(t *testing.T, res SyncResult, success bool, processed, failed int) {
	t.Helper()
	if res.Success != success || res.Processed != processed || res.Failed != failed {
		t.Errorf("expected {success:%v processed:%d failed:%d}, got {success:%v processed:%d failed:%d error:%q}",
			success, processed, failed, res.Success, res.Processed, res.Failed, res.Error)
	}
}

func TestPlaylistsSync(t *testing.T) {
	t.Run("two playlists against empty storage", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill", 0), playlistJSON("p2", "Workout", 0)))

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 2, 0)

		for id, name := range map[string]string{"p1": "Chill", "p2": "Workout"} {
			p, err := h.store.Playlists.GetByExternalID(id)
			if err != nil {
				t.Fatalf("playlist %s not stored: %v", id, err)
			}
			if p.Name != name || p.OwnerID != "U1" {
				t.Errorf("unexpected playlist %+v", p)
			}
			if p.CoverURL != "https://img/"+id {
				t.Errorf("expected cover of %s, got %q", id, p.CoverURL)
			}
		}
	})

	t.Run("second run with unchanged data writes nothing", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill", 0), playlistJSON("p2", "Workout", 0)))

		h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		before, err := h.store.Playlists.GetByExternalID("p1")
		if err != nil {
			t.Fatalf("GetByExternalID failed: %v", err)
		}

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 2, 0)

		all, err := h.store.Playlists.List(map[string]any{"owner_id": "U1"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 playlists after two runs, got %d", len(all))
		}

		after, err := h.store.Playlists.GetByExternalID("p1")
		if err != nil {
			t.Fatalf("GetByExternalID failed: %v", err)
		}
		if after.ID != before.ID || !after.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("expected untouched row, before %+v after %+v", before, after)
		}
	})

	t.Run("changed fields are updated in place", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill", 0)))
		h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})

		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill  Vibes", 4)))
		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 1, 0)

		p, err := h.store.Playlists.GetByExternalID("p1")
		if err != nil {
			t.Fatalf("GetByExternalID failed: %v", err)
		}
		if p.Name != "Chill Vibes" || p.TrackCount != 4 {
			t.Errorf("expected refreshed fields, got %+v", p)
		}
		if p.LastSyncedAt == nil {
			t.Error("expected last synced time to be set")
		}
	})

	t.Run("playlist owned by another subject is counted as failed", func(t *testing.T) {
		h := newHarness(t, Options{})
		if err := h.store.Playlists.Create(&models.Playlist{ExternalID: "p2", OwnerID: "U2", Name: "Theirs"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill", 0), playlistJSON("p2", "Theirs", 0)))

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 1, 1)

		p, _ := h.store.Playlists.GetByExternalID("p2")
		if p.OwnerID != "U2" {
			t.Errorf("foreign playlist must keep its owner, got %q", p.OwnerID)
		}
	})

	t.Run("pages until next is empty", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.Handle("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("offset") == "0" {
				tu.WriteJSON(w, http.StatusOK, tu.Page([]any{playlistJSON("p1", "One", 0)}, "https://api/next"))
				return
			}
			tu.WriteJSON(w, http.StatusOK, page(playlistJSON("p2", "Two", 0)))
		})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 2, 0)

		if h.upstream.Hits("/me/playlists") != 2 {
			t.Errorf("expected 2 page requests, got %d", h.upstream.Hits("/me/playlists"))
		}
	})

	t.Run("rate limited page is retried after the wait", func(t *testing.T) {
		h := newHarness(t, Options{})
		calls := 0
		h.upstream.Handle("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.Header().Set("Retry-After", "2")
				tu.WriteJSON(w, http.StatusTooManyRequests, map[string]any{"error": "slow down"})
				return
			}
			tu.WriteJSON(w, http.StatusOK, page(playlistJSON("p1", "Chill", 0)))
		})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 1, 0)

		waited := false
		for _, d := range h.clock.Sleeps() {
			if d == 2*time.Second {
				waited = true
			}
		}
		if !waited {
			t.Errorf("expected a 2s reactive wait, sleeps were %v", h.clock.Sleeps())
		}
	})

	t.Run("failed listing ends the run", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusInternalServerError, map[string]any{"error": "boom"})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrUpstreamRequest) {
			t.Errorf("expected ErrUpstreamRequest, got %v", res.Err)
		}
	})
}

func TestPlaylistTracksSync(t *testing.T) {
	t.Run("null track is skipped without failing", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/playlists/p1", http.StatusOK, playlistJSON("p1", "Chill", 2))
		h.upstream.JSON("/playlists/p1/tracks", http.StatusOK, page(
			item(trackJSON("t1", "Song", artistCredit("a1", "X"))),
			nullItem(),
		))

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylistTracks, PlaylistID: "p1"})
		assertResult(t, res, true, 1, 0)

		p, err := h.store.Playlists.GetByExternalID("p1")
		if err != nil {
			t.Fatalf("playlist should be stored: %v", err)
		}
		tracks, err := h.store.Tracks.ListByPlaylist(p.ID)
		if err != nil {
			t.Fatalf("ListByPlaylist failed: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ExternalID != "t1" || tracks[0].Position != 0 {
			t.Fatalf("expected only t1 at position 0, got %+v", tracks)
		}
		if tracks[0].ArtistExternalID != "a1" || tracks[0].ArtistName != "X" {
			t.Errorf("expected primary artist a1, got %+v", tracks[0])
		}
		if tracks[0].AddedAt == nil {
			t.Error("expected added_at to be parsed")
		}
		if p.LastSyncedAt == nil || p.TrackCount != 2 {
			t.Errorf("expected playlist marked synced keeping the upstream total, got %+v", p)
		}
	})

	t.Run("replaces previous rows in source order", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/playlists/p1", http.StatusOK, playlistJSON("p1", "Chill", 2))
		h.upstream.JSON("/playlists/p1/tracks", http.StatusOK, page(
			item(trackJSON("x", "X", artistCredit("a1", "A"))),
			item(trackJSON("y", "Y", artistCredit("a1", "A"))),
		))
		h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylistTracks, PlaylistID: "p1"})

		h.upstream.JSON("/playlists/p1/tracks", http.StatusOK, page(
			item(trackJSON("a", "A", artistCredit("a1", "A"))),
			item(trackJSON("b", "B", artistCredit("a1", "A"))),
			item(trackJSON("c", "C", artistCredit("a1", "A"))),
		))
		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylistTracks, PlaylistID: "p1"})
		assertResult(t, res, true, 3, 0)

		p, _ := h.store.Playlists.GetByExternalID("p1")
		tracks, err := h.store.Tracks.ListByPlaylist(p.ID)
		if err != nil {
			t.Fatalf("ListByPlaylist failed: %v", err)
		}

		want := []string{"a", "b", "c"}
		if len(tracks) != len(want) {
			t.Fatalf("expected %d rows, got %d", len(want), len(tracks))
		}
		for i, tr := range tracks {
			if tr.ExternalID != want[i] || tr.Position != i {
				t.Errorf("row %d: expected %s at %d, got %s at %d", i, want[i], i, tr.ExternalID, tr.Position)
			}
		}

		if h.upstream.Hits("/playlists/p1") != 1 {
			t.Errorf("stored playlist should not be fetched again, got %d fetches", h.upstream.Hits("/playlists/p1"))
		}
	})

	t.Run("missing playlist id is rejected", func(t *testing.T) {
		h := newHarness(t, Options{})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylistTracks})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", res.Err)
		}
		if h.upstream.TotalHits() != 0 {
			t.Errorf("expected no upstream calls, got %d", h.upstream.TotalHits())
		}
	})

	t.Run("playlist of another subject is rejected before the network", func(t *testing.T) {
		h := newHarness(t, Options{})
		if err := h.store.Playlists.Create(&models.Playlist{ExternalID: "p1", OwnerID: "U2", Name: "Theirs"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylistTracks, PlaylistID: "p1"})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrAuthorizationMismatch) {
			t.Errorf("expected ErrAuthorizationMismatch, got %v", res.Err)
		}
		if h.upstream.TotalHits() != 0 || h.upstream.TokenRequests() != 0 {
			t.Error("expected no network traffic")
		}
	})
}

func TestFullSync(t *testing.T) {
	register := func(h *harness) {
		h.upstream.JSON("/me/playlists", http.StatusOK, page(
			playlistJSON("p1", "One", 2),
			playlistJSON("p2", "Two", 2),
			playlistJSON("p3", "Gone", 0),
		))
		h.upstream.JSON("/playlists/p1/tracks", http.StatusOK, page(
			item(trackJSON("t1", "First", artistCredit("a1", "Alpha"))),
			item(trackJSON("t2", "Second", artistCredit("a2", "Beta"), artistCredit("a1", "Alpha"))),
			nullItem(),
		))
		h.upstream.JSON("/playlists/p2/tracks", http.StatusOK, page(
			item(trackJSON("t1", "First", artistCredit("a1", "Alpha"))),
			item(trackJSON("t3", "Third", artistCredit("a1", "Alpha"))),
		))
	}

	t.Run("extracts unique artists and songs", func(t *testing.T) {
		h := newHarness(t, Options{})
		register(h)

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncFull})

		// 3 playlists, 3 track sets (p3 fails), 2 artists, 3 songs
		assertResult(t, res, true, 10, 1)

		for _, id := range []string{"a1", "a2"} {
			n, err := h.store.Artists.CountByExternalID(id)
			if err != nil {
				t.Fatalf("CountByExternalID failed: %v", err)
			}
			if n != 1 {
				t.Errorf("expected one artist %s, got %d", id, n)
			}
		}

		songs, err := h.store.Songs.Count()
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if songs != 3 {
			t.Errorf("expected 3 songs, got %d", songs)
		}

		second, err := h.store.Songs.GetByExternalID("t2")
		if err != nil {
			t.Fatalf("song t2 missing: %v", err)
		}
		beta, _ := h.store.Artists.GetByExternalID("a2")
		if second.ArtistID != beta.ID {
			t.Errorf("expected t2 credited to its primary artist a2")
		}
	})

	t.Run("repeated runs keep one row per artist", func(t *testing.T) {
		h := newHarness(t, Options{})
		register(h)

		first := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncFull})
		second := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncFull})

		if first.Processed+first.Failed != second.Processed+second.Failed {
			t.Errorf("expected same examined count, got %+v and %+v", first, second)
		}

		artists, err := h.store.Artists.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(artists) != 2 {
			t.Errorf("expected 2 artists after two runs, got %d", len(artists))
		}
		songs, _ := h.store.Songs.Count()
		if songs != 3 {
			t.Errorf("expected 3 songs after two runs, got %d", songs)
		}
	})

	t.Run("track sync keeps the upstream total so unchanged playlists stay untouched", func(t *testing.T) {
		h := newHarness(t, Options{})
		register(h)

		h.run(t, Request{SubjectID: "U1", SyncType: models.SyncFull})
		before, err := h.store.Playlists.GetByExternalID("p1")
		if err != nil {
			t.Fatalf("GetByExternalID failed: %v", err)
		}
		if before.TrackCount != 2 {
			t.Fatalf("expected upstream total 2 including the null item, got %d", before.TrackCount)
		}

		out, err := h.orch.upserter.UpsertPlaylist(context.Background(), PlaylistCandidate{
			ExternalID:      "p1",
			OwnerID:         "U1",
			ExternalOwnerID: "spotify-u1",
			Name:            "One",
			CoverURL:        "https://img/p1",
			IsPublic:        true,
			TrackCount:      2,
		})
		if err != nil {
			t.Fatalf("UpsertPlaylist failed: %v", err)
		}
		if out.Created || out.Updated || out.ID != before.ID {
			t.Errorf("expected no-op upsert of unchanged playlist, got %+v", out)
		}

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 3, 0)

		after, _ := h.store.Playlists.GetByExternalID("p1")
		if after.TrackCount != 2 || !after.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("expected untouched row, before %+v after %+v", before, after)
		}
	})

	t.Run("song of an unsaved artist is deferred", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "One", 2)))
		h.upstream.JSON("/playlists/p1/tracks", http.StatusOK, page(
			item(trackJSON("t1", "First", artistCredit("a1", "Alpha"))),
			item(trackJSON("t4", "Orphan", artistCredit("a9", ""))),
		))

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncFull})

		// playlist, track set, a1 and t1 succeed; a9 and t4 fail
		assertResult(t, res, true, 4, 2)

		if _, err := h.store.Songs.GetByExternalID("t4"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected t4 to be deferred, got %v", err)
		}
	})

	t.Run("artist details are fetched when enabled", func(t *testing.T) {
		h := newHarness(t, Options{FetchArtistDetails: true})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "One", 1)))
		h.upstream.JSON("/playlists/p1/tracks", http.StatusOK, page(item(trackJSON("t1", "First", artistCredit("a1", "Alpha")))))
		h.upstream.JSON("/artists/a1", http.StatusOK, map[string]any{
			"id": "a1", "name": "Alpha", "genres": []string{"jazz", "soul"},
			"followers": map[string]int{"total": 42}, "images": []any{map[string]any{"url": "https://img/a1"}},
		})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncFull})
		assertResult(t, res, true, 4, 0)

		a, err := h.store.Artists.GetByExternalID("a1")
		if err != nil {
			t.Fatalf("artist missing: %v", err)
		}
		if a.Followers != 42 || a.AvatarURL != "https://img/a1" || len(a.Genres) != 2 {
			t.Errorf("expected enriched artist, got %+v", a)
		}
	})
}

func TestArtistSyncs(t *testing.T) {
	registerArtist := func(h *harness) {
		h.upstream.JSON("/artists/a1", http.StatusOK, map[string]any{
			"id": "a1", "name": "Alpha", "genres": []string{"jazz"}, "followers": map[string]int{"total": 7},
		})
	}

	t.Run("artist profile", func(t *testing.T) {
		h := newHarness(t, Options{})
		registerArtist(h)

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncArtistProfile, ArtistID: "a1"})
		assertResult(t, res, true, 1, 0)

		h.run(t, Request{SubjectID: "U1", SyncType: models.SyncArtistProfile, ArtistID: "a1"})
		n, _ := h.store.Artists.CountByExternalID("a1")
		if n != 1 {
			t.Errorf("expected one artist row, got %d", n)
		}

		a, _ := h.store.Artists.GetByExternalID("a1")
		if a.Followers != 7 || len(a.Genres) != 1 || a.Genres[0] != "jazz" {
			t.Errorf("unexpected artist %+v", a)
		}
	})

	t.Run("missing artist id is rejected", func(t *testing.T) {
		h := newHarness(t, Options{})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncArtistSongs})
		if res.Success || !errors.Is(res.Err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %+v", res)
		}
	})

	t.Run("artist songs", func(t *testing.T) {
		h := newHarness(t, Options{})
		registerArtist(h)
		h.upstream.JSON("/artists/a1/top-tracks", http.StatusOK, map[string]any{"tracks": []any{
			trackJSON("t1", "Hit", artistCredit("a1", "Alpha")),
			trackJSON("t2", "Feature", artistCredit("a2", "Beta"), artistCredit("a1", "Alpha")),
			trackJSON("t3", "Cover", artistCredit("a3", "Gamma")),
			trackJSON("", "Local", artistCredit("a1", "Alpha")),
		}})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncArtistSongs, ArtistID: "a1"})

		// artist, t1 and t2 succeed; t3 has no synced artist and the last track has no id
		assertResult(t, res, true, 3, 2)

		a, _ := h.store.Artists.GetByExternalID("a1")
		songs, err := h.store.Songs.ListByArtist(a.ID)
		if err != nil {
			t.Fatalf("ListByArtist failed: %v", err)
		}
		if len(songs) != 2 {
			t.Errorf("expected 2 songs credited to a1, got %d", len(songs))
		}
	})

	t.Run("artist albums", func(t *testing.T) {
		h := newHarness(t, Options{})
		registerArtist(h)
		album := func(id string) map[string]any {
			return map[string]any{"id": id, "name": "Album " + id, "album_type": "album", "release_date": "2020-01-01", "total_tracks": 10}
		}
		h.upstream.Handle("/artists/a1/albums", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("offset") == "0" {
				tu.WriteJSON(w, http.StatusOK, tu.Page([]any{album("al1"), album("al2")}, "https://api/next"))
				return
			}
			tu.WriteJSON(w, http.StatusOK, page(album("al3")))
		})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncArtistAlbums, ArtistID: "a1"})
		assertResult(t, res, true, 4, 0)

		a, _ := h.store.Artists.GetByExternalID("a1")
		albums, err := h.store.Albums.ListByArtist(a.ID)
		if err != nil {
			t.Fatalf("ListByArtist failed: %v", err)
		}
		if len(albums) != 3 {
			t.Errorf("expected 3 albums, got %d", len(albums))
		}
	})

	t.Run("unknown artist ends the run", func(t *testing.T) {
		h := newHarness(t, Options{})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncArtistProfile, ArtistID: "nope"})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound in chain, got %v", res.Err)
		}
	})
}

func TestRunFailures(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		h := newHarness(t, Options{})

		res := h.run(t, Request{SubjectID: "U2", SyncType: models.SyncPlaylists})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrAuthentication) {
			t.Errorf("expected ErrAuthentication, got %v", res.Err)
		}
		if h.upstream.TotalHits() != 0 {
			t.Errorf("expected no upstream calls, got %d", h.upstream.TotalHits())
		}
	})

	t.Run("refresh failure is not retried", func(t *testing.T) {
		h := newHarness(t, Options{})
		if err := h.creds.Save(&models.Credential{
			SubjectID: "U1", AccessToken: "old", RefreshToken: "r1", ExpiresAt: epoch.Add(-time.Minute),
		}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		h.upstream.FailTokens(http.StatusBadRequest)

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrAuthentication) {
			t.Errorf("expected ErrAuthentication, got %v", res.Err)
		}
		if h.upstream.TokenRequests() != 1 {
			t.Errorf("expected exactly one refresh attempt, got %d", h.upstream.TokenRequests())
		}
		if h.upstream.TotalHits() != 0 {
			t.Errorf("expected no API calls, got %d", h.upstream.TotalHits())
		}
	})

	t.Run("expired credential is refreshed once", func(t *testing.T) {
		h := newHarness(t, Options{})
		if err := h.creds.Save(&models.Credential{
			SubjectID: "U1", AccessToken: "old", RefreshToken: "r1", ExpiresAt: epoch.Add(-time.Minute),
		}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill", 0)))

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, true, 1, 0)

		if h.upstream.TokenRequests() != 1 {
			t.Errorf("expected one refresh, got %d", h.upstream.TokenRequests())
		}
		if h.upstream.LastAuthorization() != "Bearer fresh-token-1" {
			t.Errorf("expected refreshed token on the wire, got %q", h.upstream.LastAuthorization())
		}
	})

	t.Run("caller other than the subject", func(t *testing.T) {
		h := newHarness(t, Options{})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists, CallerID: "U2"})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrAuthorizationMismatch) {
			t.Errorf("expected ErrAuthorizationMismatch, got %v", res.Err)
		}
		if h.upstream.TotalHits() != 0 || h.upstream.TokenRequests() != 0 {
			t.Error("expected no network traffic")
		}
	})

	t.Run("unknown sync type", func(t *testing.T) {
		h := newHarness(t, Options{})

		res := h.run(t, Request{SubjectID: "U1", SyncType: "everything"})
		if res.Success || !errors.Is(res.Err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %+v", res)
		}
	})

	t.Run("run deadline maps to timeout", func(t *testing.T) {
		h := newHarness(t, Options{RunTimeout: 50 * time.Millisecond})
		h.upstream.Handle("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		assertResult(t, res, false, 0, 0)

		if !errors.Is(res.Err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", res.Err)
		}
	})
}

func TestSyncAudit(t *testing.T) {
	t.Run("every run appends one entry", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill", 0)))

		h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists})
		h.run(t, Request{SubjectID: "U1", SyncType: models.SyncPlaylists, CallerID: "U9"})

		logs, err := h.store.SyncLogs.ListBySubject("U1", 0)
		if err != nil {
			t.Fatalf("ListBySubject failed: %v", err)
		}
		if len(logs) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(logs))
		}

		statuses := map[models.SyncStatus]int{}
		for _, l := range logs {
			statuses[l.Status]++
		}
		if statuses[models.StatusSuccess] != 1 || statuses[models.StatusFailed] != 1 {
			t.Errorf("expected one success and one failure, got %v", statuses)
		}
	})

	t.Run("partial status when items fail", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "One", 0)))

		res := h.run(t, Request{SubjectID: "U1", SyncType: models.SyncFull})
		assertResult(t, res, true, 1, 1)

		logs, _ := h.store.SyncLogs.ListBySubject("U1", 1)
		if len(logs) != 1 || logs[0].Status != models.StatusPartial {
			t.Fatalf("expected a partial entry, got %+v", logs)
		}
		if logs[0].ItemsProcessed != 1 || logs[0].ItemsFailed != 1 {
			t.Errorf("unexpected counters %+v", logs[0])
		}
	})

	t.Run("progress reaches a terminal state", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.upstream.JSON("/me/playlists", http.StatusOK, page(playlistJSON("p1", "Chill", 0)))

		progress := make(chan ProgressUpdate, 64)
		h.orch.Run(context.Background(), Request{SubjectID: "U1", SyncType: models.SyncPlaylists}, progress)
		close(progress)

		var states []State
		for u := range progress {
			states = append(states, u.State)
		}
		if len(states) == 0 || states[0] != Init {
			t.Fatalf("expected run to start in Init, got %v", states)
		}
		if last := states[len(states)-1]; last != Done {
			t.Errorf("expected Done last, got %v", last)
		}

		seen := map[State]bool{}
		for _, s := range states {
			seen[s] = true
		}
		for _, s := range []State{TokenReady, Fetching, Persisting, Logged} {
			if !seen[s] {
				t.Errorf("expected a %s update", s)
			}
		}
	})
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Create(*models.SyncLog) error {
	f.calls++
	return errors.New("disk full")
}

func TestSyncLogger(t *testing.T) {
	t.Run("write failure is swallowed", func(t *testing.T) {
		rec := &failingRecorder{}
		logger := NewSyncLogger(rec, log.New(io.Discard))

		if logger.Record(context.Background(), "U1", models.SyncPlaylists, SyncResult{Success: true, Processed: 1}) {
			t.Error("expected Record to report the failed write")
		}
		if rec.calls != 1 {
			t.Errorf("expected a single write attempt, got %d", rec.calls)
		}
	})
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"valid", Request{SubjectID: "U1", SyncType: models.SyncFull}, nil},
		{"missing subject", Request{SyncType: models.SyncFull}, shared.ErrMissingArgument},
		{"missing artist", Request{SubjectID: "U1", SyncType: models.SyncArtistAlbums}, shared.ErrMissingArgument},
		{"unknown type", Request{SubjectID: "U1", SyncType: "nope"}, shared.ErrInvalidArgument},
		{"mismatched caller", Request{SubjectID: "U1", SyncType: models.SyncFull, CallerID: "U2"}, shared.ErrAuthorizationMismatch},
		{"matching caller", Request{SubjectID: "U1", SyncType: models.SyncFull, CallerID: "U1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
