package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

// insertOnSequenceBump stores row in table as soon as the table's sequence is incremented, which
// happens between the upserter's lookup and its insert.
func insertOnSequenceBump(t *testing.T, db *sql.DB, table, columns, values string) {
	t.Helper()

	stmt := fmt.Sprintf(`CREATE TRIGGER concurrent_%[1]s AFTER UPDATE ON %[1]s_sequence
		BEGIN INSERT OR IGNORE INTO %[1]s (%[2]s) VALUES (%[3]s); END`, table, columns, values)
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("failed to create trigger: %v", err)
	}
}

func TestUpsertConcurrentInsert(t *testing.T) {
	const stamp = "'2025-01-01 12:00:00'"

	newUpserter := func(t *testing.T) (*Upserter, *Store, *sql.DB) {
		db := setupTestDB(t)
		store := NewStore(db)
		return NewUpserter(store, nil, false, log.New(io.Discard)), store, db
	}

	t.Run("album stored by another run resolves to its row", func(t *testing.T) {
		u, store, db := newUpserter(t)
		artist := &models.Artist{ExternalID: "a1", Name: "Alpha"}
		if err := store.Artists.Create(artist); err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}
		insertOnSequenceBump(t, db, "albums",
			"id, sequence, external_id, artist_id, name, created_at, updated_at",
			fmt.Sprintf("'winner', 0, 'al1', '%s', 'Album al1', %s, %s", artist.ID, stamp, stamp))

		out, err := u.UpsertAlbum(context.Background(), AlbumCandidate{ExternalID: "al1", Name: "Album al1"}, artist.ID)
		if err != nil {
			t.Fatalf("expected recovery from the duplicate insert, got %v", err)
		}
		if out.ID != "winner" || out.Created || out.Updated {
			t.Errorf("expected existing album to be reused, got %+v", out)
		}

		albums, err := store.Albums.ListByArtist(artist.ID)
		if err != nil {
			t.Fatalf("ListByArtist failed: %v", err)
		}
		if len(albums) != 1 {
			t.Errorf("expected one album row, got %d", len(albums))
		}
	})

	t.Run("playlist stored by another run is refreshed in place", func(t *testing.T) {
		u, store, db := newUpserter(t)
		insertOnSequenceBump(t, db, "playlists",
			"id, sequence, external_id, owner_id, name, created_at, updated_at",
			fmt.Sprintf("'winner', 0, 'p1', 'U1', 'Old', %s, %s", stamp, stamp))

		out, err := u.UpsertPlaylist(context.Background(), PlaylistCandidate{ExternalID: "p1", OwnerID: "U1", Name: "Chill", TrackCount: 3})
		if err != nil {
			t.Fatalf("expected recovery from the duplicate insert, got %v", err)
		}
		if out.ID != "winner" || out.Created || !out.Updated {
			t.Errorf("expected existing playlist to be updated, got %+v", out)
		}

		all, err := store.Playlists.List(map[string]any{"owner_id": "U1"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 1 || all[0].Name != "Chill" || all[0].TrackCount != 3 {
			t.Errorf("expected a single refreshed playlist, got %+v", all)
		}
	})

	t.Run("playlist stored by another subject is still rejected", func(t *testing.T) {
		u, _, db := newUpserter(t)
		insertOnSequenceBump(t, db, "playlists",
			"id, sequence, external_id, owner_id, name, created_at, updated_at",
			fmt.Sprintf("'winner', 0, 'p1', 'U2', 'Theirs', %s, %s", stamp, stamp))

		_, err := u.UpsertPlaylist(context.Background(), PlaylistCandidate{ExternalID: "p1", OwnerID: "U1", Name: "Mine"})
		if !errors.Is(err, shared.ErrAuthorizationMismatch) {
			t.Fatalf("expected ErrAuthorizationMismatch, got %v", err)
		}
	})
}
