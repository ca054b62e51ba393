package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/respect/internal/formatter"
	"github.com/desertthunder/respect/internal/repositories"
)

// PlaylistsList prints the playlists synced for a subject.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	subject := cmd.String("subject")
	playlists, err := repositories.NewPlaylistRepository(db).List(map[string]any{"owner_id": subject})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	if len(playlists) == 0 {
		return r.writePlain("no playlists synced for %s\n", subject)
	}

	r.writePlainHeader("Playlists: " + subject)
	for _, p := range playlists {
		synced := "never"
		if p.LastSyncedAt != nil {
			synced = p.LastSyncedAt.Local().Format(time.DateTime)
		}
		r.writePlain("%-24s %-40s %4d tracks  synced %s\n", p.ExternalID, p.Name, p.TrackCount, synced)
	}
	return nil
}

// PlaylistsExport writes a synced playlist and its tracks to disk.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"), formatter.FormatMarkdown, formatter.FormatCSV, formatter.FormatText)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	playlist, err := repositories.NewPlaylistRepository(db).GetByExternalID(cmd.String("id"))
	if err != nil {
		return err
	}

	tracks, err := repositories.NewTrackRepository(db).ListByPlaylist(playlist.ID)
	if err != nil {
		return err
	}

	export := &formatter.PlaylistExport{Playlist: playlist, Tracks: tracks}
	files, err := formatter.WritePlaylistExport(export, cmd.String("output"), format)
	if err != nil {
		return err
	}

	r.logger.Info("playlist exported", "playlist", playlist.ExternalID, "tracks", len(tracks), "format", format)
	for _, f := range files {
		r.writePlain("✓ wrote %s\n", f)
	}
	return nil
}
