// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func subjectFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "subject",
		Aliases:  []string{"s"},
		Usage:    "Subject (user) id the command acts for",
		Required: true,
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "List pending migrations",
				Action: r.SetupStatus,
			},
		},
	}
}

// credentialsCommand manages stored Spotify credentials.
func credentialsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Aliases: []string{"creds"},
		Usage:   "Manage stored Spotify credentials",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Store an access and refresh token for a subject",
				Flags: []cli.Flag{
					subjectFlag(),
					&cli.StringFlag{
						Name:  "access-token",
						Usage: "Current access token (empty forces a refresh on first use)",
					},
					&cli.StringFlag{
						Name:     "refresh-token",
						Usage:    "Refresh token",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "expires-in",
						Usage: "Remaining lifetime of the access token",
						Value: time.Hour,
					},
				},
				Action: r.CredentialsSet,
			},
			{
				Name:   "show",
				Usage:  "Show a subject's credential with tokens masked",
				Flags:  []cli.Flag{subjectFlag()},
				Action: r.CredentialsShow,
			},
			{
				Name:   "delete",
				Usage:  "Remove a subject's credential",
				Flags:  []cli.Flag{subjectFlag()},
				Action: r.CredentialsDelete,
			},
		},
	}
}

// syncCommand runs sync pipelines.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run sync pipelines",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one sync for a subject",
				Flags: []cli.Flag{
					subjectFlag(),
					&cli.StringFlag{
						Name:     "type",
						Aliases:  []string{"t"},
						Usage:    "Sync type (see 'respect sync types')",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Spotify playlist id (playlist_tracks)",
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Spotify artist id (artist_profile, artist_songs, artist_albums)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the result as JSON",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:   "types",
				Usage:  "List the available sync types",
				Action: r.SyncTypes,
			},
		},
	}
}

// logsCommand reads the sync audit log.
func logsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Inspect the sync audit log",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a subject's recent sync runs",
				Flags: []cli.Flag{
					subjectFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries (0 for all)",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, csv or json",
						Value:   "table",
					},
				},
				Action: r.LogsList,
			},
		},
	}
}

// playlistsCommand reads synced playlists from the catalog.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Browse synced playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a subject's synced playlists",
				Flags: []cli.Flag{
					subjectFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "export",
				Usage: "Export a synced playlist and its tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Spotify playlist id",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: md, csv or txt",
						Value:   "md",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
						Value:   ".",
					},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

// serveCommand starts the sync RPC server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the sync endpoint over HTTP",
		Action: r.Serve,
	}
}

// tokenCommand issues caller tokens for the sync endpoint.
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage caller tokens for the sync endpoint",
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue a signed caller token for a subject",
				Flags: []cli.Flag{
					subjectFlag(),
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: 24 * time.Hour,
					},
				},
				Action: r.TokenIssue,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive syncs.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for running syncs",
		Flags:   []cli.Flag{subjectFlag()},
		Action:  r.TUI,
	}
}
