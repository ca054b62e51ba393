// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI drives one sync run for a subject:
//  1. [SyncTypeView] : pick a sync pipeline
//  2. [PlaylistView] : pick a stored playlist (playlist_tracks only)
//  3. [ArtistView] : enter an artist id (artist syncs only)
//  4. [ConfirmView] : confirm the run
//  5. [SyncView] : follow real-time progress updates
//  6. [ResultView] : processed and failed counts, or the fatal error
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
