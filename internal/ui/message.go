package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type playlistsLoaded struct {
	playlists []*models.Playlist
	err       error
}

// playlistsLoadedMsg is the constructor for [MsgPlaylistsLoaded]
func playlistsLoadedMsg(playlists []*models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsLoaded, data: playlistsLoaded{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result tasks.SyncResult) Msg {
	return Msg{kind: MsgSyncComplete, data: result}
}
