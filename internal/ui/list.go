package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/respect/internal/models"
)

var (
	_ list.Item = syncTypeItem{}
	_ list.Item = playlistItem{}
)

// syncTypeItem wraps [models.SyncType] to implement [list.Item].
type syncTypeItem struct {
	syncType models.SyncType
}

func (i syncTypeItem) FilterValue() string { return string(i.syncType) }
func (i syncTypeItem) Title() string       { return string(i.syncType) }
func (i syncTypeItem) Description() string { return i.syncType.Description() }

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist *models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.LastSyncedAt != nil {
		desc = fmt.Sprintf("%s • synced %s", desc, i.playlist.LastSyncedAt.Local().Format(time.DateTime))
	} else {
		desc += " • never synced"
	}
	return desc
}

func syncTypeItems() []list.Item {
	items := make([]list.Item, len(models.SyncTypes))
	for i, t := range models.SyncTypes {
		items[i] = syncTypeItem{syncType: t}
	}
	return items
}

func playlistItems(playlists []*models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{playlist: p}
	}
	return items
}
