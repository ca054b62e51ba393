package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SyncTypeView ViewState = iota
	PlaylistView
	ArtistView
	ConfirmView
	SyncView
	ResultView
)

// Runner executes one sync request, reporting progress on the channel.
type Runner interface {
	Run(ctx context.Context, req tasks.Request, progress chan<- tasks.ProgressUpdate) tasks.SyncResult
}

// PlaylistLister returns stored playlists matching criteria.
type PlaylistLister interface {
	List(criteria map[string]any) ([]*models.Playlist, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	subject   string
	view      ViewState
	runner    Runner
	playlists PlaylistLister
	width     int
	height    int

	typeList     list.Model
	playlistList list.Model
	artistInput  textinput.Model
	spinner      spinner.Model

	request      tasks.Request
	progressChan chan tasks.ProgressUpdate
	resultChan   chan tasks.SyncResult
	progress     tasks.ProgressUpdate
	result       *tasks.SyncResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model that runs syncs for subject.
func NewModel(ctx context.Context, subject string, runner Runner, playlists PlaylistLister) *Model {
	typeList := list.New(syncTypeItems(), list.NewDefaultDelegate(), 0, 0)
	typeList.Title = "Sync Type"

	playlistList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlistList.Title = "Stored Playlists"

	input := textinput.New()
	input.Placeholder = "artist id"
	input.CharLimit = 64

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &Model{
		ctx:          ctx,
		subject:      subject,
		view:         SyncTypeView,
		runner:       runner,
		playlists:    playlists,
		typeList:     typeList,
		playlistList: playlistList,
		artistInput:  input,
		spinner:      spin,
		request:      tasks.Request{SubjectID: subject, CallerID: subject},
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads the subject's stored playlists for the playlist picker.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.typeList.SetSize(msg.Width-4, msg.Height-8)
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case SyncTypeView:
			return m.handleSyncTypeKeys(msg)
		case PlaylistView:
			return m.handlePlaylistKeys(msg)
		case ArtistView:
			return m.handleArtistKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsLoaded:
		loaded := msg.data.(playlistsLoaded)
		if loaded.err != nil {
			m.err = loaded.err
			return m, nil
		}
		cmd := m.playlistList.SetItems(playlistItems(loaded.playlists))
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		result := msg.data.(tasks.SyncResult)
		m.result = &result
		m.progressChan = nil
		m.resultChan = nil
		m.view = ResultView
		return m, m.fetchPlaylists()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SyncTypeView:
		return m.renderList(m.typeList)
	case PlaylistView:
		return m.renderPlaylists()
	case ArtistView:
		return m.renderArtistInput()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSyncTypeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.typeList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			selected, ok := m.typeList.SelectedItem().(syncTypeItem)
			if !ok {
				return m, nil
			}
			return m.selectSyncType(selected.syncType)
		}
	}

	var cmd tea.Cmd
	m.typeList, cmd = m.typeList.Update(msg)
	return m, cmd
}

func (m *Model) selectSyncType(t models.SyncType) (tea.Model, tea.Cmd) {
	m.request.SyncType = t
	m.request.PlaylistID = ""
	m.request.ArtistID = ""

	switch {
	case t.NeedsPlaylist():
		m.view = PlaylistView
		return m, nil
	case t.NeedsArtist():
		m.view = ArtistView
		m.artistInput.SetValue("")
		return m, m.artistInput.Focus()
	default:
		m.view = ConfirmView
		return m, nil
	}
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = SyncTypeView
			return m, nil
		case key.Matches(msg, m.keys.enter):
			selected, ok := m.playlistList.SelectedItem().(playlistItem)
			if !ok {
				return m, nil
			}
			m.request.PlaylistID = selected.playlist.ExternalID
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

// handleArtistKeys routes keys to the text input, so only esc and enter navigate.
func (m *Model) handleArtistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.artistInput.Blur()
		m.view = SyncTypeView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		id := strings.TrimSpace(m.artistInput.Value())
		if id == "" {
			return m, nil
		}
		m.artistInput.Blur()
		m.request.ArtistID = id
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.artistInput, cmd = m.artistInput.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.startSync(), m.spinner.Tick)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = SyncTypeView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = SyncTypeView
		m.result = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SyncTypeView:
		m.typeList, cmd = m.typeList.Update(msg)
	case PlaylistView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case ArtistView:
		m.artistInput, cmd = m.artistInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	lister := m.playlists
	subject := m.subject
	return func() tea.Msg {
		if lister == nil {
			return playlistsLoadedMsg(nil, nil)
		}
		playlists, err := lister.List(map[string]any{"owner_id": subject})
		return playlistsLoadedMsg(playlists, err)
	}
}

// startSync runs the request in a goroutine. The result is stored before the
// progress channel closes, so waitForProgress never blocks on it.
func (m *Model) startSync() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	results := make(chan tasks.SyncResult, 1)
	m.progressChan = progress
	m.resultChan = results

	ctx, runner, req := m.ctx, m.runner, m.request
	go func() {
		results <- runner.Run(ctx, req, progress)
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, results := m.progressChan, m.resultChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			return syncCompleteMsg(<-results)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderList(l list.Model) string {
	return fmt.Sprintf("%s\n\n%s", l.View(), m.helpView())
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.forView(m.view))
}

func (m *Model) renderPlaylists() string {
	if len(m.playlistList.Items()) == 0 {
		var b strings.Builder
		b.WriteString(styles.title.Render("Stored Playlists"))
		b.WriteString("\n")
		b.WriteString(styles.warn.Render("No stored playlists. Run a playlists sync first."))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
		return b.String()
	}
	return m.renderList(m.playlistList)
}

func (m *Model) renderArtistInput() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Artist for %s", m.request.SyncType)))
	b.WriteString("\n")
	b.WriteString(m.artistInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m *Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Run %s sync for %s?", m.request.SyncType, m.subject)))
	b.WriteString("\n")
	b.WriteString(m.request.SyncType.Description())
	b.WriteString("\n")
	if m.request.PlaylistID != "" {
		b.WriteString(fmt.Sprintf("Playlist: %s\n", m.request.PlaylistID))
	}
	if m.request.ArtistID != "" {
		b.WriteString(fmt.Sprintf("Artist: %s\n", m.request.ArtistID))
	}
	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m *Model) renderSync() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Syncing %s...", m.request.SyncType)))
	b.WriteString("\n")

	stage := styles.forState(m.progress.State).Render(m.progress.State.String())
	if m.progress.Total > 0 {
		stage = fmt.Sprintf("%s %d/%d", stage, m.progress.Step, m.progress.Total)
	}
	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), stage))
	if m.progress.Message != "" {
		b.WriteString(m.progress.Message)
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\nProcessed: %d  Failed: %d\n", m.progress.Processed, m.progress.Failed))
	return b.String()
}

func (m *Model) renderResult() string {
	if m.result == nil {
		return ""
	}

	var b strings.Builder
	if m.result.Success {
		b.WriteString(styles.ok.Render(fmt.Sprintf("%s sync complete", m.request.SyncType)))
	} else {
		b.WriteString(styles.err.Render(fmt.Sprintf("%s sync failed", m.request.SyncType)))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Processed: %d\n", m.result.Processed))

	failed := fmt.Sprintf("Failed: %d", m.result.Failed)
	if m.result.Failed > 0 {
		failed = styles.warn.Render(failed)
	}
	b.WriteString(failed)
	b.WriteString("\n")

	if m.result.Error != "" {
		b.WriteString("\n")
		b.WriteString(styles.err.Render(m.result.Error))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}
