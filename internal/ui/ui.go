package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	AnimeListView
	SongListView
	ConfirmView
	RunView
	ResultView
)

// Options selects what the TUI builds. A non-empty PlaylistLink updates that playlist instead of creating one.
type Options struct {
	Request      tasks.ThemeRequest
	Playlist     models.NewPlaylist
	PlaylistLink string
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       tasks.Engine
	opts         Options
	width        int
	height       int
	animeList    list.Model
	songList     list.Model
	themes       *tasks.ThemeRunResult
	selected     *tasks.ThemeEntry
	progressChan chan tasks.ProgressUpdate
	done         chan Msg
	progress     tasks.ProgressUpdate
	result       *models.PlaylistResult
	err          error
	spinner      spinner.Model
	bar          progress.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine tasks.Engine, opts Options) *Model {
	return &Model{
		ctx:     ctx,
		view:    LoadingView,
		engine:  engine,
		opts:    opts,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the playlist result of the last run, if any.
func (m *Model) Result() *models.PlaylistResult { return m.result }

// Err returns the error that ended the last fetch or run.
func (m *Model) Err() error { return m.err }

// Init starts reading the watch list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchThemes())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-8, 10), 60)
		if m.animeList.Width() == 0 && m.themes != nil {
			m.animeList.SetSize(m.listSize())
		}
		if m.songList.Width() == 0 && m.selected != nil {
			m.songList.SetSize(m.listSize())
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != LoadingView && m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case LoadingView, RunView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case AnimeListView:
			return m.handleAnimeListKeys(msg)
		case SongListView:
			return m.handleSongListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgThemesFetched:
		data := msg.data.(themesFetched)
		m.clearRun()
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.themes = data.themes
		items := make([]list.Item, len(data.themes.Entries))
		for i, entry := range data.themes.Entries {
			items[i] = animeItem{entry: entry}
		}
		m.animeList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.animeList.Title = fmt.Sprintf("%s's anime themes (%d songs)", data.themes.Username, len(data.themes.Songs()))
		m.animeList.SetSize(m.listSize())
		m.view = AnimeListView
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.done)

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.clearRun()
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleAnimeListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.animeList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.animeList, cmd = m.animeList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.build):
		return m.confirm()
	case key.Matches(msg, m.keys.enter):
		if selected, ok := m.animeList.SelectedItem().(animeItem); ok {
			entry := selected.entry
			m.selected = &entry
			items := make([]list.Item, len(entry.Songs))
			for i, song := range entry.Songs {
				items[i] = songItem{song: song}
			}
			m.songList = list.New(items, list.NewDefaultDelegate(), 0, 0)
			m.songList.Title = fmt.Sprintf("Themes of '%s'", entry.Anime.Title)
			m.songList.SetSize(m.listSize())
			m.view = SongListView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.animeList, cmd = m.animeList.Update(msg)
	return m, cmd
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = AnimeListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.build):
		return m.confirm()
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) confirm() (tea.Model, tea.Cmd) {
	if m.themes == nil || len(m.themes.Songs()) == 0 {
		return m, nil
	}
	m.view = ConfirmView
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = AnimeListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = RunView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startRun())
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.browse):
		if m.themes == nil {
			return m, nil
		}
		m.view = AnimeListView
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case AnimeListView:
		m.animeList, cmd = m.animeList.Update(msg)
	case SongListView:
		m.songList, cmd = m.songList.Update(msg)
	}
	return m, cmd
}

func (m *Model) listSize() (int, int) {
	return max(m.width-4, 0), max(m.height-8, 0)
}

func (m *Model) fetchThemes() tea.Cmd {
	return m.start(func(progress chan<- tasks.ProgressUpdate) Msg {
		themes, err := m.engine.Themes(m.ctx, m.opts.Request, progress)
		return themesFetchedMsg(themes, err)
	})
}

func (m *Model) startRun() tea.Cmd {
	return m.start(func(progress chan<- tasks.ProgressUpdate) Msg {
		var (
			result *models.PlaylistResult
			err    error
		)
		if m.opts.PlaylistLink != "" {
			result, err = m.engine.Update(m.ctx, tasks.UpdateRequest{
				ThemeRequest: m.opts.Request,
				PlaylistLink: m.opts.PlaylistLink,
			}, progress)
		} else {
			result, err = m.engine.Generate(m.ctx, tasks.GenerateRequest{
				ThemeRequest: m.opts.Request,
				Playlist:     m.opts.Playlist,
			}, progress)
		}
		return runCompleteMsg(result, err)
	})
}

// start runs work in the background. Its final message is delivered once the progress channel drains.
func (m *Model) start(work func(chan<- tasks.ProgressUpdate) Msg) tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan = progress
	m.done = done

	go func() {
		done <- work(progress)
		close(progress)
	}()

	return waitForProgress(progress, done)
}

func (m *Model) clearRun() {
	m.progressChan = nil
	m.done = nil
}

func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan Msg) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return m.renderLoading()
	case AnimeListView:
		return m.renderAnimeList()
	case SongListView:
		return m.renderSongList()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderLoading() string {
	title := styles.title.Render(fmt.Sprintf("Reading %s's watch list", m.opts.Request.Username))
	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), m.phase(), m.progressBar())
}

func (m *Model) renderAnimeList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.build, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.animeList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSongList() string {
	helpKeys := []key.Binding{m.keys.build, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.songList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	var title, info string
	songs := len(m.themes.Songs())
	if m.opts.PlaylistLink != "" {
		title = styles.title.Render("Update this playlist?")
		info = fmt.Sprintf("\nPlaylist: %s\nSongs to look for: %d\n", m.opts.PlaylistLink, songs)
	} else {
		opts := m.opts.Playlist
		name := opts.Name
		if name == "" {
			name = "(default name)"
		}
		title = styles.title.Render(fmt.Sprintf("Create '%s' on Spotify?", name))
		info = fmt.Sprintf("\nSongs to look for: %d\nPublic: %t\nCollaborative: %t\n", songs, opts.Public && !opts.Collaborative, opts.Collaborative)
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Building playlist")
	if m.opts.PlaylistLink != "" {
		title = styles.title.Render("Updating playlist")
	}
	return fmt.Sprintf("%s\n\n%s %s\n%s\n%s", title, m.spinner.View(), m.phase(), m.progressBar(), styles.help.Render(m.progress.Message))
}

func (m *Model) phase() string {
	p := m.progress
	switch p.Phase {
	case tasks.FetchWatchlist:
		return "Fetching watch list..."
	case tasks.FetchThemes:
		return fmt.Sprintf("Reading themes (%d/%d)", p.Step, p.Total)
	case tasks.SearchTracks:
		return fmt.Sprintf("Searching Spotify (%d/%d)", p.Step, p.Total)
	case tasks.FetchPlaylist:
		return "Fetching playlist..."
	case tasks.FetchExisting:
		return "Reading current tracks..."
	case tasks.CreatePlaylist:
		return "Creating playlist on Spotify..."
	case tasks.UploadCover:
		return "Uploading cover..."
	case tasks.AppendTracks:
		return fmt.Sprintf("Adding tracks (%d/%d)", p.Step, p.Total)
	case tasks.Complete:
		return "Done"
	default:
		return "Processing..."
	}
}

func (m *Model) progressBar() string {
	if m.progress.Total <= 1 {
		return ""
	}
	return m.bar.ViewAs(float64(m.progress.Step) / float64(m.progress.Total))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Failed: %v\n\nPress r to browse themes, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to browse themes, q to quit")
	}

	heading := "✓ Playlist updated!"
	if m.result.Created {
		heading = "✓ Playlist created!"
	}
	title := styles.ok.Render(heading)

	var b strings.Builder
	pl := m.result.Playlist
	fmt.Fprintf(&b, "\nPlaylist: %s (%d tracks)", pl.Name, pl.TrackCount)
	if pl.URL != "" {
		fmt.Fprintf(&b, "\nLink: %s", pl.URL)
	}
	summary := fmt.Sprintf("%d/%d (%.2f%%)", m.result.TotalAppended, m.result.TotalDesired, m.result.Percentage)
	fmt.Fprintf(&b, "\nAdded: %s", styles.Rate(m.result.Percentage, summary))

	if missed := m.result.TotalDesired - m.result.TotalAppended; missed > 0 && m.result.Created {
		fmt.Fprintf(&b, "\n\n%s", styles.warn.Render(fmt.Sprintf("%d songs were not found on Spotify", missed)))
	}

	helpKeys := []key.Binding{m.keys.browse, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n\n%s", title, b.String(), m.help.ShortHelpView(helpKeys))
}
