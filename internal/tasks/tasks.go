// package tasks implements playlist generation from anime theme songs.
//
// The core abstraction is [PlaylistEngine], which collects theme songs from a watch list and merges them into a playlist.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/services"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/themes"
)

// ThemeEntry pairs an anime with the songs parsed from its themes.
type ThemeEntry struct {
	Anime models.Anime
	Songs []models.Song
}

// ThemeRunResult contains the songs collected from a watch list.
type ThemeRunResult struct {
	Username string
	Entries  []ThemeEntry
}

// Songs flattens the entries in watch list order.
func (r *ThemeRunResult) Songs() []models.Song {
	songs := make([]models.Song, 0)
	for _, e := range r.Entries {
		songs = append(songs, e.Songs...)
	}
	return songs
}

// ThemeRequest selects the watch list and theme groups to read.
type ThemeRequest struct {
	Username  string
	Statuses  []models.WatchStatus
	Selection models.ThemeSelection
}

// Validate checks the request before any remote call.
func (r ThemeRequest) Validate() error {
	if r.Username == "" {
		return fmt.Errorf("%w: MyAnimeList username is required", shared.ErrInvalidInput)
	}
	for _, s := range r.Statuses {
		if !s.Valid() {
			return fmt.Errorf("%w: %q", shared.ErrInvalidStatus, s)
		}
	}
	return r.Selection.Validate()
}

// GenerateRequest creates a new playlist from a watch list.
type GenerateRequest struct {
	ThemeRequest
	Playlist models.NewPlaylist
}

// UpdateRequest appends a watch list's songs to an existing playlist.
type UpdateRequest struct {
	ThemeRequest
	PlaylistLink string // URL, URI or bare id
}

// Engine defines the playlist operations exposed to the CLI and web layers.
type Engine interface {
	// Themes reads the watch list and parses every selected theme annotation.
	Themes(ctx context.Context, req ThemeRequest, progress chan<- ProgressUpdate) (*ThemeRunResult, error)

	// Generate creates a playlist and fills it with the watch list's theme songs.
	Generate(ctx context.Context, req GenerateRequest, progress chan<- ProgressUpdate) (*models.PlaylistResult, error)

	// Update appends the watch list's theme songs to an existing playlist, skipping tracks it already contains.
	Update(ctx context.Context, req UpdateRequest, progress chan<- ProgressUpdate) (*models.PlaylistResult, error)
}

// EngineOpts configures a [PlaylistEngine].
type EngineOpts struct {
	DefaultName        string
	DefaultDescription string
	Workers            int
	RequestsPerSecond  float64
	Logger             *log.Logger
}

// PlaylistEngine implements [Engine].
// Contains dependencies on the playlist catalog and the theme source.
type PlaylistEngine struct {
	spotify    services.PlaylistService
	mal        services.ThemeSource
	parser     *themes.Parser
	reconciler *Reconciler
	opts       EngineOpts
	logger     *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided services.
func NewPlaylistEngine(spotify services.PlaylistService, mal services.ThemeSource, opts EngineOpts) *PlaylistEngine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &PlaylistEngine{
		spotify: spotify,
		mal:     mal,
		parser:  themes.NewParser(opts.Logger),
		reconciler: NewReconciler(ReconcilerOpts{
			Workers:           opts.Workers,
			RequestsPerSecond: opts.RequestsPerSecond,
			Logger:            opts.Logger,
		}),
		opts:   opts,
		logger: opts.Logger,
	}
}

// Themes reads the watch list and parses every selected theme annotation.
func (e *PlaylistEngine) Themes(ctx context.Context, req ThemeRequest, progress chan<- ProgressUpdate) (*ThemeRunResult, error) {
	if e.mal == nil {
		return nil, fmt.Errorf("%w: MyAnimeList service not initialized", shared.ErrServiceUnavailable)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sendProgress(progress, fetchWatchlistUpdate(req.Username, 0))
	list, err := e.mal.AnimeList(ctx, req.Username, req.Statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watch list: %w", err)
	}
	sendProgress(progress, fetchWatchlistUpdate(req.Username, len(list)))

	result := &ThemeRunResult{Username: req.Username, Entries: make([]ThemeEntry, 0, len(list))}
	for i, anime := range list {
		set, err := e.mal.AnimeThemes(ctx, anime.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch themes for %q: %w", anime.Title, err)
		}

		songs := e.parser.FromThemeSet(set, req.Selection)
		sendProgress(progress, fetchThemesUpdate(i+1, len(list), anime, len(songs)))
		if len(songs) == 0 {
			continue
		}
		result.Entries = append(result.Entries, ThemeEntry{Anime: anime, Songs: songs})
	}

	return result, nil
}

// Generate creates a playlist and fills it with the watch list's theme songs.
//
// A failed cover upload is logged and does not fail the run.
func (e *PlaylistEngine) Generate(ctx context.Context, req GenerateRequest, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	collected, err := e.Themes(ctx, req.ThemeRequest, progress)
	if err != nil {
		return nil, err
	}
	songs := collected.Songs()

	userID, err := e.spotify.CurrentUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	opts := req.Playlist.Normalize(e.opts.DefaultName, e.opts.DefaultDescription)
	sendProgress(progress, createPlaylistUpdate(nil))
	playlist, err := e.spotify.CreatePlaylist(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	sendProgress(progress, createPlaylistUpdate(playlist))

	if len(opts.Image) > 0 {
		err := e.spotify.UploadCover(ctx, playlist.ID, opts.Image)
		if err != nil {
			e.logger.Warn("failed to upload playlist cover", "playlist", playlist.ID, "error", err)
		}
		sendProgress(progress, uploadCoverUpdate(err))
	}

	state := playlist.State()
	rec, err := e.reconciler.Reconcile(ctx, ReconcileRequest{
		Songs:    songs,
		Playlist: state,
		UserID:   userID,
		Search:   e.spotify,
		Appender: e.spotify,
	}, progress)
	if err != nil {
		return nil, err
	}

	result := e.finish(ctx, playlist, rec, songs)
	result.Created = true
	sendProgress(progress, completeUpdate(result))
	return result, nil
}

// Update appends the watch list's theme songs to an existing playlist, skipping tracks it already contains.
//
// Access is checked before the watch list is read.
func (e *PlaylistEngine) Update(ctx context.Context, req UpdateRequest, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	playlistID, err := services.ParsePlaylistID(req.PlaylistLink)
	if err != nil {
		return nil, err
	}

	userID, err := e.spotify.CurrentUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	sendProgress(progress, fetchPlaylistUpdate(playlistID))
	playlist, err := e.spotify.GetPlaylist(ctx, playlistID)
	if err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}

	state := playlist.State()
	if err := CheckAccess(state, userID); err != nil {
		return nil, err
	}

	collected, err := e.Themes(ctx, req.ThemeRequest, progress)
	if err != nil {
		return nil, err
	}
	songs := collected.Songs()

	rec, err := e.reconciler.Reconcile(ctx, ReconcileRequest{
		Songs:    songs,
		Playlist: state,
		UserID:   userID,
		Search:   e.spotify,
		Pager:    e.spotify,
		Appender: e.spotify,
	}, progress)
	if err != nil {
		return nil, err
	}

	result := e.finish(ctx, playlist, rec, songs)
	sendProgress(progress, completeUpdate(result))
	return result, nil
}

// finish re-reads the playlist so the result shows its final state, falling back to what is known.
func (e *PlaylistEngine) finish(ctx context.Context, playlist *models.Playlist, rec *ReconcileResult, songs []models.Song) *models.PlaylistResult {
	final := *playlist
	if fresh, err := e.spotify.GetPlaylist(ctx, playlist.ID); err != nil {
		e.logger.Warn("failed to refresh playlist", "playlist", playlist.ID, "error", err)
	} else {
		final = *fresh
	}

	return &models.PlaylistResult{
		Playlist:      final,
		TotalDesired:  rec.TotalDesired,
		TotalAppended: rec.TotalAppended,
		Percentage:    shared.Percentage(rec.TotalAppended, rec.TotalDesired),
		Songs:         songs,
	}
}
