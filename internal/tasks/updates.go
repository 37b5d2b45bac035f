package tasks

import (
	"fmt"

	"github.com/desertthunder/djwaifu/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchWatchlist Phase = iota
	FetchThemes
	SearchTracks
	FetchPlaylist
	FetchExisting
	CreatePlaylist
	UploadCover
	AppendTracks
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchWatchlist:
		return "fetch_watchlist"
	case FetchThemes:
		return "fetch_themes"
	case SearchTracks:
		return "search_tracks"
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchExisting:
		return "fetch_existing"
	case CreatePlaylist:
		return "create_playlist"
	case UploadCover:
		return "upload_cover"
	case AppendTracks:
		return "append_tracks"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchWatchlistUpdate(username string, count int) ProgressUpdate {
	msg := fmt.Sprintf("Fetching %s's watch list from MyAnimeList...", username)
	if count > 0 {
		msg = fmt.Sprintf("Found %d anime on %s's watch list", count, username)
	}
	return ProgressUpdate{Phase: FetchWatchlist, Step: 1, Total: 1, Message: msg}
}

func fetchThemesUpdate(step, total int, anime models.Anime, songs int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchThemes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%d songs)", step, total, anime.Title, songs),
		Data:    anime,
	}
}

func searchTracksUpdate(step, total int, song models.Song, found bool) ProgressUpdate {
	mark := "✓"
	if !found {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, song.String()),
		Data:    song,
	}
}

func fetchPlaylistUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s...", id),
	}
}

func fetchExistingUpdate(count int, id string) ProgressUpdate {
	msg := fmt.Sprintf("Reading current tracks of %s...", id)
	if count > 0 {
		msg = fmt.Sprintf("Playlist %s already has %d tracks", id, count)
	}
	return ProgressUpdate{Phase: FetchExisting, Step: 1, Total: 1, Message: msg}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	if pl == nil {
		return ProgressUpdate{Phase: CreatePlaylist, Step: 0, Total: 1, Message: "Creating playlist on Spotify..."}
	}
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func uploadCoverUpdate(err error) ProgressUpdate {
	msg := "Uploaded playlist cover"
	if err != nil {
		msg = fmt.Sprintf("Cover upload failed: %v", err)
	}
	return ProgressUpdate{Phase: UploadCover, Step: 1, Total: 1, Message: msg}
}

func appendTracksUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AppendTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, size),
	}
}

func completeUpdate(result *models.PlaylistResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Added %d of %d songs (%.2f%%)", result.TotalAppended, result.TotalDesired, result.Percentage),
		Data:    result,
	}
}
