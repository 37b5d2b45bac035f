// package services implements the HTTP API clients for Spotify and MyAnimeList
package services

import (
	"context"

	"github.com/desertthunder/djwaifu/internal/models"
)

// PlaylistService is the music catalog a playlist is generated in.
// [SpotifyService] implements it.
type PlaylistService interface {
	// SearchTrack returns the best matching track URI, or [shared.ErrTrackNotFound].
	SearchTrack(ctx context.Context, title, artist string) (models.TrackRef, error)

	// PlaylistTracksPage returns one page of a playlist's track URIs.
	// An empty pageToken requests the first page; the returned Next is empty on the last page.
	PlaylistTracksPage(ctx context.Context, playlistID, pageToken string) (*models.TrackPage, error)

	// AddTracks appends up to 100 URIs and returns the new snapshot id.
	AddTracks(ctx context.Context, playlistID string, uris []models.TrackRef) (string, error)

	// CurrentUserID returns the id of the authenticated user.
	CurrentUserID(ctx context.Context) (string, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID string, opts models.NewPlaylist) (*models.Playlist, error)

	// GetPlaylist retrieves a playlist by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// UploadCover replaces the playlist image with a JPEG.
	UploadCover(ctx context.Context, playlistID string, jpeg []byte) error

	// Name returns the name of the service
	Name() string
}

// ThemeSource reads watch lists and theme annotations. [MyAnimeListService] implements it.
type ThemeSource interface {
	// AnimeList returns the user's list entries whose status is in statuses; empty means all.
	AnimeList(ctx context.Context, username string, statuses []models.WatchStatus) ([]models.Anime, error)

	// AnimeThemes returns the raw opening and ending annotations of one anime.
	AnimeThemes(ctx context.Context, animeID int) (*models.ThemeSet, error)
}
