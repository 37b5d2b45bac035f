// Package services implements the HTTP clients behind playlist generation: Spotify ([PlaylistService]) and MyAnimeList ([ThemeSource]).
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] refreshes expired tokens using the refresh token; every new token is passed
// to the callback registered with [SpotifyService.SetTokenRefreshCallback] so the CLI config or the
// web session can persist it. [SpotifyService.WithToken] derives a per-session client.
//
// Track search ranks up to five candidates by title and artist similarity ([BestMatch]).
// Playlist contents are paged 100 items at a time by following Spotify's "next" links.
//
// # MyAnimeList Implementation
//
// [MyAnimeListService] reads watch lists and theme annotations with the X-MAL-CLIENT-ID header.
// Status filtering happens client side after every list page has been followed.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired or refresh failed, reauthorization needed
//   - [shared.ErrAccessDenied] : Spotify refused the operation (403)
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrPlaylistNotFound] : Playlist ID not found
//   - [shared.ErrTrackNotFound] : Search returned no usable candidate
package services
