package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/djwaifu/internal/shared"
	"golang.org/x/oauth2"
)

// Session is a web visitor's server-side state: the Spotify token obtained at
// login, the Spotify user id, the pending OAuth state and the last playlist result.
type Session struct {
	id            string
	sequence      int
	spotifyUserID string
	token         *oauth2.Token
	oauthState    string
	lastResult    *PlaylistResult
	expiresAt     time.Time
	createdAt     time.Time
	updatedAt     time.Time
	deletedAt     *time.Time
}

// NewSession creates a session that expires after ttl.
func NewSession(sequence int, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		sequence:  sequence,
		expiresAt: now.Add(ttl),
		createdAt: now,
		updatedAt: now,
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) Sequence() int { return s.sequence }
func (s *Session) SpotifyUserID() string { return s.spotifyUserID }
func (s *Session) Token() *oauth2.Token { return s.token }
func (s *Session) OAuthState() string { return s.oauthState }
func (s *Session) LastResult() *PlaylistResult { return s.lastResult }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }
func (s *Session) DeletedAt() *time.Time { return s.deletedAt }
func (s *Session) SetID(id string) { s.id = id }
func (s *Session) SetSequence(seq int) { s.sequence = seq }
func (s *Session) SetSpotifyUserID(id string) { s.spotifyUserID = id }
func (s *Session) SetToken(t *oauth2.Token) { s.token = t }
func (s *Session) SetOAuthState(state string) { s.oauthState = state }
func (s *Session) SetLastResult(r *PlaylistResult) { s.lastResult = r }
func (s *Session) SetExpiresAt(t time.Time) { s.expiresAt = t }
func (s *Session) SetCreatedAt(t time.Time) { s.createdAt = t }
func (s *Session) SetUpdatedAt(t time.Time) { s.updatedAt = t }
func (s *Session) SetDeletedAt(t *time.Time) { s.deletedAt = t }

// Authenticated reports whether the session carries a usable Spotify token.
func (s *Session) Authenticated() bool {
	return s.token != nil && (s.token.AccessToken != "" || s.token.RefreshToken != "")
}

// Expired reports whether the session has outlived its TTL.
func (s *Session) Expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && now.After(s.expiresAt)
}

// Logout drops the token and user id, keeping the session row.
func (s *Session) Logout() {
	s.token = nil
	s.spotifyUserID = ""
	s.oauthState = ""
}

// Validate checks required fields.
func (s *Session) Validate() error {
	if s.id == "" {
		return fmt.Errorf("%w: session id is required", shared.ErrInvalidSession)
	}
	if s.expiresAt.IsZero() {
		return fmt.Errorf("%w: session expiry is required", shared.ErrInvalidSession)
	}
	return nil
}
