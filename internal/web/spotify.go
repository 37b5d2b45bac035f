package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/server"
	"github.com/desertthunder/djwaifu/internal/services"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
	"golang.org/x/oauth2"
)

// Spotify is what the web app needs from the Spotify client: the OAuth dance and a
// catalog client bound to one visitor's token.
type Spotify interface {
	GetAuthURL(state string) string
	OAuthenticate(ctx context.Context, code string) (*oauth2.Token, error)
	ForToken(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) services.PlaylistService
}

// SpotifyClients adapts a [services.SpotifyService] to [Spotify].
type SpotifyClients struct {
	Base *services.SpotifyService
}

func (c SpotifyClients) GetAuthURL(state string) string {
	return c.Base.GetAuthURL(state)
}

func (c SpotifyClients) OAuthenticate(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.Base.OAuthenticate(ctx, code)
}

// ForToken returns a copy of the base client using token; refreshed tokens go to onRefresh.
func (c SpotifyClients) ForToken(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) services.PlaylistService {
	client := c.Base.WithToken(ctx, token)
	client.SetTokenRefreshCallback(onRefresh)
	return client
}

// clientFor builds a Spotify client for the session whose refreshed tokens are saved back to it.
func (a *App) clientFor(ctx context.Context, session *models.Session) services.PlaylistService {
	var mu sync.Mutex
	return a.spotify.ForToken(ctx, session.Token(), func(tok *oauth2.Token) {
		mu.Lock()
		defer mu.Unlock()

		session.SetToken(tok)
		if err := a.sessions.Save(session); err != nil {
			a.logger.Warn("failed to persist refreshed token", "session", session.ID(), "error", err)
		}
	})
}

func (a *App) engineFor(ctx context.Context, session *models.Session) tasks.Engine {
	return tasks.NewPlaylistEngine(a.clientFor(ctx, session), a.mal, a.engine)
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	session, _ := server.SessionFromContext(r.Context())

	state, err := shared.GenerateState()
	if err != nil {
		a.renderError(w, r, err, "Could not start Spotify login")
		return
	}

	session.SetOAuthState(state)
	if err := a.sessions.Save(session); err != nil {
		a.renderError(w, r, err, "Could not start Spotify login")
		return
	}

	http.Redirect(w, r, a.spotify.GetAuthURL(state), http.StatusFound)
}

func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	session, _ := server.SessionFromContext(r.Context())
	query := r.URL.Query()

	expected := session.OAuthState()
	if expected == "" || query.Get("state") != expected {
		a.renderError(w, r, fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed), "Spotify login expired, please try again.")
		return
	}
	session.SetOAuthState("")

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: spotify returned %q", shared.ErrInvalidInput, query.Get("error"))
		a.renderError(w, r, err, "No code provided by Spotify.")
		return
	}

	token, err := a.spotify.OAuthenticate(r.Context(), code)
	if err != nil {
		a.renderError(w, r, err, "Spotify authentication failed")
		return
	}
	session.SetToken(token)

	userID, err := a.clientFor(r.Context(), session).CurrentUserID(r.Context())
	if err != nil {
		a.renderError(w, r, err, "Spotify authentication failed")
		return
	}
	session.SetSpotifyUserID(userID)

	if err := a.sessions.Save(session); err != nil {
		a.renderError(w, r, err, "Spotify authentication failed")
		return
	}

	a.logger.Info("spotify connected", "user", userID)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	session, _ := server.SessionFromContext(r.Context())
	if err := a.sessions.Destroy(w, session); err != nil {
		a.renderError(w, r, err, "Could not log out")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) clear(w http.ResponseWriter, r *http.Request) {
	session, _ := server.SessionFromContext(r.Context())
	session.SetLastResult(nil)
	if err := a.sessions.Save(session); err != nil {
		a.renderError(w, r, err, "Could not clear the result")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
