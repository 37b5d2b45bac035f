package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/djwaifu/internal/server"
	"github.com/desertthunder/djwaifu/internal/services"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	token, err := r.doOAuth(ctx, "authorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	}
	r.writePlain("You can now use: djwaifu generate <username>\n")
	return nil
}

// SpotifyWhoami prints the account the stored token belongs to.
func (r *Runner) SpotifyWhoami(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: run 'djwaifu spotify auth' first", shared.ErrNotAuthenticated)
	}

	if client, ok := r.spotify.(*services.SpotifyService); ok {
		user, err := client.UserProfile(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		r.writePlain("Logged in as %s (%s)\n", user.DisplayName, user.ID)
		if user.Product != "" {
			r.writePlain("Plan: %s\n", user.Product)
		}
		return nil
	}

	id, err := r.spotify.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	r.writePlain("Logged in as %s\n", id)
	return nil
}

// SpotifyPlaylist shows a playlist and whether the current user may add to it.
func (r *Runner) SpotifyPlaylist(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: run 'djwaifu spotify auth' first", shared.ErrNotAuthenticated)
	}

	id, err := services.ParsePlaylistID(cmd.StringArg("link"))
	if err != nil {
		return err
	}

	playlist, err := r.spotify.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	editable := "no"
	if userID, err := r.spotify.CurrentUserID(ctx); err == nil && playlist.State().CanModify(userID) {
		editable = "yes"
	}

	visibility := "Private"
	if playlist.Public {
		visibility = "Public"
	}

	r.writePlainHeader(playlist.Name)
	rows := [][]string{
		{"ID", playlist.ID},
		{"Owner", playlist.OwnerID},
		{"Tracks", strconv.Itoa(playlist.TrackCount)},
		{"Visibility", visibility},
		{"Collaborative", strconv.FormatBool(playlist.Collaborative)},
		{"Can update", editable},
		{"Link", playlist.URL},
	}
	if playlist.Description != "" {
		rows = append(rows, []string{"Description", playlist.Description})
	}
	r.writePlain("%s\n", renderTable([]string{"Field", "Value"}, rows, nil))
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := r.auth.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(r.auth.GetOAuthConfig(), state, "")
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
