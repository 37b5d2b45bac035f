package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/djwaifu/internal/repositories"
	"github.com/desertthunder/djwaifu/internal/server"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/web"
	"github.com/urfave/cli/v3"
)

// sessionStore opens the configured session backend. The returned closer releases it.
func (r *Runner) sessionStore(ctx context.Context, backend string) (repositories.SessionStore, io.Closer, error) {
	switch backend {
	case "redis":
		store, err := repositories.NewRedisSessionStore(ctx, r.config.Session.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		r.logger.Info("using redis session store", "addr", r.config.Session.RedisAddr)
		return store, store, nil
	case "", "sqlite":
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		r.logger.Info("using sqlite session store", "path", r.config.Database.Path)
		return repositories.NewSessionRepository(db), db, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown session backend %q", shared.ErrInvalidConfig, backend)
	}
}

// Serve runs the web application until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if backend := cmd.String("session-backend"); backend != "" {
		r.config.Session.Backend = backend
	}
	if err := r.config.Validate(); err != nil {
		return err
	}
	if r.auth == nil {
		return fmt.Errorf("%w: set credentials.spotify.client_id and client_secret", shared.ErrMissingCredentials)
	}
	if r.mal == nil {
		return fmt.Errorf("%w: set credentials.myanimelist.client_id or MAL_CLIENT_ID", shared.ErrMissingCredentials)
	}

	store, closer, err := r.sessionStore(ctx, r.config.Session.Backend)
	if err != nil {
		return err
	}
	defer closer.Close()

	secure := strings.HasPrefix(r.config.Server.BaseURL, "https://")
	sessions, err := server.NewSessionManager(store, r.config.Session.Secret, r.config.Session.SessionTTL(), secure, r.logger)
	if err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Sweep(sweepCtx, 10*time.Minute)

	app, err := web.New(web.Options{
		Spotify:    web.SpotifyClients{Base: r.auth},
		MAL:        r.mal,
		Sessions:   sessions,
		Engine:     r.engineOpts(),
		MaxImageKB: r.config.Playlist.MaxImageKB,
		Logger:     shared.WithLogger(r.logger, "component", "web"),
	})
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("web server listening", "addr", addr, "base_url", r.config.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
