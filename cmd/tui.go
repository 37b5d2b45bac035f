package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing themes and building a playlist.
//
// Without a Spotify token the watch list can still be browsed; building reports the missing login.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	req, err := themeRequest(cmd)
	if err != nil {
		return err
	}
	playlist, err := r.newPlaylist(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	stdLogger := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(stdLogger)

	engine, err := r.engine(false)
	if err != nil {
		return err
	}
	if r.spotify == nil {
		r.logger.Warn("no spotify token, playlist building disabled")
	}

	model := ui.NewModel(ctx, engine, ui.Options{
		Request:      req,
		Playlist:     playlist,
		PlaylistLink: cmd.String("playlist"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if result := model.Result(); result != nil {
		r.printResult(result)
		return nil
	}
	if err := model.Err(); err != nil {
		r.writePlain("Last run failed: %v\n", err)
	}
	r.writePlain("Logs written to %s\n", r.config.Log.File)
	return nil
}
