package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/djwaifu/internal/formatter"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
	"github.com/urfave/cli/v3"
)

// newPlaylist reads the playlist flags, loading and checking the cover when one is given.
func (r *Runner) newPlaylist(cmd *cli.Command) (models.NewPlaylist, error) {
	playlist := models.NewPlaylist{
		Name:          cmd.String("name"),
		Description:   cmd.String("description"),
		Public:        cmd.Bool("public"),
		Collaborative: cmd.Bool("collaborative"),
	}

	if path := cmd.String("cover"); path != "" {
		image, err := r.readCover(path)
		if err != nil {
			return playlist, err
		}
		playlist.Image = image
	}
	return playlist, nil
}

// readCover loads a JPEG no larger than playlist.max_image_kb.
func (r *Runner) readCover(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jpg" && ext != ".jpeg" {
		return nil, fmt.Errorf("%w: cover must be a .jpg or .jpeg file", shared.ErrInvalidImage)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}

	limit := r.config.Playlist.MaxImageKB
	if limit <= 0 {
		limit = 256
	}
	if len(data) > limit*1024 {
		return nil, fmt.Errorf("%w: cover is %d KB, limit is %d KB", shared.ErrInvalidImage, len(data)/1024, limit)
	}
	if ct := http.DetectContentType(data); ct != "image/jpeg" {
		return nil, fmt.Errorf("%w: cover is %s, not JPEG", shared.ErrInvalidImage, ct)
	}
	return data, nil
}

// Generate creates a playlist from a watch list's theme songs.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	req, err := themeRequest(cmd)
	if err != nil {
		return err
	}
	playlist, err := r.newPlaylist(cmd)
	if err != nil {
		return err
	}

	engine, err := r.engine(true)
	if err != nil {
		return err
	}

	r.logger.Info("generating playlist", "username", req.Username, "statuses", req.Statuses)

	progress := r.startProgress()
	result, err := engine.Generate(ctx, tasks.GenerateRequest{ThemeRequest: req, Playlist: playlist}, progress.Chan())
	progress.Stop()
	if err != nil {
		return err
	}

	if path := cmd.String("export"); path != "" {
		r.export(resultRun(req.Username, result), result, cmd.String("export-format"), path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	r.printResult(result)
	return nil
}

// Update appends a watch list's missing theme songs to an existing playlist.
func (r *Runner) Update(ctx context.Context, cmd *cli.Command) error {
	req, err := themeRequest(cmd)
	if err != nil {
		return err
	}

	link := cmd.String("playlist")
	engine, err := r.engine(true)
	if err != nil {
		return err
	}

	r.logger.Info("updating playlist", "username", req.Username, "playlist", link)

	progress := r.startProgress()
	result, err := engine.Update(ctx, tasks.UpdateRequest{ThemeRequest: req, PlaylistLink: link}, progress.Chan())
	progress.Stop()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	r.printResult(result)
	return nil
}

// export writes the run and its result in the given format. Failures are only logged.
func (r *Runner) export(run *tasks.ThemeRunResult, result *models.PlaylistResult, format, path string) {
	switch strings.ToLower(format) {
	case "csv":
		out, err := formatter.WriteCSVExport(run, result, path)
		if err != nil {
			r.logger.Warn("failed to export playlist", "path", path, "error", err)
			return
		}
		r.logger.Info("playlist exported", "themes", out.ThemesFile, "result", out.ResultFile)
	case "", "markdown", "md":
		out, err := formatter.WriteMarkdownExport(run, result, path)
		if err != nil {
			r.logger.Warn("failed to export playlist", "dir", path, "error", err)
			return
		}
		r.logger.Info("playlist exported", "dir", out.Directory, "files", len(out.Files))
	default:
		r.logger.Warn("unknown export format", "format", format)
	}
}

// resultRun groups a result's songs under a single entry for exports.
func resultRun(username string, result *models.PlaylistResult) *tasks.ThemeRunResult {
	return &tasks.ThemeRunResult{
		Username: username,
		Entries: []tasks.ThemeEntry{{
			Anime: models.Anime{Title: username + "'s watch list"},
			Songs: result.Songs,
		}},
	}
}

func (r *Runner) printResult(result *models.PlaylistResult) {
	action := "updated"
	if result.Created {
		action = "created"
	}

	pl := result.Playlist
	r.writePlainln("✓ Playlist %s: %s", action, pl.Name)

	visibility := "Private"
	switch {
	case pl.Collaborative:
		visibility = "Collaborative"
	case pl.Public:
		visibility = "Public"
	}

	rows := [][]string{
		{"Link", pl.URL},
		{"Visibility", visibility},
		{"Tracks", strconv.Itoa(pl.TrackCount)},
		{"Songs found", strconv.Itoa(result.TotalDesired)},
		{"Songs added", strconv.Itoa(result.TotalAppended)},
		{"Added", fmt.Sprintf("%.2f%%", result.Percentage)},
	}
	r.writePlain("%s\n", renderTable([]string{"Playlist", pl.ID}, rows, []columnAlignment{alignLeft, alignRight}))
	r.writePlain("Added %s\n", formatter.Summary(result))
}
