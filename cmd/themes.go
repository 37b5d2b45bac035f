package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/djwaifu/internal/formatter"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
	"github.com/desertthunder/djwaifu/internal/themes"
	"github.com/urfave/cli/v3"
)

// themeRequest reads the username argument and the theme flags.
func themeRequest(cmd *cli.Command) (tasks.ThemeRequest, error) {
	username := strings.TrimSpace(cmd.StringArg("username"))
	if username == "" {
		return tasks.ThemeRequest{}, fmt.Errorf("%w: MyAnimeList username", shared.ErrMissingArgument)
	}

	statuses, err := models.ParseStatuses(cmd.StringSlice("status"))
	if err != nil {
		return tasks.ThemeRequest{}, err
	}

	req := tasks.ThemeRequest{
		Username: username,
		Statuses: statuses,
		Selection: models.ThemeSelection{
			Openings: cmd.Bool("openings"),
			Endings:  cmd.Bool("endings"),
		},
	}
	return req, req.Validate()
}

// Themes lists every parsed theme song of a watch list.
func (r *Runner) Themes(ctx context.Context, cmd *cli.Command) error {
	req, err := themeRequest(cmd)
	if err != nil {
		return err
	}

	name := strings.ToLower(cmd.String("format"))
	var format formatter.Format
	if name != "table" {
		if format, err = formatter.ParseFormat(name); err != nil {
			return err
		}
	}

	engine, err := r.engine(false)
	if err != nil {
		return err
	}

	progress := r.startProgress()
	run, err := engine.Themes(ctx, req, progress.Chan())
	progress.Stop()
	if err != nil {
		return err
	}
	if cmd.Bool("unique") {
		run = uniqueSongs(run)
	}

	if output := cmd.String("output"); output != "" {
		if format == "" {
			format = formatter.FormatText
		}
		path, err := formatter.WriteExport(run, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("themes exported", "path", path, "format", format)
		r.writePlain("✓ Exported %d songs to %s\n", len(run.Songs()), path)
		return nil
	}

	if format != "" {
		return formatter.Write(r.output, run, format)
	}

	r.writePlainHeader(fmt.Sprintf("%s's anime themes", run.Username))
	r.writePlain("%s\n", renderTable(
		[]string{"#", "Anime", "Status", "Title", "Artist"},
		themeRows(run),
		[]columnAlignment{alignRight},
	))
	r.writePlain("%d songs from %d anime\n", len(run.Songs()), len(run.Entries))
	return nil
}

// uniqueSongs keeps the first occurrence of each title/artist pair, ignoring case and spacing.
func uniqueSongs(run *tasks.ThemeRunResult) *tasks.ThemeRunResult {
	seen := make(map[string]bool)
	out := &tasks.ThemeRunResult{Username: run.Username, Entries: make([]tasks.ThemeEntry, 0, len(run.Entries))}
	for _, e := range run.Entries {
		songs := make([]models.Song, 0, len(e.Songs))
		for _, song := range e.Songs {
			key := shared.NormalizeTrackKey(song.Title, song.Artist)
			if seen[key] {
				continue
			}
			seen[key] = true
			songs = append(songs, song)
		}
		out.Entries = append(out.Entries, tasks.ThemeEntry{Anime: e.Anime, Songs: songs})
	}
	return out
}

func themeRows(run *tasks.ThemeRunResult) [][]string {
	rows := make([][]string, 0)
	n := 0
	for _, e := range run.Entries {
		for _, song := range e.Songs {
			n++
			rows = append(rows, []string{strconv.Itoa(n), e.Anime.Title, string(e.Anime.Status), song.Title, song.Artist})
		}
	}
	return rows
}

type parsedText struct {
	Text   string       `json:"text"`
	Song   *models.Song `json:"song"`
	Parsed bool         `json:"parsed"`
}

// Parse runs the theme parser over each argument.
func (r *Runner) Parse(ctx context.Context, cmd *cli.Command) error {
	texts := cmd.StringArgs("text")
	if len(texts) == 0 {
		return fmt.Errorf("%w: text to parse", shared.ErrMissingArgument)
	}

	parser := themes.NewParser(r.logger)
	results := make([]parsedText, 0, len(texts))
	for _, text := range texts {
		out := parsedText{Text: text}
		if song, ok := parser.Parse(text); ok {
			out.Song = &song
			out.Parsed = true
		}
		results = append(results, out)
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		if !res.Parsed {
			rows = append(rows, []string{res.Text, "(skipped)", ""})
			continue
		}
		rows = append(rows, []string{res.Text, res.Song.Title, res.Song.Artist})
	}
	r.writePlain("%s\n", renderTable([]string{"Text", "Title", "Artist"}, rows, nil))
	return nil
}
