package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	tu "github.com/desertthunder/djwaifu/internal/testing"
)

var jpegCover = append([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x01}, 64)...)

type harness struct {
	runner  *Runner
	output  *bytes.Buffer
	spotify *tu.MockPlaylistService
	mal     *tu.MockThemeSource
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("MAL_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")

	spotify := tu.NewMockPlaylistService("alice")
	spotify.Results["Guren no Yumiya"] = "spotify:track:guren"
	spotify.Results["Jiyuu no Tsubasa"] = "spotify:track:jiyuu"

	mal := &tu.MockThemeSource{
		Anime: []models.Anime{{ID: 16498, Title: "Shingeki no Kyojin", Status: models.StatusCompleted}},
		Themes: map[int]*models.ThemeSet{
			16498: {
				AnimeID: 16498,
				Title:   "Shingeki no Kyojin",
				Openings: []string{
					`#1: "Guren no Yumiya" by Linked Horizon (eps 1-13)`,
					`#2: "Jiyuu no Tsubasa" by Linked Horizon (eps 14-25)`,
				},
				Endings: []string{`#1: "Utsukushiki Zankoku na Sekai" by Yoko Hikasa`},
			},
		},
	}

	config := shared.DefaultConfig()
	config.Credentials = shared.CredentialsConfig{}
	config.Playlist.MaxImageKB = 1

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotify,
		MAL:     mal,
		Logger:  shared.NewLogger(io.Discard),
		Output:  output,
	})
	return &harness{runner: runner, output: output, spotify: spotify, mal: mal}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	app := newApp(h.runner)
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	return app.Run(context.Background(), append([]string{"djwaifu", "--config", ""}, args...))
}

func TestThemesCommand(t *testing.T) {
	t.Run("renders a table", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "themes", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		for _, want := range []string{"someone's anime themes", "Guren no Yumiya", "Yoko Hikasa", "3 songs from 1 anime"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("openings only", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "themes", "--endings=false", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.Contains(h.output.String(), "Utsukushiki") {
			t.Error("expected endings to be excluded")
		}
	})

	t.Run("csv format", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "themes", "--format", "csv", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(h.output.String(), "AnimeID,Anime,Status,Title,Artist") {
			t.Errorf("expected csv header, got %q", h.output.String())
		}
	})

	t.Run("writes export file", func(t *testing.T) {
		h := newHarness(t)
		path := filepath.Join(t.TempDir(), "themes.json")

		if err := h.run(t, "themes", "--format", "json", "--output", path, "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, path)
		if !strings.Contains(tu.MustReadFile(t, path), "Jiyuu no Tsubasa") {
			t.Error("expected songs in export")
		}
		if !strings.Contains(h.output.String(), "Exported 3 songs") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("unique songs", func(t *testing.T) {
		h := newHarness(t)
		h.mal.Anime = append(h.mal.Anime, models.Anime{ID: 25777, Title: "Shingeki no Kyojin Season 2", Status: models.StatusCompleted})
		h.mal.Themes[25777] = &models.ThemeSet{
			AnimeID:  25777,
			Openings: []string{`"guren no  yumiya" by LINKED HORIZON`, `"Shinzou wo Sasageyo!" by Linked Horizon`},
		}

		if err := h.run(t, "themes", "--unique", "--format", "csv", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if strings.Count(strings.ToLower(out), "guren no") != 1 {
			t.Errorf("expected one guren no yumiya row:\n%s", out)
		}
		if !strings.Contains(out, "Shinzou wo Sasageyo!") {
			t.Errorf("expected new song kept:\n%s", out)
		}
	})

	t.Run("passes statuses through", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "themes", "--status", "completed", "--status", "watching", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(h.mal.Requested) != 1 || len(h.mal.Requested[0]) != 2 {
			t.Errorf("unexpected statuses %v", h.mal.Requested)
		}
	})

	t.Run("rejected input", func(t *testing.T) {
		tc := []struct {
			name string
			args []string
			want error
		}{
			{"missing username", []string{"themes"}, shared.ErrMissingArgument},
			{"unknown status", []string{"themes", "--status", "binged", "someone"}, shared.ErrInvalidStatus},
			{"no theme groups", []string{"themes", "--openings=false", "--endings=false", "someone"}, shared.ErrInvalidInput},
			{"unknown format", []string{"themes", "--format", "xml", "someone"}, shared.ErrInvalidArgument},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				err := h.run(t, tt.args...)
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				if len(h.mal.Requested) != 0 {
					t.Error("expected no watch list request")
				}
			})
		}
	})

	t.Run("missing myanimelist client", func(t *testing.T) {
		h := newHarness(t)
		h.runner.mal = nil
		if err := h.run(t, "themes", "someone"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected missing credentials, got %v", err)
		}
	})
}

func TestParseCommand(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		h := newHarness(t)
		err := h.run(t, "parse", `#1: "Tank!" by The Seatbelts`, "no songs here")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, "The Seatbelts") || !strings.Contains(out, "(skipped)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "parse", "--json", `"Tank!" by The Seatbelts`); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var results []parsedText
		if err := json.Unmarshal(h.output.Bytes(), &results); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(results) != 1 || !results[0].Parsed {
			t.Fatalf("unexpected results %+v", results)
		}
		if results[0].Song.Title != "Tank!" || results[0].Song.Artist != "The Seatbelts" {
			t.Errorf("unexpected song %+v", results[0].Song)
		}
	})
}

func TestGenerateCommand(t *testing.T) {
	t.Run("creates playlist", func(t *testing.T) {
		h := newHarness(t)
		err := h.run(t, "generate", "--name", "Anisongs", "--public", "someone")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(h.spotify.Created) != 1 {
			t.Fatalf("expected one playlist, got %d", len(h.spotify.Created))
		}
		created := h.spotify.Created[0]
		if created.Name != "Anisongs" || !created.Public {
			t.Errorf("unexpected playlist options %+v", created)
		}

		out := h.output.String()
		if !strings.Contains(out, "Playlist created: Anisongs") {
			t.Errorf("expected created message, got:\n%s", out)
		}
		if !strings.Contains(out, "Added 2 of 3 songs (66.67%)") {
			t.Errorf("expected summary, got:\n%s", out)
		}
	})

	t.Run("collaborative is private", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "generate", "--public", "--collaborative", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		created := h.spotify.Created[0]
		if created.Public || !created.Collaborative {
			t.Errorf("expected private collaborative playlist, got %+v", created)
		}
		if created.Name != h.runner.config.Playlist.DefaultName {
			t.Errorf("expected default name, got %q", created.Name)
		}
	})

	t.Run("uploads cover", func(t *testing.T) {
		h := newHarness(t)
		cover := filepath.Join(t.TempDir(), "cover.jpg")
		if err := os.WriteFile(cover, jpegCover, 0644); err != nil {
			t.Fatal(err)
		}

		if err := h.run(t, "generate", "--cover", cover, "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(h.spotify.Covers["created-1"], jpegCover) {
			t.Error("expected cover upload")
		}
	})

	t.Run("rejects bad covers", func(t *testing.T) {
		dir := t.TempDir()
		png := filepath.Join(dir, "cover.png")
		fake := filepath.Join(dir, "fake.jpg")
		large := filepath.Join(dir, "large.jpg")
		os.WriteFile(png, jpegCover, 0644)
		os.WriteFile(fake, []byte("plain text, not an image"), 0644)
		os.WriteFile(large, append(jpegCover, bytes.Repeat([]byte{0x01}, 2048)...), 0644)

		for _, path := range []string{png, fake, large} {
			t.Run(filepath.Base(path), func(t *testing.T) {
				h := newHarness(t)
				err := h.run(t, "generate", "--cover", path, "someone")
				if !errors.Is(err, shared.ErrInvalidImage) {
					t.Fatalf("expected invalid image, got %v", err)
				}
				if len(h.spotify.Created) != 0 {
					t.Error("expected no playlist")
				}
			})
		}
	})

	t.Run("json output and export", func(t *testing.T) {
		h := newHarness(t)
		dir := filepath.Join(t.TempDir(), "export")

		if err := h.run(t, "generate", "--json", "--export", dir, "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var result models.PlaylistResult
		if err := json.Unmarshal(h.output.Bytes(), &result); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if !result.Created || result.TotalDesired != 3 || result.TotalAppended != 2 {
			t.Errorf("unexpected result %+v", result)
		}

		readme := filepath.Join(dir, "README.md")
		tu.AssertFileExists(t, readme)
		if !strings.Contains(tu.MustReadFile(t, readme), "Guren no Yumiya") {
			t.Error("expected songs in export")
		}
	})

	t.Run("csv export", func(t *testing.T) {
		h := newHarness(t)
		base := filepath.Join(t.TempDir(), "anisongs")

		if err := h.run(t, "generate", "--export", base, "--export-format", "csv", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, base+"_themes.csv")
		tu.AssertFileExists(t, base+"_result.json")
		if !strings.Contains(tu.MustReadFile(t, base+"_result.json"), `"total_appended": 2`) {
			t.Error("expected result counts in export")
		}
	})

	t.Run("requires spotify login", func(t *testing.T) {
		h := newHarness(t)
		h.runner.spotify = nil
		if err := h.run(t, "generate", "someone"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected not authenticated, got %v", err)
		}
	})
}

func TestUpdateCommand(t *testing.T) {
	seed := func(h *harness, owner string, collaborative bool) {
		h.spotify.Playlists["pl1"] = &models.Playlist{ID: "pl1", Name: "Existing", OwnerID: owner, Collaborative: collaborative, TrackCount: 1}
		h.spotify.Pages[""] = models.TrackPage{Items: []models.TrackRef{"spotify:track:guren"}}
	}

	t.Run("appends missing tracks", func(t *testing.T) {
		h := newHarness(t)
		seed(h, "alice", false)

		if err := h.run(t, "update", "--playlist", "https://open.spotify.com/playlist/pl1?si=x", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(h.spotify.AddCalls) != 1 || len(h.spotify.AddCalls[0]) != 1 || h.spotify.AddCalls[0][0] != "spotify:track:jiyuu" {
			t.Errorf("unexpected appends %v", h.spotify.AddCalls)
		}
		out := h.output.String()
		if !strings.Contains(out, "Playlist updated: Existing") || !strings.Contains(out, "Added 1 of 3 songs") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("collaborative playlists are open", func(t *testing.T) {
		h := newHarness(t)
		seed(h, "bob", true)

		if err := h.run(t, "update", "--playlist", "spotify:playlist:pl1", "someone"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("denied before reading the watch list", func(t *testing.T) {
		h := newHarness(t)
		seed(h, "bob", false)

		err := h.run(t, "update", "--playlist", "pl1", "someone")
		if !errors.Is(err, shared.ErrAccessDenied) {
			t.Fatalf("expected access denied, got %v", err)
		}
		if len(h.mal.Requested) != 0 || len(h.spotify.SearchCalls) != 0 {
			t.Error("expected no watch list or search requests")
		}
	})

	t.Run("invalid link", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "update", "--playlist", "not a link!", "someone"); !errors.Is(err, shared.ErrInvalidLink) {
			t.Fatalf("expected invalid link, got %v", err)
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "update", "--playlist", "nope", "someone"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestSpotifyCommands(t *testing.T) {
	t.Run("whoami", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "spotify", "whoami"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "Logged in as alice") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("playlist", func(t *testing.T) {
		h := newHarness(t)
		h.spotify.Playlists["pl1"] = &models.Playlist{ID: "pl1", Name: "Existing", OwnerID: "alice", TrackCount: 4}

		if err := h.run(t, "spotify", "playlist", "spotify:playlist:pl1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "Existing") || !strings.Contains(out, "Can update") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("auth needs credentials", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "spotify", "auth"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected missing credentials, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		h := newHarness(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		app := newApp(h.runner)
		app.Writer = io.Discard
		if err := app.Run(context.Background(), []string{"djwaifu", "--config", path, "setup", "config"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)

		app = newApp(h.runner)
		if err := app.Run(context.Background(), []string{"djwaifu", "--config", path, "setup", "config"}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected existing file error, got %v", err)
		}

		app = newApp(h.runner)
		if err := app.Run(context.Background(), []string{"djwaifu", "--config", path, "setup", "config", "--force"}); err != nil {
			t.Fatalf("expected overwrite, got %v", err)
		}
	})

	t.Run("database", func(t *testing.T) {
		h := newHarness(t)
		h.runner.config.Database.Path = filepath.Join(t.TempDir(), "djwaifu.db")

		if err := h.run(t, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, h.runner.config.Database.Path)

		if err := h.run(t, "setup", "rollback"); err != nil {
			t.Fatalf("expected rollback, got %v", err)
		}
	})
}
