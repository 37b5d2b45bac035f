package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
	"github.com/desertthunder/djwaifu/internal/themes"
)

type apiError struct {
	Error string `json:"error"`
}

type apiThemeEntry struct {
	Anime models.Anime  `json:"anime"`
	Songs []models.Song `json:"songs"`
}

type apiParsedTheme struct {
	Raw  string       `json:"raw"`
	Song *models.Song `json:"song"`
}

type apiAnimeThemes struct {
	AnimeID  int              `json:"anime_id"`
	Title    string           `json:"title"`
	Openings []apiParsedTheme `json:"openings"`
	Endings  []apiParsedTheme `json:"endings"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, apiError{Error: "Not found"})
}

// flag reads a boolean query parameter, defaulting to true when absent.
func flag(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (a *App) userThemes(w http.ResponseWriter, r *http.Request) {
	statuses, err := models.ParseStatuses(r.URL.Query()["status"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	req := tasks.ThemeRequest{
		Username: r.PathValue("username"),
		Statuses: statuses,
		Selection: models.ThemeSelection{
			Openings: flag(r, "openings"),
			Endings:  flag(r, "endings"),
		},
	}

	engine := tasks.NewPlaylistEngine(nil, a.mal, a.engine)
	collected, err := engine.Themes(r.Context(), req, nil)
	if err != nil {
		a.logger.Warn("theme lookup failed", "username", req.Username, "error", err)
		writeJSON(w, statusFor(err), apiError{Error: err.Error()})
		return
	}

	entries := make([]apiThemeEntry, 0, len(collected.Entries))
	for _, e := range collected.Entries {
		entries = append(entries, apiThemeEntry{Anime: e.Anime, Songs: e.Songs})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *App) animeThemes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: fmt.Sprintf("%v: anime id must be a non-negative integer", shared.ErrInvalidInput)})
		return
	}

	set, err := a.mal.AnimeThemes(r.Context(), id)
	if err != nil {
		a.logger.Warn("anime lookup failed", "anime", id, "error", err)
		writeJSON(w, statusFor(err), apiError{Error: err.Error()})
		return
	}
	if set == nil {
		notFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, apiAnimeThemes{
		AnimeID:  set.AnimeID,
		Title:    set.Title,
		Openings: parsedThemes(set.Openings),
		Endings:  parsedThemes(set.Endings),
	})
}

func parsedThemes(raw []string) []apiParsedTheme {
	out := make([]apiParsedTheme, 0, len(raw))
	for _, text := range raw {
		entry := apiParsedTheme{Raw: text}
		if song, ok := themes.Parse(text); ok {
			entry.Song = &song
		}
		out = append(out, entry)
	}
	return out
}
