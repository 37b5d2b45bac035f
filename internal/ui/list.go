package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/tasks"
)

var (
	_ list.Item = animeItem{}
	_ list.Item = songItem{}
)

// animeItem wraps [tasks.ThemeEntry] to implement [list.Item].
type animeItem struct {
	entry tasks.ThemeEntry
}

func (i animeItem) FilterValue() string { return i.entry.Anime.Title }
func (i animeItem) Title() string       { return i.entry.Anime.Title }
func (i animeItem) Description() string {
	return fmt.Sprintf("%d songs • %s", len(i.entry.Songs), i.entry.Anime.Status)
}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	song models.Song
}

func (i songItem) FilterValue() string { return i.song.String() }
func (i songItem) Title() string       { return i.song.Title }
func (i songItem) Description() string {
	if i.song.Artist == "" {
		return "unknown artist"
	}
	return i.song.Artist
}
