package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/djwaifu/internal/shared"
)

// WatchStatus is a MyAnimeList list status.
type WatchStatus string

const (
	StatusWatching    WatchStatus = "watching"
	StatusCompleted   WatchStatus = "completed"
	StatusOnHold      WatchStatus = "on_hold"
	StatusDropped     WatchStatus = "dropped"
	StatusPlanToWatch WatchStatus = "plan_to_watch"
)

// AllStatuses lists every valid [WatchStatus] in MyAnimeList's order.
var AllStatuses = []WatchStatus{StatusWatching, StatusCompleted, StatusOnHold, StatusDropped, StatusPlanToWatch}

// Valid reports whether s is a known status.
func (s WatchStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatuses validates raw status names. Blank entries are ignored and
// duplicates collapse; an empty result means every status.
func ParseStatuses(raw []string) ([]WatchStatus, error) {
	seen := make(map[WatchStatus]bool, len(raw))
	statuses := make([]WatchStatus, 0, len(raw))
	for _, r := range raw {
		s := WatchStatus(strings.ToLower(strings.TrimSpace(r)))
		if s == "" {
			continue
		}
		if !s.Valid() {
			return nil, fmt.Errorf("%w: %q", shared.ErrInvalidStatus, r)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Anime is one entry of a user's watch list.
type Anime struct {
	ID     int         `json:"id"`
	Title  string      `json:"title"`
	Status WatchStatus `json:"status"`
}

// ThemeSet holds an anime's raw opening and ending annotations. Either group may be nil.
type ThemeSet struct {
	AnimeID  int      `json:"anime_id"`
	Title    string   `json:"title"`
	Openings []string `json:"openings"`
	Endings  []string `json:"endings"`
}

// ThemeSelection picks which theme groups feed the playlist.
type ThemeSelection struct {
	Openings bool
	Endings  bool
}

// Validate requires at least one group.
func (s ThemeSelection) Validate() error {
	if !s.Openings && !s.Endings {
		return fmt.Errorf("%w: include openings, endings, or both", shared.ErrInvalidInput)
	}
	return nil
}
