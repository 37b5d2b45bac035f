package models

import (
	"fmt"
	"strings"
)

// TrackRef is an opaque catalog identifier, a Spotify track URI.
type TrackRef string

// String implements [fmt.Stringer].
func (t TrackRef) String() string { return string(t) }

// Song is a title/artist pair extracted from a theme annotation. Artist may be empty.
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// String renders the song as "Title - Artist", or just the title when the artist is unknown.
func (s Song) String() string {
	if s.Artist == "" {
		return s.Title
	}
	return fmt.Sprintf("%s - %s", s.Title, s.Artist)
}

// Query builds a free-text catalog search query for the song.
func (s Song) Query() string {
	return strings.TrimSpace(s.Title + " " + s.Artist)
}

// TrackPage is one page of a playlist's contents. Next is empty on the last page.
type TrackPage struct {
	Items []TrackRef
	Next  string
}

// PlaylistState describes the playlist an update targets.
//
// Existing is only populated while reconciling.
type PlaylistState struct {
	ID            string
	OwnerID       string
	Collaborative bool
	Existing      map[TrackRef]struct{}
}

// CanModify reports whether userID may append to the playlist.
func (p PlaylistState) CanModify(userID string) bool {
	return p.Collaborative || (p.OwnerID != "" && p.OwnerID == userID)
}

// Contains reports whether uri is already in the playlist.
func (p PlaylistState) Contains(uri TrackRef) bool {
	_, ok := p.Existing[uri]
	return ok
}

// Playlist is the subset of a catalog playlist the application displays.
type Playlist struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	OwnerID       string `json:"owner_id"`
	URL           string `json:"url"`
	ImageURL      string `json:"image_url,omitempty"`
	Public        bool   `json:"public"`
	Collaborative bool   `json:"collaborative"`
	TrackCount    int    `json:"track_count"`
}

// State returns the access-relevant view of the playlist.
func (p Playlist) State() PlaylistState {
	return PlaylistState{ID: p.ID, OwnerID: p.OwnerID, Collaborative: p.Collaborative}
}

// NewPlaylist holds the options for creating a playlist.
//
// Collaborative playlists are always created private.
type NewPlaylist struct {
	Name          string
	Description   string
	Public        bool
	Collaborative bool
	Image         []byte // JPEG cover, optional
}

// Normalize applies defaults and the collaborative/public constraint.
func (n NewPlaylist) Normalize(defaultName, defaultDescription string) NewPlaylist {
	if strings.TrimSpace(n.Name) == "" {
		n.Name = defaultName
	}
	if strings.TrimSpace(n.Description) == "" {
		n.Description = defaultDescription
	}
	if n.Collaborative {
		n.Public = false
	}
	return n
}

// PlaylistResult is the outcome of a generate or update run.
type PlaylistResult struct {
	Playlist      Playlist `json:"playlist"`
	Created       bool     `json:"created"`
	TotalDesired  int      `json:"total_desired"`
	TotalAppended int      `json:"total_appended"`
	Percentage    float64  `json:"percentage"`
	Songs         []Song   `json:"songs,omitempty"`
}
