// Package models defines domain entities and persistence interfaces for djwaifu.
//
// The package contains two categories of types:
//
// 1. Transient values built per request and discarded afterwards
//   - [Song] : a title/artist pair parsed from a theme annotation
//   - [TrackRef] : an opaque catalog URI returned by a track search
//   - [TrackPage] : one page of a playlist's current contents
//   - [PlaylistState] : ownership, collaboration flag and existing URIs of a playlist
//   - [Anime], [ThemeSet] : watch list entries and their opening/ending annotations
//   - [PlaylistResult] : outcome of a generate or update run
//
// 2. Persistent entities
//   - [Session] : a web visitor's Spotify token, user id and last result
//
// [Session] implements the Model interface; the Repository[T] interface defines
// standard CRUD operations implemented by the SQLite and Redis session stores.
package models
