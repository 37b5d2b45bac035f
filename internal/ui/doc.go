// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks a watch list into a playlist:
//  1. [LoadingView] : Read the watch list and parse its themes
//  2. [AnimeListView] : Browse anime and their theme counts
//  3. [SongListView] : Preview the parsed songs of one anime
//  4. [ConfirmView] : Confirm creating (or updating) the playlist
//  5. [RunView] : Monitor search and append progress
//  6. [ResultView] : Display the playlist and how many songs made it in
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.Engine], providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
