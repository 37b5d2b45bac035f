package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgThemesFetched MsgKind = iota
	MsgProgressUpdate
	MsgRunComplete
)

type themesFetched struct {
	themes *tasks.ThemeRunResult
	err    error
}

type runComplete struct {
	result *models.PlaylistResult
	err    error
}

// themesFetchedMsg is the constructor for [MsgThemesFetched]
func themesFetchedMsg(themes *tasks.ThemeRunResult, err error) Msg {
	return Msg{kind: MsgThemesFetched, data: themesFetched{themes, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(result *models.PlaylistResult, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{result, err}}
}
