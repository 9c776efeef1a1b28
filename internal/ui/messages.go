package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/engine"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/player"
)

type frameMsg time.Time
type playbackEndedMsg struct{ player *player.Player }

type audioLoadedMsg struct {
	player *player.Player
	meta   player.Metadata
	err    error
}

type documentLoadedMsg struct {
	path string
	doc  config.Document
	err  error
}

type reloadMsg config.Reload

type exportPreparedMsg struct {
	prepared *engine.PreparedExport
	err      error
}

type exportDoneMsg struct {
	result export.Result
	err    error
}

const frameInterval = time.Second / export.FPS

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func checkDone(p *player.Player) tea.Cmd {
	return func() tea.Msg {
		<-p.Done()
		return playbackEndedMsg{player: p}
	}
}

func waitForReload(w *config.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-w.Updates()
		if !ok {
			return nil
		}
		return reloadMsg(r)
	}
}
