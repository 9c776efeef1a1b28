// Package ui is the terminal editor: flyer text, cards, visual parameters,
// export format, audio transport and a live preview of the composite.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/engine"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/logger"
	"github.com/zaytoolit/flightdeck/internal/media"
	"github.com/zaytoolit/flightdeck/internal/player"
	"github.com/zaytoolit/flightdeck/internal/preview"
	"github.com/zaytoolit/flightdeck/internal/util"
	"github.com/zaytoolit/flightdeck/internal/visualizer"
)

const (
	previewInterval = time.Second / 20
	statusTimeout   = 4 * time.Second
	leftWidth       = 48
	seekStep        = 5 * time.Second
	volumeStep      = 0.05
	defaultDocName  = "flyer.yaml"
)

// Options configures the editor.
type Options struct {
	OutDir     string
	DocPath    string          // flyer document for ctrl+g; empty saves to OutDir
	Watcher    *config.Watcher // optional hot reload of DocPath
	Player     *player.Player  // optional initial audio
	Metadata   player.Metadata
	Profile    termenv.Profile
	Logger     *slog.Logger
	NewEncoder func(ctx context.Context) (export.Encoder, error) // nil detects ffmpeg
	Now        func() time.Time
}

// Model is the Bubbletea model for the FlightDeck editor.
type Model struct {
	engine *engine.Engine
	state  *engine.State
	ring   *visualizer.RingBuffer
	opts   Options
	log    *slog.Logger

	player   *player.Player
	metadata player.Metadata
	paused   bool

	editor   editor
	focus    focusArea
	param    int
	slider   progress.Model
	meter    *visualizer.Meter
	renderer *preview.Renderer
	spinner  spinner.Model
	help     help.Model

	opening bool
	path    textinput.Model

	preparing bool
	recording *engine.ExportHandle
	recStart  time.Time

	start       time.Time
	lastPreview time.Time
	previewView string
	cols, rows  int

	status     string
	statusErr  bool
	statusTime time.Time

	width, height int
	quitting      bool
}

// New creates the editor around eng, which must read its audio from ring.
func New(eng *engine.Engine, state *engine.State, ring *visualizer.RingBuffer, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	path := newInput("path/to/track.mp3 or flyer.yaml", 1024)
	path.Width = 40

	m := Model{
		engine:   eng,
		state:    state,
		ring:     ring,
		opts:     opts,
		log:      opts.Logger,
		player:   opts.Player,
		metadata: opts.Metadata,
		editor:   newEditor(state.Flyer),
		slider:   newSlider(opts.Profile),
		meter:    visualizer.NewMeter(export.FPS),
		renderer: preview.NewRendererWithProfile(opts.Profile),
		spinner:  s,
		help:     help.New(),
		path:     path,
		start:    opts.Now(),
	}
	m.editor.focus(focusFlyer)
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{frameCmd(), textinput.Blink, tea.SetWindowTitle("FlightDeck"), waitForReload(m.opts.Watcher)}
	if m.player != nil {
		cmds = append(cmds, checkDone(m.player))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizePreview()
		return m, nil

	case frameMsg:
		return m.handleFrame(time.Time(msg))

	case spinner.TickMsg:
		if !m.preparing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case audioLoadedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("loading audio: %w", msg.err))
			return m, nil
		}
		if m.player != nil {
			m.player.Close()
		}
		m.player, m.metadata, m.paused = msg.player, msg.meta, false
		m.ring.Clear()
		m.engine.SetSource(m.ring)
		m.setStatus("Playing " + msg.meta.Label())
		return m, checkDone(msg.player)

	case playbackEndedMsg:
		if msg.player == m.player && m.player != nil {
			m.ring.Clear()
			m.setStatus("Playback finished")
		}
		return m, nil

	case documentLoadedMsg:
		if msg.err == nil {
			msg.err = m.engine.Reload(msg.doc)
		}
		if msg.err != nil {
			m.setError(fmt.Errorf("loading %s: %w", filepath.Base(msg.path), msg.err))
			return m, nil
		}
		m.opts.DocPath = msg.path
		m.afterReload()
		m.setStatus("Loaded " + filepath.Base(msg.path))
		return m, nil

	case reloadMsg:
		err := msg.Err
		if err == nil {
			err = m.engine.Reload(msg.Doc)
		}
		if err != nil {
			m.setError(fmt.Errorf("reloading flyer: %w", err))
		} else {
			m.afterReload()
			m.setStatus("Flyer reloaded")
		}
		return m, waitForReload(m.opts.Watcher)

	case exportPreparedMsg:
		m.preparing = false
		if msg.err != nil {
			m.setError(fmt.Errorf("export: %w", msg.err))
			return m, nil
		}
		h, err := m.engine.BeginExport(msg.prepared)
		if err != nil {
			m.setError(fmt.Errorf("export: %w", err))
			return m, nil
		}
		m.recording = h
		m.recStart = m.opts.Now()
		m.setStatus("Recording " + h.MimeType())
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("export: %w", msg.err))
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Saved %s (%s, %s)",
			filepath.Base(msg.result.Path),
			util.FormatBytes(msg.result.Bytes),
			util.FormatDuration(msg.result.Duration)))
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case m.opening:
		return m.handleOpenKey(msg)
	case key.Matches(msg, keys.Back):
		return m.quit()
	case key.Matches(msg, keys.Snapshot):
		m.snapshot()
		return m, nil
	case key.Matches(msg, keys.Record):
		return m.toggleRecord()
	case key.Matches(msg, keys.Pause):
		m.togglePause()
		return m, nil
	case key.Matches(msg, keys.Open):
		m.opening = true
		m.path.Reset()
		m.editor.focus(-1)
		return m, m.path.Focus()
	case key.Matches(msg, keys.Save):
		m.saveDocument()
		return m, nil
	case key.Matches(msg, keys.Next):
		return m, m.setFocus((m.focus + 1) % focusCount)
	case key.Matches(msg, keys.Prev):
		return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
	case key.Matches(msg, keys.Seek):
		m.seek(seekStep)
		return m, nil
	case key.Matches(msg, keys.SeekBack):
		m.seek(-seekStep)
		return m, nil
	case key.Matches(msg, keys.VolUp):
		m.adjustVolume(volumeStep)
		return m, nil
	case key.Matches(msg, keys.VolDown):
		m.adjustVolume(-volumeStep)
		return m, nil
	}

	switch m.focus {
	case focusFlyer:
		return m.handleFlyerKey(msg)
	case focusSections:
		return m.handleCardKey(msg)
	case focusParams:
		m.handleParamKey(msg)
	case focusPreset:
		m.handlePresetKey(msg)
	}
	return m, nil
}

func (m Model) handleFlyerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		return m, m.editor.moveField(-1)
	case key.Matches(msg, keys.Down), key.Matches(msg, keys.Confirm):
		return m, m.editor.moveField(1)
	}
	changed, cmd := m.editor.updateField(msg, &m.state.Flyer, m.engine.SetColor)
	if changed {
		m.engine.ContentChanged()
	}
	return m, cmd
}

func (m Model) handleCardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		m.editor.moveCard(m.state.Flyer, -1)
		return m, nil
	case key.Matches(msg, keys.Down), key.Matches(msg, keys.Confirm):
		m.editor.moveCard(m.state.Flyer, 1)
		return m, nil
	case key.Matches(msg, keys.Add):
		if err := m.editor.addCard(&m.state.Flyer); err != nil {
			m.setError(err)
			return m, nil
		}
		m.engine.ContentChanged()
		return m, nil
	case key.Matches(msg, keys.Remove):
		if err := m.editor.removeCard(&m.state.Flyer); err != nil {
			m.setError(err)
			return m, nil
		}
		m.engine.ContentChanged()
		return m, nil
	}
	changed, cmd := m.editor.updateCard(msg, &m.state.Flyer)
	if changed {
		m.engine.ContentChanged()
	}
	return m, cmd
}

func (m *Model) handleParamKey(msg tea.KeyMsg) {
	ranges := config.Ranges()
	switch {
	case key.Matches(msg, keys.Up):
		m.param = (m.param + len(ranges) - 1) % len(ranges)
	case key.Matches(msg, keys.Down):
		m.param = (m.param + 1) % len(ranges)
	case key.Matches(msg, keys.Left):
		_ = m.state.Params.Nudge(ranges[m.param].Name, -1)
	case key.Matches(msg, keys.Right):
		_ = m.state.Params.Nudge(ranges[m.param].Name, 1)
	}
}

func (m *Model) handlePresetKey(msg tea.KeyMsg) {
	delta := 0
	switch {
	case key.Matches(msg, keys.Left), key.Matches(msg, keys.Up):
		delta = -1
	case key.Matches(msg, keys.Right), key.Matches(msg, keys.Down):
		delta = 1
	default:
		return
	}
	presets := config.Presets()
	i := 0
	for j, p := range presets {
		if p.Key == m.state.Preset.Key {
			i = j
		}
	}
	next := presets[(i+delta+len(presets))%len(presets)]
	if err := m.engine.SetPreset(next.Key); err != nil {
		m.setError(err)
		return
	}
	m.resizePreview()
}

func (m Model) handleOpenKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		m.opening = false
		m.path.Blur()
		return m, m.editor.focus(m.focus)
	case key.Matches(msg, keys.Confirm):
		path := strings.TrimSpace(m.path.Value())
		if path == "" {
			return m, nil
		}
		m.opening = false
		m.path.Blur()
		return m, tea.Batch(m.editor.focus(m.focus), m.openCmd(path))
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

// openCmd loads an audio track or a flyer document off the frame loop.
func (m Model) openCmd(path string) tea.Cmd {
	ring := m.ring
	switch media.Classify(path) {
	case media.KindFlyer:
		return func() tea.Msg {
			doc, err := config.LoadDocument(path)
			return documentLoadedMsg{path: path, doc: doc, err: err}
		}
	case media.KindAudio:
		return func() tea.Msg {
			p, err := player.New(path, ring)
			if err != nil {
				return audioLoadedMsg{err: err}
			}
			return audioLoadedMsg{player: p, meta: player.ReadMetadata(path)}
		}
	}
	ext := filepath.Ext(path)
	return func() tea.Msg {
		return audioLoadedMsg{err: fmt.Errorf("%w %q (supported: %s)", player.ErrUnsupportedFormat, ext, media.SupportedExtsList())}
	}
}

func (m Model) handleFrame(now time.Time) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	m.engine.Frame(now.Sub(m.start))
	m.meter.Update(m.engine.Energy(), m.state.Params.Sensitivity)

	var cmds []tea.Cmd
	if h := m.recording; h != nil && !h.Active() {
		// Capture failed; the engine already restored the live view.
		m.recording = nil
		cmds = append(cmds, stopCmd(h))
	}

	if now.Sub(m.lastPreview) >= previewInterval {
		m.lastPreview = now
		m.previewView = m.renderer.Render(m.engine.Preview(), m.cols, m.rows)
	}
	if m.status != "" && now.Sub(m.statusTime) > statusTimeout {
		m.status = ""
	}
	cmds = append(cmds, frameCmd())
	return m, tea.Batch(cmds...)
}

func (m *Model) resizePreview() {
	availW := max(10, m.width-leftWidth-4)
	availH := max(4, m.height-4)
	p := m.state.Preset
	cols, rows, pixW, pixH := preview.Fit(availW, availH, p.Width, p.Height, m.renderer.Color())
	m.cols, m.rows = cols, rows
	m.engine.SetDisplay(pixW, pixH)
	m.lastPreview = time.Time{}
}

func (m *Model) setFocus(f focusArea) tea.Cmd {
	m.focus = f
	if f == focusSections {
		m.editor.loadCard(m.state.Flyer)
	}
	return m.editor.focus(f)
}

func (m *Model) afterReload() {
	m.editor.load(m.state.Flyer)
	m.resizePreview()
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr, m.statusTime = s, false, m.opts.Now()
}

func (m *Model) setError(err error) {
	m.log.Warn("ui error", "error", err)
	m.status, m.statusErr, m.statusTime = err.Error(), true, m.opts.Now()
}

func (m *Model) snapshot() {
	path, err := m.engine.Snapshot(m.opts.OutDir, m.opts.Now())
	if err != nil {
		m.setError(fmt.Errorf("snapshot: %w", err))
		return
	}
	m.setStatus("Saved " + filepath.Base(path))
}

func (m Model) toggleRecord() (tea.Model, tea.Cmd) {
	if m.preparing {
		return m, nil
	}
	if h := m.recording; h != nil {
		h.Cancel()
		m.recording = nil
		m.setStatus("Finalizing recording…")
		return m, stopCmd(h)
	}

	opts := engine.ExportOptions{
		OutDir:     m.opts.OutDir,
		NewEncoder: m.opts.NewEncoder,
		Now:        m.opts.Now,
	}
	if m.player != nil && !m.paused {
		opts.Audio = &export.AudioTrack{Path: m.player.Path(), Offset: m.player.Position()}
	}
	flyer, preset := m.state.Flyer.Clone(), m.state.Preset

	m.preparing = true
	m.setStatus("Preparing " + preset.String())
	prepare := func() tea.Msg {
		p, err := engine.PrepareExport(context.Background(), flyer, preset, opts)
		return exportPreparedMsg{prepared: p, err: err}
	}
	return m, tea.Batch(prepare, m.spinner.Tick)
}

func stopCmd(h *engine.ExportHandle) tea.Cmd {
	return func() tea.Msg {
		res, err := h.Stop()
		return exportDoneMsg{result: res, err: err}
	}
}

func (m *Model) togglePause() {
	if m.player == nil {
		return
	}
	m.player.TogglePause()
	m.paused = m.player.Paused()
	if m.paused {
		m.ring.Clear()
	}
}

func (m *Model) seek(d time.Duration) {
	if m.player != nil {
		m.player.Seek(d)
	}
}

func (m *Model) adjustVolume(d float64) {
	if m.player != nil {
		m.player.SetVolume(m.player.Volume() + d)
	}
}

func (m *Model) saveDocument() {
	path := m.opts.DocPath
	if path == "" {
		path = filepath.Join(m.opts.OutDir, defaultDocName)
	}
	doc := config.Document{
		Preset: m.state.Preset.Key,
		Params: m.state.Params,
		Flyer:  m.state.Flyer,
	}
	if err := config.SaveDocument(path, doc); err != nil {
		m.setError(fmt.Errorf("saving flyer: %w", err))
		return
	}
	m.setStatus("Saved " + filepath.Base(path))
}

// quit finalizes a running recording before leaving so no capture is lost.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if h := m.recording; h != nil {
		m.recording = nil
		if _, err := h.Stop(); err != nil && !errors.Is(err, export.ErrEmptyRecording) {
			m.log.Error("finalizing recording on quit", "error", err)
		}
	}
	if m.player != nil {
		m.player.Close()
	}
	if m.opts.Watcher != nil {
		_ = m.opts.Watcher.Close()
	}
	return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
}
