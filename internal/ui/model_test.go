package ui

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/engine"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/logger"
	"github.com/zaytoolit/flightdeck/internal/visualizer"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type stubEncoder struct {
	mu      sync.Mutex
	w, h    int
	onChunk func([]byte)
}

func (s *stubEncoder) Start(cfg export.EncoderConfig, onChunk func([]byte)) error {
	s.w, s.h, s.onChunk = cfg.Width, cfg.Height, onChunk
	return nil
}

func (s *stubEncoder) WriteFrame(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame.Bounds().Dx() != s.w || frame.Bounds().Dy() != s.h {
		return export.ErrFrameSize
	}
	s.onChunk([]byte{1, 2, 3})
	return nil
}

func (s *stubEncoder) Close() error     { return nil }
func (s *stubEncoder) MimeType() string { return "video/webm;codecs=vp9" }
func (s *stubEncoder) Ext() string      { return "webm" }

func newTestModel(t *testing.T) (Model, *engine.State, string) {
	t.Helper()
	state := &engine.State{
		Params:         config.DefaultParams(),
		Flyer:          config.DefaultFlyer(),
		Preset:         config.Preset{Key: "test", Name: "Test", Width: 64, Height: 96, Label: "2:3"},
		Display:        image.Pt(20, 20),
		PreviewVisible: true,
	}
	ring := visualizer.NewRingBuffer(1 << 16)
	eng := engine.New(state, ring, logger.NewTestLogger())
	dir := t.TempDir()
	m := New(eng, state, ring, Options{
		OutDir:  dir,
		Profile: termenv.TrueColor,
		Logger:  logger.NewTestLogger(),
		NewEncoder: func(context.Context) (export.Encoder, error) {
			return &stubEncoder{}, nil
		},
		Now: func() time.Time { return t0 },
	})
	return m, state, dir
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok, "unexpected model type %T", next)
	return out, cmd
}

func press(t *testing.T, m Model, k tea.KeyType) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: k})
	return m
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// clearInput moves to the end of the focused input and deletes backwards.
func clearInput(t *testing.T, m Model) Model {
	t.Helper()
	m = press(t, m, tea.KeyCtrlE)
	return press(t, m, tea.KeyCtrlU)
}

// collect runs cmd and expands batches, returning every message produced.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestTypingTitleUpdatesFlyer(t *testing.T) {
	m, state, _ := newTestModel(t)
	m = clearInput(t, m)
	m = typeText(t, m, "rave night")
	assert.Equal(t, "RAVE NIGHT", state.Flyer.Title)
}

func TestAccentAppliesOnlyValidColors(t *testing.T) {
	m, state, _ := newTestModel(t)
	for range 3 {
		m = press(t, m, tea.KeyDown)
	}
	m = clearInput(t, m)
	m = typeText(t, m, "#22c55e")
	assert.Equal(t, "#22c55e", state.Flyer.Accent)
	assert.True(t, m.editor.accentValid)

	m = typeText(t, m, "x")
	assert.Equal(t, "#22c55e", state.Flyer.Accent)
	assert.False(t, m.editor.accentValid)
	assert.Contains(t, m.View(), "×")
}

func TestCardLimits(t *testing.T) {
	m, state, _ := newTestModel(t)
	m = press(t, m, tea.KeyTab)
	require.Equal(t, focusSections, m.focus)

	for len(state.Flyer.Sections) < config.MaxSections {
		m = press(t, m, tea.KeyCtrlN)
	}
	m = press(t, m, tea.KeyCtrlN)
	assert.Len(t, state.Flyer.Sections, config.MaxSections)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "section limit")

	for len(state.Flyer.Sections) > config.MinSections {
		m = press(t, m, tea.KeyCtrlX)
	}
	m.status = ""
	m = press(t, m, tea.KeyCtrlX)
	assert.Len(t, state.Flyer.Sections, config.MinSections)
	assert.True(t, m.statusErr)
}

func TestCardEditing(t *testing.T) {
	m, state, _ := newTestModel(t)
	m = press(t, m, tea.KeyTab)

	m = clearInput(t, m)
	m = typeText(t, m, "vip")
	assert.Equal(t, "VIP", state.Flyer.Sections[0].Title)

	m = press(t, m, tea.KeyDown)
	require.Equal(t, partPrice, m.editor.part)
	m = clearInput(t, m)
	m = typeText(t, m, "$40 / hr")
	assert.Equal(t, "$40 / hr", state.Flyer.Sections[0].Price, "price is stored as typed")

	m = press(t, m, tea.KeyDown)
	require.Equal(t, partFeatures, m.editor.part)
	m = clearInput(t, m)
	m = typeText(t, m, "Bar, Stage")
	assert.Equal(t, []string{"Bar", "Stage"}, state.Flyer.Sections[0].Features)

	m = press(t, m, tea.KeyDown)
	assert.Equal(t, 1, m.editor.section)
	assert.Equal(t, partTitle, m.editor.part)
	assert.Equal(t, "BEAT LEASES", m.editor.card.Value())
}

func TestParamSliders(t *testing.T) {
	m, state, _ := newTestModel(t)
	m = press(t, m, tea.KeyTab)
	m = press(t, m, tea.KeyTab)
	require.Equal(t, focusParams, m.focus)

	m = press(t, m, tea.KeyRight)
	assert.InDelta(t, 1.1, state.Params.Sensitivity, 1e-9)

	m = press(t, m, tea.KeyDown)
	m = press(t, m, tea.KeyLeft)
	assert.Equal(t, 325, state.Params.Debris)
	assert.Contains(t, m.View(), "debris")
}

func TestPresetCycle(t *testing.T) {
	m, state, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	for range 3 {
		m = press(t, m, tea.KeyTab)
	}
	require.Equal(t, focusPreset, m.focus)

	m = press(t, m, tea.KeyRight)
	assert.Equal(t, config.Presets()[1].Key, state.Preset.Key)
	assert.Contains(t, m.View(), state.Preset.String())
}

func TestFrameRendersPreview(t *testing.T) {
	m, state, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	require.Positive(t, m.cols)
	assert.Equal(t, m.cols, state.Display.X)

	m, cmd := update(t, m, frameMsg(t0.Add(time.Second)))
	assert.NotNil(t, cmd)
	assert.Contains(t, m.previewView, "▀")
	assert.Contains(t, m.View(), "FLIGHTDECK")
}

func TestStatusExpires(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.setStatus("hello")
	m, _ = update(t, m, frameMsg(t0.Add(time.Second)))
	assert.Equal(t, "hello", m.status)
	m, _ = update(t, m, frameMsg(t0.Add(statusTimeout+time.Second)))
	assert.Empty(t, m.status)
}

func TestRecordToggle(t *testing.T) {
	m, state, dir := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.True(t, m.preparing)

	var prepared tea.Msg
	for _, msg := range collect(cmd) {
		if p, ok := msg.(exportPreparedMsg); ok {
			prepared = p
		}
	}
	require.NotNil(t, prepared)
	m, _ = update(t, m, prepared)
	require.NotNil(t, m.recording)
	assert.False(t, state.PreviewVisible)
	assert.Contains(t, m.View(), "REC")

	for k := range 30 {
		m, _ = update(t, m, frameMsg(t0.Add(time.Duration(k)*frameInterval)))
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Nil(t, m.recording)
	assert.True(t, state.PreviewVisible)

	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	done, ok := msgs[0].(exportDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, 30, done.result.Frames)

	m, _ = update(t, m, done)
	assert.Contains(t, m.status, "Saved FlightDeck-")
	_, err := os.Stat(filepath.Join(dir, export.Filename(export.AppName, "webm", t0)))
	require.NoError(t, err)
}

func TestRecordSetupFailure(t *testing.T) {
	m, state, dir := newTestModel(t)
	m.opts.NewEncoder = func(context.Context) (export.Encoder, error) {
		return nil, export.ErrEncoderUnavailable
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	for _, msg := range collect(cmd) {
		if p, ok := msg.(exportPreparedMsg); ok {
			m, _ = update(t, m, p)
		}
	}
	assert.False(t, m.preparing)
	assert.Nil(t, m.recording)
	assert.True(t, m.statusErr)
	assert.True(t, state.PreviewVisible)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQuitFinalizesRecording(t *testing.T) {
	m, _, dir := newTestModel(t)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	for _, msg := range collect(cmd) {
		if p, ok := msg.(exportPreparedMsg); ok {
			m, _ = update(t, m, p)
		}
	}
	require.NotNil(t, m.recording)
	m, _ = update(t, m, frameMsg(t0))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())

	_, err := os.Stat(filepath.Join(dir, export.Filename(export.AppName, "webm", t0)))
	require.NoError(t, err)
}

func TestSnapshotKey(t *testing.T) {
	m, _, dir := newTestModel(t)
	m, _ = update(t, m, frameMsg(t0))
	m = press(t, m, tea.KeyCtrlS)
	assert.False(t, m.statusErr, m.status)

	_, err := os.Stat(filepath.Join(dir, export.Filename(export.AppName, "png", t0)))
	require.NoError(t, err)
}

func TestSaveAndOpenDocument(t *testing.T) {
	m, state, dir := newTestModel(t)
	state.Preset = config.DefaultPreset()
	m = clearInput(t, m)
	m = typeText(t, m, "saved")
	m = press(t, m, tea.KeyCtrlG)
	require.False(t, m.statusErr, m.status)

	path := filepath.Join(dir, defaultDocName)
	doc, err := config.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "SAVED", doc.Flyer.Title)

	doc.Flyer.Title = "FROM DISK"
	require.NoError(t, config.SaveDocument(path, doc))
	state.Flyer.Title = "CHANGED"

	m, _ = update(t, m, m.openCmd(path)())
	assert.Equal(t, "FROM DISK", state.Flyer.Title)
	assert.Equal(t, "FROM DISK", m.editor.fields[0].Value())
	assert.Equal(t, path, m.opts.DocPath)
}

func TestOpenUnsupportedFile(t *testing.T) {
	m, _, _ := newTestModel(t)
	msg := m.openCmd("notes.txt")()
	m, _ = update(t, m, msg)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "unsupported")
	assert.Nil(t, m.player)
}

func TestOpenPromptEscape(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = press(t, m, tea.KeyCtrlO)
	require.True(t, m.opening)
	m = typeText(t, m, "abc")
	assert.Equal(t, "abc", m.path.Value())
	assert.Equal(t, "ZAYTOOLIT", m.editor.fields[0].Value(), "typing goes to the prompt")

	m = press(t, m, tea.KeyEsc)
	assert.False(t, m.opening)
	assert.False(t, m.quitting)
}

func TestReloadMessage(t *testing.T) {
	m, state, _ := newTestModel(t)

	m, _ = update(t, m, reloadMsg{Err: os.ErrNotExist})
	assert.True(t, m.statusErr)

	doc := config.DefaultDocument()
	doc.Preset = "instagram"
	doc.Flyer.Subtitle = "TONIGHT"
	m, _ = update(t, m, reloadMsg{Doc: doc})
	assert.False(t, m.statusErr)
	assert.Equal(t, "TONIGHT", state.Flyer.Subtitle)
	assert.Equal(t, "TONIGHT", m.editor.fields[1].Value())
	assert.Equal(t, "instagram", state.Preset.Key)
}

func TestHelpShowsCardKeysOnlyOnCards(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.False(t, strings.Contains(m.View(), "add card"))
	m = press(t, m, tea.KeyTab)
	assert.Contains(t, m.View(), "add card")
}
