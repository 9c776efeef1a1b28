package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zaytoolit/flightdeck/internal/config"
)

type focusArea int

const (
	focusFlyer focusArea = iota
	focusSections
	focusParams
	focusPreset
	focusCount
)

func (f focusArea) String() string {
	switch f {
	case focusFlyer:
		return "FLYER"
	case focusSections:
		return "CARDS"
	case focusParams:
		return "VISUALS"
	case focusPreset:
		return "FORMAT"
	}
	return ""
}

var flyerFields = []struct {
	key, label, placeholder string
}{
	{config.FieldTitle, "title", "EVENT NAME"},
	{config.FieldSubtitle, "subtitle", "WHEN / WHERE"},
	{config.FieldContact, "contact", "@HANDLE"},
	{config.FieldAccent, "accent", "#a855f7"},
}

type sectionPart int

const (
	partTitle sectionPart = iota
	partPrice
	partFeatures
	partCount
)

var partLabels = [partCount]string{"title", "price", "features"}

// editor holds the text inputs for the flyer content. It writes every
// accepted edit straight into the flyer it is given.
type editor struct {
	fields []textinput.Model
	field  int

	section int
	part    sectionPart
	card    textinput.Model

	accentValid bool
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 28
	return ti
}

func newEditor(f config.Flyer) editor {
	e := editor{card: newInput("", 120), accentValid: true}
	for _, ff := range flyerFields {
		e.fields = append(e.fields, newInput(ff.placeholder, 64))
	}
	e.load(f)
	return e
}

// load copies the flyer into the inputs, keeping the cursor positions.
func (e *editor) load(f config.Flyer) {
	values := []string{f.Title, f.Subtitle, f.Contact, f.Accent}
	for i := range e.fields {
		e.fields[i].SetValue(values[i])
	}
	e.accentValid = true
	e.section = min(e.section, len(f.Sections)-1)
	e.section = max(e.section, 0)
	e.loadCard(f)
}

func (e *editor) loadCard(f config.Flyer) {
	if e.section >= len(f.Sections) {
		e.card.SetValue("")
		return
	}
	s := f.Sections[e.section]
	switch e.part {
	case partTitle:
		e.card.SetValue(s.Title)
	case partPrice:
		e.card.SetValue(s.Price)
	case partFeatures:
		e.card.SetValue(strings.Join(s.Features, ", "))
	}
	e.card.CursorEnd()
}

// focus moves keyboard focus to the input of area, blurring the rest.
func (e *editor) focus(area focusArea) tea.Cmd {
	for i := range e.fields {
		e.fields[i].Blur()
	}
	e.card.Blur()
	switch area {
	case focusFlyer:
		return e.fields[e.field].Focus()
	case focusSections:
		return e.card.Focus()
	}
	return nil
}

func (e *editor) moveField(delta int) tea.Cmd {
	e.field = (e.field + delta + len(e.fields)) % len(e.fields)
	return e.focus(focusFlyer)
}

// moveCard walks title, price, features of each card in turn.
func (e *editor) moveCard(f config.Flyer, delta int) {
	n := len(f.Sections) * int(partCount)
	if n == 0 {
		return
	}
	pos := (e.section*int(partCount) + int(e.part) + delta + n) % n
	e.section = pos / int(partCount)
	e.part = sectionPart(pos % int(partCount))
	e.loadCard(f)
}

// updateField feeds msg to the focused flyer input and reports which field
// changed. setAccent applies a color; it returns an error for values that
// are not colors yet.
func (e *editor) updateField(msg tea.Msg, f *config.Flyer, setAccent func(string) error) (bool, tea.Cmd) {
	in := &e.fields[e.field]
	before := in.Value()
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	v := in.Value()
	if v == before {
		return false, cmd
	}

	key := flyerFields[e.field].key
	if key == config.FieldAccent {
		e.accentValid = setAccent(v) == nil
		return e.accentValid, cmd
	}
	_ = f.SetField(key, v)
	return true, cmd
}

// updateCard feeds msg to the card input and writes the value back.
func (e *editor) updateCard(msg tea.Msg, f *config.Flyer) (bool, tea.Cmd) {
	before := e.card.Value()
	var cmd tea.Cmd
	e.card, cmd = e.card.Update(msg)
	v := e.card.Value()
	if v == before || e.section >= len(f.Sections) {
		return false, cmd
	}

	s := &f.Sections[e.section]
	switch e.part {
	case partTitle:
		s.Title = strings.ToUpper(v)
	case partPrice:
		s.Price = v
	case partFeatures:
		s.Features = config.ParseFeatures(v)
	}
	return true, cmd
}

func (e *editor) addCard(f *config.Flyer) error {
	if err := f.AddSection(); err != nil {
		return err
	}
	e.section = len(f.Sections) - 1
	e.part = partTitle
	e.loadCard(*f)
	return nil
}

func (e *editor) removeCard(f *config.Flyer) error {
	if err := f.RemoveSection(e.section); err != nil {
		return err
	}
	e.section = min(e.section, len(f.Sections)-1)
	e.loadCard(*f)
	return nil
}

func (e editor) viewFields(active bool) []string {
	lines := make([]string, 0, len(e.fields))
	for i, ff := range flyerFields {
		marker := "  "
		label := statusStyle.Render(fmt.Sprintf("%-9s", ff.label))
		if active && i == e.field {
			marker = sectionStyle.Render("› ")
			label = selectedStyle.Render(fmt.Sprintf("%-9s", ff.label))
		}
		line := marker + label + e.fields[i].View()
		if ff.key == config.FieldAccent && !e.accentValid {
			line += " " + errorStyle.Render("×")
		}
		lines = append(lines, line)
	}
	return lines
}

func (e editor) viewCards(f config.Flyer, active bool) []string {
	lines := make([]string, 0, len(f.Sections)+1)
	for i, s := range f.Sections {
		marker := "  "
		style := statusStyle
		if active && i == e.section {
			marker = sectionStyle.Render("› ")
			style = selectedStyle
		}
		summary := fmt.Sprintf("%d. %s  %s", i+1, orDash(s.Title), orDash(s.Price))
		if n := len(s.Features); n > 0 {
			summary += fmt.Sprintf("  (%d)", n)
		}
		lines = append(lines, marker+style.Render(truncate(summary, 40)))
		if active && i == e.section {
			lines = append(lines, "    "+helpStyle.Render(fmt.Sprintf("%-9s", partLabels[e.part]))+e.card.View())
		}
	}
	return lines
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
