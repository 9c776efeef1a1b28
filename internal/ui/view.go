package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/util"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	left := lipgloss.NewStyle().Width(leftWidth).Render(strings.Join(m.leftColumn(), "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", m.previewPane())

	lines := []string{"", "  " + m.header(), "", indent(body, "  "), ""}
	if m.status != "" {
		style := helpStyle
		if m.statusErr {
			style = errorStyle
		}
		lines = append(lines, "  "+style.Render(m.status))
	}
	lines = append(lines, "  "+m.help.ShortHelpView(keys.ShortHelp(m.focus)))

	view := strings.Join(lines, "\n")
	if pad := m.height - lipgloss.Height(view); pad > 0 {
		view += strings.Repeat("\n", pad)
	}
	return view
}

func (m Model) header() string {
	s := headerStyle.Render("FLIGHTDECK") + "  " + statusStyle.Render(m.state.Preset.String())
	switch {
	case m.recording != nil:
		elapsed := m.opts.Now().Sub(m.recStart)
		s += "  " + recStyle.Render("● REC "+util.FormatDuration(elapsed))
	case m.preparing:
		s += "  " + m.spinner.View() + statusStyle.Render(" preparing")
	}
	return s
}

func (m Model) leftColumn() []string {
	var out []string
	section := func(f focusArea, extra string) {
		title := headerStyle.Render(f.String())
		if m.focus == f && !m.opening {
			title = sectionStyle.Render(f.String())
		}
		out = append(out, title+extra)
	}

	section(focusFlyer, "")
	out = append(out, m.editor.viewFields(m.focus == focusFlyer)...)
	out = append(out, "")

	section(focusSections, helpStyle.Render(fmt.Sprintf("  %d/%d", len(m.state.Flyer.Sections), config.MaxSections)))
	out = append(out, m.editor.viewCards(m.state.Flyer, m.focus == focusSections)...)
	out = append(out, "")

	section(focusParams, "")
	for i, r := range config.Ranges() {
		v, _ := m.state.Params.Get(r.Name)
		marker := "  "
		if m.focus == focusParams && i == m.param {
			marker = sectionStyle.Render("› ")
		}
		out = append(out, marker+renderParam(m.slider, r, v))
	}
	out = append(out, "")

	section(focusPreset, "")
	arrowL, arrowR := " ", " "
	if m.focus == focusPreset {
		arrowL, arrowR = "◀", "▶"
	}
	out = append(out, "  "+arrowL+" "+selectedStyle.Render(m.state.Preset.String())+" "+arrowR)
	out = append(out, "")

	out = append(out, headerStyle.Render("AUDIO"))
	out = append(out, m.audioLines()...)
	out = append(out, m.meter.View(leftWidth-2))
	return out
}

func (m Model) audioLines() []string {
	if m.opening {
		return []string{"  " + statusStyle.Render("Open: ") + m.path.View()}
	}
	if m.player == nil {
		return []string{"  " + helpStyle.Render("no track (ctrl+o to open)")}
	}

	title := titleStyle.Render(truncate(m.metadata.Label(), leftWidth-4))
	elapsed, total := m.player.Position(), m.player.Duration()
	icon := "▶"
	if m.paused {
		icon = "❚❚"
	}
	e, d := util.FormatDuration(elapsed), util.FormatDuration(total)
	bar := renderProgressBar(elapsed.Seconds(), total.Seconds(), leftWidth-len(e)-len(d)-8)
	return []string{
		"  " + title,
		fmt.Sprintf("  %s %s %s %s  %s", icon, timeStyle.Render(e), bar, timeStyle.Render(d),
			statusStyle.Render(renderVolumePercent(m.player.Volume()))),
	}
}

func (m Model) previewPane() string {
	if !m.state.PreviewVisible {
		w, h := 0, 0
		if m.recording != nil {
			w, h = m.recording.Size()
		}
		msg := recStyle.Render("● REC") + "\n\n" + statusStyle.Render(fmt.Sprintf("%d×%d @ %d fps", w, h, export.FPS))
		return previewStyle.Width(max(m.cols, 20)).Height(max(m.rows, 4)).
			Align(lipgloss.Center, lipgloss.Center).Render(msg)
	}
	if m.previewView == "" {
		return ""
	}
	return previewStyle.Render(m.previewView)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
