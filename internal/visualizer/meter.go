package visualizer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const peakDecay = 0.02

var bandLabels = [3]string{"bass", "mid ", "high"}

var (
	meterLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3CE074"))
	meterMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0C648"))
	meterHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#F26056"))
	meterPeak = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFCD2"))
	meterDim  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#BBBBBB", Dark: "#444444"})
)

// Meter shows bass/mid/high as spring-animated bars with peak hold. It is a
// display aid only; the renderer reads BandEnergy directly.
type Meter struct {
	spring harmonica.Spring
	pos    [3]float64
	vel    [3]float64
	peak   [3]float64
}

// NewMeter creates a meter animated at fps.
func NewMeter(fps int) *Meter {
	return &Meter{spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.6)}
}

// Update moves the bars toward the energy normalized by sensitivity.
func (m *Meter) Update(e BandEnergy, sensitivity float64) {
	if sensitivity <= 0 {
		sensitivity = 1
	}
	targets := [3]float64{e.Bass, e.Mid, e.High}
	for i, t := range targets {
		t = clamp01(t / sensitivity)
		m.pos[i], m.vel[i] = m.spring.Update(m.pos[i], m.vel[i], t)
		level := clamp01(m.pos[i])
		if level > m.peak[i] {
			m.peak[i] = level
		} else {
			m.peak[i] = max(0, m.peak[i]-peakDecay)
		}
	}
}

// Levels returns the current bar levels in 0..1.
func (m *Meter) Levels() [3]float64 {
	var out [3]float64
	for i, p := range m.pos {
		out[i] = clamp01(p)
	}
	return out
}

// View renders the three bars in width cells.
func (m *Meter) View(width int) string {
	barWidth := width - 6
	if barWidth < 10 {
		barWidth = 10
	}
	lines := make([]string, 3)
	for i := range lines {
		lines[i] = fmt.Sprintf("%s %s", bandLabels[i], renderBar(clamp01(m.pos[i]), m.peak[i], barWidth))
	}
	return strings.Join(lines, "\n")
}

func renderBar(level, peak float64, width int) string {
	filled := int(level * float64(width))
	peakPos := int(peak * float64(width))
	if peakPos >= width {
		peakPos = width - 1
	}

	var sb strings.Builder
	for i := range width {
		switch {
		case i < filled && i < width*6/10:
			sb.WriteString(meterLow.Render("█"))
		case i < filled && i < width*8/10:
			sb.WriteString(meterMid.Render("█"))
		case i < filled:
			sb.WriteString(meterHigh.Render("█"))
		case i == peakPos && peakPos > 0:
			sb.WriteString(meterPeak.Render("│"))
		default:
			sb.WriteString(meterDim.Render("─"))
		}
	}
	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
