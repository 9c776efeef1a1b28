package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/muesli/termenv"

	"github.com/zaytoolit/flightdeck/internal/config"
)

func renderProgressBar(elapsed, total float64, width int) string {
	if width < 10 {
		width = 10
	}
	barWidth := width - 2

	var ratio float64
	if total > 0 {
		ratio = elapsed / total
	}
	ratio = min(max(ratio, 0), 1)

	filled := int(ratio * float64(barWidth))
	return strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
}

func renderVolumePercent(vol float64) string {
	return fmt.Sprintf("vol %d%%", int(vol*100))
}

const sliderWidth = 18

func newSlider(profile termenv.Profile) progress.Model {
	return progress.New(
		progress.WithScaledGradient("#7E22CE", "#E879F9"),
		progress.WithoutPercentage(),
		progress.WithWidth(sliderWidth),
		progress.WithColorProfile(profile),
	)
}

// renderParam draws one parameter as "label  bar  value".
func renderParam(slider progress.Model, r config.Range, v float64) string {
	value := fmt.Sprintf("%.2f", v)
	if r.Step >= 1 {
		value = fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%-12s %s %s", r.Label, slider.ViewAs(r.Fraction(v)), timeStyle.Render(value))
}
