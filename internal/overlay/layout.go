// Package overlay lays out the flyer text and branding and rasterizes it
// into a transparent image the compositor draws over the scene.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/zaytoolit/flightdeck/internal/config"
)

// Kind is the type of a layout node.
type Kind int

const (
	KindRect Kind = iota
	KindText
)

// Node is one element of the visual tree, in target pixels. Text is
// centered in Box.
type Node struct {
	Kind   Kind
	Box    image.Rectangle
	Fill   color.NRGBA
	Border color.NRGBA // rect outline; zero alpha draws none
	Radius float64

	Text  string
	Style Style
	Size  float64
	To    color.NRGBA // vertical text gradient end; zero alpha is solid Fill
	Glow  color.NRGBA // text halo; zero alpha draws none
}

var white = color.NRGBA{255, 255, 255, 255}

func whiteA(a uint8) color.NRGBA { return color.NRGBA{255, 255, 255, a} }

func withAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a
	return c
}

// metrics holds every size used by Layout at 1080 px on the short side.
type metrics struct {
	u float64

	top, bottom  float64
	title        float64
	minTitle     float64
	subtitle     float64
	contact      float64
	gridWidth    float64
	gap          float64
	cardPad      float64
	cardRadius   float64
	cardTitle    float64
	price        float64
	index        float64
	chip         float64
	chipPadX     float64
	chipHeight   float64
	chipGap      float64
	sectionSpace float64
}

func newMetrics(w, h int) metrics {
	u := float64(min(w, h)) / 1080
	return metrics{
		u:            u,
		top:          0.08 * float64(h),
		bottom:       0.06 * float64(h),
		title:        150 * u,
		minTitle:     28 * u,
		subtitle:     34 * u,
		contact:      38 * u,
		gridWidth:    0.8 * float64(w),
		gap:          40 * u,
		cardPad:      40 * u,
		cardRadius:   48 * u,
		cardTitle:    40 * u,
		price:        56 * u,
		index:        160 * u,
		chip:         18 * u,
		chipPadX:     12 * u,
		chipHeight:   34 * u,
		chipGap:      10 * u,
		sectionSpace: 60 * u,
	}
}

// Layout builds the visual tree for f on a w×h frame: gradient title with
// glow, subtitle, a grid of service cards and the contact line.
func Layout(f config.Flyer, w, h int) []Node {
	m := newMetrics(w, h)
	accent := color.NRGBAModel.Convert(f.AccentColor()).(color.NRGBA)
	var nodes []Node

	// Title shrinks until it fits 90% of the width.
	size := m.title
	for size > m.minTitle && Measure(f.Title, Bold, size) > 0.9*float64(w) {
		size *= 0.9
	}
	y := m.top
	nodes = append(nodes, Node{
		Kind:  KindText,
		Box:   box(0, y, float64(w), size*1.2),
		Text:  f.Title,
		Style: Bold,
		Size:  size,
		Fill:  white,
		To:    accent,
		Glow:  withAlpha(accent, 0x66),
	})
	y += size*1.2 + 16*m.u

	nodes = append(nodes, textNode(f.Subtitle, Regular, m.subtitle, whiteA(150), 0, y, float64(w)))
	y += m.subtitle*1.4 + m.sectionSpace

	contactTop := float64(h) - m.bottom - m.contact*1.4
	nodes = append(nodes, textNode(f.Contact, Bold, m.contact, accent, 0, contactTop, float64(w)))

	nodes = append(nodes, cards(f.Sections, m, accent, float64(w), y, contactTop-m.sectionSpace)...)
	return nodes
}

// cardScaleFloor bounds how far cards shrink to fit short frames.
const cardScaleFloor = 0.3

func cards(sections []config.Section, m metrics, accent color.NRGBA, w, top, bottom float64) []Node {
	if len(sections) == 0 {
		return nil
	}
	g := planGrid(sections, m)
	for k := 0.9; g.height > bottom-top && k >= cardScaleFloor; k *= 0.9 {
		g = planGrid(sections, m.scaledCards(k))
	}
	m = g.m

	y0 := max(top, top+(bottom-top-g.height)/2)
	x0 := (w - m.gridWidth) / 2

	var nodes []Node
	for i, s := range sections {
		cx := x0 + float64(i%g.cols)*(g.cardW+m.gap)
		cy := y0 + float64(i/g.cols)*(g.cardH+m.gap)

		nodes = append(nodes, Node{
			Kind:   KindRect,
			Box:    box(cx, cy, g.cardW, g.cardH),
			Fill:   whiteA(13),
			Border: whiteA(26),
			Radius: m.cardRadius,
		})
		// Oversized faint index in the top-right corner.
		nodes = append(nodes, textNode(fmt.Sprint(i+1), BoldItalic, m.index, whiteA(8),
			cx+g.cardW-m.index*0.9, cy-m.index*0.15, m.index))

		y := cy + m.cardPad
		nodes = append(nodes, textNode(s.Title, Bold, m.cardTitle, white, cx, y, g.cardW))
		y += m.cardTitle*1.2 + 8*m.u
		nodes = append(nodes, textNode(s.Price, BoldItalic, m.price, accent, cx, y, g.cardW))
		y += m.price*1.2 + 16*m.u

		for _, row := range g.chips[i] {
			rowW := -m.chipGap
			for _, c := range row {
				rowW += c.width + m.chipGap
			}
			x := cx + (g.cardW-rowW)/2
			for _, c := range row {
				nodes = append(nodes,
					Node{Kind: KindRect, Box: box(x, y, c.width, m.chipHeight), Fill: whiteA(26), Radius: 6 * m.u},
					textNode(c.text, Bold, m.chip, whiteA(153), x, y, c.width),
				)
				x += c.width + m.chipGap
			}
			y += m.chipHeight + m.chipGap
		}
	}
	return nodes
}

// grid is the measured card layout for one set of metrics.
type grid struct {
	m            metrics
	cols         int
	cardW, cardH float64
	height       float64
	chips        [][][]chip
}

func planGrid(sections []config.Section, m metrics) grid {
	g := grid{m: m, cols: 1}
	if len(sections) > 3 {
		g.cols = 2
	}
	rows := (len(sections) + g.cols - 1) / g.cols
	g.cardW = (m.gridWidth - float64(g.cols-1)*m.gap) / float64(g.cols)

	chipRows := 0
	g.chips = make([][][]chip, len(sections))
	for i, s := range sections {
		g.chips[i] = flowChips(s.Features, m, g.cardW-2*m.cardPad)
		chipRows = max(chipRows, len(g.chips[i]))
	}
	g.cardH = 2*m.cardPad + m.cardTitle*1.2 + 8*m.u + m.price*1.2 + 16*m.u +
		float64(chipRows)*m.chipHeight + float64(max(0, chipRows-1))*m.chipGap
	g.height = float64(rows)*g.cardH + float64(rows-1)*m.gap
	return g
}

// scaledCards shrinks everything inside the card grid by k. The grid
// width is kept.
func (m metrics) scaledCards(k float64) metrics {
	m.u *= k
	m.gap *= k
	m.cardPad *= k
	m.cardRadius *= k
	m.cardTitle *= k
	m.price *= k
	m.index *= k
	m.chip *= k
	m.chipPadX *= k
	m.chipHeight *= k
	m.chipGap *= k
	return m
}

type chip struct {
	text  string
	width float64
}

// flowChips wraps feature chips into centered rows no wider than maxW.
func flowChips(features []string, m metrics, maxW float64) [][]chip {
	var rows [][]chip
	var row []chip
	rowW := 0.0
	for _, f := range features {
		c := chip{text: f, width: Measure(f, Bold, m.chip) + 2*m.chipPadX}
		if len(row) > 0 && rowW+m.chipGap+c.width > maxW {
			rows = append(rows, row)
			row, rowW = nil, 0
		}
		if len(row) > 0 {
			rowW += m.chipGap
		}
		row = append(row, c)
		rowW += c.width
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// textNode is a single line of text in a box as wide as w starting at x.
func textNode(text string, style Style, size float64, c color.NRGBA, x, y, w float64) Node {
	return Node{
		Kind:  KindText,
		Box:   box(x, y, w, size*1.4),
		Text:  text,
		Style: style,
		Size:  size,
		Fill:  c,
	}
}

func box(x, y, w, h float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+w)), int(math.Round(y+h)),
	)
}
