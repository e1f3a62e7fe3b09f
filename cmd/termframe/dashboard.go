package main

import (
	"fmt"
	"math"
	"time"

	"github.com/odvcencio/termframe/pkg/config"
	"github.com/odvcencio/termframe/pkg/ui/compositor"
)

// palette is the resolved theme.
type palette struct {
	fg, bg, accent, muted compositor.Color
}

func newPalette(tc config.ThemeConfig) palette {
	parse := func(spec string) compositor.Color {
		c, err := compositor.ParseColor(spec)
		if err != nil {
			return compositor.ColorDefault
		}
		return c
	}
	return palette{
		fg:     parse(tc.Foreground),
		bg:     parse(tc.Background),
		accent: parse(tc.Accent),
		muted:  parse(tc.Muted),
	}
}

// dashboard draws the demo screen: a header, a row of stat columns laid out
// with DefineGrid, a scrolling bar chart and a floating panel that passes
// over the chart on a higher layer.
type dashboard struct {
	pal     palette
	started time.Time
	samples []float64
}

func newDashboard(pal palette, started time.Time) *dashboard {
	return &dashboard{pal: pal, started: started}
}

var statColumns = []compositor.Column{
	{Name: "size", Width: 9},
	{Name: "frame", Width: 12},
	{Name: "bytes", Width: 12},
	{Name: "cells", Width: 12},
}

// step advances the chart by one sample.
func (d *dashboard) step(frame uint64, width int) {
	t := float64(frame) / 12
	v := 0.5 + 0.35*math.Sin(t) + 0.15*math.Sin(t*3.7)
	d.samples = append(d.samples, v)
	if n := max(width, 1); len(d.samples) > n {
		d.samples = d.samples[len(d.samples)-n:]
	}
}

func (d *dashboard) draw(e *compositor.Engine, now time.Time) {
	w, h := e.Size()
	if w < 20 || h < 8 {
		e.WriteAt(0, 0, "terminal too small", d.pal.accent, d.pal.bg)
		return
	}
	frame := e.Frame()
	stats := e.DiffStats()
	d.step(frame, w-4)

	e.DefineRegion(compositor.Region{ID: "footer", X: 0, Y: h - 1, Width: w, Height: 1, Z: 1})
	e.DefineGrid("stats", 2, 2, w-4, 1, statColumns)

	fb := compositor.NewFrameBuilder(e)
	fb.Style(compositor.Style{FG: d.pal.fg, BG: d.pal.bg}).Fill(0, 0, w, h, ' ')

	e.WithLayer(1, func() {
		title := " termframe "
		n := e.WriteGradient(1, 0, title, d.pal.accent, compositor.ColorMagenta, d.pal.bg)
		uptime := now.Sub(d.started).Truncate(time.Second)
		e.WriteStyled(1+n, 0, fmt.Sprintf(" up %s", uptime), compositor.Style{FG: d.pal.muted, BG: d.pal.bg})
	})

	fb.Style(compositor.Style{FG: d.pal.muted, BG: d.pal.bg}).Box(0, 1, w, h-2, compositor.BoxRounded)

	e.WriteToRegion("stats_size", fmt.Sprintf("%dx%d", w, h), d.pal.accent, d.pal.bg)
	e.WriteToRegion("stats_frame", fmt.Sprintf("frame %d", frame), d.pal.fg, d.pal.bg)
	e.WriteToRegion("stats_bytes", fmt.Sprintf("bytes %d", stats.Bytes), d.pal.fg, d.pal.bg)
	e.WriteToRegion("stats_cells", fmt.Sprintf("cells %d", stats.ChangedCells), d.pal.fg, d.pal.bg)

	e.HLine(1, 3, w-2, '─', d.pal.muted, d.pal.bg)
	d.drawChart(e, 2, 4, w-4, h-6)
	d.drawPanel(e, frame, w, h)

	e.WriteToRegion("footer", " q quit  r repaint ", d.pal.muted, d.pal.bg)
}

// drawChart renders samples as vertical bars, one WriteRow per line with a
// per-column gradient.
func (d *dashboard) drawChart(e *compositor.Engine, x, y, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	colors := compositor.Gradient(d.pal.accent, compositor.ColorMagenta, w)
	line := make([]rune, w)

	release := e.Clip(x, y, w, h)
	defer release()

	for row := 0; row < h; row++ {
		level := 1 - float64(row)/float64(h)
		for col := range line {
			line[col] = ' '
			idx := len(d.samples) - w + col
			if idx >= 0 && d.samples[idx] >= level {
				line[col] = '█'
			}
		}
		e.WriteRow(x, y+row, string(line), colors, nil, nil)
	}
}

// drawPanel draws a small box that drifts across the chart above it.
func (d *dashboard) drawPanel(e *compositor.Engine, frame uint64, w, h int) {
	const pw, ph = 22, 5
	if w < pw+4 || h < ph+6 {
		return
	}
	span := w - pw - 4
	pos := int(frame) % (2 * span)
	if pos > span {
		pos = 2*span - pos
	}

	fb := compositor.NewFrameBuilder(e)
	fb.Layer(10, func(fb *compositor.FrameBuilder) {
		fb.Offset(2+pos, h/2-ph/2, func(fb *compositor.FrameBuilder) {
			fb.Style(compositor.Style{FG: d.pal.fg, BG: d.pal.bg}).
				Fill(0, 0, pw, ph, ' ').
				Style(compositor.Style{FG: d.pal.accent, BG: d.pal.bg}).
				Box(0, 0, pw, ph, compositor.BoxDouble).
				Clip(1, 1, pw-2, ph-2, func(fb *compositor.FrameBuilder) {
					fb.Style(compositor.Style{FG: d.pal.fg, BG: d.pal.bg, Attrs: compositor.AttrBold}).
						Text(2, 1, "layered panel").
						Style(compositor.Style{FG: d.pal.muted, BG: d.pal.bg}).
						Text(2, 2, "clipped to its frame, always")
				})
		})
	})
}
