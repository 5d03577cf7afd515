package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/vinayprograms/loopscope/internal/geom"
	"github.com/vinayprograms/loopscope/internal/scene"
	"github.com/vinayprograms/loopscope/internal/visual"
)

const (
	nearPlane    = 0.1
	ringSegments = 48
	flowSegments = 24
)

var (
	background    = colorful.Color{R: 0.04, G: 0.05, B: 0.08}
	fallbackColor = colorful.Color{R: 0.6, G: 0.6, B: 0.65}
	fieldColor    = colorful.Color{R: 0.45, G: 0.5, B: 0.6}
	leverColor    = mustHex("#facc15")
	errorColor    = mustHex("#ef4444")

	loopColors = map[visual.LoopType]colorful.Color{
		visual.LoopReinforcing: mustHex("#f97316"),
		visual.LoopBalancing:   mustHex("#22d3ee"),
	}

	shapeGlyphs = map[visual.Shape]rune{
		visual.ShapeSphere: '●',
		visual.ShapeBox:    '■',
		visual.ShapeIco:    '◆',
		visual.ShapeDodeca: '⬟',
	}
)

const (
	glyphLever      = '▲'
	glyphRing       = '◦'
	glyphBottleneck = '✕'
	glyphFlow       = '·'
	glyphMarker     = '✦'
	glyphParticle   = '∙'
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// parseColor accepts #rgb and #rrggbb and falls back to grey.
func parseColor(s string) colorful.Color {
	if len(s) == 4 && s[0] == '#' {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return fallbackColor
	}
	return c
}

// shade fades c into the background by opacity and lifts it toward white
// by emissive.
func shade(c colorful.Color, opacity, emissive float64) colorful.Color {
	out := background.BlendLab(c, visual.Clamp01(opacity))
	if emissive > 0 {
		out = out.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.35*visual.Clamp01(emissive))
	}
	return out.Clamped()
}

type cell struct {
	glyph rune
	color colorful.Color
	depth float64
	bold  bool
}

// Canvas rasterizes a scene snapshot into terminal cells.
type Canvas struct {
	width, height int
	cells         []cell

	pos, forward, right, up geom.Vec3
	focal, aspect           float64
}

// NewCanvas creates a canvas of the given size in cells.
func NewCanvas(width, height int) *Canvas {
	width, height = max(width, 1), max(height, 1)
	return &Canvas{
		width:  width,
		height: height,
		cells:  make([]cell, width*height),
	}
}

func (c *Canvas) clear() {
	for i := range c.cells {
		c.cells[i] = cell{depth: math.Inf(1)}
	}
}

func (c *Canvas) setCamera(cam scene.Camera) {
	c.pos = cam.Pos
	c.forward = cam.Target.Sub(cam.Pos).Normalize()
	c.right = c.forward.Cross(geom.Vec3{0, 1, 0}).Normalize()
	c.up = c.right.Cross(c.forward)
	fov := cam.FOV
	if fov <= 0 || fov >= 180 {
		fov = scene.DefaultCamera.FOV
	}
	c.focal = 1 / math.Tan(fov*math.Pi/360)
	// Terminal cells are roughly twice as tall as they are wide.
	c.aspect = float64(c.width) / float64(2*c.height)
}

// Project maps a world point to a cell. ok is false behind the camera or
// outside the canvas.
func (c *Canvas) Project(p geom.Vec3) (col, row int, depth float64, ok bool) {
	d := p.Sub(c.pos)
	z := d.Dot(c.forward)
	if z <= nearPlane {
		return 0, 0, 0, false
	}
	x := d.Dot(c.right) / z * c.focal / c.aspect
	y := d.Dot(c.up) / z * c.focal
	col = int(math.Floor((x + 1) / 2 * float64(c.width)))
	row = int(math.Floor((1 - y) / 2 * float64(c.height)))
	if col < 0 || col >= c.width || row < 0 || row >= c.height {
		return col, row, z, false
	}
	return col, row, z, true
}

func (c *Canvas) plot(p geom.Vec3, glyph rune, color colorful.Color, bold bool) (int, int, bool) {
	col, row, z, ok := c.Project(p)
	if !ok {
		return col, row, false
	}
	i := row*c.width + col
	if z > c.cells[i].depth {
		return col, row, false
	}
	c.cells[i] = cell{glyph: glyph, color: color, depth: z, bold: bold}
	return col, row, true
}

// label writes text left to right starting at (col, row) without replacing
// anything nearer than depth.
func (c *Canvas) label(col, row int, depth float64, text string, color colorful.Color) {
	if row < 0 || row >= c.height {
		return
	}
	for _, r := range text {
		if col >= c.width {
			return
		}
		if col >= 0 {
			i := row*c.width + col
			if c.cells[i].glyph == 0 || c.cells[i].depth > depth {
				c.cells[i] = cell{glyph: r, color: color, depth: depth}
			}
		}
		col++
	}
}

// Draw rasterizes snap. Entities are drawn back to front by kind: field,
// flows, loops, levers, nodes. The depth test settles overlaps within a kind.
func (c *Canvas) Draw(snap *scene.Snapshot, labels bool) {
	c.clear()
	if snap == nil {
		return
	}
	c.setCamera(snap.Camera)
	if snap.Fallback {
		return
	}

	for _, p := range snap.Field.Particles {
		c.plot(p, glyphParticle, shade(fieldColor, snap.Field.Opacity, 0), false)
	}

	for _, f := range snap.Flows {
		col := parseColor(f.Color)
		line := shade(col, f.Opacity*0.6, 0)
		step := 2
		if f.Style == visual.FlowTube {
			step = 1
		}
		for i := 0; i <= flowSegments; i += step {
			u := float64(i) / flowSegments
			c.plot(geom.Bezier(f.Start, f.Control, f.End, u), glyphFlow, line, false)
		}
		c.plot(f.Marker, glyphMarker, shade(col, f.Opacity, 0.5), f.Focused)
	}

	for _, l := range snap.Loops {
		base, ok := loopColors[l.Type]
		if !ok {
			base = fallbackColor
		}
		ring := shade(base, l.Opacity, l.Emissive)
		for i := range ringSegments {
			a := l.Rotation + 2*math.Pi*float64(i)/ringSegments
			p := l.Center.Add(geom.Vec3{math.Cos(a) * l.Radius, 0, math.Sin(a) * l.Radius})
			c.plot(p, glyphRing, ring, l.Focused)
		}
		if l.Bottleneck > 0 {
			p := l.Center.Add(geom.Vec3{math.Cos(l.Rotation) * l.Radius, 0, math.Sin(l.Rotation) * l.Radius})
			c.plot(p, glyphBottleneck, shade(errorColor, l.Opacity, l.Bottleneck), true)
		}
	}

	for _, l := range snap.Levers {
		c.plot(l.Pos, glyphLever, shade(leverColor, l.Opacity, l.Emissive), l.Focused)
	}

	for _, n := range snap.Nodes {
		glyph, ok := shapeGlyphs[n.Shape]
		if !ok {
			glyph = shapeGlyphs[visual.ShapeSphere]
		}
		col, row, drawn := c.plot(n.Pos, glyph, shade(parseColor(n.Color), n.Opacity, n.Emissive), n.Focused)
		if drawn && (labels || n.Focused) {
			_, _, z, _ := c.Project(n.Pos)
			c.label(col+2, row, z, n.ID, shade(fallbackColor, n.Opacity, 0))
		}
	}
}

// Cell returns the glyph at (col, row), or a space when empty.
func (c *Canvas) Cell(col, row int) rune {
	if col < 0 || col >= c.width || row < 0 || row >= c.height {
		return ' '
	}
	if g := c.cells[row*c.width+col].glyph; g != 0 {
		return g
	}
	return ' '
}

// Render returns the canvas as styled lines joined by newlines. Runs of the
// same color share one style.
func (c *Canvas) Render() string {
	var b strings.Builder
	for row := range c.height {
		if row > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		var runStyle *lipgloss.Style
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runStyle == nil {
				b.WriteString(run.String())
			} else {
				b.WriteString(runStyle.Render(run.String()))
			}
			run.Reset()
		}
		var prev cell
		for col := range c.width {
			cl := c.cells[row*c.width+col]
			if cl.glyph == 0 {
				if runStyle != nil {
					flush()
					runStyle = nil
				}
				run.WriteByte(' ')
				continue
			}
			if runStyle == nil || cl.color != prev.color || cl.bold != prev.bold {
				flush()
				st := lipgloss.NewStyle().Foreground(lipgloss.Color(cl.color.Hex())).Bold(cl.bold)
				runStyle = &st
			}
			prev = cl
			run.WriteRune(cl.glyph)
		}
		flush()
	}
	return b.String()
}
