package tui

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
)

// View picks the projection plane of the terminal canvas.
type View uint8

const (
	ViewSide View = iota
	ViewTop
)

func (v View) String() string {
	if v == ViewTop {
		return "top"
	}
	return "side"
}

func (v View) project(p mgl32.Vec3) (float64, float64) {
	if v == ViewTop {
		return float64(p.X()), -float64(p.Z())
	}
	return float64(p.X()), float64(p.Y())
}

// Canvas is a fixed-size rune grid. Terminal cells are about twice as tall as
// wide, so world units are stretched 2:1 horizontally.
type Canvas struct {
	w, h  int
	cells [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{w: w, h: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = ' '
		}
	}
}

func (c *Canvas) Rows() []string {
	out := make([]string, len(c.cells))
	for i, row := range c.cells {
		out[i] = string(row)
	}
	return out
}

func (c *Canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

func (c *Canvas) line(x1, y1, x2, y2 int, r rune) {
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// frame maps world coordinates onto the canvas around a fixed window so the
// cloth visibly falls instead of being re-centred every frame.
type frame struct {
	cx, cy float64
	scale  float64
	w, h   int
}

func newFrame(w, h int, span float64) frame {
	if span <= 0 {
		span = 1
	}
	scale := math.Min(float64(w)/2/span, float64(h)/span)
	return frame{cx: float64(w) / 2, cy: float64(h) / 2, scale: scale, w: w, h: h}
}

func (f frame) to(x, y float64) (int, int) {
	return int(math.Round(f.cx + x*f.scale*2)), int(math.Round(f.cy - y*f.scale))
}

// DrawCloth renders structural springs, particles and the sphere outline.
// span is the world extent shown along the canvas height.
func (c *Canvas) DrawCloth(particles []physics.Particle, springs []physics.Spring, sphere dynamo.Sphere, view View, span float64) {
	c.Clear()
	f := newFrame(c.w, c.h, span)
	// centre the window slightly above the origin so the drape stays in view
	offsetY := span / 4
	if view == ViewTop {
		offsetY = 0
	}

	to := func(p mgl32.Vec3) (int, int) {
		x, y := view.project(p)
		return f.to(x, y-offsetY)
	}

	if r := float64(sphere.Radius); r > 0 {
		sx, sy := view.project(sphere.Center)
		steps := 64
		for i := 0; i < steps; i++ {
			a := 2 * math.Pi * float64(i) / float64(steps)
			x, y := f.to(sx+r*math.Cos(a), sy+r*math.Sin(a)-offsetY)
			c.set(x, y, '·')
		}
	}

	for _, s := range springs {
		if s.Category != dynamo.Structural || s.A >= len(particles) || s.B >= len(particles) {
			continue
		}
		ax, ay := to(particles[s.A].Position)
		bx, by := to(particles[s.B].Position)
		c.line(ax, ay, bx, by, '─')
	}

	for _, p := range particles {
		x, y := to(p.Position)
		c.set(x, y, '●')
	}
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
