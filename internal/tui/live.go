package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/sim"
)

const (
	width       = 70
	height      = 22
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer redraws the cloth in place as frames arrive, throttled to
// frameRate. It is a plain Observer, so it works without a TTY program.
type LiveRenderer struct {
	out       io.Writer
	name      string
	frameRate int
	view      View
	span      float64
	lastFrame time.Time
	canvas    *Canvas
}

func NewLiveRenderer(out io.Writer, name string, frameRate int) *LiveRenderer {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &LiveRenderer{
		out:       out,
		name:      name,
		frameRate: frameRate,
		span:      12,
		canvas:    NewCanvas(width, height),
	}
}

func (r *LiveRenderer) WithView(v View) *LiveRenderer {
	r.view = v
	return r
}

func (r *LiveRenderer) OnFrame(f sim.Frame) {
	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	var springs []physics.Spring
	if f.Springs != nil {
		springs = f.Springs.Springs()
	}
	r.canvas.DrawCloth(f.Particles, springs, f.Params.Sphere, r.view, r.span)
	r.render(f)
}

func (r *LiveRenderer) render(f sim.Frame) {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(fmt.Sprintf("  %s  frame=%d  t=%.2fs  substeps=%d  hits=%d\n",
		r.name, f.Index, f.Time, f.Substeps, f.Collisions))
	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	for _, row := range r.canvas.Rows() {
		b.WriteString("  ")
		b.WriteString(row)
		b.WriteString("\n")
	}

	b.WriteString("  " + strings.Repeat("-", width) + "\n")
	e := physics.Energy(f.Particles, f.Springs, f.Params)
	b.WriteString(fmt.Sprintf("  KE=%.2f  elastic=%.2f  PE=%.2f\n", e.Kinetic, e.Elastic, e.Gravitational))

	fmt.Fprint(r.out, b.String())
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }
