package export

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
)

// View selects the plane a cloth is projected onto.
type View uint8

const (
	// ViewSide looks along -Z: x to the right, y up.
	ViewSide View = iota
	// ViewTop looks down -Y: x to the right, z down.
	ViewTop
)

func ParseView(s string) (View, error) {
	switch s {
	case "", "side":
		return ViewSide, nil
	case "top":
		return ViewTop, nil
	}
	return 0, fmt.Errorf("unknown view: %s", s)
}

func (v View) project(p mgl32.Vec3) (float64, float64) {
	if v == ViewTop {
		return float64(p.X()), -float64(p.Z())
	}
	return float64(p.X()), float64(p.Y())
}

var springColors = [dynamo.NumCategories]string{
	dynamo.Structural: "#00ff00",
	dynamo.Shear:      "#2f6f2f",
	dynamo.Bend:       "#1f3f5f",
}

// ClothToSVG draws particles and springs, with the collision sphere outline
// when sphere has a positive radius. Bend and shear springs are drawn only when
// all is set.
func ClothToSVG(particles []physics.Particle, springs []physics.Spring, sphere dynamo.Sphere, view View, width, height int, all bool) string {
	if len(particles) == 0 {
		return ""
	}

	b := newBounds()
	for _, p := range particles {
		b.add(view.project(p.Position))
	}
	if sphere.Radius > 0 {
		cx, cy := view.project(sphere.Center)
		r := float64(sphere.Radius)
		b.add(cx-r, cy-r)
		b.add(cx+r, cy+r)
	}
	b.pad(0.1)
	// keep aspect ratio so the sphere stays round
	scale := min(float64(width)/b.rangeX(), float64(height)/b.rangeY())
	tx := func(x float64) float64 { return (x - b.minX) * scale }
	ty := func(y float64) float64 { return float64(height) - (y-b.minY)*scale }

	var sb strings.Builder
	sb.WriteString(header(width, height))

	if sphere.Radius > 0 {
		cx, cy := view.project(sphere.Center)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="#ff5f5f" stroke-width="1"/>
`, tx(cx), ty(cy), float64(sphere.Radius)*scale))
	}

	for _, s := range springs {
		if !all && s.Category != dynamo.Structural {
			continue
		}
		if s.A >= len(particles) || s.B >= len(particles) {
			continue
		}
		ax, ay := view.project(particles[s.A].Position)
		bx, by := view.project(particles[s.B].Position)
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="0.8"/>
`, tx(ax), ty(ay), tx(bx), ty(by), springColors[s.Category]))
	}

	sb.WriteString(`<g fill="#ffffff">
`)
	for _, p := range particles {
		x, y := view.project(p.Position)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="1.5"/>
`, tx(x), ty(y)))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// SeriesToSVG plots values against their index as a single polyline.
func SeriesToSVG(values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	b := newBounds()
	for i, v := range values {
		b.add(float64(i), v)
	}
	b.pad(0.1)

	var sb strings.Builder
	sb.WriteString(header(width, height))
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor))

	for i, v := range values {
		x := (float64(i) - b.minX) / b.rangeX() * float64(width)
		y := float64(height) - (v-b.minY)/b.rangeY()*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

func header(width, height int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

type bounds struct {
	minX, maxX, minY, maxY float64
	empty                  bool
}

func newBounds() *bounds { return &bounds{empty: true} }

func (b *bounds) add(x, y float64) {
	if b.empty {
		b.minX, b.maxX, b.minY, b.maxY = x, x, y, y
		b.empty = false
		return
	}
	b.minX, b.maxX = min(b.minX, x), max(b.maxX, x)
	b.minY, b.maxY = min(b.minY, y), max(b.maxY, y)
}

func (b *bounds) rangeX() float64 {
	if r := b.maxX - b.minX; r > 0 {
		return r
	}
	return 1
}

func (b *bounds) rangeY() float64 {
	if r := b.maxY - b.minY; r > 0 {
		return r
	}
	return 1
}

func (b *bounds) pad(frac float64) {
	dx, dy := b.rangeX()*frac, b.rangeY()*frac
	b.minX -= dx
	b.maxX += dx
	b.minY -= dy
	b.maxY += dy
}
