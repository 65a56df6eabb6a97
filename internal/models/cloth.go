package models

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
)

const (
	DefaultClothWidth  = 10
	DefaultFallHeight  = 3.5
	DefaultSpacing     = 1.0
	DefaultSpringScale = 1.0
)

// Cloth is a rectangular grid mesh lying in the XZ plane at a fixed altitude,
// centred on the Y axis.
type Cloth struct {
	Width     int
	Height    int
	Particles []physics.Particle
	Springs   []physics.Spring
	Indices   []uint32
}

// NewClothGrid builds a width x height grid with structural springs to the
// direct neighbours, shear springs across each cell diagonal and bend springs
// two vertices apart. Rest lengths are the initial distances.
func NewClothGrid(width, height int, spacing, altitude float32) (*Cloth, error) {
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("%w: cloth grid needs at least 2x2 vertices, got %dx%d", dynamo.ErrInvalidTopology, width, height)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("%w: cloth spacing must be positive, got %v", dynamo.ErrInvalidTopology, spacing)
	}

	c := &Cloth{
		Width:     width,
		Height:    height,
		Particles: make([]physics.Particle, 0, width*height),
	}

	halfW, halfH := float32(width/2), float32(height/2)
	for z := 0; z < height; z++ {
		for x := 0; x < width; x++ {
			c.Particles = append(c.Particles, physics.Particle{
				Index:    len(c.Particles),
				Position: mgl32.Vec3{(float32(x) - halfW) * spacing, altitude, (float32(z) - halfH) * spacing},
				Attributes: physics.Attributes{
					Normal:    mgl32.Vec3{0, 1, 0},
					Tangent:   mgl32.Vec3{1, 0, 1},
					TexCoords: mgl32.Vec2{float32(x) / float32(width-1), float32(z) / float32(height-1)},
				},
			})
		}
	}

	for z := 0; z < height-1; z++ {
		for x := 0; x < width-1; x++ {
			v0 := uint32(z*width + x)
			v1 := uint32(z*width + x + 1)
			v2 := uint32((z+1)*width + x)
			v3 := uint32((z+1)*width + x + 1)
			c.Indices = append(c.Indices, v0, v1, v2, v1, v3, v2)
		}
	}

	for z := 0; z < height; z++ {
		for x := 0; x < width; x++ {
			c.link(x, z, x+1, z, dynamo.Structural)
			c.link(x, z, x, z+1, dynamo.Structural)
			c.link(x, z, x+1, z+1, dynamo.Shear)
			c.link(x+1, z, x, z+1, dynamo.Shear)
			c.link(x, z, x+2, z, dynamo.Bend)
			c.link(x, z, x, z+2, dynamo.Bend)
		}
	}

	return c, nil
}

func (c *Cloth) index(x, z int) int { return z*c.Width + x }

func (c *Cloth) inside(x, z int) bool {
	return x >= 0 && x < c.Width && z >= 0 && z < c.Height
}

func (c *Cloth) link(x0, z0, x1, z1 int, cat dynamo.Category) {
	if !c.inside(x0, z0) || !c.inside(x1, z1) {
		return
	}
	a, b := c.index(x0, z0), c.index(x1, z1)
	rest := c.Particles[a].Position.Sub(c.Particles[b].Position).Len()
	c.Springs = append(c.Springs, physics.Spring{
		A:          a,
		B:          b,
		RestLength: rest,
		Stiffness:  DefaultSpringScale,
		Category:   cat,
	})
}

// At returns the particle index of grid vertex (x, z).
func (c *Cloth) At(x, z int) (int, bool) {
	if !c.inside(x, z) {
		return 0, false
	}
	return c.index(x, z), true
}

// ExpectedSprings is the spring count of a full w x h grid per category.
func ExpectedSprings(w, h int) [dynamo.NumCategories]int {
	var out [dynamo.NumCategories]int
	out[dynamo.Structural] = (w-1)*h + w*(h-1)
	out[dynamo.Shear] = 2 * (w - 1) * (h - 1)
	if w > 2 {
		out[dynamo.Bend] += (w - 2) * h
	}
	if h > 2 {
		out[dynamo.Bend] += w * (h - 2)
	}
	return out
}
