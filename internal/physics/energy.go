package physics

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
)

type EnergyBreakdown struct {
	Kinetic       float64
	Elastic       float64
	Gravitational float64
}

func (e EnergyBreakdown) Total() float64 {
	return e.Kinetic + e.Elastic + e.Gravitational
}

// Energy of a particle snapshot. Gravitational potential is measured from
// y = 0. Accumulated in float64 since meshes can be large.
func Energy(particles []Particle, set *ConstraintSet, p dynamo.Params) EnergyBreakdown {
	var e EnergyBreakdown
	m := float64(p.ParticleMass)
	g := float64(p.Gravity)

	for _, pt := range particles {
		v := pt.Velocity
		e.Kinetic += 0.5 * m * float64(v.Dot(v))
		e.Gravitational += m * g * float64(pt.Position.Y())
	}

	if set == nil {
		return e
	}
	for _, s := range set.Springs() {
		if s.A >= len(particles) || s.B >= len(particles) {
			continue
		}
		k, _ := p.SpringCoefficients(s.Category, s.Stiffness)
		stretch := float64(distance(particles[s.A].Position, particles[s.B].Position) - s.RestLength)
		e.Elastic += 0.5 * float64(k) * stretch * stretch
	}
	return e
}

func distance(a, b mgl32.Vec3) float32 {
	return a.Sub(b).Len()
}
