package metrics

import (
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/sim"
)

// Stability is the fraction of frames in which every particle is finite and
// slower than threshold.
type Stability struct {
	name       string
	threshold  float32
	violations int
	samples    int
}

func NewStability(threshold float32) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) OnFrame(f sim.Frame) {
	s.samples++
	limit := s.threshold * s.threshold
	for _, p := range f.Particles {
		if !dynamo.IsFinite(p.Position) || !dynamo.IsFinite(p.Velocity) || p.Velocity.Dot(p.Velocity) > limit {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Collisions counts particle-sphere contacts across all substeps.
type Collisions struct {
	name  string
	total int
}

func NewCollisions() *Collisions {
	return &Collisions{name: "collisions"}
}

func (c *Collisions) Name() string        { return c.name }
func (c *Collisions) OnFrame(f sim.Frame) { c.total += f.Collisions }
func (c *Collisions) Value() float64      { return float64(c.total) }
func (c *Collisions) Reset()              { c.total = 0 }
