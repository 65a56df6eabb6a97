package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/sim"
)

// DefaultStabilityThreshold is a speed no draped cloth should reach; a
// particle past it has almost certainly blown up.
const DefaultStabilityThreshold = 1e3

// Defaults returns the metrics every run reports.
func Defaults() []sim.Metric {
	return []sim.Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewStability(DefaultStabilityThreshold),
		NewCollisions(),
	}
}

// ByName returns a fresh metric for one of the names Defaults reports.
func ByName(name string) (sim.Metric, error) {
	switch name {
	case "energy":
		return NewEnergy(), nil
	case "energy_drift":
		return NewEnergyDrift(), nil
	case "stability":
		return NewStability(DefaultStabilityThreshold), nil
	case "collisions":
		return NewCollisions(), nil
	}
	return nil, fmt.Errorf("unknown metric: %s", name)
}

func Summary(ms []sim.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// Sample is one recorded frame, flattened for storage and plotting.
type Sample struct {
	Frame         int
	Time          float64
	Substeps      int
	Collisions    int
	Kinetic       float64
	Elastic       float64
	Gravitational float64
	MinY          float32
	MaxSpeed      float32
}

func (s Sample) Total() float64 { return s.Kinetic + s.Elastic + s.Gravitational }

// Recorder keeps one Sample per frame.
type Recorder struct {
	samples []Sample
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) OnFrame(f sim.Frame) {
	e := physics.Energy(f.Particles, f.Springs, f.Params)
	s := Sample{
		Frame:         f.Index,
		Time:          f.Time,
		Substeps:      f.Substeps,
		Collisions:    f.Collisions,
		Kinetic:       e.Kinetic,
		Elastic:       e.Elastic,
		Gravitational: e.Gravitational,
		MinY:          float32(math.Inf(1)),
	}
	for _, p := range f.Particles {
		if y := p.Position.Y(); y < s.MinY {
			s.MinY = y
		}
		if v := p.Velocity.Len(); v > s.MaxSpeed {
			s.MaxSpeed = v
		}
	}
	if len(f.Particles) == 0 {
		s.MinY = 0
	}
	r.samples = append(r.samples, s)
}

func (r *Recorder) Samples() []Sample { return r.samples }
