package metrics

import (
	"math"

	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/sim"
)

// Energy tracks the total mechanical energy of the cloth. Value is the mean
// over observed frames; Series keeps every frame for plotting.
type Energy struct {
	name   string
	series []float64
	last   physics.EnergyBreakdown
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) OnFrame(f sim.Frame) {
	e.last = physics.Energy(f.Particles, f.Springs, f.Params)
	e.series = append(e.series, e.last.Total())
}

func (e *Energy) Value() float64 {
	if len(e.series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range e.series {
		sum += v
	}
	return sum / float64(len(e.series))
}

func (e *Energy) Last() physics.EnergyBreakdown { return e.last }

func (e *Energy) Series() []float64 { return e.series }

func (e *Energy) Reset() {
	e.series = e.series[:0]
	e.last = physics.EnergyBreakdown{}
}

// EnergyDrift is the largest relative departure from the first observed
// energy. Collisions inject energy under the compat rebound, so drift on a
// draped cloth measures the contact model as much as the integrator.
type EnergyDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) OnFrame(f sim.Frame) {
	energy := physics.Energy(f.Particles, f.Springs, f.Params).Total()

	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
