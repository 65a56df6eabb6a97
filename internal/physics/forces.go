package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
)

// PendingForce holds the accumulated force per particle for one substep.
type PendingForce []mgl32.Vec3

func (f PendingForce) Reset() {
	for i := range f {
		f[i] = mgl32.Vec3{}
	}
}

// Strategy selects how spring forces are combined into PendingForce without
// losing concurrent updates.
type Strategy uint8

const (
	// StrategyGather runs one task per particle summing its incident springs.
	StrategyGather Strategy = iota
	// StrategyColored runs batches of particle-disjoint springs in sequence.
	StrategyColored
	// StrategySerial is the single-threaded reference loop.
	StrategySerial
)

func (s Strategy) String() string {
	switch s {
	case StrategyGather:
		return "gather"
	case StrategyColored:
		return "colored"
	case StrategySerial:
		return "serial"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "gather":
		return StrategyGather, nil
	case "colored":
		return StrategyColored, nil
	case "serial":
		return StrategySerial, nil
	}
	return 0, fmt.Errorf("unknown accumulation strategy: %s", name)
}

// SpringForce returns the spring plus damping force acting on the A end of s.
// The B end receives exactly the negation.
func SpringForce(s Spring, posA, posB, velA, velB mgl32.Vec3, p dynamo.Params) mgl32.Vec3 {
	k, c := p.SpringCoefficients(s.Category, s.Stiffness)

	delta := posA.Sub(posB)
	dist := delta.Len()

	// coincident endpoints have no direction; leave the spring term at zero
	var force mgl32.Vec3
	if dist > 0 {
		dir := delta.Mul(1 / dist)
		force = dir.Mul(-k * (dist - s.RestLength))
	}

	rel := velA.Sub(velB)
	if relLen := rel.Len(); relLen != 0 && c != 0 {
		force = force.Add(rel.Mul(1 / relLen).Mul(-c * relLen))
	}
	return force
}

// Accumulator is the force pass. The incidence index and spring batches are
// built once when the accumulator is created.
type Accumulator struct {
	set       *ConstraintSet
	strategy  Strategy
	incidence *Incidence
	batches   Batches
}

func NewAccumulator(set *ConstraintSet, strategy Strategy) *Accumulator {
	a := &Accumulator{
		set:       set,
		strategy:  strategy,
		incidence: BuildIncidence(set),
	}
	if strategy == StrategyColored {
		a.batches = ColorSprings(set)
	}
	return a
}

// Strategy is the accumulation strategy fixed at construction.
func (a *Accumulator) Strategy() Strategy { return a.strategy }

// Incidence is the particle to spring index, built for every strategy.
func (a *Accumulator) Incidence() *Incidence { return a.incidence }

// Batches holds the particle-disjoint spring batches. It is nil unless the
// strategy is StrategyColored.
func (a *Accumulator) Batches() Batches { return a.batches }

// Springs is the constraint set the accumulator reads.
func (a *Accumulator) Springs() *ConstraintSet { return a.set }

// Accumulate overwrites out with the net spring force on every particle.
// out must have one slot per particle.
func (a *Accumulator) Accumulate(b compute.Backend, store *Store, p dynamo.Params, out PendingForce) {
	switch a.strategy {
	case StrategyColored:
		a.colored(b, store, p, out)
	case StrategySerial:
		a.serial(store, p, out)
	default:
		a.gather(b, store, p, out)
	}
}

func (a *Accumulator) gather(b compute.Backend, store *Store, p dynamo.Params, out PendingForce) {
	pos, vel := store.Positions(), store.Velocities()
	springs := a.set.Springs()

	b.Dispatch(len(out), func(start, end int) {
		for i := start; i < end; i++ {
			var sum mgl32.Vec3
			a.incidence.Each(i, func(id int, sign float32) {
				s := springs[id]
				f := SpringForce(s, pos[s.A], pos[s.B], vel[s.A], vel[s.B], p)
				sum = sum.Add(f.Mul(sign))
			})
			out[i] = sum
		}
	})
}

func (a *Accumulator) colored(b compute.Backend, store *Store, p dynamo.Params, out PendingForce) {
	pos, vel := store.Positions(), store.Velocities()
	springs := a.set.Springs()

	b.Dispatch(len(out), func(start, end int) {
		out[start:end].Reset()
	})

	for _, batch := range a.batches {
		b.Dispatch(len(batch), func(start, end int) {
			for _, id := range batch[start:end] {
				s := springs[id]
				f := SpringForce(s, pos[s.A], pos[s.B], vel[s.A], vel[s.B], p)
				out[s.A] = out[s.A].Add(f)
				out[s.B] = out[s.B].Sub(f)
			}
		})
	}
}

func (a *Accumulator) serial(store *Store, p dynamo.Params, out PendingForce) {
	pos, vel := store.Positions(), store.Velocities()
	out.Reset()
	for _, s := range a.set.Springs() {
		f := SpringForce(s, pos[s.A], pos[s.B], vel[s.A], vel[s.B], p)
		out[s.A] = out[s.A].Add(f)
		out[s.B] = out[s.B].Sub(f)
	}
}
