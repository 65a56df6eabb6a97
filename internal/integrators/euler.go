package integrators

import (
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
)

// ExplicitEuler moves with the velocity from the start of the step. It gains
// energy on stiff springs and is kept as a comparison baseline.
type ExplicitEuler struct{}

func NewExplicitEuler() *ExplicitEuler {
	return &ExplicitEuler{}
}

func (e *ExplicitEuler) Name() string { return "explicit" }

func (e *ExplicitEuler) Integrate(b compute.Backend, store *physics.Store, force physics.PendingForce, p dynamo.Params) {
	dt := p.DeltaTime
	if dt == 0 {
		return
	}
	pos, vel := store.Positions(), store.Velocities()
	invMass := 1 / p.ParticleMass
	g := p.GravityVector()

	b.Dispatch(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			pos[i] = pos[i].Add(vel[i].Mul(dt))
			vel[i] = vel[i].Add(force[i].Mul(invMass).Add(g).Mul(dt))
		}
	})
}
