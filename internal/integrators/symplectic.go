package integrators

import (
	"fmt"

	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
)

// Integrator consumes the pending forces of a substep and advances every
// particle by params.DeltaTime.
type Integrator interface {
	Name() string
	Integrate(b compute.Backend, store *physics.Store, force physics.PendingForce, p dynamo.Params)
}

// SemiImplicitEuler updates velocity first and moves with the new velocity:
//
//	v += (F/m + g) * dt
//	x += v * dt
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler { return &SemiImplicitEuler{} }

func (s *SemiImplicitEuler) Name() string { return "symplectic" }

func (s *SemiImplicitEuler) Integrate(b compute.Backend, store *physics.Store, force physics.PendingForce, p dynamo.Params) {
	dt := p.DeltaTime
	if dt == 0 {
		return
	}
	pos, vel := store.Positions(), store.Velocities()
	invMass := 1 / p.ParticleMass
	g := p.GravityVector()

	b.Dispatch(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			acc := force[i].Mul(invMass).Add(g)
			vel[i] = vel[i].Add(acc.Mul(dt))
			pos[i] = pos[i].Add(vel[i].Mul(dt))
		}
	})
}

// ByName resolves an integrator from its config name.
func ByName(name string) (Integrator, error) {
	switch name {
	case "", "symplectic", "semi-implicit":
		return NewSemiImplicitEuler(), nil
	case "explicit", "euler":
		return NewExplicitEuler(), nil
	}
	return nil, fmt.Errorf("unknown integrator: %s", name)
}
