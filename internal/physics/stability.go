package physics

import (
	"math"

	"github.com/san-kum/clothsim/internal/dynamo"
)

// StabilitySafety scales the critical timestep of the stiffest particle.
const StabilitySafety = 0.5

// StiffnessLoad is the largest per-particle sum of effective spring stiffness.
func StiffnessLoad(inc *Incidence, set *ConstraintSet, p dynamo.Params) float32 {
	springs := set.Springs()
	var max float32
	for i := 0; i < inc.Particles(); i++ {
		var sum float32
		inc.Each(i, func(id int, _ float32) {
			k, _ := p.SpringCoefficients(springs[id].Category, springs[id].Stiffness)
			sum += k
		})
		if sum > max {
			max = sum
		}
	}
	return max
}

// StableTimestep bounds the explicit step for the current stiffness: a
// particle of mass m held by total stiffness k oscillates at sqrt(k/m), and
// the step must stay under 2/omega. Zero means no spring limits the step.
func StableTimestep(inc *Incidence, set *ConstraintSet, p dynamo.Params) float32 {
	k := StiffnessLoad(inc, set, p)
	if k <= 0 || p.ParticleMass <= 0 {
		return 0
	}
	return float32(StabilitySafety * 2 * math.Sqrt(float64(p.ParticleMass)/float64(k)))
}
