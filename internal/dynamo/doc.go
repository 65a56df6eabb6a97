// Package dynamo provides the shared vocabulary of the cloth solver.
//
// It defines the values every other package passes around:
//
//   - [Params]: the per-frame configuration snapshot (mass, gravity,
//     per-category spring coefficients, sphere collider)
//   - [Category]: structural, shear or bend spring classes
//   - [ReboundMode]: velocity response of the sphere collider
//   - sentinel errors such as [ErrInvalidTopology] and [ErrInvalidParameters]
//
// # Example
//
//	p := dynamo.DefaultParams()
//	p.Sphere.Radius = 1.5
//	if err := p.Validate(); err != nil {
//	    return err
//	}
//
// Params values are immutable from the solver's point of view: the scheduler
// copies them per substep with [Params.WithDeltaTime].
package dynamo
