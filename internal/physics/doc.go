// Package physics holds the cloth solver passes and the state they mutate.
//
//   - [Store]: particle positions and velocities plus pass-through vertex
//     attributes
//   - [ConstraintSet]: the immutable spring topology
//   - [Accumulator]: spring and damping forces summed per particle
//   - [SphereCollider]: penetration resolution against the analytic sphere
//
// # Lossless accumulation
//
// Many springs share a particle, so the force pass never lets two tasks
// write the same slot. The default [StrategyGather] walks an [Incidence]
// index built at load time and gives each particle exactly one writer;
// [StrategyColored] runs particle-disjoint [Batches] one after another.
//
//	acc := physics.NewAccumulator(set, physics.StrategyGather)
//	acc.Accumulate(backend, store, params, pending)
//
// Both strategies compute each spring through [SpringForce], so the two
// endpoints always see exactly opposite forces.
package physics
