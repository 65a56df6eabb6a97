// Package compute provides the execution substrate for solver passes.
//
// A pass is "one task per element, bounds-checked against the live element
// count". Backends decide how those tasks are spread:
//
//   - CPU: contiguous chunks on goroutines, one per worker
//   - Serial: a single inline loop, used for reference runs and tiny meshes
//
// # Usage
//
//	backend := compute.AutoSelectBackend(0)
//	backend.Dispatch(len(particles), func(start, end int) {
//	    for i := start; i < end; i++ {
//	        // write slot i only
//	    }
//	})
//
// Dispatch returns after all chunks complete, so consecutive calls are
// separated by a full barrier.
package compute
