package sim

import "math"

// DefaultMaxSubsteps holds the stiffness-derived bound when no explicit cap
// is set.
const DefaultMaxSubsteps = 64

// Scheduler splits a frame into equal substeps. A zero MaxSubstep lets the
// session derive the bound from spring stiffness each frame. A positive
// MaxSubsteps caps the count; zero leaves an explicit MaxSubstep uncapped.
type Scheduler struct {
	MaxSubstep  float32
	MaxSubsteps int
}

func DefaultScheduler() Scheduler {
	return Scheduler{}
}

// Plan returns the substep count and length for elapsed seconds. stable is
// the stiffness-derived bound used when MaxSubstep is zero; zero means
// unbounded. capped reports that the count limit forced a longer substep than
// the bound allows. With MaxSubsteps zero only the derived bound is limited,
// to DefaultMaxSubsteps.
func (s Scheduler) Plan(elapsed, stable float32) (n int, h float32, capped bool) {
	if elapsed <= 0 {
		return 0, 0, false
	}

	bound := s.MaxSubstep
	limit := s.MaxSubsteps
	if bound <= 0 {
		bound = stable
		if limit <= 0 {
			limit = DefaultMaxSubsteps
		}
	}

	n = 1
	if bound > 0 && elapsed > bound {
		// tolerate float noise so elapsed == k*bound yields exactly k
		n = int(math.Ceil(float64(elapsed)/float64(bound) - 1e-6))
		if n < 1 {
			n = 1
		}
	}

	if limit > 0 && n > limit {
		n = limit
		capped = true
	}

	return n, elapsed / float32(n), capped
}
