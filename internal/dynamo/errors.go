package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for cloth simulation operations.
var (
	// ErrInvalidTopology indicates a spring referencing an out-of-range or
	// repeated particle index, or a malformed spring.
	ErrInvalidTopology = errors.New("dynamo: invalid topology")

	// ErrInvalidParameters indicates non-physical simulation inputs.
	ErrInvalidParameters = errors.New("dynamo: invalid parameters")

	// ErrUnknownSession indicates a handle that was never issued or was closed.
	ErrUnknownSession = errors.New("dynamo: unknown session")

	// ErrIndexOutOfRange indicates a particle lookup past the store bounds.
	ErrIndexOutOfRange = errors.New("dynamo: particle index out of range")

	// ErrUnstable indicates the simulation produced NaN or Inf values.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")
)

// SimulationError wraps an error with frame context.
type SimulationError struct {
	Frame    int
	Substep  int
	Particle int
	Wrapped  error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("frame %d substep %d particle %d: %v", e.Frame, e.Substep, e.Particle, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
