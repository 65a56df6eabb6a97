package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
)

// Attributes are renderer-owned vertex fields. The solver copies them in and
// out untouched.
type Attributes struct {
	Normal    mgl32.Vec3
	Tangent   mgl32.Vec3
	TexCoords mgl32.Vec2
}

type Particle struct {
	Index      int
	Position   mgl32.Vec3
	Velocity   mgl32.Vec3
	Attributes Attributes
}

// Store owns the particle arrays of one session. Positions and velocities are
// kept in separate slices so a pass only touches what it reads and writes.
type Store struct {
	positions  []mgl32.Vec3
	velocities []mgl32.Vec3
	attrs      []Attributes
}

// NewStore copies particles into a new store. Particle.Index is ignored; the
// slice order defines the index.
func NewStore(particles []Particle) *Store {
	n := len(particles)
	s := &Store{
		positions:  make([]mgl32.Vec3, n),
		velocities: make([]mgl32.Vec3, n),
		attrs:      make([]Attributes, n),
	}
	for i, p := range particles {
		s.positions[i] = p.Position
		s.velocities[i] = p.Velocity
		s.attrs[i] = p.Attributes
	}
	return s
}

func (s *Store) Len() int { return len(s.positions) }

func (s *Store) Positions() []mgl32.Vec3  { return s.positions }
func (s *Store) Velocities() []mgl32.Vec3 { return s.velocities }

func (s *Store) At(i int) (Particle, error) {
	if i < 0 || i >= len(s.positions) {
		return Particle{}, fmt.Errorf("%w: %d (len %d)", dynamo.ErrIndexOutOfRange, i, len(s.positions))
	}
	return Particle{
		Index:      i,
		Position:   s.positions[i],
		Velocity:   s.velocities[i],
		Attributes: s.attrs[i],
	}, nil
}

func (s *Store) SetPosition(i int, p mgl32.Vec3) error {
	if i < 0 || i >= len(s.positions) {
		return fmt.Errorf("%w: %d (len %d)", dynamo.ErrIndexOutOfRange, i, len(s.positions))
	}
	s.positions[i] = p
	return nil
}

func (s *Store) SetVelocity(i int, v mgl32.Vec3) error {
	if i < 0 || i >= len(s.velocities) {
		return fmt.Errorf("%w: %d (len %d)", dynamo.ErrIndexOutOfRange, i, len(s.velocities))
	}
	s.velocities[i] = v
	return nil
}

// Snapshot returns an independent copy of every particle.
func (s *Store) Snapshot() []Particle {
	out := make([]Particle, len(s.positions))
	for i := range out {
		out[i] = Particle{
			Index:      i,
			Position:   s.positions[i],
			Velocity:   s.velocities[i],
			Attributes: s.attrs[i],
		}
	}
	return out
}

// FirstInvalid returns the first particle with a NaN or Inf component, or -1.
func (s *Store) FirstInvalid() int {
	for i := range s.positions {
		if !dynamo.IsFinite(s.positions[i]) || !dynamo.IsFinite(s.velocities[i]) {
			return i
		}
	}
	return -1
}
