package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/clothsim/internal/dynamo"
)

type Spring struct {
	A, B       int
	RestLength float32
	Stiffness  float32
	Category   dynamo.Category
}

// ConstraintSet is the immutable spring topology of a session.
type ConstraintSet struct {
	springs   []Spring
	particles int
}

// NewConstraintSet validates springs against a particle count and takes a
// private copy of them.
func NewConstraintSet(springs []Spring, particles int) (*ConstraintSet, error) {
	if particles < 0 {
		return nil, fmt.Errorf("%w: negative particle count %d", dynamo.ErrInvalidTopology, particles)
	}
	for i, s := range springs {
		if err := s.validate(particles); err != nil {
			return nil, fmt.Errorf("%w: spring %d: %v", dynamo.ErrInvalidTopology, i, err)
		}
	}
	own := make([]Spring, len(springs))
	copy(own, springs)
	return &ConstraintSet{springs: own, particles: particles}, nil
}

func (s Spring) validate(n int) error {
	if s.A < 0 || s.A >= n {
		return fmt.Errorf("particle A index %d out of range [0,%d)", s.A, n)
	}
	if s.B < 0 || s.B >= n {
		return fmt.Errorf("particle B index %d out of range [0,%d)", s.B, n)
	}
	if s.A == s.B {
		return fmt.Errorf("both ends reference particle %d", s.A)
	}
	if !finite32(s.RestLength) || s.RestLength < 0 {
		return fmt.Errorf("rest length must be non-negative, got %v", s.RestLength)
	}
	if !finite32(s.Stiffness) || s.Stiffness <= 0 {
		return fmt.Errorf("stiffness must be positive, got %v", s.Stiffness)
	}
	if !s.Category.Valid() {
		return fmt.Errorf("unknown category %v", s.Category)
	}
	return nil
}

func finite32(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func (c *ConstraintSet) Len() int          { return len(c.springs) }
func (c *ConstraintSet) Particles() int    { return c.particles }
func (c *ConstraintSet) At(i int) Spring   { return c.springs[i] }
func (c *ConstraintSet) Springs() []Spring { return c.springs }

// CountByCategory is used for logging and the CLI summary.
func (c *ConstraintSet) CountByCategory() [dynamo.NumCategories]int {
	var out [dynamo.NumCategories]int
	for _, s := range c.springs {
		out[s.Category]++
	}
	return out
}
