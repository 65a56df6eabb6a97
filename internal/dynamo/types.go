package dynamo

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Category selects which coefficient set a spring uses.
type Category uint8

const (
	Structural Category = iota
	Shear
	Bend

	NumCategories = 3
)

func (c Category) String() string {
	switch c {
	case Structural:
		return "structural"
	case Shear:
		return "shear"
	case Bend:
		return "bend"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

func (c Category) Valid() bool { return c < NumCategories }

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "structural":
		return Structural, nil
	case "shear":
		return Shear, nil
	case "bend":
		return Bend, nil
	}
	return 0, fmt.Errorf("unknown spring category: %s", s)
}

// ReboundMode selects the velocity response of the sphere collider.
type ReboundMode uint8

const (
	// ReboundCompat rebuilds velocity from the pushed-out position:
	// v' = r*dot(n, x)*n - x.
	ReboundCompat ReboundMode = iota
	// ReboundReflect reflects the incoming velocity about the contact normal.
	ReboundReflect
)

func (m ReboundMode) String() string {
	switch m {
	case ReboundCompat:
		return "compat"
	case ReboundReflect:
		return "reflect"
	default:
		return fmt.Sprintf("rebound(%d)", uint8(m))
	}
}

func ParseReboundMode(s string) (ReboundMode, error) {
	switch s {
	case "", "compat":
		return ReboundCompat, nil
	case "reflect":
		return ReboundReflect, nil
	}
	return 0, fmt.Errorf("unknown rebound mode: %s", s)
}

type Coefficients struct {
	Stiffness float32
	Damping   float32
}

type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

const (
	DefaultMass        = 5.0
	DefaultGravity     = 9.81
	DefaultRestitution = 1.2
)

// Params is the per-call configuration snapshot consumed by a step. It is
// passed by value and never retained between frames.
type Params struct {
	DeltaTime    float32
	ParticleMass float32
	Gravity      float32
	Coefficients [NumCategories]Coefficients
	Damping      float32
	Sphere       Sphere
	Restitution  float32
	Rebound      ReboundMode
}

func DefaultParams() Params {
	return Params{
		DeltaTime:    0.016,
		ParticleMass: DefaultMass,
		Gravity:      DefaultGravity,
		Coefficients: [NumCategories]Coefficients{
			Structural: {Stiffness: 5.0},
			Shear:      {Stiffness: 4.0},
			Bend:       {Stiffness: 2.0},
		},
		Sphere:      Sphere{Radius: 10.0 / 8.5},
		Restitution: DefaultRestitution,
	}
}

// GravityVector points along -Y.
func (p Params) GravityVector() mgl32.Vec3 {
	return mgl32.Vec3{0, -p.Gravity, 0}
}

// SpringCoefficients returns the Hooke constant and damping coefficient for a
// spring of the given category and per-spring stiffness scale.
func (p Params) SpringCoefficients(c Category, scale float32) (k, damping float32) {
	co := p.Coefficients[c]
	return co.Stiffness * scale, co.Damping + p.Damping
}

// WithDeltaTime returns a copy with DeltaTime replaced.
func (p Params) WithDeltaTime(dt float32) Params {
	p.DeltaTime = dt
	return p
}

func (p Params) Validate() error {
	if !finite(p.ParticleMass) || p.ParticleMass <= 0 {
		return fmt.Errorf("%w: particle mass must be positive, got %v", ErrInvalidParameters, p.ParticleMass)
	}
	if !finite(p.DeltaTime) || p.DeltaTime < 0 {
		return fmt.Errorf("%w: delta time must be non-negative, got %v", ErrInvalidParameters, p.DeltaTime)
	}
	if !finite(p.Gravity) || p.Gravity < 0 {
		return fmt.Errorf("%w: gravity must be non-negative, got %v", ErrInvalidParameters, p.Gravity)
	}
	if !finite(p.Sphere.Radius) || p.Sphere.Radius < 0 {
		return fmt.Errorf("%w: sphere radius must be non-negative, got %v", ErrInvalidParameters, p.Sphere.Radius)
	}
	for i := 0; i < 3; i++ {
		if !finite(p.Sphere.Center[i]) {
			return fmt.Errorf("%w: sphere center is not finite", ErrInvalidParameters)
		}
	}
	for c, co := range p.Coefficients {
		if !finite(co.Stiffness) || co.Stiffness < 0 {
			return fmt.Errorf("%w: %s stiffness must be non-negative, got %v", ErrInvalidParameters, Category(c), co.Stiffness)
		}
		if !finite(co.Damping) || co.Damping < 0 {
			return fmt.Errorf("%w: %s damping must be non-negative, got %v", ErrInvalidParameters, Category(c), co.Damping)
		}
	}
	if !finite(p.Damping) || p.Damping < 0 {
		return fmt.Errorf("%w: damping must be non-negative, got %v", ErrInvalidParameters, p.Damping)
	}
	if !finite(p.Restitution) || p.Restitution < 0 {
		return fmt.Errorf("%w: restitution must be non-negative, got %v", ErrInvalidParameters, p.Restitution)
	}
	if p.Rebound > ReboundReflect {
		return fmt.Errorf("%w: unknown rebound mode %d", ErrInvalidParameters, p.Rebound)
	}
	return nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsFinite reports whether every component of v is a real number.
func IsFinite(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
