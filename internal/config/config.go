package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/integrators"
	"github.com/san-kum/clothsim/internal/models"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFrames  = 300
	DefaultFrameDt = 0.016
)

type Config struct {
	Name      string          `yaml:"name"`
	Cloth     ClothConfig     `yaml:"cloth"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Run       RunConfig       `yaml:"run"`
	Log       LogConfig       `yaml:"log"`
}

type ClothConfig struct {
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	Spacing  float32 `yaml:"spacing"`
	Altitude float32 `yaml:"altitude"`
	Mass     float32 `yaml:"mass"`
}

type CoefficientConfig struct {
	Stiffness float32 `yaml:"stiffness"`
	Damping   float32 `yaml:"damping"`
}

type SphereConfig struct {
	Center [3]float32 `yaml:"center"`
	Radius float32    `yaml:"radius"`
}

type PhysicsConfig struct {
	Gravity     float32           `yaml:"gravity"`
	Structural  CoefficientConfig `yaml:"structural"`
	Shear       CoefficientConfig `yaml:"shear"`
	Bend        CoefficientConfig `yaml:"bend"`
	Damping     float32           `yaml:"damping"`
	Restitution float32           `yaml:"restitution"`
	Rebound     string            `yaml:"rebound"`
	Sphere      SphereConfig      `yaml:"sphere"`
}

// SchedulerConfig bounds substeps. Zero max_substep derives the bound from
// stiffness; zero max_substeps leaves an explicit max_substep uncapped.
type SchedulerConfig struct {
	MaxSubstep  float32 `yaml:"max_substep"`
	MaxSubsteps int     `yaml:"max_substeps"`
}

type RunConfig struct {
	Frames     int     `yaml:"frames"`
	FrameDt    float32 `yaml:"frame_dt"`
	Strategy   string  `yaml:"strategy"`
	Integrator string  `yaml:"integrator"`
	Backend    string  `yaml:"backend"`
	Workers    int     `yaml:"workers"`
	Validate   bool    `yaml:"validate"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// DefaultConfig reproduces the reference demo: a 10x10 cloth dropped from
// 3.5 units onto a sphere at the origin.
func DefaultConfig() *Config {
	p := dynamo.DefaultParams()
	return &Config{
		Name: "reference",
		Cloth: ClothConfig{
			Width:    models.DefaultClothWidth,
			Height:   models.DefaultClothWidth,
			Spacing:  models.DefaultSpacing,
			Altitude: models.DefaultFallHeight,
			Mass:     p.ParticleMass,
		},
		Physics: PhysicsConfig{
			Gravity:     p.Gravity,
			Structural:  CoefficientConfig{Stiffness: p.Coefficients[dynamo.Structural].Stiffness},
			Shear:       CoefficientConfig{Stiffness: p.Coefficients[dynamo.Shear].Stiffness},
			Bend:        CoefficientConfig{Stiffness: p.Coefficients[dynamo.Bend].Stiffness},
			Restitution: p.Restitution,
			Rebound:     p.Rebound.String(),
			Sphere:      SphereConfig{Radius: p.Sphere.Radius},
		},
		Run: RunConfig{
			Frames:     DefaultFrames,
			FrameDt:    DefaultFrameDt,
			Strategy:   "gather",
			Integrator: "symplectic",
			Backend:    "auto",
		},
		Log: LogConfig{Level: "info", Encoding: "console"},
	}
}

// Load reads a YAML file over DefaultConfig, so omitted keys keep defaults.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over a copy of base. base is left untouched.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Cloth.Width < 2 || c.Cloth.Height < 2 {
		return fmt.Errorf("%w: cloth must be at least 2x2, got %dx%d", dynamo.ErrInvalidTopology, c.Cloth.Width, c.Cloth.Height)
	}
	if c.Cloth.Spacing <= 0 {
		return fmt.Errorf("%w: cloth spacing must be positive", dynamo.ErrInvalidTopology)
	}
	if c.Run.Frames < 0 {
		return fmt.Errorf("%w: frames must be non-negative", dynamo.ErrInvalidParameters)
	}
	if c.Run.FrameDt < 0 {
		return fmt.Errorf("%w: frame_dt must be non-negative", dynamo.ErrInvalidParameters)
	}
	if c.Scheduler.MaxSubstep < 0 || c.Scheduler.MaxSubsteps < 0 {
		return fmt.Errorf("%w: scheduler bounds must be non-negative", dynamo.ErrInvalidParameters)
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative", dynamo.ErrInvalidParameters)
	}
	if _, err := physics.ParseStrategy(c.Run.Strategy); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidParameters, err)
	}
	if _, err := integrators.ByName(c.Run.Integrator); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidParameters, err)
	}
	switch c.Run.Backend {
	case "", "auto", "cpu", "serial":
	default:
		return fmt.Errorf("%w: unknown backend %q", dynamo.ErrInvalidParameters, c.Run.Backend)
	}
	p, err := c.Params()
	if err != nil {
		return err
	}
	return p.Validate()
}

// Params converts the physics section into the per-step parameter block.
func (c *Config) Params() (dynamo.Params, error) {
	rebound, err := dynamo.ParseReboundMode(c.Physics.Rebound)
	if err != nil {
		return dynamo.Params{}, fmt.Errorf("%w: %v", dynamo.ErrInvalidParameters, err)
	}
	return dynamo.Params{
		DeltaTime:    c.Run.FrameDt,
		ParticleMass: c.Cloth.Mass,
		Gravity:      c.Physics.Gravity,
		Coefficients: [dynamo.NumCategories]dynamo.Coefficients{
			dynamo.Structural: dynamo.Coefficients(c.Physics.Structural),
			dynamo.Shear:      dynamo.Coefficients(c.Physics.Shear),
			dynamo.Bend:       dynamo.Coefficients(c.Physics.Bend),
		},
		Damping:     c.Physics.Damping,
		Sphere:      dynamo.Sphere{Center: mgl32.Vec3(c.Physics.Sphere.Center), Radius: c.Physics.Sphere.Radius},
		Restitution: c.Physics.Restitution,
		Rebound:     rebound,
	}, nil
}

func (c *Config) BuildCloth() (*models.Cloth, error) {
	return models.NewClothGrid(c.Cloth.Width, c.Cloth.Height, c.Cloth.Spacing, c.Cloth.Altitude)
}

func (c *Config) SchedulerSpec() sim.Scheduler {
	return sim.Scheduler{MaxSubstep: c.Scheduler.MaxSubstep, MaxSubsteps: c.Scheduler.MaxSubsteps}
}

// SessionOptions resolves the run section into session options. extra is
// appended last so callers can add loggers, metrics and observers.
func (c *Config) SessionOptions(extra ...sim.Option) ([]sim.Option, error) {
	strategy, err := physics.ParseStrategy(c.Run.Strategy)
	if err != nil {
		return nil, err
	}
	integ, err := integrators.ByName(c.Run.Integrator)
	if err != nil {
		return nil, err
	}
	backend, err := compute.ByName(c.Run.Backend, c.Run.Workers)
	if err != nil {
		return nil, err
	}
	opts := []sim.Option{
		sim.WithStrategy(strategy),
		sim.WithIntegrator(integ),
		sim.WithBackend(backend),
		sim.WithScheduler(c.SchedulerSpec()),
		sim.WithValidation(c.Run.Validate),
	}
	return append(opts, extra...), nil
}

// EffectiveWorkers resolves a zero worker count to the CPU count.
func (c *Config) EffectiveWorkers() int {
	if c.Run.Workers > 0 {
		return c.Run.Workers
	}
	return runtime.NumCPU()
}

// Clone returns a deep copy safe to mutate.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
