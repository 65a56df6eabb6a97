package sim

import (
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/integrators"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/telemetry"
	"go.uber.org/zap"
)

// Frame describes one completed Step. Particles is a snapshot and is only
// filled when the session has observers.
type Frame struct {
	Index      int
	Time       float64
	Elapsed    float32
	Substeps   int
	Collisions int
	Params     dynamo.Params
	Springs    *physics.ConstraintSet
	Particles  []physics.Particle
}

// Observer receives every completed frame. OnFrame runs on the goroutine
// that called Step, after the session lock is released, so it may read the
// session back.
type Observer interface {
	OnFrame(f Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f Frame)

func (fn ObserverFunc) OnFrame(f Frame) { fn(f) }

// Metric is an Observer that folds frames into a single number.
type Metric interface {
	Observer
	Name() string
	Value() float64
	Reset()
}

type settings struct {
	strategy   physics.Strategy
	integrator integrators.Integrator
	backend    compute.Backend
	scheduler  Scheduler
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	validate   bool
	observers  []Observer
}

func defaultSettings() settings {
	return settings{
		strategy:   physics.StrategyGather,
		integrator: integrators.NewSemiImplicitEuler(),
		scheduler:  DefaultScheduler(),
		logger:     zap.NewNop(),
	}
}

func (s settings) clone() settings {
	s.observers = append([]Observer(nil), s.observers...)
	return s
}

type Option func(*settings)

func WithStrategy(st physics.Strategy) Option {
	return func(s *settings) { s.strategy = st }
}

func WithIntegrator(i integrators.Integrator) Option {
	return func(s *settings) { s.integrator = i }
}

func WithBackend(b compute.Backend) Option {
	return func(s *settings) { s.backend = b }
}

func WithScheduler(sch Scheduler) Option {
	return func(s *settings) { s.scheduler = sch }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithValidation makes Step fail with dynamo.ErrUnstable once any particle
// goes NaN or Inf.
func WithValidation(on bool) Option {
	return func(s *settings) { s.validate = on }
}

func WithObserver(o Observer) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}
