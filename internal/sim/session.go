package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/integrators"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/telemetry"
	"go.uber.org/zap"
)

// Handle identifies a session issued by an Engine.
type Handle uuid.UUID

func (h Handle) String() string { return uuid.UUID(h).String() }

// ParseHandle accepts the String form of a Handle.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", dynamo.ErrUnknownSession, err)
	}
	return Handle(id), nil
}

// Session owns the state of one cloth: its particles, its springs and the
// passes that advance them. Step is serialized per session.
type Session struct {
	id Handle

	mu         sync.Mutex
	store      *physics.Store
	springs    *physics.ConstraintSet
	acc        *physics.Accumulator
	integrator integrators.Integrator
	collider   *physics.SphereCollider
	backend    compute.Backend
	scheduler  Scheduler
	forces     *ForcePool
	observers  []Observer
	validate   bool

	logger  *zap.Logger
	metrics *telemetry.Metrics

	frame int
	time  float64

	stableKey   stableKey
	stableValue float32
}

type stableKey struct {
	valid  bool
	mass   float32
	coeffs [dynamo.NumCategories]dynamo.Coefficients
}

// NewSession validates the topology and builds the per-topology indexes.
func NewSession(particles []physics.Particle, springs []physics.Spring, opts ...Option) (*Session, error) {
	st := defaultSettings()
	for _, opt := range opts {
		opt(&st)
	}
	return newSession(particles, springs, st)
}

func newSession(particles []physics.Particle, springs []physics.Spring, st settings) (*Session, error) {
	set, err := physics.NewConstraintSet(springs, len(particles))
	if err != nil {
		return nil, err
	}

	if st.backend == nil {
		st.backend = compute.AutoSelectBackend(0)
	}
	if st.integrator == nil {
		st.integrator = integrators.NewSemiImplicitEuler()
	}

	s := &Session{
		id:         Handle(uuid.New()),
		store:      physics.NewStore(particles),
		springs:    set,
		acc:        physics.NewAccumulator(set, st.strategy),
		integrator: st.integrator,
		collider:   physics.NewSphereCollider(),
		backend:    st.backend,
		scheduler:  st.scheduler,
		forces:     NewForcePool(len(particles)),
		observers:  st.observers,
		validate:   st.validate,
		logger:     st.logger,
		metrics:    st.metrics,
	}

	counts := set.CountByCategory()
	fields := []zap.Field{
		zap.Stringer("session", s.id),
		zap.Int("particles", len(particles)),
		zap.Int("springs", set.Len()),
		zap.Int("structural", counts[dynamo.Structural]),
		zap.Int("shear", counts[dynamo.Shear]),
		zap.Int("bend", counts[dynamo.Bend]),
		zap.Stringer("strategy", st.strategy),
		zap.String("integrator", st.integrator.Name()),
		zap.String("backend", st.backend.Name()),
	}
	if st.strategy == physics.StrategyColored {
		fields = append(fields, zap.Int("batches", len(s.acc.Batches())))
	}
	s.logger.Debug("topology loaded", fields...)

	return s, nil
}

func (s *Session) ID() Handle { return s.id }

func (s *Session) Springs() *physics.ConstraintSet { return s.springs }

func (s *Session) Len() int { return s.store.Len() }

func (s *Session) Frame() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *Session) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

// ReadParticles returns a snapshot safe to hand to a renderer.
func (s *Session) ReadParticles() []physics.Particle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Step advances the cloth by elapsed seconds. p.DeltaTime is ignored and
// replaced by the substep length. The context is only consulted before the
// frame starts; a frame in progress always runs to completion.
func (s *Session) Step(ctx context.Context, elapsed float32, p dynamo.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if math.IsNaN(float64(elapsed)) || math.IsInf(float64(elapsed), 0) || elapsed < 0 {
		s.reject("elapsed")
		return fmt.Errorf("%w: elapsed time must be non-negative, got %v", dynamo.ErrInvalidParameters, elapsed)
	}
	p.DeltaTime = 0
	if err := p.Validate(); err != nil {
		s.reject("parameters")
		return err
	}

	s.mu.Lock()
	f, err := s.advance(elapsed, p)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	// observers run unlocked so they may call back into the session
	for _, o := range s.observers {
		o.OnFrame(f)
	}
	return nil
}

// advance runs one frame with s.mu held and returns the frame observers see.
// The particle snapshot is only taken when there are observers.
func (s *Session) advance(elapsed float32, p dynamo.Params) (Frame, error) {
	start := time.Now()
	n, h, capped := s.scheduler.Plan(elapsed, s.stableStep(p))
	if capped {
		s.logger.Warn("substep count capped, step exceeds stability bound",
			zap.Stringer("session", s.id),
			zap.Int("substeps", n),
			zap.Float32("substep", h),
		)
	}

	sub := p.WithDeltaTime(h)
	force := s.forces.Get()
	collisions := 0
	for i := 0; i < n; i++ {
		s.acc.Accumulate(s.backend, s.store, sub, force)
		s.integrator.Integrate(s.backend, s.store, force, sub)
		collisions += s.collider.Resolve(s.backend, s.store, sub)
	}
	s.forces.Put(force)

	s.frame++
	s.time += float64(elapsed)

	if s.metrics != nil {
		s.metrics.ObserveFrame(n, collisions, time.Since(start))
	}

	if s.validate {
		if i := s.store.FirstInvalid(); i >= 0 {
			s.logger.Error("simulation diverged",
				zap.Stringer("session", s.id),
				zap.Int("frame", s.frame),
				zap.Int("particle", i),
			)
			return Frame{}, &dynamo.SimulationError{Frame: s.frame, Substep: n, Particle: i, Wrapped: dynamo.ErrUnstable}
		}
	}

	f := Frame{
		Index:      s.frame,
		Time:       s.time,
		Elapsed:    elapsed,
		Substeps:   n,
		Collisions: collisions,
		Params:     sub,
		Springs:    s.springs,
	}
	if len(s.observers) > 0 {
		f.Particles = s.store.Snapshot()
	}
	return f, nil
}

// Run steps frames of frameDt seconds each, checking ctx between frames.
func (s *Session) Run(ctx context.Context, frames int, frameDt float32, p dynamo.Params) error {
	for i := 0; i < frames; i++ {
		if err := s.Step(ctx, frameDt, p); err != nil {
			return err
		}
	}
	return nil
}

// StableSubstep reports the stiffness-derived substep bound for p.
func (s *Session) StableSubstep(p dynamo.Params) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stableStep(p)
}

func (s *Session) stableStep(p dynamo.Params) float32 {
	key := stableKey{valid: true, mass: p.ParticleMass, coeffs: p.Coefficients}
	if s.stableKey != key {
		s.stableKey = key
		s.stableValue = physics.StableTimestep(s.acc.Incidence(), s.springs, p)
	}
	return s.stableValue
}

func (s *Session) reject(reason string) {
	if s.metrics != nil {
		s.metrics.Rejected.WithLabelValues(reason).Inc()
	}
}
