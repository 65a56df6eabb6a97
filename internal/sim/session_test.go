package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/models"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietParams() dynamo.Params {
	p := dynamo.DefaultParams()
	p.Gravity = 0
	p.Sphere.Radius = 0
	for c := range p.Coefficients {
		p.Coefficients[c] = dynamo.Coefficients{}
	}
	return p
}

func pair() ([]physics.Particle, []physics.Spring) {
	particles := []physics.Particle{
		{Index: 0, Position: mgl32.Vec3{0, 0, 0}},
		{Index: 1, Position: mgl32.Vec3{1, 0, 0}},
	}
	springs := []physics.Spring{{A: 0, B: 1, RestLength: 1, Stiffness: 1, Category: dynamo.Structural}}
	return particles, springs
}

func TestStepZeroStiffnessPairAtRest(t *testing.T) {
	particles, springs := pair()
	s, err := NewSession(particles, springs)
	require.NoError(t, err)

	require.NoError(t, s.Step(context.Background(), 1.0/60, quietParams()))

	out := s.ReadParticles()
	require.Len(t, out, 2)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, out[0].Position)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, out[1].Position)
	assert.Equal(t, mgl32.Vec3{}, out[0].Velocity)
	assert.Equal(t, mgl32.Vec3{}, out[1].Velocity)
	assert.Equal(t, 1, s.Frame())
}

func TestStepFreeDriftIsLinear(t *testing.T) {
	particles, springs := pair()
	particles[0].Velocity = mgl32.Vec3{1, 2, 3}
	particles[1].Velocity = mgl32.Vec3{-0.5, 0, 4}

	const dt = float32(1.0 / 60)
	s, err := NewSession(particles, springs)
	require.NoError(t, err)
	require.NoError(t, s.Step(context.Background(), dt, quietParams()))

	out := s.ReadParticles()
	for i, p := range out {
		assert.Equal(t, particles[i].Velocity, p.Velocity, "particle %d velocity", i)
		want := particles[i].Position.Add(particles[i].Velocity.Mul(dt))
		assert.True(t, want.ApproxEqualThreshold(p.Position, 1e-6), "particle %d: want %v got %v", i, want, p.Position)
	}
}

func TestStepSphereCentreLandsOnSurface(t *testing.T) {
	particles := []physics.Particle{{Index: 0}}
	p := quietParams()
	p.Sphere = dynamo.Sphere{Radius: 1}

	s, err := NewSession(particles, nil)
	require.NoError(t, err)
	require.NoError(t, s.Step(context.Background(), 1.0/60, p))

	out := s.ReadParticles()
	assert.InDelta(t, 1.0, out[0].Position.Len(), 1e-6)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, out[0].Position)
}

func TestStepSubstepConsistency(t *testing.T) {
	cloth, err := models.NewClothGrid(4, 4, 1, 0)
	require.NoError(t, err)
	// pull one corner so springs carry load
	cloth.Particles[0].Position = cloth.Particles[0].Position.Add(mgl32.Vec3{0.1, 0.05, 0})

	p := dynamo.DefaultParams()
	p.Sphere.Radius = 0
	const elapsed = float32(0.002)

	run := func(maxSubstep float32) []physics.Particle {
		s, err := NewSession(cloth.Particles, cloth.Springs,
			WithScheduler(Scheduler{MaxSubstep: maxSubstep, MaxSubsteps: 8}))
		require.NoError(t, err)
		require.NoError(t, s.Step(context.Background(), elapsed, p))
		return s.ReadParticles()
	}

	whole := run(elapsed)
	halves := run(elapsed / 2)
	for i := range whole {
		assert.True(t, whole[i].Position.ApproxEqualThreshold(halves[i].Position, 1e-4), "particle %d position", i)
		assert.True(t, whole[i].Velocity.ApproxEqualThreshold(halves[i].Velocity, 1e-2), "particle %d velocity", i)
	}
}

func TestStepRejectsInvalidParameters(t *testing.T) {
	particles, springs := pair()
	s, err := NewSession(particles, springs)
	require.NoError(t, err)
	ctx := context.Background()

	p := quietParams()
	p.ParticleMass = 0
	assert.ErrorIs(t, s.Step(ctx, 0.01, p), dynamo.ErrInvalidParameters)

	p = quietParams()
	p.Sphere.Radius = -1
	assert.ErrorIs(t, s.Step(ctx, 0.01, p), dynamo.ErrInvalidParameters)

	assert.ErrorIs(t, s.Step(ctx, -0.01, quietParams()), dynamo.ErrInvalidParameters)
	assert.ErrorIs(t, s.Step(ctx, float32(math.NaN()), quietParams()), dynamo.ErrInvalidParameters)

	assert.Equal(t, 0, s.Frame(), "rejected steps must not advance the frame")
}

func TestStepIgnoresDeltaTime(t *testing.T) {
	particles, springs := pair()
	particles[0].Velocity = mgl32.Vec3{1, 0, 0}
	s, err := NewSession(particles, springs)
	require.NoError(t, err)

	p := quietParams()
	p.DeltaTime = -5
	require.NoError(t, s.Step(context.Background(), 0.5, p))
	assert.InDelta(t, 0.5, s.ReadParticles()[0].Position.X(), 1e-6)
}

func TestStepZeroElapsed(t *testing.T) {
	particles, springs := pair()
	particles[0].Velocity = mgl32.Vec3{1, 0, 0}
	s, err := NewSession(particles, springs)
	require.NoError(t, err)

	var seen Frame
	s.observers = append(s.observers, ObserverFunc(func(f Frame) { seen = f }))
	require.NoError(t, s.Step(context.Background(), 0, dynamo.DefaultParams()))

	assert.Equal(t, 0, seen.Substeps)
	assert.Equal(t, particles[0].Position, s.ReadParticles()[0].Position)
}

func TestStepCancelledContext(t *testing.T) {
	particles, springs := pair()
	s, err := NewSession(particles, springs)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Step(ctx, 0.01, quietParams()), context.Canceled)
	assert.Equal(t, 0, s.Frame())
}

func TestStepObserversAndMetrics(t *testing.T) {
	cloth, err := models.NewClothGrid(5, 5, 1, 3.5)
	require.NoError(t, err)

	m := telemetry.NewMetrics(nil)
	var frames []Frame
	s, err := NewSession(cloth.Particles, cloth.Springs,
		WithMetrics(m),
		WithObserver(ObserverFunc(func(f Frame) { frames = append(frames, f) })),
	)
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background(), 3, 0.016, dynamo.DefaultParams()))

	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Index)
		assert.Len(t, f.Particles, 25)
		assert.GreaterOrEqual(t, f.Substeps, 1)
		assert.Same(t, s.Springs(), f.Springs)
	}
	assert.InDelta(t, 0.048, s.Time(), 1e-6)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Frames))

	// snapshots must not alias live state
	frames[0].Particles[0].Position = mgl32.Vec3{99, 99, 99}
	assert.NotEqual(t, mgl32.Vec3{99, 99, 99}, s.ReadParticles()[0].Position)
}

func TestObserverMayReadSessionBack(t *testing.T) {
	particles, springs := pair()

	var s *Session
	var seen []int
	reader := ObserverFunc(func(f Frame) {
		seen = append(seen, s.Frame())
		assert.Len(t, s.ReadParticles(), 2)
		assert.Equal(t, f.Time, s.Time())
		s.StableSubstep(quietParams())
	})
	s, err := NewSession(particles, springs, WithObserver(reader))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Step(context.Background(), 1.0/60, quietParams()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Step did not return while its observer read the session")
	}
	assert.Equal(t, []int{1}, seen)
}

func TestStepValidationReportsDivergence(t *testing.T) {
	particles, springs := pair()
	particles[1].Position = mgl32.Vec3{3, 0, 0}

	p := quietParams()
	p.Coefficients[dynamo.Structural].Stiffness = 1e30
	p.ParticleMass = 1e-30

	s, err := NewSession(particles, springs,
		WithValidation(true),
		WithScheduler(Scheduler{MaxSubstep: 1, MaxSubsteps: 1}),
	)
	require.NoError(t, err)

	var stepErr error
	for i := 0; i < 50 && stepErr == nil; i++ {
		stepErr = s.Step(context.Background(), 1, p)
	}
	require.Error(t, stepErr)
	assert.ErrorIs(t, stepErr, dynamo.ErrUnstable)

	var simErr *dynamo.SimulationError
	require.True(t, errors.As(stepErr, &simErr))
	assert.GreaterOrEqual(t, simErr.Particle, 0)
}

func TestStrategiesAgreeThroughSession(t *testing.T) {
	cloth, err := models.NewClothGrid(6, 6, 1, 3.5)
	require.NoError(t, err)
	p := dynamo.DefaultParams()

	run := func(opts ...Option) []physics.Particle {
		s, err := NewSession(cloth.Particles, cloth.Springs, opts...)
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background(), 20, 0.016, p))
		return s.ReadParticles()
	}

	ref := run(WithStrategy(physics.StrategySerial), WithBackend(compute.NewSerialBackend()))
	gather := run(WithStrategy(physics.StrategyGather), WithBackend(compute.NewCPUBackend(4).WithMinChunk(1)))
	colored := run(WithStrategy(physics.StrategyColored), WithBackend(compute.NewCPUBackend(4).WithMinChunk(1)))

	for i := range ref {
		assert.True(t, ref[i].Position.ApproxEqualThreshold(gather[i].Position, 1e-3), "gather particle %d", i)
		assert.True(t, ref[i].Position.ApproxEqualThreshold(colored[i].Position, 1e-3), "colored particle %d", i)
	}
}

func TestStableSubstepCached(t *testing.T) {
	cloth, err := models.NewClothGrid(3, 3, 1, 0)
	require.NoError(t, err)
	s, err := NewSession(cloth.Particles, cloth.Springs)
	require.NoError(t, err)

	p := dynamo.DefaultParams()
	first := s.StableSubstep(p)
	assert.Greater(t, first, float32(0))
	assert.Equal(t, first, s.StableSubstep(p))

	p.Coefficients[dynamo.Structural].Stiffness *= 4
	assert.Less(t, s.StableSubstep(p), first)
}
