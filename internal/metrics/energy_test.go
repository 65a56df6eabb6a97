package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/models"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/sim"
)

func frameOf(particles []physics.Particle, p dynamo.Params) sim.Frame {
	return sim.Frame{Index: 1, Particles: particles, Params: p}
}

func TestEnergyOfMovingParticle(t *testing.T) {
	p := dynamo.DefaultParams()
	p.ParticleMass = 2
	p.Gravity = 10

	m := NewEnergy()
	m.OnFrame(frameOf([]physics.Particle{{Position: mgl32.Vec3{0, 1, 0}, Velocity: mgl32.Vec3{3, 0, 0}}}, p))

	// 0.5*2*9 + 2*10*1
	expected := 9.0 + 20.0
	if math.Abs(m.Value()-expected) > 1e-4 {
		t.Errorf("expected energy %f, got %f", expected, m.Value())
	}
	if len(m.Series()) != 1 {
		t.Errorf("expected one sample, got %d", len(m.Series()))
	}
	if math.Abs(m.Last().Kinetic-9) > 1e-4 {
		t.Errorf("expected kinetic 9, got %f", m.Last().Kinetic)
	}
}

func TestEnergyReset(t *testing.T) {
	m := NewEnergy()
	m.OnFrame(frameOf([]physics.Particle{{Velocity: mgl32.Vec3{1, 1, 1}}}, dynamo.DefaultParams()))
	if m.Value() == 0 {
		t.Error("expected non-zero energy")
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyDrift(t *testing.T) {
	p := dynamo.DefaultParams()
	p.Gravity = 0
	d := NewEnergyDrift()

	d.OnFrame(frameOf([]physics.Particle{{Velocity: mgl32.Vec3{1, 0, 0}}}, p))
	d.OnFrame(frameOf([]physics.Particle{{Velocity: mgl32.Vec3{2, 0, 0}}}, p))
	d.OnFrame(frameOf([]physics.Particle{{Velocity: mgl32.Vec3{1, 0, 0}}}, p))

	if math.Abs(d.Value()-3) > 1e-6 {
		t.Errorf("expected max drift 3, got %f", d.Value())
	}
	d.Reset()
	if d.Value() != 0 {
		t.Error("expected zero drift after reset")
	}
}

func TestStability(t *testing.T) {
	s := NewStability(10)
	calm := []physics.Particle{{Velocity: mgl32.Vec3{1, 0, 0}}}
	fast := []physics.Particle{{Velocity: mgl32.Vec3{0, 20, 0}}}
	broken := []physics.Particle{{Position: mgl32.Vec3{float32(math.NaN()), 0, 0}}}

	if s.Value() != 1 {
		t.Errorf("expected 1 with no samples, got %f", s.Value())
	}
	s.OnFrame(frameOf(calm, dynamo.DefaultParams()))
	s.OnFrame(frameOf(fast, dynamo.DefaultParams()))
	s.OnFrame(frameOf(broken, dynamo.DefaultParams()))
	s.OnFrame(frameOf(calm, dynamo.DefaultParams()))

	if math.Abs(s.Value()-0.5) > 1e-9 {
		t.Errorf("expected stability 0.5, got %f", s.Value())
	}
}

func TestCollisions(t *testing.T) {
	c := NewCollisions()
	c.OnFrame(sim.Frame{Collisions: 3})
	c.OnFrame(sim.Frame{Collisions: 4})
	if c.Value() != 7 {
		t.Errorf("expected 7 collisions, got %f", c.Value())
	}
}

func TestDefaultsOnDrape(t *testing.T) {
	cloth, err := models.NewClothGrid(6, 6, 1, 3.5)
	if err != nil {
		t.Fatal(err)
	}

	ms := Defaults()
	rec := NewRecorder()
	opts := []sim.Option{sim.WithObserver(rec)}
	for _, m := range ms {
		opts = append(opts, sim.WithObserver(m))
	}
	s, err := sim.NewSession(cloth.Particles, cloth.Springs, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background(), 200, 0.016, dynamo.DefaultParams()); err != nil {
		t.Fatal(err)
	}

	summary := Summary(ms)
	for _, name := range []string{"energy", "energy_drift", "stability", "collisions"} {
		if _, ok := summary[name]; !ok {
			t.Errorf("missing metric %s", name)
		}
	}
	if summary["stability"] != 1 {
		t.Errorf("expected a stable drape, got %f", summary["stability"])
	}
	if summary["collisions"] == 0 {
		t.Error("expected the cloth to reach the sphere")
	}

	samples := rec.Samples()
	if len(samples) != 200 {
		t.Fatalf("expected 200 samples, got %d", len(samples))
	}
	if samples[0].Frame != 1 || samples[199].Frame != 200 {
		t.Errorf("unexpected frame numbering %d..%d", samples[0].Frame, samples[199].Frame)
	}
	if samples[199].MinY >= samples[0].MinY {
		t.Errorf("cloth should have fallen: %f -> %f", samples[0].MinY, samples[199].MinY)
	}
}

func TestByName(t *testing.T) {
	for _, m := range Defaults() {
		got, err := ByName(m.Name())
		if err != nil {
			t.Fatalf("%s: %v", m.Name(), err)
		}
		if got.Name() != m.Name() {
			t.Errorf("ByName(%q) returned %q", m.Name(), got.Name())
		}
	}
	if _, err := ByName("entropy"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
