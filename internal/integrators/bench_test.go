package integrators

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
)

func benchStore(n int) (*physics.Store, physics.PendingForce) {
	particles := make([]physics.Particle, n)
	for i := range particles {
		particles[i].Position = mgl32.Vec3{float32(i) * 0.1, 1, 0}
		particles[i].Velocity = mgl32.Vec3{0, 0.5, 0}
	}
	force := make(physics.PendingForce, n)
	for i := range force {
		force[i] = mgl32.Vec3{0.1, 0, 0}
	}
	return physics.NewStore(particles), force
}

func BenchmarkSemiImplicitEuler(b *testing.B) {
	integrator := NewSemiImplicitEuler()
	store, force := benchStore(10000)
	p := dynamo.DefaultParams()
	backend := compute.NewCPUBackend(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		integrator.Integrate(backend, store, force, p)
	}
}

func BenchmarkSemiImplicitEuler_Serial(b *testing.B) {
	integrator := NewSemiImplicitEuler()
	store, force := benchStore(10000)
	p := dynamo.DefaultParams()
	backend := compute.NewSerialBackend()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		integrator.Integrate(backend, store, force, p)
	}
}

func BenchmarkExplicitEuler(b *testing.B) {
	integrator := NewExplicitEuler()
	store, force := benchStore(10000)
	p := dynamo.DefaultParams()
	backend := compute.NewCPUBackend(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		integrator.Integrate(backend, store, force, p)
	}
}
