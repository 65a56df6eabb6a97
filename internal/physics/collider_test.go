package physics_test

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
)

var _ = Describe("SphereCollider", func() {
	var p dynamo.Params

	BeforeEach(func() {
		p = dynamo.DefaultParams()
		p.Gravity = 0
		p.Sphere = dynamo.Sphere{Center: mgl32.Vec3{0.5, -1, 2}, Radius: 1.5}
	})

	It("moves every penetrating particle onto the surface", func() {
		r := rand.New(rand.NewSource(1))
		particles := make([]physics.Particle, 2000)
		for i := range particles {
			dir := randVec(r, 1)
			if dir.Len() == 0 {
				dir = mgl32.Vec3{1, 0, 0}
			}
			dist := r.Float32() * p.Sphere.Radius * 0.999
			particles[i].Position = p.Sphere.Center.Add(dir.Normalize().Mul(dist))
			particles[i].Velocity = randVec(r, 3)
		}
		store := physics.NewStore(particles)

		hits := physics.NewSphereCollider().Resolve(compute.NewCPUBackend(4).WithMinChunk(16), store, p)

		Expect(hits).To(Equal(len(particles)))
		for i, pos := range store.Positions() {
			d := pos.Sub(p.Sphere.Center).Len()
			Expect(float64(d)).To(BeNumerically("~", float64(p.Sphere.Radius), 1e-5), "particle %d", i)
		}
	})

	It("leaves particles on or outside the surface bit-identical", func() {
		r := rand.New(rand.NewSource(2))
		particles := make([]physics.Particle, 500)
		for i := range particles {
			dir := randVec(r, 1)
			if dir.Len() == 0 {
				dir = mgl32.Vec3{0, 0, 1}
			}
			dist := p.Sphere.Radius*1.001 + r.Float32()*10
			particles[i].Position = p.Sphere.Center.Add(dir.Normalize().Mul(dist))
			particles[i].Velocity = randVec(r, 3)
		}
		store := physics.NewStore(particles)
		before := store.Snapshot()

		hits := physics.NewSphereCollider().Resolve(compute.NewSerialBackend(), store, p)

		Expect(hits).To(BeZero())
		Expect(store.Snapshot()).To(Equal(before))
	})

	It("uses the fallback normal at the exact center", func() {
		p.Sphere = dynamo.Sphere{Radius: 1}
		store := physics.NewStore([]physics.Particle{{}})

		physics.NewSphereCollider().Resolve(compute.NewSerialBackend(), store, p)

		got, err := store.At(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(dynamo.IsFinite(got.Position)).To(BeTrue())
		Expect(dynamo.IsFinite(got.Velocity)).To(BeTrue())
		Expect(float64(got.Position.Len())).To(BeNumerically("~", 1.0, 1e-6))
		Expect(got.Position).To(Equal(physics.FallbackNormal))
	})

	It("rebuilds velocity from the corrected position in compat mode", func() {
		p.Sphere = dynamo.Sphere{Radius: 2}
		p.Restitution = 1.2

		pos, vel, hit := physics.Collide(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, -5, 0}, p)

		Expect(hit).To(BeTrue())
		Expect(pos).To(Equal(mgl32.Vec3{0, 2, 0}))
		// 1.2 * dot((0,1,0), (0,2,0)) * (0,1,0) - (0,2,0)
		Expect(float64(vel.Y())).To(BeNumerically("~", 0.4, 1e-6))
	})

	It("reflects incoming velocity in reflect mode", func() {
		p.Sphere = dynamo.Sphere{Radius: 2}
		p.Rebound = dynamo.ReboundReflect
		p.Restitution = 0.5

		_, vel, hit := physics.Collide(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{3, -4, 0}, p)

		Expect(hit).To(BeTrue())
		Expect(float64(vel.X())).To(BeNumerically("~", 3, 1e-6))
		Expect(float64(vel.Y())).To(BeNumerically("~", 2, 1e-6))
	})

	It("keeps separating velocity in reflect mode", func() {
		p.Sphere = dynamo.Sphere{Radius: 2}
		p.Rebound = dynamo.ReboundReflect

		_, vel, _ := physics.Collide(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 4, 0}, p)

		Expect(vel).To(Equal(mgl32.Vec3{0, 4, 0}))
	})

	It("never hits a zero-radius sphere", func() {
		p.Sphere = dynamo.Sphere{Radius: 0}
		_, _, hit := physics.Collide(mgl32.Vec3{}, mgl32.Vec3{}, p)
		Expect(hit).To(BeFalse())
	})
})

var _ = Describe("Store", func() {
	It("bounds-checks access", func() {
		store := physics.NewStore(make([]physics.Particle, 3))

		_, err := store.At(3)
		Expect(err).To(MatchError(dynamo.ErrIndexOutOfRange))
		_, err = store.At(-1)
		Expect(err).To(MatchError(dynamo.ErrIndexOutOfRange))
		Expect(store.SetPosition(5, mgl32.Vec3{})).To(MatchError(dynamo.ErrIndexOutOfRange))
		Expect(store.SetVelocity(0, mgl32.Vec3{1, 0, 0})).To(Succeed())
	})

	It("passes attributes through and snapshots independently", func() {
		attrs := physics.Attributes{Normal: mgl32.Vec3{0, 1, 0}, Tangent: mgl32.Vec3{1, 0, 1}, TexCoords: mgl32.Vec2{0.25, 0.75}}
		store := physics.NewStore([]physics.Particle{{Index: 99, Attributes: attrs}})

		snap := store.Snapshot()
		Expect(snap[0].Index).To(Equal(0))
		Expect(snap[0].Attributes).To(Equal(attrs))

		snap[0].Position = mgl32.Vec3{5, 5, 5}
		got, _ := store.At(0)
		Expect(got.Position).To(Equal(mgl32.Vec3{}))
	})

	It("reports the first non-finite particle", func() {
		store := physics.NewStore(make([]physics.Particle, 4))
		Expect(store.FirstInvalid()).To(Equal(-1))

		Expect(store.SetVelocity(2, mgl32.Vec3{float32(math.NaN()), 0, 0})).To(Succeed())
		Expect(store.FirstInvalid()).To(Equal(2))
	})
})

var _ = Describe("ConstraintSet", func() {
	DescribeTable("rejects malformed springs",
		func(s physics.Spring) {
			_, err := physics.NewConstraintSet([]physics.Spring{s}, 4)
			Expect(err).To(MatchError(dynamo.ErrInvalidTopology))
		},
		Entry("same particle at both ends", physics.Spring{A: 1, B: 1, RestLength: 1, Stiffness: 1}),
		Entry("A out of range", physics.Spring{A: 4, B: 1, RestLength: 1, Stiffness: 1}),
		Entry("negative B", physics.Spring{A: 0, B: -1, RestLength: 1, Stiffness: 1}),
		Entry("negative rest length", physics.Spring{A: 0, B: 1, RestLength: -1, Stiffness: 1}),
		Entry("zero stiffness", physics.Spring{A: 0, B: 1, RestLength: 1, Stiffness: 0}),
		Entry("unknown category", physics.Spring{A: 0, B: 1, RestLength: 1, Stiffness: 1, Category: 7}),
	)

	It("copies its input", func() {
		springs := []physics.Spring{{A: 0, B: 1, RestLength: 1, Stiffness: 1}}
		set, err := physics.NewConstraintSet(springs, 2)
		Expect(err).NotTo(HaveOccurred())

		springs[0].A = 1
		Expect(set.At(0).A).To(Equal(0))
		Expect(set.CountByCategory()[dynamo.Structural]).To(Equal(1))
	})
})
