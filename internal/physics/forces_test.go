package physics_test

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/models"
	"github.com/san-kum/clothsim/internal/physics"
)

func randVec(r *rand.Rand, scale float32) mgl32.Vec3 {
	return mgl32.Vec3{
		(r.Float32()*2 - 1) * scale,
		(r.Float32()*2 - 1) * scale,
		(r.Float32()*2 - 1) * scale,
	}
}

func springParams() dynamo.Params {
	p := dynamo.DefaultParams()
	p.Coefficients[dynamo.Structural] = dynamo.Coefficients{Stiffness: 50, Damping: 0.3}
	p.Coefficients[dynamo.Shear] = dynamo.Coefficients{Stiffness: 40, Damping: 0.2}
	p.Coefficients[dynamo.Bend] = dynamo.Coefficients{Stiffness: 20, Damping: 0.1}
	p.Damping = 0.05
	return p
}

// jiggle perturbs a store so every spring carries stretch and relative motion.
func jiggle(store *physics.Store, seed int64) {
	r := rand.New(rand.NewSource(seed))
	pos, vel := store.Positions(), store.Velocities()
	for i := range pos {
		pos[i] = pos[i].Add(randVec(r, 0.3))
		vel[i] = randVec(r, 2)
	}
}

var _ = Describe("SpringForce", func() {
	It("pulls a stretched spring's ends together", func() {
		s := physics.Spring{A: 0, B: 1, RestLength: 1, Stiffness: 1, Category: dynamo.Structural}
		p := springParams()
		p.Coefficients[dynamo.Structural].Damping = 0
		p.Damping = 0

		f := physics.SpringForce(s, mgl32.Vec3{2, 0, 0}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{}, p)

		Expect(f.X()).To(BeNumerically("~", -50, 1e-4))
		Expect(f.Y()).To(BeZero())
		Expect(f.Z()).To(BeZero())
	})

	It("pushes a compressed spring's ends apart", func() {
		s := physics.Spring{A: 0, B: 1, RestLength: 2, Stiffness: 0.5, Category: dynamo.Bend}
		p := springParams()
		p.Coefficients[dynamo.Bend].Damping = 0
		p.Damping = 0

		f := physics.SpringForce(s, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{}, p)

		// k = 20 * 0.5, stretch = -1, direction +Y
		Expect(f.Y()).To(BeNumerically("~", 10, 1e-4))
	})

	It("damps relative velocity along its own direction", func() {
		s := physics.Spring{A: 0, B: 1, RestLength: 1, Stiffness: 1, Category: dynamo.Shear}
		p := springParams()
		p.Coefficients[dynamo.Shear].Stiffness = 0
		p.Damping = 0

		f := physics.SpringForce(s, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{0, 0, 3}, mgl32.Vec3{0, 0, 1}, p)

		Expect(f.Z()).To(BeNumerically("~", -0.4, 1e-5))
	})

	It("returns a finite zero spring term for coincident endpoints", func() {
		s := physics.Spring{A: 0, B: 1, RestLength: 1, Stiffness: 1, Category: dynamo.Structural}
		p := springParams()

		f := physics.SpringForce(s, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{}, mgl32.Vec3{}, p)

		Expect(dynamo.IsFinite(f)).To(BeTrue())
		Expect(f).To(Equal(mgl32.Vec3{}))
	})

	It("is zero when the category stiffness and damping are zero", func() {
		s := physics.Spring{A: 0, B: 1, RestLength: 1, Stiffness: 3, Category: dynamo.Structural}
		p := dynamo.DefaultParams()
		p.Coefficients = [dynamo.NumCategories]dynamo.Coefficients{}

		f := physics.SpringForce(s, mgl32.Vec3{5, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{}, p)

		Expect(f).To(Equal(mgl32.Vec3{}))
	})
})

var _ = Describe("Accumulator", func() {
	var (
		cloth *models.Cloth
		set   *physics.ConstraintSet
		p     dynamo.Params
	)

	BeforeEach(func() {
		var err error
		cloth, err = models.NewClothGrid(12, 9, 0.5, 2)
		Expect(err).NotTo(HaveOccurred())
		set, err = physics.NewConstraintSet(cloth.Springs, len(cloth.Particles))
		Expect(err).NotTo(HaveOccurred())
		p = springParams()
	})

	It("sums to exactly zero for every single spring", func() {
		r := rand.New(rand.NewSource(7))
		for trial := 0; trial < 500; trial++ {
			rest := r.Float32() * 3
			one, err := physics.NewConstraintSet([]physics.Spring{
				{A: 0, B: 1, RestLength: rest, Stiffness: r.Float32()*4 + 0.01, Category: dynamo.Category(trial % 3)},
			}, 2)
			Expect(err).NotTo(HaveOccurred())

			store := physics.NewStore([]physics.Particle{
				{Position: randVec(r, 5), Velocity: randVec(r, 5)},
				{Position: randVec(r, 5), Velocity: randVec(r, 5)},
			})

			for _, strategy := range []physics.Strategy{physics.StrategyGather, physics.StrategyColored, physics.StrategySerial} {
				acc := physics.NewAccumulator(one, strategy)
				out := make(physics.PendingForce, 2)
				acc.Accumulate(compute.NewSerialBackend(), store, p, out)

				Expect(out[0].Add(out[1])).To(Equal(mgl32.Vec3{}), "strategy %s trial %d", strategy, trial)
			}
		}
	})

	It("produces the same totals with every strategy", func() {
		store := physics.NewStore(cloth.Particles)
		jiggle(store, 42)

		reference := make(physics.PendingForce, store.Len())
		physics.NewAccumulator(set, physics.StrategySerial).Accumulate(compute.NewSerialBackend(), store, p, reference)

		backend := compute.NewCPUBackend(4).WithMinChunk(4)
		for _, strategy := range []physics.Strategy{physics.StrategyGather, physics.StrategyColored} {
			out := make(physics.PendingForce, store.Len())
			physics.NewAccumulator(set, strategy).Accumulate(backend, store, p, out)

			for i := range out {
				for c := 0; c < 3; c++ {
					Expect(out[i][c]).To(BeNumerically("~", reference[i][c], 1e-3), "strategy %s particle %d", strategy, i)
				}
			}
		}
	})

	It("is deterministic under the gather strategy regardless of worker count", func() {
		store := physics.NewStore(cloth.Particles)
		jiggle(store, 3)
		acc := physics.NewAccumulator(set, physics.StrategyGather)

		serial := make(physics.PendingForce, store.Len())
		acc.Accumulate(compute.NewSerialBackend(), store, p, serial)

		for _, workers := range []int{2, 3, 8} {
			out := make(physics.PendingForce, store.Len())
			acc.Accumulate(compute.NewCPUBackend(workers).WithMinChunk(1), store, p, out)
			Expect(out).To(Equal(serial))
		}
	})

	It("conserves total internal force over the whole mesh", func() {
		store := physics.NewStore(cloth.Particles)
		jiggle(store, 11)

		out := make(physics.PendingForce, store.Len())
		physics.NewAccumulator(set, physics.StrategyGather).Accumulate(compute.NewCPUBackend(4), store, p, out)

		var sum [3]float64
		for _, f := range out {
			for c := 0; c < 3; c++ {
				sum[c] += float64(f[c])
			}
		}
		for c := 0; c < 3; c++ {
			Expect(math.Abs(sum[c])).To(BeNumerically("<", 1e-2))
		}
	})

	It("leaves particles without springs at zero force", func() {
		isolated, err := physics.NewConstraintSet([]physics.Spring{
			{A: 0, B: 1, RestLength: 0.5, Stiffness: 1, Category: dynamo.Structural},
		}, 3)
		Expect(err).NotTo(HaveOccurred())
		store := physics.NewStore([]physics.Particle{
			{Position: mgl32.Vec3{0, 0, 0}},
			{Position: mgl32.Vec3{1, 0, 0}},
			{Position: mgl32.Vec3{9, 9, 9}, Velocity: mgl32.Vec3{1, 1, 1}},
		})

		out := physics.PendingForce{{7, 7, 7}, {7, 7, 7}, {7, 7, 7}}
		physics.NewAccumulator(isolated, physics.StrategyGather).Accumulate(compute.NewSerialBackend(), store, p, out)

		Expect(out[2]).To(Equal(mgl32.Vec3{}))
		Expect(out[0].X()).To(BeNumerically(">", 0))
	})

	It("only builds batches for the colored strategy", func() {
		cloth, err := models.NewClothGrid(4, 4, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		set, err := physics.NewConstraintSet(cloth.Springs, len(cloth.Particles))
		Expect(err).NotTo(HaveOccurred())

		gather := physics.NewAccumulator(set, physics.StrategyGather)
		Expect(gather.Strategy()).To(Equal(physics.StrategyGather))
		Expect(gather.Springs()).To(BeIdenticalTo(set))
		Expect(gather.Incidence().Particles()).To(Equal(len(cloth.Particles)))
		Expect(gather.Batches()).To(BeNil())

		colored := physics.NewAccumulator(set, physics.StrategyColored)
		Expect(colored.Batches().Springs()).To(Equal(set.Len()))
	})
})

var _ = Describe("Incidence", func() {
	It("lists every spring once per endpoint with the right sign", func() {
		set, err := physics.NewConstraintSet([]physics.Spring{
			{A: 0, B: 1, RestLength: 1, Stiffness: 1},
			{A: 2, B: 0, RestLength: 1, Stiffness: 1},
			{A: 1, B: 2, RestLength: 1, Stiffness: 1},
		}, 4)
		Expect(err).NotTo(HaveOccurred())

		inc := physics.BuildIncidence(set)
		Expect(inc.Particles()).To(Equal(4))
		Expect(inc.Degree(0)).To(Equal(2))
		Expect(inc.Degree(3)).To(Equal(0))
		Expect(inc.MaxDegree()).To(Equal(2))

		type entry struct {
			spring int
			sign   float32
		}
		var got []entry
		inc.Each(0, func(id int, sign float32) { got = append(got, entry{id, sign}) })
		Expect(got).To(Equal([]entry{{0, 1}, {1, -1}}))
	})
})

var _ = Describe("ColorSprings", func() {
	It("partitions a cloth into particle-disjoint batches covering every spring", func() {
		cloth, err := models.NewClothGrid(10, 10, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		set, err := physics.NewConstraintSet(cloth.Springs, len(cloth.Particles))
		Expect(err).NotTo(HaveOccurred())

		batches := physics.ColorSprings(set)
		Expect(batches.Springs()).To(Equal(set.Len()))
		Expect(batches.Independent(set)).To(BeTrue())
		Expect(len(batches)).To(BeNumerically("<=", 2*physics.BuildIncidence(set).MaxDegree()-1))
	})
})

var _ = Describe("StableTimestep", func() {
	It("shrinks as stiffness grows", func() {
		cloth, err := models.NewClothGrid(5, 5, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		set, err := physics.NewConstraintSet(cloth.Springs, len(cloth.Particles))
		Expect(err).NotTo(HaveOccurred())
		inc := physics.BuildIncidence(set)

		soft := dynamo.DefaultParams()
		stiff := soft
		stiff.Coefficients[dynamo.Structural].Stiffness *= 100

		Expect(physics.StableTimestep(inc, set, stiff)).To(BeNumerically("<", physics.StableTimestep(inc, set, soft)))
	})

	It("is unbounded without stiffness", func() {
		set, _ := physics.NewConstraintSet([]physics.Spring{{A: 0, B: 1, RestLength: 1, Stiffness: 1}}, 2)
		p := dynamo.DefaultParams()
		p.Coefficients = [dynamo.NumCategories]dynamo.Coefficients{}

		Expect(physics.StableTimestep(physics.BuildIncidence(set), set, p)).To(BeZero())
	})
})
