package physics

// Incidence maps every particle to the springs touching it, in compressed
// row form. Entries for particle i live in [offsets[i], offsets[i+1]) and
// keep spring order, so the per-particle sum order is fixed for the lifetime
// of the topology.
type Incidence struct {
	offsets []int32
	springs []int32
	signs   []float32
}

// BuildIncidence is run once per topology load.
func BuildIncidence(set *ConstraintSet) *Incidence {
	n := set.Particles()
	springs := set.Springs()

	offsets := make([]int32, n+1)
	for _, s := range springs {
		offsets[s.A+1]++
		offsets[s.B+1]++
	}
	for i := 0; i < n; i++ {
		offsets[i+1] += offsets[i]
	}

	fill := make([]int32, n)
	copy(fill, offsets[:n])

	inc := &Incidence{
		offsets: offsets,
		springs: make([]int32, 2*len(springs)),
		signs:   make([]float32, 2*len(springs)),
	}
	for id, s := range springs {
		a := fill[s.A]
		inc.springs[a], inc.signs[a] = int32(id), 1
		fill[s.A]++

		b := fill[s.B]
		inc.springs[b], inc.signs[b] = int32(id), -1
		fill[s.B]++
	}
	return inc
}

// Particles is the number of particles the index was built for.
func (inc *Incidence) Particles() int { return len(inc.offsets) - 1 }

// Degree is the number of springs touching particle i.
func (inc *Incidence) Degree(i int) int {
	return int(inc.offsets[i+1] - inc.offsets[i])
}

// Each calls fn for every spring incident to particle i with +1 when i is the
// spring's A end and -1 when it is the B end.
func (inc *Incidence) Each(i int, fn func(spring int, sign float32)) {
	for e := inc.offsets[i]; e < inc.offsets[i+1]; e++ {
		fn(int(inc.springs[e]), inc.signs[e])
	}
}

func (inc *Incidence) MaxDegree() int {
	max := 0
	for i := 0; i < inc.Particles(); i++ {
		if d := inc.Degree(i); d > max {
			max = d
		}
	}
	return max
}
