package physics

// Batches partitions springs so no two springs in the same batch share a
// particle. Processing one batch in parallel therefore never writes the same
// particle slot twice.
type Batches [][]int32

// ColorSprings assigns each spring, in order, to the lowest batch whose
// springs touch neither of its endpoints.
func ColorSprings(set *ConstraintSet) Batches {
	used := make([][]int32, set.Particles())
	var batches Batches

	for id, s := range set.Springs() {
		c := int32(0)
		for contains(used[s.A], c) || contains(used[s.B], c) {
			c++
		}
		if int(c) == len(batches) {
			batches = append(batches, nil)
		}
		batches[c] = append(batches[c], int32(id))
		used[s.A] = append(used[s.A], c)
		used[s.B] = append(used[s.B], c)
	}
	return batches
}

func contains(colors []int32, c int32) bool {
	for _, v := range colors {
		if v == c {
			return true
		}
	}
	return false
}

// Independent reports whether every batch is free of shared particles.
func (b Batches) Independent(set *ConstraintSet) bool {
	seen := make(map[int]struct{})
	for _, batch := range b {
		clear(seen)
		for _, id := range batch {
			s := set.At(int(id))
			if _, ok := seen[s.A]; ok {
				return false
			}
			if _, ok := seen[s.B]; ok {
				return false
			}
			seen[s.A] = struct{}{}
			seen[s.B] = struct{}{}
		}
	}
	return true
}

func (b Batches) Springs() int {
	total := 0
	for _, batch := range b {
		total += len(batch)
	}
	return total
}
