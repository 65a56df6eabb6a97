package sim

import (
	"sync"

	"github.com/san-kum/clothsim/internal/physics"
)

// ForcePool recycles PendingForce buffers between frames.
type ForcePool struct {
	pool sync.Pool
	size int
}

func NewForcePool(particles int) *ForcePool {
	return &ForcePool{
		size: particles,
		pool: sync.Pool{
			New: func() interface{} {
				return make(physics.PendingForce, particles)
			},
		},
	}
}

func (p *ForcePool) Size() int { return p.size }

// Get returns a zeroed buffer with one slot per particle.
func (p *ForcePool) Get() physics.PendingForce {
	return p.pool.Get().(physics.PendingForce)
}

func (p *ForcePool) Put(f physics.PendingForce) {
	if len(f) == p.size {
		f.Reset()
		p.pool.Put(f)
	}
}
