package physics

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/dynamo"
)

// FallbackNormal is the push-out direction for a particle sitting exactly on
// the sphere center.
var FallbackNormal = mgl32.Vec3{0, 1, 0}

// SphereCollider resolves penetration of every particle against the sphere
// described by the params.
type SphereCollider struct{}

func NewSphereCollider() *SphereCollider { return &SphereCollider{} }

// Resolve pushes penetrating particles to the surface, rewrites their
// velocity and returns how many were resolved.
func (c *SphereCollider) Resolve(b compute.Backend, store *Store, p dynamo.Params) int {
	pos, vel := store.Positions(), store.Velocities()
	var hits atomic.Int64

	b.Dispatch(len(pos), func(start, end int) {
		n := 0
		for i := start; i < end; i++ {
			if np, nv, ok := Collide(pos[i], vel[i], p); ok {
				pos[i], vel[i] = np, nv
				n++
			}
		}
		hits.Add(int64(n))
	})
	return int(hits.Load())
}

// Collide returns the corrected position and velocity of one particle and
// whether it was inside the sphere. Particles on or outside the surface are
// returned unchanged.
func Collide(pos, vel mgl32.Vec3, p dynamo.Params) (mgl32.Vec3, mgl32.Vec3, bool) {
	sphere := p.Sphere
	toCenter := pos.Sub(sphere.Center)
	dist := toCenter.Len()
	if dist >= sphere.Radius {
		return pos, vel, false
	}

	normal := FallbackNormal
	if dist > 0 {
		normal = toCenter.Mul(1 / dist)
	}

	pos = pos.Add(normal.Mul(sphere.Radius - dist))

	switch p.Rebound {
	case dynamo.ReboundReflect:
		if vn := vel.Dot(normal); vn < 0 {
			vel = vel.Sub(normal.Mul((1 + p.Restitution) * vn))
		}
	default:
		vel = normal.Mul(p.Restitution * normal.Dot(pos)).Sub(pos)
	}
	return pos, vel, true
}
