package sim

import (
	"context"
	"runtime"
	"time"

	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
	"golang.org/x/sync/errgroup"
)

// Run is one independent member of an Ensemble.
type Run struct {
	Name      string
	Particles []physics.Particle
	Springs   []physics.Spring
	Params    dynamo.Params
	Options   []Option
}

type Result struct {
	Name      string
	Frames    int
	SimTime   float64
	WallTime  time.Duration
	Particles []physics.Particle
}

// Ensemble steps several sessions side by side, each for the same number of
// frames. Sessions share nothing, so only the final results are collected.
type Ensemble struct {
	frames   int
	frameDt  float32
	parallel int
}

func NewEnsemble(frames int, frameDt float32) *Ensemble {
	return &Ensemble{frames: frames, frameDt: frameDt, parallel: runtime.NumCPU()}
}

// WithParallelism bounds how many sessions step at once.
func (e *Ensemble) WithParallelism(n int) *Ensemble {
	if n > 0 {
		e.parallel = n
	}
	return e
}

// Run returns results in the order of runs. The first failing run cancels the
// ones that have not finished their current frame.
func (e *Ensemble) Run(ctx context.Context, runs []Run) ([]*Result, error) {
	results := make([]*Result, len(runs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)

	for i, r := range runs {
		g.Go(func() error {
			s, err := NewSession(r.Particles, r.Springs, r.Options...)
			if err != nil {
				return err
			}

			start := time.Now()
			if err := s.Run(ctx, e.frames, e.frameDt, r.Params); err != nil {
				return err
			}

			results[i] = &Result{
				Name:      r.Name,
				Frames:    s.Frame(),
				SimTime:   s.Time(),
				WallTime:  time.Since(start),
				Particles: s.ReadParticles(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
