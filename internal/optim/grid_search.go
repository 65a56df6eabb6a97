package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/sim"
	"golang.org/x/sync/errgroup"
)

// ErrNoStablePoint is returned when every point of a sweep failed.
var ErrNoStablePoint = errors.New("no point of the sweep completed")

// Knobs are the config fields a sweep can vary, by name.
var Knobs = map[string]func(*config.Config, float64){
	"structural":         func(c *config.Config, v float64) { c.Physics.Structural.Stiffness = float32(v) },
	"shear":              func(c *config.Config, v float64) { c.Physics.Shear.Stiffness = float32(v) },
	"bend":               func(c *config.Config, v float64) { c.Physics.Bend.Stiffness = float32(v) },
	"structural_damping": func(c *config.Config, v float64) { c.Physics.Structural.Damping = float32(v) },
	"shear_damping":      func(c *config.Config, v float64) { c.Physics.Shear.Damping = float32(v) },
	"bend_damping":       func(c *config.Config, v float64) { c.Physics.Bend.Damping = float32(v) },
	"damping":            func(c *config.Config, v float64) { c.Physics.Damping = float32(v) },
	"restitution":        func(c *config.Config, v float64) { c.Physics.Restitution = float32(v) },
	"mass":               func(c *config.Config, v float64) { c.Cloth.Mass = float32(v) },
	"gravity":            func(c *config.Config, v float64) { c.Physics.Gravity = float32(v) },
	"max_substep":        func(c *config.Config, v float64) { c.Scheduler.MaxSubstep = float32(v) },
}

func KnobNames() []string {
	names := make([]string, 0, len(Knobs))
	for name := range Knobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Point is one evaluated combination. Value is +Inf when Err is set.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// GridSearch evaluates every combination of knob values and keeps the one
// with the smallest metric value.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	parallel   int
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("got %d knobs but %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Knobs[name]; !ok {
			return nil, fmt.Errorf("unknown knob: %s (available: %v)", name, KnobNames())
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("knob %s has no values", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, parallel: runtime.NumCPU()}, nil
}

func (g *GridSearch) WithParallelism(n int) *GridSearch {
	if n > 0 {
		g.parallel = n
	}
	return g
}

// Points expands the grid in knob order, the last knob varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.expand(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) expand(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.expand(depth+1, newParams, out)
	}
}

// Search runs base once per point with validation on. newMetric is called
// once per point. A point that diverges or is invalid is recorded with its
// error instead of failing the sweep; only cancellation aborts.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, newMetric func() sim.Metric) (Point, []Point, error) {
	points := g.Points()
	results := make([]Point, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallel)

	for i, params := range points {
		eg.Go(func() error {
			results[i] = evaluate(ctx, base, params, newMetric())
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Point{}, results, err
	}

	best := Point{Value: math.Inf(1)}
	for _, pt := range results {
		if pt.Err == nil && pt.Value < best.Value {
			best = pt
		}
	}
	if best.Params == nil {
		return best, results, ErrNoStablePoint
	}
	return best, results, nil
}

func evaluate(ctx context.Context, base *config.Config, params map[string]float64, m sim.Metric) Point {
	pt := Point{Params: params, Value: math.Inf(1)}

	cfg := base.Clone()
	for name, v := range params {
		Knobs[name](cfg, v)
	}
	// points already run in parallel
	cfg.Run.Backend = "serial"
	cfg.Run.Validate = true
	if pt.Err = cfg.Validate(); pt.Err != nil {
		return pt
	}

	p, err := cfg.Params()
	if err != nil {
		pt.Err = err
		return pt
	}
	cloth, err := cfg.BuildCloth()
	if err != nil {
		pt.Err = err
		return pt
	}
	opts, err := cfg.SessionOptions(sim.WithObserver(m))
	if err != nil {
		pt.Err = err
		return pt
	}
	s, err := sim.NewSession(cloth.Particles, cloth.Springs, opts...)
	if err != nil {
		pt.Err = err
		return pt
	}
	if pt.Err = s.Run(ctx, cfg.Run.Frames, cfg.Run.FrameDt, p); pt.Err != nil {
		return pt
	}

	pt.Value = m.Value()
	if math.IsNaN(pt.Value) {
		pt.Value = math.Inf(1)
	}
	return pt
}
