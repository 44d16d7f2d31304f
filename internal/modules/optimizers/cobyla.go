package optimizers

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/vqe/internal/modules/cost"
)

// COBYLA is the unconstrained form of Powell's linear-approximation trust
// region method. A linear model is interpolated through n+1 points, the next
// trial steps a trust radius down the model gradient, and the radius halves
// whenever the model stops predicting progress. MaxIterations caps the
// number of cost evaluations.
type COBYLA struct {
	// RhoBegin is the initial trust radius (0 means 0.5). The final radius
	// is the run tolerance.
	RhoBegin float64
}

func (*COBYLA) Name() string { return string(KindCOBYLA) }

type vertex struct {
	x []float64
	f float64
}

func (d *COBYLA) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindCOBYLA, initial, settings)
	if err != nil {
		return nil, err
	}
	rho := d.RhoBegin
	if rho <= 0 {
		rho = 0.5
	}
	rhoEnd := math.Max(settings.Tolerance, 1e-12)
	if rhoEnd > rho {
		rho = rhoEnd
	}

	c := &cobyla{run: r, maxEvals: settings.MaxIterations}
	best := vertex{x: clone(initial)}
	var exhausted bool
	best.f, exhausted, err = c.eval(ctx, best.x)
	if err != nil {
		return nil, err
	}
	if exhausted {
		return r.finish(c.limitStatus(), c.iterations)
	}

	simplex, exhausted, err := c.build(ctx, best, rho)
	if err != nil {
		return nil, err
	}
	if exhausted {
		return r.finish(c.limitStatus(), c.iterations)
	}

	for {
		c.iterations++
		b := lowest(simplex)
		g, ok := model(simplex, b)

		stepped := false
		if ok {
			gnorm := floats.Norm(g, 2)
			if gnorm > 0 {
				trial := make([]float64, len(g))
				for i := range trial {
					trial[i] = simplex[b].x[i] - rho*g[i]/gnorm
				}
				ft, exhausted, err := c.eval(ctx, trial)
				if err != nil {
					return nil, err
				}
				if exhausted {
					return r.finish(c.limitStatus(), c.iterations)
				}
				predicted := rho * gnorm
				if simplex[b].f-ft > 0.1*predicted {
					simplex[highest(simplex)] = vertex{x: trial, f: ft}
					stepped = true
				} else if ft < simplex[highest(simplex)].f {
					simplex[highest(simplex)] = vertex{x: trial, f: ft}
				}
			}
		}

		b = lowest(simplex)
		if stepped && spread(simplex, b) <= 3*rho {
			continue
		}
		if !stepped {
			if rho <= rhoEnd {
				return r.finish(StatusConverged, c.iterations)
			}
			rho = math.Max(rho/2, rhoEnd)
		}
		simplex, exhausted, err = c.build(ctx, simplex[b], rho)
		if err != nil {
			return nil, err
		}
		if exhausted {
			return r.finish(c.limitStatus(), c.iterations)
		}
	}
}

type cobyla struct {
	run        *run
	maxEvals   int
	evals      int
	iterations int
	limitHit   bool
}

func (c *cobyla) eval(ctx context.Context, x []float64) (float64, bool, error) {
	if c.evals >= c.maxEvals {
		c.limitHit = true
		return 0, true, nil
	}
	c.evals++
	return c.run.evaluate(ctx, x)
}

func (c *cobyla) limitStatus() Status {
	if c.limitHit {
		return StatusEvaluationLimit
	}
	return StatusBudgetExhausted
}

// build returns the simplex {base, base + rho·e_i}.
func (c *cobyla) build(ctx context.Context, base vertex, rho float64) ([]vertex, bool, error) {
	n := len(base.x)
	simplex := make([]vertex, 0, n+1)
	simplex = append(simplex, vertex{x: clone(base.x), f: base.f})
	for i := 0; i < n; i++ {
		x := clone(base.x)
		x[i] += rho
		f, exhausted, err := c.eval(ctx, x)
		if err != nil || exhausted {
			return simplex, exhausted, err
		}
		simplex = append(simplex, vertex{x: x, f: f})
	}
	return simplex, false, nil
}

// model fits the gradient of the linear interpolant through the simplex,
// solving (x_i − x_b)·g = f_i − f_b. ok is false when the simplex is
// degenerate.
func model(simplex []vertex, b int) ([]float64, bool) {
	n := len(simplex[b].x)
	if len(simplex) != n+1 {
		return nil, false
	}
	dx := mat.NewDense(n, n, nil)
	df := mat.NewVecDense(n, nil)
	row := 0
	for i, v := range simplex {
		if i == b {
			continue
		}
		for j := 0; j < n; j++ {
			dx.Set(row, j, v.x[j]-simplex[b].x[j])
		}
		df.SetVec(row, v.f-simplex[b].f)
		row++
	}
	var g mat.VecDense
	if err := g.SolveVec(dx, df); err != nil {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = g.AtVec(i)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, false
		}
	}
	return out, true
}

func lowest(simplex []vertex) int {
	idx := 0
	for i, v := range simplex {
		if v.f < simplex[idx].f {
			idx = i
		}
	}
	return idx
}

func highest(simplex []vertex) int {
	idx := 0
	for i, v := range simplex {
		if v.f > simplex[idx].f {
			idx = i
		}
	}
	return idx
}

// spread is the largest distance from the best vertex.
func spread(simplex []vertex, b int) float64 {
	far := 0.0
	for _, v := range simplex {
		d := 0.0
		for j := range v.x {
			diff := v.x[j] - simplex[b].x[j]
			d += diff * diff
		}
		far = math.Max(far, math.Sqrt(d))
	}
	return far
}
