package optimizers

import (
	"context"
	"math"

	"github.com/aristath/vqe/internal/modules/cost"
)

const invPhi = 0.6180339887498949 // 1/φ

// Powell is the conjugate direction-set method. Each iteration minimizes
// along every direction in turn with a golden-section line search, then
// replaces the direction of largest decrease with the net displacement.
type Powell struct {
	// Span bounds each line search to [-Span, Span] along a unit direction
	// (0 means π, one half period of a rotation angle).
	Span float64
}

func (*Powell) Name() string { return string(KindPowell) }

func (d *Powell) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindPowell, initial, settings)
	if err != nil {
		return nil, err
	}
	span := d.Span
	if span <= 0 {
		span = math.Pi
	}
	lineTol := math.Min(math.Max(0.1*math.Sqrt(settings.Tolerance), 1e-8), 0.1)

	n := len(initial)
	dirs := make([][]float64, n)
	for i := range dirs {
		dirs[i] = make([]float64, n)
		dirs[i][i] = 1
	}

	x := clone(initial)
	fx, exhausted, err := r.evaluate(ctx, x)
	if err != nil {
		return nil, err
	}
	if exhausted {
		return r.finish(StatusBudgetExhausted, 0)
	}

	ls := &lineSearch{run: r, span: span, tol: lineTol}
	for iter := 1; iter <= settings.MaxIterations; iter++ {
		start, fStart := clone(x), fx
		bigIdx, bigDrop := -1, 0.0

		for i, dir := range dirs {
			before := fx
			x, fx, exhausted, err = ls.minimize(ctx, x, fx, dir)
			if err != nil {
				return nil, err
			}
			if exhausted {
				return r.finish(StatusBudgetExhausted, iter)
			}
			if drop := before - fx; drop > bigDrop {
				bigIdx, bigDrop = i, drop
			}
		}

		if 2*(fStart-fx) <= settings.Tolerance*(math.Abs(fStart)+math.Abs(fx)+1) {
			return r.finish(StatusConverged, iter)
		}

		// Net displacement becomes a new conjugate direction.
		disp := make([]float64, n)
		norm := 0.0
		for j := range disp {
			disp[j] = x[j] - start[j]
			norm += disp[j] * disp[j]
		}
		norm = math.Sqrt(norm)
		if norm == 0 || bigIdx < 0 {
			continue
		}
		for j := range disp {
			disp[j] /= norm
		}
		x, fx, exhausted, err = ls.minimize(ctx, x, fx, disp)
		if err != nil {
			return nil, err
		}
		if exhausted {
			return r.finish(StatusBudgetExhausted, iter)
		}
		dirs[bigIdx] = dirs[n-1]
		dirs[n-1] = disp
	}
	return r.finish(StatusIterationLimit, settings.MaxIterations)
}

type lineSearch struct {
	run  *run
	span float64
	tol  float64
}

// minimize runs a golden-section search for t in [-span, span] along dir
// from x. The returned point is never worse than (x, fx).
func (l *lineSearch) minimize(ctx context.Context, x []float64, fx float64, dir []float64) ([]float64, float64, bool, error) {
	at := func(t float64) []float64 {
		p := make([]float64, len(x))
		for i := range p {
			p[i] = x[i] + t*dir[i]
		}
		return p
	}

	a, b := -l.span, l.span
	c := b - invPhi*(b-a)
	e := a + invPhi*(b-a)
	fc, exhausted, err := l.run.evaluate(ctx, at(c))
	if err != nil || exhausted {
		return x, fx, exhausted, err
	}
	fe, exhausted, err := l.run.evaluate(ctx, at(e))
	if err != nil || exhausted {
		return x, fx, exhausted, err
	}

	bestT, bestF := 0.0, fx
	track := func(t, f float64) {
		if f < bestF {
			bestT, bestF = t, f
		}
	}
	track(c, fc)
	track(e, fe)

	for b-a > l.tol {
		if fc < fe {
			b, e, fe = e, c, fc
			c = b - invPhi*(b-a)
			fc, exhausted, err = l.run.evaluate(ctx, at(c))
			if err != nil || exhausted {
				break
			}
			track(c, fc)
		} else {
			a, c, fc = c, e, fe
			e = a + invPhi*(b-a)
			fe, exhausted, err = l.run.evaluate(ctx, at(e))
			if err != nil || exhausted {
				break
			}
			track(e, fe)
		}
	}
	if err != nil {
		return x, fx, false, err
	}
	if bestT == 0 {
		return x, fx, exhausted, nil
	}
	return at(bestT), bestF, exhausted, nil
}
