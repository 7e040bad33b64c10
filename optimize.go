package imagegs

import (
	"math"

	"github.com/gsplat/imagegs/internal/imgio"
)

// LoopState is the optimizer loop state machine. Converged and Diverged are
// terminal; Converged is the success path, Diverged maps to
// KindNumericDivergence at the encoder boundary.
type LoopState int

// Loop states.
const (
	StateInitialized LoopState = iota
	StateStepping
	StateConverged
	StateDiverged
)

// String returns the state name.
func (s LoopState) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateStepping:
		return "Stepping"
	case StateConverged:
		return "Converged"
	case StateDiverged:
		return "Diverged"
	default:
		return "Unknown"
	}
}

// Per-field Adam learning rates and the hard displacement clamp. The clamp
// bounds every update in normalized units (or radians), so a single noisy
// gradient cannot throw a record across the image.
const (
	lrPosition = 2e-3
	lrScale    = 2e-3
	lrRotation = 2e-3
	lrFeature  = 5e-3

	maxStepDelta = 0.05

	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// optimizer iteratively refines a GaussianSet against a target plane.
// The refinement is inherently sequential (step t+1 depends on step t);
// parallelism lives inside the render and gradient passes.
type optimizer struct {
	gs     *GaussianSet
	target *imgio.Plane
	cfg    EncodeConfig

	state LoopState
	steps int

	// Adam first and second moments, one slot per parameter.
	m, v *gradients
	t    int // Adam timestep for bias correction

	prev       *GaussianSet // pre-step snapshot for non-finite rollback
	lastLoss   float64
	riseStreak int
}

// newOptimizer wraps an initialized set. The loop starts in Initialized.
func newOptimizer(gs *GaussianSet, target *imgio.Plane, cfg EncodeConfig) *optimizer {
	return &optimizer{
		gs:       gs,
		target:   target,
		cfg:      cfg,
		state:    StateInitialized,
		m:        newGradients(gs.n, gs.c),
		v:        newGradients(gs.n, gs.c),
		prev:     gs.Clone(),
		lastLoss: math.Inf(1),
	}
}

// run drives the loop to a terminal state and returns the final render and
// the number of completed steps. MaxSteps is the sole runtime bound and is
// enforced exactly; early stopping only happens when cfg.TargetLoss opts in.
func (o *optimizer) run() (*imgio.Plane, int, error) {
	w, h := o.target.W, o.target.H
	logEvery := max(o.cfg.MaxSteps/10, 1)

	for o.steps < o.cfg.MaxSteps {
		o.state = StateStepping

		rec := render(o.gs, w, h, o.cfg.Workers)
		loss, pixGrad := lossAndPixelGrad(rec, o.target, o.cfg.Workers)

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			o.state = StateDiverged
			return nil, o.steps, errorf(KindNumericDivergence,
				"loss became non-finite at step %d", o.steps)
		}
		if loss > o.lastLoss {
			o.riseStreak++
			if o.riseStreak >= o.cfg.DivergencePatience {
				o.state = StateDiverged
				return nil, o.steps, errorf(KindNumericDivergence,
					"loss increased for %d consecutive steps (%.6g at step %d)",
					o.riseStreak, loss, o.steps)
			}
		} else {
			o.riseStreak = 0
		}
		o.lastLoss = loss

		if o.cfg.TargetLoss > 0 && loss <= o.cfg.TargetLoss {
			o.state = StateConverged
			logger().Debug("early stop on target loss",
				"step", o.steps, "loss", loss)
			return render(o.gs, w, h, o.cfg.Workers), o.steps, nil
		}

		gr := backward(o.gs, pixGrad, w, h, o.cfg.Workers)
		o.applyStep(gr)
		o.steps++

		if o.steps%logEvery == 0 {
			logger().Debug("optimizer step", "step", o.steps, "loss", loss)
		}

		if o.cfg.QuantAwareEvery > 0 && o.steps%o.cfg.QuantAwareEvery == 0 {
			snapToGrid(o.gs, o.cfg.Bits)
		}
	}

	o.state = StateConverged
	return render(o.gs, w, h, o.cfg.Workers), o.steps, nil
}

// applyStep performs one Adam update with the per-field learning rates,
// then restores the parameter invariants. A step that produces any
// non-finite parameter is rolled back wholesale.
func (o *optimizer) applyStep(gr *gradients) {
	o.prev.CopyFrom(o.gs)
	o.t++

	bc1 := 1 - math.Pow(adamBeta1, float64(o.t))
	bc2 := 1 - math.Pow(adamBeta2, float64(o.t))

	adam := func(params, grad, m, v []float64, lr float64) {
		for i, g := range grad {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			delta := lr * mHat / (math.Sqrt(vHat) + adamEps)
			if delta > maxStepDelta {
				delta = maxStepDelta
			} else if delta < -maxStepDelta {
				delta = -maxStepDelta
			}
			params[i] -= delta
		}
	}

	adam(o.gs.Pos, gr.Pos, o.m.Pos, o.v.Pos, lrPosition)
	adam(o.gs.Scale, gr.Scale, o.m.Scale, o.v.Scale, lrScale)
	adam(o.gs.Rot, gr.Rot, o.m.Rot, o.v.Rot, lrRotation)
	adam(o.gs.Feat, gr.Feat, o.m.Feat, o.v.Feat, lrFeature)

	o.gs.clampInPlace()

	if !o.gs.finite() {
		o.gs.CopyFrom(o.prev)
		logger().Debug("rolled back non-finite step", "step", o.steps)
	}
}
