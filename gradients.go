package imagegs

import (
	"math"

	"github.com/gsplat/imagegs/internal/imgio"
	"github.com/gsplat/imagegs/internal/parallel"
)

// Loss mix: mostly L1 for robustness to outlier pixels, with an L2 term
// that keeps gradients informative near convergence.
const (
	lossL1Weight = 0.8
	lossL2Weight = 0.2
)

// gradients mirrors the GaussianSet layout and holds dLoss/dParam for every
// field of every record.
type gradients struct {
	Pos   []float64
	Scale []float64
	Rot   []float64
	Feat  []float64
}

func newGradients(n, c int) *gradients {
	return &gradients{
		Pos:   make([]float64, 2*n),
		Scale: make([]float64, 2*n),
		Rot:   make([]float64, n),
		Feat:  make([]float64, n*c),
	}
}

// lossAndPixelGrad computes the reconstruction loss between a render and
// the target, plus dLoss/dPixel for the backward pass.
//
//	L = mean(0.8*|e| + 0.2*e^2),  e = render - target
//
// Rows are partitioned across workers; each goroutine owns its rows of the
// gradient buffer and one slot of the per-row loss vector.
func lossAndPixelGrad(render, target *imgio.Plane, workers int) (float64, []float64) {
	n := len(render.Pix)
	grad := make([]float64, n)
	rowLoss := make([]float64, render.H)
	invN := 1.0 / float64(n)
	rowLen := render.W * render.C

	parallel.ForRange(workers, render.H, func(start, end int) {
		for y := start; y < end; y++ {
			off := y * rowLen
			var sum float64
			for i := off; i < off+rowLen; i++ {
				e := render.Pix[i] - target.Pix[i]
				sum += lossL1Weight*math.Abs(e) + lossL2Weight*e*e
				grad[i] = (lossL1Weight*sign(e) + 2*lossL2Weight*e) * invN
			}
			rowLoss[y] = sum
		}
	})

	var total float64
	for _, v := range rowLoss {
		total += v
	}
	return total * invN, grad
}

// backward accumulates dLoss/dParam for every record by the chain rule
// through the splat kernel. Records are partitioned across workers; each
// record's gradient slots are written by exactly one goroutine, and the
// pixel gradient buffer is read-only here.
func backward(gs *GaussianSet, pixGrad []float64, w, h, workers int) *gradients {
	gr := newGradients(gs.n, gs.c)
	fw, fh := float64(w), float64(h)

	parallel.ForRange(workers, gs.n, func(start, end int) {
		for i := start; i < end; i++ {
			g := geometry(gs, i, w, h)
			if g.x0 >= g.x1 || g.y0 >= g.y1 {
				continue
			}

			sx := gs.Scale[2*i]
			sy := gs.Scale[2*i+1]
			feat := gs.Feat[i*gs.c : (i+1)*gs.c]

			var dCx, dCy, dSx, dSy, dRot float64
			dFeat := gr.Feat[i*gs.c : (i+1)*gs.c]

			for y := g.y0; y < g.y1; y++ {
				dy := (float64(y)+0.5)/fh - g.cy
				row := (y*w + g.x0) * gs.c
				for x := g.x0; x < g.x1; x++ {
					dx := (float64(x)+0.5)/fw - g.cx
					wgt, u, v := g.kernel(dx, dy)
					if wgt != 0 {
						// dLoss/dWeight via the feature dot product.
						var dw float64
						for ch := 0; ch < gs.c; ch++ {
							pg := pixGrad[row+ch]
							dFeat[ch] += wgt * pg
							dw += pg * feat[ch]
						}
						dw *= wgt

						dCx += dw * (g.cos*u*g.invSx2 - g.sin*v*g.invSy2)
						dCy += dw * (g.sin*u*g.invSx2 + g.cos*v*g.invSy2)
						dSx += dw * u * u * g.invSx2 / sx
						dSy += dw * v * v * g.invSy2 / sy
						dRot += -dw * u * v * (g.invSx2 - g.invSy2)
					}
					row += gs.c
				}
			}

			gr.Pos[2*i] = dCx
			gr.Pos[2*i+1] = dCy
			gr.Scale[2*i] = dSx
			gr.Scale[2*i+1] = dSy
			gr.Rot[i] = dRot
		}
	})

	return gr
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
