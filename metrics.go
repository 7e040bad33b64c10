package imagegs

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/gsplat/imagegs/internal/imgio"
)

// SSIM parameters: 8x8 windows on luma with the standard stabilization
// constants for unit dynamic range.
const (
	ssimWindow = 8
	ssimC1     = 0.01 * 0.01
	ssimC2     = 0.03 * 0.03
)

// psnr returns the peak signal-to-noise ratio in dB between two planes with
// samples in [0, 1]. A perfect reconstruction is reported as 120 dB rather
// than infinity so results stay JSON-representable.
func psnr(a, b *imgio.Plane) float64 {
	var mse float64
	for i, v := range a.Pix {
		d := v - b.Pix[i]
		mse += d * d
	}
	mse /= float64(len(a.Pix))

	if mse < 1e-12 {
		return 120
	}
	return -10 * math.Log10(mse)
}

// ssim returns the mean structural similarity between two planes, computed
// over non-overlapping 8x8 luma windows. Edge windows smaller than 4x4 are
// skipped; for images below that size the whole image is one window.
func ssim(a, b *imgio.Plane) float64 {
	la, lb := a.Luma(), b.Luma()
	w, h := a.W, a.H

	winW, winH := ssimWindow, ssimWindow
	if w < winW {
		winW = w
	}
	if h < winH {
		winH = h
	}

	var sum float64
	var count int
	xa := make([]float64, 0, winW*winH)
	xb := make([]float64, 0, winW*winH)

	for y0 := 0; y0 < h; y0 += winH {
		for x0 := 0; x0 < w; x0 += winW {
			x1 := min(x0+winW, w)
			y1 := min(y0+winH, h)
			// Too few samples for a stable covariance.
			if (x1-x0)*(y1-y0) < 4 {
				continue
			}

			xa = xa[:0]
			xb = xb[:0]
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					xa = append(xa, la[y*w+x])
					xb = append(xb, lb[y*w+x])
				}
			}

			muA := stat.Mean(xa, nil)
			muB := stat.Mean(xb, nil)
			varA := stat.Variance(xa, nil)
			varB := stat.Variance(xb, nil)
			cov := stat.Covariance(xa, xb, nil)

			num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
			den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
			sum += num / den
			count++
		}
	}

	if count == 0 {
		return 1
	}
	return sum / float64(count)
}
