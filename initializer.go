package imagegs

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/gsplat/imagegs/internal/imgio"
)

// initialize produces the starting GaussianSet for the target plane
// according to cfg.InitMode. The returned set always has exactly
// cfg.NumGaussians records and cfg's invariants already enforced.
func initialize(target *imgio.Plane, cfg EncodeConfig) *GaussianSet {
	rng := rand.New(rand.NewSource(cfg.Seed))

	var gs *GaussianSet
	switch cfg.InitMode {
	case InitGrid:
		gs = initGrid(target, cfg.NumGaussians)
	case InitRandom:
		gs = initRandom(target, cfg.NumGaussians, rng)
	default:
		gs = initGradient(target, cfg.NumGaussians, rng)
	}

	gs.clampInPlace()
	return gs
}

// initGrid places records on a uniform lattice covering [0,1]^2. Scale is a
// constant proportional to the lattice spacing, rotation 0, and the feature
// starts from the mean of the image patch under the lattice cell.
func initGrid(target *imgio.Plane, n int) *GaussianSet {
	gs := NewGaussianSet(n, target.C)

	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	spacing := 1.0 / float64(cols)
	sigma := 0.4 * spacing

	for i := 0; i < n; i++ {
		col := i % cols
		row := i / cols
		x := (float64(col) + 0.5) / float64(cols)
		y := (float64(row) + 0.5) / float64(rows)

		gs.Pos[2*i] = x
		gs.Pos[2*i+1] = y
		gs.Scale[2*i] = sigma
		gs.Scale[2*i+1] = sigma

		// Patch under this lattice cell, in pixels.
		x0 := col * target.W / cols
		x1 := (col + 1) * target.W / cols
		y0 := row * target.H / rows
		y1 := (row + 1) * target.H / rows
		mean := target.PatchMean(x0, y0, x1+1, y1+1)
		copy(gs.Feat[i*gs.c:(i+1)*gs.c], mean)
	}
	return gs
}

// initRandom samples positions uniformly; features come from the pixel
// under each sampled position.
func initRandom(target *imgio.Plane, n int, rng *rand.Rand) *GaussianSet {
	gs := NewGaussianSet(n, target.C)
	sigma := seedSigma(n)

	for i := 0; i < n; i++ {
		x := rng.Float64()
		y := rng.Float64()
		gs.Pos[2*i] = x
		gs.Pos[2*i+1] = y
		gs.Scale[2*i] = sigma
		gs.Scale[2*i+1] = sigma
		sampleFeat(target, gs, i, x, y)
	}
	return gs
}

// initGradient importance-samples positions from a Sobel gradient-magnitude
// map so detail-rich regions receive denser coverage. A flat image degrades
// to uniform sampling.
func initGradient(target *imgio.Plane, n int, rng *rand.Rand) *GaussianSet {
	gs := NewGaussianSet(n, target.C)
	sigma := seedSigma(n)

	weights := gradientMagnitude(target)

	// Uniform floor so zero-gradient pixels stay reachable and a flat image
	// yields a proper distribution.
	mean := floats.Sum(weights) / float64(len(weights))
	floor := 0.05*mean + 1e-12
	for i := range weights {
		weights[i] += floor
	}

	cdf := make([]float64, len(weights))
	floats.CumSum(cdf, weights)
	total := cdf[len(cdf)-1]

	for i := 0; i < n; i++ {
		idx := sort.SearchFloat64s(cdf, rng.Float64()*total)
		if idx >= len(cdf) {
			idx = len(cdf) - 1
		}
		px := idx % target.W
		py := idx / target.W

		// Jitter within the sampled pixel to avoid stacking records.
		x := (float64(px) + rng.Float64()) / float64(target.W)
		y := (float64(py) + rng.Float64()) / float64(target.H)

		gs.Pos[2*i] = x
		gs.Pos[2*i+1] = y
		gs.Scale[2*i] = sigma
		gs.Scale[2*i+1] = sigma
		sampleFeat(target, gs, i, x, y)
	}
	return gs
}

// seedSigma is the starting std-dev for sampled seeding: small, shrinking
// with record count so dense sets start sharp.
func seedSigma(n int) float64 {
	s := 0.5 / math.Sqrt(float64(n))
	return math.Max(math.Min(s, 0.05), 2*minScale)
}

// sampleFeat initializes record i's feature from the pixel under (x, y).
func sampleFeat(target *imgio.Plane, gs *GaussianSet, i int, x, y float64) {
	px := min(int(x*float64(target.W)), target.W-1)
	py := min(int(y*float64(target.H)), target.H-1)
	off := target.Offset(px, py)
	copy(gs.Feat[i*gs.c:(i+1)*gs.c], target.Pix[off:off+gs.c])
}

// gradientMagnitude computes the Sobel gradient magnitude of the plane's
// luma channel, one value per pixel.
func gradientMagnitude(p *imgio.Plane) []float64 {
	luma := p.Luma()
	w, h := p.W, p.H
	out := make([]float64, w*h)

	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return luma[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			out[y*w+x] = math.Hypot(gx, gy)
		}
	}
	return out
}
