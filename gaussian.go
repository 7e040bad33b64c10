package imagegs

import "math"

// Scale clamp bounds in normalized image units. The lower bound keeps the
// inverse covariance finite; the upper bound matches the quantization range
// (one std-dev spanning half the image is already near-uniform coverage).
const (
	minScale = 1e-4
	maxScale = 0.5
)

// GaussianSet is the parameter store for one encode: N anisotropic 2D
// Gaussians with a C-dimensional feature each, in structure-of-arrays
// layout. N and C are fixed for the lifetime of the set.
//
// All coordinates are normalized: positions live in [0,1]x[0,1] (pixel
// (x,y) has center ((x+0.5)/W, (y+0.5)/H)) and scales are std-devs in the
// same units, so a fitted set is resolution-independent.
//
// A set is exclusively owned by one encode invocation and never shared
// across frames or goroutines; the parallel passes partition it by record.
type GaussianSet struct {
	n int
	c int

	// Pos holds x,y pairs: Pos[2i], Pos[2i+1].
	Pos []float64
	// Scale holds std-dev pairs along the local axes: Scale[2i], Scale[2i+1].
	// Always in [minScale, maxScale] after clampInPlace.
	Scale []float64
	// Rot holds one angle per record, wrapped to (-pi, pi].
	Rot []float64
	// Feat holds C values per record, record-major: Feat[i*C+ch].
	Feat []float64
}

// NewGaussianSet allocates a zeroed set of n records with c feature channels.
func NewGaussianSet(n, c int) *GaussianSet {
	return &GaussianSet{
		n:     n,
		c:     c,
		Pos:   make([]float64, 2*n),
		Scale: make([]float64, 2*n),
		Rot:   make([]float64, n),
		Feat:  make([]float64, n*c),
	}
}

// Len returns the number of Gaussian records.
func (g *GaussianSet) Len() int { return g.n }

// Channels returns the feature dimension C.
func (g *GaussianSet) Channels() int { return g.c }

// Clone returns a deep copy of the set.
func (g *GaussianSet) Clone() *GaussianSet {
	out := NewGaussianSet(g.n, g.c)
	out.CopyFrom(g)
	return out
}

// CopyFrom overwrites this set's parameters with src's. The sets must have
// identical shape; used by the optimizer for step rollback.
func (g *GaussianSet) CopyFrom(src *GaussianSet) {
	copy(g.Pos, src.Pos)
	copy(g.Scale, src.Scale)
	copy(g.Rot, src.Rot)
	copy(g.Feat, src.Feat)
}

// clampInPlace enforces the parameter invariants after an optimizer step:
// scales stay inside [minScale, maxScale] and rotations wrap to (-pi, pi].
// Positions and features are left free during fitting; the quantizer clamps
// them to their declared ranges at serialization.
func (g *GaussianSet) clampInPlace() {
	for i, s := range g.Scale {
		if s < minScale {
			g.Scale[i] = minScale
		} else if s > maxScale {
			g.Scale[i] = maxScale
		}
	}
	for i, r := range g.Rot {
		g.Rot[i] = wrapAngle(r)
	}
}

// finite reports whether every parameter is finite. A step that produces a
// non-finite value is rejected and the previous state retained.
func (g *GaussianSet) finite() bool {
	for _, s := range [][]float64{g.Pos, g.Scale, g.Rot, g.Feat} {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// wrapAngle wraps a to (-pi, pi].
func wrapAngle(a float64) float64 {
	if a > -math.Pi && a <= math.Pi {
		return a
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
