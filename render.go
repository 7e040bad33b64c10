package imagegs

import (
	"math"

	"github.com/gsplat/imagegs/internal/imgio"
	"github.com/gsplat/imagegs/internal/parallel"
)

// cutoffSigmas bounds each Gaussian's raster footprint. Beyond 3 std-devs
// the kernel contributes less than e^-4.5 ~ 0.011 of its peak.
const cutoffSigmas = 3.0

// splatGeom is the per-record geometry precomputed once per render or
// gradient pass: rotation terms, inverse squared scales, and the pixel
// bounding box of the cutoff ellipse.
type splatGeom struct {
	cx, cy   float64 // center in normalized units
	cos, sin float64
	invSx2   float64 // 1/sx^2
	invSy2   float64 // 1/sy^2
	x0, x1   int     // pixel column range [x0, x1)
	y0, y1   int     // pixel row range [y0, y1)
}

// geometry computes splatGeom for record i against a w x h raster.
func geometry(gs *GaussianSet, i, w, h int) splatGeom {
	sx := gs.Scale[2*i]
	sy := gs.Scale[2*i+1]
	c, s := math.Cos(gs.Rot[i]), math.Sin(gs.Rot[i])

	g := splatGeom{
		cx:     gs.Pos[2*i],
		cy:     gs.Pos[2*i+1],
		cos:    c,
		sin:    s,
		invSx2: 1 / (sx * sx),
		invSy2: 1 / (sy * sy),
	}

	// Axis-aligned extent of the rotated cutoff ellipse.
	rx := cutoffSigmas * math.Hypot(c*sx, s*sy)
	ry := cutoffSigmas * math.Hypot(s*sx, c*sy)

	fw, fh := float64(w), float64(h)
	g.x0 = max(int(math.Floor((g.cx-rx)*fw)), 0)
	g.x1 = min(int(math.Ceil((g.cx+rx)*fw))+1, w)
	g.y0 = max(int(math.Floor((g.cy-ry)*fh)), 0)
	g.y1 = min(int(math.Ceil((g.cy+ry)*fh))+1, h)
	return g
}

// kernel evaluates the anisotropic Gaussian at normalized offset (dx, dy),
// returning the weight and the local coordinates used by the backward pass.
func (g *splatGeom) kernel(dx, dy float64) (w, u, v float64) {
	u = g.cos*dx + g.sin*dy
	v = -g.sin*dx + g.cos*dy
	q := u*u*g.invSx2 + v*v*g.invSy2
	if q > cutoffSigmas*cutoffSigmas {
		return 0, u, v
	}
	return math.Exp(-0.5 * q), u, v
}

// render is the differentiable forward function: it splats the set onto a
// w x h x C plane with additive accumulation. Additive blending is
// independent of record order, so renders are reproducible regardless of
// how records were seeded or reordered.
//
// Rows are partitioned across workers; each goroutine writes only its own
// row band, so no accumulation is shared.
func render(gs *GaussianSet, w, h, workers int) *imgio.Plane {
	out, _ := imgio.NewPlane(w, h, gs.c)

	geoms := make([]splatGeom, gs.n)
	parallel.ForRange(workers, gs.n, func(start, end int) {
		for i := start; i < end; i++ {
			geoms[i] = geometry(gs, i, w, h)
		}
	})

	fw, fh := float64(w), float64(h)
	parallel.ForRange(workers, h, func(rowStart, rowEnd int) {
		for i := range geoms {
			g := &geoms[i]
			y0 := max(g.y0, rowStart)
			y1 := min(g.y1, rowEnd)
			if y0 >= y1 || g.x0 >= g.x1 {
				continue
			}
			feat := gs.Feat[i*gs.c : (i+1)*gs.c]
			for y := y0; y < y1; y++ {
				dy := (float64(y)+0.5)/fh - g.cy
				row := out.Offset(g.x0, y)
				for x := g.x0; x < g.x1; x++ {
					dx := (float64(x)+0.5)/fw - g.cx
					wgt, _, _ := g.kernel(dx, dy)
					if wgt != 0 {
						for ch := 0; ch < gs.c; ch++ {
							out.Pix[row+ch] += wgt * feat[ch]
						}
					}
					row += gs.c
				}
			}
		}
	})

	return out
}
