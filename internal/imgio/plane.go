// Package imgio provides image decoding and planar float buffers for the
// splat-fitting pipeline.
//
// Source rasters are normalized into a Plane: an interleaved float64 buffer
// with values in [0, 1], C channels per pixel. Grayscale sources decode to
// C=1, everything else to C=3. The pipeline operates exclusively on Planes;
// byte-oriented image formats exist only at the load/save boundary.
package imgio

import "errors"

// Common errors for plane operations.
var (
	// ErrInvalidDimensions is returned when width, height or channels is non-positive.
	ErrInvalidDimensions = errors.New("imgio: invalid dimensions")

	// ErrChannelMismatch is returned when two planes disagree on shape.
	ErrChannelMismatch = errors.New("imgio: plane shape mismatch")
)

// Plane is an interleaved float raster: Pix[(y*W+x)*C + ch], values in [0, 1].
//
// Thread safety: a Plane is safe for concurrent reads. Writes require
// external synchronization; the render pass partitions rows so that no two
// goroutines touch the same pixel.
type Plane struct {
	W, H, C int
	Pix     []float64
}

// NewPlane allocates a zeroed plane with the given shape.
func NewPlane(w, h, c int) (*Plane, error) {
	if w <= 0 || h <= 0 || c <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &Plane{W: w, H: h, C: c, Pix: make([]float64, w*h*c)}, nil
}

// At returns the value of channel ch at pixel (x, y). No bounds checking.
func (p *Plane) At(x, y, ch int) float64 {
	return p.Pix[(y*p.W+x)*p.C+ch]
}

// Set stores v into channel ch at pixel (x, y). No bounds checking.
func (p *Plane) Set(x, y, ch int, v float64) {
	p.Pix[(y*p.W+x)*p.C+ch] = v
}

// Offset returns the index of pixel (x, y), channel 0.
func (p *Plane) Offset(x, y int) int {
	return (y*p.W + x) * p.C
}

// Zero clears every sample to 0.
func (p *Plane) Zero() {
	clear(p.Pix)
}

// SameShape reports whether q has identical dimensions and channel count.
func (p *Plane) SameShape(q *Plane) bool {
	return p.W == q.W && p.H == q.H && p.C == q.C
}

// Luma returns a single-channel view of the plane as a new H*W slice.
// For C=3 it applies the Rec. 709 weights; for C=1 it copies the channel;
// other channel counts average.
func (p *Plane) Luma() []float64 {
	out := make([]float64, p.W*p.H)
	switch p.C {
	case 1:
		copy(out, p.Pix)
	case 3:
		for i := range out {
			o := i * 3
			out[i] = 0.2126*p.Pix[o] + 0.7152*p.Pix[o+1] + 0.0722*p.Pix[o+2]
		}
	default:
		inv := 1.0 / float64(p.C)
		for i := range out {
			o := i * p.C
			var s float64
			for ch := 0; ch < p.C; ch++ {
				s += p.Pix[o+ch]
			}
			out[i] = s * inv
		}
	}
	return out
}

// PatchMean returns the per-channel mean over the pixel rectangle
// [x0,x1) × [y0,y1), clipped to the plane bounds. Used by lattice seeding.
func (p *Plane) PatchMean(x0, y0, x1, y1 int) []float64 {
	x0 = max(x0, 0)
	y0 = max(y0, 0)
	x1 = min(x1, p.W)
	y1 = min(y1, p.H)

	mean := make([]float64, p.C)
	if x0 >= x1 || y0 >= y1 {
		return mean
	}
	for y := y0; y < y1; y++ {
		row := p.Offset(x0, y)
		for x := x0; x < x1; x++ {
			for ch := 0; ch < p.C; ch++ {
				mean[ch] += p.Pix[row+ch]
			}
			row += p.C
		}
	}
	n := float64((x1 - x0) * (y1 - y0))
	for ch := range mean {
		mean[ch] /= n
	}
	return mean
}
