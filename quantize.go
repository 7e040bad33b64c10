package imagegs

import "math"

// FieldKind identifies a parameter category for quantization. Every kind
// has a fixed, known value range; bit widths are configured per kind.
type FieldKind int

// Parameter categories.
const (
	FieldPosition FieldKind = iota
	FieldScale
	FieldRotation
	FieldFeature
	numFieldKinds
)

// String returns the category name used in logs and headers.
func (k FieldKind) String() string {
	switch k {
	case FieldPosition:
		return "position"
	case FieldScale:
		return "scale"
	case FieldRotation:
		return "rotation"
	case FieldFeature:
		return "feature"
	default:
		return "unknown"
	}
}

// Range is the closed value interval a field kind is quantized over.
type Range struct {
	Min, Max float64
}

// Width returns Max - Min.
func (r Range) Width() float64 { return r.Max - r.Min }

// rangeOf returns the fixed quantization range for a field kind. These are
// constants of the format: the serializer records them in the header so a
// decoder never has to assume them, but encoders always use these values.
func rangeOf(k FieldKind) Range {
	switch k {
	case FieldPosition:
		return Range{0, 1}
	case FieldScale:
		return Range{0, maxScale}
	case FieldRotation:
		return Range{-math.Pi, math.Pi}
	default: // FieldFeature
		return Range{0, 1}
	}
}

// bitsFor returns the configured width for a field kind.
func (b BitAllocation) bitsFor(k FieldKind) int {
	switch k {
	case FieldPosition:
		return b.Position
	case FieldScale:
		return b.Scale
	case FieldRotation:
		return b.Rotation
	default:
		return b.Feature
	}
}

// QuantStep is the quantization error bound for a range and bit width:
// dequantize(quantize(v)) differs from an in-range v by at most this much.
func QuantStep(r Range, bits int) float64 {
	return r.Width() / float64(uint32(1)<<bits-1)
}

// Quantize maps v onto an unsigned code in [0, 2^bits - 1] by uniform
// quantization over r. Out-of-range values are clamped, never wrapped;
// clamped reports whether that happened so callers can count it as
// measurable lossy error.
func Quantize(v float64, r Range, bits int) (code uint32, clamped bool) {
	levels := float64(uint32(1)<<bits - 1)

	if v < r.Min {
		v, clamped = r.Min, true
	} else if v > r.Max {
		v, clamped = r.Max, true
	}

	return uint32(math.Round((v - r.Min) / r.Width() * levels)), clamped
}

// Dequantize is the inverse mapping; the result is within QuantStep of the
// clamped original.
func Dequantize(code uint32, r Range, bits int) float64 {
	levels := float64(uint32(1)<<bits - 1)
	return r.Min + float64(code)/levels*r.Width()
}

// snapToGrid replaces every parameter with its quantize/dequantize image,
// so quantization-aware fitting sees exactly the values the latent will
// carry. Scales are re-clamped afterwards: a scale snapped to grid point 0
// would make the kernel degenerate.
func snapToGrid(gs *GaussianSet, bits BitAllocation) {
	snap := func(vals []float64, k FieldKind) {
		r := rangeOf(k)
		b := bits.bitsFor(k)
		for i, v := range vals {
			code, _ := Quantize(v, r, b)
			vals[i] = Dequantize(code, r, b)
		}
	}
	snap(gs.Pos, FieldPosition)
	snap(gs.Scale, FieldScale)
	snap(gs.Rot, FieldRotation)
	snap(gs.Feat, FieldFeature)
	gs.clampInPlace()
}
