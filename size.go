package imagegs

// HeaderSize is the fixed latent header overhead in bytes: magic, format
// version, layout tag, flags, N, C, the bit-width table and the per-field
// quantization ranges.
const HeaderSize = 48

// EstimateSize returns the exact serialized latent size in bytes for n
// records with c feature channels at the given bit widths:
//
//	ceil(n * (2*pos + 2*scale + rot + c*feat) / 8) + HeaderSize
//
// With entropy coding disabled the serializer's output length equals this
// value; with it enabled the estimate is an upper bound on the payload.
func EstimateSize(n, c int, bits BitAllocation) int {
	totalBits := n * (2*bits.Position + 2*bits.Scale + bits.Rotation + c*bits.Feature)
	return (totalBits+7)/8 + HeaderSize
}

// Ratio returns original/compressed, or 0 for a zero compressed size
// (degenerate; the fixed header floor prevents it in practice).
func Ratio(original, compressed int64) float64 {
	if compressed == 0 {
		return 0
	}
	return float64(original) / float64(compressed)
}
