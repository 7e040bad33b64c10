package imagegs

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomSet builds a set with parameters inside the declared field ranges.
func randomSet(t *testing.T, n, c int, seed int64) *GaussianSet {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	gs := NewGaussianSet(n, c)
	for i := 0; i < n; i++ {
		gs.Pos[2*i] = rng.Float64()
		gs.Pos[2*i+1] = rng.Float64()
		gs.Scale[2*i] = minScale + rng.Float64()*(maxScale-minScale)
		gs.Scale[2*i+1] = minScale + rng.Float64()*(maxScale-minScale)
		gs.Rot[i] = (rng.Float64()*2 - 1) * math.Pi
		for ch := 0; ch < c; ch++ {
			gs.Feat[i*c+ch] = rng.Float64()
		}
	}
	gs.clampInPlace()
	return gs
}

func TestLatentRoundTrip(t *testing.T) {
	gs := randomSet(t, 10, 3, 42)
	bits := UniformBits(8)

	blob, err := EncodeLatent(gs, bits, false)
	require.NoError(t, err)

	// The packed layout is exactly the closed-form size.
	assert.Equal(t, EstimateSize(10, 3, bits), len(blob))

	dec, hdr, err := DecodeLatent(blob)
	require.NoError(t, err)

	// Header recovers shape and widths exactly.
	assert.Equal(t, byte(FormatVersion), hdr.Version)
	assert.Equal(t, byte(LayoutFieldMajor), hdr.Layout)
	assert.Equal(t, 10, hdr.N)
	assert.Equal(t, 3, hdr.C)
	assert.Equal(t, bits, hdr.Bits)
	assert.False(t, hdr.EntropyCoded())

	// Dequantized values sit within the error bound implied by the widths
	// and the ranges stored in the header.
	checkWithin := func(got, want []float64, k FieldKind) {
		bound := QuantStep(hdr.Ranges[k], hdr.Bits.bitsFor(k)) + 1e-6
		for i := range want {
			assert.InDelta(t, want[i], got[i], bound, "%s[%d]", k, i)
		}
	}
	checkWithin(dec.Pos, gs.Pos, FieldPosition)
	checkWithin(dec.Scale, gs.Scale, FieldScale)
	checkWithin(dec.Rot, gs.Rot, FieldRotation)
	checkWithin(dec.Feat, gs.Feat, FieldFeature)
}

func TestLatentRoundTripMixedWidths(t *testing.T) {
	gs := randomSet(t, 33, 1, 9)
	bits := BitAllocation{Position: 14, Scale: 10, Rotation: 7, Feature: 5}

	blob, err := EncodeLatent(gs, bits, false)
	require.NoError(t, err)
	assert.Equal(t, EstimateSize(33, 1, bits), len(blob))

	dec, hdr, err := DecodeLatent(blob)
	require.NoError(t, err)
	assert.Equal(t, bits, hdr.Bits)

	bound := QuantStep(hdr.Ranges[FieldPosition], 14) + 1e-6
	for i := range gs.Pos {
		assert.InDelta(t, gs.Pos[i], dec.Pos[i], bound)
	}
}

func TestLatentEntropyCodedRoundTrip(t *testing.T) {
	// A constant set compresses extremely well, so the flag path is easy to
	// observe: the blob should come out smaller than the packed layout.
	gs := NewGaussianSet(500, 3)
	for i := range gs.Pos {
		gs.Pos[i] = 0.5
	}
	for i := range gs.Scale {
		gs.Scale[i] = 0.01
	}
	for i := range gs.Feat {
		gs.Feat[i] = 0.25
	}

	blob, err := EncodeLatent(gs, UniformBits(12), true)
	require.NoError(t, err)
	assert.Less(t, len(blob), EstimateSize(500, 3, UniformBits(12)))

	dec, hdr, err := DecodeLatent(blob)
	require.NoError(t, err)
	require.True(t, hdr.EntropyCoded())

	bound := QuantStep(hdr.Ranges[FieldPosition], 12) + 1e-6
	for i := range gs.Pos {
		assert.InDelta(t, 0.5, dec.Pos[i], bound)
	}
}

func TestLatentOutOfRangeValuesAreClamped(t *testing.T) {
	gs := NewGaussianSet(2, 3)
	gs.Pos[0] = 1.75 // clamps to 1
	gs.Pos[1] = -0.5 // clamps to 0
	for i := range gs.Scale {
		gs.Scale[i] = 0.01
	}

	blob, err := EncodeLatent(gs, UniformBits(8), false)
	require.NoError(t, err)

	dec, _, err := DecodeLatent(blob)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, dec.Pos[0], 1e-6)
	assert.InDelta(t, 0.0, dec.Pos[1], 1e-6)
}

func TestDecodeHeaderRejectsMalformedBlobs(t *testing.T) {
	gs := randomSet(t, 4, 3, 3)
	blob, err := EncodeLatent(gs, UniformBits(8), false)
	require.NoError(t, err)

	_, err = DecodeHeader(blob[:10])
	assert.Error(t, err, "short blob")

	bad := append([]byte(nil), blob...)
	bad[0] = 'X'
	_, err = DecodeHeader(bad)
	assert.Error(t, err, "bad magic")

	bad = append([]byte(nil), blob...)
	bad[4] = 99
	_, err = DecodeHeader(bad)
	assert.Error(t, err, "unknown version")

	bad = append([]byte(nil), blob...)
	bad[5] = 7
	_, err = DecodeHeader(bad)
	assert.Error(t, err, "unknown layout tag")

	bad = append([]byte(nil), blob...)
	bad[7] = 0
	_, err = DecodeHeader(bad)
	assert.Error(t, err, "zero channels")

	bad = append([]byte(nil), blob...)
	bad[12] = 0 // position bit width
	_, err = DecodeHeader(bad)
	assert.Error(t, err, "zero bit width")
	_, _, err = DecodeLatent(bad)
	assert.Error(t, err, "zero bit width must not decode")

	bad = append([]byte(nil), blob...)
	bad[15] = 17 // feature bit width
	_, err = DecodeHeader(bad)
	assert.Error(t, err, "bit width over 16")
}

func TestDecodeLatentRejectsForgedRecordCount(t *testing.T) {
	gs := randomSet(t, 4, 3, 21)
	blob, err := EncodeLatent(gs, UniformBits(8), false)
	require.NoError(t, err)

	// A header claiming far more records than the payload carries must fail
	// the bound check instead of allocating for the declared count.
	bad := append([]byte(nil), blob...)
	binary.LittleEndian.PutUint32(bad[8:12], 1<<30)
	_, _, err = DecodeLatent(bad)
	assert.Error(t, err)

	// Same check catches a truncated payload.
	_, _, err = DecodeLatent(blob[:len(blob)-1])
	assert.Error(t, err)
}

func TestEncodeLatentRejectsBadWidths(t *testing.T) {
	gs := randomSet(t, 2, 3, 1)

	_, err := EncodeLatent(gs, UniformBits(0), false)
	assert.Error(t, err)

	_, err = EncodeLatent(gs, UniformBits(17), false)
	assert.Error(t, err)
}

func TestBitWriterReaderAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	widths := []uint8{1, 3, 5, 8, 11, 13, 16}
	var codes []uint64

	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	for i := 0; i < 1000; i++ {
		w := widths[i%len(widths)]
		code := rng.Uint64() & (1<<w - 1)
		codes = append(codes, code)
		bw.writeBits(code, w)
	}
	bw.flush()

	br := newBitReader(buf.Bytes())
	for i, want := range codes {
		got, err := br.readBits(widths[i%len(widths)])
		require.NoError(t, err)
		assert.Equal(t, want, got, "code %d", i)
	}

	// Reading past the end fails rather than fabricating bits.
	_, err := br.readBits(16)
	assert.Error(t, err)
}
