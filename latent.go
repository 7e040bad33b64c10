package imagegs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Latent blob layout, format version 1. All integers little-endian.
//
//	off  0  magic   "GSL1" (4 bytes)
//	off  4  version u8
//	off  5  layout  u8 (0 = field-major)
//	off  6  flags   u8 (bit 0: payload zstd-compressed)
//	off  7  C       u8
//	off  8  N       u32
//	off 12  bits    u8 x 4 (position, scale, rotation, feature)
//	off 16  ranges  4 x (min f32, max f32)
//	off 48  payload codes bit-packed MSB-first, field-major, byte-padded
//
// The header is self-describing: a decoder reconstructs the exact layout
// and dequantization from it alone.
var latentMagic = [4]byte{'G', 'S', 'L', '1'}

// Layout tags.
const (
	// LayoutFieldMajor packs all position codes, then all scales, then all
	// rotations, then all features.
	LayoutFieldMajor = 0
)

// Header flag bits.
const (
	flagZstdPayload = 1 << 0
)

// Header is the decoded latent header.
type Header struct {
	Version byte
	Layout  byte
	Flags   byte
	N       int
	C       int
	Bits    BitAllocation
	Ranges  [numFieldKinds]Range
}

// EntropyCoded reports whether the payload is zstd-compressed.
func (h Header) EntropyCoded() bool { return h.Flags&flagZstdPayload != 0 }

// EncodeLatent quantizes every parameter of gs and packs the codes into a
// self-describing blob. With entropy coding disabled the result is exactly
// EstimateSize(gs.Len(), gs.Channels(), bits) bytes long.
//
// Out-of-range parameters are clamped to their field range before
// quantization; the total clamp count is reported to the logger as a
// measure of lossy error beyond the bit-width bound.
func EncodeLatent(gs *GaussianSet, bits BitAllocation, entropyCoding bool) ([]byte, error) {
	for k := FieldKind(0); k < numFieldKinds; k++ {
		if b := bits.bitsFor(k); b < 1 || b > 16 {
			return nil, fmt.Errorf("latent: %s bit width %d out of [1, 16]", k, b)
		}
	}

	var flags byte
	if entropyCoding {
		flags |= flagZstdPayload
	}

	buf := bytes.NewBuffer(make([]byte, 0, EstimateSize(gs.n, gs.c, bits)))
	buf.Write(latentMagic[:])
	buf.WriteByte(FormatVersion)
	buf.WriteByte(LayoutFieldMajor)
	buf.WriteByte(flags)
	buf.WriteByte(byte(gs.c))
	_ = binary.Write(buf, binary.LittleEndian, uint32(gs.n))
	buf.WriteByte(byte(bits.Position))
	buf.WriteByte(byte(bits.Scale))
	buf.WriteByte(byte(bits.Rotation))
	buf.WriteByte(byte(bits.Feature))
	for k := FieldKind(0); k < numFieldKinds; k++ {
		r := rangeOf(k)
		_ = binary.Write(buf, binary.LittleEndian, float32(r.Min))
		_ = binary.Write(buf, binary.LittleEndian, float32(r.Max))
	}
	if buf.Len() != HeaderSize {
		return nil, fmt.Errorf("latent: header size %d, want %d", buf.Len(), HeaderSize)
	}

	var payload bytes.Buffer
	bw := newBitWriter(&payload)
	clamps := 0
	pack := func(vals []float64, k FieldKind) {
		r := rangeOf(k)
		b := bits.bitsFor(k)
		for _, v := range vals {
			code, clamped := Quantize(v, r, b)
			if clamped {
				clamps++
			}
			bw.writeBits(uint64(code), uint8(b))
		}
	}
	pack(gs.Pos, FieldPosition)
	pack(gs.Scale, FieldScale)
	pack(gs.Rot, FieldRotation)
	pack(gs.Feat, FieldFeature)
	bw.flush()

	if clamps > 0 {
		logger().Warn("clamped out-of-range values during quantization",
			"count", clamps, "records", gs.n)
	}

	if entropyCoding {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("latent: init zstd: %w", err)
		}
		compressed := enc.EncodeAll(payload.Bytes(), nil)
		_ = enc.Close()
		buf.Write(compressed)
	} else {
		buf.Write(payload.Bytes())
	}

	return buf.Bytes(), nil
}

// DecodeHeader parses and validates the fixed header of a latent blob.
func DecodeHeader(blob []byte) (Header, error) {
	var h Header
	if len(blob) < HeaderSize {
		return h, fmt.Errorf("latent: blob too short: %d bytes", len(blob))
	}
	if !bytes.Equal(blob[:4], latentMagic[:]) {
		return h, fmt.Errorf("latent: bad magic %q", blob[:4])
	}
	h.Version = blob[4]
	if h.Version != FormatVersion {
		return h, fmt.Errorf("latent: unsupported format version %d", h.Version)
	}
	h.Layout = blob[5]
	if h.Layout != LayoutFieldMajor {
		return h, fmt.Errorf("latent: unknown layout tag %d", h.Layout)
	}
	h.Flags = blob[6]
	h.C = int(blob[7])
	if h.C == 0 {
		return h, fmt.Errorf("latent: zero feature channels")
	}
	h.N = int(binary.LittleEndian.Uint32(blob[8:12]))
	h.Bits = BitAllocation{
		Position: int(blob[12]),
		Scale:    int(blob[13]),
		Rotation: int(blob[14]),
		Feature:  int(blob[15]),
	}
	for k := FieldKind(0); k < numFieldKinds; k++ {
		if b := h.Bits.bitsFor(k); b < 1 || b > 16 {
			return h, fmt.Errorf("latent: %s bit width %d out of [1, 16]", k, b)
		}
	}
	for k := 0; k < int(numFieldKinds); k++ {
		off := 16 + k*8
		h.Ranges[k] = Range{
			Min: float64(math.Float32frombits(binary.LittleEndian.Uint32(blob[off : off+4]))),
			Max: float64(math.Float32frombits(binary.LittleEndian.Uint32(blob[off+4 : off+8]))),
		}
	}
	return h, nil
}

// DecodeLatent reconstructs a dequantized GaussianSet from a latent blob
// using only information in its header. Values reproduce the encoded
// parameters within the quantization error bound of each field's bit width.
func DecodeLatent(blob []byte) (*GaussianSet, Header, error) {
	h, err := DecodeHeader(blob)
	if err != nil {
		return nil, h, err
	}

	payload := blob[HeaderSize:]
	if h.EntropyCoded() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, h, fmt.Errorf("latent: init zstd: %w", err)
		}
		payload, err = dec.DecodeAll(payload, nil)
		dec.Close()
		if err != nil {
			return nil, h, fmt.Errorf("latent: decompress payload: %w", err)
		}
	}

	// Bound the declared record count against what the payload actually
	// carries before allocating anything sized by it.
	if need := EstimateSize(h.N, h.C, h.Bits) - HeaderSize; len(payload) < need {
		return nil, h, fmt.Errorf("latent: payload %d bytes, need %d for %d records",
			len(payload), need, h.N)
	}

	gs := NewGaussianSet(h.N, h.C)
	br := newBitReader(payload)
	unpack := func(vals []float64, k FieldKind) error {
		r := h.Ranges[k]
		b := h.Bits.bitsFor(k)
		for i := range vals {
			code, err := br.readBits(uint8(b))
			if err != nil {
				return fmt.Errorf("latent: %s codes: %w", k, err)
			}
			vals[i] = Dequantize(uint32(code), r, b)
		}
		return nil
	}
	if err := unpack(gs.Pos, FieldPosition); err != nil {
		return nil, h, err
	}
	if err := unpack(gs.Scale, FieldScale); err != nil {
		return nil, h, err
	}
	if err := unpack(gs.Rot, FieldRotation); err != nil {
		return nil, h, err
	}
	if err := unpack(gs.Feat, FieldFeature); err != nil {
		return nil, h, err
	}
	return gs, h, nil
}

// bitWriter packs codes MSB-first into a bytes.Buffer.
type bitWriter struct {
	buf  *bytes.Buffer
	cur  byte
	used uint8 // bits used in cur (0..8)
}

func newBitWriter(buf *bytes.Buffer) *bitWriter {
	return &bitWriter{buf: buf}
}

// writeBits writes the low n bits of v, MSB-first.
func (w *bitWriter) writeBits(v uint64, n uint8) {
	for n > 0 {
		free := 8 - w.used
		take := min(n, free)
		// Highest `take` bits of the remaining n.
		chunk := byte(v >> (n - take) & (1<<take - 1))
		w.cur |= chunk << (free - take)
		w.used += take
		n -= take
		if w.used == 8 {
			w.buf.WriteByte(w.cur)
			w.cur = 0
			w.used = 0
		}
	}
}

// flush pads the final partial byte with zero bits.
func (w *bitWriter) flush() {
	if w.used > 0 {
		w.buf.WriteByte(w.cur)
		w.cur = 0
		w.used = 0
	}
}

// bitReader reads MSB-first codes from a byte slice.
type bitReader struct {
	data []byte
	pos  int   // byte position
	used uint8 // bits consumed from data[pos]
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// readBits reads n bits MSB-first.
func (r *bitReader) readBits(n uint8) (uint64, error) {
	var out uint64
	for n > 0 {
		if r.pos >= len(r.data) {
			return 0, fmt.Errorf("unexpected end of payload")
		}
		avail := 8 - r.used
		take := min(n, avail)
		chunk := r.data[r.pos] >> (avail - take) & (1<<take - 1)
		out = out<<take | uint64(chunk)
		r.used += take
		n -= take
		if r.used == 8 {
			r.pos++
			r.used = 0
		}
	}
	return out, nil
}
