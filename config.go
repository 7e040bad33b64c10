package imagegs

import (
	"encoding/json"
	"fmt"
)

// InitMode selects the seeding strategy for the initial Gaussian set.
type InitMode int

// Seeding strategies.
const (
	// InitGradient biases positions toward high-image-gradient regions via
	// importance sampling on a gradient-magnitude map. Default.
	InitGradient InitMode = iota

	// InitRandom samples positions uniformly over the image.
	InitRandom

	// InitGrid places positions on a uniform lattice covering the image.
	InitGrid
)

// String returns the wire name of the mode.
func (m InitMode) String() string {
	switch m {
	case InitGradient:
		return "gradient"
	case InitRandom:
		return "random"
	case InitGrid:
		return "grid"
	default:
		return fmt.Sprintf("InitMode(%d)", int(m))
	}
}

// ParseInitMode parses a wire name into an InitMode.
func ParseInitMode(s string) (InitMode, error) {
	switch s {
	case "gradient":
		return InitGradient, nil
	case "random":
		return InitRandom, nil
	case "grid":
		return InitGrid, nil
	default:
		return 0, fmt.Errorf("unknown init_mode %q", s)
	}
}

// BitAllocation holds the quantization bit width per field category.
// Widths are uniform across all Gaussians within one encode but may differ
// between categories.
type BitAllocation struct {
	Position int
	Scale    int
	Rotation int
	Feature  int
}

// UniformBits returns a BitAllocation with the same width for every field.
func UniformBits(b int) BitAllocation {
	return BitAllocation{Position: b, Scale: b, Rotation: b, Feature: b}
}

// uniform reports the shared width if all categories agree, else 0.
func (b BitAllocation) uniform() int {
	if b.Position == b.Scale && b.Scale == b.Rotation && b.Rotation == b.Feature {
		return b.Position
	}
	return 0
}

// EncodeConfig is the immutable per-encode configuration. It is resolved
// once, validated at the EncodeFrame boundary, and passed by value; the
// pipeline never mutates it.
type EncodeConfig struct {
	// NumGaussians is the number of splats fitted per frame.
	NumGaussians int

	// MaxSteps bounds the optimizer loop exactly: the loop terminates at
	// this step count even if the loss has not plateaued.
	MaxSteps int

	// Bits holds per-field quantization widths, each in [1, 16].
	Bits BitAllocation

	// InitMode selects the seeding strategy.
	InitMode InitMode

	// Seed drives the random and gradient seeding strategies. Encodes with
	// equal inputs and seeds are bit-for-bit reproducible.
	Seed int64

	// MaxDimension, when > 0, downscales sources whose longer side exceeds
	// it before fitting. 0 fits at native resolution.
	MaxDimension int

	// TargetLoss enables opt-in early stopping: the loop stops once the
	// loss falls to or below it. 0 disables early stopping (default), so
	// runs remain reproducible step-for-step.
	TargetLoss float64

	// QuantAwareEvery, when > 0, snaps parameters through
	// quantize/dequantize every k steps so fitting accounts for the final
	// bit-depth reduction. 0 quantizes only at serialization (default).
	QuantAwareEvery int

	// EntropyCoding, when true, zstd-compresses the packed code payload.
	// The latent header stays uncompressed and records the flag.
	EntropyCoding bool

	// DivergencePatience is the number of consecutive loss increases after
	// which the loop transitions to Diverged.
	DivergencePatience int

	// Workers bounds goroutines used by the render and gradient passes
	// within one encode. <= 0 means GOMAXPROCS.
	Workers int

	// DumpRender writes the final render as a PNG into the scoped temp
	// workspace before cleanup. Debug aid; off by default.
	DumpRender bool
}

// DefaultConfig returns the configuration used when the caller supplies
// nothing: 5000 Gaussians, 1000 steps, 12-bit uniform quantization,
// gradient seeding.
func DefaultConfig() EncodeConfig {
	return EncodeConfig{
		NumGaussians:       5000,
		MaxSteps:           1000,
		Bits:               UniformBits(12),
		InitMode:           InitGradient,
		DivergencePatience: 25,
	}
}

// validate checks every field once at the encoder boundary.
func (c EncodeConfig) validate() error {
	if c.NumGaussians <= 0 {
		return errorf(KindConfigError, "num_gaussians must be positive, got %d", c.NumGaussians)
	}
	if c.MaxSteps <= 0 {
		return errorf(KindConfigError, "max_steps must be positive, got %d", c.MaxSteps)
	}
	for _, f := range []struct {
		name string
		bits int
	}{
		{"pos_bits", c.Bits.Position},
		{"scale_bits", c.Bits.Scale},
		{"rot_bits", c.Bits.Rotation},
		{"feat_bits", c.Bits.Feature},
	} {
		if f.bits < 1 || f.bits > 16 {
			return errorf(KindConfigError, "%s must be in [1, 16], got %d", f.name, f.bits)
		}
	}
	if c.InitMode != InitGradient && c.InitMode != InitRandom && c.InitMode != InitGrid {
		return errorf(KindConfigError, "unknown init mode %d", int(c.InitMode))
	}
	if c.DivergencePatience <= 0 {
		return errorf(KindConfigError, "divergence_patience must be positive, got %d", c.DivergencePatience)
	}
	if c.MaxDimension < 0 {
		return errorf(KindConfigError, "max_dimension must be >= 0, got %d", c.MaxDimension)
	}
	if c.TargetLoss < 0 {
		return errorf(KindConfigError, "target_loss must be >= 0, got %g", c.TargetLoss)
	}
	if c.QuantAwareEvery < 0 {
		return errorf(KindConfigError, "quant_aware_every must be >= 0, got %d", c.QuantAwareEvery)
	}
	return nil
}

// configWire mirrors the JSON option names recognized on the external
// interface. quantize_bits applies uniformly unless a per-category width
// overrides it.
type configWire struct {
	NumGaussians       *int     `json:"num_gaussians"`
	MaxSteps           *int     `json:"max_steps"`
	QuantizeBits       *int     `json:"quantize_bits"`
	PosBits            *int     `json:"pos_bits"`
	ScaleBits          *int     `json:"scale_bits"`
	RotBits            *int     `json:"rot_bits"`
	FeatBits           *int     `json:"feat_bits"`
	InitMode           *string  `json:"init_mode"`
	Seed               *int64   `json:"seed"`
	MaxDimension       *int     `json:"max_dimension"`
	TargetLoss         *float64 `json:"target_loss"`
	QuantAwareEvery    *int     `json:"quant_aware_every"`
	EntropyCoding      *bool    `json:"entropy_coding"`
	DivergencePatience *int     `json:"divergence_patience"`
	Workers            *int     `json:"workers"`
}

// UnmarshalJSON decodes the external config object, starting from
// DefaultConfig and applying only recognized options. Validation happens
// later, at the EncodeFrame boundary.
func (c *EncodeConfig) UnmarshalJSON(data []byte) error {
	var w configWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := DefaultConfig()
	if w.NumGaussians != nil {
		out.NumGaussians = *w.NumGaussians
	}
	if w.MaxSteps != nil {
		out.MaxSteps = *w.MaxSteps
	}
	if w.QuantizeBits != nil {
		out.Bits = UniformBits(*w.QuantizeBits)
	}
	if w.PosBits != nil {
		out.Bits.Position = *w.PosBits
	}
	if w.ScaleBits != nil {
		out.Bits.Scale = *w.ScaleBits
	}
	if w.RotBits != nil {
		out.Bits.Rotation = *w.RotBits
	}
	if w.FeatBits != nil {
		out.Bits.Feature = *w.FeatBits
	}
	if w.InitMode != nil {
		mode, err := ParseInitMode(*w.InitMode)
		if err != nil {
			return err
		}
		out.InitMode = mode
	}
	if w.Seed != nil {
		out.Seed = *w.Seed
	}
	if w.MaxDimension != nil {
		out.MaxDimension = *w.MaxDimension
	}
	if w.TargetLoss != nil {
		out.TargetLoss = *w.TargetLoss
	}
	if w.QuantAwareEvery != nil {
		out.QuantAwareEvery = *w.QuantAwareEvery
	}
	if w.EntropyCoding != nil {
		out.EntropyCoding = *w.EntropyCoding
	}
	if w.DivergencePatience != nil {
		out.DivergencePatience = *w.DivergencePatience
	}
	if w.Workers != nil {
		out.Workers = *w.Workers
	}

	*c = out
	return nil
}
