package imagegs

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gsplat/imagegs/internal/imgio"
	"github.com/gsplat/imagegs/internal/tempdir"
)

// Status of a per-frame encode.
type Status string

// Frame statuses.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Metadata describes how a frame was encoded.
type Metadata struct {
	Algorithm         string   `json:"algorithm"`
	Version           string   `json:"version"`
	NumGaussians      int      `json:"num_gaussians"`
	OptimizationSteps int      `json:"optimization_steps"`
	// QuantizationBits is the shared bit width, or 0 when the per-field
	// widths differ (see BitAllocation for those).
	QuantizationBits int           `json:"quantization_bits"`
	BitAllocation    BitAllocation `json:"bit_allocation"`
	InitMode         string        `json:"init_mode"`
	PSNRdB           *float64      `json:"psnr_db"`
	SSIM             *float64      `json:"ssim"`
	FeatDim          int           `json:"feat_dim"`
}

// EncodeResult is the per-frame outcome record. It is created once per
// frame, returned to the caller, and never mutated afterward.
type EncodeResult struct {
	FrameIndex       int     `json:"frame_index"`
	Status           Status  `json:"status"`
	OriginalSize     int64   `json:"original_size,omitempty"`
	CompressedSize   int64   `json:"compressed_size,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	// GaussianLatent is the serialized blob, hex-encoded for transport.
	GaussianLatent string    `json:"gaussian_latent,omitempty"`
	Metadata       *Metadata `json:"metadata,omitempty"`
	Error          string    `json:"error,omitempty"`
	ErrorType      string    `json:"error_type,omitempty"`
}

// failure builds an error result from any pipeline error.
func failure(index int, err error) EncodeResult {
	return EncodeResult{
		FrameIndex: index,
		Status:     StatusError,
		Error:      err.Error(),
		ErrorType:  string(kindOf(err)),
	}
}

// EncodeFrame encodes one frame: it fits cfg.NumGaussians splats to the
// image at path, quantizes and serializes them, and reports sizes and
// quality. Every failure in the pipeline is caught here and converted into
// an error result with the frame index preserved; EncodeFrame never panics
// past this boundary, so one bad frame cannot abort a batch.
func EncodeFrame(path string, index int, cfg EncodeConfig) (res EncodeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = failure(index, errorf(KindInternalError, "panic during encode: %v", r))
		}
	}()

	if err := cfg.validate(); err != nil {
		return failure(index, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return failure(index, newError(KindInputError, fmt.Errorf("stat frame file: %w", err)))
	}
	originalSize := info.Size()

	target, err := imgio.Load(path, cfg.MaxDimension)
	if err != nil {
		return failure(index, newError(KindInputError, err))
	}

	logger().Info("encode start",
		"frame", index, "path", path,
		"size", fmt.Sprintf("%dx%dx%d", target.W, target.H, target.C),
		"gaussians", cfg.NumGaussians, "steps", cfg.MaxSteps)

	workspace, cleanup, err := tempdir.New("imagegs")
	if err != nil {
		return failure(index, newError(KindResourceError, err))
	}
	defer func() {
		// A cleanup failure is logged but never masks the encode result.
		if err := cleanup(); err != nil {
			logger().Warn("workspace cleanup failed", "frame", index, "err", err)
		}
	}()

	gs := initialize(target, cfg)

	opt := newOptimizer(gs, target, cfg)
	finalRender, steps, err := opt.run()
	if err != nil {
		return failure(index, err)
	}

	if cfg.DumpRender {
		dump := filepath.Join(workspace, fmt.Sprintf("render-%06d.png", index))
		if err := finalRender.SavePNG(dump); err != nil {
			logger().Warn("render dump failed", "frame", index, "err", err)
		}
	}

	blob, err := EncodeLatent(gs, cfg.Bits, cfg.EntropyCoding)
	if err != nil {
		return failure(index, err)
	}

	compressedSize := int64(len(blob))
	ratio := Ratio(originalSize, compressedSize)
	psnrDB := psnr(finalRender, target)
	ssimVal := ssim(finalRender, target)

	logger().Info("encode finish",
		"frame", index,
		"original_size", originalSize, "compressed_size", compressedSize,
		"ratio", ratio, "psnr_db", psnrDB, "ssim", ssimVal)

	return EncodeResult{
		FrameIndex:       index,
		Status:           StatusSuccess,
		OriginalSize:     originalSize,
		CompressedSize:   compressedSize,
		CompressionRatio: ratio,
		GaussianLatent:   hex.EncodeToString(blob),
		Metadata: &Metadata{
			Algorithm:         AlgorithmName,
			Version:           Version,
			NumGaussians:      cfg.NumGaussians,
			OptimizationSteps: steps,
			QuantizationBits:  cfg.Bits.uniform(),
			BitAllocation:     cfg.Bits,
			InitMode:          cfg.InitMode.String(),
			PSNRdB:            &psnrDB,
			SSIM:              &ssimVal,
			FeatDim:           target.C,
		},
	}
}
