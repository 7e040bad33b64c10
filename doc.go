// Package imagegs encodes raster images as compact sets of parameterized
// anisotropic 2D Gaussians ("splats").
//
// # Overview
//
// imagegs fits N Gaussian records (position, scale, rotation, color feature)
// to a source image by iterative gradient descent against a differentiable
// software renderer, quantizes the fitted parameters to fixed bit widths,
// and packs them into a self-describing latent blob smaller than the source
// pixel data. Each frame is encoded independently.
//
// # Quick Start
//
//	import "github.com/gsplat/imagegs"
//
//	cfg := imagegs.DefaultConfig()
//	cfg.NumGaussians = 2000
//	cfg.MaxSteps = 500
//
//	res := imagegs.EncodeFrame("frame.png", 0, cfg)
//	if res.Status == imagegs.StatusSuccess {
//	    fmt.Printf("%d -> %d bytes (%.2fx), PSNR %.2f dB\n",
//	        res.OriginalSize, res.CompressedSize, res.CompressionRatio, *res.Metadata.PSNRdB)
//	}
//
// # Pipeline
//
// EncodeFrame orchestrates the stages:
//   - Initializer: seeds the Gaussian set (gradient-importance, random, or grid)
//   - Renderer: additive forward splatting, parallel over row bands
//   - Optimizer loop: Adam-style steps until MaxSteps, with divergence detection
//   - Quantizer: per-field uniform quantization to configured bit widths
//   - Latent serializer: 48-byte header + bit-packed codes (optional zstd payload)
//
// Rendering uses additive accumulation, which is independent of record order,
// so a fitted set reproduces the same raster bit-for-bit on every run with
// the same seed.
//
// # Batch Processing
//
// EncodeBatch runs many frames with bounded concurrency; one frame's failure
// never aborts the rest. The cmd/gsenc command wraps it with JSON
// stdin/stdout framing for external drivers.
//
// # Logging
//
// The package is silent by default. Call SetLogger to enable structured
// logging via log/slog.
package imagegs

// Version information for the codec. FormatVersion is stored in every
// latent header; bumping it invalidates previously written blobs.
const (
	// AlgorithmName identifies the codec in result metadata.
	AlgorithmName = "image-gs"

	// Version is the current version of the library.
	Version = "1.0.0"

	// FormatVersion is the latent blob format version.
	FormatVersion = 1
)
