package imgio

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Load reads and decodes the image at path into a Plane, auto-detecting the
// format from content. Supported formats: PNG, JPEG, GIF, BMP, TIFF, WebP.
//
// If maxDim > 0 and either dimension exceeds it, the image is downscaled
// with Catmull-Rom resampling so that the longer side equals maxDim,
// preserving aspect ratio.
func Load(path string, maxDim int) (*Plane, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("imgio: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, maxDim)
}

// Decode decodes an image from r into a Plane. See Load.
func Decode(r io.Reader, maxDim int) (*Plane, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imgio: decode: %w", err)
	}

	if maxDim > 0 {
		img = downscale(img, maxDim)
	}

	return FromImage(img)
}

// downscale resizes img so its longer side equals maxDim, if it exceeds it.
func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(h*maxDim/w, 1)
	} else {
		nh = maxDim
		nw = max(w*maxDim/h, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FromImage converts a decoded standard-library image into a Plane.
// Grayscale images map to C=1, everything else to C=3 (alpha is dropped:
// splat features model opaque color contributions).
func FromImage(img image.Image) (*Plane, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Grayscale fast path.
	if gray, ok := img.(*image.Gray); ok {
		p, err := NewPlane(w, h, 1)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			src := y * gray.Stride
			dst := y * w
			for x := 0; x < w; x++ {
				p.Pix[dst+x] = float64(gray.Pix[src+x]) / 255
			}
		}
		return p, nil
	}

	p, err := NewPlane(w, h, 3)
	if err != nil {
		return nil, err
	}

	// RGBA fast path: avoid the color.Color boxing of the generic path.
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			src := y * rgba.Stride
			dst := y * w * 3
			for x := 0; x < w; x++ {
				p.Pix[dst+x*3+0] = float64(rgba.Pix[src+x*4+0]) / 255
				p.Pix[dst+x*3+1] = float64(rgba.Pix[src+x*4+1]) / 255
				p.Pix[dst+x*3+2] = float64(rgba.Pix[src+x*4+2]) / 255
			}
		}
		return p, nil
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := (y*w + x) * 3
			// RGBA() returns 16-bit premultiplied values.
			p.Pix[off+0] = float64(r) / 65535
			p.Pix[off+1] = float64(g) / 65535
			p.Pix[off+2] = float64(b) / 65535
		}
	}
	return p, nil
}
