package imgio

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

// ToImage converts the plane back into a standard-library image, clamping
// samples to [0, 1]. C=1 planes become *image.Gray, everything else *image.NRGBA.
func (p *Plane) ToImage() image.Image {
	rect := image.Rect(0, 0, p.W, p.H)

	if p.C == 1 {
		gray := image.NewGray(rect)
		for i, v := range p.Pix {
			gray.Pix[i] = clamp8(v)
		}
		return gray
	}

	nrgba := image.NewNRGBA(rect)
	for i := 0; i < p.W*p.H; i++ {
		off := i * p.C
		dst := i * 4
		nrgba.Pix[dst+0] = clamp8(p.Pix[off])
		if p.C >= 3 {
			nrgba.Pix[dst+1] = clamp8(p.Pix[off+1])
			nrgba.Pix[dst+2] = clamp8(p.Pix[off+2])
		} else {
			nrgba.Pix[dst+1] = nrgba.Pix[dst]
			nrgba.Pix[dst+2] = nrgba.Pix[dst]
		}
		nrgba.Pix[dst+3] = 255
	}
	return nrgba
}

// SavePNG writes the plane as a PNG file. Used for debug render dumps.
func (p *Plane) SavePNG(path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("imgio: create file: %w", err)
	}

	if err := png.Encode(f, p.ToImage()); err != nil {
		_ = f.Close()
		return fmt.Errorf("imgio: encode PNG: %w", err)
	}

	return f.Close()
}

func clamp8(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
}
