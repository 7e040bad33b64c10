package imagegs

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gsplat/imagegs/internal/imgio"
)

// solidPlane builds a w x h plane filled with the given channel values.
func solidPlane(t *testing.T, w, h int, values ...float64) *imgio.Plane {
	t.Helper()
	p, err := imgio.NewPlane(w, h, len(values))
	require.NoError(t, err)
	for i := 0; i < w*h; i++ {
		copy(p.Pix[i*p.C:(i+1)*p.C], values)
	}
	return p
}

// checkerPlane builds a plane with a high-contrast checkerboard, useful for
// exercising gradient-driven code paths.
func checkerPlane(t *testing.T, w, h, cell int) *imgio.Plane {
	t.Helper()
	p, err := imgio.NewPlane(w, h, 3)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0.0
			if (x/cell+y/cell)%2 == 0 {
				v = 1.0
			}
			off := p.Offset(x, y)
			p.Pix[off] = v
			p.Pix[off+1] = v
			p.Pix[off+2] = v
		}
	}
	return p
}

// edgePlane builds a plane whose left half is dark and right half bright,
// leaving a single vertical edge down the middle.
func edgePlane(t *testing.T, w, h int) *imgio.Plane {
	t.Helper()
	p, err := imgio.NewPlane(w, h, 3)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0.05
			if x >= w/2 {
				v = 0.95
			}
			off := p.Offset(x, y)
			p.Pix[off] = v
			p.Pix[off+1] = v
			p.Pix[off+2] = v
		}
	}
	return p
}

// writeSolidPNG writes a solid-color PNG into dir and returns its path.
func writeSolidPNG(t *testing.T, dir, name string, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return writePNG(t, dir, name, img)
}

// writeGrayPNG writes a solid grayscale PNG into dir and returns its path.
func writeGrayPNG(t *testing.T, dir, name string, w, h int, v uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return writePNG(t, dir, name, img)
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

// writeFile is a tiny wrapper kept for test readability.
func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
