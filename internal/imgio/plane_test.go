package imgio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlaneValidation(t *testing.T) {
	_, err := NewPlane(0, 4, 3)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	_, err = NewPlane(4, -1, 3)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	_, err = NewPlane(4, 4, 0)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	p, err := NewPlane(4, 3, 3)
	require.NoError(t, err)
	assert.Len(t, p.Pix, 4*3*3)
}

func TestPlaneAtSet(t *testing.T) {
	p, err := NewPlane(4, 4, 3)
	require.NoError(t, err)

	p.Set(2, 1, 1, 0.75)
	assert.Equal(t, 0.75, p.At(2, 1, 1))
	assert.Equal(t, 0.75, p.Pix[(1*4+2)*3+1])

	p.Zero()
	assert.Zero(t, p.At(2, 1, 1))
}

func TestPlaneLuma(t *testing.T) {
	p, err := NewPlane(2, 1, 3)
	require.NoError(t, err)
	// Pure green pixel and a white pixel.
	p.Set(0, 0, 1, 1)
	p.Set(1, 0, 0, 1)
	p.Set(1, 0, 1, 1)
	p.Set(1, 0, 2, 1)

	l := p.Luma()
	assert.InDelta(t, 0.7152, l[0], 1e-9)
	assert.InDelta(t, 1.0, l[1], 1e-9)

	gray, err := NewPlane(2, 1, 1)
	require.NoError(t, err)
	gray.Pix[0] = 0.3
	assert.Equal(t, []float64{0.3, 0}, gray.Luma())
}

func TestPatchMean(t *testing.T) {
	p, err := NewPlane(4, 4, 1)
	require.NoError(t, err)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			p.Set(x, y, 0, float64(x))
		}
	}

	// Columns 0..3 have values 0..3: mean of the left half is 0.5.
	mean := p.PatchMean(0, 0, 2, 4)
	assert.InDelta(t, 0.5, mean[0], 1e-12)

	// Out-of-bounds coordinates clip instead of panicking.
	mean = p.PatchMean(-5, -5, 100, 100)
	assert.InDelta(t, 1.5, mean[0], 1e-12)

	// An empty patch yields zeros.
	mean = p.PatchMean(3, 3, 3, 3)
	assert.Zero(t, mean[0])
}
