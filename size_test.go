package imagegs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateSizeClosedForm(t *testing.T) {
	tests := []struct {
		name string
		n, c int
		bits BitAllocation
		want int
	}{
		// 100 records, RGB, 8 bits everywhere:
		// 100 * (2*8 + 2*8 + 8 + 3*8) = 6400 bits = 800 bytes.
		{"uniform 8-bit RGB", 100, 3, UniformBits(8), 800 + HeaderSize},
		// 5000 records, RGB, 12 bits: 5000 * 96 bits = 60000 bytes.
		{"default shape", 5000, 3, UniformBits(12), 60000 + HeaderSize},
		// Mixed widths, grayscale: 10 * (2*12 + 2*10 + 9 + 1*6) = 590 bits.
		{"mixed widths gray", 10, 1,
			BitAllocation{Position: 12, Scale: 10, Rotation: 9, Feature: 6},
			(590+7)/8 + HeaderSize},
		// 1 record, 1 bit everywhere: 6 bits rounds up to 1 byte.
		{"bit rounding", 1, 1, UniformBits(1), 1 + HeaderSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateSize(tt.n, tt.c, tt.bits))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, Ratio(1000, 500))
	assert.Equal(t, 0.5, Ratio(500, 1000))
	assert.Equal(t, 0.0, Ratio(1000, 0))
}
