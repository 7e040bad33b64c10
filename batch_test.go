package imagegs

import (
	"encoding/json"
	"image/color"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() EncodeConfig {
	cfg := DefaultConfig()
	cfg.NumGaussians = 20
	cfg.MaxSteps = 5
	cfg.InitMode = InitGrid
	return cfg
}

func TestEncodeBatchMixedSuccessAndFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeSolidPNG(t, dir, "good.png", 32, 32, color.RGBA{R: 50, G: 100, B: 150, A: 255})
	missing := filepath.Join(dir, "missing.png")

	frames := []FrameRef{
		{Path: missing, Index: 0},
		{Path: good, Index: 1},
	}

	batch := EncodeBatch(frames, smallConfig(), 1, nil)

	assert.Equal(t, "completed", batch.Status)
	assert.Equal(t, 2, batch.TotalFrames)
	require.Len(t, batch.Results, 2)

	assert.Equal(t, StatusError, batch.Results[0].Status)
	assert.Equal(t, 0, batch.Results[0].FrameIndex)
	assert.Equal(t, string(KindInputError), batch.Results[0].ErrorType)

	assert.Equal(t, StatusSuccess, batch.Results[1].Status)
	assert.Equal(t, 1, batch.Results[1].FrameIndex)

	assert.Equal(t, 1, batch.Failed())
}

func TestEncodeBatchResultsInInputOrder(t *testing.T) {
	dir := t.TempDir()
	frames := make([]FrameRef, 6)
	for i := range frames {
		path := writeSolidPNG(t, dir, filepath.Base(t.Name())+string(rune('a'+i))+".png",
			24, 24, color.RGBA{R: uint8(40 * i), G: 128, B: 128, A: 255})
		frames[i] = FrameRef{Path: path, Index: i}
	}

	var completed atomic.Int64
	batch := EncodeBatch(frames, smallConfig(), 3, func(EncodeResult) {
		completed.Add(1)
	})

	assert.Equal(t, int64(6), completed.Load())
	require.Len(t, batch.Results, 6)
	for i, r := range batch.Results {
		assert.Equal(t, i, r.FrameIndex, "result %d out of order", i)
		assert.Equal(t, StatusSuccess, r.Status)
	}
	assert.Zero(t, batch.Failed())
}

func TestEncodeBatchEmptyFrameList(t *testing.T) {
	// Zero frames is a valid batch: it completes with zero results instead
	// of erroring, so drivers can pass through empty work lists.
	batch := EncodeBatch(nil, smallConfig(), 2, nil)
	assert.Equal(t, "completed", batch.Status)
	assert.Zero(t, batch.TotalFrames)
	assert.Zero(t, batch.Failed())

	data, err := json.Marshal(batch)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"results":[]`)
}

func TestBatchInputJSON(t *testing.T) {
	data := []byte(`{
		"frames": [{"path": "a.png", "index": 0}, {"path": "b.png", "index": 1}],
		"config": {"num_gaussians": 100, "max_steps": 50, "quantize_bits": 8, "init_mode": "grid"}
	}`)

	var input BatchInput
	require.NoError(t, json.Unmarshal(data, &input))

	require.Len(t, input.Frames, 2)
	assert.Equal(t, "a.png", input.Frames[0].Path)
	assert.Equal(t, 1, input.Frames[1].Index)
	assert.Equal(t, 100, input.Config.NumGaussians)
	assert.Equal(t, InitGrid, input.Config.InitMode)
}

func TestBatchResultJSONShape(t *testing.T) {
	dir := t.TempDir()
	good := writeSolidPNG(t, dir, "good.png", 16, 16, color.RGBA{A: 255})
	frames := []FrameRef{
		{Path: good, Index: 0},
		{Path: filepath.Join(dir, "gone.png"), Index: 1},
	}

	batch := EncodeBatch(frames, smallConfig(), 2, nil)
	data, err := json.Marshal(batch)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "completed", decoded["status"])
	assert.EqualValues(t, 2, decoded["total_frames"])

	results := decoded["results"].([]any)
	require.Len(t, results, 2)

	ok := results[0].(map[string]any)
	assert.Equal(t, "success", ok["status"])
	assert.Contains(t, ok, "gaussian_latent")
	assert.Contains(t, ok, "metadata")

	bad := results[1].(map[string]any)
	assert.Equal(t, "error", bad["status"])
	assert.Equal(t, "InputError", bad["error_type"])
	assert.NotContains(t, bad, "gaussian_latent")
}
