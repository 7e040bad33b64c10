package imagegs

import (
	"golang.org/x/sync/errgroup"
)

// FrameRef identifies one frame of a batch on the external interface.
type FrameRef struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
}

// BatchInput is the JSON request shape consumed by batch drivers:
// a frame list plus one shared configuration.
type BatchInput struct {
	Frames []FrameRef   `json:"frames"`
	Config EncodeConfig `json:"config"`
}

// BatchResult wraps all per-frame results of one batch run.
type BatchResult struct {
	Status      string         `json:"status"`
	TotalFrames int            `json:"total_frames"`
	Results     []EncodeResult `json:"results"`
}

// Failed returns the number of frames that ended in an error result.
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == StatusError {
			n++
		}
	}
	return n
}

// EncodeBatch encodes every frame with at most workers concurrent encodes
// (workers <= 0 means one at a time). Frames are independent: each encode
// owns its parameter store and temp workspace, and a frame's failure never
// stops the others. Results are returned in input order regardless of
// completion order.
//
// onResult, if non-nil, is invoked as each frame completes; it may be
// called concurrently from multiple encodes.
func EncodeBatch(frames []FrameRef, cfg EncodeConfig, workers int, onResult func(EncodeResult)) BatchResult {
	if workers <= 0 {
		workers = 1
	}

	results := make([]EncodeResult, len(frames))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, f := range frames {
		i, f := i, f
		g.Go(func() error {
			results[i] = EncodeFrame(f.Path, f.Index, cfg)
			if onResult != nil {
				onResult(results[i])
			}
			return nil
		})
	}
	// Encodes never surface errors through the group; failures live in the
	// per-frame results.
	_ = g.Wait()

	return BatchResult{
		Status:      "completed",
		TotalFrames: len(frames),
		Results:     results,
	}
}
