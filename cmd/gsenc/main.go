// Command gsenc encodes image frames as quantized Gaussian-splat latents.
//
// It is designed to sit behind an external batch driver: frame lists come
// in as JSON (a file via --input, or plain paths via --frames, or stdin),
// per-frame results go out as JSON (stdout, or a file via --output), and
// the exit code is 0 only when every frame succeeded. Progress lines go to
// stderr so stdout stays machine-readable.
//
// Input shape:
//
//	{"frames": [{"path": "a.png", "index": 0}, ...],
//	 "config": {"num_gaussians": 5000, "max_steps": 1000,
//	            "quantize_bits": 12, "init_mode": "gradient"}}
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/urfave/cli/v2"

	"github.com/gsplat/imagegs"
)

func main() {
	app := &cli.App{
		Name:  "gsenc",
		Usage: "encode image frames as quantized Gaussian-splat latents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Usage: "path to input JSON file with frame list and config",
			},
			&cli.StringSliceFlag{
				Name:  "frames",
				Usage: "frame file paths (indexed by position)",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "path to output JSON file (defaults to stdout)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "max concurrent frame encodes",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging to stderr",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	imagegs.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	input, err := readInput(c.String("input"), c.StringSlice("frames"), os.Stdin)
	if err != nil {
		return cli.Exit(fmt.Sprintf("gsenc: %v", err), 1)
	}

	total := len(input.Frames)
	var done atomic.Int64
	progress := func(imagegs.EncodeResult) {
		fmt.Fprintf(os.Stderr, "Processed frame %d/%d\n", done.Add(1), total)
	}

	batch := imagegs.EncodeBatch(input.Frames, input.Config, c.Int("workers"), progress)

	if err := writeOutput(c.String("output"), batch); err != nil {
		return cli.Exit(fmt.Sprintf("gsenc: %v", err), 1)
	}

	if failed := batch.Failed(); failed > 0 {
		return cli.Exit(fmt.Sprintf("gsenc: %d of %d frames failed", failed, total), 1)
	}
	return nil
}

// readInput resolves the frame list and config from --input, --frames, or
// stdin, in that order of precedence.
func readInput(inputPath string, framePaths []string, stdin io.Reader) (imagegs.BatchInput, error) {
	input := imagegs.BatchInput{Config: imagegs.DefaultConfig()}

	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return input, fmt.Errorf("read input file: %w", err)
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return input, fmt.Errorf("parse input JSON: %w", err)
		}
		return input, nil
	}

	if len(framePaths) > 0 {
		for i, p := range framePaths {
			input.Frames = append(input.Frames, imagegs.FrameRef{Path: p, Index: i})
		}
		return input, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return input, fmt.Errorf("read stdin: %w", err)
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("parse input JSON: %w", err)
	}
	return input, nil
}

func writeOutput(path string, batch imagegs.BatchResult) error {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}
