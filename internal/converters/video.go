package converters

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// FFmpegConverter extracts video frames and renders audio waveforms with ffmpeg.
type FFmpegConverter struct {
	runner *Runner
	binary string

	waveformSize  string
	waveformColor string
}

func NewFFmpegConverter(runner *Runner) *FFmpegConverter {
	return &FFmpegConverter{
		runner:        runner,
		binary:        "ffmpeg",
		waveformSize:  "600x600",
		waveformColor: "#1f43f4",
	}
}

func (f *FFmpegConverter) Name() string { return "ffmpeg" }

// Available reports whether the ffmpeg binary is on PATH.
func (f *FFmpegConverter) Available() error {
	if _, err := exec.LookPath(f.binary); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return nil
}

// ExtractFrame writes the frame at offset to output as PNG.
func (f *FFmpegConverter) ExtractFrame(ctx context.Context, input, output string, offset time.Duration) error {
	// -ss before -i: fast input seek
	// -frames:v 1: a single frame
	// -y: overwrite output
	args := []string{
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', -1, 64),
		"-i", input,
		"-frames:v", "1",
		"-y",
		output,
	}

	out, err := f.runner.Run(ctx, f.binary, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(out))
	}
	return nil
}
