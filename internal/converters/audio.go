package converters

import (
	"context"
	"fmt"
)

// RenderWaveform draws the whole track as a single fixed size waveform image.
func (f *FFmpegConverter) RenderWaveform(ctx context.Context, input, output string) error {
	filter := fmt.Sprintf("showwavespic=s=%s:colors=%s", f.waveformSize, f.waveformColor)
	args := []string{
		"-i", input,
		"-filter_complex", filter,
		"-frames:v", "1",
		"-y",
		output,
	}

	out, err := f.runner.Run(ctx, f.binary, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg waveform failed: %w\nOutput: %s", err, string(out))
	}
	return nil
}
