package img

import (
	"context"
	"fmt"
	"os"

	"github.com/tendant/nft-enricher/internal/converters"
)

// AudioExtractor renders a waveform picture of the track.
type AudioExtractor struct {
	renderer converters.WaveformRenderer
}

func (g *AudioExtractor) Extract(ctx context.Context, arena *Arena, src []byte) ([]byte, error) {
	input, err := arena.WriteFile("source", src)
	if err != nil {
		return nil, err
	}
	out := arena.Path("waveform.png")
	if err := g.renderer.RenderWaveform(ctx, input, out); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}
	return data, nil
}

func (g *AudioExtractor) Name() string {
	return "audio"
}
