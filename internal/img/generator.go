package img

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/nft-enricher/internal/converters"
)

// ErrUnrecognized is returned by Extractors.Get for content types no
// extractor handles.
var ErrUnrecognized = errors.New("unrecognized file type")

// Extractor produces a PNG still from the raw bytes of an asset. Scratch
// files must only be written inside arena.
type Extractor interface {
	Extract(ctx context.Context, arena *Arena, src []byte) ([]byte, error)

	// Name returns the extractor name for logging
	Name() string
}

// Extractors routes a content type to the extractor for its Kind.
type Extractors struct {
	image Extractor
	video Extractor
	audio Extractor
}

// NewExtractors builds the image, video and audio extractors. Stills are
// cover fitted to width x height; audio waveforms keep the renderer's size.
func NewExtractors(width, height int, frames converters.FrameExtractor, waveform converters.WaveformRenderer) *Extractors {
	image := &ImageExtractor{Width: width, Height: height}
	return &Extractors{
		image: image,
		video: NewVideoExtractor(frames, image),
		audio: &AudioExtractor{renderer: waveform},
	}
}

// Get returns the extractor for contentType and the Kind it was classified as.
func (e *Extractors) Get(contentType string) (Extractor, Kind, error) {
	kind := Classify(contentType)
	switch kind {
	case KindImage:
		return e.image, kind, nil
	case KindVideo:
		return e.video, kind, nil
	case KindAudio:
		return e.audio, kind, nil
	default:
		return nil, kind, fmt.Errorf("%w: %q", ErrUnrecognized, contentType)
	}
}

// ImageExtractor cover fits an image to a fixed size.
type ImageExtractor struct {
	Width  int
	Height int
}

func (g *ImageExtractor) Extract(_ context.Context, _ *Arena, src []byte) ([]byte, error) {
	return Cover(src, g.Width, g.Height)
}

func (g *ImageExtractor) Name() string {
	return "image"
}
