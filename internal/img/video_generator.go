package img

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tendant/nft-enricher/internal/converters"
)

// DefaultFrameOffsets are the positions sampled from a video.
var DefaultFrameOffsets = []time.Duration{0, 10 * time.Second, 30 * time.Second}

// VideoExtractor samples a few frames and keeps the largest encoded one, on
// the basis that a bigger file holds more detail than a black or blank frame.
type VideoExtractor struct {
	frames  converters.FrameExtractor
	image   *ImageExtractor
	Offsets []time.Duration
}

func NewVideoExtractor(frames converters.FrameExtractor, image *ImageExtractor) *VideoExtractor {
	return &VideoExtractor{
		frames:  frames,
		image:   image,
		Offsets: DefaultFrameOffsets,
	}
}

func (g *VideoExtractor) Extract(ctx context.Context, arena *Arena, src []byte) ([]byte, error) {
	input, err := arena.WriteFile("source", src)
	if err != nil {
		return nil, err
	}

	var (
		paths []string
		errs  []error
	)
	for i, offset := range g.Offsets {
		out := arena.Path(fmt.Sprintf("screenshot.%d.png", i+1))
		// Short videos fail on the later offsets; the earlier frames still count.
		if err := g.frames.ExtractFrame(ctx, input, out, offset); err != nil {
			errs = append(errs, fmt.Errorf("frame at %s: %w", offset, err))
			continue
		}
		paths = append(paths, out)
	}

	frame, err := LargestFile(paths)
	if err != nil {
		return nil, errors.Join(append(errs, err)...)
	}

	data, err := os.ReadFile(frame)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return g.image.Extract(ctx, arena, data)
}

func (g *VideoExtractor) Name() string {
	return "video"
}

// LargestFile returns the path of the biggest existing file in paths. Ties go
// to the earliest entry.
func LargestFile(paths []string) (string, error) {
	var (
		best     string
		bestSize int64 = -1
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = p, info.Size()
		}
	}
	if best == "" {
		return "", errors.New("no frame could be extracted")
	}
	return best, nil
}
