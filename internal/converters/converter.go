// Package converters runs the external tools (ffmpeg) used to turn video and
// audio assets into still images.
package converters

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/Jeffail/tunny"
)

// FrameExtractor writes a single video frame taken at offset to output.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, input, output string, offset time.Duration) error
}

// WaveformRenderer renders an audio file as a waveform picture.
type WaveformRenderer interface {
	RenderWaveform(ctx context.Context, input, output string) error
}

type command struct {
	ctx  context.Context
	name string
	args []string
}

type commandResult struct {
	output []byte
	err    error
}

// Runner executes external commands on a fixed number of workers so
// concurrent jobs cannot start an unbounded number of ffmpeg processes.
type Runner struct {
	pool *tunny.Pool
}

func NewRunner(workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	pool := tunny.NewFunc(workers, func(payload interface{}) interface{} {
		c := payload.(command)
		out, err := exec.CommandContext(c.ctx, c.name, c.args...).CombinedOutput()
		return commandResult{output: out, err: err}
	})
	return &Runner{pool: pool}
}

// Run waits for a free worker, then runs name with args and returns the
// combined output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	v, err := r.pool.ProcessCtx(ctx, command{ctx: ctx, name: name, args: args})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	res := v.(commandResult)
	return res.output, res.err
}

func (r *Runner) Close() { r.pool.Close() }
