package transform

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go-image-worsen/internal/logger"
	"go-image-worsen/internal/pixel"
	"go-image-worsen/internal/stats"

	"github.com/sirupsen/logrus"
)

// Reporter receives the statistics produced by a "stats" operation
type Reporter func(stats.ImageStatistics)

// Pipeline applies operations to pixel buffers in order, one whole-buffer
// pass per operation.
//
// Each pass splits the buffer into row strips. Every strip draws from its own
// generator, seeded from the pipeline's source before the strips are
// dispatched, so strips never share random state and a fixed seed with a
// fixed worker count reproduces the same output.
type Pipeline struct {
	mu         sync.Mutex
	rng        *rand.Rand
	workers    int
	pool       *WorkerPool
	calculator stats.Calculator
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSeed seeds the pipeline's random source
func WithSeed(seed uint64) Option {
	return func(p *Pipeline) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand injects a random source
func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) {
		p.rng = rng
	}
}

// WithWorkers sets how many strips run concurrently. 1 runs inline,
// 0 or less uses one worker per CPU.
func WithWorkers(workers int) Option {
	return func(p *Pipeline) {
		p.workers = workers
	}
}

// WithCalculator replaces the statistics calculator used by "stats"
func WithCalculator(c stats.Calculator) Option {
	return func(p *Pipeline) {
		p.calculator = c
	}
}

// NewPipeline creates a pipeline. Without WithSeed or WithRand the source is
// seeded from the clock.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{workers: 1}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		seed := uint64(time.Now().UnixNano())
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	if p.workers != 1 {
		p.pool = NewWorkerPool(p.workers)
		p.workers = p.pool.Workers()
		p.pool.Start()
	}
	if p.calculator == nil {
		p.calculator = stats.NewCalculator(p.workers)
	}
	return p
}

// Run validates ops and then applies them to buf in order. Statistics for
// each "stats" operation are computed from the buffer state at that point
// and passed to report, which may be nil.
//
// An unknown operation is rejected before the buffer is touched.
func (p *Pipeline) Run(ctx context.Context, buf *pixel.Buffer, ops []Operation, report Reporter) error {
	if err := Validate(ops); err != nil {
		return err
	}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline interrupted before operation %d (%s): %w", i, op, err)
		}

		start := time.Now()
		if op == OpStats {
			s := p.calculator.Compute(buf)
			if report != nil {
				report(s)
			}
		} else {
			p.apply(buf, op)
		}

		logger.WithFields(logrus.Fields{
			"operation": op,
			"index":     i,
			"width":     buf.Width,
			"height":    buf.Height,
			"duration":  time.Since(start),
		}).Debug("Operation applied")
	}
	return nil
}

// Apply runs a single operation over the whole buffer
func (p *Pipeline) Apply(buf *pixel.Buffer, op Operation) error {
	return p.Run(context.Background(), buf, []Operation{op}, nil)
}

// Close stops the worker pool
func (p *Pipeline) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Pipeline) apply(buf *pixel.Buffer, op Operation) {
	fn, ok := pixelFuncs[op]
	if !ok || buf.Empty() {
		return
	}

	numStrips := min(p.workers, buf.Height)
	rowsPerStrip := (buf.Height + numStrips - 1) / numStrips // ceil division
	rngs := p.stripSources(numStrips)

	if p.pool == nil || numStrips == 1 {
		applyRows(buf.Pix, fn, rngs[0])
		return
	}

	var wg sync.WaitGroup
	for i := 0; i < numStrips; i++ {
		startY := i * rowsPerStrip
		endY := min(startY+rowsPerStrip, buf.Height)
		if startY >= endY {
			break
		}
		rows, rng := buf.Rows(startY, endY), rngs[i]
		wg.Add(1)
		if !p.pool.Submit(func() {
			defer wg.Done()
			applyRows(rows, fn, rng)
		}) {
			// pool already closed; finish the strip here
			applyRows(rows, fn, rng)
			wg.Done()
		}
	}
	wg.Wait()
}

// stripSources derives one independent generator per strip
func (p *Pipeline) stripSources(n int) []*rand.Rand {
	p.mu.Lock()
	defer p.mu.Unlock()

	rngs := make([]*rand.Rand, n)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewPCG(p.rng.Uint64(), p.rng.Uint64()))
	}
	return rngs
}

func applyRows(samples []uint8, fn PixelFunc, rng *rand.Rand) {
	for i := 0; i+pixel.Channels <= len(samples); i += pixel.Channels {
		fn(samples[i:i+pixel.Channels:i+pixel.Channels], rng)
	}
}
