package stats

import (
	"runtime"

	"go-image-worsen/internal/pixel"

	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the pixel count below which the histogram is built
// by a single sequential scan
const parallelThreshold = 100000

// Calculator produces statistics snapshots without mutating the buffer
type Calculator interface {
	Compute(buf *pixel.Buffer) ImageStatistics
}

type calculator struct {
	workers int
}

// NewCalculator creates a statistics calculator that scans large buffers in
// parallel row strips. workers <= 0 uses runtime.NumCPU().
func NewCalculator(workers int) Calculator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &calculator{workers: workers}
}

// Compute builds the histogram of buf and summarizes it
func (c *calculator) Compute(buf *pixel.Buffer) ImageStatistics {
	return Summarize(c.histogram(buf))
}

func (c *calculator) histogram(buf *pixel.Buffer) Histogram {
	var h Histogram
	if buf == nil || buf.Empty() {
		return h
	}

	numWorkers := c.workers
	if numWorkers > buf.Height {
		numWorkers = buf.Height
	}
	if numWorkers <= 1 || buf.Width*buf.Height < parallelThreshold {
		h.Add(buf.Pix)
		return h
	}

	rowsPerWorker := (buf.Height + numWorkers - 1) / numWorkers // ceil division
	partials := make([]Histogram, numWorkers)

	var g errgroup.Group
	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := min(startY+rowsPerWorker, buf.Height)
		if startY >= endY {
			break
		}
		g.Go(func() error {
			partials[i].Add(buf.Rows(startY, endY))
			return nil
		})
	}
	_ = g.Wait()

	for i := range partials {
		h.Merge(&partials[i])
	}
	return h
}

// Compute is a convenience for a single sequential scan
func Compute(buf *pixel.Buffer) ImageStatistics {
	return NewCalculator(1).Compute(buf)
}
