package transform

import (
	"context"
	"math/rand/v2"
	"testing"

	"go-image-worsen/internal/pixel"
	"go-image-worsen/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBuffer(t *testing.T, width, height int, seed uint64) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.NewBuffer(width, height)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(seed, seed))
	for i := range buf.Pix {
		buf.Pix[i] = uint8(rng.IntN(256))
	}
	return buf
}

func solidBuffer(t *testing.T, width, height int, r, g, b uint8) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.NewBuffer(width, height)
	require.NoError(t, err)
	buf.Fill(r, g, b)
	return buf
}

func TestPipeline_NoneIsIdentity(t *testing.T) {
	p := NewPipeline(WithSeed(1))
	defer p.Close()

	buf := randomBuffer(t, 31, 17, 9)
	before := buf.Clone()

	require.NoError(t, p.Run(context.Background(), buf, []Operation{OpNone, OpNone}, nil))
	assert.Equal(t, before.Pix, buf.Pix)
}

func TestPipeline_ClampInvariant(t *testing.T) {
	for _, workers := range []int{1, 4} {
		p := NewPipeline(WithSeed(2), WithWorkers(workers))

		buf := solidBuffer(t, 40, 40, 255, 0, 250)
		require.NoError(t, p.Run(context.Background(), buf,
			[]Operation{OpRandomNoise, OpRandomBrightness, OpRandomNoise}, nil))

		for i := 0; i < len(buf.Pix); i += 3 {
			// three divisions by at most 1.3: 255 -> 196 -> 151 -> 116
			require.GreaterOrEqual(t, buf.Pix[i], uint8(116))
			require.Equal(t, uint8(0), buf.Pix[i+1], "zero stays zero")
			require.GreaterOrEqual(t, buf.Pix[i+2], uint8(114))
		}
		p.Close()
	}
}

func TestPipeline_SaturatedInputClampsAt255(t *testing.T) {
	p := NewPipeline(WithSeed(11))
	defer p.Close()

	buf := solidBuffer(t, 50, 50, 255, 255, 255)
	require.NoError(t, p.Apply(buf, OpRandomNoise))

	sawClamp, sawDarker := false, false
	for _, v := range buf.Pix {
		if v == 255 {
			sawClamp = true
		}
		if v < 255 {
			sawDarker = true
			assert.GreaterOrEqual(t, v, uint8(196), "255/1.3 rounds to 196")
		}
	}
	assert.True(t, sawClamp, "multipliers below 1 push 255 above range and must clamp")
	assert.True(t, sawDarker)
}

func TestPipeline_BrightnessPreservesChannelRatios(t *testing.T) {
	p := NewPipeline(WithSeed(3), WithWorkers(3))
	defer p.Close()

	buf := solidBuffer(t, 20, 20, 160, 80, 40)
	require.NoError(t, p.Apply(buf, OpRandomBrightness))

	distinctPixels := map[[3]uint8]bool{}
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			r, g, b := buf.At(x, y)
			assert.InDelta(t, 2*int(g), int(r), 1, "red/green ratio at (%d,%d)", x, y)
			assert.InDelta(t, 2*int(b), int(g), 1, "green/blue ratio at (%d,%d)", x, y)
			distinctPixels[[3]uint8{r, g, b}] = true
		}
	}
	assert.Greater(t, len(distinctPixels), 1, "each pixel draws its own multiplier")
}

func TestPipeline_NoiseVariesChannelsWithinPixel(t *testing.T) {
	p := NewPipeline(WithSeed(4))
	defer p.Close()

	buf := solidBuffer(t, 10, 10, 100, 100, 100)
	require.NoError(t, p.Apply(buf, OpRandomNoise))

	mixed := 0
	for i := 0; i < len(buf.Pix); i += 3 {
		if buf.Pix[i] != buf.Pix[i+1] || buf.Pix[i+1] != buf.Pix[i+2] {
			mixed++
		}
	}
	assert.Greater(t, mixed, 0, "per-sample draws should break channel equality")
}

func TestPipeline_SeedIsReproducible(t *testing.T) {
	for _, workers := range []int{1, 5} {
		a := randomBuffer(t, 64, 33, 21)
		b := a.Clone()

		p1 := NewPipeline(WithSeed(42), WithWorkers(workers))
		p2 := NewPipeline(WithSeed(42), WithWorkers(workers))

		ops := []Operation{OpRandomNoise, OpRandomBrightness}
		require.NoError(t, p1.Run(context.Background(), a, ops, nil))
		require.NoError(t, p2.Run(context.Background(), b, ops, nil))

		assert.Equal(t, a.Pix, b.Pix, "workers=%d", workers)
		p1.Close()
		p2.Close()
	}
}

func TestPipeline_DifferentSeedsDiffer(t *testing.T) {
	a := randomBuffer(t, 32, 32, 1)
	b := a.Clone()

	require.NoError(t, NewPipeline(WithSeed(1)).Apply(a, OpRandomNoise))
	require.NoError(t, NewPipeline(WithSeed(2)).Apply(b, OpRandomNoise))

	assert.NotEqual(t, a.Pix, b.Pix)
}

func TestPipeline_UnknownOperationLeavesBufferUntouched(t *testing.T) {
	p := NewPipeline(WithSeed(5))
	defer p.Close()

	buf := randomBuffer(t, 8, 8, 3)
	before := buf.Clone()

	err := p.Run(context.Background(), buf, []Operation{OpRandomNoise, "bogus-op"}, nil)

	require.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, before.Pix, buf.Pix, "validation happens before any operation runs")
}

func TestPipeline_StatsReflectsCurrentState(t *testing.T) {
	p := NewPipeline(WithSeed(6))
	defer p.Close()

	buf := solidBuffer(t, 30, 30, 128, 128, 128)
	var reports []stats.ImageStatistics

	err := p.Run(context.Background(), buf,
		[]Operation{OpStats, OpRandomNoise, OpStats},
		func(s stats.ImageStatistics) { reports = append(reports, s) })

	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 0.0, reports[0].Entropy, "solid colour before noise")
	assert.Greater(t, reports[1].Entropy, 0.0, "noise spreads the distribution")
	assert.Equal(t, reports[0].Samples, reports[1].Samples)
}

func TestPipeline_StatsDoesNotMutate(t *testing.T) {
	p := NewPipeline(WithSeed(7))
	defer p.Close()

	buf := randomBuffer(t, 12, 12, 4)
	before := buf.Clone()

	require.NoError(t, p.Run(context.Background(), buf, []Operation{OpStats}, nil))
	assert.Equal(t, before.Pix, buf.Pix)
}

func TestPipeline_HistogramConservedAfterTransforms(t *testing.T) {
	p := NewPipeline(WithSeed(8), WithWorkers(0))
	defer p.Close()

	buf := randomBuffer(t, 123, 45, 5)
	require.NoError(t, p.Run(context.Background(), buf,
		[]Operation{OpRandomBrightness, OpRandomNoise}, nil))

	s := stats.Compute(buf)
	assert.Equal(t, uint64(123*45*3), s.Samples)
}

func TestPipeline_CancelledContext(t *testing.T) {
	p := NewPipeline(WithSeed(9))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := randomBuffer(t, 4, 4, 6)
	before := buf.Clone()

	err := p.Run(ctx, buf, []Operation{OpRandomNoise}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before.Pix, buf.Pix)
}

func TestPipeline_EmptyBuffer(t *testing.T) {
	p := NewPipeline(WithSeed(10), WithWorkers(4))
	defer p.Close()

	buf, err := pixel.NewBuffer(0, 0)
	require.NoError(t, err)

	var got *stats.ImageStatistics
	require.NoError(t, p.Run(context.Background(), buf,
		[]Operation{OpRandomNoise, OpStats},
		func(s stats.ImageStatistics) { got = &s }))

	require.NotNil(t, got)
	assert.Zero(t, got.Entropy)
}

func TestPipeline_WithRand(t *testing.T) {
	a := randomBuffer(t, 16, 16, 2)
	b := a.Clone()

	require.NoError(t, NewPipeline(WithRand(rand.New(rand.NewPCG(1, 1)))).Apply(a, OpRandomNoise))
	require.NoError(t, NewPipeline(WithRand(rand.New(rand.NewPCG(1, 1)))).Apply(b, OpRandomNoise))

	assert.Equal(t, a.Pix, b.Pix)
}
