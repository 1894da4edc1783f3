package transform

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	apperrors "go-image-worsen/internal/errors"

	"github.com/arbovm/levenshtein"
	"github.com/samber/lo"
)

// Operation names one transform in a pipeline
type Operation string

const (
	// OpNone leaves the buffer untouched
	OpNone Operation = "none"
	// OpRandomNoise divides every sample by its own random multiplier
	OpRandomNoise Operation = "random-noise"
	// OpRandomBrightness divides every pixel by one random multiplier shared by its channels
	OpRandomBrightness Operation = "random-brightness"
	// OpStats reports statistics of the buffer as it stands at this point
	OpStats Operation = "stats"
)

// Multipliers are drawn uniformly from [minMultiplier, maxMultiplier)
const (
	minMultiplier = 0.7
	maxMultiplier = 1.3
)

// maxSuggestionDistance bounds how far a typo may be from a known operation
// before no suggestion is offered
const maxSuggestionDistance = 3

// ErrUnknownOperation is the cause of every unknown-operation configuration error
var ErrUnknownOperation = errors.New("unknown operation")

// PixelFunc rewrites the samples of a single pixel in place. It must depend
// only on the pixel's own samples and the supplied random source.
type PixelFunc func(px []uint8, rng *rand.Rand)

var pixelFuncs = map[Operation]PixelFunc{
	OpRandomNoise:      randomNoise,
	OpRandomBrightness: randomBrightness,
}

// Known returns every recognised operation in sorted order
func Known() []Operation {
	ops := append(lo.Keys(pixelFuncs), OpNone, OpStats)
	slices.Sort(ops)
	return ops
}

// Valid reports whether o is a recognised operation
func (o Operation) Valid() bool {
	if o == OpNone || o == OpStats {
		return true
	}
	_, ok := pixelFuncs[o]
	return ok
}

// Mutating reports whether o changes sample values
func (o Operation) Mutating() bool {
	_, ok := pixelFuncs[o]
	return ok
}

// Parse converts raw tokens into operations. Surrounding whitespace is
// trimmed and empty tokens are dropped. The first unknown token yields a
// configuration error.
func Parse(tokens []string) ([]Operation, error) {
	cleaned := lo.Compact(lo.Map(tokens, func(tok string, _ int) string {
		return strings.TrimSpace(tok)
	}))

	ops := make([]Operation, 0, len(cleaned))
	for _, tok := range cleaned {
		op := Operation(tok)
		if !op.Valid() {
			return nil, unknownOperationError(tok)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Validate checks every operation in ops
func Validate(ops []Operation) error {
	for _, op := range ops {
		if !op.Valid() {
			return unknownOperationError(string(op))
		}
	}
	return nil
}

func unknownOperationError(token string) *apperrors.AppError {
	message := fmt.Sprintf("unknown operation %q", token)
	if suggestion, ok := suggest(token); ok {
		message = fmt.Sprintf("%s (did you mean %q?)", message, suggestion)
	}
	return apperrors.NewConfigurationError(message, ErrUnknownOperation).
		WithDetails("operation=" + token)
}

// suggest finds the known operation closest to token by edit distance
func suggest(token string) (Operation, bool) {
	best, bestDistance := Operation(""), maxSuggestionDistance+1
	for _, op := range Known() {
		if d := levenshtein.Distance(token, string(op)); d < bestDistance {
			best, bestDistance = op, d
		}
	}
	return best, best != ""
}

func randomNoise(px []uint8, rng *rand.Rand) {
	for c := range px {
		px[c] = scale(px[c], drawMultiplier(rng))
	}
}

func randomBrightness(px []uint8, rng *rand.Rand) {
	m := drawMultiplier(rng)
	for c := range px {
		px[c] = scale(px[c], m)
	}
}

func drawMultiplier(rng *rand.Rand) float64 {
	return minMultiplier + (maxMultiplier-minMultiplier)*rng.Float64()
}

func scale(v uint8, m float64) uint8 {
	return toSample(float64(v) / m)
}

// toSample rounds v to the nearest integer and clamps it to [0, 255]
func toSample(v float64) uint8 {
	r := math.Round(v)
	switch {
	case math.IsNaN(r) || r <= 0:
		return 0
	case r >= math.MaxUint8:
		return math.MaxUint8
	default:
		return uint8(r)
	}
}
