package stats

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// maxEntropy is log2(256), the entropy of a uniform 8-bit distribution
const maxEntropy = 8.0

// ImageStatistics is an immutable snapshot of one buffer's sample distribution
type ImageStatistics struct {
	Histogram Histogram `json:"-"`
	Samples   uint64    `json:"samples"`
	Distinct  int       `json:"distinct"`
	Min       uint8     `json:"min"`
	Max       uint8     `json:"max"`
	Most      uint8     `json:"most"`
	Least     uint8     `json:"least"`
	Entropy   float64   `json:"entropy"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
}

// Summarize derives statistics from a histogram.
//
// Most and Least are found with a single ascending scan using strict
// comparisons, so ties resolve to the lowest sample value. Empty bins never
// qualify. An empty histogram yields the zero value with Entropy 0.
func Summarize(h Histogram) ImageStatistics {
	s := ImageStatistics{Histogram: h, Samples: h.Total()}
	if s.Samples == 0 {
		return s
	}

	var (
		most    uint64
		least   uint64 = math.MaxUint64
		seen    bool
		probs   = make([]float64, 0, Bins)
		values  = make([]float64, 0, Bins)
		weights = make([]float64, 0, Bins)
		total   = float64(s.Samples)
	)

	for v, count := range h {
		if count == 0 {
			continue
		}
		if !seen {
			s.Min = uint8(v)
			seen = true
		}
		s.Max = uint8(v)
		s.Distinct++

		if count > most {
			most = count
			s.Most = uint8(v)
		}
		if count < least {
			least = count
			s.Least = uint8(v)
		}

		probs = append(probs, float64(count)/total)
		values = append(values, float64(v))
		weights = append(weights, float64(count))
	}

	// stat.Entropy works in nats and skips zero probabilities
	s.Entropy = clampEntropy(stat.Entropy(probs) / math.Ln2)
	s.Mean, s.StdDev = stat.PopMeanStdDev(values, weights)

	return s
}

func clampEntropy(e float64) float64 {
	if e <= 0 || math.IsNaN(e) {
		return 0
	}
	return math.Min(e, maxEntropy)
}

// String renders the report printed for the "stats" operation
func (s ImageStatistics) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "samples: %d (%d distinct values)\n", s.Samples, s.Distinct)
	fmt.Fprintf(&sb, "min: %d  max: %d\n", s.Min, s.Max)
	fmt.Fprintf(&sb, "most: %d (%d occurrences)  least: %d (%d occurrences)\n",
		s.Most, s.Histogram[s.Most], s.Least, s.Histogram[s.Least])
	fmt.Fprintf(&sb, "mean: %.3f  std dev: %.3f\n", s.Mean, s.StdDev)
	fmt.Fprintf(&sb, "entropy: %.6f bits\n", s.Entropy)
	return sb.String()
}
