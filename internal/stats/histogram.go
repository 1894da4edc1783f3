package stats

// Bins is the number of distinct 8-bit sample values
const Bins = 256

// Histogram counts occurrences of each sample value, pooled across channels
type Histogram [Bins]uint64

// Add counts every sample in the slice
func (h *Histogram) Add(samples []uint8) {
	for _, v := range samples {
		h[v]++
	}
}

// Merge adds the counts of other into h
func (h *Histogram) Merge(other *Histogram) {
	for i := range h {
		h[i] += other[i]
	}
}

// Total returns the number of samples counted
func (h *Histogram) Total() uint64 {
	var total uint64
	for _, c := range h {
		total += c
	}
	return total
}

// Count returns the count of a single sample value
func (h *Histogram) Count(v uint8) uint64 {
	return h[v]
}
