package models

import (
	"go-image-worsen/internal/stats"
	"go-image-worsen/internal/transform"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// OperationInfo describes one registered operation
type OperationInfo struct {
	Name     string `json:"name"`
	Mutating bool   `json:"mutating"`
}

// OperationsResponse lists every operation the service accepts
type OperationsResponse struct {
	Operations []OperationInfo `json:"operations"`
}

// NewOperationsResponse builds the listing from the transform registry
func NewOperationsResponse() OperationsResponse {
	known := transform.Known()
	resp := OperationsResponse{Operations: make([]OperationInfo, 0, len(known))}
	for _, op := range known {
		resp.Operations = append(resp.Operations, OperationInfo{
			Name:     string(op),
			Mutating: op.Mutating(),
		})
	}
	return resp
}

// StatisticsResponse is the JSON form of an ImageStatistics snapshot.
// Histogram is only filled in when requested since it is 256 entries long.
type StatisticsResponse struct {
	Samples   uint64   `json:"samples"`
	Distinct  int      `json:"distinct"`
	Min       uint8    `json:"min"`
	Max       uint8    `json:"max"`
	Most      uint8    `json:"most"`
	Least     uint8    `json:"least"`
	Entropy   float64  `json:"entropy"`
	Mean      float64  `json:"mean"`
	StdDev    float64  `json:"std_dev"`
	Histogram []uint64 `json:"histogram,omitempty"`
}

// NewStatisticsResponse converts s, including the histogram if withHistogram
func NewStatisticsResponse(s stats.ImageStatistics, withHistogram bool) StatisticsResponse {
	resp := StatisticsResponse{
		Samples:  s.Samples,
		Distinct: s.Distinct,
		Min:      s.Min,
		Max:      s.Max,
		Most:     s.Most,
		Least:    s.Least,
		Entropy:  s.Entropy,
		Mean:     s.Mean,
		StdDev:   s.StdDev,
	}
	if withHistogram {
		resp.Histogram = append([]uint64(nil), s.Histogram[:]...)
	}
	return resp
}
