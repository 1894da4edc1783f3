package strategy

import (
	"fmt"

	"go-image-worsen/internal/config"
	apperrors "go-image-worsen/internal/errors"
)

// FailurePolicy decides whether a batch keeps going after an image fails
type FailurePolicy interface {
	// Continue reports whether the batch should move on to the next image
	Continue(err error) bool
	GetStrategyName() string
}

// AbortPolicy stops the batch at the first failure
type AbortPolicy struct{}

// NewAbortPolicy creates a new abort policy
func NewAbortPolicy() FailurePolicy {
	return &AbortPolicy{}
}

// Continue never continues
func (p *AbortPolicy) Continue(err error) bool {
	return false
}

// GetStrategyName returns the strategy name
func (p *AbortPolicy) GetStrategyName() string {
	return config.FailurePolicyAbort
}

// SkipPolicy logs per-image failures and moves on. Configuration errors
// still stop the batch since every remaining image would fail the same way.
type SkipPolicy struct{}

// NewSkipPolicy creates a new skip policy
func NewSkipPolicy() FailurePolicy {
	return &SkipPolicy{}
}

// Continue skips anything but configuration errors
func (p *SkipPolicy) Continue(err error) bool {
	return !apperrors.IsType(err, apperrors.ErrorTypeConfiguration)
}

// GetStrategyName returns the strategy name
func (p *SkipPolicy) GetStrategyName() string {
	return config.FailurePolicySkip
}

// ForName returns the policy registered under name
func ForName(name string) (FailurePolicy, error) {
	switch name {
	case config.FailurePolicyAbort, "":
		return NewAbortPolicy(), nil
	case config.FailurePolicySkip:
		return NewSkipPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown failure policy: %s", name)
	}
}
