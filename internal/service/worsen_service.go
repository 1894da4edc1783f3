package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-image-worsen/internal/codec"
	apperrors "go-image-worsen/internal/errors"
	"go-image-worsen/internal/logger"
	"go-image-worsen/internal/observer"
	"go-image-worsen/internal/repository"
	"go-image-worsen/internal/stats"
	"go-image-worsen/internal/strategy"
	"go-image-worsen/internal/transform"

	"github.com/sirupsen/logrus"
)

// ReportFunc receives every statistics report produced while processing
// the image at location
type ReportFunc func(location string, s stats.ImageStatistics)

// ImageResult describes one processed image
type ImageResult struct {
	Location       string
	Output         string
	Format         codec.Format
	Statistics     []stats.ImageStatistics
	ProcessingTime time.Duration
}

// ImageFailure pairs a location with the error that stopped it
type ImageFailure struct {
	Location string
	Err      error
}

// BatchResult collects the outcome of a batch
type BatchResult struct {
	Operations []transform.Operation
	Processed  []ImageResult
	Failed     []ImageFailure
}

// EncodedImage is the in-memory result of Worsen
type EncodedImage struct {
	Data       []byte
	Format     codec.Format
	Statistics []stats.ImageStatistics
}

// WorsenService applies operation lists to stored or uploaded images
type WorsenService interface {
	// ProcessBatch parses tokens, then processes locations in order. An
	// unknown operation fails the whole batch before anything is read.
	ProcessBatch(ctx context.Context, locations []string, tokens []string, report ReportFunc) (*BatchResult, error)

	// ProcessImage loads, transforms and stores a single image
	ProcessImage(ctx context.Context, location string, ops []transform.Operation, report ReportFunc) (*ImageResult, error)

	// Worsen transforms an encoded image in memory and re-encodes it in
	// the same format
	Worsen(ctx context.Context, data []byte, tokens []string) (*EncodedImage, error)

	// Statistics decodes data and summarises its samples
	Statistics(ctx context.Context, data []byte) (stats.ImageStatistics, error)
}

type worsenService struct {
	repo       repository.ImageRepository
	codec      codec.Codec
	pipeline   *transform.Pipeline
	calculator stats.Calculator
	policy     strategy.FailurePolicy
	events     observer.Subject
}

// NewWorsenService creates a new worsen service
func NewWorsenService(
	repo repository.ImageRepository,
	c codec.Codec,
	pipeline *transform.Pipeline,
	calculator stats.Calculator,
	policy strategy.FailurePolicy,
	events observer.Subject,
) WorsenService {
	if policy == nil {
		policy = strategy.NewAbortPolicy()
	}
	if events == nil {
		events = observer.NewEventPublisher()
	}
	return &worsenService{
		repo:       repo,
		codec:      c,
		pipeline:   pipeline,
		calculator: calculator,
		policy:     policy,
		events:     events,
	}
}

func (s *worsenService) ProcessBatch(ctx context.Context, locations []string, tokens []string, report ReportFunc) (*BatchResult, error) {
	ops, err := parseOperations(tokens)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, apperrors.NewValidationError("no input images given", nil)
	}

	result := &BatchResult{Operations: ops}
	start := time.Now()
	s.events.NotifyObservers(ctx, observer.WorsenEvent{
		EventType: observer.BatchStarted,
		Metadata: map[string]interface{}{
			"operations": ops,
			"files":      locations,
			"policy":     s.policy.GetStrategyName(),
		},
	})

	var batchErr error
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			batchErr = fmt.Errorf("batch interrupted before %s: %w", location, err)
			break
		}

		res, err := s.ProcessImage(ctx, location, ops, report)
		if err == nil {
			result.Processed = append(result.Processed, *res)
			continue
		}

		result.Failed = append(result.Failed, ImageFailure{Location: location, Err: err})
		if !s.policy.Continue(err) {
			batchErr = err
			break
		}
	}

	if batchErr == nil && len(result.Failed) > 0 {
		batchErr = aggregateFailures(result.Failed, len(locations))
	}

	completed := observer.WorsenEvent{
		EventType:      observer.BatchCompleted,
		ProcessingTime: time.Since(start),
		Success:        batchErr == nil,
		Metadata: map[string]interface{}{
			"processed": len(result.Processed),
			"failed":    len(result.Failed),
		},
	}
	if batchErr != nil {
		completed.ErrorMessage = batchErr.Error()
	}
	s.events.NotifyObservers(ctx, completed)

	return result, batchErr
}

func (s *worsenService) ProcessImage(ctx context.Context, location string, ops []transform.Operation, report ReportFunc) (*ImageResult, error) {
	start := time.Now()

	res, err := s.processImage(ctx, location, ops, report)
	if err != nil {
		s.events.NotifyObservers(ctx, observer.WorsenEvent{
			EventType:      observer.ImageFailed,
			Location:       location,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	res.ProcessingTime = time.Since(start)
	s.events.NotifyObservers(ctx, observer.WorsenEvent{
		EventType:      observer.ImageWritten,
		Location:       location,
		Output:         res.Output,
		ProcessingTime: res.ProcessingTime,
		Success:        true,
		Metadata: map[string]interface{}{
			"format": res.Format,
		},
	})
	return res, nil
}

func (s *worsenService) processImage(ctx context.Context, location string, ops []transform.Operation, report ReportFunc) (*ImageResult, error) {
	img, err := s.repo.Load(ctx, location)
	if err != nil {
		return nil, err
	}

	s.events.NotifyObservers(ctx, observer.WorsenEvent{
		EventType: observer.ImageLoaded,
		Location:  location,
		Success:   true,
		Metadata: map[string]interface{}{
			"format": img.Format,
			"width":  img.Buffer.Width,
			"height": img.Buffer.Height,
			"bytes":  img.Size,
		},
	})

	res := &ImageResult{Location: location, Format: img.Format}
	err = s.pipeline.Run(ctx, img.Buffer, ops, func(st stats.ImageStatistics) {
		res.Statistics = append(res.Statistics, st)
		s.events.NotifyObservers(ctx, observer.WorsenEvent{
			EventType: observer.StatisticsReported,
			Location:  location,
			Success:   true,
			Metadata: map[string]interface{}{
				"entropy": st.Entropy,
				"min":     st.Min,
				"max":     st.Max,
			},
		})
		if report != nil {
			report(location, st)
		}
	})
	if err != nil {
		return nil, wrapPipelineError(err, location)
	}

	output, err := s.repo.OutputLocation(location, img.Format)
	if err != nil {
		return nil, apperrors.NewEncodeError("cannot derive output location", err).WithDetails(location)
	}
	if err := s.repo.Save(ctx, output, img.Buffer); err != nil {
		return nil, err
	}

	res.Output = output
	return res, nil
}

func (s *worsenService) Worsen(ctx context.Context, data []byte, tokens []string) (*EncodedImage, error) {
	ops, err := parseOperations(tokens)
	if err != nil {
		return nil, err
	}

	buf, format, err := codec.DecodeBytes(s.codec, data)
	if err != nil {
		return nil, apperrors.NewIOError("unsupported or corrupt image", err)
	}

	out := &EncodedImage{Format: format}
	err = s.pipeline.Run(ctx, buf, ops, func(st stats.ImageStatistics) {
		out.Statistics = append(out.Statistics, st)
	})
	if err != nil {
		return nil, wrapPipelineError(err, "upload")
	}

	out.Data, err = codec.EncodeBytes(s.codec, buf, format)
	if err != nil {
		return nil, apperrors.NewEncodeError("failed to encode image", err).WithDetails(string(format))
	}

	logger.WithFields(logrus.Fields{
		"operations": ops,
		"format":     format,
		"width":      buf.Width,
		"height":     buf.Height,
	}).Debug("Upload worsened")

	return out, nil
}

func (s *worsenService) Statistics(ctx context.Context, data []byte) (stats.ImageStatistics, error) {
	if err := ctx.Err(); err != nil {
		return stats.ImageStatistics{}, apperrors.NewTimeoutError("request cancelled", err)
	}

	buf, _, err := codec.DecodeBytes(s.codec, data)
	if err != nil {
		return stats.ImageStatistics{}, apperrors.NewIOError("unsupported or corrupt image", err)
	}
	return s.calculator.Compute(buf), nil
}

func parseOperations(tokens []string) ([]transform.Operation, error) {
	ops, err := transform.Parse(tokens)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, apperrors.NewValidationError("at least one operation is required", nil)
	}
	return ops, nil
}

// wrapPipelineError keeps AppErrors as they are and maps context errors
func wrapPipelineError(err error, location string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("processing interrupted", err).WithDetails(location)
	}
	return apperrors.NewInternalError("transform failed", err).WithDetails(location)
}

func aggregateFailures(failed []ImageFailure, total int) error {
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, f.Err)
	}
	return fmt.Errorf("%d of %d images failed: %w", len(failed), total, errors.Join(errs...))
}
