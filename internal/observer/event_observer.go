package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// WorsenEvent represents a batch or per-image lifecycle event
type WorsenEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Location       string                 `json:"location,omitempty"`
	Output         string                 `json:"output,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of worsen event
type EventType string

const (
	// BatchStarted when a batch of images begins
	BatchStarted EventType = "batch_started"
	// BatchCompleted when every image of a batch has been handled
	BatchCompleted EventType = "batch_completed"
	// ImageLoaded when an image is read and decoded
	ImageLoaded EventType = "image_loaded"
	// StatisticsReported when a stats operation produced a report
	StatisticsReported EventType = "statistics_reported"
	// ImageWritten when the degraded image has been stored
	ImageWritten EventType = "image_written"
	// ImageFailed when loading, transforming or storing an image fails
	ImageFailed EventType = "image_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event WorsenEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event WorsenEvent)
}

// LoggingObserver logs worsen events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event WorsenEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
	}
	if event.Location != "" {
		fields["location"] = event.Location
	}
	if event.Output != "" {
		fields["output"] = event.Output
	}
	if event.ProcessingTime > 0 {
		fields["processing_time_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case BatchStarted:
		entry.Debug("Batch started")
	case BatchCompleted:
		entry.Info("Batch completed")
	case ImageLoaded:
		entry.Debug("Image loaded")
	case StatisticsReported:
		entry.Debug("Statistics reported")
	case ImageWritten:
		entry.Info("Image written")
	case ImageFailed:
		entry.Error("Image failed")
	default:
		entry.Info("Worsen event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a point-in-time copy of the counters kept by MetricsObserver
type Metrics struct {
	Batches             int64         `json:"batches"`
	ImagesLoaded        int64         `json:"images_loaded"`
	ImagesWritten       int64         `json:"images_written"`
	ImagesFailed        int64         `json:"images_failed"`
	StatisticsReports   int64         `json:"statistics_reports"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	AvgProcessingTime   time.Duration `json:"avg_processing_time"`
}

// MetricsObserver counts events
type MetricsObserver struct {
	mu                  sync.RWMutex
	batches             int64
	imagesLoaded        int64
	imagesWritten       int64
	imagesFailed        int64
	statisticsReports   int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event WorsenEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case BatchStarted:
		o.batches++
	case ImageLoaded:
		o.imagesLoaded++
	case StatisticsReported:
		o.statisticsReports++
	case ImageWritten:
		o.imagesWritten++
		o.totalProcessingTime += event.ProcessingTime
	case ImageFailed:
		o.imagesFailed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.imagesWritten > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.imagesWritten)
	}

	return Metrics{
		Batches:             o.batches,
		ImagesLoaded:        o.imagesLoaded,
		ImagesWritten:       o.imagesWritten,
		ImagesFailed:        o.imagesFailed,
		StatisticsReports:   o.statisticsReports,
		TotalProcessingTime: o.totalProcessingTime,
		AvgProcessingTime:   avgProcessingTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer in subscription order
// before returning. A panicking observer does not stop the others.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event WorsenEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event WorsenEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
