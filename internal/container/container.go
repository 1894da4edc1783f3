package container

import (
	"fmt"
	"net/http"
	"sync"

	"go-image-worsen/internal/codec"
	"go-image-worsen/internal/config"
	"go-image-worsen/internal/factory"
	"go-image-worsen/internal/logger"
	"go-image-worsen/internal/observer"
	"go-image-worsen/internal/repository"
	"go-image-worsen/internal/service"
	"go-image-worsen/internal/stats"
	"go-image-worsen/internal/strategy"
	"go-image-worsen/internal/transform"
	"go-image-worsen/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	storageFactory  factory.StorageFactory
	imageRepository repository.ImageRepository
	pipeline        *transform.Pipeline
	metrics         *observer.MetricsObserver
	worsenService   service.WorsenService

	handlerOnce sync.Once
	handler     http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	policy, err := strategy.ForName(cfg.FailurePolicy)
	if err != nil {
		return nil, err
	}

	// Build dependency graph
	imageCodec := codec.NewCodec(cfg.JPEGQuality)
	storageFactory := factory.NewStorageFactory(cfg)
	imageRepository := repository.NewImageRepository(storageFactory, imageCodec, cfg.OutputMarker)

	pipelineOpts := []transform.Option{transform.WithWorkers(cfg.Workers)}
	if cfg.Seed != 0 {
		pipelineOpts = append(pipelineOpts, transform.WithSeed(cfg.Seed))
	}
	pipeline := transform.NewPipeline(pipelineOpts...)
	calculator := stats.NewCalculator(cfg.Workers)

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	worsenService := service.NewWorsenService(imageRepository, imageCodec, pipeline, calculator, policy, events)
	return &Container{
		config:          cfg,
		storageFactory:  storageFactory,
		imageRepository: imageRepository,
		pipeline:        pipeline,
		metrics:         metrics,
		worsenService:   worsenService,
	}, nil
}

// Handler returns the HTTP handler, building the router on first use
func (c *Container) Handler() http.Handler {
	c.handlerOnce.Do(func() {
		c.handler = transport.NewHandler(c.worsenService, c.metrics, c.config)
	})
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the worsen service
func (c *Container) Service() service.WorsenService {
	return c.worsenService
}

// Metrics returns the event counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close releases the pipeline's workers
func (c *Container) Close() {
	c.pipeline.Close()
}
