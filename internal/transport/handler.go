package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-image-worsen/internal/config"
	apperrors "go-image-worsen/internal/errors"
	"go-image-worsen/internal/logger"
	"go-image-worsen/internal/observer"
	"go-image-worsen/internal/service"
	"go-image-worsen/internal/stats"
	"go-image-worsen/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const (
	// StatisticsHeader carries the reports of "stats" operations on /worsen
	StatisticsHeader = "X-Worsen-Statistics"

	imageField      = "image"
	operationsField = "operations"
)

func NewHandler(svc service.WorsenService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/operations", listOperations)
	r.POST("/worsen", worsenImage(svc, cfg))
	r.POST("/stats", imageStatistics(svc, cfg))
	if metrics != nil {
		r.GET("/metrics", func(c *gin.Context) {
			c.JSON(http.StatusOK, metrics.GetMetrics())
		})
	}

	return r
}

func worsenImage(svc service.WorsenService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing worsen request")

		data, err := readUpload(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid upload", err)
			return
		}

		operations := c.PostFormArray(operationsField)
		result, err := svc.Worsen(ctx, data, operations)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to worsen image", err)
			return
		}

		if len(result.Statistics) > 0 {
			reports := lo.Map(result.Statistics, func(s stats.ImageStatistics, _ int) models.StatisticsResponse {
				return models.NewStatisticsResponse(s, false)
			})
			header, err := json.Marshal(reports)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "failed to encode statistics", err)
				return
			}
			c.Header(StatisticsHeader, string(header))
		}

		logger.WithFields(logrus.Fields{
			"operations":         operations,
			"format":             result.Format,
			"bytes_in":           len(data),
			"bytes_out":          len(result.Data),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Image worsened successfully")

		c.Data(http.StatusOK, result.Format.ContentType(), result.Data)
	}
}

func imageStatistics(svc service.WorsenService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		data, err := readUpload(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid upload", err)
			return
		}

		s, err := svc.Statistics(ctx, data)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to compute statistics", err)
			return
		}

		c.JSON(http.StatusOK, models.NewStatisticsResponse(s, c.Query("histogram") == "true"))
	}
}

// readUpload returns the bytes of the multipart "image" field
func readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile(imageField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &apperrors.AppError{
				Type:       apperrors.ErrorTypeValidation,
				Message:    fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
				StatusCode: http.StatusRequestEntityTooLarge,
				Cause:      err,
			}
		}
		return nil, apperrors.NewValidationError("multipart field \"image\" is required", err)
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewIOError("failed to open upload", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewIOError("failed to read upload", err)
	}
	return data, nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "available",
		Version: config.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func listOperations(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewOperationsResponse())
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
