package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-image-worsen/internal/config"
	"go-image-worsen/internal/logger"

	"github.com/sirupsen/logrus"
)

const maxFetchAttempts = 3

// HTTPStorage reads images over HTTP(S). It cannot store them.
type HTTPStorage struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// NewHTTPStorage creates an HTTP backend with the given overall request
// timeout. maxBytes <= 0 disables the size check.
func NewHTTPStorage(timeout time.Duration, maxBytes int64) *HTTPStorage {
	transport := &http.Transport{
		// Connection pooling sized for sequential batch downloads
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPStorage{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		backoff:  time.Second,
	}
}

// Read downloads the image at location. Transport errors and 5xx responses
// are retried with linear backoff; 4xx responses are not.
func (h *HTTPStorage) Read(ctx context.Context, location string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		data, retryable, err := h.fetch(ctx, location)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retryable || attempt == maxFetchAttempts-1 {
			break
		}

		logger.WithError(err).WithFields(logrus.Fields{
			"url":     location,
			"attempt": attempt + 1,
		}).Warn("Image fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * h.backoff):
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", maxFetchAttempts, lastErr)
}

func (h *HTTPStorage) fetch(ctx context.Context, location string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/png, image/jpeg, image/gif, image/bmp, image/tiff, image/webp, */*")
	req.Header.Set("User-Agent", "worsen/"+config.Version)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("client error: status code %d: %w", resp.StatusCode, ErrNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if h.maxBytes > 0 {
		body = io.LimitReader(resp.Body, h.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if h.maxBytes > 0 && int64(len(data)) > h.maxBytes {
		return nil, false, fmt.Errorf("response larger than %d bytes: %w", h.maxBytes, ErrTooLarge)
	}
	return data, false, nil
}

// Write always fails; HTTP sources are read-only
func (h *HTTPStorage) Write(ctx context.Context, location string, data []byte) error {
	return fmt.Errorf("cannot write %s: %w", location, ErrReadOnly)
}

func (h *HTTPStorage) Name() string {
	return "http"
}
