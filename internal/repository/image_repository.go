package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"go-image-worsen/internal/codec"
	apperrors "go-image-worsen/internal/errors"
	"go-image-worsen/internal/factory"
	"go-image-worsen/internal/pixel"
	"go-image-worsen/internal/storage"
	"go-image-worsen/pkg/validation"
)

// Image is a decoded input together with where it came from
type Image struct {
	Location string
	Format   codec.Format
	Buffer   *pixel.Buffer
	Size     int
}

// ImageRepository loads and stores images across storage backends
type ImageRepository interface {
	// Load reads and decodes the image at location
	Load(ctx context.Context, location string) (*Image, error)

	// Save encodes buf and stores it at location, inferring the format from
	// the location's extension
	Save(ctx context.Context, location string, buf *pixel.Buffer) error

	// OutputLocation derives where the degraded copy of input is written
	OutputLocation(input string, decoded codec.Format) (string, error)

	// ValidateLocation checks a location before any I/O
	ValidateLocation(location string) error
}

type imageRepository struct {
	storages  factory.StorageFactory
	codec     codec.Codec
	validator *validation.LocationValidator
	marker    string
}

// NewImageRepository creates a repository that dispatches on location scheme
func NewImageRepository(storages factory.StorageFactory, c codec.Codec, marker string) ImageRepository {
	return &imageRepository{
		storages:  storages,
		codec:     c,
		validator: validation.NewLocationValidator(),
		marker:    marker,
	}
}

func (r *imageRepository) ValidateLocation(location string) error {
	return r.validator.ValidateLocation(location)
}

func (r *imageRepository) Load(ctx context.Context, location string) (*Image, error) {
	if err := r.ValidateLocation(location); err != nil {
		return nil, err
	}

	backend, err := r.storages.ForLocation(location)
	if err != nil {
		return nil, apperrors.NewIOError("no storage backend for location", err).WithDetails(location)
	}

	data, err := backend.Read(ctx, location)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("image read timed out", err).WithDetails(location)
		}
		if backend.Name() == "file" || errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewIOError("failed to read image", err).WithDetails(location)
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err).WithDetails(location)
	}

	buf, format, err := codec.DecodeBytes(r.codec, data)
	if err != nil {
		return nil, apperrors.NewIOError("unsupported or corrupt image", err).WithDetails(location)
	}

	return &Image{Location: location, Format: format, Buffer: buf, Size: len(data)}, nil
}

func (r *imageRepository) Save(ctx context.Context, location string, buf *pixel.Buffer) error {
	format, ok := codec.FormatFromPath(locationPath(location))
	if !ok {
		return apperrors.NewEncodeError("cannot infer output format", ErrUnsupportedOutput).WithDetails(location)
	}

	data, err := codec.EncodeBytes(r.codec, buf, format)
	if err != nil {
		return apperrors.NewEncodeError("failed to encode image", err).WithDetails(location)
	}

	backend, err := r.storages.ForLocation(location)
	if err != nil {
		return apperrors.NewEncodeError("no storage backend for location", err).WithDetails(location)
	}
	if err := backend.Write(ctx, location, data); err != nil {
		return apperrors.NewEncodeError("failed to write image", err).WithDetails(location)
	}
	return nil
}

// OutputLocation inserts the marker before the extension: cat.png becomes
// cat.worse.png. Inputs without an extension take the decoded format's
// extension. HTTP inputs are written to the working directory since they
// cannot be written back.
func (r *imageRepository) OutputLocation(input string, decoded codec.Format) (string, error) {
	switch factory.TypeForLocation(input) {
	case factory.HTTPStorage:
		parsed, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidLocation, err)
		}
		base := path.Base(parsed.Path)
		if base == "/" || base == "." || base == "" {
			base = "image"
		}
		return r.mark(base, decoded), nil

	case factory.AzureStorage:
		container, blob, err := storage.ParseBlobLocation(input)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidLocation, err)
		}
		dir, base := path.Split(blob)
		return fmt.Sprintf("%s://%s/%s%s", storage.BlobScheme, container, dir, r.mark(base, decoded)), nil

	default:
		dir, base := filepath.Split(input)
		if base == "" {
			return "", fmt.Errorf("%w: %q has no file name", ErrInvalidLocation, input)
		}
		return dir + r.mark(base, decoded), nil
	}
}

func (r *imageRepository) mark(base string, decoded codec.Format) string {
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = decoded.Extension()
	}
	return stem + "." + r.marker + ext
}

// locationPath strips URL scheme and host so the extension can be read
func locationPath(location string) string {
	if factory.TypeForLocation(location) == factory.LocalStorage {
		return location
	}
	if parsed, err := url.Parse(location); err == nil {
		return parsed.Path
	}
	return location
}
