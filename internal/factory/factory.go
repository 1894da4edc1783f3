package factory

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go-image-worsen/internal/config"
	"go-image-worsen/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.Backend, error)
	ForLocation(location string) (storage.Backend, error)
}

// storageFactory builds each backend once and reuses it
type storageFactory struct {
	cfg      *config.Config
	mu       sync.Mutex
	backends map[StorageType]storage.Backend
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{
		cfg:      cfg,
		backends: make(map[StorageType]storage.Backend),
	}
}

// CreateStorage returns the backend for the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if backend, ok := f.backends[storageType]; ok {
		return backend, nil
	}

	var (
		backend storage.Backend
		err     error
	)
	switch storageType {
	case LocalStorage:
		backend = storage.NewFileStorage(f.cfg.MaxImageSize)
	case HTTPStorage:
		backend = storage.NewHTTPStorage(f.cfg.FetchTimeout, f.cfg.MaxImageSize)
	case AzureStorage:
		if f.cfg.AzureAccountName == "" || f.cfg.AzureAccountKey == "" {
			return nil, fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
		backend, err = storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.MaxImageSize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}

	f.backends[storageType] = backend
	return backend, nil
}

// ForLocation picks the backend that serves location
func (f *storageFactory) ForLocation(location string) (storage.Backend, error) {
	return f.CreateStorage(TypeForLocation(location))
}

// TypeForLocation classifies a location by its URL scheme. Anything that is
// not an http(s) or azblob URL is a local path.
func TypeForLocation(location string) StorageType {
	parsed, err := url.Parse(location)
	if err != nil {
		return LocalStorage
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return HTTPStorage
	case storage.BlobScheme:
		return AzureStorage
	default:
		return LocalStorage
	}
}
