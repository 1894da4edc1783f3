package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go-image-worsen/internal/config"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobScheme prefixes Azure Blob Storage locations: azblob://container/path/to/blob.png
const BlobScheme = "azblob"

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureStorage creates a blob backend authenticated with a shared key
func NewAzureStorage(accountName string, accountKey string, maxBytes int64) (Backend, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		&azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries: maxFetchAttempts - 1,
					RetryDelay: time.Second,
				},
				Telemetry: policy.TelemetryOptions{
					ApplicationID: "worsen/" + config.Version,
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &azureStorage{client: client, maxBytes: maxBytes}, nil
}

// ParseBlobLocation splits an azblob:// location into container and blob name
func ParseBlobLocation(location string) (container, blob string, err error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob location: %w", err)
	}
	if parsed.Scheme != BlobScheme {
		return "", "", fmt.Errorf("invalid blob location %q: scheme must be %s", location, BlobScheme)
	}

	container = parsed.Host
	blob = strings.TrimPrefix(parsed.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob location %q: expected %s://container/blob", location, BlobScheme)
	}
	return container, blob, nil
}

func (s *azureStorage) Read(ctx context.Context, location string) ([]byte, error) {
	containerName, blobName, err := ParseBlobLocation(location)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	body := io.Reader(retryReader)
	if s.maxBytes > 0 {
		body = io.LimitReader(retryReader, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", location, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("blob larger than %d bytes: %w", s.maxBytes, ErrTooLarge)
	}
	return data, nil
}

func (s *azureStorage) Write(ctx context.Context, location string, data []byte) error {
	containerName, blobName, err := ParseBlobLocation(location)
	if err != nil {
		return err
	}

	if _, err := s.client.UploadBuffer(ctx, containerName, blobName, data, nil); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func (s *azureStorage) Name() string {
	return "azure"
}
