package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-image-worsen/internal/codec"
	"go-image-worsen/internal/config"
	apperrors "go-image-worsen/internal/errors"
	"go-image-worsen/internal/factory"
	"go-image-worsen/internal/pixel"
)

func newTestRepository() ImageRepository {
	cfg := &config.Config{FetchTimeout: 5 * time.Second}
	return NewImageRepository(factory.NewStorageFactory(cfg), codec.NewCodec(0), "worse")
}

func createTestBuffer(t *testing.T) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.NewBuffer(3, 2)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}
	buf.Fill(10, 20, 30)
	return buf
}

func TestOutputLocation(t *testing.T) {
	repo := newTestRepository()

	tests := []struct {
		input    string
		decoded  codec.Format
		expected string
	}{
		{"cat.png", codec.FormatPNG, "cat.worse.png"},
		{"photos/cat.JPG", codec.FormatJPEG, "photos/cat.worse.JPG"},
		{"/abs/dir/holiday.photo.jpeg", codec.FormatJPEG, "/abs/dir/holiday.photo.worse.jpeg"},
		{"noextension", codec.FormatGIF, "noextension.worse.gif"},
		{"scan", codec.FormatJPEG, "scan.worse.jpg"},
		{"https://example.com/pics/dog.gif?size=large", codec.FormatGIF, "dog.worse.gif"},
		{"https://example.com/", codec.FormatPNG, "image.worse.png"},
		{"azblob://images/2024/cat.png", codec.FormatPNG, "azblob://images/2024/cat.worse.png"},
		{"azblob://images/cat", codec.FormatBMP, "azblob://images/cat.worse.bmp"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			input := filepath.FromSlash(tt.input)
			expected := filepath.FromSlash(tt.expected)
			if factory.TypeForLocation(tt.input) != factory.LocalStorage {
				input, expected = tt.input, tt.expected
			}

			got, err := repo.OutputLocation(input, tt.decoded)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != expected {
				t.Errorf("Expected %q, got %q", expected, got)
			}
		})
	}
}

func TestOutputLocation_NoFileName(t *testing.T) {
	repo := newTestRepository()
	if _, err := repo.OutputLocation("dir/", codec.FormatPNG); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("Expected ErrInvalidLocation, got: %v", err)
	}
}

func TestSaveLoad_LocalRoundTrip(t *testing.T) {
	repo := newTestRepository()
	location := filepath.Join(t.TempDir(), "out.png")
	buf := createTestBuffer(t)

	if err := repo.Save(context.Background(), location, buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	img, err := repo.Load(context.Background(), location)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Format != codec.FormatPNG {
		t.Errorf("Expected png, got %s", img.Format)
	}
	if img.Buffer.Width != 3 || img.Buffer.Height != 2 {
		t.Errorf("Expected 3x2, got %dx%d", img.Buffer.Width, img.Buffer.Height)
	}
	if r, g, b := img.Buffer.At(2, 1); r != 10 || g != 20 || b != 30 {
		t.Errorf("Expected (10,20,30), got (%d,%d,%d)", r, g, b)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := newTestRepository().Load(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	if !apperrors.IsType(err, apperrors.ErrorTypeIO) {
		t.Errorf("Expected io error, got: %v", err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	location := filepath.Join(t.TempDir(), "corrupt.png")
	if err := os.WriteFile(location, []byte("not a png"), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	_, err := newTestRepository().Load(context.Background(), location)
	if !apperrors.IsType(err, apperrors.ErrorTypeIO) {
		t.Errorf("Expected io error, got: %v", err)
	}
}

func TestLoad_HTTP(t *testing.T) {
	data, err := codec.EncodeBytes(codec.NewCodec(0), createTestBuffer(t), codec.FormatPNG)
	if err != nil {
		t.Fatalf("Failed to build fixture: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	img, err := newTestRepository().Load(context.Background(), server.URL+"/cat.png")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Size != len(data) {
		t.Errorf("Expected size %d, got %d", len(data), img.Size)
	}
}

func TestLoad_HTTPClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestRepository().Load(context.Background(), server.URL+"/cat.png")
	if !apperrors.IsType(err, apperrors.ErrorTypeNetwork) {
		t.Errorf("Expected network error, got: %v", err)
	}
}

func TestSave_UnsupportedExtension(t *testing.T) {
	location := filepath.Join(t.TempDir(), "out.txt")

	err := newTestRepository().Save(context.Background(), location, createTestBuffer(t))
	if !apperrors.IsType(err, apperrors.ErrorTypeEncode) {
		t.Errorf("Expected encode error, got: %v", err)
	}
	if !errors.Is(err, ErrUnsupportedOutput) {
		t.Errorf("Expected ErrUnsupportedOutput, got: %v", err)
	}
	if _, statErr := os.Stat(location); !os.IsNotExist(statErr) {
		t.Error("Expected no output file to be written")
	}
}

func TestSave_UnwritableLocation(t *testing.T) {
	location := filepath.Join(t.TempDir(), "missing-dir", "out.png")

	err := newTestRepository().Save(context.Background(), location, createTestBuffer(t))
	if !apperrors.IsType(err, apperrors.ErrorTypeEncode) {
		t.Errorf("Expected encode error, got: %v", err)
	}
}

func TestSave_HTTPIsReadOnly(t *testing.T) {
	err := newTestRepository().Save(context.Background(), "https://example.com/out.png", createTestBuffer(t))
	if !apperrors.IsType(err, apperrors.ErrorTypeEncode) {
		t.Errorf("Expected encode error, got: %v", err)
	}
}
