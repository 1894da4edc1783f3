package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"go-image-worsen/internal/pixel"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format is a registered image format name as reported by image.Decode
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWebP Format = "webp"
)

// DefaultJPEGQuality matches image/jpeg's default
const DefaultJPEGQuality = jpeg.DefaultQuality

// Codec converts between encoded image bytes and pixel buffers
type Codec interface {
	Decode(r io.Reader) (*pixel.Buffer, Format, error)
	Encode(w io.Writer, buf *pixel.Buffer, format Format) error
}

type imageCodec struct {
	jpegQuality int
}

// NewCodec creates a codec. Quality outside 1..100 falls back to the default.
func NewCodec(jpegQuality int) Codec {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &imageCodec{jpegQuality: jpegQuality}
}

// Decode reads any registered format and normalises it to RGB
func (c *imageCodec) Decode(r io.Reader) (*pixel.Buffer, Format, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return pixel.FromImage(img), Format(name), nil
}

// Encode writes buf in the requested format
func (c *imageCodec) Encode(w io.Writer, buf *pixel.Buffer, format Format) error {
	img := buf.ToImage()

	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: c.jpegQuality})
	case FormatGIF:
		err = gif.Encode(w, paletted(img), &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("encoding to %q is not supported", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// paletted returns img with an exact palette when it has at most 256 colors,
// otherwise img itself for the GIF encoder to quantize with dithering.
func paletted(img *image.NRGBA) image.Image {
	index := make(map[color.NRGBA]uint8)
	var palette color.Palette
	for i := 0; i < len(img.Pix); i += 4 {
		c := color.NRGBA{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
		if _, ok := index[c]; ok {
			continue
		}
		if len(palette) == 256 {
			return img
		}
		index[c] = uint8(len(palette))
		palette = append(palette, c)
	}
	if len(palette) == 0 {
		return img
	}

	pm := image.NewPaletted(img.Rect, palette)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+1 {
		pm.Pix[j] = index[color.NRGBA{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}]
	}
	return pm
}

// DecodeBytes is a convenience wrapper around Decode
func DecodeBytes(c Codec, data []byte) (*pixel.Buffer, Format, error) {
	return c.Decode(bytes.NewReader(data))
}

// EncodeBytes is a convenience wrapper around Encode
func EncodeBytes(c Codec, buf *pixel.Buffer, format Format) ([]byte, error) {
	var out bytes.Buffer
	if err := c.Encode(&out, buf, format); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// FormatFromPath infers the format from a file extension
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return FormatPNG, true
	case "jpg", "jpeg", "jpe":
		return FormatJPEG, true
	case "gif":
		return FormatGIF, true
	case "bmp":
		return FormatBMP, true
	case "tif", "tiff":
		return FormatTIFF, true
	case "webp":
		return FormatWebP, true
	default:
		return "", false
	}
}

// Extension returns the canonical file extension for a format
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatTIFF:
		return ".tiff"
	default:
		return "." + string(f)
	}
}

// ContentType returns the MIME type for a format
func (f Format) ContentType() string {
	return "image/" + string(f)
}
