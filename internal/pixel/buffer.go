package pixel

import (
	"fmt"
	"image"
	"image/color"
)

// Channels is the number of samples stored per pixel (R, G, B).
const Channels = 3

// Buffer is a dense row-major RGB image with one byte per sample.
// The pixel at (x, y) starts at Pix[y*Stride + x*Channels].
type Buffer struct {
	Width  int
	Height int
	Stride int
	Pix    []uint8
}

// NewBuffer allocates a zeroed buffer of the given size
func NewBuffer(width, height int) (*Buffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid buffer dimensions %dx%d", width, height)
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Stride: width * Channels,
		Pix:    make([]uint8, width*height*Channels),
	}, nil
}

// Samples returns the total number of channel samples (W*H*3)
func (b *Buffer) Samples() int {
	return len(b.Pix)
}

// Empty reports whether the buffer holds no samples
func (b *Buffer) Empty() bool {
	return len(b.Pix) == 0
}

// Row returns the samples of row y
func (b *Buffer) Row(y int) []uint8 {
	start := y * b.Stride
	return b.Pix[start : start+b.Stride]
}

// Rows returns the samples of rows [startY, endY)
func (b *Buffer) Rows(startY, endY int) []uint8 {
	return b.Pix[startY*b.Stride : endY*b.Stride]
}

// At returns the samples of the pixel at (x, y)
func (b *Buffer) At(x, y int) (r, g, bl uint8) {
	i := y*b.Stride + x*Channels
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Set stores the samples of the pixel at (x, y)
func (b *Buffer) Set(x, y int, r, g, bl uint8) {
	i := y*b.Stride + x*Channels
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
}

// Fill sets every pixel to the same colour
func (b *Buffer) Fill(r, g, bl uint8) {
	for i := 0; i < len(b.Pix); i += Channels {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
	}
}

// Clone returns a deep copy of the buffer
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Stride: b.Stride, Pix: pix}
}

// FromImage converts any decoded image into an RGB buffer.
// Alpha is dropped after un-premultiplying, so translucent pixels keep
// their colour rather than fading towards black.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	buf := &Buffer{
		Width:  width,
		Height: height,
		Stride: width * Channels,
		Pix:    make([]uint8, width*height*Channels),
	}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < height; y++ {
			in := src.Pix[y*src.Stride : y*src.Stride+width*4]
			out := buf.Row(y)
			for x := 0; x < width; x++ {
				out[x*3], out[x*3+1], out[x*3+2] = in[x*4], in[x*4+1], in[x*4+2]
			}
		}
	case *image.RGBA:
		for y := 0; y < height; y++ {
			in := src.Pix[y*src.Stride : y*src.Stride+width*4]
			out := buf.Row(y)
			for x := 0; x < width; x++ {
				out[x*3], out[x*3+1], out[x*3+2] = unpremultiply(in[x*4], in[x*4+1], in[x*4+2], in[x*4+3])
			}
		}
	case *image.YCbCr:
		for y := 0; y < height; y++ {
			out := buf.Row(y)
			for x := 0; x < width; x++ {
				r, g, b, _ := src.YCbCrAt(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				out[x*3], out[x*3+1], out[x*3+2] = uint8(r>>8), uint8(g>>8), uint8(b>>8)
			}
		}
	case *image.Gray:
		for y := 0; y < height; y++ {
			in := src.Pix[y*src.Stride : y*src.Stride+width]
			out := buf.Row(y)
			for x, v := range in {
				out[x*3], out[x*3+1], out[x*3+2] = v, v, v
			}
		}
	default:
		for y := 0; y < height; y++ {
			out := buf.Row(y)
			for x := 0; x < width; x++ {
				c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				out[x*3], out[x*3+1], out[x*3+2] = c.R, c.G, c.B
			}
		}
	}

	return buf
}

// unpremultiply matches color.NRGBAModel for an 8-bit premultiplied sample
func unpremultiply(r, g, b, a uint8) (uint8, uint8, uint8) {
	switch a {
	case 0xff:
		return r, g, b
	case 0:
		return 0, 0, 0
	}
	a16 := uint32(a) * 0x101
	scale := func(c uint8) uint8 {
		return uint8((uint32(c) * 0x101 * 0xffff / a16) >> 8)
	}
	return scale(r), scale(g), scale(b)
}

// ToImage returns an opaque NRGBA copy of the buffer for encoding
func (b *Buffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		in := b.Row(y)
		out := img.Pix[y*img.Stride : y*img.Stride+b.Width*4]
		for x := 0; x < b.Width; x++ {
			out[x*4], out[x*4+1], out[x*4+2], out[x*4+3] = in[x*3], in[x*3+1], in[x*3+2], 0xff
		}
	}
	return img
}
