// Package frame converts PPU screen buffers into images, packed bytes and
// hashes.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/richardwooding/dotmatrix/internal/ppu"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// PackedSize is the length of a packed frame: four pixels per byte.
const PackedSize = ppu.ScreenWidth * ppu.ScreenHeight / 4

var (
	// ErrInvalidScale indicates a scale factor below 1.
	ErrInvalidScale = errors.New("invalid scale factor")
	// ErrUnknownFormat indicates an image format other than png or bmp.
	ErrUnknownFormat = errors.New("unknown image format")
	// ErrPackedSize indicates packed frame data of the wrong length.
	ErrPackedSize = errors.New("packed frame has wrong size")
)

// Palette maps shades 0-3 to grays, shade 0 lightest.
var Palette = color.Palette{
	color.Gray{Y: 0xFF},
	color.Gray{Y: 0xAA},
	color.Gray{Y: 0x55},
	color.Gray{Y: 0x00},
}

// Image returns the screen buffer as a paletted image.
func Image(fb *ppu.Framebuffer) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight), Palette)
	for y := range ppu.ScreenHeight {
		row := img.Pix[y*img.Stride : y*img.Stride+ppu.ScreenWidth]
		for x, shade := range fb[y] {
			row[x] = shade & 0x03
		}
	}
	return img
}

// Scale enlarges src by an integer factor without smoothing.
func Scale(src image.Image, n int) (*image.RGBA, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScale, n)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*n, b.Dy()*n))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

// Encode writes img scaled by scale in the named format ("png" or "bmp").
func Encode(w io.Writer, img image.Image, format string, scale int) error {
	out := img
	if scale != 1 {
		scaled, err := Scale(img, scale)
		if err != nil {
			return err
		}
		out = scaled
	}

	switch strings.ToLower(format) {
	case "png", "":
		return png.Encode(w, out)
	case "bmp":
		return bmp.Encode(w, out)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WritePNG writes the screen buffer as a PNG scaled by scale.
func WritePNG(w io.Writer, fb *ppu.Framebuffer, scale int) error {
	return Encode(w, Image(fb), "png", scale)
}

// Pack returns the screen buffer with four pixels per byte, leftmost pixel
// in the high bits.
func Pack(fb *ppu.Framebuffer) []byte {
	out := make([]byte, PackedSize)
	i := 0
	for y := range ppu.ScreenHeight {
		for x := 0; x < ppu.ScreenWidth; x += 4 {
			out[i] = fb[y][x]&3<<6 | fb[y][x+1]&3<<4 | fb[y][x+2]&3<<2 | fb[y][x+3]&3
			i++
		}
	}
	return out
}

// Unpack is the inverse of Pack.
func Unpack(data []byte) (*ppu.Framebuffer, error) {
	if len(data) != PackedSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrPackedSize, len(data), PackedSize)
	}
	fb := &ppu.Framebuffer{}
	for i, b := range data {
		y, x := i*4/ppu.ScreenWidth, i*4%ppu.ScreenWidth
		fb[y][x] = b >> 6 & 3
		fb[y][x+1] = b >> 4 & 3
		fb[y][x+2] = b >> 2 & 3
		fb[y][x+3] = b & 3
	}
	return fb, nil
}

// Hash returns the xxhash of the packed screen buffer.
func Hash(fb *ppu.Framebuffer) uint64 {
	return xxhash.Sum64(Pack(fb))
}

// HashString returns Hash as 16 lowercase hex digits.
func HashString(fb *ppu.Framebuffer) string {
	return FormatHash(Hash(fb))
}

// FormatHash formats a frame hash as 16 lowercase hex digits.
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
