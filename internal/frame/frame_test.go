package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/richardwooding/dotmatrix/internal/ppu"
	"golang.org/x/image/bmp"
)

// gradient returns a screen buffer where every pixel's shade depends on its
// position.
func gradient() *ppu.Framebuffer {
	fb := &ppu.Framebuffer{}
	for y := range ppu.ScreenHeight {
		for x := range ppu.ScreenWidth {
			fb[y][x] = uint8((x/3 + y) % 4) //nolint:gosec // Test values are controlled
		}
	}
	return fb
}

func TestImage(t *testing.T) {
	fb := gradient()
	img := Image(fb)

	if b := img.Bounds(); b.Dx() != ppu.ScreenWidth || b.Dy() != ppu.ScreenHeight {
		t.Fatalf("bounds = %v, want 160x144", b)
	}
	for _, p := range []image.Point{{0, 0}, {5, 7}, {159, 143}} {
		if got := img.ColorIndexAt(p.X, p.Y); got != fb[p.Y][p.X] {
			t.Errorf("index at %v = %d, want %d", p, got, fb[p.Y][p.X])
		}
	}

	// Shade 0 is the lightest.
	if got := img.At(0, 0).(color.Gray); fb[0][0] == 0 && got.Y != 0xFF {
		t.Errorf("shade 0 = %v, want white", got)
	}
}

func TestScale(t *testing.T) {
	img := Image(gradient())

	scaled, err := Scale(img, 3)
	if err != nil {
		t.Fatal(err)
	}
	if b := scaled.Bounds(); b.Dx() != 480 || b.Dy() != 432 {
		t.Fatalf("bounds = %v, want 480x432", b)
	}

	for _, p := range []image.Point{{0, 0}, {10, 20}, {159, 143}} {
		want := color.RGBAModel.Convert(img.At(p.X, p.Y))
		for dy := range 3 {
			for dx := range 3 {
				if got := scaled.At(p.X*3+dx, p.Y*3+dy); got != want {
					t.Fatalf("scaled pixel of %v = %v, want %v", p, got, want)
				}
			}
		}
	}

	if _, err := Scale(img, 0); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("Scale(0) error = %v, want ErrInvalidScale", err)
	}
}

func TestWritePNG(t *testing.T) {
	fb := gradient()

	var buf bytes.Buffer
	if err := WritePNG(&buf, fb, 2); err != nil {
		t.Fatalf("WritePNG() error: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 288 {
		t.Errorf("bounds = %v, want 320x288", b)
	}

	gray := color.GrayModel.Convert(img.At(2*9+1, 2*4+1)).(color.Gray)
	if want := Palette[fb[4][9]].(color.Gray); gray != want {
		t.Errorf("pixel (9, 4) = %v, want %v", gray, want)
	}
}

func TestEncodeBMP(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Image(gradient()), "bmp", 1); err != nil {
		t.Fatalf("Encode(bmp) error: %v", err)
	}
	img, err := bmp.Decode(&buf)
	if err != nil {
		t.Fatalf("bmp.Decode() error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != ppu.ScreenWidth || b.Dy() != ppu.ScreenHeight {
		t.Errorf("bounds = %v, want 160x144", b)
	}

	if err := Encode(&buf, Image(gradient()), "gif", 1); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Encode(gif) error = %v, want ErrUnknownFormat", err)
	}
}

func TestPack(t *testing.T) {
	fb := &ppu.Framebuffer{}
	fb[0][0], fb[0][1], fb[0][2], fb[0][3] = 3, 2, 1, 0
	fb[143][159] = 3

	data := Pack(fb)
	if len(data) != PackedSize {
		t.Fatalf("len = %d, want %d", len(data), PackedSize)
	}
	if data[0] != 0b11_10_01_00 {
		t.Errorf("data[0] = %08b, want 11100100", data[0])
	}
	if data[PackedSize-1] != 0x03 {
		t.Errorf("last byte = %02X, want 03", data[PackedSize-1])
	}

	got, err := Unpack(Pack(gradient()))
	if err != nil {
		t.Fatal(err)
	}
	if *got != *gradient() {
		t.Error("Unpack(Pack(fb)) differs from fb")
	}

	if _, err := Unpack(data[:10]); !errors.Is(err, ErrPackedSize) {
		t.Errorf("Unpack(short) error = %v, want ErrPackedSize", err)
	}
}

func TestHash(t *testing.T) {
	a, b := gradient(), gradient()

	if Hash(a) != Hash(b) {
		t.Error("equal frames hash differently")
	}

	b[77][33] ^= 1
	if Hash(a) == Hash(b) {
		t.Error("one changed pixel kept the hash")
	}

	s := HashString(a)
	if len(s) != 16 {
		t.Errorf("HashString() = %q, want 16 hex digits", s)
	}
	if FormatHash(0xAB) != "00000000000000ab" {
		t.Errorf("FormatHash(0xAB) = %q", FormatHash(0xAB))
	}
}

func TestTileSheet(t *testing.T) {
	p := ppu.New(nil)
	// Tile 17 row 0: shade 3 everywhere; tile 383 row 7: shade 1.
	for _, w := range []struct {
		addr  uint16
		value uint8
	}{
		{17 * ppu.TileBytes, 0xFF},
		{17*ppu.TileBytes + 1, 0xFF},
		{383*ppu.TileBytes + 14, 0xFF},
	} {
		if err := p.WriteVRAM(w.addr, w.value); err != nil {
			t.Fatal(err)
		}
	}

	img, err := TileSheet(p)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 192 {
		t.Fatalf("bounds = %v, want 128x192", b)
	}

	// Tile 17 is column 1, row 1.
	if got := img.ColorIndexAt(8, 8); got != 3 {
		t.Errorf("tile 17 pixel = %d, want 3", got)
	}
	if got := img.ColorIndexAt(8, 9); got != 0 {
		t.Errorf("tile 17 row 1 = %d, want 0", got)
	}
	// Tile 383 is the bottom right tile.
	if got := img.ColorIndexAt(127, 191); got != 1 {
		t.Errorf("tile 383 pixel = %d, want 1", got)
	}
}
