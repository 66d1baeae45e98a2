package ppu

import (
	"errors"
	"testing"
)

// writeTile fills all eight rows of tile index with the same pair of bytes.
func writeTile(t *testing.T, p *PPU, index int, lo, hi uint8) {
	t.Helper()
	base := uint16(index * TileBytes) //nolint:gosec // Test helper, values are controlled
	for row := range uint16(8) {
		if err := p.WriteVRAM(base+row*2, lo); err != nil {
			t.Fatal(err)
		}
		if err := p.WriteVRAM(base+row*2+1, hi); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDecodeRow(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi uint8
		want   [8]uint8
	}{
		{"blank", 0x00, 0x00, [8]uint8{0, 0, 0, 0, 0, 0, 0, 0}},
		{"low plane", 0xFF, 0x00, [8]uint8{1, 1, 1, 1, 1, 1, 1, 1}},
		{"high plane", 0x00, 0xFF, [8]uint8{2, 2, 2, 2, 2, 2, 2, 2}},
		{"both planes", 0xFF, 0xFF, [8]uint8{3, 3, 3, 3, 3, 3, 3, 3}},
		{"checkerboard", 0xAA, 0xAA, [8]uint8{3, 0, 3, 0, 3, 0, 3, 0}},
		{"interleaved", 0xAA, 0x55, [8]uint8{1, 2, 1, 2, 1, 2, 1, 2}},
		{"leftmost only", 0x80, 0x00, [8]uint8{1, 0, 0, 0, 0, 0, 0, 0}},
		{"rightmost only", 0x00, 0x01, [8]uint8{0, 0, 0, 0, 0, 0, 0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeRow(tt.lo, tt.hi); got != tt.want {
				t.Errorf("DecodeRow(0x%02X, 0x%02X) = %v, want %v", tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestTileCacheFollowsWrites(t *testing.T) {
	p := New(nil)

	// Tile 7: each row encodes its own row number in both planes.
	base := uint16(7 * TileBytes)
	for row := range uint16(8) {
		v := uint8(1 << row) //nolint:gosec // Test values are controlled
		if err := p.WriteVRAM(base+row*2, v); err != nil {
			t.Fatal(err)
		}
		if err := p.WriteVRAM(base+row*2+1, v); err != nil {
			t.Fatal(err)
		}
	}

	tile, err := p.Tile(7)
	if err != nil {
		t.Fatal(err)
	}
	for row := range 8 {
		for col := range 8 {
			want := uint8(0)
			if col == 7-row {
				want = 3
			}
			if tile[row][col] != want {
				t.Errorf("tile 7 [%d][%d] = %d, want %d", row, col, tile[row][col], want)
			}
		}
	}
}

func TestTileCacheRowPairing(t *testing.T) {
	p := New(nil)

	// Writing the high byte first and the low byte second must leave the
	// row reflecting both bytes.
	if err := p.WriteVRAM(0x0013, 0xFF); err != nil {
		t.Fatal(err)
	}
	tile, _ := p.Tile(1)
	if want := [8]uint8{2, 2, 2, 2, 2, 2, 2, 2}; tile[1] != want {
		t.Errorf("after high byte, row = %v, want %v", tile[1], want)
	}

	if err := p.WriteVRAM(0x0012, 0x0F); err != nil {
		t.Fatal(err)
	}
	tile, _ = p.Tile(1)
	if want := [8]uint8{2, 2, 2, 2, 3, 3, 3, 3}; tile[1] != want {
		t.Errorf("after low byte, row = %v, want %v", tile[1], want)
	}

	// Other rows are untouched.
	if tile[0] != ([8]uint8{}) || tile[2] != ([8]uint8{}) {
		t.Errorf("neighbouring rows changed: %v %v", tile[0], tile[2])
	}
}

func TestTileCacheLastTile(t *testing.T) {
	p := New(nil)
	writeTile(t, p, TileCount-1, 0xFF, 0xFF)

	tile, err := p.Tile(TileCount - 1)
	if err != nil {
		t.Fatal(err)
	}
	for row := range 8 {
		if want := [8]uint8{3, 3, 3, 3, 3, 3, 3, 3}; tile[row] != want {
			t.Errorf("tile 383 row %d = %v, want %v", row, tile[row], want)
		}
	}
}

func TestTileMapWritesSkipCache(t *testing.T) {
	p := New(nil)

	if err := p.WriteVRAM(tileMap0Base, 0xFF); err != nil {
		t.Fatal(err)
	}
	if err := p.WriteVRAM(VRAMSize-1, 0xFF); err != nil {
		t.Fatal(err)
	}

	for i := range TileCount {
		if tile, _ := p.Tile(i); tile != (Tile{}) {
			t.Fatalf("tile %d changed after a tile map write", i)
		}
	}
	if got, _ := p.ReadVRAM(tileMap0Base); got != 0xFF {
		t.Errorf("VRAM[0x1800] = 0x%02X, want 0xFF", got)
	}
}

func TestVRAMBounds(t *testing.T) {
	p := New(nil)

	if err := p.WriteVRAM(VRAMSize, 0x01); !errors.Is(err, ErrAddressOutOfRange) {
		t.Errorf("WriteVRAM(0x2000) error = %v, want ErrAddressOutOfRange", err)
	}
	if _, err := p.ReadVRAM(VRAMSize); !errors.Is(err, ErrAddressOutOfRange) {
		t.Errorf("ReadVRAM(0x2000) error = %v, want ErrAddressOutOfRange", err)
	}
	if _, err := p.Tile(TileCount); !errors.Is(err, ErrAddressOutOfRange) {
		t.Errorf("Tile(384) error = %v, want ErrAddressOutOfRange", err)
	}
}
