package ppu

import "fmt"

const (
	// VRAMSize is the size of VRAM in bytes (8KB).
	VRAMSize = 0x2000
	// TileCount is the number of tiles in the tile data region.
	TileCount = 384
	// TileBytes is the number of bytes encoding one tile.
	TileBytes = 16

	tileMap0Base = 0x1800 // 0x9800 - 0x8000
	tileMap1Base = 0x1C00 // 0x9C00 - 0x8000
	tileMapSize  = 32     // tiles per map row and column
)

// Tile is a decoded 8x8 tile, indexed [row][column], each pixel 0-3.
type Tile [8][8]uint8

// DecodeRow unpacks one tile row from its two bit-planes. Bit 7 of each byte
// is the leftmost pixel; lo supplies bit 0 and hi bit 1 of each pixel.
func DecodeRow(lo, hi uint8) [8]uint8 {
	var row [8]uint8
	for x := range 8 {
		shift := 7 - x
		row[x] = (hi>>shift&1)<<1 | lo>>shift&1
	}
	return row
}

// ReadVRAM reads a byte from VRAM. addr is relative to 0x8000.
func (p *PPU) ReadVRAM(addr uint16) (uint8, error) {
	if addr >= VRAMSize {
		return 0xFF, fmt.Errorf("%w: VRAM offset 0x%04X", ErrAddressOutOfRange, addr)
	}
	return p.vram[addr], nil
}

// WriteVRAM writes a byte to VRAM. addr is relative to 0x8000. Writes into
// the tile data region refresh the decoded row of the affected tile.
func (p *PPU) WriteVRAM(addr uint16, value uint8) error {
	if addr >= VRAMSize {
		return fmt.Errorf("%w: VRAM offset 0x%04X", ErrAddressOutOfRange, addr)
	}
	p.vram[addr] = value
	if addr >= tileMap0Base {
		return nil
	}

	// Always decode from both bytes of the row pair.
	rowStart := addr &^ 1
	tile := addr / TileBytes
	row := (addr % TileBytes) / 2
	p.tiles[tile][row] = DecodeRow(p.vram[rowStart], p.vram[rowStart+1])
	return nil
}

// Tile returns the decoded tile at index i (0-383).
func (p *PPU) Tile(i int) (Tile, error) {
	if i < 0 || i >= TileCount {
		return Tile{}, fmt.Errorf("%w: tile %d", ErrAddressOutOfRange, i)
	}
	return p.tiles[i], nil
}
