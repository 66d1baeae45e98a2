package ppu

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// PPU register addresses in the I/O page.
const (
	AddrLCDC = 0xFF40 // LCD Control
	AddrSTAT = 0xFF41 // LCD Status
	AddrSCY  = 0xFF42 // Scroll Y
	AddrSCX  = 0xFF43 // Scroll X
	AddrLY   = 0xFF44 // Current scanline (read-only)
	AddrLYC  = 0xFF45 // LY Compare
	AddrWY   = 0xFF4A // Window Y
	AddrWX   = 0xFF4B // Window X
)

const (
	// LCDCLCDEnable is the LCDC bit for LCD Display Enable.
	LCDCLCDEnable = 1 << 7
	// LCDCWindowTileMap is the LCDC bit for Window Tile Map select.
	LCDCWindowTileMap = 1 << 6
	// LCDCWindowEnable is the LCDC bit for Window Display Enable.
	LCDCWindowEnable = 1 << 5
	// LCDCBGTileData is the LCDC bit for BG & Window Tile Data select.
	LCDCBGTileData = 1 << 4
	// LCDCBGTileMap is the LCDC bit for BG Tile Map select.
	LCDCBGTileMap = 1 << 3
	// LCDCOBJSize is the LCDC bit for OBJ (sprite) size (0=8x8, 1=8x16).
	LCDCOBJSize = 1 << 2
	// LCDCOBJEnable is the LCDC bit for OBJ (sprite) Display Enable.
	LCDCOBJEnable = 1 << 1
	// LCDCBGEnable is the LCDC bit for BG Display Enable.
	LCDCBGEnable = 1 << 0
)

const (
	// STATLYCInterrupt is the STAT bit for LYC=LY Interrupt.
	STATLYCInterrupt = 1 << 6
	// STATMode2Interrupt is the STAT bit for Mode 2 OAM Interrupt.
	STATMode2Interrupt = 1 << 5
	// STATMode1Interrupt is the STAT bit for Mode 1 V-Blank Interrupt.
	STATMode1Interrupt = 1 << 4
	// STATMode0Interrupt is the STAT bit for Mode 0 H-Blank Interrupt.
	STATMode0Interrupt = 1 << 3
	// STATLYCFlag is the STAT bit for LYC=LY Flag.
	STATLYCFlag = 1 << 2
	// STATModeMask is the mask for STAT mode bits.
	STATModeMask = 0x03
)

var (
	// ErrUnimplementedRegister indicates an access to an I/O address the PPU
	// does not implement.
	ErrUnimplementedRegister = errors.New("unimplemented register")

	// ErrAddressOutOfRange indicates a VRAM or OAM offset past the end of
	// the memory.
	ErrAddressOutOfRange = errors.New("address out of range")

	// ErrInvalidEncoding indicates a register field value with no defined
	// meaning.
	ErrInvalidEncoding = errors.New("invalid encoded value")
)

// TileMapArea selects one of the two 32x32 tile maps.
type TileMapArea uint8

const (
	// TileMap9800 is the map at 0x9800-0x9BFF.
	TileMap9800 TileMapArea = 0
	// TileMap9C00 is the map at 0x9C00-0x9FFF.
	TileMap9C00 TileMapArea = 1
)

// ParseTileMapArea decodes a one-bit LCDC field.
func ParseTileMapArea(v uint8) (TileMapArea, error) {
	switch v {
	case 0:
		return TileMap9800, nil
	case 1:
		return TileMap9C00, nil
	}
	return 0, fmt.Errorf("%w: tile map area %d", ErrInvalidEncoding, v)
}

// base returns the VRAM offset of the map.
func (a TileMapArea) base() uint16 {
	if a == TileMap9C00 {
		return tileMap1Base
	}
	return tileMap0Base
}

// TileDataArea selects how background and window tile numbers are resolved.
type TileDataArea uint8

const (
	// TileData8800 resolves tile numbers as signed offsets from tile 256.
	TileData8800 TileDataArea = 0
	// TileData8000 resolves tile numbers 0-255 directly.
	TileData8000 TileDataArea = 1
)

// ParseTileDataArea decodes a one-bit LCDC field.
func ParseTileDataArea(v uint8) (TileDataArea, error) {
	switch v {
	case 0:
		return TileData8800, nil
	case 1:
		return TileData8000, nil
	}
	return 0, fmt.Errorf("%w: tile data area %d", ErrInvalidEncoding, v)
}

// tileIndex maps a tile map entry to an index in the tile cache.
func (a TileDataArea) tileIndex(n uint8) int {
	if a == TileData8000 {
		return int(n)
	}
	return 256 + int(int8(n)) //nolint:gosec // Intentional signed conversion
}

// ObjectSize is the sprite height mode.
type ObjectSize uint8

const (
	// ObjectSize8x8 selects 8x8 sprites.
	ObjectSize8x8 ObjectSize = 0
	// ObjectSize8x16 selects 8x16 sprites.
	ObjectSize8x16 ObjectSize = 1
)

// ParseObjectSize decodes a one-bit LCDC field.
func ParseObjectSize(v uint8) (ObjectSize, error) {
	switch v {
	case 0:
		return ObjectSize8x8, nil
	case 1:
		return ObjectSize8x16, nil
	}
	return 0, fmt.Errorf("%w: object size %d", ErrInvalidEncoding, v)
}

// Height returns the sprite height in pixels.
func (s ObjectSize) Height() uint8 {
	if s == ObjectSize8x16 {
		return 16
	}
	return 8
}

// lcdControl is the decoded LCDC register.
type lcdControl struct {
	enabled       bool         // bit 7
	windowTileMap TileMapArea  // bit 6
	windowEnabled bool         // bit 5
	tileData      TileDataArea // bit 4
	bgTileMap     TileMapArea  // bit 3
	objSize       ObjectSize   // bit 2
	objEnabled    bool         // bit 1
	bgEnabled     bool         // bit 0
}

// parseLCDControl splits an LCDC byte into its fields.
func parseLCDControl(v uint8) (lcdControl, error) {
	windowMap, err := ParseTileMapArea(v >> 6 & 1)
	if err != nil {
		return lcdControl{}, err
	}
	tileData, err := ParseTileDataArea(v >> 4 & 1)
	if err != nil {
		return lcdControl{}, err
	}
	bgMap, err := ParseTileMapArea(v >> 3 & 1)
	if err != nil {
		return lcdControl{}, err
	}
	objSize, err := ParseObjectSize(v >> 2 & 1)
	if err != nil {
		return lcdControl{}, err
	}
	return lcdControl{
		enabled:       v&LCDCLCDEnable != 0,
		windowTileMap: windowMap,
		windowEnabled: v&LCDCWindowEnable != 0,
		tileData:      tileData,
		bgTileMap:     bgMap,
		objSize:       objSize,
		objEnabled:    v&LCDCOBJEnable != 0,
		bgEnabled:     v&LCDCBGEnable != 0,
	}, nil
}

func (c lcdControl) encode() uint8 {
	v := uint8(c.windowTileMap)<<6 |
		uint8(c.tileData)<<4 |
		uint8(c.bgTileMap)<<3 |
		uint8(c.objSize)<<2
	if c.enabled {
		v |= LCDCLCDEnable
	}
	if c.windowEnabled {
		v |= LCDCWindowEnable
	}
	if c.objEnabled {
		v |= LCDCOBJEnable
	}
	if c.bgEnabled {
		v |= LCDCBGEnable
	}
	return v
}

// statEnable holds the four writable interrupt-enable bits of STAT.
type statEnable struct {
	coincidence bool // bit 6
	oam         bool // bit 5
	vblank      bool // bit 4
	hblank      bool // bit 3
}

func decodeSTAT(v uint8) statEnable {
	return statEnable{
		coincidence: v&STATLYCInterrupt != 0,
		oam:         v&STATMode2Interrupt != 0,
		vblank:      v&STATMode1Interrupt != 0,
		hblank:      v&STATMode0Interrupt != 0,
	}
}

// readSTAT assembles STAT: bit 7 reads as 1, bit 2 is the live LY=LYC
// comparison and bits 1-0 are the mode.
func (p *PPU) readSTAT() uint8 {
	v := uint8(0x80) | uint8(p.mode)&STATModeMask
	if p.stat.coincidence {
		v |= STATLYCInterrupt
	}
	if p.stat.oam {
		v |= STATMode2Interrupt
	}
	if p.stat.vblank {
		v |= STATMode1Interrupt
	}
	if p.stat.hblank {
		v |= STATMode0Interrupt
	}
	if p.ly == p.lyc {
		v |= STATLYCFlag
	}
	return v
}

// ReadRegister reads a PPU register.
func (p *PPU) ReadRegister(addr uint16) (uint8, error) {
	switch addr {
	case AddrLCDC:
		return p.lcdc.encode(), nil
	case AddrSTAT:
		return p.readSTAT(), nil
	case AddrSCY:
		return p.scy, nil
	case AddrSCX:
		return p.scx, nil
	case AddrLY:
		return p.ly, nil
	case AddrLYC:
		return p.lyc, nil
	case AddrWY:
		return p.wy, nil
	case AddrWX:
		return p.wx, nil
	default:
		return 0xFF, fmt.Errorf("%w: read 0x%04X", ErrUnimplementedRegister, addr)
	}
}

// WriteRegister writes to a PPU register. Writes to LY and to the read-only
// STAT bits are ignored.
func (p *PPU) WriteRegister(addr uint16, value uint8) error {
	switch addr {
	case AddrLCDC:
		c, err := parseLCDControl(value)
		if err != nil {
			return err
		}
		if c.enabled != p.lcdc.enabled {
			p.log.WithFields(logrus.Fields{
				"ly":   p.ly,
				"mode": p.mode.String(),
			}).Debugf("LCD enabled=%v", c.enabled)
		}
		p.lcdc = c
	case AddrSTAT:
		p.stat = decodeSTAT(value)
	case AddrSCY:
		p.scy = value
	case AddrSCX:
		p.scx = value
	case AddrLY:
		// LY is driven by the state machine only
	case AddrLYC:
		p.lyc = value
	case AddrWY:
		p.wy = value
	case AddrWX:
		p.wx = value
	default:
		return fmt.Errorf("%w: write 0x%04X", ErrUnimplementedRegister, addr)
	}
	return nil
}
