package ppu

import (
	"cmp"
	"fmt"
	"slices"
)

const (
	// OAMSize is the size of OAM in bytes (160 bytes).
	OAMSize = 0xA0
	// SpriteCount is the number of sprites held in OAM.
	SpriteCount = 40
	// SpritesPerLine is the most sprites drawn on one scanline.
	SpritesPerLine = 10

	bytesPerSprite = 4
)

const (
	// SpriteAttrPriority is the sprite attribute bit for priority (0=Above BG, 1=Behind BG colors 1-3).
	SpriteAttrPriority = 1 << 7
	// SpriteAttrYFlip is the sprite attribute bit for vertical flip.
	SpriteAttrYFlip = 1 << 6
	// SpriteAttrXFlip is the sprite attribute bit for horizontal flip.
	SpriteAttrXFlip = 1 << 5
	// SpriteAttrPalette is the sprite attribute bit for palette number (0=OBP0, 1=OBP1).
	SpriteAttrPalette = 1 << 4
)

// Sprite is the decoded form of one OAM entry. X and Y already carry the
// hardware bias (-8 and -16, wrapping), so 0 is the left or top screen edge.
type Sprite struct {
	Y               uint8
	X               uint8
	Tile            uint8
	AboveBackground bool
	FlipY           bool
	FlipX           bool
	Palette         uint8

	// Index is the OAM slot (0-39). It never changes and only breaks ties
	// between sprites at the same X.
	Index int
}

// newSprite returns slot index as decoded from zeroed OAM (0-16 and 0-8,
// wrapped).
func newSprite(index int) Sprite {
	return Sprite{Y: 240, X: 248, AboveBackground: true, Index: index}
}

// setAttributes decodes OAM byte 3. Bits 0-3 are CGB only.
func (s *Sprite) setAttributes(v uint8) {
	s.AboveBackground = v&SpriteAttrPriority == 0
	s.FlipY = v&SpriteAttrYFlip != 0
	s.FlipX = v&SpriteAttrXFlip != 0
	s.Palette = v >> 4 & 1
}

// compareSprites orders sprites by drawing priority: lower X first, then
// lower OAM index.
func compareSprites(a, b Sprite) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// ReadOAM reads a byte from OAM. addr is relative to 0xFE00.
func (p *PPU) ReadOAM(addr uint16) (uint8, error) {
	if addr >= OAMSize {
		return 0xFF, fmt.Errorf("%w: OAM offset 0x%04X", ErrAddressOutOfRange, addr)
	}
	return p.oam[addr], nil
}

// WriteOAM writes a byte to OAM and updates the decoded sprite field.
// addr is relative to 0xFE00.
func (p *PPU) WriteOAM(addr uint16, value uint8) error {
	if addr >= OAMSize {
		return fmt.Errorf("%w: OAM offset 0x%04X", ErrAddressOutOfRange, addr)
	}
	p.oam[addr] = value

	s := &p.objs[addr/bytesPerSprite]
	switch addr % bytesPerSprite {
	case 0:
		s.Y = value - 16
	case 1:
		s.X = value - 8
	case 2:
		s.Tile = value
	case 3:
		s.setAttributes(value)
	}
	return nil
}

// Sprite returns the decoded sprite in OAM slot i.
func (p *PPU) Sprite(i int) (Sprite, error) {
	if i < 0 || i >= SpriteCount {
		return Sprite{}, fmt.Errorf("%w: sprite %d", ErrAddressOutOfRange, i)
	}
	return p.objs[i], nil
}

// selectSprites returns the sprites covering line in priority order, at
// most SpritesPerLine of them. The returned slice is reused between calls.
func (p *PPU) selectSprites(line, height uint8) []Sprite {
	p.lineSprites = p.lineSprites[:0]
	for _, s := range p.objs {
		// Wrapping subtraction: sprites above the top edge underflow to
		// large values and are rejected together with those below.
		if line-s.Y < height {
			p.lineSprites = append(p.lineSprites, s)
		}
	}
	slices.SortFunc(p.lineSprites, compareSprites)
	if len(p.lineSprites) > SpritesPerLine {
		p.lineSprites = p.lineSprites[:SpritesPerLine]
	}
	return p.lineSprites
}
