// Package ppu implements the Game Boy Picture Processing Unit (PPU).
// The PPU owns video RAM and OAM, runs the scanline timing state machine and
// composites the background, window and sprite layers into the screen buffer.
package ppu

import (
	"io"

	"github.com/sirupsen/logrus"
)

const (
	// ScreenWidth is the Game Boy screen width in pixels.
	ScreenWidth = 160
	// ScreenHeight is the Game Boy screen height in pixels.
	ScreenHeight = 144
)

// Mode is one of the four PPU timing phases. The numeric values are the ones
// reported in the low two bits of STAT.
type Mode uint8

const (
	// ModeHBlank is the horizontal blank at the end of a visible scanline.
	ModeHBlank Mode = 0
	// ModeVBlank is the vertical blank period (LY 144-153).
	ModeVBlank Mode = 1
	// ModeOAMScan is the OAM scan at the start of a visible scanline.
	ModeOAMScan Mode = 2
	// ModeTransfer is the pixel transfer phase, during which VRAM is read.
	ModeTransfer Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeHBlank:
		return "HBlank"
	case ModeVBlank:
		return "VBlank"
	case ModeOAMScan:
		return "OAMScan"
	case ModeTransfer:
		return "Transfer"
	default:
		return "Mode(?)"
	}
}

const (
	// DotsPerScanline is the total number of dots per scanline.
	DotsPerScanline = 456
	// DotsOAMScan is the duration of Mode 2 (OAM Scan) in dots.
	DotsOAMScan = 80
	// DotsTransfer is the duration of Mode 3 (Transfer) in dots.
	DotsTransfer = 172
	// DotsHBlank is the duration of Mode 0 (H-Blank) in dots.
	DotsHBlank = 204
	// ScanlinesVisible is the number of visible scanlines.
	ScanlinesVisible = 144
	// ScanlinesTotal is the total number of scanlines per frame.
	ScanlinesTotal = 154
	// DotsPerFrame is the total number of dots per frame.
	DotsPerFrame = DotsPerScanline * ScanlinesTotal
)

// Interrupt identifies an interrupt request raised by the PPU. The values are
// the bit positions in the IF register.
type Interrupt uint8

const (
	// InterruptVBlank is raised once per frame on entry to line 144.
	InterruptVBlank Interrupt = 0
	// InterruptLCD is the LCD STAT interrupt.
	InterruptLCD Interrupt = 1
)

func (i Interrupt) String() string {
	switch i {
	case InterruptVBlank:
		return "VBlank"
	case InterruptLCD:
		return "LCD"
	default:
		return "Interrupt(?)"
	}
}

// Framebuffer holds one 2-bit shade value (0-3) per screen pixel.
type Framebuffer [ScreenHeight][ScreenWidth]uint8

// PPU represents the Game Boy Picture Processing Unit.
type PPU struct {
	// Video memory
	vram  [VRAMSize]uint8 // VRAM (0x8000-0x9FFF)
	tiles [TileCount]Tile // decoded view of the tile data region
	oam   [OAMSize]uint8  // Object Attribute Memory (0xFE00-0xFE9F)
	objs  [SpriteCount]Sprite

	// Registers
	lcdc lcdControl // LCD Control (0xFF40)
	stat statEnable // interrupt-enable half of LCD Status (0xFF41)
	scy  uint8      // Scroll Y (0xFF42)
	scx  uint8      // Scroll X (0xFF43)
	ly   uint8      // Current Scanline (0xFF44)
	lyc  uint8      // LY Compare (0xFF45)
	wy   uint8      // Window Y Position (0xFF4A)
	wx   uint8      // Window X Position (0xFF4B)

	// State
	mode Mode
	dots int // dots elapsed in the current mode

	// Layer composites, one row refreshed per render
	background [256][256]uint8
	window     [256][256]uint8

	// Screen buffer: 160x144 pixels, 2 bits per pixel
	framebuffer Framebuffer

	// Reused sprite selection buffer
	lineSprites []Sprite

	requestInterrupt func(Interrupt)
	log              logrus.FieldLogger
}

// Option configures a PPU.
type Option func(*PPU)

// WithLogger sets the logger used for LCD power transitions.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *PPU) {
		p.log = l
	}
}

// New creates a new PPU instance. requestInterrupt is called for every
// interrupt the PPU raises; it may be nil.
func New(requestInterrupt func(Interrupt), opts ...Option) *PPU {
	p := &PPU{
		requestInterrupt: requestInterrupt,
		lineSprites:      make([]Sprite, 0, SpriteCount),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.log = l
	}
	p.Reset()
	return p
}

// Reset restores the power-on state: LCD on, background on, unsigned tile
// addressing, line 0 in OAM scan. Memory and the screen buffer are cleared.
func (p *PPU) Reset() {
	p.vram = [VRAMSize]uint8{}
	p.tiles = [TileCount]Tile{}
	p.oam = [OAMSize]uint8{}
	for i := range p.objs {
		p.objs[i] = newSprite(i)
	}

	p.lcdc = lcdControl{enabled: true, tileData: TileData8000, bgEnabled: true} // 0x91
	p.stat = statEnable{}
	p.scy, p.scx = 0, 0
	p.ly, p.lyc = 0, 0
	p.wy, p.wx = 0, 0

	p.mode = ModeOAMScan
	p.dots = 0
	p.framebuffer = Framebuffer{}
}

// Step advances the PPU by the specified number of dots (T-cycles). Every
// threshold crossed within the call is processed, with excess dots carried
// into the next mode. While the LCD is disabled Step does nothing.
func (p *PPU) Step(cycles int) {
	if !p.lcdc.enabled || cycles <= 0 {
		return
	}

	p.dots += cycles
	for p.dots >= p.mode.duration() {
		p.dots -= p.mode.duration()
		p.advance()
	}
}

func (m Mode) duration() int {
	switch m {
	case ModeOAMScan:
		return DotsOAMScan
	case ModeTransfer:
		return DotsTransfer
	case ModeHBlank:
		return DotsHBlank
	default:
		return DotsPerScanline
	}
}

// advance performs the transition out of the current mode.
func (p *PPU) advance() {
	switch p.mode {
	case ModeOAMScan:
		p.mode = ModeTransfer

	case ModeTransfer:
		p.mode = ModeHBlank
		p.renderScanline()
		if p.stat.hblank {
			p.raise(InterruptLCD)
		}

	case ModeHBlank:
		p.ly++
		if p.ly >= ScanlinesVisible {
			p.mode = ModeVBlank
			if p.stat.vblank {
				p.raise(InterruptLCD)
			}
			p.raise(InterruptVBlank)
		} else {
			p.mode = ModeOAMScan
		}
		p.checkCoincidence()

	case ModeVBlank:
		p.ly++
		if p.ly >= ScanlinesTotal {
			p.ly = 0
			p.mode = ModeOAMScan
			if p.stat.oam {
				p.raise(InterruptLCD)
			}
		}
		p.checkCoincidence()
	}
}

// checkCoincidence raises the STAT interrupt when LY has just landed on LYC.
func (p *PPU) checkCoincidence() {
	if p.stat.coincidence && p.ly == p.lyc {
		p.raise(InterruptLCD)
	}
}

func (p *PPU) raise(i Interrupt) {
	if p.requestInterrupt != nil {
		p.requestInterrupt(i)
	}
}

// Mode returns the current PPU mode.
func (p *PPU) Mode() Mode {
	return p.mode
}

// LY returns the current scanline.
func (p *PPU) LY() uint8 {
	return p.ly
}

// Dots returns the dots elapsed in the current mode.
func (p *PPU) Dots() int {
	return p.dots
}

// Enabled reports whether the LCD is switched on.
func (p *PPU) Enabled() bool {
	return p.lcdc.enabled
}

// Framebuffer returns a pointer to the screen buffer. It must only be read
// between Step calls.
func (p *PPU) Framebuffer() *Framebuffer {
	return &p.framebuffer
}
