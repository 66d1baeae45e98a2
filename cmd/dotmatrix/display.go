package main

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/richardwooding/dotmatrix/internal/ppu"
)

// DMG palette colors (classic Game Boy green tones).
var dmgPalette = [4]color.RGBA{
	{0xE0, 0xF8, 0xD0, 0xFF}, // White (lightest)
	{0x88, 0xC0, 0x70, 0xFF}, // Light gray
	{0x34, 0x68, 0x56, 0xFF}, // Dark gray
	{0x08, 0x18, 0x20, 0xFF}, // Black (darkest)
}

// Display implements the Ebiten game interface for a trace player.
type Display struct {
	player *player
	screen *ebiten.Image
	pixels []byte // Pre-allocated pixel buffer to avoid GC pressure
	paused bool
}

// NewDisplay creates a new display for the player.
func NewDisplay(p *player) *Display {
	return &Display{
		player: p,
		screen: ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight),
		pixels: make([]byte, ppu.ScreenWidth*ppu.ScreenHeight*4), // RGBA format
	}
}

// Update advances the trace by one frame.
// This is called 60 times per second by Ebiten.
func (d *Display) Update() error {
	// Space pauses, N steps one frame while paused
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		d.paused = !d.paused
	}
	if d.paused && !inpututil.IsKeyJustPressed(ebiten.KeyN) {
		return nil
	}

	return d.player.advance()
}

// Draw draws the game screen.
// This is called after Update.
func (d *Display) Draw(screen *ebiten.Image) {
	fillPixels(d.pixels, d.player.emu.Framebuffer())

	// Write all pixels at once (much faster than 23,040 individual Set() calls)
	d.screen.WritePixels(d.pixels)

	// Draw the screen to the window
	screen.DrawImage(d.screen, nil)
}

// fillPixels converts the screen buffer to RGBA using the DMG palette.
func fillPixels(pixels []byte, fb *ppu.Framebuffer) {
	offset := 0
	for y := range fb {
		for _, shade := range fb[y] {
			c := dmgPalette[shade&0x03]
			pixels[offset] = c.R
			pixels[offset+1] = c.G
			pixels[offset+2] = c.B
			pixels[offset+3] = c.A
			offset += 4
		}
	}
}

// Layout returns the game screen size.
func (d *Display) Layout(_, _ int) (int, int) {
	return ppu.ScreenWidth, ppu.ScreenHeight
}
