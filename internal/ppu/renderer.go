package ppu

// renderScanline composites the current scanline into the framebuffer.
// Layers that are disabled leave the previous contents of the row in place.
func (p *PPU) renderScanline() {
	if p.ly >= ScanlinesVisible {
		return
	}

	if p.lcdc.bgEnabled {
		p.renderBackground()
	}

	if p.lcdc.windowEnabled {
		p.renderWindow()
	}

	if p.lcdc.objEnabled {
		p.renderSprites()
	}
}

// composeRow fills row y of a 256x256 layer composite from a tile map.
// Only the row that is about to be sampled is rebuilt; the result is the
// same as rebuilding the whole map.
func (p *PPU) composeRow(layer *[256][256]uint8, area TileMapArea, y uint8) *[256]uint8 {
	mapRow := area.base() + uint16(y/8)*tileMapSize
	tileRow := y % 8
	out := &layer[y]
	for col := range tileMapSize {
		n := p.vram[mapRow+uint16(col)]
		tile := &p.tiles[p.lcdc.tileData.tileIndex(n)]
		copy(out[col*8:col*8+8], tile[tileRow][:])
	}
	return out
}

// renderBackground renders the background layer for the current scanline.
func (p *PPU) renderBackground() {
	y := p.ly + p.scy // wraps at 256
	row := p.composeRow(&p.background, p.lcdc.bgTileMap, y)

	line := &p.framebuffer[p.ly]
	for x := range ScreenWidth {
		line[x] = row[uint8(x)+p.scx]
	}
}

// renderWindow renders the window layer for the current scanline. The
// window does not wrap: lines above WY or past the screen height are
// skipped.
func (p *PPU) renderWindow() {
	if p.ly < p.wy {
		return
	}
	y := p.ly - p.wy
	if y >= ScreenHeight {
		return
	}
	row := p.composeRow(&p.window, p.lcdc.windowTileMap, y)

	line := &p.framebuffer[p.ly]
	for x := int(p.wx); x < ScreenWidth; x++ {
		line[x] = row[x-int(p.wx)]
	}
}

// renderSprites renders sprites (objects) for the current scanline.
func (p *PPU) renderSprites() {
	height := p.lcdc.objSize.Height()
	sprites := p.selectSprites(p.ly, height)
	line := &p.framebuffer[p.ly]

	// Draw in reverse priority order so the highest-priority sprite ends up
	// on top.
	for i := len(sprites) - 1; i >= 0; i-- {
		s := sprites[i]

		tileNum := int(s.Tile)
		row := p.ly - s.Y
		if s.FlipY {
			row = height - row - 1
		}
		// 8x16 sprites continue into the following tile.
		if row >= 8 {
			tileNum++
			row -= 8
		}
		tile := &p.tiles[tileNum]

		for x := 7; x >= 0; x-- {
			tileX := x
			if s.FlipX {
				tileX = 7 - x
			}
			screenX := s.X + uint8(x) // wraps at 256
			if screenX >= ScreenWidth {
				continue
			}

			color := tile[row][tileX]
			if color == 0 {
				continue
			}
			if s.AboveBackground || line[screenX] == 0 {
				line[screenX] = color
			}
		}
	}
}
