package frame

import (
	"fmt"
	"image"

	"github.com/richardwooding/dotmatrix/internal/ppu"
)

const (
	// SheetColumns is the number of tiles per tile sheet row.
	SheetColumns = 16
	// SheetRows is the number of tile rows in a tile sheet.
	SheetRows = ppu.TileCount / SheetColumns
)

// TileSource provides decoded tiles by index.
type TileSource interface {
	Tile(i int) (ppu.Tile, error)
}

// TileSheet lays out all cached tiles in a 16x24 grid, tile 0 at the top
// left.
func TileSheet(src TileSource) (*image.Paletted, error) {
	img := image.NewPaletted(image.Rect(0, 0, SheetColumns*8, SheetRows*8), Palette)
	for i := range ppu.TileCount {
		tile, err := src.Tile(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read tile %d: %w", i, err)
		}
		ox, oy := i%SheetColumns*8, i/SheetColumns*8
		for y, row := range tile {
			for x, shade := range row {
				img.SetColorIndex(ox+x, oy+y, shade&0x03)
			}
		}
	}
	return img, nil
}
