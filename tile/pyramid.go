package tile

import (
	"image"
	"image/draw"
)

// Pyramid describes the level geometry for one raster: level 0 is native
// resolution and every level above halves linear resolution, until the whole
// raster fits inside a single tile.
type Pyramid struct {
	width    int
	height   int
	tileSize int
	levels   int
}

// NewPyramid computes the level structure for a raster of the given size.
func NewPyramid(width, height, tileSize int) Pyramid {
	levels := 1
	for maxInt(ceilDiv(width, 1<<(levels-1)), ceilDiv(height, 1<<(levels-1))) > tileSize {
		levels++
	}
	return Pyramid{width: width, height: height, tileSize: tileSize, levels: levels}
}

// NumLevels returns the number of pyramid levels.
func (p Pyramid) NumLevels() int { return p.levels }

// TileSize returns the tile edge length in pixels.
func (p Pyramid) TileSize() int { return p.tileSize }

// ClampLevel clamps a requested level into the valid range.
func (p Pyramid) ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level >= p.levels {
		return p.levels - 1
	}
	return level
}

// LevelDims returns the pixel dimensions of the raster at a level.
func (p Pyramid) LevelDims(level int) (w, h int) {
	return ceilDiv(p.width, 1<<level), ceilDiv(p.height, 1<<level)
}

// GridDims returns the tile grid dimensions (rows, cols) at a level.
func (p Pyramid) GridDims(level int) (rows, cols int) {
	w, h := p.LevelDims(level)
	return ceilDiv(h, p.tileSize), ceilDiv(w, p.tileSize)
}

// TileCount returns the total number of tiles at a level.
func (p Pyramid) TileCount(level int) int {
	rows, cols := p.GridDims(level)
	return rows * cols
}

// LogicalRect returns the native-resolution (level 0) rectangle a tile
// covers, clipped to the raster extent.
func (p Pyramid) LogicalRect(key Key) image.Rectangle {
	step := p.tileSize << key.Level
	r := image.Rect(key.Col*step, key.Row*step, (key.Col+1)*step, (key.Row+1)*step)
	return r.Intersect(image.Rect(0, 0, p.width, p.height))
}

// PixelDims returns the tile's own pixel dimensions at its level. Edge
// tiles are smaller than the tile size.
func (p Pyramid) PixelDims(key Key) (w, h int) {
	lw, lh := p.LevelDims(key.Level)
	w = minInt(p.tileSize, lw-key.Col*p.tileSize)
	h = minInt(p.tileSize, lh-key.Row*p.tileSize)
	return w, h
}

// Contains reports whether the key addresses a tile inside the grid.
func (p Pyramid) Contains(key Key) bool {
	if key.Level < 0 || key.Level >= p.levels {
		return false
	}
	rows, cols := p.GridDims(key.Level)
	return key.Row >= 0 && key.Row < rows && key.Col >= 0 && key.Col < cols
}

// KeysIntersecting enumerates the tiles at a level whose logical rectangles
// intersect the given native-resolution rectangle.
func (p Pyramid) KeysIntersecting(rect image.Rectangle, level int) []Key {
	rect = rect.Intersect(image.Rect(0, 0, p.width, p.height))
	if rect.Empty() {
		return nil
	}

	step := p.tileSize << level
	c0 := rect.Min.X / step
	r0 := rect.Min.Y / step
	c1 := (rect.Max.X - 1) / step
	r1 := (rect.Max.Y - 1) / step

	keys := make([]Key, 0, (r1-r0+1)*(c1-c0+1))
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			keys = append(keys, Key{Level: level, Row: r, Col: c})
		}
	}
	return keys
}

// Parent returns the key of the tile covering this tile at the next coarser
// level, and false when the tile is already at the top.
func (p Pyramid) Parent(key Key) (Key, bool) {
	if key.Level+1 >= p.levels {
		return Key{}, false
	}
	return Key{Level: key.Level + 1, Row: key.Row / 2, Col: key.Col / 2}, true
}

// Children returns the keys at the next finer level whose area this tile
// covers. Edge tiles may have fewer than four children.
func (p Pyramid) Children(key Key) []Key {
	if key.Level == 0 {
		return nil
	}
	var keys []Key
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			child := Key{Level: key.Level - 1, Row: key.Row*2 + dy, Col: key.Col*2 + dx}
			if p.Contains(child) {
				keys = append(keys, child)
			}
		}
	}
	return keys
}

// downsampleChildren synthesizes a tile's pixels from its already-decoded
// children, avoiding a source decode. Children are stitched at double
// resolution and reduced with a 2x2 box filter.
func (p Pyramid) downsampleChildren(key Key, children map[Key]*image.RGBA) *image.RGBA {
	pw, ph := p.PixelDims(key)
	canvas := image.NewRGBA(image.Rect(0, 0, pw*2, ph*2))

	for childKey, pix := range children {
		off := image.Pt(
			(childKey.Col-key.Col*2)*p.tileSize,
			(childKey.Row-key.Row*2)*p.tileSize,
		)
		draw.Draw(canvas, pix.Bounds().Add(off), pix, image.Point{}, draw.Src)
	}
	return halve(canvas, pw, ph)
}

// halve reduces src by a factor of two with a 2x2 box filter into a dstW by
// dstH image.
func halve(src *image.RGBA, dstW, dstH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()

	for dy := 0; dy < dstH; dy++ {
		for dx := 0; dx < dstW; dx++ {
			sx, sy := dx*2, dy*2
			c0 := src.RGBAAt(sx, sy)
			c1 := src.RGBAAt(minInt(sx+1, srcW-1), sy)
			c2 := src.RGBAAt(sx, minInt(sy+1, srcH-1))
			c3 := src.RGBAAt(minInt(sx+1, srcW-1), minInt(sy+1, srcH-1))

			i := dst.PixOffset(dx, dy)
			dst.Pix[i+0] = uint8((uint16(c0.R) + uint16(c1.R) + uint16(c2.R) + uint16(c3.R)) / 4)
			dst.Pix[i+1] = uint8((uint16(c0.G) + uint16(c1.G) + uint16(c2.G) + uint16(c3.G)) / 4)
			dst.Pix[i+2] = uint8((uint16(c0.B) + uint16(c1.B) + uint16(c2.B) + uint16(c3.B)) / 4)
			dst.Pix[i+3] = uint8((uint16(c0.A) + uint16(c1.A) + uint16(c2.A) + uint16(c3.A)) / 4)
		}
	}
	return dst
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
