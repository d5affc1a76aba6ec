package seismo

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/paleoseis/seismo/tile"
)

// Report describes what one composited frame was built from.
type Report struct {
	// Level is the pyramid level the mosaic was assembled at.
	Level int

	// Requested is the number of tiles the frame covers.
	Requested int

	// Pending tiles were not resident; a coarser stand-in or nothing was
	// drawn and a decode is under way.
	Pending int

	// Failed tiles decoded unsuccessfully and were filled with the
	// placeholder color.
	Failed int
}

// Complete reports whether every covered tile was resident.
func (r Report) Complete() bool { return r.Pending == 0 }

// Compositor assembles viewport frames for a document from its tile cache.
// It never blocks on decoding: missing tiles come back as pending in the
// report and the frame shows the nearest coarser pixels meanwhile.
//
// Compositor is not safe for concurrent use.
type Compositor struct {
	doc         *Document
	placeholder color.RGBA
	maxTiles    int
}

// NewCompositor creates a compositor over the document, configured from the
// document's options.
func NewCompositor(doc *Document) *Compositor {
	opts := doc.Options()
	return &Compositor{
		doc:         doc,
		placeholder: opts.PlaceholderRGBA(),
		maxTiles:    opts.MaxCompositeTiles,
	}
}

// Composite renders the document under the view transform into a new frame
// of the view's device size.
//
// The pyramid level starts at the coarsest level still at or above device
// pixel density and coarsens further until the covering tile count and the
// pin estimate fit the configured ceilings. The level-space mosaic is then
// mapped to device space with a single affine transform, so rotation
// introduces no per-tile seams.
func (c *Compositor) Composite(v *View) (*image.RGBA, Report, error) {
	w, h := v.Size()
	frame := image.NewRGBA(image.Rect(0, 0, w, h))

	store := c.doc.Store()
	pyr := store.Pyramid()
	dw, dh := c.doc.Size()

	visible := v.VisibleRect().Intersect(image.Rect(0, 0, dw, dh))
	if visible.Empty() {
		return frame, Report{}, nil
	}

	level := pyr.ClampLevel(int(math.Floor(-math.Log2(v.Zoom()))))

	var keys []tile.Key
	var release func()
	for {
		keys = pyr.KeysIntersecting(visible, level)
		if len(keys) > c.maxTiles && level < pyr.NumLevels()-1 {
			level++
			continue
		}

		var err error
		release, err = store.Pin(keys)
		if err == nil {
			break
		}
		if errors.Is(err, tile.ErrBudget) && level < pyr.NumLevels()-1 {
			level++
			continue
		}
		return nil, Report{Level: level, Requested: len(keys)},
			fmt.Errorf("%w: %d tiles at level %d", ErrOutOfBudget, len(keys), level)
	}
	defer release()

	mosaic, origin := c.assembleMosaic(keys, level)
	rep := Report{Level: level, Requested: len(keys)}
	for _, key := range keys {
		_, state := store.Fetch(key)
		switch state {
		case tile.StatePending:
			rep.Pending++
		case tile.StateFailed:
			rep.Failed++
		}
	}

	// Device = view transform applied after lifting mosaic coordinates to
	// raster space (scale by 2^level from the mosaic origin).
	s := float64(int(1) << level)
	m := v.Matrix().
		Multiply(Translate(float64(origin.X), float64(origin.Y))).
		Multiply(Scale(s, s))
	xdraw.ApproxBiLinear.Transform(frame, m.Aff3(), mosaic, mosaic.Bounds(), draw.Over, nil)

	return frame, rep, nil
}

// assembleMosaic draws the covering tiles into one level-space image and
// returns it with the raster coordinate of its top-left corner.
func (c *Compositor) assembleMosaic(keys []tile.Key, level int) (*image.RGBA, image.Point) {
	store := c.doc.Store()
	pyr := store.Pyramid()
	ts := pyr.TileSize()

	minRow, minCol := keys[0].Row, keys[0].Col
	maxRow, maxCol := minRow, minCol
	for _, k := range keys[1:] {
		minRow, maxRow = minInt(minRow, k.Row), maxInt(maxRow, k.Row)
		minCol, maxCol = minInt(minCol, k.Col), maxInt(maxCol, k.Col)
	}

	mosaic := image.NewRGBA(image.Rect(0, 0, (maxCol-minCol+1)*ts, (maxRow-minRow+1)*ts))
	for _, key := range keys {
		slotMin := image.Pt((key.Col-minCol)*ts, (key.Row-minRow)*ts)
		pw, ph := pyr.PixelDims(key)
		slot := image.Rectangle{Min: slotMin, Max: slotMin.Add(image.Pt(pw, ph))}

		pix, state := store.Fetch(key)
		switch state {
		case tile.StateReady:
			draw.Draw(mosaic, slot, pix, image.Point{}, draw.Src)
		case tile.StatePending:
			c.drawCoarserStandIn(mosaic, slot, key)
		case tile.StateFailed:
			draw.Draw(mosaic, slot, image.NewUniform(c.placeholder), image.Point{}, draw.Src)
		}
	}

	origin := image.Pt(minCol*ts<<level, minRow*ts<<level)
	return mosaic, origin
}

// drawCoarserStandIn fills a pending tile's slot from the nearest coarser
// resident ancestor, scaled up. Blocky pixels beat a hole while the decode
// runs. Peek never schedules work, so stand-in lookups cause no decode
// cascade.
func (c *Compositor) drawCoarserStandIn(mosaic *image.RGBA, slot image.Rectangle, key tile.Key) {
	store := c.doc.Store()
	pyr := store.Pyramid()

	for parent, ok := pyr.Parent(key); ok; parent, ok = pyr.Parent(parent) {
		pix, state := store.Peek(parent)
		if state != tile.StateReady {
			continue
		}

		keyRect := pyr.LogicalRect(key)
		parentRect := pyr.LogicalRect(parent)
		shift := parent.Level
		src := image.Rect(
			(keyRect.Min.X-parentRect.Min.X)>>shift,
			(keyRect.Min.Y-parentRect.Min.Y)>>shift,
			ceilDiv(keyRect.Max.X-parentRect.Min.X, 1<<shift),
			ceilDiv(keyRect.Max.Y-parentRect.Min.Y, 1<<shift),
		)
		xdraw.ApproxBiLinear.Scale(mosaic, slot, pix, src, draw.Src, nil)
		return
	}
}

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
