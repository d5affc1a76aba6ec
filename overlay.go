package seismo

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"
)

// Overlay colors and stroke geometry. Curve strokes use each curve's own
// color; these cover everything else.
var (
	overlayTickColor    = color.RGBA{R: 0x20, G: 0x60, B: 0xc0, A: 0xff}
	overlayInvalidColor = color.RGBA{R: 0xc8, G: 0x40, B: 0x40, A: 0xff}
)

const (
	curveStrokeWidth = 2.0
	tickStrokeWidth  = 1.0
	vertexRadius     = 2.5
)

// RenderOverlay draws the document's annotations over a composited frame:
// every curve as straight device-space segments between consecutive valid
// vertices in its display color, vertex markers, and a calibration tick
// line per calibration point spanning the document height. It is a pure
// function of the models and the view; it reads no pixel data.
func RenderOverlay(dst *image.RGBA, v *View, doc *Document) {
	w, h := v.Size()
	r := vector.NewRasterizer(w, h)

	_, docH := doc.Size()
	for _, p := range doc.TimeScale().Points() {
		col := overlayTickColor
		if !p.Valid {
			col = overlayInvalidColor
		}
		top := v.ToDevice(Pt(p.Position, 0))
		bottom := v.ToDevice(Pt(p.Position, float64(docH)))
		strokeSegment(r, dst, top, bottom, tickStrokeWidth, col)
	}

	for _, c := range doc.Curves().Curves() {
		renderCurve(r, dst, v, c)
	}
}

// renderCurve strokes one curve. Invalid vertices break the polyline: the
// segments on either side of an invalid vertex are not drawn, and the
// vertex itself gets a warning-colored marker.
func renderCurve(r *vector.Rasterizer, dst *image.RGBA, v *View, c *VectorCurve) {
	pts := c.Points()
	for i := 1; i < len(pts); i++ {
		if pts[i-1].Invalid || pts[i].Invalid {
			continue
		}
		a := v.ToDevice(pts[i-1].Pos)
		b := v.ToDevice(pts[i].Pos)
		strokeSegment(r, dst, a, b, curveStrokeWidth, c.Color())
	}

	for _, p := range pts {
		col := c.Color()
		if p.Invalid {
			col = overlayInvalidColor
		}
		fillSquare(r, dst, v.ToDevice(p.Pos), vertexRadius, col)
	}
}

// strokeSegment fills the quad spanning the segment with the given stroke
// width.
func strokeSegment(r *vector.Rasterizer, dst *image.RGBA, a, b Point, width float64, col color.RGBA) {
	dir := b.Sub(a)
	if dir.Length() == 0 {
		return
	}
	n := Pt(-dir.Y, dir.X).Normalize().Mul(width / 2)

	r.Reset(r.Size().X, r.Size().Y)
	r.DrawOp = draw.Over
	moveTo(r, a.Add(n))
	lineTo(r, b.Add(n))
	lineTo(r, b.Sub(n))
	lineTo(r, a.Sub(n))
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

// fillSquare fills an axis-aligned square marker centered on p.
func fillSquare(r *vector.Rasterizer, dst *image.RGBA, p Point, radius float64, col color.RGBA) {
	r.Reset(r.Size().X, r.Size().Y)
	r.DrawOp = draw.Over
	moveTo(r, p.Add(Pt(-radius, -radius)))
	lineTo(r, p.Add(Pt(radius, -radius)))
	lineTo(r, p.Add(Pt(radius, radius)))
	lineTo(r, p.Add(Pt(-radius, radius)))
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

func moveTo(r *vector.Rasterizer, p Point) { r.MoveTo(float32(p.X), float32(p.Y)) }
func lineTo(r *vector.Rasterizer, p Point) { r.LineTo(float32(p.X), float32(p.Y)) }
