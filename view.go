package seismo

import (
	"image"
	"math"
)

// Default zoom limits. A View clamps zoom silently into this range.
const (
	DefaultMinZoom = 1.0 / 256
	DefaultMaxZoom = 32.0
)

// View is the transform between raster space and device space for one
// viewport. It stores absolute parameters (pan anchor, zoom factor, rotation
// angle) rather than an accumulated matrix, so the inverse is computed
// analytically from the same parameters and a gesture followed by its
// opposite restores the exact starting state.
//
// A raster point p maps to device space as
//
//	dev = zoom * R(rotation) * (p - pan)
//
// so pan is the raster point pinned to the device origin.
//
// View is not safe for concurrent use; it belongs to the interactive thread.
type View struct {
	width  int
	height int

	pan      Point
	zoom     float64
	rotation float64

	minZoom float64
	maxZoom float64
}

// NewView creates an identity view over a device surface of the given size.
func NewView(width, height int) *View {
	return &View{
		width:   width,
		height:  height,
		zoom:    1,
		minZoom: DefaultMinZoom,
		maxZoom: DefaultMaxZoom,
	}
}

// Size returns the device surface dimensions.
func (v *View) Size() (w, h int) { return v.width, v.height }

// SetSize updates the device surface dimensions, keeping the raster point at
// the device origin fixed.
func (v *View) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// Zoom returns the current zoom factor.
func (v *View) Zoom() float64 { return v.zoom }

// Rotation returns the current rotation in radians.
func (v *View) Rotation() float64 { return v.rotation }

// Pan returns the raster point currently at the device origin.
func (v *View) Pan() Point { return v.pan }

// SetZoomLimits sets the clamp range for zoom. The current zoom is clamped
// immediately.
func (v *View) SetZoomLimits(min, max float64) {
	if min > 0 {
		v.minZoom = min
	}
	if max >= v.minZoom {
		v.maxZoom = max
	}
	v.zoom = v.clampZoom(v.zoom)
}

// Reset restores the identity view.
func (v *View) Reset() {
	v.pan = Point{}
	v.zoom = 1
	v.rotation = 0
}

// ToDevice maps a raster point to device space.
func (v *View) ToDevice(p Point) Point {
	return p.Sub(v.pan).Rotate(v.rotation).Mul(v.zoom)
}

// ToRaster maps a device point back to raster space. It is the exact
// inverse of ToDevice, derived from the stored parameters rather than a
// numeric matrix inversion.
func (v *View) ToRaster(p Point) Point {
	return p.Div(v.zoom).Rotate(-v.rotation).Add(v.pan)
}

// Matrix returns the raster-to-device transform as an affine matrix.
func (v *View) Matrix() Matrix {
	return Scale(v.zoom, v.zoom).
		Multiply(Rotate(v.rotation)).
		Multiply(Translate(-v.pan.X, -v.pan.Y))
}

// InverseMatrix returns the device-to-raster transform.
func (v *View) InverseMatrix() Matrix {
	return Translate(v.pan.X, v.pan.Y).
		Multiply(Rotate(-v.rotation)).
		Multiply(Scale(1/v.zoom, 1/v.zoom))
}

// PanBy shifts the content by delta device pixels. Positive delta moves the
// content right and down on screen.
func (v *View) PanBy(delta Point) {
	v.pan = v.pan.Sub(delta.Div(v.zoom).Rotate(-v.rotation))
}

// ZoomAt multiplies the zoom by factor, keeping the raster point under the
// device-space pivot stationary on screen. Zoom clamps silently to the
// configured limits; at a limit the pivot invariant still holds.
func (v *View) ZoomAt(factor float64, pivot Point) {
	anchor := v.ToRaster(pivot)
	v.zoom = v.clampZoom(v.zoom * factor)
	v.pan = anchor.Sub(pivot.Div(v.zoom).Rotate(-v.rotation))
}

// RotateAt adds delta radians to the rotation, keeping the raster point
// under the device-space pivot stationary on screen.
func (v *View) RotateAt(delta float64, pivot Point) {
	anchor := v.ToRaster(pivot)
	v.rotation = normalizeAngle(v.rotation + delta)
	v.pan = anchor.Sub(pivot.Div(v.zoom).Rotate(-v.rotation))
}

// VisibleRect returns the axis-aligned raster bounding box of the viewport,
// rounded outward to whole pixels. Under rotation the box covers more than
// the viewport shows.
func (v *View) VisibleRect() image.Rectangle {
	corners := []Point{
		v.ToRaster(Pt(0, 0)),
		v.ToRaster(Pt(float64(v.width), 0)),
		v.ToRaster(Pt(0, float64(v.height))),
		v.ToRaster(Pt(float64(v.width), float64(v.height))),
	}

	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}

func (v *View) clampZoom(z float64) float64 {
	if z < v.minZoom {
		return v.minZoom
	}
	if z > v.maxZoom {
		return v.maxZoom
	}
	return z
}

// normalizeAngle wraps an angle into (-pi, pi].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
