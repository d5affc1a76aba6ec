package seismo

import (
	"image"
	"math"
	"testing"
)

const eps = 1e-9

func pointNear(a, b Point, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

func TestViewIdentityRoundTrip(t *testing.T) {
	v := NewView(1280, 800)

	points := []Point{{0, 0}, {100, 200}, {-50, 33.5}, {19999.25, 4321}}
	for _, p := range points {
		if got := v.ToDevice(p); !pointNear(got, p, eps) {
			t.Errorf("identity ToDevice(%v) = %v", p, got)
		}
		if got := v.ToRaster(v.ToDevice(p)); !pointNear(got, p, eps) {
			t.Errorf("round trip of %v = %v", p, got)
		}
	}
}

func TestViewRoundTripUnderCompositeTransform(t *testing.T) {
	v := NewView(1280, 800)
	v.PanBy(Pt(-300, 150))
	v.ZoomAt(3.7, Pt(640, 400))
	v.RotateAt(0.41, Pt(100, 100))
	v.ZoomAt(0.25, Pt(20, 700))

	points := []Point{{0, 0}, {12345.5, 678.25}, {-3, 9999}}
	for _, p := range points {
		if got := v.ToRaster(v.ToDevice(p)); !pointNear(got, p, 1e-6) {
			t.Errorf("round trip of %v = %v", p, got)
		}
	}
}

func TestViewMatrixAgreesWithToDevice(t *testing.T) {
	v := NewView(1280, 800)
	v.ZoomAt(2.5, Pt(640, 400))
	v.RotateAt(-0.8, Pt(0, 0))
	v.PanBy(Pt(40, -25))

	m := v.Matrix()
	inv := v.InverseMatrix()
	for _, p := range []Point{{0, 0}, {512.5, 100}, {-20, 300}} {
		if got, want := m.TransformPoint(p), v.ToDevice(p); !pointNear(got, want, 1e-6) {
			t.Errorf("Matrix(%v) = %v, ToDevice = %v", p, got, want)
		}
		if got, want := inv.TransformPoint(p), v.ToRaster(p); !pointNear(got, want, 1e-6) {
			t.Errorf("InverseMatrix(%v) = %v, ToRaster = %v", p, got, want)
		}
	}
}

func TestPanBy(t *testing.T) {
	v := NewView(1280, 800)
	before := v.ToDevice(Pt(500, 500))

	v.PanBy(Pt(100, -40))
	after := v.ToDevice(Pt(500, 500))
	if got := after.Sub(before); !pointNear(got, Pt(100, -40), eps) {
		t.Errorf("content moved by %v, want (100,-40)", got)
	}
}

func TestPanByInverseRestoresState(t *testing.T) {
	v := NewView(1280, 800)
	v.ZoomAt(2, Pt(640, 400))
	v.RotateAt(0.3, Pt(640, 400))
	pan, zoom, rot := v.Pan(), v.Zoom(), v.Rotation()

	v.PanBy(Pt(123.5, -77))
	v.PanBy(Pt(-123.5, 77))

	if !pointNear(v.Pan(), pan, 1e-9) || v.Zoom() != zoom || v.Rotation() != rot {
		t.Errorf("pan/unpan changed state: pan %v zoom %v rot %v", v.Pan(), v.Zoom(), v.Rotation())
	}
}

func TestZoomAtKeepsPivotFixed(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		pivot  Point
	}{
		{"zoom in at center", 2, Pt(640, 400)},
		{"zoom out at corner", 0.5, Pt(0, 0)},
		{"odd factor off center", 1.7, Pt(100, 731)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(1280, 800)
			v.PanBy(Pt(-200, 80))
			v.RotateAt(0.25, Pt(300, 300))

			anchor := v.ToRaster(tt.pivot)
			v.ZoomAt(tt.factor, tt.pivot)

			if got := v.ToDevice(anchor); !pointNear(got, tt.pivot, 1e-6) {
				t.Errorf("pivot moved to %v, want %v", got, tt.pivot)
			}
		})
	}
}

func TestZoomClampsSilently(t *testing.T) {
	v := NewView(1280, 800)
	pivot := Pt(640, 400)

	v.ZoomAt(1e12, pivot)
	if got := v.Zoom(); got != DefaultMaxZoom {
		t.Errorf("zoom = %v, want clamp at %v", got, DefaultMaxZoom)
	}

	// Pivot invariant holds even at the clamp.
	anchor := v.ToRaster(pivot)
	v.ZoomAt(10, pivot)
	if got := v.ToDevice(anchor); !pointNear(got, pivot, 1e-6) {
		t.Errorf("pivot moved to %v at clamp", got)
	}

	v.ZoomAt(1e-20, pivot)
	if got := v.Zoom(); got != DefaultMinZoom {
		t.Errorf("zoom = %v, want clamp at %v", got, DefaultMinZoom)
	}
}

func TestSetZoomLimits(t *testing.T) {
	v := NewView(1280, 800)
	v.ZoomAt(8, Pt(0, 0))
	v.SetZoomLimits(0.5, 4)
	if got := v.Zoom(); got != 4 {
		t.Errorf("zoom after tightening limits = %v, want 4", got)
	}
}

func TestRotateAtKeepsPivotFixed(t *testing.T) {
	v := NewView(1280, 800)
	v.ZoomAt(1.5, Pt(200, 200))

	pivot := Pt(640, 400)
	anchor := v.ToRaster(pivot)
	v.RotateAt(math.Pi/6, pivot)

	if got := v.ToDevice(anchor); !pointNear(got, pivot, 1e-6) {
		t.Errorf("pivot moved to %v, want %v", got, pivot)
	}
	if got := v.Rotation(); math.Abs(got-math.Pi/6) > eps {
		t.Errorf("rotation = %v, want %v", got, math.Pi/6)
	}
}

func TestRotateInverseRestoresState(t *testing.T) {
	v := NewView(1280, 800)
	v.ZoomAt(2, Pt(100, 100))
	pan, rot := v.Pan(), v.Rotation()

	v.RotateAt(0.7, Pt(640, 400))
	v.RotateAt(-0.7, Pt(640, 400))

	if !pointNear(v.Pan(), pan, 1e-9) || math.Abs(v.Rotation()-rot) > eps {
		t.Errorf("rotate/unrotate changed state: pan %v rot %v", v.Pan(), v.Rotation())
	}
}

func TestRotationNormalization(t *testing.T) {
	v := NewView(1280, 800)
	for i := 0; i < 8; i++ {
		v.RotateAt(math.Pi/2, Pt(640, 400))
	}
	if got := v.Rotation(); math.Abs(got) > 1e-9 {
		t.Errorf("rotation after four full quarters twice = %v, want 0", got)
	}
}

func TestVisibleRect(t *testing.T) {
	v := NewView(1000, 500)
	if got, want := v.VisibleRect(), image.Rect(0, 0, 1000, 500); got != want {
		t.Errorf("identity VisibleRect = %v, want %v", got, want)
	}

	v.ZoomAt(2, Pt(0, 0))
	if got, want := v.VisibleRect(), image.Rect(0, 0, 500, 250); got != want {
		t.Errorf("zoomed VisibleRect = %v, want %v", got, want)
	}

	// Under rotation the AABB exceeds the viewport's own area.
	v.Reset()
	v.RotateAt(math.Pi/4, Pt(0, 0))
	r := v.VisibleRect()
	if r.Dx() <= 1000 && r.Dy() <= 500 {
		t.Errorf("rotated VisibleRect %v should exceed viewport extent", r)
	}
}

func TestViewReset(t *testing.T) {
	v := NewView(800, 600)
	v.PanBy(Pt(10, 10))
	v.ZoomAt(4, Pt(1, 2))
	v.RotateAt(1, Pt(3, 4))

	v.Reset()
	if v.Zoom() != 1 || v.Rotation() != 0 || v.Pan() != (Point{}) {
		t.Errorf("Reset left state: pan %v zoom %v rot %v", v.Pan(), v.Zoom(), v.Rotation())
	}
}
