package seismo

import (
	"image"
	"testing"
)

func TestRenderOverlayCurveAndTicks(t *testing.T) {
	doc := testDocument(t, 400, 300)

	c := doc.Curves().CreateCurve("trace", traceRed)
	for _, p := range []Point{{50, 50}, {150, 50}} {
		if err := c.InsertPoint(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := doc.TimeScale().AddOrUpdatePoint(100, 0); err != nil {
		t.Fatal(err)
	}
	if err := doc.TimeScale().AddOrUpdatePoint(300, 2); err != nil {
		t.Fatal(err)
	}

	v := NewView(400, 300)
	dst := image.NewRGBA(image.Rect(0, 0, 400, 300))
	RenderOverlay(dst, v, doc)

	// Middle of the stroked segment carries the curve color.
	got := dst.RGBAAt(100, 50)
	if got.R < 100 || got.R <= got.B {
		t.Errorf("segment pixel = %v, want dominated by curve red", got)
	}

	// The calibration tick at x=100 runs the document height.
	got = dst.RGBAAt(100, 200)
	if got.B == 0 || got.B <= got.R {
		t.Errorf("tick pixel = %v, want dominated by tick blue", got)
	}

	// Empty space stays untouched.
	if got := dst.RGBAAt(390, 290); got.A != 0 {
		t.Errorf("background pixel = %v, want untouched", got)
	}
}

func TestRenderOverlayBreaksAtInvalidVertex(t *testing.T) {
	doc := testDocument(t, 400, 300)

	c := doc.Curves().CreateCurve("trace", traceRed)
	for _, p := range []Point{{50, 100}, {150, 100}, {250, 100}} {
		if err := c.InsertPoint(p); err != nil {
			t.Fatal(err)
		}
	}
	// Flag the middle vertex; both adjacent segments must disappear.
	c.points[1].Invalid = true

	v := NewView(400, 300)
	dst := image.NewRGBA(image.Rect(0, 0, 400, 300))
	RenderOverlay(dst, v, doc)

	if got := dst.RGBAAt(100, 100); got.A != 0 {
		t.Errorf("segment into invalid vertex drawn: %v", got)
	}
	if got := dst.RGBAAt(200, 100); got.A != 0 {
		t.Errorf("segment out of invalid vertex drawn: %v", got)
	}
	// The invalid vertex still shows a warning marker.
	if got := dst.RGBAAt(150, 100); got.A == 0 {
		t.Error("invalid vertex has no marker")
	}
}

func TestRenderOverlayFollowsView(t *testing.T) {
	doc := testDocument(t, 400, 300)
	c := doc.Curves().CreateCurve("trace", traceRed)
	for _, p := range []Point{{100, 100}, {200, 100}} {
		if err := c.InsertPoint(p); err != nil {
			t.Fatal(err)
		}
	}

	v := NewView(400, 300)
	v.ZoomAt(2, Pt(0, 0))

	dst := image.NewRGBA(image.Rect(0, 0, 400, 300))
	RenderOverlay(dst, v, doc)

	// Raster (150,100) maps to device (300,200) at zoom 2.
	if got := dst.RGBAAt(300, 200); got.R < 100 {
		t.Errorf("zoomed segment pixel = %v, want curve red", got)
	}
	if got := dst.RGBAAt(150, 100); got.A != 0 {
		t.Errorf("unzoomed position still painted: %v", got)
	}
}
