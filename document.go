package seismo

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sort"

	"github.com/paleoseis/seismo/decode"
	"github.com/paleoseis/seismo/tile"
)

// Region maps one logical rectangle of the document onto a pixel source.
// Offset is the source pixel corresponding to Bounds.Min. Regions never
// overlap and together cover the whole document extent, so every logical
// point resolves to exactly one source pixel.
type Region struct {
	Bounds image.Rectangle
	Offset image.Point
	Source decode.Source
}

// EditReport summarizes the annotation fallout of a geometry edit. Points
// that no longer reference document pixels are flagged invalid, never
// silently deleted.
type EditReport struct {
	InvalidCurvePoints       int
	InvalidCalibrationPoints int
}

// Edge names the side of a document another document joins onto.
type Edge int

const (
	// EdgeRight appends the second document to the right of the first.
	EdgeRight Edge = iota

	// EdgeBottom appends the second document below the first.
	EdgeBottom
)

// Document is one scanned seismogram record: an ordered list of regions
// over decode sources, a tile cache for display, and the registered
// annotations (time calibration and traced curves). All coordinates are
// logical raster pixels with the origin at the document's top-left.
//
// Document is not safe for concurrent use except through its tile store;
// models belong to the interactive thread.
type Document struct {
	width      int
	height     int
	resolution float64 // pixels per inch, 0 when unknown

	regions []Region

	store     *tile.Store
	timeScale *TimeScale
	curves    *CurveSet

	opts        Options
	log         *slog.Logger
	notify      func()
	ownsSources bool
	closed      bool
}

// DocumentOption configures document construction.
type DocumentOption func(*Document)

// WithOptions supplies the tile and compositing configuration.
func WithOptions(o Options) DocumentOption {
	return func(d *Document) { d.opts = o.normalized() }
}

// WithResolution overrides the scan resolution in pixels per inch, for
// scans whose files carry no or wrong metadata.
func WithResolution(ppi float64) DocumentOption {
	return func(d *Document) { d.resolution = ppi }
}

// WithNotify registers a callback invoked whenever the display needs a
// repaint: a tile became ready or failed, or a geometry edit landed. The
// callback may run on a decode worker goroutine.
func WithNotify(fn func()) DocumentOption {
	return func(d *Document) { d.notify = fn }
}

// OpenDocument opens a scanned image file as a single-region document.
func OpenDocument(path string, opts ...DocumentOption) (*Document, error) {
	return OpenDocumentWith(decode.NewFileAdapter(), path, opts...)
}

// OpenDocumentWith opens a document through a specific decode adapter.
func OpenDocumentWith(adapter decode.Adapter, path string, opts ...DocumentOption) (*Document, error) {
	src, err := adapter.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	w, h := src.Dimensions()
	d := &Document{
		width:       w,
		height:      h,
		resolution:  src.Resolution(),
		regions:     []Region{{Bounds: image.Rect(0, 0, w, h), Source: src}},
		timeScale:   NewTimeScale(),
		curves:      NewCurveSet(),
		opts:        DefaultOptions(),
		log:         Logger(),
		ownsSources: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.rebuildStore()

	d.log.Info("document opened", "path", path, "width", w, "height", h, "ppi", d.resolution)
	return d, nil
}

// NewDocument assembles a document directly from regions. The regions must
// tile the w by h extent. Used by project restore and by tests; callers
// own the sources.
func NewDocument(regions []Region, w, h int, opts ...DocumentOption) (*Document, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: document extent %dx%d", ErrInvalidRegion, w, h)
	}
	d := &Document{
		width:     w,
		height:    h,
		regions:   append([]Region(nil), regions...),
		timeScale: NewTimeScale(),
		curves:    NewCurveSet(),
		opts:      DefaultOptions(),
		log:       Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	sortRegions(d.regions)
	d.rebuildStore()
	return d, nil
}

// derive builds a sibling document sharing this one's configuration and
// sources.
func (d *Document) derive(regions []Region, w, h int, curves *CurveSet, ts *TimeScale) *Document {
	nd := &Document{
		width:      w,
		height:     h,
		resolution: d.resolution,
		regions:    regions,
		timeScale:  ts,
		curves:     curves,
		opts:       d.opts,
		log:        d.log,
		notify:     d.notify,
	}
	sortRegions(nd.regions)
	nd.rebuildStore()
	return nd
}

func (d *Document) rebuildStore() {
	if d.store != nil {
		d.store.Close()
	}
	d.store = tile.NewStore(d, tile.Config{
		TileSize:     d.opts.TileSize,
		MemoryBudget: d.opts.MemoryBudgetBytes,
		Workers:      d.opts.DecodeWorkers,
		Logger:       d.log,
		OnReady:      func(tile.Key) { d.notifyRepaint() },
	})
}

func (d *Document) notifyRepaint() {
	if d.notify != nil {
		d.notify()
	}
}

// Size returns the logical document dimensions. Together with DecodeRegion
// this implements tile.Source.
func (d *Document) Size() (w, h int) { return d.width, d.height }

// Resolution returns the scan resolution in pixels per inch, 0 when
// unknown.
func (d *Document) Resolution() float64 { return d.resolution }

// SetResolution corrects the scan resolution after load.
func (d *Document) SetResolution(ppi float64) { d.resolution = ppi }

// Store returns the document's tile cache.
func (d *Document) Store() *tile.Store { return d.store }

// TimeScale returns the document's time calibration model.
func (d *Document) TimeScale() *TimeScale { return d.timeScale }

// Curves returns the document's traced curves.
func (d *Document) Curves() *CurveSet { return d.curves }

// Regions returns the region list in document order. The slice is a copy.
func (d *Document) Regions() []Region {
	out := make([]Region, len(d.regions))
	copy(out, d.regions)
	return out
}

// Options returns the document's configuration.
func (d *Document) Options() Options { return d.opts }

func sortRegions(regions []Region) {
	sort.Slice(regions, func(i, j int) bool {
		a, b := regions[i].Bounds.Min, regions[j].Bounds.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}

// RegionAt returns the region containing the logical point, for callers
// that need the provenance of a pixel (which scan it came from).
func (d *Document) RegionAt(pt image.Point) (Region, bool) {
	return d.regionAt(pt)
}

// regionAt returns the region containing the logical point. Regions are
// sorted by origin, so the search bisects to the candidate row and walks
// back over at most the regions sharing it.
func (d *Document) regionAt(pt image.Point) (Region, bool) {
	i := sort.Search(len(d.regions), func(i int) bool {
		min := d.regions[i].Bounds.Min
		return min.Y > pt.Y || (min.Y == pt.Y && min.X > pt.X)
	})
	for j := i - 1; j >= 0; j-- {
		if pt.In(d.regions[j].Bounds) {
			return d.regions[j], true
		}
	}
	return Region{}, false
}

// DecodeRegion stitches the logical rectangle from the underlying sources
// at the given power-of-two downscale. It implements tile.Source; the tile
// store calls it from decode workers, so it touches no mutable document
// state beyond the region list, which only changes together with a store
// rebuild.
func (d *Document) DecodeRegion(rect image.Rectangle, scale int) (*image.RGBA, error) {
	full := image.Rect(0, 0, d.width, d.height)
	rect = rect.Intersect(full)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: decode outside document", ErrInvalidRegion)
	}

	out := image.NewRGBA(image.Rect(0, 0, ceilDiv(rect.Dx(), scale), ceilDiv(rect.Dy(), scale)))
	for _, r := range d.regions {
		sub := rect.Intersect(r.Bounds)
		if sub.Empty() {
			continue
		}
		srcRect := sub.Sub(r.Bounds.Min).Add(r.Offset)
		pix, err := r.Source.DecodeRegion(srcRect, scale)
		if err != nil {
			return nil, fmt.Errorf("%w: region at %v: %w", ErrDecodeFailed, r.Bounds.Min, err)
		}
		dst := image.Pt((sub.Min.X-rect.Min.X)/scale, (sub.Min.Y-rect.Min.Y)/scale)
		draw.Draw(out, pix.Bounds().Add(dst), pix, image.Point{}, draw.Src)
	}
	return out, nil
}

// Crop reduces the document to rect. Coordinates of annotations inside the
// rectangle shift to the new origin; annotations outside are flagged
// invalid and reported. The tile cache is rebuilt for the new extent.
func (d *Document) Crop(rect image.Rectangle) (EditReport, error) {
	if d.closed {
		return EditReport{}, ErrDocumentClosed
	}
	full := image.Rect(0, 0, d.width, d.height)
	rect = rect.Canon()
	if rect.Empty() || !rect.In(full) {
		return EditReport{}, fmt.Errorf("%w: crop %v of %v", ErrInvalidRegion, rect, full)
	}

	// Decode workers read the region list and extent through DecodeRegion;
	// drain them before any geometry mutation.
	d.store.Close()

	rep := EditReport{
		InvalidCurvePoints: d.curves.invalidateOutside(
			float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Max.X), float64(rect.Max.Y)),
		InvalidCalibrationPoints: d.timeScale.invalidateOutside(
			float64(rect.Min.X), float64(rect.Max.X)),
	}
	d.curves.translate(-float64(rect.Min.X), -float64(rect.Min.Y))
	d.timeScale.translate(-float64(rect.Min.X))

	var regions []Region
	for _, r := range d.regions {
		sub := r.Bounds.Intersect(rect)
		if sub.Empty() {
			continue
		}
		regions = append(regions, Region{
			Bounds: sub.Sub(rect.Min),
			Offset: r.Offset.Add(sub.Min.Sub(r.Bounds.Min)),
			Source: r.Source,
		})
	}
	sortRegions(regions)
	d.regions = regions
	d.width, d.height = rect.Dx(), rect.Dy()
	d.rebuildStore()
	d.notifyRepaint()

	d.log.Info("document cropped", "rect", rect.String(),
		"invalid_curve_points", rep.InvalidCurvePoints,
		"invalid_calibration_points", rep.InvalidCalibrationPoints)
	return rep, nil
}

// Split divides the document at horizontal position x into two new
// documents. Annotations partition with the pixels; right-side coordinates
// rebase to the split line. The original document is left untouched and
// shares its sources with both halves; close it without closing the
// sources the halves still use.
func (d *Document) Split(x int) (left, right *Document, err error) {
	if d.closed {
		return nil, nil, ErrDocumentClosed
	}
	if x <= 0 || x >= d.width {
		return nil, nil, fmt.Errorf("%w: split at x=%d of width %d", ErrInvalidRegion, x, d.width)
	}

	leftRegions := cropRegions(d.regions, image.Rect(0, 0, x, d.height))
	rightRegions := cropRegions(d.regions, image.Rect(x, 0, d.width, d.height))
	leftCurves, rightCurves := d.curves.splitAt(float64(x))
	leftScale, rightScale := d.timeScale.split(float64(x))

	left = d.derive(leftRegions, x, d.height, leftCurves, leftScale)
	right = d.derive(rightRegions, d.width-x, d.height, rightCurves, rightScale)

	d.log.Info("document split", "x", x, "left_width", x, "right_width", d.width-x)
	return left, right, nil
}

// cropRegions clips regions to rect and rebases them to rect.Min.
func cropRegions(regions []Region, rect image.Rectangle) []Region {
	var out []Region
	for _, r := range regions {
		sub := r.Bounds.Intersect(rect)
		if sub.Empty() {
			continue
		}
		out = append(out, Region{
			Bounds: sub.Sub(rect.Min),
			Offset: r.Offset.Add(sub.Min.Sub(r.Bounds.Min)),
			Source: r.Source,
		})
	}
	return out
}

// Join concatenates two documents along an edge into a new document. The
// extents along the shared edge must match exactly; otherwise the join
// fails with ErrDimensionMismatch and neither input changes. The second
// document's regions and annotations translate by the first's extent.
//
// For a right join the second document's calibration merges into the
// first's time axis; points that would break monotonicity are flagged
// invalid and counted in the report. For a bottom join the two documents
// share the same horizontal axis, so the second's calibration cannot merge
// and all its points are carried over flagged invalid.
//
// The inputs stay open and share their sources with the result.
func Join(a, b *Document, edge Edge) (*Document, EditReport, error) {
	if a.closed || b.closed {
		return nil, EditReport{}, ErrDocumentClosed
	}

	var dx, dy int
	switch edge {
	case EdgeRight:
		if a.height != b.height {
			return nil, EditReport{}, fmt.Errorf("%w: heights %d and %d", ErrDimensionMismatch, a.height, b.height)
		}
		dx = a.width
	case EdgeBottom:
		if a.width != b.width {
			return nil, EditReport{}, fmt.Errorf("%w: widths %d and %d", ErrDimensionMismatch, a.width, b.width)
		}
		dy = a.height
	default:
		return nil, EditReport{}, fmt.Errorf("%w: unknown edge %d", ErrInvalidRegion, edge)
	}

	regions := make([]Region, 0, len(a.regions)+len(b.regions))
	regions = append(regions, a.regions...)
	for _, r := range b.regions {
		r.Bounds = r.Bounds.Add(image.Pt(dx, dy))
		regions = append(regions, r)
	}

	curves := NewCurveSet()
	curves.absorb(a.curves, 0, 0)
	curves.absorb(b.curves, float64(dx), float64(dy))

	ts := a.timeScale.clone()
	var rep EditReport
	if edge == EdgeRight {
		rep.InvalidCalibrationPoints = ts.merge(b.timeScale.clone(), float64(dx))
	} else {
		for _, p := range b.timeScale.Points() {
			if p.Valid {
				rep.InvalidCalibrationPoints++
			}
			p.Valid = false
			ts.points = append(ts.points, p)
		}
		sort.Slice(ts.points, func(i, j int) bool { return ts.points[i].Position < ts.points[j].Position })
	}

	w, h := a.width+b.width, a.height
	if edge == EdgeBottom {
		w, h = a.width, a.height+b.height
	}

	joined := a.derive(regions, w, h, curves, ts)
	a.log.Info("documents joined", "edge", int(edge), "width", w, "height", h,
		"invalid_calibration_points", rep.InvalidCalibrationPoints)
	return joined, rep, nil
}

// Close releases the tile cache and, for documents that own their sources,
// the sources themselves. Documents produced by Split or Join share
// sources and never own them.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.store.Close()

	if !d.ownsSources {
		return nil
	}
	var errs []error
	seen := make(map[decode.Source]bool)
	for _, r := range d.regions {
		if r.Source == nil || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		if err := r.Source.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
