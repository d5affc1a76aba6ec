package seismo

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/paleoseis/seismo/decode"
)

// projectFormatVersion identifies the on-disk project layout.
const projectFormatVersion = 1

// RegionRecord is the persisted form of a Region. Pixel data is never
// embedded; the record points back at the source scan file.
type RegionRecord struct {
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	OffsetX    int    `json:"offset_x"`
	OffsetY    int    `json:"offset_y"`
	SourcePath string `json:"source_path"`
}

// CalibrationRecord is the persisted form of a TimeScale.
type CalibrationRecord struct {
	Points          []CalibrationPoint `json:"points"`
	LowerCorrection float64            `json:"lower_correction,omitempty"`
	UpperCorrection float64            `json:"upper_correction,omitempty"`
}

// CurveRecord is the persisted form of a VectorCurve.
type CurveRecord struct {
	ID     int          `json:"id"`
	Name   string       `json:"name"`
	Color  string       `json:"color"`
	Points []CurvePoint `json:"points"`
}

// ProjectRecord is the complete persisted state of a document: geometry,
// calibration and curves. Everything needed to resume digitization except
// the scan pixels themselves.
type ProjectRecord struct {
	FormatVersion int               `json:"format_version"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Resolution    float64           `json:"resolution_ppi,omitempty"`
	Regions       []RegionRecord    `json:"regions"`
	Calibration   CalibrationRecord `json:"calibration"`
	Curves        []CurveRecord     `json:"curves"`
}

// Snapshot captures the document's state as a record that Restore can turn
// back into an equivalent document.
func Snapshot(doc *Document) ProjectRecord {
	rec := ProjectRecord{
		FormatVersion: projectFormatVersion,
		Width:         doc.width,
		Height:        doc.height,
		Resolution:    doc.resolution,
	}

	for _, r := range doc.regions {
		path := ""
		if r.Source != nil {
			path = r.Source.Path()
		}
		rec.Regions = append(rec.Regions, RegionRecord{
			X:          r.Bounds.Min.X,
			Y:          r.Bounds.Min.Y,
			Width:      r.Bounds.Dx(),
			Height:     r.Bounds.Dy(),
			OffsetX:    r.Offset.X,
			OffsetY:    r.Offset.Y,
			SourcePath: path,
		})
	}

	rec.Calibration = CalibrationRecord{
		Points:          doc.timeScale.Points(),
		LowerCorrection: doc.timeScale.lowerCorrection,
		UpperCorrection: doc.timeScale.upperCorrection,
	}

	for _, c := range doc.curves.Curves() {
		rec.Curves = append(rec.Curves, CurveRecord{
			ID:     c.ID(),
			Name:   c.Name(),
			Color:  formatColor(c.Color()),
			Points: c.Points(),
		})
	}
	return rec
}

// Restore rebuilds a document from a record, reopening each referenced
// scan through the adapter. The restored document owns the reopened
// sources.
func Restore(rec ProjectRecord, adapter decode.Adapter, opts ...DocumentOption) (*Document, error) {
	if rec.FormatVersion != projectFormatVersion {
		return nil, fmt.Errorf("%w: project format version %d", ErrInvalidRegion, rec.FormatVersion)
	}

	sources := make(map[string]decode.Source)
	closeAll := func() {
		for _, s := range sources {
			s.Close()
		}
	}

	var regions []Region
	for _, rr := range rec.Regions {
		src, ok := sources[rr.SourcePath]
		if !ok {
			var err error
			src, err = adapter.Open(rr.SourcePath)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("restore region source: %w", err)
			}
			sources[rr.SourcePath] = src
		}
		regions = append(regions, Region{
			Bounds: image.Rect(rr.X, rr.Y, rr.X+rr.Width, rr.Y+rr.Height),
			Offset: image.Pt(rr.OffsetX, rr.OffsetY),
			Source: src,
		})
	}

	doc, err := NewDocument(regions, rec.Width, rec.Height, opts...)
	if err != nil {
		closeAll()
		return nil, err
	}
	doc.ownsSources = true
	doc.resolution = rec.Resolution

	doc.timeScale.points = append([]CalibrationPoint(nil), rec.Calibration.Points...)
	doc.timeScale.lowerCorrection = rec.Calibration.LowerCorrection
	doc.timeScale.upperCorrection = rec.Calibration.UpperCorrection

	maxID := 0
	for _, cr := range rec.Curves {
		c := &VectorCurve{
			id:     cr.ID,
			name:   cr.Name,
			color:  parseColor(cr.Color),
			points: append([]CurvePoint(nil), cr.Points...),
		}
		doc.curves.curves = append(doc.curves.curves, c)
		if cr.ID > maxID {
			maxID = cr.ID
		}
	}
	doc.curves.nextID = maxID + 1

	return doc, nil
}

// SaveProject writes the document's state as indented JSON.
func SaveProject(path string, doc *Document) error {
	data, err := json.MarshalIndent(Snapshot(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	doc.log.Info("project saved", "path", path)
	return nil
}

// LoadProject reads a project file and restores its document.
func LoadProject(path string, adapter decode.Adapter, opts ...DocumentOption) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	var rec ProjectRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	return Restore(rec, adapter, opts...)
}

// formatColor renders a color as #rrggbbaa.
func formatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// parseColor reads #rrggbbaa or #rrggbb; malformed values come back opaque
// black.
func parseColor(s string) color.RGBA {
	var r, g, b, a uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x%02x", &r, &g, &b, &a); err == nil {
		return color.RGBA{R: r, G: g, B: b, A: a}
	}
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err == nil {
		return color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return color.RGBA{A: 0xff}
}
