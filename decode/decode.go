// Package decode wraps format-specific image decoding behind a small
// adapter interface: decode an axis-aligned sub-rectangle of a source at a
// given reduction scale, and probe dimensions and physical resolution.
//
// The rest of the engine addresses pixels only through these interfaces, so
// the adapter can be swapped for a mock in tests or for a different decoder
// stack without touching the tile store or compositor.
package decode

import (
	"fmt"
	"image"
)

// Source is an open handle to one decodable raster source.
//
// Implementations must be safe for concurrent DecodeRegion calls; the tile
// store invokes them from multiple worker goroutines.
type Source interface {
	// DecodeRegion decodes the given source-space rectangle, downscaled by
	// the integer factor scale (1 = native resolution, 2 = half, ...).
	// The returned image has dimensions ceil(rect.Dx()/scale) by
	// ceil(rect.Dy()/scale).
	DecodeRegion(rect image.Rectangle, scale int) (*image.RGBA, error)

	// Dimensions reports the source width and height in pixels.
	Dimensions() (w, h int)

	// Resolution reports pixels per inch, or 0 if the format does not
	// carry resolution metadata.
	Resolution() float64

	// Path identifies the source for persistence records.
	Path() string

	// Close releases decoder resources.
	Close() error
}

// Adapter opens raster sources by path.
type Adapter interface {
	Open(path string) (Source, error)
}

// Error describes a decode failure for one source.
//
// Transient errors (short reads, interrupted I/O) are retried once by the
// tile store; permanent errors (corrupt data, unsupported format) are not.
type Error struct {
	Path      string
	Op        string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether the failure is worth a single retry.
func (e *Error) IsTransient() bool { return e.Transient }
