// Package tile implements the out-of-core raster cache: fixed-size tiles at
// multiple pyramid levels, decoded on demand by background workers and held
// under a byte-budgeted LRU policy.
//
// Tiles are derived cache entries, never authoritative data: a tile's pixels
// are always the scaled decode of the corresponding logical rectangle, and
// invalidation simply discards them.
//
// Thread safety: Store is safe for concurrent use. The cache map and budget
// counter sit behind a single mutex; decode work runs on a bounded pool.
package tile

import "image"

// Key addresses one tile: pyramid level plus row/column within the level's
// tile grid. Level 0 is native resolution; each level above halves linear
// resolution.
type Key struct {
	Level int
	Row   int
	Col   int
}

// State describes what Fetch found for a key.
type State int

const (
	// StatePending means the tile is not resident yet; a background decode
	// is scheduled or running.
	StatePending State = iota

	// StateReady means the tile's pixels are resident.
	StateReady

	// StateFailed means decoding failed permanently; the caller should
	// substitute a placeholder and must not expect a retry.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source provides pixel data for logical raster rectangles. The raster
// document implements it over its region list; tests substitute synthetic
// providers.
//
// Implementations must be safe for concurrent calls.
type Source interface {
	// DecodeRegion decodes the logical-space rectangle downscaled by the
	// integer factor scale (a power of two: 1<<level).
	DecodeRegion(rect image.Rectangle, scale int) (*image.RGBA, error)

	// Size reports the logical raster dimensions.
	Size() (w, h int)
}

// transienter is implemented by decode errors that merit a single retry.
type transienter interface {
	IsTransient() bool
}

// entry is one cache slot. All fields are guarded by the store mutex.
type entry struct {
	key      Key
	state    State
	pix      *image.RGBA
	bytes    int64
	node     *lruNode
	retried  bool
	jobEpoch uint64
}
