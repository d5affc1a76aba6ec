package seismo

import (
	"fmt"
	"image/color"
	"math"
	"sort"
)

// CurvePoint is one vertex of a traced curve, in raster coordinates.
// Invalid points fell outside the document after an edit; they are kept for
// display and repair but excluded from digitization.
type CurvePoint struct {
	Pos     Point `json:"pos"`
	Invalid bool  `json:"invalid,omitempty"`
}

// VectorCurve is one traced ground-motion curve. Points keep their
// insertion order: the curve renders as straight segments between
// consecutive vertices exactly as the operator placed them, never spatially
// re-sorted or resampled.
type VectorCurve struct {
	id     int
	name   string
	color  color.RGBA
	points []CurvePoint
}

// ID returns the curve's identifier, unique within its set.
func (c *VectorCurve) ID() int { return c.id }

// Name returns the display name.
func (c *VectorCurve) Name() string { return c.name }

// SetName updates the display name.
func (c *VectorCurve) SetName(name string) { c.name = name }

// Color returns the display color.
func (c *VectorCurve) Color() color.RGBA { return c.color }

// SetColor updates the display color.
func (c *VectorCurve) SetColor(col color.RGBA) { c.color = col }

// Len returns the number of points, invalid ones included.
func (c *VectorCurve) Len() int { return len(c.points) }

// Points returns the points in insertion order. The slice is a copy.
func (c *VectorCurve) Points() []CurvePoint {
	out := make([]CurvePoint, len(c.points))
	copy(out, c.points)
	return out
}

// ValidPoints returns only the points usable for digitization.
func (c *VectorCurve) ValidPoints() []CurvePoint {
	var out []CurvePoint
	for _, p := range c.points {
		if !p.Invalid {
			out = append(out, p)
		}
	}
	return out
}

// InsertPoint appends a vertex. A vertex at exactly an existing position
// fails with ErrDuplicatePoint.
func (c *VectorCurve) InsertPoint(p Point) error {
	for _, q := range c.points {
		if q.Pos == p {
			return fmt.Errorf("%w: curve %d vertex at (%g, %g)", ErrDuplicatePoint, c.id, p.X, p.Y)
		}
	}
	c.points = append(c.points, CurvePoint{Pos: p})
	return nil
}

// MovePoint relocates the vertex at index, keeping its place in the
// sequence. The move fails with ErrDuplicatePoint when the target collides
// exactly with another vertex.
func (c *VectorCurve) MovePoint(index int, p Point) error {
	if index < 0 || index >= len(c.points) {
		return fmt.Errorf("%w: curve %d has no vertex %d", ErrInvalidRegion, c.id, index)
	}
	for i, q := range c.points {
		if i != index && q.Pos == p {
			return fmt.Errorf("%w: curve %d vertex at (%g, %g)", ErrDuplicatePoint, c.id, p.X, p.Y)
		}
	}
	c.points[index].Pos = p
	c.points[index].Invalid = false
	return nil
}

// DeletePoint removes the vertex at index.
func (c *VectorCurve) DeletePoint(index int) error {
	if index < 0 || index >= len(c.points) {
		return fmt.Errorf("%w: curve %d has no vertex %d", ErrInvalidRegion, c.id, index)
	}
	c.points = append(c.points[:index], c.points[index+1:]...)
	return nil
}

// NearestPoint returns the index of the vertex closest to p, or -1 for an
// empty curve.
func (c *VectorCurve) NearestPoint(p Point) int {
	best, bestDist := -1, 0.0
	for i, q := range c.points {
		if d := q.Pos.Distance(p); best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// minX returns the smallest valid X of the curve, or +Inf when none.
func (c *VectorCurve) minX() float64 {
	min := math.Inf(1)
	for _, p := range c.points {
		if !p.Invalid && p.Pos.X < min {
			min = p.Pos.X
		}
	}
	return min
}

// translate shifts every vertex by (dx, dy).
func (c *VectorCurve) translate(dx, dy float64) {
	for i := range c.points {
		c.points[i].Pos.X += dx
		c.points[i].Pos.Y += dy
	}
}

// invalidateOutside flags vertices outside the rectangle [min, max) on both
// axes, returning how many changed.
func (c *VectorCurve) invalidateOutside(minX, minY, maxX, maxY float64) int {
	n := 0
	for i := range c.points {
		p := c.points[i].Pos
		if p.X < minX || p.X >= maxX || p.Y < minY || p.Y >= maxY {
			if !c.points[i].Invalid {
				c.points[i].Invalid = true
				n++
			}
		}
	}
	return n
}

// CurveSet holds the traced curves of one document.
type CurveSet struct {
	curves []*VectorCurve
	nextID int
}

// NewCurveSet creates an empty curve set.
func NewCurveSet() *CurveSet {
	return &CurveSet{nextID: 1}
}

// CreateCurve adds an empty curve and returns it.
func (s *CurveSet) CreateCurve(name string, col color.RGBA) *VectorCurve {
	c := &VectorCurve{id: s.nextID, name: name, color: col}
	s.nextID++
	s.curves = append(s.curves, c)
	return c
}

// Curve returns the curve with the given ID.
func (s *CurveSet) Curve(id int) (*VectorCurve, bool) {
	for _, c := range s.curves {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// Curves returns all curves in creation order. The slice is a copy; the
// curves are shared.
func (s *CurveSet) Curves() []*VectorCurve {
	out := make([]*VectorCurve, len(s.curves))
	copy(out, s.curves)
	return out
}

// Len returns the number of curves.
func (s *CurveSet) Len() int { return len(s.curves) }

// DeleteCurve removes the curve with the given ID.
func (s *CurveSet) DeleteCurve(id int) error {
	for i, c := range s.curves {
		if c.id == id {
			s.curves = append(s.curves[:i], s.curves[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", ErrCurveNotFound, id)
}

// SplitCurve divides a curve at a vertex index: the original keeps vertices
// [0, index), a new curve with the same color receives [index, len). The
// new curve is returned. Splitting a trace at a recording break keeps both
// halves digitizable on their own.
func (s *CurveSet) SplitCurve(id, index int) (*VectorCurve, error) {
	c, ok := s.Curve(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrCurveNotFound, id)
	}
	if index <= 0 || index >= len(c.points) {
		return nil, fmt.Errorf("%w: split index %d of %d points", ErrInvalidRegion, index, len(c.points))
	}

	right := make([]CurvePoint, len(c.points)-index)
	copy(right, c.points[index:])
	c.points = c.points[:index]

	nc := s.CreateCurve(c.name+" (split)", c.color)
	nc.points = right
	return nc, nil
}

// MergeCurves concatenates the named curves into one, ordering the pieces
// by their leftmost valid vertex so a trace split at a break rejoins in
// time order. The first ID survives; the others are deleted. Vertices that
// coincide exactly across pieces fail the merge with ErrDuplicatePoint and
// nothing changes.
func (s *CurveSet) MergeCurves(ids ...int) error {
	if len(ids) < 2 {
		return fmt.Errorf("%w: merge needs at least two curves", ErrInvalidRegion)
	}

	pieces := make([]*VectorCurve, 0, len(ids))
	for _, id := range ids {
		c, ok := s.Curve(id)
		if !ok {
			return fmt.Errorf("%w: id %d", ErrCurveNotFound, id)
		}
		pieces = append(pieces, c)
	}

	sort.SliceStable(pieces, func(i, j int) bool { return pieces[i].minX() < pieces[j].minX() })

	seen := make(map[Point]bool)
	var merged []CurvePoint
	for _, c := range pieces {
		for _, p := range c.points {
			if seen[p.Pos] {
				return fmt.Errorf("%w: vertex (%g, %g) present in two curves",
					ErrDuplicatePoint, p.Pos.X, p.Pos.Y)
			}
			seen[p.Pos] = true
			merged = append(merged, p)
		}
	}

	target, _ := s.Curve(ids[0])
	target.points = merged
	for _, id := range ids[1:] {
		if err := s.DeleteCurve(id); err != nil {
			return err
		}
	}
	return nil
}

// translate shifts every curve by (dx, dy).
func (s *CurveSet) translate(dx, dy float64) {
	for _, c := range s.curves {
		c.translate(dx, dy)
	}
}

// invalidateOutside flags vertices of every curve outside the rectangle,
// returning the total flagged.
func (s *CurveSet) invalidateOutside(minX, minY, maxX, maxY float64) int {
	n := 0
	for _, c := range s.curves {
		n += c.invalidateOutside(minX, minY, maxX, maxY)
	}
	return n
}

// splitAt partitions the set at horizontal position x into curves for the
// left and right documents. A curve spanning x is divided; right-side
// vertices rebase to x. Relative vertex order is preserved on both sides.
func (s *CurveSet) splitAt(x float64) (left, right *CurveSet) {
	left = NewCurveSet()
	right = NewCurveSet()
	for _, c := range s.curves {
		var lp, rp []CurvePoint
		for _, p := range c.points {
			if p.Pos.X < x {
				lp = append(lp, p)
			} else {
				p.Pos.X -= x
				rp = append(rp, p)
			}
		}
		if len(lp) > 0 || len(rp) == 0 {
			lc := left.CreateCurve(c.name, c.color)
			lc.points = lp
		}
		if len(rp) > 0 {
			rc := right.CreateCurve(c.name, c.color)
			rc.points = rp
		}
	}
	return left, right
}

// absorb adds every curve of other, translated by (dx, dy), assigning fresh
// IDs in this set.
func (s *CurveSet) absorb(other *CurveSet, dx, dy float64) {
	for _, c := range other.curves {
		nc := s.CreateCurve(c.name, c.color)
		nc.points = make([]CurvePoint, len(c.points))
		copy(nc.points, c.points)
		nc.translate(dx, dy)
	}
}
