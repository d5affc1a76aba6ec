package seismo

import (
	"fmt"
	"math"
	"sort"
)

// CalibrationPoint ties a horizontal raster position to a recorded time.
// Invalid points are kept for display and possible repair but excluded from
// every time computation.
type CalibrationPoint struct {
	Position float64 `json:"position"`
	Time     float64 `json:"time"`
	Valid    bool    `json:"valid"`
}

// TimeScale maps horizontal raster positions to recorded time through a set
// of calibration points. Between adjacent valid points the mapping is
// linear; outside the calibrated range it extrapolates with the boundary
// segment's slope plus a constant correction offset per boundary.
//
// Valid points must be strictly monotonic in time, increasing or decreasing,
// matching a record read forward or backward. Positions are always strictly
// increasing.
//
// TimeScale is not safe for concurrent use; the owning document serializes
// access.
type TimeScale struct {
	points []CalibrationPoint

	// Correction offsets applied to extrapolated times beyond the first
	// and last valid points. Seismogram margins often carry a known skew
	// against the timing marks; the offsets absorb it without bending the
	// calibrated interior.
	lowerCorrection float64
	upperCorrection float64
}

// NewTimeScale creates an empty time scale.
func NewTimeScale() *TimeScale {
	return &TimeScale{}
}

// Points returns the calibration points in position order, invalid ones
// included. The slice is a copy.
func (ts *TimeScale) Points() []CalibrationPoint {
	out := make([]CalibrationPoint, len(ts.points))
	copy(out, ts.points)
	return out
}

// Boundary names one end of the calibrated range.
type Boundary int

const (
	// BoundaryLower is the range below the first valid point.
	BoundaryLower Boundary = iota

	// BoundaryUpper is the range above the last valid point.
	BoundaryUpper
)

// Correction returns the extrapolation offset of a boundary.
func (ts *TimeScale) Correction(b Boundary) float64 {
	if b == BoundaryLower {
		return ts.lowerCorrection
	}
	return ts.upperCorrection
}

// SetBoundaryCorrection sets the constant offset added to times
// extrapolated beyond the given boundary. The calibrated interior is never
// affected.
func (ts *TimeScale) SetBoundaryCorrection(b Boundary, offset float64) {
	if b == BoundaryLower {
		ts.lowerCorrection = offset
	} else {
		ts.upperCorrection = offset
	}
}

// AddOrUpdatePoint registers a calibration point, replacing the time of an
// existing point at exactly the same position. It fails with
// ErrMonotonicityViolation when the time would contradict the ordering
// established by the other valid points; the prior state is kept.
func (ts *TimeScale) AddOrUpdatePoint(position, time float64) error {
	existing := -1
	for i, p := range ts.points {
		if p.Position == position {
			existing = i
			break
		}
	}

	candidate := CalibrationPoint{Position: position, Time: time, Valid: true}
	if err := ts.checkMonotonicExcluding(candidate, existing); err != nil {
		return err
	}

	if existing >= 0 {
		ts.points[existing] = candidate
		return nil
	}
	ts.points = append(ts.points, candidate)
	sort.Slice(ts.points, func(i, j int) bool {
		return ts.points[i].Position < ts.points[j].Position
	})
	return nil
}

// RemovePoint deletes the calibration point at exactly the given position.
func (ts *TimeScale) RemovePoint(position float64) bool {
	for i, p := range ts.points {
		if p.Position == position {
			ts.points = append(ts.points[:i], ts.points[i+1:]...)
			return true
		}
	}
	return false
}

// checkMonotonic verifies that inserting candidate keeps the valid points
// strictly monotonic in time along increasing position.
func (ts *TimeScale) checkMonotonic(candidate CalibrationPoint) error {
	return ts.checkMonotonicExcluding(candidate, -1)
}

// checkMonotonicExcluding is checkMonotonic with the point at index exclude
// treated as replaced by candidate.
func (ts *TimeScale) checkMonotonicExcluding(candidate CalibrationPoint, exclude int) error {
	var valid []CalibrationPoint
	for i, p := range ts.points {
		if i != exclude && p.Valid {
			valid = append(valid, p)
		}
	}
	valid = append(valid, candidate)
	sort.Slice(valid, func(i, j int) bool { return valid[i].Position < valid[j].Position })

	if len(valid) < 2 {
		return nil
	}

	// Direction is set by the first pair; every later pair must agree.
	dir := 0.0
	for i := 1; i < len(valid); i++ {
		d := valid[i].Time - valid[i-1].Time
		switch {
		case d == 0:
			return fmt.Errorf("%w: equal times at positions %g and %g",
				ErrMonotonicityViolation, valid[i-1].Position, valid[i].Position)
		case dir == 0:
			dir = d
		case dir*d < 0:
			return fmt.Errorf("%w: time reverses direction at position %g",
				ErrMonotonicityViolation, valid[i].Position)
		}
	}
	return nil
}

func (ts *TimeScale) validPoints() []CalibrationPoint {
	var valid []CalibrationPoint
	for _, p := range ts.points {
		if p.Valid {
			valid = append(valid, p)
		}
	}
	return valid
}

// Calibrated reports whether the scale has enough valid points to answer
// time queries.
func (ts *TimeScale) Calibrated() bool {
	return len(ts.validPoints()) >= 2
}

// TimeAt maps a horizontal raster position to recorded time. Inside the
// calibrated range the mapping interpolates linearly between the bracketing
// valid points; outside it extrapolates with the boundary segment's slope
// and adds the boundary's correction offset.
func (ts *TimeScale) TimeAt(position float64) (float64, error) {
	valid := ts.validPoints()
	if len(valid) < 2 {
		return 0, fmt.Errorf("%w: have %d valid points, need 2", ErrInsufficientCalibration, len(valid))
	}

	first, last := valid[0], valid[len(valid)-1]
	switch {
	case position < first.Position:
		slope := segmentSlope(valid[0], valid[1])
		return first.Time + slope*(position-first.Position) + ts.lowerCorrection, nil
	case position > last.Position:
		slope := segmentSlope(valid[len(valid)-2], valid[len(valid)-1])
		return last.Time + slope*(position-last.Position) + ts.upperCorrection, nil
	}

	i := sort.Search(len(valid), func(i int) bool { return valid[i].Position >= position })
	if valid[i].Position == position {
		return valid[i].Time, nil
	}
	a, b := valid[i-1], valid[i]
	frac := (position - a.Position) / (b.Position - a.Position)
	return a.Time + frac*(b.Time-a.Time), nil
}

// PositionAt maps a recorded time back to a horizontal raster position. It
// is the exact inverse of TimeAt, correction offsets included.
func (ts *TimeScale) PositionAt(time float64) (float64, error) {
	valid := ts.validPoints()
	if len(valid) < 2 {
		return 0, fmt.Errorf("%w: have %d valid points, need 2", ErrInsufficientCalibration, len(valid))
	}

	first, last := valid[0], valid[len(valid)-1]
	increasing := last.Time > first.Time

	before := time < first.Time
	after := time > last.Time
	if !increasing {
		before, after = time > first.Time, time < last.Time
	}

	switch {
	case before:
		slope := segmentSlope(valid[0], valid[1])
		return first.Position + (time-ts.lowerCorrection-first.Time)/slope, nil
	case after:
		slope := segmentSlope(valid[len(valid)-2], valid[len(valid)-1])
		return last.Position + (time-ts.upperCorrection-last.Time)/slope, nil
	}

	for i := 1; i < len(valid); i++ {
		a, b := valid[i-1], valid[i]
		inSegment := time >= a.Time && time <= b.Time
		if !increasing {
			inSegment = time <= a.Time && time >= b.Time
		}
		if inSegment {
			frac := (time - a.Time) / (b.Time - a.Time)
			return a.Position + frac*(b.Position-a.Position), nil
		}
	}
	// Unreachable with monotonic valid points.
	return 0, fmt.Errorf("%w: time %g not bracketed", ErrInsufficientCalibration, time)
}

func segmentSlope(a, b CalibrationPoint) float64 {
	return (b.Time - a.Time) / (b.Position - a.Position)
}

// translate shifts every calibration position by dx. Document edits use it
// to keep calibration registered after crops and joins.
func (ts *TimeScale) translate(dx float64) {
	for i := range ts.points {
		ts.points[i].Position += dx
	}
}

// invalidateOutside flags points outside [min, max) invalid without
// discarding them.
func (ts *TimeScale) invalidateOutside(min, max float64) int {
	n := 0
	for i := range ts.points {
		if ts.points[i].Position < min || ts.points[i].Position >= max {
			if ts.points[i].Valid {
				ts.points[i].Valid = false
				n++
			}
		}
	}
	return n
}

// clone returns a deep copy.
func (ts *TimeScale) clone() *TimeScale {
	out := &TimeScale{
		points:          make([]CalibrationPoint, len(ts.points)),
		lowerCorrection: ts.lowerCorrection,
		upperCorrection: ts.upperCorrection,
	}
	copy(out.points, ts.points)
	return out
}

// split partitions the scale at position x: points left of x stay in the
// first scale, points at or right of x move to the second with positions
// rebased to x. Correction offsets stay with their boundary.
func (ts *TimeScale) split(x float64) (left, right *TimeScale) {
	left = &TimeScale{lowerCorrection: ts.lowerCorrection}
	right = &TimeScale{upperCorrection: ts.upperCorrection}
	for _, p := range ts.points {
		if p.Position < x {
			left.points = append(left.points, p)
		} else {
			p.Position -= x
			right.points = append(right.points, p)
		}
	}
	return left, right
}

// merge absorbs other's points translated by dx, flagging any point of
// other that would break monotonicity invalid instead of failing the join.
func (ts *TimeScale) merge(other *TimeScale, dx float64) (flagged int) {
	for _, p := range other.points {
		p.Position += dx
		if !p.Valid {
			ts.points = append(ts.points, p)
			continue
		}
		if err := ts.checkMonotonic(p); err != nil {
			p.Valid = false
			flagged++
		}
		ts.points = append(ts.points, p)
	}
	sort.Slice(ts.points, func(i, j int) bool {
		return ts.points[i].Position < ts.points[j].Position
	})
	ts.upperCorrection = other.upperCorrection
	return flagged
}

// NearestPoint returns the index of the calibration point closest to
// position, or -1 when the scale is empty. Interactive pickers use it to
// resolve a click to a point.
func (ts *TimeScale) NearestPoint(position float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range ts.points {
		if d := math.Abs(p.Position - position); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
