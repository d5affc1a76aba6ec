package seismo

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Sample is one point of a digitized amplitude series.
type Sample struct {
	Time      float64 `json:"time"`
	Amplitude float64 `json:"amplitude"`
}

// DigitizeOptions controls curve-to-series conversion.
type DigitizeOptions struct {
	// SamplingRate is the number of output samples per time unit.
	SamplingRate float64

	// Detrend subtracts the least-squares linear trend from the series,
	// removing baseline drift of the recording pen.
	Detrend bool

	// FixBreaks cancels step offsets where the trace jumped, typically a
	// pen repositioning between drum revolutions.
	FixBreaks bool

	// BreakThreshold is the minimum amplitude jump between consecutive
	// traced vertices treated as a step break. 0 derives a threshold from
	// the jump distribution.
	BreakThreshold float64
}

// Digitize converts a traced curve into an evenly sampled amplitude series.
// Each valid vertex maps through the time scale (X to time) and the vertical
// axis flips so larger amplitudes point up. The vertex series is then
// resampled at the sampling rate with piecewise-linear interpolation.
func Digitize(curve *VectorCurve, ts *TimeScale, opts DigitizeOptions) ([]Sample, error) {
	if opts.SamplingRate <= 0 {
		return nil, fmt.Errorf("%w: sampling rate %g", ErrInvalidRegion, opts.SamplingRate)
	}

	pts := curve.ValidPoints()
	if len(pts) < 2 {
		return nil, fmt.Errorf("%w: curve %d has %d valid points, need 2",
			ErrInvalidRegion, curve.ID(), len(pts))
	}

	// Raster Y grows downward; reflecting about the vertical midrange turns
	// it into an upward amplitude without moving the series' value range.
	yMin, yMax := pts[0].Pos.Y, pts[0].Pos.Y
	for _, p := range pts[1:] {
		yMin = math.Min(yMin, p.Pos.Y)
		yMax = math.Max(yMax, p.Pos.Y)
	}

	vertices := make([]Sample, 0, len(pts))
	for _, p := range pts {
		t, err := ts.TimeAt(p.Pos.X)
		if err != nil {
			return nil, err
		}
		vertices = append(vertices, Sample{Time: t, Amplitude: yMax + yMin - p.Pos.Y})
	}
	sort.Slice(vertices, func(i, j int) bool { return vertices[i].Time < vertices[j].Time })
	vertices = dedupeTimes(vertices)
	if len(vertices) < 2 {
		return nil, fmt.Errorf("%w: curve %d collapses to %d distinct times",
			ErrInvalidRegion, curve.ID(), len(vertices))
	}

	if opts.FixBreaks {
		fixBreaks(vertices, opts.BreakThreshold)
	}

	times := make([]float64, len(vertices))
	amps := make([]float64, len(vertices))
	for i, s := range vertices {
		times[i] = s.Time
		amps[i] = s.Amplitude
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(times, amps); err != nil {
		return nil, fmt.Errorf("digitize curve %d: %w", curve.ID(), err)
	}

	step := 1 / opts.SamplingRate
	n := int(math.Floor((times[len(times)-1]-times[0])/step)) + 1
	out := make([]Sample, n)
	for i := range out {
		t := times[0] + float64(i)*step
		out[i] = Sample{Time: t, Amplitude: pl.Predict(t)}
	}

	if opts.Detrend {
		detrend(out)
	}
	return out, nil
}

// dedupeTimes drops later vertices sharing a time with an earlier one.
// Interpolation needs strictly increasing abscissae.
func dedupeTimes(vertices []Sample) []Sample {
	out := vertices[:1]
	for _, s := range vertices[1:] {
		if s.Time > out[len(out)-1].Time {
			out = append(out, s)
		}
	}
	return out
}

// fixBreaks removes step offsets: wherever the amplitude jumps by more than
// the threshold between consecutive vertices, the jump is subtracted from
// everything after it. With threshold 0 the cutoff is four standard
// deviations of the jump distribution.
func fixBreaks(vertices []Sample, threshold float64) {
	diffs := make([]float64, len(vertices)-1)
	for i := 1; i < len(vertices); i++ {
		diffs[i-1] = vertices[i].Amplitude - vertices[i-1].Amplitude
	}

	if threshold <= 0 {
		sd := stat.StdDev(diffs, nil)
		if sd == 0 {
			return
		}
		threshold = 4 * sd
	}

	offset := 0.0
	for i := 1; i < len(vertices); i++ {
		if d := diffs[i-1]; math.Abs(d) > threshold {
			offset += d
		}
		vertices[i].Amplitude -= offset
	}
}

// detrend subtracts the least-squares line through the series.
func detrend(samples []Sample) {
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Time
		ys[i] = s.Amplitude
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	for i := range samples {
		samples[i].Amplitude -= alpha + beta*samples[i].Time
	}
}
