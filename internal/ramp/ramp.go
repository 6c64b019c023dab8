// Package ramp turns an ordered calibration table into color intervals
// and locates pixel colors along them.
package ramp

import (
	"errors"
	"fmt"

	"github.com/spectriclabs/rgb-to-z/internal/calibration"
)

var (
	// ErrInsufficientSamples is returned when fewer than two samples are
	// supplied; no interval can be formed.
	ErrInsufficientSamples = errors.New("at least 2 calibration samples are required")
	// ErrAmbiguousCalibration is returned when one color is calibrated to
	// more than one Z value.
	ErrAmbiguousCalibration = errors.New("ambiguous calibration")
)

// RGB is a pixel or sample color, channels in R, G, B order.
type RGB = [3]uint8

// AmbiguousCalibrationError names the two conflicting samples by their
// zero-based position in the table.
type AmbiguousCalibrationError struct {
	First, Second   int
	Color           RGB
	FirstZ, SecondZ float64
}

func (e *AmbiguousCalibrationError) Error() string {
	return fmt.Sprintf(
		"%v: color (%d,%d,%d) maps to %g (sample %d) and %g (sample %d)",
		ErrAmbiguousCalibration,
		e.Color[0], e.Color[1], e.Color[2],
		e.FirstZ, e.First, e.SecondZ, e.Second,
	)
}

func (e *AmbiguousCalibrationError) Unwrap() error {
	return ErrAmbiguousCalibration
}

// Ramp is the ordered, read-only interval list built from a calibration
// table. It is safe for concurrent use.
type Ramp struct {
	intervals []Interval
}

// Build constructs one interval for every pair of adjacent samples.
func Build(samples []calibration.Sample) (*Ramp, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientSamples, len(samples))
	}
	if err := checkAmbiguous(samples); err != nil {
		return nil, err
	}

	intervals := make([]Interval, 0, len(samples)-1)
	for i := 0; i < len(samples)-1; i++ {
		intervals = append(intervals, NewInterval(samples[i], samples[i+1]))
	}
	return &Ramp{intervals: intervals}, nil
}

func checkAmbiguous(samples []calibration.Sample) error {
	seen := make(map[RGB]int, len(samples))
	for i, s := range samples {
		first, ok := seen[s.Color]
		if !ok {
			seen[s.Color] = i
			continue
		}
		if samples[first].Z != s.Z {
			return &AmbiguousCalibrationError{
				First:   first,
				Second:  i,
				Color:   s.Color,
				FirstZ:  samples[first].Z,
				SecondZ: s.Z,
			}
		}
	}
	return nil
}

// Len returns the number of intervals.
func (r *Ramp) Len() int {
	return len(r.intervals)
}

// Interval returns the i'th interval. i must be between 0 and Len()-1.
func (r *Ramp) Interval(i int) *Interval {
	return &r.intervals[i]
}

// Intervals returns a copy of the interval list.
func (r *Ramp) Intervals() []Interval {
	out := make([]Interval, len(r.intervals))
	copy(out, r.intervals)
	return out
}

// Classify returns the index of the first interval containing c, or
// false when c lies on no calibrated path (NoData).
func (r *Ramp) Classify(c RGB) (int, bool) {
	for i := range r.intervals {
		if r.intervals[i].Contains(c) {
			return i, true
		}
	}
	return -1, false
}
