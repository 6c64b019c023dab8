package ramp

import (
	"github.com/spectriclabs/rgb-to-z/internal/calibration"
)

// Interval spans two adjacent calibration samples. Low and High keep
// file order; Z is not required to increase from Low to High.
type Interval struct {
	Low  RGB `json:"low"`
	High RGB `json:"high"`

	ColorMin   RGB    `json:"color_min"`
	ColorMax   RGB    `json:"color_max"`
	ColorRange [3]int `json:"color_range"`

	ZMin   float64 `json:"z_min"`
	ZMax   float64 `json:"z_max"`
	ZRange float64 `json:"z_range"`

	channel int
}

// NewInterval precomputes the per-channel bounds and the discriminating
// channel for the pair (low, high).
func NewInterval(low, high calibration.Sample) Interval {
	iv := Interval{
		Low:    low.Color,
		High:   high.Color,
		ZMin:   low.Z,
		ZMax:   high.Z,
		ZRange: high.Z - low.Z,
	}
	for c := 0; c < 3; c++ {
		iv.ColorMin[c] = min(low.Color[c], high.Color[c])
		iv.ColorMax[c] = max(low.Color[c], high.Color[c])
		iv.ColorRange[c] = int(iv.ColorMax[c]) - int(iv.ColorMin[c])
	}
	iv.channel = widestChannel(iv.ColorRange)
	return iv
}

// Ties go to the earlier channel: R, then G, then B.
func widestChannel(r [3]int) int {
	best := 0
	for c := 1; c < 3; c++ {
		if r[c] > r[best] {
			best = c
		}
	}
	return best
}

// Degenerate reports whether both endpoints share one color.
func (iv *Interval) Degenerate() bool {
	return iv.ColorRange == [3]int{}
}

// Channel returns the channel with the widest color range.
func (iv *Interval) Channel() int {
	return iv.channel
}

// Contains reports whether every channel of c lies within the interval's
// inclusive per-channel bounds. A degenerate interval only contains its
// own color.
func (iv *Interval) Contains(c RGB) bool {
	for ch := 0; ch < 3; ch++ {
		if c[ch] < iv.ColorMin[ch] || c[ch] > iv.ColorMax[ch] {
			return false
		}
	}
	return true
}

// Position returns how far c lies from Low towards High along the
// discriminating channel, clamped to [0,1]. A degenerate interval always
// yields 0.
func (iv *Interval) Position(c RGB) float64 {
	ch := iv.channel
	return PositionBetween(float64(c[ch]), float64(iv.Low[ch]), float64(iv.High[ch]))
}

// PositionBetween measures v between the endpoint intensities lo and hi,
// clamped to [0,1]. Equal endpoints yield 0.
func PositionBetween(v, lo, hi float64) float64 {
	span := hi - lo
	if span == 0 {
		return 0
	}
	return clamp01((v - lo) / span)
}

// Lerp maps a spectral position to Z.
func (iv *Interval) Lerp(position float64) float64 {
	switch position {
	case 0:
		return iv.ZMin
	case 1:
		return iv.ZMax
	}
	return iv.ZMin + position*iv.ZRange
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
