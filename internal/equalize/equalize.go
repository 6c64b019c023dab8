// Package equalize holds whole-image channel histograms and inverts the
// histogram equalization transform
//
//	h(v) = (cdf(v) - cdfMin) / (N - cdfMin) * (L - 1)
//
// recovering the pre-equalization intensity of an equalized pixel.
package equalize

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Levels is the number of intensity bins per 8-bit channel.
const Levels = 256

// Histogram is a frozen channel histogram. It is never modified after
// construction and is safe for concurrent use.
type Histogram struct {
	counts [Levels]float64
	cumSum [Levels]float64
	cdfMin float64
	total  float64

	inverse [Levels]uint8
}

// NewHistogram freezes a set of per-bin counts.
func NewHistogram(counts [Levels]float64) *Histogram {
	h := &Histogram{counts: counts}
	floats.CumSum(h.cumSum[:], h.counts[:])
	h.total = h.cumSum[Levels-1]
	for _, c := range h.cumSum {
		if c > 0 {
			h.cdfMin = c
			break
		}
	}
	for v := 0; v < Levels; v++ {
		h.inverse[v] = h.invert(uint8(v))
	}
	return h
}

// Count returns the number of pixels in bin v.
func (h *Histogram) Count(v uint8) float64 { return h.counts[v] }

// CDF returns the cumulative count up to and including bin v.
func (h *Histogram) CDF(v uint8) float64 { return h.cumSum[v] }

// CDFMin returns the smallest nonzero cumulative count.
func (h *Histogram) CDFMin() float64 { return h.cdfMin }

// Total returns the number of pixels counted.
func (h *Histogram) Total() float64 { return h.total }

// Degenerate reports whether every counted pixel falls in one bin, in
// which case equalization has no inverse.
func (h *Histogram) Degenerate() bool {
	return h.total == h.cdfMin
}

// equalize applies the forward transform to v.
func (h *Histogram) equalize(v uint8) uint8 {
	if h.Degenerate() {
		return 0
	}
	e := (h.cumSum[v] - h.cdfMin) / (h.total - h.cdfMin) * (Levels - 1)
	return uint8(math.Round(math.Max(0, math.Min(Levels-1, e))))
}

// Invert returns the pre-equalization intensity of an equalized value.
// A degenerate histogram inverts everything to 0.
func (h *Histogram) Invert(v uint8) uint8 {
	return h.inverse[v]
}

func (h *Histogram) invert(v uint8) uint8 {
	if h.Degenerate() {
		return 0
	}
	target := float64(v)*(h.total-h.cdfMin)/(Levels-1) + h.cdfMin

	// Lowest bin wins ties.
	best := 0
	bestDiff := math.Abs(h.cumSum[0] - target)
	for b := 1; b < Levels; b++ {
		d := math.Abs(h.cumSum[b] - target)
		if d < bestDiff {
			best = b
			bestDiff = d
		}
	}
	return uint8(best)
}

// Counter accumulates the three channel histograms of an image.
type Counter struct {
	counts [3][Levels]float64
}

// Add counts one pixel.
func (c *Counter) Add(px [3]uint8) {
	c.counts[0][px[0]]++
	c.counts[1][px[1]]++
	c.counts[2][px[2]]++
}

// Histograms freezes the R, G and B histograms.
func (c *Counter) Histograms() [3]*Histogram {
	return [3]*Histogram{
		NewHistogram(c.counts[0]),
		NewHistogram(c.counts[1]),
		NewHistogram(c.counts[2]),
	}
}
