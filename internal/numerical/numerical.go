package numerical

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of reconstructed Z values.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

func SuppressNaN(num float64) float64 {
	if math.IsNaN(num) {
		return 0
	}
	return num
}

// Summarize computes the summary of data. An empty slice yields a zero
// Summary.
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(data, nil)
	return Summary{
		Count:  len(data),
		Min:    SuppressNaN(floats.Min(data)),
		Max:    SuppressNaN(floats.Max(data)),
		Mean:   SuppressNaN(mean),
		StdDev: SuppressNaN(std),
	}
}
