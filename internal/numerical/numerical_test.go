package numerical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuppressNaN(t *testing.T) {
	assert.Equal(t, 0.0, SuppressNaN(math.NaN()))
	assert.Equal(t, -3.5, SuppressNaN(-3.5))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 5.0, s.Mean)
	// gonum reports the unbiased sample deviation.
	assert.InDelta(t, 2.138, s.StdDev, 1e-3)

	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Count: 1, Min: 3, Max: 3, Mean: 3}, Summarize([]float64{3}))
}
