package raster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/spectriclabs/rgb-to-z/internal/ramp"
	"github.com/spectriclabs/rgb-to-z/internal/reconstruct"
)

// Options controls a conversion pass.
type Options struct {
	// Workers is the number of row bands processed concurrently. Zero
	// uses GOMAXPROCS.
	Workers int
	// Round rounds each reconstructed Z half away from zero.
	Round bool
	// NoData is written to unclassified and masked cells.
	NoData float64
}

// DefaultOptions returns a parallel, unrounded pass with DefaultNoData.
func DefaultOptions() Options {
	return Options{NoData: DefaultNoData}
}

// Report counts the outcome of every cell of a pass.
type Report struct {
	Cells           int   `json:"cells"`
	Matched         int   `json:"matched"`
	NoData          int   `json:"nodata"`
	Masked          int   `json:"masked"`
	IntervalMatches []int `json:"interval_matches"`
}

func newReport(intervals int) *Report {
	return &Report{IntervalMatches: make([]int, intervals)}
}

func (r *Report) merge(o *Report) {
	r.Cells += o.Cells
	r.Matched += o.Matched
	r.NoData += o.NoData
	r.Masked += o.Masked
	for i, n := range o.IntervalMatches {
		r.IntervalMatches[i] += n
	}
}

// NewReconstructor builds the reconstructor for policy. The histogram
// policy freezes the composite's channel histograms here, before any
// pixel is converted.
func NewReconstructor(policy reconstruct.Policy, c *Composite) (reconstruct.Reconstructor, error) {
	switch policy {
	case reconstruct.Linear:
		return reconstruct.NewLinear(), nil
	case reconstruct.HistogramEqualize:
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return reconstruct.NewHistogramEqualize(c.Histograms())
	default:
		return nil, fmt.Errorf("%w: %v", reconstruct.ErrUnknownPolicy, policy)
	}
}

// Convert classifies and reconstructs every pixel of c. Rows are split
// into bands that write disjoint parts of the grid. On error no grid is
// returned.
func Convert(ctx context.Context, c *Composite, r *ramp.Ramp, rec reconstruct.Reconstructor, opts Options) (*Grid, *Report, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if r == nil || rec == nil {
		return nil, nil, errors.New("raster: ramp and reconstructor are required")
	}

	grid := NewGrid(c.Width, c.Height, opts.NoData)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	bands := splitRows(c.Height, workers)
	reports := make([]*Report, len(bands))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, band := range bands {
		i, band := i, band
		g.Go(func() error {
			rep, err := convertRows(ctx, c, grid, r, rec, opts.Round, band[0], band[1])
			reports[i] = rep
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	report := newReport(r.Len())
	for _, rep := range reports {
		report.merge(rep)
	}
	return grid, report, nil
}

// convertRows fills rows [y0, y1) of grid, stopping at the first row
// that starts after ctx is done.
func convertRows(ctx context.Context, c *Composite, grid *Grid, r *ramp.Ramp, rec reconstruct.Reconstructor, round bool, y0, y1 int) (*Report, error) {
	report := newReport(r.Len())
	for y := y0; y < y1; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < c.Width; x++ {
			report.Cells++
			if c.Masked(x, y) {
				report.Masked++
				continue
			}
			px := c.At(x, y)
			idx, ok := r.Classify(px)
			if !ok {
				report.NoData++
				continue
			}
			z := rec.Reconstruct(px, r.Interval(idx))
			if round {
				z = math.Round(z)
			}
			grid.Values[y*grid.Width+x] = z
			report.Matched++
			report.IntervalMatches[idx]++
		}
	}
	return report, nil
}

// splitRows partitions [0, height) into at most n contiguous bands.
func splitRows(height, n int) [][2]int {
	if height == 0 {
		return nil
	}
	n = min(n, height)
	bands := make([][2]int, 0, n)
	per, extra := height/n, height%n
	y := 0
	for i := 0; i < n; i++ {
		rows := per
		if i < extra {
			rows++
		}
		bands = append(bands, [2]int{y, y + rows})
		y += rows
	}
	return bands
}
