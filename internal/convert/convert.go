// Package convert runs a whole conversion job: load the calibration
// table and composite, build the ramp, invert every pixel and write the
// results.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spectriclabs/rgb-to-z/internal/calibration"
	"github.com/spectriclabs/rgb-to-z/internal/config"
	"github.com/spectriclabs/rgb-to-z/internal/datasource"
	"github.com/spectriclabs/rgb-to-z/internal/image"
	"github.com/spectriclabs/rgb-to-z/internal/numerical"
	"github.com/spectriclabs/rgb-to-z/internal/ramp"
	"github.com/spectriclabs/rgb-to-z/internal/raster"
	"github.com/spectriclabs/rgb-to-z/internal/reconstruct"
)

// ErrNoDataCalibrated is returned when a calibration Z equals the NoData
// sentinel, which would make those cells indistinguishable from NoData.
var ErrNoDataCalibrated = errors.New("calibration Z equals the nodata value")

// Params selects the policy and pass options of one job.
type Params struct {
	Policy  reconstruct.Policy
	Options raster.Options
}

// ParamsFromConfig reads the job defaults from cfg.
func ParamsFromConfig(cfg *config.Configuration) (Params, error) {
	policy, err := reconstruct.ParsePolicy(cfg.Policy)
	if err != nil {
		return Params{}, err
	}
	return Params{
		Policy: policy,
		Options: raster.Options{
			Workers: cfg.Workers,
			Round:   cfg.Round,
			NoData:  cfg.NoData,
		},
	}, nil
}

// Report describes a finished job.
type Report struct {
	raster.Report
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Policy    string            `json:"policy"`
	Intervals []ramp.Interval   `json:"intervals"`
	Summary   numerical.Summary `json:"summary"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
}

// Result holds the reconstructed grid and its report.
type Result struct {
	Grid   *raster.Grid
	Report Report
}

// Run inverts composite through samples. Calibration errors are returned
// before any pixel is touched.
func Run(ctx context.Context, logger *zap.Logger, composite *raster.Composite, samples []calibration.Sample, params Params) (*Result, error) {
	start := time.Now()
	r, err := ramp.Build(samples)
	if err != nil {
		return nil, err
	}
	if noData := params.Options.NoData; !math.IsNaN(noData) {
		for i, s := range samples {
			if s.Z == noData {
				return nil, fmt.Errorf("%w: sample %d has Z %g", ErrNoDataCalibrated, i+1, s.Z)
			}
		}
	}
	rec, err := raster.NewReconstructor(params.Policy, composite)
	if err != nil {
		return nil, err
	}
	grid, report, err := raster.Convert(ctx, composite, r, rec, params.Options)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Grid: grid,
		Report: Report{
			Report:    *report,
			Width:     grid.Width,
			Height:    grid.Height,
			Policy:    params.Policy.String(),
			Intervals: r.Intervals(),
			Summary:   numerical.Summarize(grid.Data()),
			Elapsed:   time.Since(start),
		},
	}
	logger.Info(
		"Converted composite",
		zap.Int("width", grid.Width),
		zap.Int("height", grid.Height),
		zap.String("policy", params.Policy.String()),
		zap.Int("intervals", r.Len()),
		zap.Int("matched", report.Matched),
		zap.Int("nodata", report.NoData),
		zap.Int("masked", report.Masked),
		zap.Float64("zmin", result.Report.Summary.Min),
		zap.Float64("zmax", result.Report.Summary.Max),
		zap.Duration("elapsed", result.Report.Elapsed),
	)
	return result, nil
}

// RunReaders parses the calibration table and decodes the composite
// before running.
func RunReaders(ctx context.Context, logger *zap.Logger, imageReader, calibrationReader io.Reader, params Params) (*Result, error) {
	samples, err := calibration.Parse(calibrationReader)
	if err != nil {
		return nil, err
	}
	logger.Debug("Parsed calibration table", zap.Int("samples", len(samples)))

	composite, format, err := image.Decode(imageReader)
	if err != nil {
		return nil, err
	}
	logger.Debug(
		"Decoded composite",
		zap.String("format", format),
		zap.Int("width", composite.Width),
		zap.Int("height", composite.Height),
	)
	return Run(ctx, logger, composite, samples, params)
}

// RunRefs opens the image and calibration references through ds and
// runs the job.
func RunRefs(ctx context.Context, logger *zap.Logger, ds *datasource.DataSource, imageRef, calibrationRef string, params Params) (*Result, error) {
	calibrationReader, err := ds.OpenRef(ctx, calibrationRef)
	if err != nil {
		return nil, fmt.Errorf("opening calibration %s: %w", calibrationRef, err)
	}
	defer calibrationReader.Close()

	imageReader, err := ds.OpenRef(ctx, imageRef)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", imageRef, err)
	}
	defer imageReader.Close()

	return RunReaders(ctx, logger, imageReader, calibrationReader, params)
}
