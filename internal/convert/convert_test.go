package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spectriclabs/rgb-to-z/internal/bluefile"
	"github.com/spectriclabs/rgb-to-z/internal/cache"
	"github.com/spectriclabs/rgb-to-z/internal/calibration"
	"github.com/spectriclabs/rgb-to-z/internal/config"
	"github.com/spectriclabs/rgb-to-z/internal/datasource"
	"github.com/spectriclabs/rgb-to-z/internal/output"
	"github.com/spectriclabs/rgb-to-z/internal/ramp"
	"github.com/spectriclabs/rgb-to-z/internal/raster"
	"github.com/spectriclabs/rgb-to-z/internal/reconstruct"
)

const legend = "# red to yellow\n255 0 0 0\n255,255,0,-50\n"

func legendPNG(t *testing.T) []byte {
	img := goimage.NewNRGBA(goimage.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{255, 128, 0, 255})
	img.SetNRGBA(2, 0, color.NRGBA{0, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func linearParams() Params {
	return Params{Policy: reconstruct.Linear, Options: raster.DefaultOptions()}
}

func TestRunReaders(t *testing.T) {
	result, err := RunReaders(context.Background(), zap.NewNop(), bytes.NewReader(legendPNG(t)), strings.NewReader(legend), linearParams())
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Grid.At(0, 0))
	assert.InDelta(t, -25.098, result.Grid.At(1, 0), 1e-3)
	assert.Equal(t, raster.DefaultNoData, result.Grid.At(2, 0))

	assert.Equal(t, 2, result.Report.Matched)
	assert.Equal(t, 1, result.Report.NoData)
	assert.Equal(t, "linear", result.Report.Policy)
	require.Len(t, result.Report.Intervals, 1)
	assert.Equal(t, 2, result.Report.Summary.Count)
	assert.Equal(t, 0.0, result.Report.Summary.Max)
}

func TestRunCalibrationErrors(t *testing.T) {
	expected := []struct {
		Calibration string
		Err         error
	}{
		{Calibration: "255 0 0\n", Err: calibration.ErrMalformedSample},
		{Calibration: "255 0 0 0\n", Err: ramp.ErrInsufficientSamples},
		{Calibration: "255 0 0 0\n0 0 255 1\n255 0 0 2\n", Err: ramp.ErrAmbiguousCalibration},
		{Calibration: "255 0 0 0\n255 255 0 -9999\n", Err: ErrNoDataCalibrated},
	}
	for _, exp := range expected {
		result, err := RunReaders(context.Background(), zap.NewNop(), bytes.NewReader(legendPNG(t)), strings.NewReader(exp.Calibration), linearParams())
		assert.True(t, errors.Is(err, exp.Err), exp.Calibration)
		assert.Nil(t, result)
	}
}

func TestRunNaNNoDataAllowsAnyZ(t *testing.T) {
	params := linearParams()
	params.Options.NoData = math.NaN()
	result, err := RunReaders(context.Background(), zap.NewNop(), bytes.NewReader(legendPNG(t)), strings.NewReader("255 0 0 -9999\n255 255 0 -50\n"), params)
	require.NoError(t, err)
	assert.Equal(t, -9999.0, result.Grid.Values[0])
	assert.False(t, result.Grid.IsNoData(result.Grid.Values[0]))
}

func TestRunMalformedBeforeImage(t *testing.T) {
	_, err := RunReaders(context.Background(), zap.NewNop(), strings.NewReader("not an image"), strings.NewReader("1 2\n"), linearParams())
	assert.True(t, errors.Is(err, calibration.ErrMalformedSample))
}

func TestParamsFromConfig(t *testing.T) {
	params, err := ParamsFromConfig(&config.Configuration{Policy: "Histogram Equalised", Workers: 2, Round: true, NoData: -1})
	require.NoError(t, err)
	assert.Equal(t, reconstruct.HistogramEqualize, params.Policy)
	assert.Equal(t, raster.Options{Workers: 2, Round: true, NoData: -1}, params.Options)

	_, err = ParamsFromConfig(&config.Configuration{Policy: "cubic"})
	assert.True(t, errors.Is(err, reconstruct.ErrUnknownPolicy))
}

func TestRunRefsAndWrite(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "map.png"), legendPNG(t), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "legend.txt"), []byte(legend), 0644))
	cfg := &config.Configuration{
		LocationDetails: []config.Location{
			{LocationName: "maps", LocationType: config.LocationLocalFile, Path: root},
		},
	}
	ds := datasource.New(cfg, cache.New(t.TempDir(), nil), nil)

	result, err := RunRefs(context.Background(), zap.NewNop(), ds, "maps:map.png", filepath.Join(root, "legend.txt"), linearParams())
	require.NoError(t, err)

	out := t.TempDir()
	written, err := Write(zap.NewNop(), result, WriteOptions{
		Dir:             out,
		BaseName:        BaseName("maps:map.png"),
		GridFormat:      output.FormatBlue,
		PointsFormat:    output.PointsCSV,
		PreviewColorMap: "Greyscale",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "map.tmp"),
		filepath.Join(out, "map_points.csv"),
		filepath.Join(out, "map_preview.png"),
		filepath.Join(out, "map_report.json"),
	}, written)

	f, err := os.Open(filepath.Join(out, "map.tmp"))
	require.NoError(t, err)
	defer f.Close()
	grid, _, err := bluefile.ReadGrid(f)
	require.NoError(t, err)
	assert.Equal(t, result.Grid.Values, grid.Values)

	points, err := os.ReadFile(filepath.Join(out, "map_points.csv"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(points), "\n"))

	reportData, err := os.ReadFile(filepath.Join(out, "map_report.json"))
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(reportData, &report))
	assert.Equal(t, 2.0, report["matched"])
	assert.Equal(t, "linear", report["policy"])
}

func TestRunRefsMissingFile(t *testing.T) {
	ds := datasource.New(&config.Configuration{}, nil, nil)
	_, err := RunRefs(context.Background(), zap.NewNop(), ds, "nope.png", filepath.Join(t.TempDir(), "nope.txt"), linearParams())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "map", BaseName("maps:survey/map.png"))
	assert.Equal(t, "depth", BaseName("/data/depth.tif"))
}
