package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectriclabs/rgb-to-z/internal/bluefile"
	"github.com/spectriclabs/rgb-to-z/internal/raster"
)

func testGrid() *raster.Grid {
	g := raster.NewGrid(2, 2, raster.DefaultNoData)
	g.Values[0] = -25.5
	g.Values[3] = 10
	return g
}

func TestWriteGridRaw(t *testing.T) {
	expected := []struct {
		Format string
		Code   string
		Output []float64
	}{
		{Format: FormatFloat32, Code: "SF", Output: []float64{-25.5, -9999, -9999, 10}},
		{Format: FormatFloat64, Code: "SD", Output: []float64{-25.5, -9999, -9999, 10}},
		{Format: FormatInt16, Code: "SI", Output: []float64{-26, -9999, -9999, 10}},
		{Format: "INT32", Code: "SL", Output: []float64{-26, -9999, -9999, 10}},
	}
	for _, exp := range expected {
		var buf bytes.Buffer
		require.NoError(t, WriteGrid(&buf, testGrid(), exp.Format, nil), exp.Format)
		assert.Equal(t, exp.Output, bluefile.ConvertFileData(buf.Bytes(), exp.Code), exp.Format)
	}
}

func TestWriteGridBlue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, testGrid(), FormatBlue, nil))
	grid, _, err := bluefile.ReadGrid(&buf)
	require.NoError(t, err)
	assert.Equal(t, testGrid().Values, grid.Values)
}

func TestWriteGridUnsupported(t *testing.T) {
	err := WriteGrid(&bytes.Buffer{}, testGrid(), "shapefile", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestWriteGridIntegerRange(t *testing.T) {
	g := raster.NewGrid(3, 1, raster.DefaultNoData)
	copy(g.Values, []float64{40000, -1500.4, raster.DefaultNoData})
	err := WriteGrid(&bytes.Buffer{}, g, FormatInt16, nil)
	assert.True(t, errors.Is(err, bluefile.ErrOutOfRange))

	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g, FormatInt32, nil))
	assert.Equal(t, []float64{40000, -1500, -9999}, bluefile.ConvertFileData(buf.Bytes(), "SL"))

	nan := raster.NewGrid(2, 1, math.NaN())
	nan.Values[0] = 7
	err = WriteGrid(&bytes.Buffer{}, nan, FormatInt32, nil)
	assert.True(t, errors.Is(err, bluefile.ErrOutOfRange))
	require.NoError(t, WriteGrid(&bytes.Buffer{}, nan, FormatFloat32, nil))
}

func TestCheckNoData(t *testing.T) {
	expected := []struct {
		Format string
		NoData float64
		Valid  bool
	}{
		{Format: FormatInt16, NoData: -9999, Valid: true},
		{Format: "INT16", NoData: math.NaN(), Valid: false},
		{Format: FormatInt16, NoData: -99999, Valid: false},
		{Format: FormatInt32, NoData: -99999, Valid: true},
		{Format: FormatFloat32, NoData: math.NaN(), Valid: true},
		{Format: FormatBlue, NoData: math.NaN(), Valid: true},
		{Format: FormatASCII, NoData: math.NaN(), Valid: true},
		{Format: PointsCSV, NoData: math.NaN(), Valid: true},
	}
	for _, exp := range expected {
		err := CheckNoData(exp.Format, exp.NoData)
		if exp.Valid {
			assert.NoError(t, err, "%s %g", exp.Format, exp.NoData)
		} else {
			assert.True(t, errors.Is(err, bluefile.ErrOutOfRange), "%s %g", exp.Format, exp.NoData)
		}
	}
}

func TestWriteASCIIGrid(t *testing.T) {
	var buf bytes.Buffer
	gt := &raster.GeoTransform{OriginX: 100, OriginY: 200, CellWidth: 5, CellHeight: 5}
	require.NoError(t, WriteGrid(&buf, testGrid(), FormatASCII, gt))
	assert.Equal(t, "ncols 2\n"+
		"nrows 2\n"+
		"xllcorner 100\n"+
		"yllcorner 190\n"+
		"cellsize 5\n"+
		"NODATA_value -9999\n"+
		"-25.5 -9999\n"+
		"-9999 10\n", buf.String())

	err := WriteASCIIGrid(&bytes.Buffer{}, testGrid(), &raster.GeoTransform{CellWidth: 1, CellHeight: 2})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestWriteASCIIGridNaN(t *testing.T) {
	g := raster.NewGrid(1, 1, math.NaN())
	var buf bytes.Buffer
	require.NoError(t, WriteASCIIGrid(&buf, g, nil))
	assert.Contains(t, buf.String(), "NODATA_value -9999\n-9999\n")
}

func TestWritePointsCSV(t *testing.T) {
	points := testGrid().Points(nil)
	var buf bytes.Buffer
	require.NoError(t, WritePoints(&buf, points, PointsCSV))
	assert.Equal(t, "x,y,z\n0.5,0.5,-25.5\n1.5,1.5,10\n", buf.String())
}

func TestWritePointsGeoJSON(t *testing.T) {
	gt := &raster.GeoTransform{OriginX: 100, OriginY: 200, CellWidth: 5, CellHeight: 5}
	var buf bytes.Buffer
	require.NoError(t, WritePoints(&buf, testGrid().Points(gt), PointsGeoJSON))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]float64 `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{102.5, 197.5}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, -25.5, fc.Features[0].Properties["z"])
	assert.Equal(t, []float64{107.5, 192.5}, fc.Features[1].Geometry.Coordinates)
	assert.Equal(t, 1.0, fc.Features[1].Properties["row"])
}

func TestWritePointsNone(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePoints(&buf, testGrid().Points(nil), PointsNone))
	assert.Zero(t, buf.Len())
	assert.True(t, errors.Is(WritePoints(&buf, nil, "kml"), ErrUnsupportedFormat))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".tmp", Extension(FormatBlue))
	assert.Equal(t, ".asc", Extension(FormatASCII))
	assert.Equal(t, ".float32", Extension(FormatFloat32))
	assert.Equal(t, ".geojson", Extension(PointsGeoJSON))
}
