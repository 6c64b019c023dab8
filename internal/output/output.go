// Package output encodes reconstructed grids and their point datasets.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spectriclabs/rgb-to-z/internal/bluefile"
	"github.com/spectriclabs/rgb-to-z/internal/raster"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Grid formats.
const (
	FormatBlue    = "blue"
	FormatFloat32 = "float32"
	FormatFloat64 = "float64"
	FormatInt16   = "int16"
	FormatInt32   = "int32"
	FormatASCII   = "ascii"
)

// Point formats.
const (
	PointsCSV     = "csv"
	PointsGeoJSON = "geojson"
	PointsNone    = "none"
)

// atom maps raw grid formats to their bluefile data format code.
var atom = map[string]string{
	FormatBlue:    "SD",
	FormatFloat32: "SF",
	FormatFloat64: "SD",
	FormatInt16:   "SI",
	FormatInt32:   "SL",
}

// GridFormats lists the accepted grid format names.
func GridFormats() []string {
	return []string{FormatBlue, FormatFloat32, FormatFloat64, FormatInt16, FormatInt32, FormatASCII}
}

// Extension returns the file extension, including the dot, for format.
func Extension(format string) string {
	switch format {
	case FormatBlue:
		return ".tmp"
	case FormatASCII:
		return ".asc"
	case PointsCSV:
		return ".csv"
	case PointsGeoJSON:
		return ".geojson"
	default:
		return "." + format
	}
}

// ContentType returns the MIME type served for format.
func ContentType(format string) string {
	switch format {
	case FormatASCII, PointsCSV:
		return "text/plain; charset=utf-8"
	case PointsGeoJSON:
		return "application/geo+json"
	default:
		return "application/octet-stream"
	}
}

// WriteGrid encodes grid in format. Raw formats are headerless
// little-endian rows.
func WriteGrid(w io.Writer, grid *raster.Grid, format string, gt *raster.GeoTransform) error {
	format = strings.ToLower(format)
	switch format {
	case FormatBlue:
		return bluefile.WriteGrid(w, grid, atom[format], gt)
	case FormatASCII:
		return WriteASCIIGrid(w, grid, gt)
	}
	code, ok := atom[format]
	if !ok {
		return fmt.Errorf("%w: grid %q", ErrUnsupportedFormat, format)
	}
	data, err := bluefile.EncodeData(grid.Values, code)
	if err != nil {
		return fmt.Errorf("encoding %s grid: %w", format, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s grid: %w", format, err)
	}
	return nil
}

// CheckNoData reports whether noData can be written in format. Integer
// grid formats cannot carry NaN or a sentinel outside the type.
func CheckNoData(format string, noData float64) error {
	code, ok := atom[strings.ToLower(format)]
	if !ok {
		return nil
	}
	if err := bluefile.CheckValue(noData, code); err != nil {
		return fmt.Errorf("nodata for %s grid: %w", format, err)
	}
	return nil
}

// WriteASCIIGrid writes an ESRI ASCII grid. Without a valid transform the
// lower-left corner is placed at the origin with unit cells.
func WriteASCIIGrid(w io.Writer, grid *raster.Grid, gt *raster.GeoTransform) error {
	cellSize := 1.0
	xll, yll := 0.0, 0.0
	if gt.Valid() {
		if gt.CellWidth != gt.CellHeight {
			return fmt.Errorf("%w: ascii grid needs square cells, got %gx%g",
				ErrUnsupportedFormat, gt.CellWidth, gt.CellHeight)
		}
		cellSize = gt.CellWidth
		xll = gt.OriginX
		yll = gt.OriginY - float64(grid.Height)*gt.CellHeight
	}
	noData := grid.NoData
	if math.IsNaN(noData) {
		noData = raster.DefaultNoData
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", grid.Width)
	fmt.Fprintf(bw, "nrows %d\n", grid.Height)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(xll))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(yll))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(cellSize))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(noData))
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if x > 0 {
				bw.WriteByte(' ')
			}
			v := grid.At(x, y)
			if grid.IsNoData(v) {
				v = noData
			}
			bw.WriteString(formatFloat(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
