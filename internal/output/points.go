package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/spectriclabs/rgb-to-z/internal/raster"
)

// WritePoints encodes points in format. PointsNone writes nothing.
func WritePoints(w io.Writer, points []raster.Point, format string) error {
	switch strings.ToLower(format) {
	case PointsCSV:
		return WritePointsCSV(w, points)
	case PointsGeoJSON:
		return WritePointsGeoJSON(w, points)
	case PointsNone, "":
		return nil
	default:
		return fmt.Errorf("%w: points %q", ErrUnsupportedFormat, format)
	}
}

// WritePointsCSV writes an x,y,z header followed by one row per point.
func WritePointsCSV(w io.Writer, points []raster.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "z"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePointsGeoJSON writes a FeatureCollection of Point features, each
// carrying z, col and row properties.
func WritePointsGeoJSON(w io.Writer, points []raster.Point) error {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.X, p.Y})
		f.Properties["z"] = p.Z
		f.Properties["col"] = p.Col
		f.Properties["row"] = p.Row
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding points: %w", err)
	}
	_, err = w.Write(data)
	return err
}
