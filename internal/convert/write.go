package convert

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spectriclabs/rgb-to-z/internal/image"
	"github.com/spectriclabs/rgb-to-z/internal/output"
	"github.com/spectriclabs/rgb-to-z/internal/raster"
)

// WriteOptions names the files written for a result.
type WriteOptions struct {
	Dir             string
	BaseName        string
	GridFormat      string
	PointsFormat    string
	PreviewColorMap string
	PreviewMaxSize  int
	Geo             *raster.GeoTransform
}

// BaseName strips directories, a location prefix and the extension from
// an image reference.
func BaseName(imageRef string) string {
	if i := strings.LastIndex(imageRef, ":"); i >= 0 {
		imageRef = imageRef[i+1:]
	}
	base := filepath.Base(filepath.FromSlash(imageRef))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Write stores the grid, the point dataset, an optional preview and the
// JSON report, returning the paths written.
func Write(logger *zap.Logger, result *Result, opts WriteOptions) ([]string, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	var written []string
	writeFile := func(name string, encode func(io.Writer) error) error {
		path := filepath.Join(opts.Dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := encode(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("Wrote output", zap.String("path", path))
		written = append(written, path)
		return nil
	}

	gridFormat := strings.ToLower(opts.GridFormat)
	err := writeFile(opts.BaseName+output.Extension(gridFormat), func(w io.Writer) error {
		return output.WriteGrid(w, result.Grid, gridFormat, opts.Geo)
	})
	if err != nil {
		return written, err
	}

	pointsFormat := strings.ToLower(opts.PointsFormat)
	if pointsFormat != output.PointsNone && pointsFormat != "" {
		err = writeFile(opts.BaseName+"_points"+output.Extension(pointsFormat), func(w io.Writer) error {
			return output.WritePoints(w, result.Grid.Points(opts.Geo), pointsFormat)
		})
		if err != nil {
			return written, err
		}
	}

	if opts.PreviewColorMap != "" {
		err = writeFile(opts.BaseName+"_preview.png", func(w io.Writer) error {
			return image.WritePreview(w, result.Grid, image.PreviewOptions{
				ColorMap: opts.PreviewColorMap,
				MaxSize:  opts.PreviewMaxSize,
			})
		})
		if err != nil {
			return written, err
		}
	}

	err = writeFile(opts.BaseName+"_report.json", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Report)
	})
	return written, err
}
