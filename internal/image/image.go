// Package image decodes color composites and renders Z grids as
// colormapped previews.
package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/spectriclabs/rgb-to-z/internal/raster"
)

// ErrDecode is returned when a composite is not in a supported image
// format.
var ErrDecode = errors.New("cannot decode composite")

// Decode reads a PNG, JPEG, GIF, TIFF or BMP composite and returns it with
// the detected format name.
func Decode(r io.Reader) (*raster.Composite, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return raster.FromImage(img), format, nil
}

// PreviewOptions controls RenderPreview.
type PreviewOptions struct {
	ColorMap  string
	NumColors int
	// MaxSize bounds the longer side of the preview. Zero keeps the grid
	// size.
	MaxSize int
}

// RenderPreview colors each cell by its Z scaled between the grid's min
// and max. NoData cells are transparent.
func RenderPreview(grid *raster.Grid, opts PreviewOptions) *image.NRGBA {
	numColors := opts.NumColors
	if numColors <= 0 {
		numColors = 1000
	}
	controlColors, _ := GetColorControlPoints(opts.ColorMap)
	colorPalette := MakeColorPalette(controlColors, numColors)

	zmin, zmax := math.Inf(1), math.Inf(-1)
	for _, v := range grid.Values {
		if grid.IsNoData(v) {
			continue
		}
		zmin = math.Min(zmin, v)
		zmax = math.Max(zmax, v)
	}

	img := image.NewNRGBA(image.Rect(0, 0, grid.Width, grid.Height))
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			v := grid.At(x, y)
			if grid.IsNoData(v) {
				img.SetNRGBA(x, y, color.NRGBA{})
				continue
			}
			colorIndex := 0
			if zmax != zmin {
				colorIndex = int(math.Round((v - zmin) / (zmax - zmin) * float64(numColors-1)))
				colorIndex = min(max(colorIndex, 0), numColors-1)
			}
			img.SetNRGBA(x, y, colorPalette[colorIndex])
		}
	}

	if opts.MaxSize <= 0 || max(grid.Width, grid.Height) <= opts.MaxSize {
		return img
	}
	scale := float64(opts.MaxSize) / float64(max(grid.Width, grid.Height))
	w := max(1, int(math.Round(float64(grid.Width)*scale)))
	h := max(1, int(math.Round(float64(grid.Height)*scale)))
	small := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)
	return small
}

// WritePreview renders grid and encodes it as PNG.
func WritePreview(w io.Writer, grid *raster.Grid, opts PreviewOptions) error {
	return png.Encode(w, RenderPreview(grid, opts))
}
