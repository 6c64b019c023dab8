package raster

import (
	"math"
)

// DefaultNoData is written to cells with no calibrated value unless the
// caller chooses another sentinel.
const DefaultNoData = -9999.0

// Grid is a row-major single-band Z array.
type Grid struct {
	Width  int
	Height int
	Values []float64
	NoData float64
}

// NewGrid allocates a grid filled with the NoData sentinel.
func NewGrid(width, height int, noData float64) *Grid {
	g := &Grid{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
		NoData: noData,
	}
	for i := range g.Values {
		g.Values[i] = noData
	}
	return g
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) float64 {
	return g.Values[y*g.Width+x]
}

// IsNoData reports whether v is the grid's sentinel. A NaN sentinel
// matches any NaN.
func (g *Grid) IsNoData(v float64) bool {
	if math.IsNaN(g.NoData) {
		return math.IsNaN(v)
	}
	return v == g.NoData
}

// Data returns the values of every cell that is not NoData, in row-major
// order.
func (g *Grid) Data() []float64 {
	out := make([]float64, 0, len(g.Values))
	for _, v := range g.Values {
		if !g.IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}

// GeoTransform places the grid in world coordinates. OriginX and OriginY
// are the upper-left corner of the upper-left cell; rows run south.
type GeoTransform struct {
	OriginX    float64 `mapstructure:"origin_x" json:"origin_x"`
	OriginY    float64 `mapstructure:"origin_y" json:"origin_y"`
	CellWidth  float64 `mapstructure:"cell_width" json:"cell_width"`
	CellHeight float64 `mapstructure:"cell_height" json:"cell_height"`
}

// Valid reports whether both cell sizes are positive.
func (gt *GeoTransform) Valid() bool {
	return gt != nil && gt.CellWidth > 0 && gt.CellHeight > 0
}

// CellCenter returns the world coordinate of the centre of cell (col, row).
// A nil or invalid transform yields pixel-space centres.
func (gt *GeoTransform) CellCenter(col, row int) (x, y float64) {
	if !gt.Valid() {
		return float64(col) + 0.5, float64(row) + 0.5
	}
	x = gt.OriginX + (float64(col)+0.5)*gt.CellWidth
	y = gt.OriginY - (float64(row)+0.5)*gt.CellHeight
	return x, y
}

// Point is one reconstructed cell placed at its cell centre.
type Point struct {
	Col int     `json:"col"`
	Row int     `json:"row"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
}

// Points emits a point for every cell holding a value. NoData cells are
// never emitted.
func (g *Grid) Points(gt *GeoTransform) []Point {
	points := make([]Point, 0, len(g.Values))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			z := g.At(col, row)
			if g.IsNoData(z) {
				continue
			}
			x, y := gt.CellCenter(col, row)
			points = append(points, Point{Col: col, Row: row, X: x, Y: y, Z: z})
		}
	}
	return points
}
