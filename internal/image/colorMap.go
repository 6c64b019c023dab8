package image

import (
	"image/color"
	"math"
	"sort"
)

// ColorPoint is a colormap control point. Position and the channels are
// percentages in [0,100].
type ColorPoint struct {
	Position float64
	Red      float64
	Green    float64
	Blue     float64
}

// DefaultColorMap is used when an unknown colormap name is requested.
const DefaultColorMap = "RampColormap"

var colorMaps = map[string][]ColorPoint{
	"Greyscale": {
		{0, 0, 0, 0},
		{60, 50, 50, 50},
		{100, 100, 100, 100},
	},
	"RampColormap": {
		{0, 0, 0, 15},
		{10, 0, 0, 50},
		{31, 0, 65, 75},
		{50, 0, 80, 0},
		{70, 75, 80, 0},
		{83, 100, 60, 0},
		{100, 100, 0, 0},
	},
	"ColorWheel": {
		{0, 100, 100, 0},
		{20, 0, 80, 40},
		{30, 0, 100, 100},
		{50, 10, 10, 0},
		{65, 100, 0, 0},
		{88, 100, 40, 0},
		{100, 100, 100, 0},
	},
	"Spectrum": {
		{0, 0, 75, 0},
		{22, 0, 90, 90},
		{37, 0, 0, 85},
		{49, 90, 0, 85},
		{68, 90, 0, 0},
		{80, 90, 90, 0},
		{100, 95, 95, 95},
	},
	"calewhite": {
		{0, 100, 100, 100},
		{16.666, 0, 0, 100},
		{33.333, 0, 100, 100},
		{50, 0, 100, 0},
		{66.666, 100, 100, 0},
		{83.333, 100, 0, 0},
		{100, 100, 0, 100},
	},
	"HotDesat": {
		{0, 27.84, 27.84, 85.88},
		{14.2857, 0, 0, 35.69},
		{28.571, 0, 100, 100},
		{42.857, 0, 49.8, 0},
		{57.14286, 100, 100, 0},
		{71.42857, 100, 37.65, 0},
		{85.7143, 41.96, 0, 0},
		{100, 87.84, 29.8, 29.8},
	},
	"Sunset": {
		{0, 10, 0, 23},
		{18, 34, 0, 60},
		{36, 58, 20, 47},
		{55, 74, 20, 28},
		{72, 90, 43, 0},
		{87, 100, 72, 0},
		{100, 100, 100, 76},
	},
}

// ColorMapNames lists the known colormaps in sorted order.
func ColorMapNames() []string {
	names := make([]string, 0, len(colorMaps))
	for name := range colorMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetColorControlPoints returns the control points of colorMap. The
// boolean is false, and the default map returned, when the name is
// unknown.
func GetColorControlPoints(colorMap string) ([]ColorPoint, bool) {
	if points, ok := colorMaps[colorMap]; ok {
		return points, true
	}
	return colorMaps[DefaultColorMap], false
}

// MakeColorPalette interpolates numColors evenly spaced colors between
// the control points.
func MakeColorPalette(controlColors []ColorPoint, numColors int) []color.NRGBA {
	outColors := make([]color.NRGBA, numColors)
	if len(controlColors) == 0 {
		return outColors
	}
	segment := 0
	for i := range outColors {
		position := 100.0
		if numColors > 1 {
			position = float64(i) * 100 / float64(numColors-1)
		}
		for segment < len(controlColors)-2 && position > controlColors[segment+1].Position {
			segment++
		}
		lo := controlColors[segment]
		hi := lo
		if segment+1 < len(controlColors) {
			hi = controlColors[segment+1]
		}
		percentRange := 0.0
		if hi.Position > lo.Position {
			percentRange = math.Max(0, math.Min(1, (position-lo.Position)/(hi.Position-lo.Position)))
		}
		outColors[i] = color.NRGBA{
			R: percentToByte(lo.Red + percentRange*(hi.Red-lo.Red)),
			G: percentToByte(lo.Green + percentRange*(hi.Green-lo.Green)),
			B: percentToByte(lo.Blue + percentRange*(hi.Blue-lo.Blue)),
			A: 255,
		}
	}
	return outColors
}

func percentToByte(p float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(100, p)) * 255.0 / 100))
}
