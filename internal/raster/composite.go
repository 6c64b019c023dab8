// Package raster holds the color composite and Z grid arrays and runs
// the per-pixel inversion pass between them.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/spectriclabs/rgb-to-z/internal/equalize"
	"github.com/spectriclabs/rgb-to-z/internal/ramp"
)

// ErrDimensionMismatch is returned when pixel or mask storage does not
// match the declared width and height.
var ErrDimensionMismatch = errors.New("raster dimension mismatch")

// Composite is a row-major 3-channel color array. Masked pixels carry no
// data in the source and are skipped by the conversion pass.
type Composite struct {
	Width  int
	Height int
	Pix    []uint8 // R, G, B per pixel
	Mask   []bool  // nil means nothing is masked
}

// NewComposite allocates an unmasked black composite.
func NewComposite(width, height int) *Composite {
	return &Composite{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// FromImage copies img into a composite. Fully transparent pixels are
// masked.
func FromImage(img image.Image) *Composite {
	b := img.Bounds()
	c := NewComposite(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			nrgba := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			cx, cy := x-b.Min.X, y-b.Min.Y
			if nrgba.A == 0 {
				c.SetMasked(cx, cy)
				continue
			}
			c.Set(cx, cy, ramp.RGB{nrgba.R, nrgba.G, nrgba.B})
		}
	}
	return c
}

// Validate checks the storage lengths against the dimensions.
func (c *Composite) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrDimensionMismatch, c.Width, c.Height)
	}
	n := c.Width * c.Height
	if len(c.Pix) != n*3 {
		return fmt.Errorf("%w: %dx%d composite has %d channel bytes, want %d",
			ErrDimensionMismatch, c.Width, c.Height, len(c.Pix), n*3)
	}
	if c.Mask != nil && len(c.Mask) != n {
		return fmt.Errorf("%w: %dx%d composite has %d mask cells",
			ErrDimensionMismatch, c.Width, c.Height, len(c.Mask))
	}
	return nil
}

// At returns the color at column x, row y.
func (c *Composite) At(x, y int) ramp.RGB {
	i := (y*c.Width + x) * 3
	return ramp.RGB{c.Pix[i], c.Pix[i+1], c.Pix[i+2]}
}

// Set stores a color at column x, row y.
func (c *Composite) Set(x, y int, px ramp.RGB) {
	i := (y*c.Width + x) * 3
	c.Pix[i], c.Pix[i+1], c.Pix[i+2] = px[0], px[1], px[2]
}

// Masked reports whether the pixel at column x, row y has no source data.
func (c *Composite) Masked(x, y int) bool {
	return c.Mask != nil && c.Mask[y*c.Width+x]
}

// SetMasked marks the pixel at column x, row y as having no source data.
func (c *Composite) SetMasked(x, y int) {
	if c.Mask == nil {
		c.Mask = make([]bool, c.Width*c.Height)
	}
	c.Mask[y*c.Width+x] = true
}

// Histograms counts every unmasked pixel into frozen R, G and B
// histograms.
func (c *Composite) Histograms() [3]*equalize.Histogram {
	var counter equalize.Counter
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			if c.Masked(x, y) {
				continue
			}
			counter.Add(c.At(x, y))
		}
	}
	return counter.Histograms()
}
