// Package reconstruct converts a classified pixel into a Z value.
package reconstruct

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spectriclabs/rgb-to-z/internal/equalize"
	"github.com/spectriclabs/rgb-to-z/internal/ramp"
)

// ErrUnknownPolicy is returned by ParsePolicy for an unrecognised name.
var ErrUnknownPolicy = errors.New("unknown reconstruction policy")

// Policy selects how a spectral position becomes a Z value.
type Policy int

const (
	// Linear maps position proportionally between the interval's Z values.
	Linear Policy = iota
	// HistogramEqualize de-equalizes the pixel before the linear mapping.
	HistogramEqualize
)

func (p Policy) String() string {
	switch p {
	case Linear:
		return "linear"
	case HistogramEqualize:
		return "histogram-equalize"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the policy names used on the command line and in
// configuration files, as well as the legacy toolbox labels.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear", "linear stretch":
		return Linear, nil
	case "histogram-equalize", "histogram", "equalize", "histogram equalised", "histogram equalized":
		return HistogramEqualize, nil
	default:
		return Linear, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Reconstructor turns a pixel already classified into iv into Z.
// Implementations hold only read-only state.
type Reconstructor interface {
	Reconstruct(px ramp.RGB, iv *ramp.Interval) float64
	Policy() Policy
}

// LinearReconstructor applies Z = zMin + position * (zMax - zMin).
type LinearReconstructor struct{}

// NewLinear returns the linear reconstructor.
func NewLinear() *LinearReconstructor {
	return &LinearReconstructor{}
}

func (LinearReconstructor) Policy() Policy { return Linear }

func (LinearReconstructor) Reconstruct(px ramp.RGB, iv *ramp.Interval) float64 {
	return iv.Lerp(iv.Position(px))
}

// EqualizedReconstructor recovers pre-equalization intensities of the
// pixel and the interval endpoints on the discriminating channel, then
// measures the pixel's position between the recovered endpoints.
type EqualizedReconstructor struct {
	histograms [3]*equalize.Histogram
}

// NewHistogramEqualize takes the frozen whole-image R, G and B
// histograms.
func NewHistogramEqualize(histograms [3]*equalize.Histogram) (*EqualizedReconstructor, error) {
	for i, h := range histograms {
		if h == nil {
			return nil, fmt.Errorf("missing histogram for channel %d", i)
		}
	}
	return &EqualizedReconstructor{histograms: histograms}, nil
}

func (EqualizedReconstructor) Policy() Policy { return HistogramEqualize }

func (r *EqualizedReconstructor) Reconstruct(px ramp.RGB, iv *ramp.Interval) float64 {
	return iv.Lerp(r.Position(px, iv))
}

// Position replaces the pixel's channel value with its recovered
// intensity and measures it against the interval's own endpoints. A
// degenerate channel histogram yields 0.
func (r *EqualizedReconstructor) Position(px ramp.RGB, iv *ramp.Interval) float64 {
	ch := iv.Channel()
	h := r.histograms[ch]
	if h.Degenerate() {
		return 0
	}
	return ramp.PositionBetween(float64(h.Invert(px[ch])), float64(iv.Low[ch]), float64(iv.High[ch]))
}
