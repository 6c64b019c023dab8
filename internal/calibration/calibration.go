// Package calibration parses the (color, Z) sample table picked from a
// color ramp legend.
//
// Each non-empty line holds one sample, either as four fields
//
//	R G B Z
//
// or as a hex color followed by Z
//
//	#rrggbb Z
//
// Fields may be separated by whitespace or commas. Blank lines are
// skipped, as are comment lines: a '#' followed by whitespace, another
// '#', or nothing.
package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrMalformedSample is returned when a line cannot be read as a sample.
var ErrMalformedSample = errors.New("malformed calibration sample")

// Sample is one calibration pair taken from the legend.
type Sample struct {
	Color [3]uint8 `json:"color"`
	Z     float64  `json:"z"`
}

func (s Sample) String() string {
	return fmt.Sprintf("(%d,%d,%d)->%g", s.Color[0], s.Color[1], s.Color[2], s.Z)
}

// MalformedSampleError carries the offending line.
type MalformedSampleError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedSampleError) Error() string {
	return fmt.Sprintf("%v: line %d %q: %s", ErrMalformedSample, e.Line, e.Text, e.Reason)
}

func (e *MalformedSampleError) Unwrap() error {
	return ErrMalformedSample
}

// Parse reads every sample from r in file order. The first bad line
// aborts the parse; no partial table is returned.
func Parse(r io.Reader) ([]Sample, error) {
	samples := []Sample{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isComment(line) {
			continue
		}
		sample, err := ParseLine(line)
		if err != nil {
			return nil, &MalformedSampleError{Line: lineNum, Text: line, Reason: err.Error()}
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read calibration table: %w", err)
	}
	return samples, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(table string) ([]Sample, error) {
	return Parse(strings.NewReader(table))
}

// ParseLine reads a single sample. It returns a plain error describing
// the problem; Parse wraps it with the line number.
func ParseLine(line string) (Sample, error) {
	fields := splitFields(line)
	switch len(fields) {
	case 2:
		return parseHexSample(fields)
	case 4:
		return parseChannelSample(fields)
	default:
		return Sample{}, fmt.Errorf("expected 4 fields (R G B Z) or 2 fields (#rrggbb Z), got %d", len(fields))
	}
}

func parseChannelSample(fields []string) (Sample, error) {
	var s Sample
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return Sample{}, fmt.Errorf("channel %d %q is not an integer", i, fields[i])
		}
		if v < 0 || v > math.MaxUint8 {
			return Sample{}, fmt.Errorf("channel %d value %d outside [0,255]", i, v)
		}
		s.Color[i] = uint8(v)
	}
	z, err := parseZ(fields[3])
	if err != nil {
		return Sample{}, err
	}
	s.Z = z
	return s, nil
}

func parseHexSample(fields []string) (Sample, error) {
	if !isHexColor(fields[0]) {
		return Sample{}, fmt.Errorf("color %q is not a #rrggbb hex value", fields[0])
	}
	c, err := colorful.Hex(fields[0])
	if err != nil {
		return Sample{}, fmt.Errorf("color %q: %v", fields[0], err)
	}
	r, g, b := c.RGB255()
	z, err := parseZ(fields[1])
	if err != nil {
		return Sample{}, err
	}
	return Sample{Color: [3]uint8{r, g, b}, Z: z}, nil
}

// isHexColor accepts exactly #rgb or #rrggbb.
func isHexColor(token string) bool {
	digits, ok := strings.CutPrefix(token, "#")
	if !ok || (len(digits) != 3 && len(digits) != 6) {
		return false
	}
	for _, r := range digits {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func parseZ(field string) (float64, error) {
	z, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("z value %q is not a number", field)
	}
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, fmt.Errorf("z value %q is not finite", field)
	}
	return z, nil
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// A hex color also starts with '#', so only "# ..." and a bare "#" count
// as comments.
func isComment(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	if len(line) == 1 {
		return true
	}
	next := line[1]
	return next == ' ' || next == '\t' || next == '#'
}
