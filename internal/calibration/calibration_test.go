package calibration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	expected := []struct {
		Input  string
		Output Sample
	}{
		{Input: "255 0 0 0", Output: Sample{Color: [3]uint8{255, 0, 0}, Z: 0}},
		{Input: "255,255,0,-50", Output: Sample{Color: [3]uint8{255, 255, 0}, Z: -50}},
		{Input: "10, 20, 30, 12.75", Output: Sample{Color: [3]uint8{10, 20, 30}, Z: 12.75}},
		{Input: "0\t0\t255\t1e3", Output: Sample{Color: [3]uint8{0, 0, 255}, Z: 1000}},
		{Input: "#00ff80 -3.5", Output: Sample{Color: [3]uint8{0, 255, 128}, Z: -3.5}},
	}

	for _, exp := range expected {
		result, err := ParseLine(exp.Input)
		require.NoError(t, err, exp.Input)
		assert.Equal(t, exp.Output, result, exp.Input)
	}
}

func TestParseLineRejects(t *testing.T) {
	bad := []string{
		"255 0 0",
		"255 0 0 1 2",
		"256 0 0 1",
		"-1 0 0 1",
		"1.5 0 0 1",
		"a b c d",
		"0 0 0 deep",
		"0 0 0 NaN",
		"0 0 0 Inf",
		"ff0000 1",
		"#zzzzzz 1",
		"#ff0000zz 5",
		"#ff00001234 2",
		"#12345 1",
		"#ff00 1",
		"# ff0000 1",
	}
	for _, line := range bad {
		_, err := ParseLine(line)
		assert.Error(t, err, line)
	}

	for _, line := range []string{"#ff0000zz 5", "#ff00001234 2", "#12345 1"} {
		samples, err := ParseString("255 255 0 0\n" + line + "\n")
		assert.ErrorIs(t, err, ErrMalformedSample, line)
		assert.Nil(t, samples, line)
	}

	sample, err := ParseLine("#F00 5")
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{255, 0, 0}, sample.Color)
}

func TestParsePreservesOrderAndSkipsBlanks(t *testing.T) {
	table := `
# legend picked from the map key
255 0 0 0

255 255 0 -50
## deeper
#0000ff -100
`
	samples, err := ParseString(table)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, [3]uint8{255, 0, 0}, samples[0].Color)
	assert.Equal(t, [3]uint8{255, 255, 0}, samples[1].Color)
	assert.Equal(t, [3]uint8{0, 0, 255}, samples[2].Color)
	assert.Equal(t, -100.0, samples[2].Z)
}

func TestParseMalformedReportsLine(t *testing.T) {
	table := "255 0 0 0\n\n255 300 0 -50\n"
	samples, err := ParseString(table)
	assert.Nil(t, samples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedSample))

	var malformed *MalformedSampleError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 3, malformed.Line)
	assert.Equal(t, "255 300 0 -50", malformed.Text)
}

func TestParseEmpty(t *testing.T) {
	samples, err := ParseString("\n\n# nothing here\n")
	require.NoError(t, err)
	assert.Empty(t, samples)
}
