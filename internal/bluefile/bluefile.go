// Package bluefile reads and writes Z grids as BLUE type-2000 files: a
// 512-byte header followed by row-major frames of Subsize elements.
package bluefile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spectriclabs/rgb-to-z/internal/raster"
)

// HeaderSize is the size of the fixed BLUE header in bytes.
const HeaderSize = 512

// FileType2000 is the framed (2-D) BLUE file type.
const FileType2000 = 2000

const noDataKeyword = "NODATA="

var (
	ErrUnsupportedFormat = errors.New("unsupported bluefile format")
	ErrOutOfRange        = errors.New("value not representable in format")
)

type BlueHeader struct {
	Version   [4]byte    // Header Version
	HeadRep   [4]byte    // Header representation
	DataRep   [4]byte    // Data representation
	Detached  int32      // Detached Header
	Protected int32      // Protected from overwrite
	Pipe      int32      // Pipe mode (N/A)
	ExtStart  int32      // Extended header start, in 512-byte blocks
	ExtSize   int32      // Extended header size in bytes
	DataStart float64    // Data start in bytes
	DataSize  float64    // Data size in bytes
	FileType  int32      // File type code
	Format    [2]byte    // Data format code
	Flagmask  int16      // 16-bit flagmask (1=flagbit)
	Timecode  float64    // Time code field
	Inlet     int16      // Inlet owner
	Outlets   int16      // Number of outlets
	Outmask   int32      // Outlet async mask
	Pipeloc   int32      // Pipe location
	Pipesize  int32      // Pipe size in bytes
	InByte    float64    // Next input byte
	OutByte   float64    // Next out byte (cumulative)
	Outbytes  [8]float64 // Next out byte (each outlet)
	Keylength int32      // Length of keyword string
	Keywords  [92]byte   // User defined keyword string
	Xstart    float64    // Frame (column) starting value
	Xdelta    float64    // Increment between samples in frame
	Xunits    int32      // Frame (column) units
	Subsize   int32      // Number of data points per frame (row)
	Ystart    float64    // Abscissa (row) start
	Ydelta    float64    // Increment between frames
	Yunits    int32      // Abscissa (row) unit code
	Adjunct   [212]byte  // Remainder of the type-specific adjunct
}

type BlueHeaderShortenedFields struct {
	Version   string  `json:"version"`
	HeadRep   string  `json:"head_rep"`
	DataRep   string  `json:"data_rep"`
	DataStart float64 `json:"data_start"`
	DataSize  float64 `json:"data_size"`
	FileType  int32   `json:"file_type"`
	Format    string  `json:"format"`
	Xstart    float64 `json:"xstart"`
	Xdelta    float64 `json:"xdelta"`
	Subsize   int32   `json:"subsize"`
	Ystart    float64 `json:"ystart"`
	Ydelta    float64 `json:"ydelta"`
	Keywords  string  `json:"keywords"`
}

// Shortened returns the header fields worth reporting.
func (h *BlueHeader) Shortened() BlueHeaderShortenedFields {
	return BlueHeaderShortenedFields{
		Version:   string(h.Version[:]),
		HeadRep:   string(h.HeadRep[:]),
		DataRep:   string(h.DataRep[:]),
		DataStart: h.DataStart,
		DataSize:  h.DataSize,
		FileType:  h.FileType,
		Format:    string(h.Format[:]),
		Xstart:    h.Xstart,
		Xdelta:    h.Xdelta,
		Subsize:   h.Subsize,
		Ystart:    h.Ystart,
		Ydelta:    h.Ydelta,
		Keywords:  string(bytes.TrimRight(h.Keywords[:min(max(h.Keylength, 0), int32(len(h.Keywords)))], "\x00")),
	}
}

var BytesPerAtomMap = map[byte]int{
	'B': 1,
	'I': 2,
	'L': 4,
	'F': 4,
	'D': 8,
}

// intRange bounds the integer atoms.
var intRange = map[byte][2]float64{
	'B': {math.MinInt8, math.MaxInt8},
	'I': {math.MinInt16, math.MaxInt16},
	'L': {math.MinInt32, math.MaxInt32},
}

// CheckValue reports whether v survives encoding in format. Integer
// formats reject NaN, infinities and values that round outside the type.
func CheckValue(v float64, format string) error {
	if len(format) != 2 {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	bounds, ok := intRange[format[1]]
	if !ok {
		return nil
	}
	if r := math.Round(v); math.IsNaN(r) || r < bounds[0] || r > bounds[1] {
		return fmt.Errorf("%w: %g as %s", ErrOutOfRange, v, format)
	}
	return nil
}

// NewGridHeader describes grid as a scalar type-2000 file of the given
// format ("SF", "SD", "SI", "SL" or "SB"). Xstart/Xdelta and
// Ystart/Ydelta are the centres and spacing of the columns and rows.
func NewGridHeader(grid *raster.Grid, format string, gt *raster.GeoTransform) (*BlueHeader, error) {
	if len(format) != 2 || format[0] != 'S' {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	bpa, ok := BytesPerAtomMap[format[1]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	h := &BlueHeader{
		FileType:  FileType2000,
		DataStart: HeaderSize,
		DataSize:  float64(len(grid.Values) * bpa),
		Subsize:   int32(grid.Width),
	}
	copy(h.Version[:], "BLUE")
	copy(h.HeadRep[:], "EEEI")
	copy(h.DataRep[:], "EEEI")
	copy(h.Format[:], format)

	h.Xstart, h.Ystart = gt.CellCenter(0, 0)
	h.Xdelta, h.Ydelta = 1, 1
	if gt.Valid() {
		h.Xdelta, h.Ydelta = gt.CellWidth, -gt.CellHeight
	}

	kw := noDataKeyword + formatFloat(grid.NoData)
	if len(kw) > len(h.Keywords) {
		return nil, fmt.Errorf("nodata keyword %q too long", kw)
	}
	h.Keylength = int32(copy(h.Keywords[:], kw))
	return h, nil
}

// WriteGrid writes grid as a type-2000 BLUE file.
func WriteGrid(w io.Writer, grid *raster.Grid, format string, gt *raster.GeoTransform) error {
	h, err := NewGridHeader(grid, format, gt)
	if err != nil {
		return err
	}
	data, err := EncodeData(grid.Values, format)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("writing bluefile header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing bluefile data: %w", err)
	}
	return nil
}

// EncodeData converts values into the little-endian atoms of format.
// Integer formats round half away from zero and fail with ErrOutOfRange
// on any value the type cannot hold.
func EncodeData(values []float64, format string) ([]byte, error) {
	if len(format) != 2 || BytesPerAtomMap[format[1]] == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if _, ok := intRange[format[1]]; ok {
		for i, v := range values {
			if err := CheckValue(v, format); err != nil {
				return nil, fmt.Errorf("atom %d: %w", i, err)
			}
		}
	}
	buf := new(bytes.Buffer)
	switch format[1] {
	case 'B':
		numSlice := make([]int8, len(values))
		for i, v := range values {
			numSlice[i] = int8(math.Round(v))
		}
		_ = binary.Write(buf, binary.LittleEndian, numSlice)
	case 'I':
		numSlice := make([]int16, len(values))
		for i, v := range values {
			numSlice[i] = int16(math.Round(v))
		}
		_ = binary.Write(buf, binary.LittleEndian, numSlice)
	case 'L':
		numSlice := make([]int32, len(values))
		for i, v := range values {
			numSlice[i] = int32(math.Round(v))
		}
		_ = binary.Write(buf, binary.LittleEndian, numSlice)
	case 'F':
		numSlice := make([]float32, len(values))
		for i, v := range values {
			numSlice[i] = float32(v)
		}
		_ = binary.Write(buf, binary.LittleEndian, numSlice)
	case 'D':
		_ = binary.Write(buf, binary.LittleEndian, values)
	}
	return buf.Bytes(), nil
}

// ConvertFileData decodes little-endian atoms of format into float64s.
func ConvertFileData(bytesin []byte, format string) []float64 {
	bytesPerAtom := BytesPerAtomMap[format[1]]
	if bytesPerAtom == 0 {
		return nil
	}
	atomsInFile := len(bytesin) / bytesPerAtom
	outData := make([]float64, atomsInFile)
	for i := 0; i < atomsInFile; i++ {
		atom := bytesin[i*bytesPerAtom : (i+1)*bytesPerAtom]
		switch format[1] {
		case 'B':
			outData[i] = float64(int8(atom[0]))
		case 'I':
			outData[i] = float64(int16(binary.LittleEndian.Uint16(atom)))
		case 'L':
			outData[i] = float64(int32(binary.LittleEndian.Uint32(atom)))
		case 'F':
			outData[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(atom)))
		case 'D':
			outData[i] = math.Float64frombits(binary.LittleEndian.Uint64(atom))
		}
	}
	return outData
}

// ReadHeader reads and checks the fixed header.
func ReadHeader(r io.Reader) (*BlueHeader, error) {
	var h BlueHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("reading bluefile header: %w", err)
	}
	if string(h.HeadRep[:]) != "EEEI" || string(h.DataRep[:]) != "EEEI" {
		return nil, fmt.Errorf("%w: representation %s/%s", ErrUnsupportedFormat, h.HeadRep[:], h.DataRep[:])
	}
	if h.FileType != FileType2000 || h.Subsize <= 0 {
		return nil, fmt.Errorf("%w: type %d subsize %d", ErrUnsupportedFormat, h.FileType, h.Subsize)
	}
	if h.Format[0] != 'S' || BytesPerAtomMap[h.Format[1]] == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, h.Format[:])
	}
	return &h, nil
}

// ReadGrid reads a file written by WriteGrid.
func ReadGrid(r io.Reader) (*raster.Grid, *BlueHeader, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, nil, err
	}
	if skip := int64(h.DataStart) - HeaderSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, nil, fmt.Errorf("seeking bluefile data: %w", err)
		}
	}
	data := make([]byte, int(h.DataSize))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, nil, fmt.Errorf("reading bluefile data: %w", err)
	}
	values := ConvertFileData(data, string(h.Format[:]))
	width := int(h.Subsize)
	if len(values)%width != 0 {
		return nil, nil, fmt.Errorf("%w: %d values do not fill frames of %d", raster.ErrDimensionMismatch, len(values), width)
	}

	grid := &raster.Grid{
		Width:  width,
		Height: len(values) / width,
		Values: values,
		NoData: raster.DefaultNoData,
	}
	if nd, ok := parseNoData(h.Shortened().Keywords); ok {
		grid.NoData = nd
	}
	return grid, h, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseNoData(keywords string) (float64, bool) {
	for _, kw := range strings.Fields(keywords) {
		if v, ok := strings.CutPrefix(kw, noDataKeyword); ok {
			nd, err := strconv.ParseFloat(v, 64)
			return nd, err == nil
		}
	}
	return 0, false
}
