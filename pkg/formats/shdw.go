// Package formats provides the SHDW shadow outline file format.
package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/multierr"
)

// SHDW format errors.
var (
	ErrInvalidSHDWMagic  = errors.New("invalid SHDW magic: expected 'SHDW'")
	ErrTruncatedSHDWData = errors.New("truncated SHDW data")
	ErrSHDWTooLarge      = errors.New("SHDW record count exceeds limit")
	ErrCellCountMismatch = errors.New("SHDW cell count does not match image grid")
)

const (
	shdwMagic      = "SHDW"
	shdwHeaderSize = 16 // magic + cell_count + cell_width + cell_height
	shdwCountSize  = 4
	shdwLineSize   = 16 // 4 x float32

	// Upper bound on slice capacity reserved from a declared count before
	// the records are actually read.
	shdwPreallocLimit = 1024
)

// Decode limits used when DecodeOptions leaves a field at zero.
const (
	DefaultMaxCells        = 1 << 24
	DefaultMaxLinesPerCell = 1 << 20
)

// Point is a cell-local position in pixels, y pointing down.
type Point struct {
	X float32
	Y float32
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Line is a directed outline segment. Direction carries the winding of the
// traced loop and must be preserved.
type Line struct {
	Start Point
	End   Point
}

// Delta returns the vector from Start to End.
func (l Line) Delta() Point {
	return Point{X: l.End.X - l.Start.X, Y: l.End.Y - l.Start.Y}
}

// Cell holds the outline segments of one grid cell in trace order.
type Cell struct {
	Lines []Line
}

// Loops splits the cell's lines into contiguous runs, each ending at the
// line whose End returns to the run's first Start. A zero-length line at the
// start of the loop before it belongs to that loop. A trailing run that
// never returns is reported as the last element as well.
func (c *Cell) Loops() [][]Line {
	var loops [][]Line
	start := 0
	for i, line := range c.Lines {
		if n := len(loops); i == start && n > 0 && line.Start == line.End && line.Start == loops[n-1][0].Start {
			loops[n-1] = c.Lines[i-len(loops[n-1]) : i+1]
			start = i + 1
			continue
		}
		if line.End == c.Lines[start].Start {
			loops = append(loops, c.Lines[start:i+1])
			start = i + 1
		}
	}
	if start < len(c.Lines) {
		loops = append(loops, c.Lines[start:])
	}
	return loops
}

// IsClosed reports whether every loop in the cell is closed and its segment
// vectors sum to zero.
func (c *Cell) IsClosed() bool {
	for _, loop := range c.Loops() {
		if loop[len(loop)-1].End != loop[0].Start {
			return false
		}
		var sum Point
		for _, line := range loop {
			sum = sum.Add(line.Delta())
		}
		if sum != (Point{}) {
			return false
		}
	}
	return true
}

// SHDW is a row-major grid of cells with their outline segments.
type SHDW struct {
	CellWidth  uint32
	CellHeight uint32
	Cells      []Cell
}

// DefaultFor returns a grid covering the whole image with one empty cell.
func DefaultFor(width, height int) *SHDW {
	return &SHDW{
		CellWidth:  uint32(width),
		CellHeight: uint32(height),
		Cells:      []Cell{{}},
	}
}

// GetCell returns the cell at index i.
// Returns nil if the index is out of range.
func (s *SHDW) GetCell(i int) *Cell {
	if i < 0 || i >= len(s.Cells) {
		return nil
	}
	return &s.Cells[i]
}

// Columns returns how many whole cells fit across an image of the given width.
func (s *SHDW) Columns(imageWidth int) int {
	if s.CellWidth == 0 || imageWidth <= 0 {
		return 0
	}
	return imageWidth / int(s.CellWidth)
}

// Rows returns how many whole cells fit down an image of the given height.
func (s *SHDW) Rows(imageHeight int) int {
	if s.CellHeight == 0 || imageHeight <= 0 {
		return 0
	}
	return imageHeight / int(s.CellHeight)
}

// CellOrigin returns the pixel position of the top-left corner of cell i
// within an image of the given width.
func (s *SHDW) CellOrigin(i, imageWidth int) (x, y int, ok bool) {
	cols := s.Columns(imageWidth)
	if cols == 0 || i < 0 || i >= len(s.Cells) {
		return 0, 0, false
	}
	return i % cols * int(s.CellWidth), i / cols * int(s.CellHeight), true
}

// Validate checks that the cell count matches the grid an image of the given
// size produces. The codec never calls this; a decoded file may legitimately
// disagree with an unrelated image.
func (s *SHDW) Validate(imageWidth, imageHeight int) error {
	want := s.Columns(imageWidth) * s.Rows(imageHeight)
	if len(s.Cells) != want {
		return fmt.Errorf("%w: have %d cells, %dx%d image with %dx%d cells needs %d",
			ErrCellCountMismatch, len(s.Cells), imageWidth, imageHeight, s.CellWidth, s.CellHeight, want)
	}
	return nil
}

// LineCount returns the total number of lines across all cells.
func (s *SHDW) LineCount() int {
	n := 0
	for i := range s.Cells {
		n += len(s.Cells[i].Lines)
	}
	return n
}

// EncodedSize returns the number of bytes Write produces.
func (s *SHDW) EncodedSize() int {
	return shdwHeaderSize + len(s.Cells)*shdwCountSize + s.LineCount()*shdwLineSize
}

// Equal reports whether both grids have the same cell size and the same
// line sequences, comparing coordinates bit for bit. Nil and empty line
// slices are equal.
func (s *SHDW) Equal(o *SHDW) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.CellWidth != o.CellWidth || s.CellHeight != o.CellHeight || len(s.Cells) != len(o.Cells) {
		return false
	}
	for i := range s.Cells {
		a, b := s.Cells[i].Lines, o.Cells[i].Lines
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if !sameBits(a[j], b[j]) {
				return false
			}
		}
	}
	return true
}

func sameBits(a, b Line) bool {
	return math.Float32bits(a.Start.X) == math.Float32bits(b.Start.X) &&
		math.Float32bits(a.Start.Y) == math.Float32bits(b.Start.Y) &&
		math.Float32bits(a.End.X) == math.Float32bits(b.End.X) &&
		math.Float32bits(a.End.Y) == math.Float32bits(b.End.Y)
}

// DecodeOptions bounds the record counts accepted while decoding.
// Zero fields use DefaultMaxCells and DefaultMaxLinesPerCell.
type DecodeOptions struct {
	MaxCells        uint32
	MaxLinesPerCell uint32
}

func (o DecodeOptions) withDefaults() DecodeOptions {
	if o.MaxCells == 0 {
		o.MaxCells = DefaultMaxCells
	}
	if o.MaxLinesPerCell == 0 {
		o.MaxLinesPerCell = DefaultMaxLinesPerCell
	}
	return o
}

// CheckLimits reports ErrSHDWTooLarge if a decoder using opts would refuse
// the encoding of s.
func (s *SHDW) CheckLimits(opts DecodeOptions) error {
	opts = opts.withDefaults()
	if uint64(len(s.Cells)) > uint64(opts.MaxCells) {
		return fmt.Errorf("%w: %d cells (limit %d)", ErrSHDWTooLarge, len(s.Cells), opts.MaxCells)
	}
	for i := range s.Cells {
		if n := len(s.Cells[i].Lines); uint64(n) > uint64(opts.MaxLinesPerCell) {
			return fmt.Errorf("%w: cell %d has %d lines (limit %d)", ErrSHDWTooLarge, i, n, opts.MaxLinesPerCell)
		}
	}
	return nil
}

// ReadSHDW decodes a SHDW stream with the default limits.
func ReadSHDW(r io.Reader) (*SHDW, error) {
	return ReadSHDWWithOptions(r, DecodeOptions{})
}

// ReadSHDWWithOptions decodes a SHDW stream. It stops at the first field that
// cannot be read in full and returns no partial result.
//
// If r reports its remaining length through a Len() int method (bytes.Reader,
// bytes.Buffer, strings.Reader), counts that need more bytes than remain are
// rejected before anything is allocated for them.
func ReadSHDWWithOptions(r io.Reader, opts DecodeOptions) (*SHDW, error) {
	opts = opts.withDefaults()

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if isShortRead(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSHDWMagic, readError("magic", err))
		}
		return nil, readError("magic", err)
	}
	if string(magic[:]) != shdwMagic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidSHDWMagic, magic[:])
	}

	var cellCount uint32
	shdw := &SHDW{}
	if err := readUint32(r, &cellCount, "cell count"); err != nil {
		return nil, err
	}
	if err := readUint32(r, &shdw.CellWidth, "cell width"); err != nil {
		return nil, err
	}
	if err := readUint32(r, &shdw.CellHeight, "cell height"); err != nil {
		return nil, err
	}

	if cellCount > opts.MaxCells {
		return nil, fmt.Errorf("%w: %d cells (limit %d)", ErrSHDWTooLarge, cellCount, opts.MaxCells)
	}
	if err := checkRemaining(r, uint64(cellCount)*shdwCountSize, "cells"); err != nil {
		return nil, err
	}

	shdw.Cells = make([]Cell, 0, min(int(cellCount), shdwPreallocLimit))
	for i := uint32(0); i < cellCount; i++ {
		cell, err := readCell(r, opts)
		if err != nil {
			return nil, fmt.Errorf("parsing cell %d: %w", i, err)
		}
		shdw.Cells = append(shdw.Cells, cell)
	}

	return shdw, nil
}

// readCell reads one line count followed by that many lines.
func readCell(r io.Reader, opts DecodeOptions) (Cell, error) {
	var lineCount uint32
	if err := readUint32(r, &lineCount, "line count"); err != nil {
		return Cell{}, err
	}
	if lineCount == 0 {
		return Cell{}, nil
	}
	if lineCount > opts.MaxLinesPerCell {
		return Cell{}, fmt.Errorf("%w: %d lines (limit %d)", ErrSHDWTooLarge, lineCount, opts.MaxLinesPerCell)
	}
	if err := checkRemaining(r, uint64(lineCount)*shdwLineSize, "lines"); err != nil {
		return Cell{}, err
	}

	cell := Cell{Lines: make([]Line, 0, min(int(lineCount), shdwPreallocLimit))}
	var buf [shdwLineSize]byte
	for i := uint32(0); i < lineCount; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Cell{}, readError(fmt.Sprintf("line %d", i), err)
		}
		cell.Lines = append(cell.Lines, decodeLine(buf[:]))
	}
	return cell, nil
}

func decodeLine(b []byte) Line {
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	}
	return Line{
		Start: Point{X: f(0), Y: f(4)},
		End:   Point{X: f(8), Y: f(12)},
	}
}

func readUint32(r io.Reader, v *uint32, what string) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return readError(what, err)
	}
	return nil
}

// readError classifies a short read as truncation and keeps every other
// source failure as is.
func readError(what string, err error) error {
	if isShortRead(err) {
		return fmt.Errorf("%w: reading %s: %w", ErrTruncatedSHDWData, what, err)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// checkRemaining rejects a declared record size the stream cannot hold.
func checkRemaining(r io.Reader, need uint64, what string) error {
	sized, ok := r.(interface{ Len() int })
	if !ok {
		return nil
	}
	if have := uint64(sized.Len()); need > have {
		return fmt.Errorf("%w: %s need at least %d bytes, %d remain", ErrTruncatedSHDWData, what, need, have)
	}
	return nil
}

// ParseSHDW parses a SHDW file from raw bytes.
func ParseSHDW(data []byte) (*SHDW, error) {
	return ReadSHDW(bytes.NewReader(data))
}

// ParseSHDWFile parses a SHDW file from disk.
func ParseSHDWFile(path string) (*SHDW, error) {
	return ParseSHDWFileWithOptions(path, DecodeOptions{})
}

// ParseSHDWFileWithOptions parses a SHDW file from disk with explicit limits.
func ParseSHDWFileWithOptions(path string, opts DecodeOptions) (*SHDW, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading SHDW file: %w", err)
	}
	return ReadSHDWWithOptions(bytes.NewReader(data), opts)
}

// Write encodes the grid to w. The cell count in the header is always
// len(s.Cells).
func (s *SHDW) Write(w io.Writer) error {
	if uint64(len(s.Cells)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d cells", ErrSHDWTooLarge, len(s.Cells))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(shdwMagic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	header := [3]uint32{uint32(len(s.Cells)), s.CellWidth, s.CellHeight}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, cell := range s.Cells {
		if uint64(len(cell.Lines)) > math.MaxUint32 {
			return fmt.Errorf("%w: cell %d has %d lines", ErrSHDWTooLarge, i, len(cell.Lines))
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(cell.Lines))); err != nil {
			return fmt.Errorf("writing cell %d line count: %w", i, err)
		}
		if len(cell.Lines) == 0 {
			continue
		}
		if err := binary.Write(bw, binary.LittleEndian, cell.Lines); err != nil {
			return fmt.Errorf("writing cell %d lines: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing SHDW data: %w", err)
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *SHDW) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(s.EncodedSize())
	if err := s.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler with the default limits.
func (s *SHDW) UnmarshalBinary(data []byte) error {
	decoded, err := ParseSHDW(data)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// WriteFile writes the grid to path, replacing any existing file.
func (s *SHDW) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating SHDW file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err := s.Write(f); err != nil {
		return fmt.Errorf("writing SHDW file: %w", err)
	}
	return nil
}
