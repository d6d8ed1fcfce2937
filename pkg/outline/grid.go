package outline

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/shadowcast/pkg/formats"
)

// ErrInvalidCellSize is returned for a negative cell size, or a zero one
// that cannot default to a non-empty image extent.
var ErrInvalidCellSize = errors.New("invalid cell size")

// Options controls how Partition splits an image.
type Options struct {
	// CellWidth and CellHeight are the cell size in pixels.
	// Zero means the full image extent on that axis.
	CellWidth  int
	CellHeight int

	// Tracer defaults to BoundaryTracer.
	Tracer Tracer

	// Workers bounds how many cells are traced at once. Values below 2
	// trace serially.
	Workers int
}

// Partition divides img into a row-major grid of whole cells and traces the
// outline of each one. Pixels past the last whole column or row are
// dropped. A cell larger than the image yields a grid with zero cells.
func Partition(img image.Image, opts Options) (*formats.SHDW, error) {
	bounds := img.Bounds()

	cw, ch := opts.CellWidth, opts.CellHeight
	if cw == 0 {
		cw = bounds.Dx()
	}
	if ch == 0 {
		ch = bounds.Dy()
	}
	if cw <= 0 || ch <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidCellSize, cw, ch)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = BoundaryTracer{}
	}

	cols := bounds.Dx() / cw
	rows := bounds.Dy() / ch
	cells := make([]formats.Cell, cols*rows)

	cellRect := func(i int) image.Rectangle {
		origin := bounds.Min.Add(image.Pt(i%cols*cw, i/cols*ch))
		return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(cw, ch))}
	}

	if opts.Workers < 2 {
		for i := range cells {
			cells[i].Lines = Extract(img, cellRect(i), tracer)
		}
	} else {
		// Each goroutine owns its slot, so row-major order holds
		// regardless of completion order.
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i := range cells {
			g.Go(func() error {
				cells[i].Lines = Extract(img, cellRect(i), tracer)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return &formats.SHDW{
		CellWidth:  uint32(cw),
		CellHeight: uint32(ch),
		Cells:      cells,
	}, nil
}
