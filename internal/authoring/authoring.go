// Package authoring implements the shadow file workflows used by the tool:
// building a grid from an image, rebuilding an existing file and checking a
// file against its image.
package authoring

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shadowcast/internal/assets"
	"github.com/Faultbox/shadowcast/internal/config"
	"github.com/Faultbox/shadowcast/internal/logger"
	"github.com/Faultbox/shadowcast/pkg/formats"
	"github.com/Faultbox/shadowcast/pkg/outline"
)

// ErrOpenOutline is reported by Verify for cells whose loops do not close.
var ErrOpenOutline = errors.New("cell outline is not closed")

// Workflow runs authoring operations with shared settings and image cache.
type Workflow struct {
	Images  *assets.Manager
	Options outline.Options       // cell size 0 = whole image
	Decode  formats.DecodeOptions // limits for reading existing files
}

// New creates a workflow from the loaded configuration.
func New(cfg *config.Config) *Workflow {
	return &Workflow{
		Images:  assets.NewManager(),
		Options: cfg.Shadow.Options(),
		Decode:  cfg.Codec.DecodeOptions(),
	}
}

// Build partitions the image at imagePath and writes the grid to outPath.
// Non-zero cellWidth and cellHeight override the configured cell size.
func (w *Workflow) Build(imagePath, outPath string, cellWidth, cellHeight int) (*formats.SHDW, error) {
	img, err := w.Images.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}

	opts := w.Options
	if cellWidth > 0 {
		opts.CellWidth = cellWidth
	}
	if cellHeight > 0 {
		opts.CellHeight = cellHeight
	}

	shdw, err := w.partition(img, opts)
	if err != nil {
		return nil, err
	}
	if err := shdw.WriteFile(outPath); err != nil {
		return nil, err
	}

	logger.Info("shadow built",
		zap.String("image", imagePath),
		zap.String("output", outPath),
		zap.Uint32("cell_width", shdw.CellWidth),
		zap.Uint32("cell_height", shdw.CellHeight),
		zap.Int("cells", len(shdw.Cells)),
		zap.Int("lines", shdw.LineCount()))
	return shdw, nil
}

// Rebuild regenerates shdwPath from the image. A cell size left at zero is
// taken from the existing file. If that file cannot be decoded, the
// whole-image default grid stands in for it.
func (w *Workflow) Rebuild(imagePath, shdwPath string, cellWidth, cellHeight int) (*formats.SHDW, error) {
	img, err := w.Images.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}

	if cellWidth <= 0 || cellHeight <= 0 {
		existing := w.Existing(shdwPath, img.Bounds())
		if cellWidth <= 0 {
			cellWidth = int(existing.CellWidth)
		}
		if cellHeight <= 0 {
			cellHeight = int(existing.CellHeight)
		}
	}

	opts := w.Options
	opts.CellWidth = cellWidth
	opts.CellHeight = cellHeight

	shdw, err := w.partition(img, opts)
	if err != nil {
		return nil, err
	}
	if err := shdw.WriteFile(shdwPath); err != nil {
		return nil, err
	}

	logger.Info("shadow rebuilt",
		zap.String("image", imagePath),
		zap.String("path", shdwPath),
		zap.Uint32("cell_width", shdw.CellWidth),
		zap.Uint32("cell_height", shdw.CellHeight),
		zap.Int("cells", len(shdw.Cells)))
	return shdw, nil
}

// Existing reads the shadow file for an image with the given bounds. A file
// that is missing or fails to decode is replaced by the default grid.
func (w *Workflow) Existing(shdwPath string, bounds image.Rectangle) *formats.SHDW {
	shdw, err := formats.ParseSHDWFileWithOptions(shdwPath, w.Decode)
	if err != nil {
		logger.Warn("shadow file unreadable, using default grid",
			zap.String("path", shdwPath),
			zap.Error(err))
		return formats.DefaultFor(bounds.Dx(), bounds.Dy())
	}
	return shdw
}

func (w *Workflow) partition(img image.Image, opts outline.Options) (*formats.SHDW, error) {
	shdw, err := outline.Partition(img, opts)
	if err != nil {
		return nil, fmt.Errorf("partitioning image: %w", err)
	}
	// Never write a file that cannot be read back with the same limits.
	if err := shdw.CheckLimits(w.Decode); err != nil {
		return nil, err
	}
	return shdw, nil
}

// Report describes a verified shadow file.
type Report struct {
	ImageWidth  int
	ImageHeight int
	Columns     int
	Rows        int
	Cells       int
	Lines       int
	OpenCells   []int // indices of cells with unclosed loops
}

// Verify decodes shdwPath and checks it against the image at imagePath: the
// cell count must match the whole-cell grid of the image and every cell's
// loops must close. The report is returned whenever the file decodes, and
// the error combines every failed check.
func (w *Workflow) Verify(imagePath, shdwPath string) (*Report, error) {
	img, err := w.Images.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	shdw, err := formats.ParseSHDWFileWithOptions(shdwPath, w.Decode)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	r := &Report{
		ImageWidth:  b.Dx(),
		ImageHeight: b.Dy(),
		Columns:     shdw.Columns(b.Dx()),
		Rows:        shdw.Rows(b.Dy()),
		Cells:       len(shdw.Cells),
		Lines:       shdw.LineCount(),
	}

	errs := shdw.Validate(b.Dx(), b.Dy())
	for i := range shdw.Cells {
		if !shdw.Cells[i].IsClosed() {
			r.OpenCells = append(r.OpenCells, i)
			errs = multierr.Append(errs, fmt.Errorf("%w: cell %d", ErrOpenOutline, i))
		}
	}

	if errs != nil {
		logger.Warn("shadow verification failed",
			zap.String("path", shdwPath),
			zap.Errors("problems", multierr.Errors(errs)))
	}
	return r, errs
}
