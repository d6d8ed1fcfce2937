package authoring

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/shadowcast/internal/config"
	"github.com/Faultbox/shadowcast/internal/logger"
	"github.com/Faultbox/shadowcast/pkg/formats"
	"github.com/Faultbox/shadowcast/pkg/outline"
)

// writeSheet writes an 8x4 PNG with a 2x2 opaque block at (1,1) of the left
// half and nothing in the right half.
func writeSheet(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 1; y < 3; y++ {
		for x := 1; x < 3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}

	path := filepath.Join(dir, "sheet.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Log = zap.New(core)
	t.Cleanup(logger.Reset)
	return logs
}

func newWorkflow() *Workflow {
	return New(config.Default())
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)
	out := filepath.Join(dir, "sheet.shdw")

	w := newWorkflow()
	shdw, err := w.Build(imgPath, out, 4, 4)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(shdw.Cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(shdw.Cells))
	}
	if len(shdw.Cells[0].Lines) != 4 || len(shdw.Cells[1].Lines) != 0 {
		t.Errorf("unexpected line counts %d, %d", len(shdw.Cells[0].Lines), len(shdw.Cells[1].Lines))
	}
	if got := shdw.Cells[0].Lines[0].Start; got != (formats.Point{X: 1, Y: 1}) {
		t.Errorf("expected outline to start at (1,1), got %v", got)
	}

	onDisk, err := formats.ParseSHDWFile(out)
	if err != nil {
		t.Fatalf("reading built file failed: %v", err)
	}
	if !onDisk.Equal(shdw) {
		t.Error("file on disk differs from returned grid")
	}
}

func TestBuildUsesConfiguredCellSize(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)

	w := newWorkflow()
	w.Options.CellWidth = 2
	w.Options.CellHeight = 2

	shdw, err := w.Build(imgPath, filepath.Join(dir, "out.shdw"), 0, 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if shdw.CellWidth != 2 || len(shdw.Cells) != 8 {
		t.Errorf("expected 8 cells of width 2, got %d of width %d", len(shdw.Cells), shdw.CellWidth)
	}

	shdw, err = w.Build(imgPath, filepath.Join(dir, "whole.shdw"), 8, 4)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(shdw.Cells) != 1 {
		t.Errorf("explicit size should override config, got %d cells", len(shdw.Cells))
	}
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)
	w := newWorkflow()

	if _, err := w.Build(filepath.Join(dir, "missing.png"), filepath.Join(dir, "a.shdw"), 0, 0); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}

	w.Options.CellWidth = -1
	if _, err := w.Build(imgPath, filepath.Join(dir, "b.shdw"), 0, 0); !errors.Is(err, outline.ErrInvalidCellSize) {
		t.Errorf("expected ErrInvalidCellSize, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.shdw")); !os.IsNotExist(err) {
		t.Error("failed build should not write a file")
	}
}

func TestRebuildInheritsCellSize(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)
	shdwPath := filepath.Join(dir, "sheet.shdw")

	// Stale content with the right cell size.
	stale := &formats.SHDW{CellWidth: 4, CellHeight: 4, Cells: make([]formats.Cell, 2)}
	if err := stale.WriteFile(shdwPath); err != nil {
		t.Fatal(err)
	}

	logs := observeLogs(t)
	w := newWorkflow()
	shdw, err := w.Rebuild(imgPath, shdwPath, 0, 0)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if shdw.CellWidth != 4 || shdw.CellHeight != 4 || len(shdw.Cells) != 2 {
		t.Errorf("expected 2 cells of 4x4, got %d of %dx%d", len(shdw.Cells), shdw.CellWidth, shdw.CellHeight)
	}
	if shdw.LineCount() != 4 {
		t.Errorf("expected 4 lines after rebuild, got %d", shdw.LineCount())
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 0 {
		t.Errorf("expected no warnings, got %d", n)
	}
}

func TestRebuildPartialOverride(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)
	shdwPath := filepath.Join(dir, "sheet.shdw")

	if err := (&formats.SHDW{CellWidth: 4, CellHeight: 4, Cells: make([]formats.Cell, 2)}).WriteFile(shdwPath); err != nil {
		t.Fatal(err)
	}

	shdw, err := newWorkflow().Rebuild(imgPath, shdwPath, 0, 2)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if shdw.CellWidth != 4 || shdw.CellHeight != 2 || len(shdw.Cells) != 4 {
		t.Errorf("expected 4 cells of 4x2, got %d of %dx%d", len(shdw.Cells), shdw.CellWidth, shdw.CellHeight)
	}
}

func TestRebuildFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name  string
		setup func(path string) error
	}{
		{"corrupt", func(path string) error { return os.WriteFile(path, []byte("SHDW\x01"), 0644) }},
		{"missing", func(string) error { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			imgPath := writeSheet(t, dir)
			shdwPath := filepath.Join(dir, "sheet.shdw")
			if err := tt.setup(shdwPath); err != nil {
				t.Fatal(err)
			}

			logs := observeLogs(t)
			shdw, err := newWorkflow().Rebuild(imgPath, shdwPath, 0, 0)
			if err != nil {
				t.Fatalf("Rebuild failed: %v", err)
			}

			if shdw.CellWidth != 8 || shdw.CellHeight != 4 || len(shdw.Cells) != 1 {
				t.Errorf("expected one whole-image cell, got %d of %dx%d", len(shdw.Cells), shdw.CellWidth, shdw.CellHeight)
			}

			warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
			if len(warns) != 1 {
				t.Fatalf("expected 1 warning, got %d", len(warns))
			}
			if warns[0].ContextMap()["path"] != shdwPath {
				t.Errorf("warning should name the file, got %v", warns[0].ContextMap())
			}

			if _, err := formats.ParseSHDWFile(shdwPath); err != nil {
				t.Errorf("rebuilt file should decode: %v", err)
			}
		})
	}
}

func TestExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.shdw")
	want := &formats.SHDW{CellWidth: 3, CellHeight: 5, Cells: make([]formats.Cell, 4)}
	if err := want.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	w := newWorkflow()
	if got := w.Existing(path, image.Rect(0, 0, 6, 10)); !got.Equal(want) {
		t.Errorf("expected decoded file, got %+v", got)
	}

	got := w.Existing(filepath.Join(dir, "none.shdw"), image.Rect(0, 0, 6, 10))
	if !got.Equal(formats.DefaultFor(6, 10)) {
		t.Errorf("expected default grid, got %+v", got)
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)
	shdwPath := filepath.Join(dir, "sheet.shdw")

	w := newWorkflow()
	if _, err := w.Build(imgPath, shdwPath, 4, 4); err != nil {
		t.Fatal(err)
	}

	r, err := w.Verify(imgPath, shdwPath)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if r.ImageWidth != 8 || r.ImageHeight != 4 {
		t.Errorf("unexpected image size %dx%d", r.ImageWidth, r.ImageHeight)
	}
	if r.Columns != 2 || r.Rows != 1 || r.Cells != 2 || r.Lines != 4 {
		t.Errorf("unexpected report %+v", r)
	}
	if len(r.OpenCells) != 0 {
		t.Errorf("expected no open cells, got %v", r.OpenCells)
	}
}

func TestVerifyProblems(t *testing.T) {
	open := formats.Cell{Lines: []formats.Line{
		{Start: formats.Point{X: 0, Y: 0}, End: formats.Point{X: 1, Y: 0}},
	}}

	tests := []struct {
		name     string
		shdw     *formats.SHDW
		wantErrs []error
		wantOpen []int
	}{
		{
			name:     "count mismatch",
			shdw:     &formats.SHDW{CellWidth: 4, CellHeight: 4, Cells: make([]formats.Cell, 1)},
			wantErrs: []error{formats.ErrCellCountMismatch},
		},
		{
			name:     "open loop",
			shdw:     &formats.SHDW{CellWidth: 8, CellHeight: 4, Cells: []formats.Cell{open}},
			wantErrs: []error{ErrOpenOutline},
			wantOpen: []int{0},
		},
		{
			name:     "both",
			shdw:     &formats.SHDW{CellWidth: 2, CellHeight: 4, Cells: []formats.Cell{{}, open}},
			wantErrs: []error{formats.ErrCellCountMismatch, ErrOpenOutline},
			wantOpen: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			imgPath := writeSheet(t, dir)
			shdwPath := filepath.Join(dir, "sheet.shdw")
			if err := tt.shdw.WriteFile(shdwPath); err != nil {
				t.Fatal(err)
			}

			logs := observeLogs(t)
			r, err := newWorkflow().Verify(imgPath, shdwPath)
			if r == nil {
				t.Fatalf("expected a report, got error %v", err)
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("expected %v in %v", want, err)
				}
			}
			if len(r.OpenCells) != len(tt.wantOpen) {
				t.Fatalf("expected open cells %v, got %v", tt.wantOpen, r.OpenCells)
			}
			for i := range tt.wantOpen {
				if r.OpenCells[i] != tt.wantOpen[i] {
					t.Errorf("expected open cells %v, got %v", tt.wantOpen, r.OpenCells)
				}
			}
			if logs.FilterMessage("shadow verification failed").Len() != 1 {
				t.Error("expected a verification warning")
			}
		})
	}
}

func TestVerifyUnreadable(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)
	shdwPath := filepath.Join(dir, "bad.shdw")
	if err := os.WriteFile(shdwPath, []byte("XXXX"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := newWorkflow().Verify(imgPath, shdwPath)
	if !errors.Is(err, formats.ErrInvalidSHDWMagic) {
		t.Errorf("expected ErrInvalidSHDWMagic, got %v", err)
	}
	if r != nil {
		t.Error("expected no report for an undecodable file")
	}
}

func TestBuildRefusesUnreadableGrid(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeSheet(t, dir)
	shdwPath := filepath.Join(dir, "sheet.shdw")

	w := newWorkflow()
	w.Decode.MaxCells = 1

	if _, err := w.Build(imgPath, shdwPath, 4, 4); !errors.Is(err, formats.ErrSHDWTooLarge) {
		t.Fatalf("expected ErrSHDWTooLarge, got %v", err)
	}
	if _, err := os.Stat(shdwPath); !os.IsNotExist(err) {
		t.Error("refused build should not write a file")
	}

	if _, err := w.Rebuild(imgPath, shdwPath, 2, 4); !errors.Is(err, formats.ErrSHDWTooLarge) {
		t.Errorf("expected ErrSHDWTooLarge from Rebuild, got %v", err)
	}

	// One whole-image cell fits.
	if _, err := w.Build(imgPath, shdwPath, 8, 4); err != nil {
		t.Errorf("single-cell build failed: %v", err)
	}
}
