// shdwtool is a CLI utility for building and inspecting SHDW shadow files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shadowcast/internal/authoring"
	"github.com/Faultbox/shadowcast/internal/caster"
	"github.com/Faultbox/shadowcast/internal/config"
	"github.com/Faultbox/shadowcast/internal/logger"
	"github.com/Faultbox/shadowcast/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "build", "b":
		cmdBuild(args)
	case "rebuild":
		cmdRebuild(args)
	case "info":
		cmdInfo(args)
	case "dump":
		cmdDump(args)
	case "verify", "check":
		cmdVerify(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	logger.Sync()
}

func printUsage() {
	fmt.Println(`shdwtool - sprite shadow outline utility

Usage:
  shdwtool <command> [options]

Commands:
  build [options] <image> <out.shdw> [cell_width cell_height]
                                          Trace an image into a new shadow file
  rebuild [options] <image> <file.shdw>   Regenerate a shadow file, keeping its cell size
  info <file.shdw>...                     Show grid and vertex statistics
  dump [-cell N] <file.shdw>              Print the lines of every cell (or one)
  verify <image> <file.shdw>              Check cell count and loop closure
  config [-o path]                        Write the effective config as YAML

Options (all commands):
  -config path   Config file (default ./shadowcast.yaml, then user config dir)
  -debug         Enable debug logging
  -log path      Also write JSON logs to this file
  -w N, -h N     Cell size in pixels
  -workers N     Cells traced at once

Examples:
  shdwtool build hero.png hero.shdw 32 48
  shdwtool rebuild -w 16 -h 16 tiles.tga tiles.shdw
  shdwtool dump -cell 3 hero.shdw`)
}

// newFlagSet returns a flag set with the shared options registered.
func newFlagSet(name string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := &config.Flags{}
	f.Register(fs)
	return fs, f
}

// setup parses args, loads the config and starts logging.
func setup(fs *flag.FlagSet, f *config.Flags, args []string) *config.Config {
	fs.Parse(args)

	cfg, err := config.Load(f)
	if err != nil {
		fail(err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fail(err)
	}
	logging = true
	logger.Sugar.Debugf("%s: config %+v", fs.Name(), *cfg)
	return cfg
}

// logging is set once the logger has been initialized from config.
var logging bool

// fail reports err and exits. Once logging is up the error also reaches the
// log file.
func fail(err error) {
	if logging {
		logger.Error("command failed", zap.Error(err))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	logger.Sync()
	os.Exit(1)
}

func usage(line string) {
	fmt.Fprintln(os.Stderr, "Usage: shdwtool "+line)
	os.Exit(1)
}

func cmdBuild(args []string) {
	fs, f := newFlagSet("build")
	cfg := setup(fs, f, args)

	if fs.NArg() != 2 && fs.NArg() != 4 {
		usage("build [options] <image> <out.shdw> [cell_width cell_height]")
	}

	var cw, ch int
	if fs.NArg() == 4 {
		var err error
		if cw, err = strconv.Atoi(fs.Arg(2)); err != nil || cw <= 0 {
			fail(fmt.Errorf("invalid cell width %q", fs.Arg(2)))
		}
		if ch, err = strconv.Atoi(fs.Arg(3)); err != nil || ch <= 0 {
			fail(fmt.Errorf("invalid cell height %q", fs.Arg(3)))
		}
	}

	shdw, err := authoring.New(cfg).Build(fs.Arg(0), fs.Arg(1), cw, ch)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s: %d cells of %dx%d, %d lines\n",
		fs.Arg(1), len(shdw.Cells), shdw.CellWidth, shdw.CellHeight, shdw.LineCount())
}

func cmdRebuild(args []string) {
	fs, f := newFlagSet("rebuild")
	cfg := setup(fs, f, args)

	if fs.NArg() != 2 {
		usage("rebuild [-w N -h N] <image> <file.shdw>")
	}

	// Only explicit flags override the file's cell size here.
	shdw, err := authoring.New(cfg).Rebuild(fs.Arg(0), fs.Arg(1), f.CellWidth, f.CellHeight)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Rebuilt %s: %d cells of %dx%d, %d lines\n",
		fs.Arg(1), len(shdw.Cells), shdw.CellWidth, shdw.CellHeight, shdw.LineCount())
}

func cmdInfo(args []string) {
	fs, f := newFlagSet("info")
	cfg := setup(fs, f, args)

	if fs.NArg() < 1 {
		usage("info <file.shdw>...")
	}

	casters := caster.NewManager(cfg.Codec.DecodeOptions())
	entries, err := casters.LoadAll(fs.Args()...)

	for _, e := range entries {
		var lines, empty int
		for _, span := range e.Cells {
			lines += span.Len() / 2
			if span.Len() == 0 {
				empty++
			}
		}
		fmt.Printf("File:     %s\n", e.Path)
		fmt.Printf("Cell:     %dx%d\n", e.CellWidth, e.CellHeight)
		fmt.Printf("Cells:    %d (%d empty)\n", len(e.Cells), empty)
		fmt.Printf("Lines:    %d\n", lines)
		fmt.Println()
	}
	fmt.Printf("Vertices: %d in %d files\n", len(casters.Vertices()), casters.Len())

	if err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", e)
		}
		logger.Sync()
		os.Exit(1)
	}
}

func cmdDump(args []string) {
	fs, f := newFlagSet("dump")
	only := fs.Int("cell", -1, "Only dump cell N")
	cfg := setup(fs, f, args)

	if fs.NArg() != 1 {
		usage("dump [-cell N] <file.shdw>")
	}

	shdw, err := formats.ParseSHDWFileWithOptions(fs.Arg(0), cfg.Codec.DecodeOptions())
	if err != nil {
		fail(err)
	}

	if *only >= 0 {
		cell := shdw.GetCell(*only)
		if cell == nil {
			fail(fmt.Errorf("cell %d out of range (%d cells)", *only, len(shdw.Cells)))
		}
		dumpCell(*only, cell)
		return
	}

	fmt.Printf("Cell size: %dx%d\n", shdw.CellWidth, shdw.CellHeight)
	for i := range shdw.Cells {
		dumpCell(i, &shdw.Cells[i])
	}
}

func dumpCell(i int, cell *formats.Cell) {
	loops := cell.Loops()
	fmt.Printf("Cell %d: %d lines, %d loops\n", i, len(cell.Lines), len(loops))
	for j, loop := range loops {
		fmt.Printf("  loop %d:\n", j)
		for _, l := range loop {
			fmt.Printf("    (%g, %g) -> (%g, %g)\n", l.Start.X, l.Start.Y, l.End.X, l.End.Y)
		}
	}
}

func cmdVerify(args []string) {
	fs, f := newFlagSet("verify")
	cfg := setup(fs, f, args)

	if fs.NArg() != 2 {
		usage("verify <image> <file.shdw>")
	}

	report, err := authoring.New(cfg).Verify(fs.Arg(0), fs.Arg(1))
	if report == nil {
		fail(err)
	}

	fmt.Printf("Image: %dx%d (%dx%d whole cells)\n",
		report.ImageWidth, report.ImageHeight, report.Columns, report.Rows)
	fmt.Printf("Cells: %d\n", report.Cells)
	fmt.Printf("Lines: %d\n", report.Lines)

	if err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", e)
		}
		logger.Sync()
		os.Exit(1)
	}
	fmt.Println("OK")
}

func cmdConfig(args []string) {
	fs, f := newFlagSet("config")
	out := fs.String("o", "", "Output path (default: user config dir)")
	cfg := setup(fs, f, args)

	path := *out
	save := func() error { return cfg.SaveTo(path) }
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.yaml")
		save = cfg.Save
	}
	if err := save(); err != nil {
		fail(fmt.Errorf("writing config: %w", err))
	}
	fmt.Printf("Wrote %s\n", path)
}
