package config

import "flag"

// Flags holds the command-line overrides shared by every subcommand.
type Flags struct {
	Config     string
	Debug      bool
	LogFile    string
	CellWidth  int
	CellHeight int
	Workers    int
}

// Register adds the flags to fs. Call before fs.Parse.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Write logs to this file as well")
	fs.IntVar(&f.CellWidth, "w", 0, "Cell width in pixels (0 = config or image width)")
	fs.IntVar(&f.CellHeight, "h", 0, "Cell height in pixels (0 = config or image height)")
	fs.IntVar(&f.Workers, "workers", 0, "Cells traced at once (0 = config)")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.CellWidth > 0 {
		cfg.Shadow.CellWidth = f.CellWidth
	}
	if f.CellHeight > 0 {
		cfg.Shadow.CellHeight = f.CellHeight
	}
	if f.Workers > 0 {
		cfg.Shadow.Workers = f.Workers
	}
}
