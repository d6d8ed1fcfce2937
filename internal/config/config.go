// Package config handles tool configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/shadowcast/pkg/formats"
	"github.com/Faultbox/shadowcast/pkg/outline"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all tool settings.
type Config struct {
	Shadow  ShadowConfig  `yaml:"shadow"`
	Codec   CodecConfig   `yaml:"codec"`
	Logging LoggingConfig `yaml:"logging"`
}

// ShadowConfig holds grid partitioning settings.
type ShadowConfig struct {
	CellWidth  int `yaml:"cell_width"`  // 0 = image width
	CellHeight int `yaml:"cell_height"` // 0 = image height
	Workers    int `yaml:"workers"`     // cells traced at once, 1 = serial
}

// Options converts the settings into partitioner options.
func (s ShadowConfig) Options() outline.Options {
	return outline.Options{
		CellWidth:  s.CellWidth,
		CellHeight: s.CellHeight,
		Workers:    s.Workers,
	}
}

// CodecConfig holds SHDW decoding limits.
type CodecConfig struct {
	MaxCells        uint32 `yaml:"max_cells"`
	MaxLinesPerCell uint32 `yaml:"max_lines_per_cell"`
}

// DecodeOptions converts the limits into decoder options.
func (c CodecConfig) DecodeOptions() formats.DecodeOptions {
	return formats.DecodeOptions{
		MaxCells:        c.MaxCells,
		MaxLinesPerCell: c.MaxLinesPerCell,
	}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Shadow: ShadowConfig{
			CellWidth:  0,
			CellHeight: 0,
			Workers:    1,
		},
		Codec: CodecConfig{
			MaxCells:        formats.DefaultMaxCells,
			MaxLinesPerCell: formats.DefaultMaxLinesPerCell,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if c.Shadow.CellWidth < 0 || c.Shadow.CellHeight < 0 {
		return fmt.Errorf("%w: cell size %dx%d", ErrInvalidConfig, c.Shadow.CellWidth, c.Shadow.CellHeight)
	}
	if c.Shadow.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Shadow.Workers)
	}
	return nil
}
