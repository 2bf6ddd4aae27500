// Package config loads sona.yaml
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"sona-picture-processing/internal/background"
	"sona-picture-processing/internal/compression"
	"sona-picture-processing/internal/journal"
	"sona-picture-processing/internal/matching"
	"sona-picture-processing/internal/operators"
	"sona-picture-processing/internal/restoration"
	"sona-picture-processing/internal/stitching"
)

const DefaultFile = "sona.yaml"

// Config is the application configuration
type Config struct {
	// HistoryLimit bounds the undo stack.
	HistoryLimit int `yaml:"history_limit"`
	// OutputDir receives saved and batch results.
	OutputDir string `yaml:"output_dir"`
	// ThumbnailSize is the longest side of preview thumbnails.
	ThumbnailSize int `yaml:"thumbnail_size"`
	// Workers caps batch concurrency; 0 sizes it from the host.
	Workers int `yaml:"workers"`
	// PDFDPI is the render resolution for PDF imports.
	PDFDPI int `yaml:"pdf_dpi"`

	Journal     journal.Config      `yaml:"journal"`
	Operators   operators.Options   `yaml:"operators"`
	Compression compression.Options `yaml:"compression"`
	Matching    matching.Options    `yaml:"matching"`
	Stitching   stitching.Options   `yaml:"stitching"`
	Background  background.Options  `yaml:"background"`
	Restoration restoration.Options `yaml:"restoration"`
}

func Default() *Config {
	return &Config{
		HistoryLimit:  10,
		OutputDir:     "output",
		ThumbnailSize: 256,
		Workers:       0,
		PDFDPI:        150,
		Journal:       journal.DefaultConfig(),
		Operators:     operators.DefaultOptions(),
		Compression:   compression.DefaultOptions(),
		Matching:      matching.DefaultOptions(),
		Stitching:     stitching.DefaultOptions(),
		Background:    background.DefaultOptions(),
		Restoration:   restoration.DefaultOptions(),
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is the default file name.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultFile {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	switch {
	case c.HistoryLimit < 1:
		return fmt.Errorf("history_limit must be at least 1, got %d", c.HistoryLimit)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case c.ThumbnailSize < 16:
		return fmt.Errorf("thumbnail_size must be at least 16, got %d", c.ThumbnailSize)
	case c.Compression.Quality < 1 || c.Compression.Quality > 100:
		return fmt.Errorf("compression.jpeg_quality must be in 1..100, got %d", c.Compression.Quality)
	case c.Compression.KeepFraction <= 0 || c.Compression.KeepFraction > 1:
		return fmt.Errorf("compression.dct_keep_fraction must be in (0, 1], got %g", c.Compression.KeepFraction)
	case c.Background.WhiteLevel < 0 || c.Background.WhiteLevel > 255:
		return fmt.Errorf("background.white_level must be in 0..255, got %d", c.Background.WhiteLevel)
	}

	switch c.Journal.Driver {
	case "", "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("journal.driver must be sqlite, postgres or none, got %q", c.Journal.Driver)
	}
	if _, err := stitching.ParseMode(string(c.Stitching.Mode)); err != nil {
		return err
	}
	if _, err := background.ParseMethod(string(c.Background.Method)); err != nil {
		return err
	}
	if _, err := restoration.ParseMethod(string(c.Restoration.Method)); err != nil {
		return err
	}
	return nil
}
