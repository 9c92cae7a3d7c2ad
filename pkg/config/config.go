// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jsaowji/d2vsource/pkg/adapters/smartdecoder"
	"github.com/jsaowji/d2vsource/pkg/ports"
	"github.com/jsaowji/d2vsource/pkg/session"
)

// Config represents the full configuration for d2vsource.
type Config struct {
	// Input
	Index string `yaml:"index"`

	// Decoding
	Backend     string `yaml:"backend"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	ScratchSize int    `yaml:"scratch_size"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Index cache
	Cache CacheConfig `yaml:"cache"`

	// Frame export
	Export ExportConfig `yaml:"export"`

	// Contact sheet
	Sheet SheetConfig `yaml:"sheet"`

	// Frame server
	Server ServerConfig `yaml:"server"`
}

// CacheConfig configures the index cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ExportConfig configures image output.
type ExportConfig struct {
	Format    string `yaml:"format"`
	Quality   int    `yaml:"quality"`
	OutputDir string `yaml:"output_dir"`
}

// SheetConfig configures contact sheets.
type SheetConfig struct {
	Columns    int    `yaml:"columns"`
	TileWidth  int    `yaml:"tile_width"`
	Count      int    `yaml:"count"`
	Background string `yaml:"background"`
}

// ServerConfig configures the frame server.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// Format is the image format of served frames.
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Backend:  string(smartdecoder.KindAuto),
		LogLevel: "info",

		Cache: CacheConfig{
			Path: defaultCachePath(),
		},

		Export: ExportConfig{
			Format:    "png",
			Quality:   90,
			OutputDir: ".",
		},

		Sheet: SheetConfig{
			Columns:    4,
			TileWidth:  240,
			Count:      16,
			Background: "#1a1a2e",
		},

		Server: ServerConfig{
			Listen:  "127.0.0.1:8080",
			Format:  "jpeg",
			Quality: 85,
		},
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "d2vsource", "index.db")
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := smartdecoder.ParseKind(c.Backend); err != nil {
		return err
	}
	if c.ScratchSize < 0 {
		return fmt.Errorf("config: negative scratch_size %d", c.ScratchSize)
	}
	if c.Sheet.Columns <= 0 || c.Sheet.TileWidth <= 0 || c.Sheet.Count <= 0 {
		return fmt.Errorf("config: sheet columns, tile_width and count must be positive")
	}
	if c.Export.Quality < 1 || c.Export.Quality > 100 || c.Server.Quality < 1 || c.Server.Quality > 100 {
		return fmt.Errorf("config: JPEG quality must be between 1 and 100")
	}
	return nil
}

// ParseColor parses a hex color string to color.Color.
// Malformed strings yield black.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black
	}

	var rgb [3]uint8
	for i := range rgb {
		rgb[i] = hexValue(hex[2*i])<<4 | hexValue(hex[2*i+1])
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// ToSessionOptions converts Config to session.Options.
func (c Config) ToSessionOptions() session.Options {
	return session.Options{
		ScratchSize: c.ScratchSize,
	}
}

// ToDecoderOptions converts Config to smartdecoder.Options.
func (c Config) ToDecoderOptions(log ports.Logger) smartdecoder.Options {
	return smartdecoder.Options{
		Backend:    smartdecoder.Kind(c.Backend),
		FFmpegPath: c.FFmpegPath,
		Logger:     log,
	}
}

// LogLevelValue returns the parsed log level.
func (c Config) LogLevelValue() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}
