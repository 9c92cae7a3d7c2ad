package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsaowji/d2vsource/pkg/adapters/smartdecoder"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Backend != "auto" {
		t.Errorf("Backend = %q, want auto", cfg.Backend)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled by default")
	}
	if cfg.Cache.Path == "" {
		t.Error("expected a default cache path")
	}
	if cfg.ToSessionOptions().ScratchSize != 0 {
		t.Error("expected the default scratch size")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d2vsource.yaml")
	content := `index: movie.yaml
backend: ffmpeg
ffmpeg_path: /opt/ffmpeg/bin/ffmpeg
scratch_size: 65536
log_level: debug
sheet:
  columns: 6
server:
  listen: ":9000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Index != "movie.yaml" || cfg.Backend != "ffmpeg" || cfg.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Sheet.Columns != 6 {
		t.Errorf("Sheet.Columns = %d, want 6", cfg.Sheet.Columns)
	}
	if cfg.Sheet.TileWidth != 240 {
		t.Errorf("Sheet.TileWidth = %d, want default 240", cfg.Sheet.TileWidth)
	}
	if cfg.Server.Listen != ":9000" || cfg.Server.Format != "jpeg" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.ToSessionOptions().ScratchSize != 65536 {
		t.Errorf("ScratchSize = %d", cfg.ToSessionOptions().ScratchSize)
	}
	if cfg.LogLevelValue() != ports.LevelDebug {
		t.Errorf("LogLevelValue() = %s", cfg.LogLevelValue())
	}

	opts := cfg.ToDecoderOptions(nil)
	if opts.Backend != smartdecoder.KindFFmpeg || opts.FFmpegPath != cfg.FFmpegPath {
		t.Errorf("unexpected decoder options %+v", opts)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("sheet: [1, 2"), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "vaapi" }},
		{"negative scratch", func(c *Config) { c.ScratchSize = -1 }},
		{"zero columns", func(c *Config) { c.Sheet.Columns = 0 }},
		{"quality too high", func(c *Config) { c.Export.Quality = 101 }},
		{"server quality zero", func(c *Config) { c.Server.Quality = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"#1a1a2e", color.RGBA{R: 0x1a, G: 0x1a, B: 0x2e, A: 255}},
		{"FFFFFF", color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{"#fff", color.Black},
		{"", color.Black},
	}
	for _, tt := range tests {
		if got := ParseColor(tt.in); got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
