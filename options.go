package seismo

import (
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"
)

// Options configures documents, views and compositors. The zero value of
// any field falls back to its default, so a partial YAML file is enough.
type Options struct {
	// TileSize is the tile edge length in pixels.
	TileSize int `yaml:"tile_size"`

	// MemoryBudgetBytes bounds resident tile pixels per document.
	MemoryBudgetBytes int64 `yaml:"memory_budget_bytes"`

	// DecodeWorkers is the number of background decode goroutines.
	DecodeWorkers int `yaml:"decode_workers"`

	// MinZoom and MaxZoom clamp the view zoom factor.
	MinZoom float64 `yaml:"min_zoom"`
	MaxZoom float64 `yaml:"max_zoom"`

	// MaxCompositeTiles caps how many tiles one frame may touch; the
	// compositor coarsens the pyramid level until it fits.
	MaxCompositeTiles int `yaml:"max_composite_tiles"`

	// PlaceholderColor is the hex fill (#rrggbb) for permanently failed
	// tiles.
	PlaceholderColor string `yaml:"placeholder_color"`
}

// DefaultOptions returns the built-in configuration.
func DefaultOptions() Options {
	return Options{
		TileSize:          256,
		MemoryBudgetBytes: 256 << 20,
		DecodeWorkers:     0, // GOMAXPROCS
		MinZoom:           DefaultMinZoom,
		MaxZoom:           DefaultMaxZoom,
		MaxCompositeTiles: 64,
		PlaceholderColor:  "#b0b0b0",
	}
}

// normalized fills unset fields with their defaults.
func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.TileSize <= 0 {
		o.TileSize = def.TileSize
	}
	if o.MemoryBudgetBytes <= 0 {
		o.MemoryBudgetBytes = def.MemoryBudgetBytes
	}
	if o.DecodeWorkers < 0 {
		o.DecodeWorkers = 0
	}
	if o.MinZoom <= 0 {
		o.MinZoom = def.MinZoom
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = def.MaxZoom
	}
	if o.MaxCompositeTiles <= 0 {
		o.MaxCompositeTiles = def.MaxCompositeTiles
	}
	if o.PlaceholderColor == "" {
		o.PlaceholderColor = def.PlaceholderColor
	}
	return o
}

// PlaceholderRGBA parses PlaceholderColor; malformed values fall back to
// the default gray.
func (o Options) PlaceholderRGBA() color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(o.PlaceholderColor, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// LoadOptions reads a YAML options file. A missing file yields the
// defaults; a malformed one is an error.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultOptions(), nil
	}
	if err != nil {
		return Options{}, fmt.Errorf("read options: %w", err)
	}

	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("parse options %s: %w", path, err)
	}
	return o.normalized(), nil
}

// SaveOptions writes the options as YAML.
func SaveOptions(path string, o Options) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write options: %w", err)
	}
	return nil
}
