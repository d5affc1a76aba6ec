package seismo

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOptionsMissingFileDefaults(t *testing.T) {
	o, err := LoadOptions(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if o != DefaultOptions() {
		t.Errorf("missing file options = %+v, want defaults", o)
	}
}

func TestOptionsSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seismo.yaml")
	in := Options{
		TileSize:          512,
		MemoryBudgetBytes: 64 << 20,
		DecodeWorkers:     2,
		MinZoom:           0.001,
		MaxZoom:           16,
		MaxCompositeTiles: 32,
		PlaceholderColor:  "#102030",
	}

	if err := SaveOptions(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestLoadOptionsPartialFileNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seismo.yaml")
	if err := os.WriteFile(path, []byte("tile_size: 128\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	if o.TileSize != 128 {
		t.Errorf("tile_size = %d, want 128", o.TileSize)
	}
	def := DefaultOptions()
	if o.MemoryBudgetBytes != def.MemoryBudgetBytes || o.MaxCompositeTiles != def.MaxCompositeTiles {
		t.Errorf("unset fields not defaulted: %+v", o)
	}
}

func TestLoadOptionsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seismo.yaml")
	if err := os.WriteFile(path, []byte("tile_size: [not a number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptions(path); err == nil {
		t.Fatal("malformed options file parsed")
	}
}

func TestPlaceholderRGBA(t *testing.T) {
	o := Options{PlaceholderColor: "#112233"}
	if got := o.PlaceholderRGBA(); got != (color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}) {
		t.Errorf("PlaceholderRGBA = %v", got)
	}

	bad := Options{PlaceholderColor: "teal"}
	if got := bad.PlaceholderRGBA(); got != (color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}) {
		t.Errorf("fallback PlaceholderRGBA = %v", got)
	}
}
