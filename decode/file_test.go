package decode

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPNG writes a w by h PNG whose pixel at (x, y) encodes its own
// coordinates, so region decodes can be verified positionally.
func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestFileAdapterOpen(t *testing.T) {
	path := writeTestPNG(t, 64, 48)

	src, err := NewFileAdapter().Open(path)
	require.NoError(t, err)
	defer src.Close()

	w, h := src.Dimensions()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
	assert.Equal(t, float64(0), src.Resolution(), "PNG carries no resolution metadata")
	assert.Equal(t, path, src.Path())
}

func TestFileAdapterOpenMissing(t *testing.T) {
	_, err := NewFileAdapter().Open(filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "open", derr.Op)
}

func TestDecodeRegionNative(t *testing.T) {
	path := writeTestPNG(t, 64, 48)
	src, err := NewFileAdapter().Open(path)
	require.NoError(t, err)
	defer src.Close()

	out, err := src.DecodeRegion(image.Rect(10, 20, 30, 40), 1)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 20, 20), out.Bounds())

	// Pixel (0,0) of the region is source pixel (10,20).
	got := out.RGBAAt(0, 0)
	assert.Equal(t, uint8(10), got.R)
	assert.Equal(t, uint8(20), got.G)
}

func TestDecodeRegionScaled(t *testing.T) {
	path := writeTestPNG(t, 64, 48)
	src, err := NewFileAdapter().Open(path)
	require.NoError(t, err)
	defer src.Close()

	out, err := src.DecodeRegion(image.Rect(0, 0, 64, 48), 4)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 12), out.Bounds())

	// Odd extents round up.
	out, err = src.DecodeRegion(image.Rect(0, 0, 63, 45), 4)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 12), out.Bounds())
}

func TestDecodeRegionOutsideBounds(t *testing.T) {
	path := writeTestPNG(t, 32, 32)
	src, err := NewFileAdapter().Open(path)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.DecodeRegion(image.Rect(100, 100, 200, 200), 1)
	require.Error(t, err)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.False(t, derr.IsTransient())
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := NewFileAdapter().Open(path)
	require.Error(t, err)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "probe", derr.Op)
}

// writeResolutionTIFF writes a TIFF header plus one IFD carrying resolution
// tags. The probe never touches pixel data, so no image payload is needed.
func writeResolutionTIFF(t *testing.T, dpi uint32, unit uint16) string {
	t.Helper()

	var buf bytes.Buffer
	le := binary.LittleEndian

	// Header: byte order, magic, first IFD offset.
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, uint32(8))

	// IFD: 3 entries, then the next-IFD offset (0), then rational values.
	// Entry block = 2 + 3*12 + 4 = 42 bytes, so rationals start at 8+42 = 50.
	binary.Write(&buf, le, uint16(3))

	writeEntry := func(tag, typ uint16, value uint32) {
		binary.Write(&buf, le, tag)
		binary.Write(&buf, le, typ)
		binary.Write(&buf, le, uint32(1))
		binary.Write(&buf, le, value)
	}
	writeEntry(tagXResolution, fieldRational, 50)
	writeEntry(tagYResolution, fieldRational, 58)
	writeEntry(tagResolutionUnit, fieldShort, uint32(unit))
	binary.Write(&buf, le, uint32(0)) // next IFD

	binary.Write(&buf, le, dpi) // XResolution numerator
	binary.Write(&buf, le, uint32(1))
	binary.Write(&buf, le, dpi) // YResolution numerator
	binary.Write(&buf, le, uint32(1))

	path := filepath.Join(t.TempDir(), "res.tif")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestProbeTIFFResolution(t *testing.T) {
	path := writeResolutionTIFF(t, 300, unitInch)

	dpi, err := probeTIFFResolution(path)
	require.NoError(t, err)
	assert.Equal(t, float64(300), dpi)
}

func TestProbeTIFFResolutionCentimeters(t *testing.T) {
	path := writeResolutionTIFF(t, 100, unitCentimeter)

	dpi, err := probeTIFFResolution(path)
	require.NoError(t, err)
	assert.InDelta(t, 254.0, dpi, 1e-9)
}

func TestProbeTIFFResolutionNotTIFF(t *testing.T) {
	path := writeTestPNG(t, 4, 4)
	_, err := probeTIFFResolution(path)
	require.Error(t, err)
}
