package decode

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mtiff "github.com/mdouchement/tiff"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	xtiff "golang.org/x/image/tiff"
)

// FileAdapter opens raster files on disk. Supported formats: TIFF, BMP,
// PNG and JPEG. TIFF sources additionally carry physical resolution when
// the file has XResolution/YResolution tags.
type FileAdapter struct{}

// NewFileAdapter returns an adapter for on-disk raster files.
func NewFileAdapter() *FileAdapter { return &FileAdapter{} }

// Open probes the file's dimensions and resolution without decoding pixel
// data. The full decode happens lazily on the first DecodeRegion call.
func (a *FileAdapter) Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Transient: transient(err), Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, &Error{Path: path, Op: "probe", Err: errors.Wrap(err, "decode config")}
	}

	src := &fileSource{
		path:   path,
		width:  cfg.Width,
		height: cfg.Height,
	}

	if isTIFF(path) {
		// Resolution tags are optional; a missing tag is not an error.
		if dpi, err := probeTIFFResolution(path); err == nil {
			src.resolution = dpi
		}
	}
	return src, nil
}

// fileSource serves sub-rectangles out of one decoded image. The decoders
// underneath produce whole frames only, so the first region request decodes
// the full image once and every later request crops from it.
type fileSource struct {
	path       string
	width      int
	height     int
	resolution float64

	once    sync.Once
	img     *image.RGBA
	loadErr error
}

func (s *fileSource) Dimensions() (int, int) { return s.width, s.height }

func (s *fileSource) Resolution() float64 { return s.resolution }

func (s *fileSource) Path() string { return s.path }

func (s *fileSource) Close() error {
	s.img = nil
	return nil
}

func (s *fileSource) DecodeRegion(rect image.Rectangle, scale int) (*image.RGBA, error) {
	s.once.Do(s.loadFull)
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	rect = rect.Intersect(s.img.Bounds())
	if rect.Empty() {
		return nil, &Error{Path: s.path, Op: "region", Err: errors.Errorf("rectangle %v outside source bounds %v", rect, s.img.Bounds())}
	}
	if scale < 1 {
		scale = 1
	}

	if scale == 1 {
		out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(out, out.Bounds(), s.img, rect.Min, draw.Src)
		return out, nil
	}

	outW := ceilDiv(rect.Dx(), scale)
	outH := ceilDiv(rect.Dy(), scale)
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), s.img, rect, xdraw.Src, nil)
	return out, nil
}

// loadFull decodes the whole source into an RGBA buffer.
//
// TIFF goes through the mdouchement decoder first, which handles scanner
// variants (LogLuv, CFA, planar) the x/image decoder rejects; plain TIFFs
// that it cannot read fall back to x/image/tiff.
func (s *fileSource) loadFull() {
	f, err := os.Open(s.path)
	if err != nil {
		s.loadErr = &Error{Path: s.path, Op: "open", Transient: transient(err), Err: err}
		return
	}
	defer f.Close()

	var img image.Image
	if isTIFF(s.path) {
		img, err = mtiff.Decode(f)
		if err != nil {
			if _, serr := f.Seek(0, 0); serr == nil {
				img, err = xtiff.Decode(f)
			}
		}
	} else {
		img, _, err = image.Decode(f)
	}
	if err != nil {
		s.loadErr = &Error{Path: s.path, Op: "decode", Err: errors.Wrap(err, "full decode")}
		return
	}

	if rgba, ok := img.(*image.RGBA); ok {
		s.img = rgba
		return
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	s.img = rgba
}

func isTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}

// transient reports whether an I/O error is worth a single retry.
func transient(err error) bool {
	return os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
