package decode

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// TIFF tag IDs and field types used by the resolution probe.
const (
	tagXResolution    = 282
	tagYResolution    = 283
	tagResolutionUnit = 296

	fieldShort    = 3
	fieldRational = 5

	unitInch       = 2
	unitCentimeter = 3
)

// probeTIFFResolution reads the XResolution/YResolution tags from the first
// IFD of a TIFF file and returns the resolution in pixels per inch. It reads
// only the directory entries, never the pixel data.
func probeTIFFResolution(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]byte, 8)
	if _, err := f.Read(header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return 0, errors.New("not a TIFF file")
	}

	ifdOffset := byteOrder.Uint32(header[4:8])
	if _, err := f.Seek(int64(ifdOffset), 0); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(f, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	resUnit := uint16(unitInch)

	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := f.Read(entry); err != nil {
			return 0, err
		}

		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		valueOffset := byteOrder.Uint32(entry[8:12])

		switch tag {
		case tagXResolution:
			if fieldType == fieldRational {
				xRes = readRational(f, int64(valueOffset), byteOrder)
			}
		case tagYResolution:
			if fieldType == fieldRational {
				yRes = readRational(f, int64(valueOffset), byteOrder)
			}
		case tagResolutionUnit:
			if fieldType == fieldShort {
				resUnit = uint16(valueOffset)
			}
		}
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}
	if resUnit == unitCentimeter {
		dpi *= 2.54
	}
	if dpi == 0 {
		return 0, errors.New("no resolution tags")
	}
	return dpi, nil
}

// readRational reads a RATIONAL value (two uint32s) at offset, preserving
// the current file position.
func readRational(f *os.File, offset int64, byteOrder binary.ByteOrder) float64 {
	pos, _ := f.Seek(0, 1)
	defer f.Seek(pos, 0)

	if _, err := f.Seek(offset, 0); err != nil {
		return 0
	}
	var num, denom uint32
	if err := binary.Read(f, byteOrder, &num); err != nil {
		return 0
	}
	if err := binary.Read(f, byteOrder, &denom); err != nil {
		return 0
	}
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}
