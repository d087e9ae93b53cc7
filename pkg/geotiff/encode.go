// Package geotiff writes uncompressed RGBA TIFF files with the GeoTIFF tags
// needed to georeference a stitched tile mosaic. It supports geographic
// (lat/lon degree) and projected (meter) reference systems identified by
// EPSG code; that is enough for mosaics assembled from WMS tiles without
// pulling in a full raster library.
package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"sort"
)

// TIFF field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeDouble   = 12
)

// Baseline and GeoTIFF tag IDs.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagXResolution      = 282
	tagYResolution      = 283
	tagResolutionUnit   = 296
	tagDateTime         = 306

	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735
)

// GeoKey IDs and values.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedType  = 3072
	keyProjLinearUnit = 3076

	modelProjected  = 1
	modelGeographic = 2
	rasterPixelIsArea = 1
	unitMeter         = 9001
)

var byteOrder = binary.LittleEndian

// GeoRef describes how the image maps onto the reference system: the world
// coordinate of the top-left pixel and the per-pixel scale. Geographic
// selects lat/lon degree keys instead of projected meter keys.
type GeoRef struct {
	EPSG       int
	Geographic bool
	OriginX    float64
	OriginY    float64
	PixelW     float64
	PixelH     float64

	// Optional TIFF metadata.
	Description string
	DateTime    string
}

type field struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

// Encode writes img to w as an uncompressed RGBA GeoTIFF.
func Encode(w io.Writer, img image.Image, ref GeoRef) error {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("image has zero extent")
	}

	pixels := flattenRGBA(img)

	fields := baselineFields(width, height)
	fields = append(fields, geoFields(ref)...)
	if ref.Description != "" {
		fields = append(fields, asciiField(tagImageDescription, ref.Description))
	}
	if ref.DateTime != "" {
		fields = append(fields, asciiField(tagDateTime, ref.DateTime))
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })

	// Layout: 8-byte header, IFD, out-of-line values, then pixel strip.
	ifdSize := 2 + 12*len(fields) + 4
	valueOffset := 8 + ifdSize

	var overflow bytes.Buffer
	for i := range fields {
		f := &fields[i]
		if len(f.data) > 4 {
			off := uint32(valueOffset + overflow.Len())
			overflow.Write(f.data)
			f.data = encodeLong(off)
		}
	}

	pixelOffset := uint32(valueOffset + overflow.Len())
	for i := range fields {
		switch fields[i].tag {
		case tagStripOffsets:
			fields[i].data = encodeLong(pixelOffset)
		case tagStripByteCounts:
			fields[i].data = encodeLong(uint32(len(pixels)))
		}
	}

	// Header: little endian, magic 42, first IFD at offset 8.
	if _, err := w.Write([]byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint16(len(fields))); err != nil {
		return err
	}
	for _, f := range fields {
		if err := binary.Write(w, byteOrder, f.tag); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, f.datatype); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, f.count); err != nil {
			return err
		}
		var value [4]byte
		copy(value[:], f.data)
		if _, err := w.Write(value[:]); err != nil {
			return err
		}
	}
	if err := binary.Write(w, byteOrder, uint32(0)); err != nil {
		return err
	}
	if _, err := overflow.WriteTo(w); err != nil {
		return err
	}
	if _, err := w.Write(pixels); err != nil {
		return err
	}
	return nil
}

func flattenRGBA(img image.Image) []byte {
	bounds := img.Bounds()
	buf := make([]byte, 0, bounds.Dx()*bounds.Dy()*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			buf = append(buf, uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8))
		}
	}
	return buf
}

func baselineFields(width, height int) []field {
	return []field{
		{tagImageWidth, typeShort, 1, encodeShort(uint16(width))},
		{tagImageLength, typeShort, 1, encodeShort(uint16(height))},
		{tagBitsPerSample, typeShort, 4, encodeShorts([]uint16{8, 8, 8, 8})},
		{tagCompression, typeShort, 1, encodeShort(1)},  // none
		{tagPhotometric, typeShort, 1, encodeShort(2)},  // RGB
		{tagStripOffsets, typeLong, 1, make([]byte, 4)}, // patched later
		{tagSamplesPerPixel, typeShort, 1, encodeShort(4)},
		{tagRowsPerStrip, typeShort, 1, encodeShort(uint16(height))},
		{tagStripByteCounts, typeLong, 1, make([]byte, 4)}, // patched later
		{tagXResolution, typeRational, 1, encodeRational(72, 1)},
		{tagYResolution, typeRational, 1, encodeRational(72, 1)},
		{tagResolutionUnit, typeShort, 1, encodeShort(2)}, // inch
	}
}

func geoFields(ref GeoRef) []field {
	tiepoint := []float64{0, 0, 0, ref.OriginX, ref.OriginY, 0}
	scale := []float64{ref.PixelW, ref.PixelH, 0}

	var keys []uint16
	if ref.Geographic {
		keys = []uint16{
			1, 1, 0, 3,
			keyModelType, 0, 1, modelGeographic,
			keyRasterType, 0, 1, rasterPixelIsArea,
			keyGeographicType, 0, 1, uint16(ref.EPSG),
		}
	} else {
		keys = []uint16{
			1, 1, 0, 3,
			keyModelType, 0, 1, modelProjected,
			keyProjectedType, 0, 1, uint16(ref.EPSG),
			keyProjLinearUnit, 0, 1, unitMeter,
		}
	}

	return []field{
		{tagModelPixelScale, typeDouble, 3, encodeDoubles(scale)},
		{tagModelTiepoint, typeDouble, 6, encodeDoubles(tiepoint)},
		{tagGeoKeyDirectory, typeShort, uint32(len(keys)), encodeShorts(keys)},
	}
}

func asciiField(tag uint16, s string) field {
	data := append([]byte(s), 0)
	return field{tag, typeASCII, uint32(len(data)), data}
}

func encodeShort(v uint16) []byte {
	b := make([]byte, 2)
	byteOrder.PutUint16(b, v)
	return b
}

func encodeShorts(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		byteOrder.PutUint16(b[i*2:], v)
	}
	return b
}

func encodeLong(v uint32) []byte {
	b := make([]byte, 4)
	byteOrder.PutUint32(b, v)
	return b
}

func encodeDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		byteOrder.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func encodeRational(num, den uint32) []byte {
	b := make([]byte, 8)
	byteOrder.PutUint32(b[:4], num)
	byteOrder.PutUint32(b[4:], den)
	return b
}
