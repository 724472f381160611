package elevationmap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	imagetiff "golang.org/x/image/tiff"
)

const (
	photometricWhiteIsZero = 0
	photometricBlackIsZero = 1
	photometricRGB         = 2
)

// A tileIFD is a struct into which github.com/google/tiff can unmarshal the
// IFD of a tile file.
type tileIFD struct {
	PhotometricInterpretation uint16 `tiff:"field,tag=262"`
	SamplesPerPixel           uint16 `tiff:"field,tag=277"`
}

// LoadTile reads the tile at key from the file name in fsys. The format is
// chosen by name's extension and, for image formats, the precision by the
// image's color model.
func LoadTile(fsys fs.FS, name string, key TileKey, resolution int) (*Tile, error) {
	format, err := formatOf(name)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return DecodeTile(data, format, key, resolution)
}

// DecodeTile decodes the tile at key from data in format.
func DecodeTile(data []byte, format Format, key TileKey, resolution int) (*Tile, error) {
	var samples []float64
	switch format {
	case FormatRaw16:
		var err error
		if samples, err = decodeRaw16Samples(data, resolution*resolution); err != nil {
			return nil, err
		}
	case FormatPNG:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if samples, _, err = decodeImage(img, resolution); err != nil {
			return nil, err
		}
	case FormatTIFF:
		ifd, err := probeTIFF(data)
		if err != nil {
			return nil, err
		}
		img, err := imagetiff.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		var precision Precision
		if samples, precision, err = decodeImage(img, resolution); err != nil {
			return nil, err
		}
		if rgb := ifd.PhotometricInterpretation == photometricRGB; rgb != (precision == Precision24) {
			return nil, fmt.Errorf("%w: photometric interpretation %d does not match %s", ErrFormat, ifd.PhotometricInterpretation, precision)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidArgument, format)
	}
	return NewTileWithSamples(key, resolution, samples)
}

// probeTIFF checks that data is a single image TIFF with a photometric
// interpretation that a tile can use.
func probeTIFF(data []byte) (*tileIFD, error) {
	tiffTIFF, err := tiff.Parse(bytes.NewReader(data), tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("%w: found %d IFDs, expected 1", ErrFormat, len(tiffTIFF.IFDs()))
	}
	var ifd tileIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	switch ifd.PhotometricInterpretation {
	case photometricWhiteIsZero, photometricBlackIsZero:
		if ifd.SamplesPerPixel > 1 {
			return nil, fmt.Errorf("%w: grayscale image with %d samples per pixel", ErrFormat, ifd.SamplesPerPixel)
		}
		return &ifd, nil
	case photometricRGB:
		return &ifd, nil
	default:
		return nil, fmt.Errorf("%w: photometric interpretation %d: %w", ErrFormat, ifd.PhotometricInterpretation, errors.ErrUnsupported)
	}
}

// decodeImage returns the samples of img and the precision they were stored
// at. 8-bit and 16-bit grayscale images are Precision8 and Precision16, all
// other color models are Precision24.
func decodeImage(img image.Image, resolution int) ([]float64, Precision, error) {
	bounds := img.Bounds()
	if bounds.Dx() != resolution || bounds.Dy() != resolution {
		return nil, 0, fmt.Errorf("%w: image is %dx%d, expected %dx%d", ErrFormat, bounds.Dx(), bounds.Dy(), resolution, resolution)
	}

	var precision Precision
	var stored func(x, y int) uint32
	switch img := img.(type) {
	case *image.Gray:
		precision = Precision8
		stored = func(x, y int) uint32 {
			return uint32(img.GrayAt(x, y).Y)
		}
	case *image.Gray16:
		precision = Precision16
		stored = func(x, y int) uint32 {
			return uint32(img.Gray16At(x, y).Y)
		}
	default:
		precision = Precision24
		stored = func(x, y int) uint32 {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
		}
	}

	samples := make([]float64, resolution*resolution)
	for y := range resolution {
		for x := range resolution {
			value, err := DecodeSample(precision, stored(bounds.Min.X+x, bounds.Min.Y+y))
			if err != nil {
				return nil, 0, err
			}
			samples[y*resolution+x] = value
		}
	}
	return samples, precision, nil
}

// encodeImage returns an image holding samples at precision.
func encodeImage(samples []float64, resolution int, precision Precision) (image.Image, error) {
	rect := image.Rect(0, 0, resolution, resolution)
	switch precision {
	case Precision8:
		img := image.NewGray(rect)
		for i, sample := range samples {
			stored, _ := EncodeSample(precision, sample)
			img.Pix[i] = uint8(stored)
		}
		return img, nil
	case Precision16:
		img := image.NewGray16(rect)
		for i, sample := range samples {
			stored, _ := EncodeSample(precision, sample)
			img.SetGray16(i%resolution, i/resolution, color.Gray16{Y: uint16(stored)})
		}
		return img, nil
	case Precision24:
		img := image.NewRGBA(rect)
		for i, sample := range samples {
			stored, _ := EncodeSample(precision, sample)
			img.Pix[4*i+0] = uint8(stored >> 16)
			img.Pix[4*i+1] = uint8(stored >> 8)
			img.Pix[4*i+2] = uint8(stored)
			img.Pix[4*i+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, precision)
	}
}

// Encode writes t to w in format. precision is ignored for FormatRaw16.
func (t *Tile) Encode(w io.Writer, format Format, precision Precision) error {
	if t.samples == nil {
		return &TileError{Op: "encode", Key: t.key, Err: ErrEmptyTile}
	}
	switch format {
	case FormatRaw16:
		_, err := w.Write(encodeRaw16Samples(t.samples))
		return err
	case FormatPNG:
		img, err := encodeImage(t.samples, t.resolution, precision)
		if err != nil {
			return err
		}
		return png.Encode(w, img)
	case FormatTIFF:
		img, err := encodeImage(t.samples, t.resolution, precision)
		if err != nil {
			return err
		}
		return imagetiff.Encode(w, img, &imagetiff.Options{
			Compression: imagetiff.Deflate,
		})
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidArgument, format)
	}
}

// Store writes t to the file at path in the format given by path's extension.
// The file is written to a temporary file in the same directory which is then
// renamed, so readers never observe a partially written tile.
func (t *Tile) Store(path string, precision Precision) error {
	if t.samples == nil {
		return &TileError{Op: "store", Key: t.key, Err: ErrEmptyTile}
	}
	format, err := formatOf(filepath.Base(path))
	if err != nil {
		return err
	}
	if format.IsImage() && !precision.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, precision)
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return t.Encode(w, format, precision)
	})
}

// StoreScaled writes a copy of t with every sample multiplied by scale to
// path. It is used to produce exaggerated images for visual inspection.
func (t *Tile) StoreScaled(path string, scale float64, precision Precision) error {
	scaled, err := t.Scaled(scale)
	if err != nil {
		return err
	}
	return scaled.Store(path, precision)
}

func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(file.Name())
		}
	}()

	bufferedWriter := bufio.NewWriter(file)
	if err := write(bufferedWriter); err != nil {
		return err
	}
	if err := bufferedWriter.Flush(); err != nil {
		return err
	}
	if err := file.Chmod(0o644); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}
