package elevationmap

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
)

// A Format is a tile file format, named by its file extension.
type Format string

const (
	// FormatRaw16 is little-endian unsigned 16-bit samples offset by 32768m,
	// row major from the north-west corner.
	FormatRaw16 Format = "bin"

	// FormatPNG is a PNG image in one of the precision encodings.
	FormatPNG Format = "png"

	// FormatTIFF is a deflate-compressed TIFF image in one of the precision
	// encodings.
	FormatTIFF Format = "tif"
)

// Formats lists all supported formats.
var Formats = []Format{FormatPNG, FormatTIFF, FormatRaw16}

var tileFilenameRx = regexp.MustCompile(`\Adata_(\d{4})_(\d{4})_(\d{2})\.(bin|png|tif)\z`)

// ParseFormat parses s as a Format.
func ParseFormat(s string) (Format, error) {
	switch format := Format(s); format {
	case FormatRaw16, FormatPNG, FormatTIFF:
		return format, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", ErrInvalidArgument, s)
	}
}

// IsImage returns whether f stores samples in a precision encoding.
func (f Format) IsImage() bool {
	return f == FormatPNG || f == FormatTIFF
}

// TileFilename returns the repository filename of the tile at key in format.
func TileFilename(key TileKey, format Format) string {
	return fmt.Sprintf("data_%04d_%04d_%02d.%s", key.LatIndex, key.LonIndex, key.Depth, format)
}

// ParseTileFilename returns the key and format of the repository filename
// name.
func ParseTileFilename(name string) (TileKey, Format, error) {
	m := tileFilenameRx.FindStringSubmatch(path.Base(name))
	if m == nil {
		return TileKey{}, "", fmt.Errorf("%w: %s: not a tile filename", ErrInvalidArgument, name)
	}
	latIndex, _ := strconv.Atoi(m[1])
	lonIndex, _ := strconv.Atoi(m[2])
	depth, _ := strconv.Atoi(m[3])
	key := TileKey{
		LatIndex: latIndex,
		LonIndex: lonIndex,
		Depth:    depth,
	}
	if !key.Valid() {
		return TileKey{}, "", fmt.Errorf("%w: %s: invalid tile key %s", ErrInvalidArgument, name, key)
	}
	return key, Format(m[4]), nil
}

func formatOf(name string) (Format, error) {
	ext := path.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: %s: missing extension", ErrInvalidArgument, name)
	}
	return ParseFormat(ext[1:])
}
