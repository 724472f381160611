package elevationmap

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type converter struct {
	resolution    int
	format        Format
	precision     Precision
	deleteSources bool
	progress      func(done, total int)
	logger        logrus.FieldLogger
}

// A ConvertOption sets an option on ConvertRepository.
type ConvertOption func(*converter)

// WithConvertResolution sets the resolution of the tiles being converted.
func WithConvertResolution(resolution int) ConvertOption {
	return func(c *converter) {
		c.resolution = resolution
	}
}

// WithConvertFormat sets the format tiles are converted to.
func WithConvertFormat(format Format) ConvertOption {
	return func(c *converter) {
		c.format = format
	}
}

// WithConvertPrecision sets the precision tiles are converted to.
func WithConvertPrecision(precision Precision) ConvertOption {
	return func(c *converter) {
		c.precision = precision
	}
}

// WithDeleteSources deletes every source file once it has been converted.
func WithDeleteSources(deleteSources bool) ConvertOption {
	return func(c *converter) {
		c.deleteSources = deleteSources
	}
}

// WithProgress sets a function called after each tile is converted.
func WithProgress(progress func(done, total int)) ConvertOption {
	return func(c *converter) {
		c.progress = progress
	}
}

// WithConvertLogger sets the logger.
func WithConvertLogger(logger logrus.FieldLogger) ConvertOption {
	return func(c *converter) {
		c.logger = logger
	}
}

// ConvertRepository re-encodes every tile file in srcDir that is not already
// in the target format and writes it to dstDir, which may be the same as
// srcDir. By default raw16 tiles are converted to Precision24 PNG tiles. It
// returns the number of tiles converted.
func ConvertRepository(srcDir, dstDir string, options ...ConvertOption) (int, error) {
	c := &converter{
		resolution: DefaultResolution,
		format:     FormatPNG,
		precision:  Precision24,
		logger:     logrus.StandardLogger(),
	}
	for _, option := range options {
		option(c)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, err
	}

	type source struct {
		name string
		key  TileKey
	}
	var sources []source
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		key, format, err := ParseTileFilename(entry.Name())
		if err != nil {
			continue
		}
		if format == c.format && filepath.Clean(srcDir) == filepath.Clean(dstDir) {
			continue
		}
		sources = append(sources, source{name: entry.Name(), key: key})
	}

	srcFS := os.DirFS(srcDir)
	for i, source := range sources {
		tile, err := LoadTile(srcFS, source.name, source.key, c.resolution)
		if err != nil {
			return i, &TileError{Op: "convert", Key: source.key, Err: err}
		}
		dstPath := filepath.Join(dstDir, TileFilename(source.key, c.format))
		if err := tile.Store(dstPath, c.precision); err != nil {
			return i, &TileError{Op: "convert", Key: source.key, Err: err}
		}
		c.logger.WithFields(logrus.Fields{
			"src": source.name,
			"dst": dstPath,
		}).Debug("converted tile")
		if srcPath := filepath.Join(srcDir, source.name); c.deleteSources && srcPath != dstPath {
			if err := os.Remove(srcPath); err != nil {
				return i + 1, &TileError{Op: "convert", Key: source.key, Err: err}
			}
		}
		if c.progress != nil {
			c.progress(i+1, len(sources))
		}
	}
	return len(sources), nil
}
