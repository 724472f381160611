package elevationmap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-elevationmap"
)

func writeRaw16Tile(t *testing.T, dir string, key elevationmap.TileKey, f func(x, y int) float64) {
	t.Helper()
	tile := newTestTile(t, key, testResolution, f)
	assert.NoError(t, tile.Store(filepath.Join(dir, elevationmap.TileFilename(key, elevationmap.FormatRaw16)), 0))
}

func TestConvertRepositoryInPlace(t *testing.T) {
	dir := t.TempDir()
	heights := func(x, y int) float64 {
		return float64(100*y - x)
	}
	writeRaw16Tile(t, dir, rootKeys[0], heights)
	writeRaw16Tile(t, dir, rootKeys[1], heights)
	writeTestTile(t, dir, westKey, constant(1))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("tiles\n"), 0o644))

	var progress [][2]int
	n, err := elevationmap.ConvertRepository(dir, dir,
		elevationmap.WithConvertResolution(testResolution),
		elevationmap.WithDeleteSources(true),
		elevationmap.WithProgress(func(done, total int) {
			progress = append(progress, [2]int{done, total})
		}),
	)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.Equal(t, []string{
		"README",
		"data_0000_0000_00.png",
		"data_0000_0001_00.png",
		"data_0005_0002_03.png",
	}, names)

	for _, key := range rootKeys {
		tile, err := elevationmap.LoadTile(os.DirFS(dir), elevationmap.TileFilename(key, elevationmap.FormatPNG), key, testResolution)
		assert.NoError(t, err)
		assert.Equal(t, newTestTile(t, key, testResolution, heights).Samples(), tile.Samples())
	}

	store := newTestTileStore(t, dir)
	assertElevation(t, store, westMid, 3, 1)
}

func TestConvertRepositoryToOtherDirectory(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	writeRaw16Tile(t, srcDir, westKey, constant(1234))
	writeTestTile(t, srcDir, rootKeys[0], constant(55))

	n, err := elevationmap.ConvertRepository(srcDir, dstDir,
		elevationmap.WithConvertResolution(testResolution),
		elevationmap.WithConvertFormat(elevationmap.FormatTIFF),
		elevationmap.WithConvertPrecision(elevationmap.Precision16),
	)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	srcEntries, err := os.ReadDir(srcDir)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(srcEntries))

	store := newTestTileStore(t, dstDir, elevationmap.WithFormat(elevationmap.FormatTIFF))
	assertElevation(t, store, westMid, 3, 1234)
	assertElevation(t, store, elevationmap.LatLon{Lat: -45, Lon: -45}, 3, 55)
}

func TestConvertRepositoryErrors(t *testing.T) {
	_, err := elevationmap.ConvertRepository(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	assert.Error(t, err)

	dir := t.TempDir()
	writeRaw16Tile(t, dir, westKey, constant(0))
	_, err = elevationmap.ConvertRepository(dir, dir, elevationmap.WithConvertResolution(2*testResolution))
	assert.IsError(t, err, elevationmap.ErrFormat)
}
