package elevationmap_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"golang.org/x/sync/errgroup"

	"github.com/twpayne/go-elevationmap"
)

var (
	westKey  = elevationmap.TileKey{LatIndex: 5, LonIndex: 2, Depth: 3}
	eastKey  = elevationmap.TileKey{LatIndex: 5, LonIndex: 3, Depth: 3}
	westMid  = elevationmap.LatLon{Lat: 33.75, Lon: -123.75}
	eastMid  = elevationmap.LatLon{Lat: 33.75, Lon: -101.25}
	rootKeys = []elevationmap.TileKey{
		{LatIndex: 0, LonIndex: 0, Depth: 0},
		{LatIndex: 0, LonIndex: 1, Depth: 0},
	}
)

func newTestRepository(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range rootKeys {
		writeTestTile(t, dir, key, constant(0))
	}
	return dir
}

func assertElevation(t *testing.T, store *elevationmap.TileStore, latLon elevationmap.LatLon, depth int, expected float64) {
	t.Helper()
	elevation, err := store.ElevationAt(latLon.Lat, latLon.Lon, depth)
	assert.NoError(t, err)
	assert.Equal(t, expected, elevation, "depth %d", depth)
}

func TestInsert(t *testing.T) {
	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)

	target := newTestTile(t, westKey, testResolution, constant(500))
	assert.NoError(t, store.Insert(target, 0))

	for depth := 1; depth <= westKey.Depth; depth++ {
		_, err := os.Stat(store.TilePath(westKey.Ancestor(depth)))
		assert.NoError(t, err)
	}

	coldStore := newTestTileStore(t, dir)
	for _, s := range []*elevationmap.TileStore{store, coldStore} {
		for depth := 0; depth <= westKey.Depth; depth++ {
			tile, err := s.FetchKey(westKey.Ancestor(depth))
			assert.NoError(t, err)
			assert.Equal(t, westKey.Ancestor(depth), tile.Key())
		}
		assertElevation(t, s, westMid, 0, 0)
		for depth := 1; depth <= westKey.Depth; depth++ {
			assertElevation(t, s, westMid, depth, 500)
		}
		assertElevation(t, s, elevationmap.LatLon{Lat: 80, Lon: -170}, 1, 0)
		assertElevation(t, s, eastMid, 2, 0)
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)
	target := newTestTile(t, westKey, testResolution, func(x, y int) float64 {
		return float64(x*y) * 3.75
	})

	readFiles := func() map[elevationmap.TileKey][]byte {
		files := make(map[elevationmap.TileKey][]byte)
		for depth := 0; depth <= westKey.Depth; depth++ {
			key := westKey.Ancestor(depth)
			data, err := os.ReadFile(store.TilePath(key))
			assert.NoError(t, err)
			files[key] = data
		}
		return files
	}

	assert.NoError(t, store.Insert(target, 0))
	first := readFiles()
	assert.NoError(t, store.Insert(target, 0))
	assert.Equal(t, first, readFiles())

	assert.NoError(t, newTestTileStore(t, dir).Insert(target, 1))
	assert.Equal(t, first, readFiles())
}

func TestInsertPreservesSiblings(t *testing.T) {
	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)

	assert.NoError(t, store.Insert(newTestTile(t, westKey, testResolution, constant(500)), 0))
	assert.NoError(t, store.Insert(newTestTile(t, eastKey, testResolution, constant(700)), 0))

	for _, s := range []*elevationmap.TileStore{store, newTestTileStore(t, dir)} {
		for depth := 1; depth <= 3; depth++ {
			assertElevation(t, s, westMid, depth, 500)
			assertElevation(t, s, eastMid, depth, 700)
		}
	}
}

func TestInsertConcurrentSiblings(t *testing.T) {
	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)

	west := newTestTile(t, westKey, testResolution, constant(500))
	east := newTestTile(t, eastKey, testResolution, constant(700))
	var g errgroup.Group
	g.Go(func() error {
		return store.Insert(west, 0)
	})
	g.Go(func() error {
		return store.Insert(east, 0)
	})
	assert.NoError(t, g.Wait())

	coldStore := newTestTileStore(t, dir)
	assertElevation(t, coldStore, westMid, 2, 500)
	assertElevation(t, coldStore, eastMid, 2, 700)
}

func TestInsertFromDeeperAncestorDepth(t *testing.T) {
	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)
	assert.NoError(t, store.Insert(newTestTile(t, westKey, testResolution, constant(500)), 2))
	for depth := 1; depth <= westKey.Depth; depth++ {
		assertElevation(t, store, westMid, depth, 500)
	}
}

func TestInsertOverwrite(t *testing.T) {
	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)
	assert.NoError(t, store.Insert(newTestTile(t, westKey, testResolution, constant(500)), 0))
	assertElevation(t, store, westMid, 3, 500)

	assert.NoError(t, store.Insert(newTestTile(t, westKey, testResolution, constant(800)), westKey.Depth))
	assertElevation(t, store, westMid, 3, 800)
	assertElevation(t, newTestTileStore(t, dir), westMid, 3, 800)
}

func TestInsertPartialWriteFailure(t *testing.T) {
	target := newTestTile(t, westKey, testResolution, constant(500))

	cleanDir := newTestRepository(t)
	assert.NoError(t, newTestTileStore(t, cleanDir).Insert(target, 0))

	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)
	assertElevation(t, store, westMid, 1, 0)
	assertElevation(t, store, westMid, 3, 0)

	blocker := store.TilePath(westKey)
	assert.NoError(t, os.MkdirAll(filepath.Join(blocker, "blocker"), 0o755))

	err := store.Insert(target, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), westKey.String())
	var linkError *os.LinkError
	assert.True(t, errors.As(err, &linkError), "%v", err)
	var tileError *elevationmap.TileError
	assert.True(t, errors.As(err, &tileError))
	assert.Equal(t, westKey, tileError.Key)

	// Levels written before the failure are visible to warm and cold stores.
	coldStore := newTestTileStore(t, dir)
	for depth := 1; depth < westKey.Depth; depth++ {
		tile, err := coldStore.FetchKey(westKey.Ancestor(depth))
		assert.NoError(t, err)
		assert.Equal(t, westKey.Ancestor(depth), tile.Key())
		assertElevation(t, coldStore, westMid, depth, 500)
		assertElevation(t, store, westMid, depth, 500)
	}
	assertElevation(t, store, westMid, 3, 500)

	assert.NoError(t, os.RemoveAll(blocker))
	assert.NoError(t, store.Insert(target, 0))

	for depth := 0; depth <= westKey.Depth; depth++ {
		name := elevationmap.TileFilename(westKey.Ancestor(depth), elevationmap.FormatPNG)
		expected, err := os.ReadFile(filepath.Join(cleanDir, name))
		assert.NoError(t, err)
		actual, err := os.ReadFile(filepath.Join(dir, name))
		assert.NoError(t, err)
		assert.Equal(t, expected, actual, "%s", name)
	}

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	matches, err := fs.Glob(os.DirFS(dir), ".data_*")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(matches), "%v", names)
}

func TestInsertInvalidatesPointCache(t *testing.T) {
	dir := newTestRepository(t)
	store := newTestTileStore(t, dir)
	for depth := 0; depth <= westKey.Depth; depth++ {
		assertElevation(t, store, westMid, depth, 0)
	}
	assert.NoError(t, store.Insert(newTestTile(t, westKey, testResolution, constant(500)), 0))
	assertElevation(t, store, westMid, 0, 0)
	for depth := 1; depth <= westKey.Depth; depth++ {
		assertElevation(t, store, westMid, depth, 500)
	}
}

func TestInsertErrors(t *testing.T) {
	target := newTestTile(t, westKey, testResolution, constant(500))

	t.Run("no_ancestor", func(t *testing.T) {
		store := newTestTileStore(t, t.TempDir())
		err := store.Insert(target, 0)
		assert.IsError(t, err, elevationmap.ErrPrecondition)
		assert.Contains(t, err.Error(), westKey.String())
	})

	t.Run("ancestor_too_deep", func(t *testing.T) {
		store := newTestTileStore(t, newTestRepository(t))
		assert.IsError(t, store.Insert(target, 4), elevationmap.ErrPrecondition)
		assert.IsError(t, store.Insert(target, -1), elevationmap.ErrPrecondition)
	})

	t.Run("empty_target", func(t *testing.T) {
		store := newTestTileStore(t, newTestRepository(t))
		err := store.Insert(elevationmap.NewTile(westKey, testResolution), 0)
		assert.IsError(t, err, elevationmap.ErrEmptyTile)
	})

	t.Run("invalid_key", func(t *testing.T) {
		store := newTestTileStore(t, newTestRepository(t))
		invalid := newTestTile(t, elevationmap.TileKey{LatIndex: 9, LonIndex: 2, Depth: 3}, testResolution, constant(0))
		assert.IsError(t, store.Insert(invalid, 0), elevationmap.ErrInvalidArgument)
	})

	t.Run("zero_store", func(t *testing.T) {
		err := elevationmap.NewZeroTileStore().Insert(target, 0)
		assert.True(t, errors.Is(err, errors.ErrUnsupported))
	})
}
