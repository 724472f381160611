package elevationmap

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maypok86/otter/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// A loadResult classifies the outcome of loading one tile.
type loadResult int

const (
	loadHit   loadResult = iota // The tile was found.
	loadMiss                    // The tile does not exist.
	loadError                   // The tile exists but could not be read.
)

// A pointKey is the key of the point elevation cache. Only exact repeats of a
// query hit the cache.
type pointKey struct {
	lat   float64
	lon   float64
	depth int
}

// A TileStore is a repository of tiles on disk with a cache of recently used
// tiles and recently answered point queries. It is safe for concurrent use.
type TileStore struct {
	zero           bool
	dir            string
	fsys           fs.FS
	maximumDepth   int
	resolution     int
	format         Format
	readFormats    []Format
	tileCacheSize  int
	pointCacheSize int
	pointCacheTTL  time.Duration
	missingTileTTL time.Duration
	logger         logrus.FieldLogger
	tileCache      *lru.Cache[TileKey, *Tile]
	missingTiles   *otter.Cache[TileKey, struct{}]
	pointCache     *otter.Cache[pointKey, float64]
	tileLoads      singleflight.Group
	keyLocks       sync.Map
	writes         atomic.Uint64
}

// A TileStoreOption sets an option on a TileStore.
type TileStoreOption func(*TileStore)

// NewTileStore returns a new TileStore with the given options. A repository
// must be set with WithRepository or WithFS.
func NewTileStore(options ...TileStoreOption) (*TileStore, error) {
	s := &TileStore{
		maximumDepth:   DefaultMaximumDepth,
		resolution:     DefaultResolution,
		format:         FormatPNG,
		tileCacheSize:  64,
		pointCacheSize: 1 << 16,
		missingTileTTL: time.Minute,
		logger:         logrus.StandardLogger(),
	}
	for _, option := range options {
		option(s)
	}

	switch {
	case s.fsys == nil:
		return nil, fmt.Errorf("%w: no repository", ErrInvalidArgument)
	case s.maximumDepth < 0 || MaxDepth < s.maximumDepth:
		return nil, fmt.Errorf("%w: maximum depth %d", ErrInvalidArgument, s.maximumDepth)
	case s.resolution <= 0:
		return nil, fmt.Errorf("%w: resolution %d", ErrInvalidArgument, s.resolution)
	case !s.format.IsImage():
		return nil, fmt.Errorf("%w: tiles cannot be written as %q", ErrInvalidArgument, s.format)
	}

	s.readFormats = append([]Format{s.format}, slices.DeleteFunc(slices.Clone(Formats), func(format Format) bool {
		return format == s.format
	})...)

	var err error
	s.tileCache, err = lru.New[TileKey, *Tile](max(s.tileCacheSize, 1))
	if err != nil {
		return nil, err
	}

	missingTileOptions := &otter.Options[TileKey, struct{}]{
		MaximumSize: 1 << 16,
	}
	if s.missingTileTTL > 0 {
		missingTileOptions.ExpiryCalculator = otter.ExpiryWriting[TileKey, struct{}](s.missingTileTTL)
	}
	s.missingTiles, err = otter.New(missingTileOptions)
	if err != nil {
		return nil, err
	}

	if s.pointCacheSize > 0 {
		pointCacheOptions := &otter.Options[pointKey, float64]{
			MaximumSize: s.pointCacheSize,
		}
		if s.pointCacheTTL > 0 {
			pointCacheOptions.ExpiryCalculator = otter.ExpiryWriting[pointKey, float64](s.pointCacheTTL)
		}
		s.pointCache, err = otter.New(pointCacheOptions)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// NewZeroTileStore returns a TileStore without a repository that answers zero
// for every elevation query.
func NewZeroTileStore() *TileStore {
	return &TileStore{
		zero:         true,
		maximumDepth: DefaultMaximumDepth,
		resolution:   DefaultResolution,
		logger:       logrus.StandardLogger(),
	}
}

// WithRepository sets the directory holding the tiles. Tiles inserted into
// the store are written there.
func WithRepository(dir string) TileStoreOption {
	return func(s *TileStore) {
		s.dir = dir
		s.fsys = os.DirFS(dir)
	}
}

// WithFS sets a read-only filesystem holding the tiles.
func WithFS(fsys fs.FS) TileStoreOption {
	return func(s *TileStore) {
		s.dir = ""
		s.fsys = fsys
	}
}

// WithMaximumDepth sets the depth used by Elevation.
func WithMaximumDepth(maximumDepth int) TileStoreOption {
	return func(s *TileStore) {
		s.maximumDepth = maximumDepth
	}
}

// WithResolution sets the number of samples along each edge of a tile.
func WithResolution(resolution int) TileStoreOption {
	return func(s *TileStore) {
		s.resolution = resolution
	}
}

// WithFormat sets the format of tiles written by the store. It is also the
// first format tried when reading tiles. It must be an image format.
func WithFormat(format Format) TileStoreOption {
	return func(s *TileStore) {
		s.format = format
	}
}

// WithTileCacheSize sets the maximum number of tiles kept in memory.
func WithTileCacheSize(tileCacheSize int) TileStoreOption {
	return func(s *TileStore) {
		s.tileCacheSize = tileCacheSize
	}
}

// WithPointCacheSize sets the maximum number of point elevations kept in
// memory. Zero disables the point cache.
func WithPointCacheSize(pointCacheSize int) TileStoreOption {
	return func(s *TileStore) {
		s.pointCacheSize = pointCacheSize
	}
}

// WithPointCacheTTL sets how long point elevations are kept in memory. Zero
// keeps them until they are evicted by size.
func WithPointCacheTTL(pointCacheTTL time.Duration) TileStoreOption {
	return func(s *TileStore) {
		s.pointCacheTTL = pointCacheTTL
	}
}

// WithMissingTileTTL sets how long a tile file found to be missing is
// remembered before the repository is checked again. Zero remembers missing
// tiles until they are evicted by size or written by the store.
func WithMissingTileTTL(missingTileTTL time.Duration) TileStoreOption {
	return func(s *TileStore) {
		s.missingTileTTL = missingTileTTL
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) TileStoreOption {
	return func(s *TileStore) {
		s.logger = logger
	}
}

// IsZero returns whether s answers zero for every query.
func (s *TileStore) IsZero() bool {
	return s.zero
}

// MaximumDepth returns s's maximum depth.
func (s *TileStore) MaximumDepth() int {
	return s.maximumDepth
}

// Resolution returns s's resolution.
func (s *TileStore) Resolution() int {
	return s.resolution
}

// TilePath returns the path of the file the tile at key is written to. It
// returns the empty string if s is read-only.
func (s *TileStore) TilePath(key TileKey) string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, TileFilename(key, s.format))
}

// Fetch returns the tile at depth containing lat, lon, or its nearest
// existing ancestor.
func (s *TileStore) Fetch(lat, lon float64, depth int) (*Tile, error) {
	if !isValidPosition(lat, lon) {
		return nil, fmt.Errorf("%w: position %g, %g", ErrInvalidArgument, lat, lon)
	}
	return s.FetchKey(TileKeyFor(lat, lon, depth))
}

// FetchKey returns the tile at key, or its nearest existing ancestor. Tiles
// that exist but cannot be read are logged and skipped. If no ancestor
// exists, it returns an error wrapping ErrNotFound.
func (s *TileStore) FetchKey(key TileKey) (*Tile, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: tile key %s", ErrInvalidArgument, key)
	}
	if s.zero {
		return nil, &TileError{Op: "fetch", Key: key, Err: ErrNotFound}
	}
	for k := key; ; k = k.Parent() {
		switch tile, result, err := s.getTileCached(k); result {
		case loadHit:
			if k != key {
				degradedFetches.Inc()
			}
			return tile, nil
		case loadError:
			s.logger.WithFields(logrus.Fields{
				"latIndex": k.LatIndex,
				"lonIndex": k.LonIndex,
				"depth":    k.Depth,
			}).WithError(err).Warn("failed to load tile")
		}
		if k.Depth == 0 {
			return nil, &TileError{Op: "fetch", Key: key, Err: ErrNotFound}
		}
	}
}

// Elevation returns the elevation at lat, lon from the deepest available
// tile no deeper than s's maximum depth.
func (s *TileStore) Elevation(lat, lon float64) (float64, error) {
	return s.ElevationAt(lat, lon, s.maximumDepth)
}

// ElevationAt returns the elevation at lat, lon from the deepest available
// tile no deeper than depth. If no tile covers lat, lon it returns an error
// wrapping ErrNoData.
func (s *TileStore) ElevationAt(lat, lon float64, depth int) (float64, error) {
	if s.zero {
		return 0, nil
	}

	key := pointKey{lat: lat, lon: lon, depth: depth}
	if s.pointCache != nil {
		if elevation, ok := s.pointCache.GetIfPresent(key); ok {
			pointCacheHits.Inc()
			return elevation, nil
		}
		pointCacheMisses.Inc()
	}

	tile, err := s.Fetch(lat, lon, depth)
	switch {
	case errors.Is(err, ErrNotFound):
		return 0, fmt.Errorf("%w: %g, %g", ErrNoData, lat, lon)
	case err != nil:
		return 0, err
	}
	elevation, err := tile.Sample(lat, lon)
	if err != nil {
		return 0, err
	}

	if s.pointCache != nil {
		s.pointCache.Set(key, elevation)
	}
	return elevation, nil
}

// getTileCached returns the tile at key, using the cache if possible.
// Concurrent misses on the same key share a single load.
func (s *TileStore) getTileCached(key TileKey) (*Tile, loadResult, error) {
	if tile, ok := s.tileCache.Get(key); ok {
		tileCacheHits.Inc()
		return tile, loadHit, nil
	}

	if _, ok := s.missingTiles.GetIfPresent(key); ok {
		missingTileCacheHits.Inc()
		return nil, loadMiss, nil
	}

	tileCacheMisses.Inc()

	generation := s.writes.Load()
	value, err, _ := s.tileLoads.Do(key.String(), func() (any, error) {
		tile, err := s.loadTile(key)
		if err != nil {
			return nil, err
		}
		// A tile written by Insert while this load was in flight wins.
		if ok, eviction := s.tileCache.ContainsOrAdd(key, tile); ok {
			if cached, ok := s.tileCache.Peek(key); ok {
				tile = cached
			}
		} else if eviction {
			tileCacheEvictions.Inc()
		}
		return tile, nil
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.recordMissing(key, generation)
		return nil, loadMiss, nil
	case err != nil:
		tileLoadErrors.Inc()
		return nil, loadError, err
	default:
		return value.(*Tile), loadHit, nil
	}
}

// loadTile loads the tile at key from the repository, trying each format in
// turn. It returns an error wrapping fs.ErrNotExist if no file exists.
func (s *TileStore) loadTile(key TileKey) (*Tile, error) {
	for _, format := range s.readFormats {
		name := TileFilename(key, format)
		switch tile, err := LoadTile(s.fsys, name, key, s.resolution); {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return nil, fmt.Errorf("%s: %w", name, err)
		default:
			return tile, nil
		}
	}
	return nil, fs.ErrNotExist
}

// recordMissing remembers that the tile at key does not exist, unless a tile
// was stored after generation was read.
func (s *TileStore) recordMissing(key TileKey, generation uint64) {
	s.missingTiles.Set(key, struct{}{})
	if s.writes.Load() != generation {
		s.missingTiles.Invalidate(key)
	}
}

// storeTile writes t to the repository in Precision24 and makes it the
// cached tile for its key. Cached point elevations are dropped, as any of
// them may have been answered by a tile that t now supersedes.
func (s *TileStore) storeTile(t *Tile) error {
	if err := t.Store(s.TilePath(t.key), Precision24); err != nil {
		return err
	}
	tilesWritten.Inc()
	if s.tileCache.Add(t.key, t) {
		tileCacheEvictions.Inc()
	}
	s.writes.Add(1)
	s.missingTiles.Invalidate(t.key)
	if s.pointCache != nil {
		s.pointCache.InvalidateAll()
	}
	return nil
}

// isValidPosition returns whether lat, lon is a position on the globe.
func isValidPosition(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) && -90 <= lat && lat <= 90 && -180 <= lon && lon <= 180
}
