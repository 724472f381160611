package elevationmap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	missingTileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_missing_tile_cache_hits_total",
		Help: "The total number of hits on the missing tile cache",
	})
	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_tile_cache_hits_total",
		Help: "The total number of hits on the tile cache",
	})
	tileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_tile_cache_misses_total",
		Help: "The total number of misses on the tile cache",
	})
	tileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_tile_cache_evictions_total",
		Help: "The total number of evictions from the tile cache",
	})
	tileLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_tile_load_errors_total",
		Help: "The total number of tile files that could not be loaded",
	})
	degradedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_degraded_fetches_total",
		Help: "The total number of fetches answered by an ancestor of the requested tile",
	})
	pointCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_point_cache_hits_total",
		Help: "The total number of hits on the point elevation cache",
	})
	pointCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_point_cache_misses_total",
		Help: "The total number of misses on the point elevation cache",
	})
	tilesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevationmap_tiles_written_total",
		Help: "The total number of tiles written to the repository",
	})
)
