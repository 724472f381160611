package elevationmap

import "math"

// A Relation describes how one tile relates to another in ChildContaining.
type Relation int

const (
	NoOverlap Relation = iota
	Self
	Child
)

// EdgeDegrees returns the edge length in degrees of tiles at depth. The edge
// length is the same along both axes.
func EdgeDegrees(depth int) float64 {
	return 180 / float64(uint64(1)<<depth)
}

// TileIndexFor returns the indexes of the tile at depth containing lat, lon.
// Points on the north pole and on the antimeridian at +180° belong to the
// last row and column respectively.
func TileIndexFor(lat, lon float64, depth int) (latIndex, lonIndex int) {
	edge := EdgeDegrees(depth)
	latIndex = int(math.Floor((lat + 90) / edge))
	if lat == 90 {
		latIndex--
	}
	lonIndex = int(math.Floor((lon + 180) / edge))
	if lon == 180 {
		lonIndex--
	}
	return latIndex, lonIndex
}

// TileKeyFor returns the key of the tile at depth containing lat, lon.
func TileKeyFor(lat, lon float64, depth int) TileKey {
	latIndex, lonIndex := TileIndexFor(lat, lon, depth)
	return TileKey{
		LatIndex: latIndex,
		LonIndex: lonIndex,
		Depth:    depth,
	}
}

// SampleIndexFor returns the sample of t nearest to lat, lon. Lookups are
// nearest-sample, not interpolated. Points outside t are clamped to its edge.
func SampleIndexFor(t *Tile, lat, lon float64) (x, y int) {
	x = roundHalfUp(math.Abs(lon-t.leftLongitude) / t.degreesPerSample)
	y = roundHalfUp(math.Abs(t.topLatitude-lat) / t.degreesPerSample)
	return clamp(x, 0, t.resolution-1), clamp(y, 0, t.resolution-1)
}

// contains returns whether lat, lon rounds to a sample inside t.
func contains(t *Tile, lat, lon float64) bool {
	x := roundHalfUp((lon - t.leftLongitude) / t.degreesPerSample)
	y := roundHalfUp((t.topLatitude - lat) / t.degreesPerSample)
	return 0 <= x && x < t.resolution && 0 <= y && y < t.resolution
}

// ChildKeyFor returns the key of the child of t containing lat, lon. Points on
// the midlines belong to the northern and eastern children, consistent with
// TileIndexFor.
func ChildKeyFor(t *Tile, lat, lon float64) TileKey {
	midpoint := t.Midpoint()
	child := TileKey{
		LatIndex: t.key.LatIndex << 1,
		LonIndex: t.key.LonIndex << 1,
		Depth:    t.key.Depth + 1,
	}
	if lat >= midpoint.Lat {
		child.LatIndex++
	}
	if lon >= midpoint.Lon {
		child.LonIndex++
	}
	return child
}

// ChildContaining returns the key of the child of t that contains other. If t
// and other are the same tile it returns t's key and Self. If other's midpoint
// lies outside t, or other is coarser than t, it returns NoOverlap.
func ChildContaining(t, other *Tile) (TileKey, Relation) {
	midpoint := other.Midpoint()
	if !contains(t, midpoint.Lat, midpoint.Lon) {
		return TileKey{}, NoOverlap
	}
	switch {
	case t.key.Depth == other.key.Depth:
		if t.key != other.key {
			panic("elevationmap: tiles at the same depth overlap but have different keys")
		}
		return t.key, Self
	case t.key.Depth > other.key.Depth:
		return TileKey{}, NoOverlap
	default:
		return ChildKeyFor(t, midpoint.Lat, midpoint.Lon), Child
	}
}

// roundHalfUp rounds x to the nearest integer, rounding halves towards
// positive infinity.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clamp(x, lo, hi int) int {
	return min(max(x, lo), hi)
}
