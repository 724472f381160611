// Package elevationmap maintains a disk-backed quadtree of elevation samples
// covering the globe and answers point elevation queries from it.
//
// The globe is split into tiles indexed by (latIndex, lonIndex, depth). At
// depth d there are 2^d rows of tiles along the latitude axis and 2^(d+1)
// columns along the longitude axis, and every tile is a square of 180/2^d
// degrees holding a resolution×resolution grid of samples in meters. When the
// tile at the requested depth is missing, queries silently degrade to the
// nearest ancestor that exists on disk.
package elevationmap

import "fmt"

const (
	// DefaultMaximumDepth is the depth used for queries that do not name one.
	DefaultMaximumDepth = 6

	// DefaultResolution is the number of samples along each edge of a tile.
	DefaultResolution = 512

	// MaxDepth is the deepest level supported by the repository naming scheme.
	MaxDepth = 13
)

// A TileKey identifies a tile in the quadtree.
type TileKey struct {
	LatIndex int
	LonIndex int
	Depth    int
}

// Valid returns whether k lies inside the quadtree.
func (k TileKey) Valid() bool {
	if k.Depth < 0 || MaxDepth < k.Depth {
		return false
	}
	return 0 <= k.LatIndex && k.LatIndex < 1<<k.Depth &&
		0 <= k.LonIndex && k.LonIndex < 2<<k.Depth
}

// Parent returns the key of k's parent. The parent of a depth zero key is
// itself.
func (k TileKey) Parent() TileKey {
	if k.Depth == 0 {
		return k
	}
	return TileKey{
		LatIndex: k.LatIndex >> 1,
		LonIndex: k.LonIndex >> 1,
		Depth:    k.Depth - 1,
	}
}

// Ancestor returns the key of k's ancestor at depth. depth must not be
// greater than k.Depth.
func (k TileKey) Ancestor(depth int) TileKey {
	shift := k.Depth - depth
	return TileKey{
		LatIndex: k.LatIndex >> shift,
		LonIndex: k.LonIndex >> shift,
		Depth:    depth,
	}
}

func (k TileKey) String() string {
	return fmt.Sprintf("(%d,%d)@%d", k.LatIndex, k.LonIndex, k.Depth)
}

// A LatLon is a geographic position in degrees.
type LatLon struct {
	Lat float64
	Lon float64
}
