package elevationmap

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
)

// A Tile is one cell of the quadtree. It holds a resolution×resolution grid of
// elevation samples in meters, stored row major from the north-west corner. A
// tile without samples is empty and any lookup on it fails with ErrEmptyTile.
//
// Sample (x, y) is located at longitude leftLongitude+x*degreesPerSample and
// latitude topLatitude-y*degreesPerSample.
type Tile struct {
	key              TileKey
	resolution       int
	topLatitude      float64
	leftLongitude    float64
	degreesPerSample float64
	samples          []float64
}

// NewTile returns a new empty tile.
func NewTile(key TileKey, resolution int) *Tile {
	edge := EdgeDegrees(key.Depth)
	return &Tile{
		key:              key,
		resolution:       resolution,
		topLatitude:      float64(key.LatIndex+1)*edge - 90,
		leftLongitude:    float64(key.LonIndex)*edge - 180,
		degreesPerSample: edge / float64(resolution),
	}
}

// NewTileWithSamples returns a new tile populated with samples.
func NewTileWithSamples(key TileKey, resolution int, samples []float64) (*Tile, error) {
	t := NewTile(key, resolution)
	if err := t.SetSamples(samples); err != nil {
		return nil, err
	}
	return t, nil
}

// Key returns t's key.
func (t *Tile) Key() TileKey {
	return t.key
}

// Resolution returns the number of samples along each edge of t.
func (t *Tile) Resolution() int {
	return t.resolution
}

// TopLatitude returns the latitude of t's northern edge.
func (t *Tile) TopLatitude() float64 {
	return t.topLatitude
}

// LeftLongitude returns the longitude of t's western edge.
func (t *Tile) LeftLongitude() float64 {
	return t.leftLongitude
}

// DegreesPerSample returns the distance between adjacent samples in degrees.
func (t *Tile) DegreesPerSample() float64 {
	return t.degreesPerSample
}

// EdgeDegrees returns the edge length of t in degrees.
func (t *Tile) EdgeDegrees() float64 {
	return t.degreesPerSample * float64(t.resolution)
}

// Bound returns t's footprint.
func (t *Tile) Bound() orb.Bound {
	edge := t.EdgeDegrees()
	return orb.Bound{
		Min: orb.Point{t.leftLongitude, t.topLatitude - edge},
		Max: orb.Point{t.leftLongitude + edge, t.topLatitude},
	}
}

// Midpoint returns the position of the sample at the center of t.
func (t *Tile) Midpoint() LatLon {
	half := float64(t.resolution/2) * t.degreesPerSample
	return LatLon{
		Lat: t.topLatitude - half,
		Lon: t.leftLongitude + half,
	}
}

// Empty returns whether t has no samples.
func (t *Tile) Empty() bool {
	return t.samples == nil
}

// Samples returns t's samples. The returned slice must not be modified.
func (t *Tile) Samples() []float64 {
	return t.samples
}

// SetSamples replaces t's samples. Setting nil samples empties t.
func (t *Tile) SetSamples(samples []float64) error {
	if samples != nil && len(samples) != t.resolution*t.resolution {
		return fmt.Errorf("%w: %d samples, expected %d", ErrInvalidArgument, len(samples), t.resolution*t.resolution)
	}
	t.samples = samples
	return nil
}

// At returns the sample at x, y.
func (t *Tile) At(x, y int) (float64, error) {
	if t.samples == nil {
		return 0, &TileError{Op: "at", Key: t.key, Err: ErrEmptyTile}
	}
	return t.samples[y*t.resolution+x], nil
}

// Sample returns the sample nearest to lat, lon.
func (t *Tile) Sample(lat, lon float64) (float64, error) {
	if t.samples == nil {
		return 0, &TileError{Op: "sample", Key: t.key, Err: ErrEmptyTile}
	}
	x, y := SampleIndexFor(t, lat, lon)
	return t.samples[y*t.resolution+x], nil
}

// Contains returns whether lat, lon lies inside t.
func (t *Tile) Contains(lat, lon float64) bool {
	return contains(t, lat, lon)
}

// ChildOf returns a new empty tile for the child of t that contains that. It
// returns t itself if t and that are the same tile, and nil if they do not
// overlap.
func (t *Tile) ChildOf(that *Tile) *Tile {
	switch key, relation := ChildContaining(t, that); relation {
	case Self:
		return t
	case Child:
		return NewTile(key, t.resolution)
	default:
		return nil
	}
}

// ChildAt returns a new empty tile for the child of t containing lat, lon.
func (t *Tile) ChildAt(lat, lon float64) *Tile {
	return NewTile(ChildKeyFor(t, lat, lon), t.resolution)
}

// Equal returns whether t and other have the same key. Samples are not
// compared.
func (t *Tile) Equal(other *Tile) bool {
	return t.key == other.key
}

// Clone returns a deep copy of t.
func (t *Tile) Clone() *Tile {
	clone := *t
	clone.samples = slices.Clone(t.samples)
	return &clone
}

// Scaled returns a copy of t with every sample multiplied by scale.
func (t *Tile) Scaled(scale float64) (*Tile, error) {
	if t.samples == nil {
		return nil, &TileError{Op: "scale", Key: t.key, Err: ErrEmptyTile}
	}
	clone := t.Clone()
	for i := range clone.samples {
		clone.samples[i] *= scale
	}
	return clone, nil
}

func (t *Tile) String() string {
	state := "populated"
	if t.samples == nil {
		state = "empty"
	}
	return fmt.Sprintf("tile %s %s", t.key, state)
}
