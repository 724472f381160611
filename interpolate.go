package elevationmap

import "math"

// SampleBilinear returns the elevation at lat, lon interpolated bilinearly
// between the four surrounding samples of t. Positions beyond the last row or
// column use the edge samples.
func (t *Tile) SampleBilinear(lat, lon float64) (float64, error) {
	if t.samples == nil {
		return 0, &TileError{Op: "sample", Key: t.key, Err: ErrEmptyTile}
	}
	fx := (lon - t.leftLongitude) / t.degreesPerSample
	fy := (t.topLatitude - lat) / t.degreesPerSample
	x0 := clamp(int(math.Floor(fx)), 0, t.resolution-1)
	y0 := clamp(int(math.Floor(fy)), 0, t.resolution-1)
	x1 := min(x0+1, t.resolution-1)
	y1 := min(y0+1, t.resolution-1)
	dx := min(max(fx-float64(x0), 0), 1)
	dy := min(max(fy-float64(y0), 0), 1)
	at := func(x, y int) float64 {
		return t.samples[y*t.resolution+x]
	}
	return 0 +
		at(x0, y0)*(1-dx)*(1-dy) +
		at(x1, y0)*dx*(1-dy) +
		at(x0, y1)*(1-dx)*dy +
		at(x1, y1)*dx*dy, nil
}
