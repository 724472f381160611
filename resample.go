package elevationmap

import "math"

// A span is a half-open range of source samples contributing to one
// destination sample.
type span struct {
	lo, hi int
}

// Transplant resamples source into the part of t that source covers, leaving
// the rest of t unchanged. When source is coarser than t its samples are
// enlarged with nearest-neighbor sampling; when it is finer they are shrunk by
// averaging each block of source samples that falls on one sample of t. An
// empty t is populated with zeros before the transplant.
func (t *Tile) Transplant(source *Tile) error {
	if source.samples == nil {
		return &TileError{Op: "transplant", Key: source.key, Err: ErrEmptyTile}
	}

	// Footprint of source in the sample space of t. All quantities are exact
	// because they are integers scaled by powers of two.
	scale := math.Ldexp(1, t.key.Depth-source.key.Depth)
	size := float64(t.resolution) * scale
	x0 := float64(source.key.LonIndex)*size - float64(t.key.LonIndex*t.resolution)
	y0 := float64((t.key.LatIndex+1)*t.resolution) - float64(source.key.LatIndex+1)*size

	xs := footprintSpans(x0, size, t.resolution, source.resolution)
	ys := footprintSpans(y0, size, t.resolution, source.resolution)
	if len(xs) == 0 || len(ys) == 0 {
		return nil
	}
	xMin := max(0, int(math.Ceil(x0)))
	yMin := max(0, int(math.Ceil(y0)))

	if t.samples == nil {
		t.samples = make([]float64, t.resolution*t.resolution)
	}
	samples := t.samples
	if t == source {
		samples = make([]float64, len(t.samples))
		copy(samples, t.samples)
	}

	for j, ySpan := range ys {
		y := yMin + j
		for i, xSpan := range xs {
			x := xMin + i
			var sum float64
			for sy := ySpan.lo; sy < ySpan.hi; sy++ {
				row := source.samples[sy*source.resolution : (sy+1)*source.resolution]
				for sx := xSpan.lo; sx < xSpan.hi; sx++ {
					sum += row[sx]
				}
			}
			samples[y*t.resolution+x] = sum / float64((ySpan.hi-ySpan.lo)*(xSpan.hi-xSpan.lo))
		}
	}

	if t == source {
		t.samples = samples
	}
	return nil
}

// footprintSpans returns, for each destination sample covered by a footprint
// starting at offset with the given size, the span of source samples that
// contribute to it.
func footprintSpans(offset, size float64, destResolution, sourceResolution int) []span {
	lo := max(0, int(math.Ceil(offset)))
	hi := min(destResolution, int(math.Floor(offset+size)))
	if lo >= hi {
		return nil
	}
	ratio := float64(sourceResolution) / size
	spans := make([]span, 0, hi-lo)
	for d := lo; d < hi; d++ {
		start := (float64(d) - offset) * ratio
		var s span
		if ratio > 1 {
			s.lo = int(math.Floor(start))
			s.hi = int(math.Ceil(start + ratio))
		} else {
			s.lo = int(math.Floor(start + ratio/2))
			s.hi = s.lo + 1
		}
		s.lo = clamp(s.lo, 0, sourceResolution-1)
		s.hi = clamp(s.hi, s.lo+1, sourceResolution)
		spans = append(spans, s)
	}
	return spans
}
