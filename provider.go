package elevationmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-proj/v10"
)

// Provider names.
const (
	TilesProviderName = "TILES"
	ZeroProviderName  = "ZERO"
)

// An ElevationProvider answers elevation queries. Points are orb.Points, so
// longitude comes first. Providers over a projected coordinate reference
// system read lat as northing and lon as easting.
type ElevationProvider interface {
	Elevation(ctx context.Context, lat, lon float64) (float64, error)
	Elevations(ctx context.Context, points []orb.Point) ([]float64, error)
	ProviderName() string
}

// An Interpolation selects how a TileProvider samples a tile.
type Interpolation int

const (
	InterpolationNearest Interpolation = iota
	InterpolationBilinear
)

var (
	_ ElevationProvider = &TileProvider{}
	_ ElevationProvider = &ProjectedProvider{}
)

// A TileProvider is an ElevationProvider backed by a TileStore.
type TileProvider struct {
	store         *TileStore
	interpolation Interpolation
}

// A TileProviderOption sets an option on a TileProvider.
type TileProviderOption func(*TileProvider)

// NewTileProvider returns a new TileProvider backed by store.
func NewTileProvider(store *TileStore, options ...TileProviderOption) *TileProvider {
	p := &TileProvider{
		store: store,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// WithInterpolation sets the interpolation used to sample tiles.
func WithInterpolation(interpolation Interpolation) TileProviderOption {
	return func(p *TileProvider) {
		p.interpolation = interpolation
	}
}

// Elevation returns the elevation at lat, lon.
func (p *TileProvider) Elevation(ctx context.Context, lat, lon float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.interpolation == InterpolationNearest || p.store.IsZero() {
		return p.store.Elevation(lat, lon)
	}
	tile, err := p.store.Fetch(lat, lon, p.store.MaximumDepth())
	switch {
	case errors.Is(err, ErrNotFound):
		return 0, fmt.Errorf("%w: %g, %g", ErrNoData, lat, lon)
	case err != nil:
		return 0, err
	}
	return tile.SampleBilinear(lat, lon)
}

// Elevations returns the elevations at points, in the same order.
func (p *TileProvider) Elevations(ctx context.Context, points []orb.Point) ([]float64, error) {
	elevations := make([]float64, len(points))
	for i, point := range points {
		elevation, err := p.Elevation(ctx, point.Lat(), point.Lon())
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		elevations[i] = elevation
	}
	return elevations, nil
}

// ProviderName returns p's name.
func (p *TileProvider) ProviderName() string {
	if p.store.IsZero() {
		return ZeroProviderName
	}
	return TilesProviderName
}

// NewZeroProvider returns an ElevationProvider that answers zero everywhere.
func NewZeroProvider() *TileProvider {
	return NewTileProvider(NewZeroTileStore())
}

// A ProjectedProvider is an ElevationProvider that accepts coordinates in a
// projected coordinate reference system.
type ProjectedProvider struct {
	provider ElevationProvider
	pj       *proj.PJ
}

// NewProjectedProvider returns a new ProjectedProvider that transforms
// coordinates from sourceCRS, for example "epsg:3035", to longitude and
// latitude before querying provider. Coordinates are always easting first.
func NewProjectedProvider(provider ElevationProvider, sourceCRS string) (*ProjectedProvider, error) {
	pj, err := proj.NewCRSToCRS(sourceCRS, "epsg:4326", nil)
	if err != nil {
		return nil, err
	}
	normalizedPJ, err := pj.NormalizeForVisualization()
	if err != nil {
		return nil, err
	}
	return &ProjectedProvider{
		provider: provider,
		pj:       normalizedPJ,
	}, nil
}

// Elevation returns the elevation at northing y, easting x. The argument order
// follows ElevationProvider's lat, lon.
func (p *ProjectedProvider) Elevation(ctx context.Context, y, x float64) (float64, error) {
	elevations, err := p.Elevations(ctx, []orb.Point{{x, y}})
	if err != nil {
		return 0, err
	}
	return elevations[0], nil
}

// Elevations returns the elevations at points, given as easting, northing.
func (p *ProjectedProvider) Elevations(ctx context.Context, points []orb.Point) ([]float64, error) {
	coords := make([][]float64, len(points))
	for i, point := range points {
		coords[i] = []float64{point.X(), point.Y()}
	}
	if err := p.pj.ForwardFloat64Slices(coords); err != nil {
		return nil, err
	}
	lonLats := make([]orb.Point, len(coords))
	for i, coord := range coords {
		lonLats[i] = orb.Point{coord[0], coord[1]}
	}
	return p.provider.Elevations(ctx, lonLats)
}

// ProviderName returns the name of the underlying provider.
func (p *ProjectedProvider) ProviderName() string {
	return p.provider.ProviderName()
}
