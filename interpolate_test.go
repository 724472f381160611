package elevationmap_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-elevationmap"
)

func TestSampleBilinear(t *testing.T) {
	simpleTile, err := elevationmap.NewTileWithSamples(elevationmap.TileKey{}, 3, []float64{
		0, 1, 2,
		2, 3, 4,
		4, 5, 6,
	})
	assert.NoError(t, err)
	for _, tc := range []struct {
		tile     *elevationmap.Tile
		latLons  []elevationmap.LatLon
		expected []float64
	}{
		{
			tile: simpleTile,
			latLons: []elevationmap.LatLon{
				{Lat: 90, Lon: -180},
				{Lat: 90, Lon: -120},
				{Lat: 30, Lon: -180},
				{Lat: 30, Lon: -120},
				{Lat: 60, Lon: -150},
				{Lat: 90, Lon: -150},
				{Lat: 60, Lon: -180},
				{Lat: 60, Lon: -120},
				{Lat: 30, Lon: -150},
				{Lat: -30, Lon: -60},
				{Lat: -60, Lon: -30},
			},
			expected: []float64{
				0,
				1,
				2,
				3,
				1.5,
				0.5,
				1,
				2,
				2.5,
				6,
				6,
			},
		},
	} {
		actual := make([]float64, 0, len(tc.latLons))
		for _, latLon := range tc.latLons {
			value, err := tc.tile.SampleBilinear(latLon.Lat, latLon.Lon)
			assert.NoError(t, err)
			actual = append(actual, value)
		}
		assert.Equal(t, tc.expected, actual)
	}
}
