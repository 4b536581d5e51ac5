package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *RegionResolver {
	t.Helper()
	r, err := LoadRegionResolver("testdata/regions.geojson")
	require.NoError(t, err)
	return r
}

func TestResolveInsidePolygons(t *testing.T) {
	r := loadFixture(t)

	cases := []struct {
		name     string
		lon, lat float64
		want     string
	}{
		{"alpha interior", 1, 1, "ألفا"},
		{"alpha near far corner", 9.5, 9.5, "ألفا"},
		{"mapped name first polygon", 21, 1, "الجيزة"},
		{"mapped name second polygon", 31, 1.5, "الجيزة"},
		{"english fallback", 11, 5, "Beta"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := r.Resolve(tc.lon, tc.lat)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveOutside(t *testing.T) {
	r := loadFixture(t)

	for _, p := range [][2]float64{{-50, -50}, {25, 1}, {5, 5}, {14, 9}, {50, 50}} {
		_, ok := r.Resolve(p[0], p[1])
		assert.False(t, ok, "point %v", p)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	r := loadFixture(t)
	first, _ := r.Resolve(2, 3)
	for i := 0; i < 100; i++ {
		got, _ := r.Resolve(2, 3)
		require.Equal(t, first, got)
	}
}

func TestNonPolygonFeaturesSkipped(t *testing.T) {
	r := loadFixture(t)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"ألفا", "الجيزة", "Beta"}, r.Names())
}

func TestNilAndEmptyResolver(t *testing.T) {
	var r *RegionResolver
	_, ok := r.Resolve(1, 1)
	assert.False(t, ok)

	empty := NewRegionResolver(nil)
	_, ok = empty.Resolve(1, 1)
	assert.False(t, ok)
	assert.Empty(t, empty.Names())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseRegionResolver([]byte("not json"))
	assert.Error(t, err)

	_, err = LoadRegionResolver("testdata/missing.geojson")
	assert.Error(t, err)
}

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 0, DistanceKm(31.2, 30.0, 31.2, 30.0), 1e-9)
	// One degree of latitude is roughly 111 km.
	assert.InDelta(t, 111.2, DistanceKm(31.2, 30.0, 31.2, 31.0), 0.5)
}
