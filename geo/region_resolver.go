// Package geo resolves points to governorates and measures great-circle
// distances.
package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Dataset features whose localized name is missing fall back to this table
// before falling back to the English name.
var arabicNameMapping = map[string]string{
	"AlJizah":   "الجيزة",
	"AlMinya":   "المنيا",
	"AlQahirah": "القاهرة",
	"AlUqsur":   "الأقصر",
	"Asyut":     "أسيوط",
	"Dumyat":    "دمياط",
	"Suhaj":     "سوهاج",
}

type region struct {
	name     string
	polygons []orb.Polygon
}

// RegionResolver maps a point to the name of the region containing it.
// It is immutable after construction and safe for concurrent use.
type RegionResolver struct {
	regions []region
}

// LoadRegionResolver reads a GeoJSON FeatureCollection of region boundaries
func LoadRegionResolver(path string) (*RegionResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundary dataset: %w", err)
	}
	return ParseRegionResolver(data)
}

// ParseRegionResolver builds a resolver from raw GeoJSON
func ParseRegionResolver(data []byte) (*RegionResolver, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode boundary dataset: %w", err)
	}
	return NewRegionResolver(fc), nil
}

// NewRegionResolver keeps the dataset order; regions do not overlap so the
// first match is the only match. Features that are not polygons are skipped.
func NewRegionResolver(fc *geojson.FeatureCollection) *RegionResolver {
	r := &RegionResolver{}
	if fc == nil {
		return r
	}
	for _, f := range fc.Features {
		var polygons []orb.Polygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polygons = []orb.Polygon{g}
		case orb.MultiPolygon:
			polygons = []orb.Polygon(g)
		default:
			continue
		}
		r.regions = append(r.regions, region{
			name:     featureName(f.Properties),
			polygons: polygons,
		})
	}
	return r
}

func featureName(props geojson.Properties) string {
	name := props.MustString("NAME_1", "")
	localized := props.MustString("NL_NAME_1", "")
	if localized == "" || localized == "NA" {
		if mapped, ok := arabicNameMapping[name]; ok {
			return mapped
		}
		return name
	}
	return localized
}

// Resolve returns the name of the region containing (lon, lat)
func (r *RegionResolver) Resolve(lon, lat float64) (string, bool) {
	if r == nil {
		return "", false
	}
	p := orb.Point{lon, lat}
	for _, reg := range r.regions {
		for _, poly := range reg.polygons {
			if polygonContains(poly, p) {
				return reg.name, true
			}
		}
	}
	return "", false
}

// Names lists region names in dataset order
func (r *RegionResolver) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.regions))
	for _, reg := range r.regions {
		names = append(names, reg.name)
	}
	return names
}

// Len is the number of loaded regions
func (r *RegionResolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.regions)
}
