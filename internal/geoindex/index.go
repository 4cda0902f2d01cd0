// Package geoindex builds and queries the community polygon index.
//
// Every indexed record holds a single simple polygon: multi-polygon source
// features are split into one record per part so containment can be tested
// polygon-by-polygon. Queries are linear scans, which is fine at this data
// scale (under 100 polygons); the Index type hides the scan so a spatial
// grid could be swapped in behind the same interface.
package geoindex

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"

	"github.com/chiffordable/chiffordable/internal/model"
)

// Property names expected in each community feature's properties bag.
const (
	propID         = "GEOID"
	propName       = "GEOG"
	propPopulation = "TOT_POP"
	propMedianRent = "MED_RENT"
)

// Index answers point-containment and name-lookup queries over community
// polygons. Immutable after Build.
type Index struct {
	communities []model.Community
}

// Build consumes a community feature collection and returns an index with
// one record per simple polygon. A multi-polygon feature with k parts emits
// k records sharing the feature's name and demographics but carrying
// distinct id suffixes and geometries.
//
// Features with malformed or unsupported geometry are logged and skipped;
// a polygon is never indexed with nil geometry.
func Build(fc *geojson.FeatureCollection) (*Index, error) {
	if fc == nil {
		return nil, eris.New("geoindex: nil feature collection")
	}
	log := zap.L().With(zap.String("component", "geoindex"))

	var communities []model.Community
	for _, f := range fc.Features {
		base, err := communityFromProperties(f.Properties)
		if err != nil {
			log.Warn("skipping feature with malformed properties", zap.Error(err))
			continue
		}

		polys, err := splitPolygons(f.Geometry)
		if err != nil {
			log.Warn("skipping feature with malformed geometry",
				zap.String("community", base.Name),
				zap.Error(err),
			)
			continue
		}

		if len(polys) == 1 {
			c := base
			c.Geometry = polys[0]
			communities = append(communities, c)
			continue
		}
		for i, p := range polys {
			c := base
			c.ID = fmt.Sprintf("%s-%d", base.ID, i+1)
			c.Geometry = p
			communities = append(communities, c)
		}
	}

	if len(communities) == 0 {
		return nil, eris.New("geoindex: no valid community polygons in feature collection")
	}

	log.Info("community index built",
		zap.Int("features", len(fc.Features)),
		zap.Int("polygons", len(communities)),
	)
	return &Index{communities: communities}, nil
}

// NewIndex wraps pre-built community records. Records with nil geometry are
// rejected. Intended for reloading a dataset snapshot.
func NewIndex(communities []model.Community) (*Index, error) {
	for _, c := range communities {
		if c.Geometry == nil {
			return nil, eris.Errorf("geoindex: community %q has nil geometry", c.Name)
		}
	}
	return &Index{communities: communities}, nil
}

// Communities returns the indexed records in index order.
func (ix *Index) Communities() []model.Community {
	return ix.communities
}

// FindByPoint returns the first community whose polygon contains the given
// point, boundary included, or nil when no polygon contains it. The
// geometric convention is longitude-first: the point tested is (lon, lat).
//
// If polygons overlap (invalid input) the first match in index order wins;
// this is iteration order, not a spatial arbitration.
func (ix *Index) FindByPoint(lat, lon float64) *model.Community {
	p := geom.Coord{lon, lat}
	for i := range ix.communities {
		if polygonContains(ix.communities[i].Geometry, p) {
			return &ix.communities[i]
		}
	}
	return nil
}

// FindByName returns the community with the exact, case-sensitive name, or
// nil when absent. Split multi-polygon parts share a name; the first part
// in index order is returned.
func (ix *Index) FindByName(name string) *model.Community {
	for i := range ix.communities {
		if ix.communities[i].Name == name {
			return &ix.communities[i]
		}
	}
	return nil
}

// polygonContains reports boundary-inclusive containment of p in poly.
// A point strictly inside an interior ring (a hole) is not contained.
func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly == nil || poly.NumLinearRings() == 0 {
		return false
	}
	exterior := poly.LinearRing(0)
	if !xy.IsPointInRing(poly.Layout(), p, exterior.FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		hole := poly.LinearRing(i)
		if xy.LocatePointInRing(poly.Layout(), p, hole.FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

// splitPolygons flattens a geometry into its simple polygon parts.
func splitPolygons(g geom.T) ([]*geom.Polygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, eris.New("geoindex: polygon has no rings")
		}
		return []*geom.Polygon{t}, nil
	case *geom.MultiPolygon:
		n := t.NumPolygons()
		if n == 0 {
			return nil, eris.New("geoindex: multi-polygon has no parts")
		}
		polys := make([]*geom.Polygon, 0, n)
		for i := 0; i < n; i++ {
			p := t.Polygon(i)
			if p.NumLinearRings() == 0 {
				return nil, eris.Errorf("geoindex: multi-polygon part %d has no rings", i)
			}
			polys = append(polys, p)
		}
		return polys, nil
	case nil:
		return nil, eris.New("geoindex: feature has no geometry")
	default:
		return nil, eris.Errorf("geoindex: unsupported geometry type %T", g)
	}
}

// communityFromProperties maps the snapshot API properties bag onto a
// Community record (geometry attached by the caller).
func communityFromProperties(props map[string]any) (model.Community, error) {
	var c model.Community

	id, err := stringProp(props, propID)
	if err != nil {
		return c, err
	}
	name, err := stringProp(props, propName)
	if err != nil {
		return c, err
	}

	c.ID = id
	c.Name = name

	pop, err := numericProp(props, propPopulation)
	if err != nil {
		return c, err
	}
	c.PopulationTotal = pop

	c.AgeBuckets = make(map[model.AgeBucket]float64, len(model.AgeBucketOrder))
	for _, b := range model.AgeBucketOrder {
		v, err := numericProp(props, string(b))
		if err != nil {
			return c, err
		}
		c.AgeBuckets[b] = v
	}

	c.RaceBuckets = make(map[model.RaceCategory]float64, len(model.RaceCategoryOrder))
	for _, r := range model.RaceCategoryOrder {
		v, err := numericProp(props, string(r))
		if err != nil {
			return c, err
		}
		c.RaceBuckets[r] = v
	}

	// Median rent is optional upstream: absent or null stays nil, never 0.
	if raw, ok := props[propMedianRent]; ok && raw != nil {
		rent, err := numericProp(props, propMedianRent)
		if err != nil {
			return c, err
		}
		c.MedianRent = &rent
	}

	return c, nil
}

func stringProp(props map[string]any, key string) (string, error) {
	raw, ok := props[key]
	if !ok {
		return "", eris.Errorf("geoindex: missing property %q", key)
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	default:
		return "", eris.Errorf("geoindex: property %q has unexpected type %T", key, raw)
	}
}

func numericProp(props map[string]any, key string) (float64, error) {
	raw, ok := props[key]
	if !ok {
		return 0, eris.Errorf("geoindex: missing property %q", key)
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, eris.Errorf("geoindex: property %q has unexpected type %T", key, raw)
	}
	return v, nil
}
