package geoindex

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// EncodeWKT serializes a simple polygon to well-known text. This is the
// geometry column format of the communities dataset file.
func EncodeWKT(p *geom.Polygon) (string, error) {
	if p == nil {
		return "", eris.New("geoindex: encode nil polygon")
	}
	s, err := wkt.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "geoindex: marshal WKT")
	}
	return s, nil
}

// DecodeWKT parses a well-known text polygon. A MULTIPOLYGON with exactly
// one part is accepted and unwrapped; anything else that is not a simple
// polygon is an error, because indexed records are always single polygons.
func DecodeWKT(s string) (*geom.Polygon, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "geoindex: parse WKT")
	}
	switch t := g.(type) {
	case *geom.Polygon:
		return t, nil
	case *geom.MultiPolygon:
		if t.NumPolygons() == 1 {
			return t.Polygon(0), nil
		}
		return nil, eris.Errorf("geoindex: expected simple polygon, got %d-part multi-polygon", t.NumPolygons())
	default:
		return nil, eris.Errorf("geoindex: expected polygon WKT, got %T", g)
	}
}
