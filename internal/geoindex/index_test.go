package geoindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/chiffordable/chiffordable/internal/model"
)

// squarePoly builds an axis-aligned square polygon in (lon, lat) order.
func squarePoly(minLon, minLat, maxLon, maxLat float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}})
}

func communityProps(id, name string, pop float64, rent *float64) map[string]any {
	props := map[string]any{
		"GEOID":   id,
		"GEOG":    name,
		"TOT_POP": pop,
	}
	for i, b := range model.AgeBucketOrder {
		props[string(b)] = float64(100 + i)
	}
	for i, r := range model.RaceCategoryOrder {
		props[string(r)] = float64(200 + i)
	}
	if rent != nil {
		props["MED_RENT"] = *rent
	}
	return props
}

// loopFixture is a square around downtown: it contains (41.883717, -87.62866).
func loopFixture() *geom.Polygon {
	return squarePoly(-87.65, 41.85, -87.60, 41.90)
}

func woodlawnFixture() *geom.Polygon {
	return squarePoly(-87.62, 41.76, -87.57, 41.80)
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		{Geometry: loopFixture(), Properties: communityProps("32", "The Loop", 42298, model.Float64Ptr(1800))},
		{Geometry: woodlawnFixture(), Properties: communityProps("42", "Woodlawn", 24425, nil)},
	}}
	ix, err := Build(fc)
	require.NoError(t, err)
	return ix
}

func TestBuildSplitsMultiPolygons(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(squarePoly(0, 0, 1, 1)))
	require.NoError(t, mp.Push(squarePoly(2, 2, 3, 3)))

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		{Geometry: mp, Properties: communityProps("75", "Morgan Park", 21186, nil)},
	}}

	ix, err := Build(fc)
	require.NoError(t, err)

	comms := ix.Communities()
	require.Len(t, comms, 2)
	assert.Equal(t, "75-1", comms[0].ID)
	assert.Equal(t, "75-2", comms[1].ID)
	// Parts share name and demographics
	assert.Equal(t, "Morgan Park", comms[0].Name)
	assert.Equal(t, "Morgan Park", comms[1].Name)
	assert.Equal(t, comms[0].PopulationTotal, comms[1].PopulationTotal)
	// Each part carries its own geometry
	assert.NotEqual(t, comms[0].Geometry.FlatCoords(), comms[1].Geometry.FlatCoords())
}

func TestBuildSkipsMalformedFeatures(t *testing.T) {
	bad := communityProps("99", "Broken", 100, nil)
	delete(bad, "GEOG")

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		{Geometry: loopFixture(), Properties: communityProps("32", "The Loop", 42298, nil)},
		{Geometry: loopFixture(), Properties: bad},
		{Geometry: nil, Properties: communityProps("98", "No Geometry", 100, nil)},
	}}

	ix, err := Build(fc)
	require.NoError(t, err)
	assert.Len(t, ix.Communities(), 1)
}

func TestBuildEmptyCollection(t *testing.T) {
	_, err := Build(&geojson.FeatureCollection{})
	assert.Error(t, err)

	_, err = Build(nil)
	assert.Error(t, err)
}

func TestFindByPoint(t *testing.T) {
	ix := buildTestIndex(t)

	// Downtown point falls in The Loop
	got := ix.FindByPoint(41.883717, -87.62866)
	require.NotNil(t, got)
	assert.Equal(t, "The Loop", got.Name)

	// Far outside every polygon
	assert.Nil(t, ix.FindByPoint(21.87, -102.30))

	// Boundary is inclusive: exact corner vertex
	got = ix.FindByPoint(41.85, -87.65)
	require.NotNil(t, got)
	assert.Equal(t, "The Loop", got.Name)
}

func TestFindByPointSkipsHoles(t *testing.T) {
	donut := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	})
	ix, err := NewIndex([]model.Community{{ID: "1", Name: "Donut", Geometry: donut}})
	require.NoError(t, err)

	// Inside the shell, outside the hole
	assert.NotNil(t, ix.FindByPoint(2, 2))
	// Strictly inside the hole
	assert.Nil(t, ix.FindByPoint(5, 5))
}

func TestFindByName(t *testing.T) {
	ix := buildTestIndex(t)

	got := ix.FindByName("Woodlawn")
	require.NotNil(t, got)
	assert.Equal(t, "42", got.ID)
	assert.Nil(t, got.MedianRent)

	// Exact and case-sensitive
	assert.Nil(t, ix.FindByName("woodlawn"))
	assert.Nil(t, ix.FindByName("Woodlawn "))
	assert.Nil(t, ix.FindByName("Hyde Park"))
}

func TestBuildReadsDemographics(t *testing.T) {
	ix := buildTestIndex(t)

	loop := ix.FindByName("The Loop")
	require.NotNil(t, loop)
	assert.Equal(t, 42298.0, loop.PopulationTotal)
	require.NotNil(t, loop.MedianRent)
	assert.Equal(t, 1800.0, *loop.MedianRent)
	assert.Equal(t, 100.0, loop.AgeBuckets[model.AgeUnder5])
	assert.Equal(t, 107.0, loop.AgeBuckets[model.AgeOver85])
	assert.Equal(t, 200.0, loop.RaceBuckets[model.RaceWhite])
	assert.Equal(t, 204.0, loop.RaceBuckets[model.RaceOther])
}

func TestNewIndexRejectsNilGeometry(t *testing.T) {
	_, err := NewIndex([]model.Community{{ID: "1", Name: "No Shape"}})
	assert.Error(t, err)
}
