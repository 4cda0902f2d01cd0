package communities

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/chiffordable/chiffordable/internal/fetcher"
)

const snapshotJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-87.65, 41.85], [-87.60, 41.85], [-87.60, 41.90], [-87.65, 41.90], [-87.65, 41.85]]]
      },
      "properties": {"GEOID": "32", "GEOG": "The Loop", "TOT_POP": 42298}
    }
  ]
}`

func TestFeatureCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, snapshotJSON)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(fetcher.New(fetcher.Options{MaxRetries: 1}), srv.URL)
	fc, err := c.FeatureCollection(context.Background())
	require.NoError(t, err)

	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "The Loop", f.Properties["GEOG"])
	poly, ok := f.Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
}

func TestFeatureCollectionBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not geojson")
	}))
	t.Cleanup(srv.Close)

	c := NewClient(fetcher.New(fetcher.Options{MaxRetries: 1}), srv.URL)
	_, err := c.FeatureCollection(context.Background())
	assert.Error(t, err)
}

func TestFeatureCollectionFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(fetcher.New(fetcher.Options{MaxRetries: 1}), srv.URL)
	_, err := c.FeatureCollection(context.Background())
	assert.Error(t, err)
}
