// Package communities fetches the community data snapshot: a GeoJSON
// feature collection carrying each community's boundary and demographic
// fields.
package communities

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/chiffordable/chiffordable/internal/fetcher"
)

// Client fetches the community feature collection.
type Client struct {
	fetcher *fetcher.Client
	url     string
}

// NewClient creates a Client for the configured snapshot query URL.
func NewClient(f *fetcher.Client, url string) *Client {
	return &Client{fetcher: f, url: url}
}

// FeatureCollection fetches and decodes the snapshot. Decoding failures are
// build-fatal: without boundaries there is no dataset to assemble.
func (c *Client) FeatureCollection(ctx context.Context) (*geojson.FeatureCollection, error) {
	body, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		return nil, eris.Wrap(err, "communities: fetch snapshot")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(body); err != nil {
		return nil, eris.Wrap(err, "communities: decode feature collection")
	}

	zap.L().Info("community snapshot fetched", zap.Int("features", len(fc.Features)))
	return &fc, nil
}
