package geoindex

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/chiffordable/chiffordable/internal/fetcher"
	"github.com/chiffordable/chiffordable/internal/model"
)

// ZipLocator associates zip codes with the community containing the zip
// polygon's representative point. Built from an auxiliary zip-to-polygon
// CSV table (zip code column + WKT geometry column).
type ZipLocator struct {
	byZip map[string]*model.Community
}

// BuildZipLocator reads the zip polygon table and resolves each zip against
// the community index. Rows with an unparseable geometry are logged and
// skipped; zips whose representative point falls in no community are
// recorded with no association rather than dropped.
func BuildZipLocator(ctx context.Context, r io.Reader, ix *Index) (*ZipLocator, error) {
	log := zap.L().With(zap.String("component", "geoindex.ziplocator"))

	rows, errs := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})

	byZip := make(map[string]*model.Community)
	for row := range rows {
		if len(row) < 2 {
			log.Warn("skipping short zip table row", zap.Int("fields", len(row)))
			continue
		}
		zip := model.PadZip(row[0])
		poly, err := DecodeWKT(row[1])
		if err != nil || poly.NumLinearRings() == 0 {
			log.Warn("skipping zip with malformed geometry",
				zap.String("zip", zip),
				zap.Error(err),
			)
			continue
		}
		lon, lat := representativePoint(poly)
		byZip[zip] = ix.FindByPoint(lat, lon)
	}
	if err := <-errs; err != nil {
		return nil, eris.Wrap(err, "geoindex: read zip table")
	}

	log.Info("zip locator built", zap.Int("zips", len(byZip)))
	return &ZipLocator{byZip: byZip}, nil
}

// CommunityForZip returns the community associated with a zip code, or nil
// when the zip is unknown or falls outside every community polygon.
func (z *ZipLocator) CommunityForZip(zip string) *model.Community {
	return z.byZip[model.PadZip(zip)]
}

// representativePoint returns the vertex average of the exterior ring.
// Good enough for the compact, near-convex zip polygons in this dataset.
func representativePoint(poly *geom.Polygon) (lon, lat float64) {
	ring := poly.LinearRing(0)
	flat := ring.FlatCoords()
	stride := ring.Stride()
	n := len(flat) / stride
	if n > 1 {
		// The closing vertex repeats the first; leave it out of the average.
		n--
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += flat[i*stride]
		sumY += flat[i*stride+1]
	}
	return sumX / float64(n), sumY / float64(n)
}
