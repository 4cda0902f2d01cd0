package geoindex

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zipTableCSV = `zip,geometry
60601,"POLYGON ((-87.64 41.86, -87.61 41.86, -87.61 41.89, -87.64 41.89, -87.64 41.86))"
99999,"POLYGON ((10 10, 11 10, 11 11, 10 11, 10 10))"
601,"POLYGON ((-87.60 41.77, -87.58 41.77, -87.58 41.79, -87.60 41.79, -87.60 41.77))"
60602,not-wkt
`

func TestBuildZipLocator(t *testing.T) {
	ix := buildTestIndex(t)

	loc, err := BuildZipLocator(context.Background(), strings.NewReader(zipTableCSV), ix)
	require.NoError(t, err)

	// Zip square centered downtown resolves to The Loop
	got := loc.CommunityForZip("60601")
	require.NotNil(t, got)
	assert.Equal(t, "The Loop", got.Name)

	// Zip polygon outside every community: known zip, no association
	assert.Nil(t, loc.CommunityForZip("99999"))

	// Short zip is zero-padded on build and lookup
	got = loc.CommunityForZip("601")
	require.NotNil(t, got)
	assert.Equal(t, "Woodlawn", got.Name)
	assert.Equal(t, got, loc.CommunityForZip("00601"))

	// Malformed geometry row was skipped
	assert.Nil(t, loc.CommunityForZip("60602"))

	// Unknown zip
	assert.Nil(t, loc.CommunityForZip("60699"))
}

func TestRepresentativePoint(t *testing.T) {
	poly := squarePoly(0, 0, 2, 4)
	lon, lat := representativePoint(poly)
	assert.InDelta(t, 1.0, lon, 0.001)
	assert.InDelta(t, 2.0, lat, 0.001)
}
