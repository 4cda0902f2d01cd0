package geoindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWKTRoundTrip(t *testing.T) {
	poly := squarePoly(-87.65, 41.85, -87.60, 41.90)

	s, err := EncodeWKT(poly)
	require.NoError(t, err)
	assert.Contains(t, s, "POLYGON")

	got, err := DecodeWKT(s)
	require.NoError(t, err)
	assert.Equal(t, poly.FlatCoords(), got.FlatCoords())
}

func TestEncodeWKTNil(t *testing.T) {
	_, err := EncodeWKT(nil)
	assert.Error(t, err)
}

func TestDecodeWKTUnwrapsSinglePartMultiPolygon(t *testing.T) {
	got, err := DecodeWKT("MULTIPOLYGON (((0 0, 1 0, 1 1, 0 1, 0 0)))")
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumLinearRings())
}

func TestDecodeWKTRejects(t *testing.T) {
	_, err := DecodeWKT("MULTIPOLYGON (((0 0, 1 0, 1 1, 0 0)), ((2 2, 3 2, 3 3, 2 2)))")
	assert.Error(t, err)

	_, err = DecodeWKT("POINT (1 2)")
	assert.Error(t, err)

	_, err = DecodeWKT("not wkt at all")
	assert.Error(t, err)
}
