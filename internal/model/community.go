// Package model defines the entity types shared across the pipeline:
// community polygons, rental listings, and livability score sets.
package model

import (
	"github.com/twpayne/go-geom"
)

// AgeBucket identifies one age range column from the community snapshot data.
type AgeBucket string

// Age buckets as published by the community data snapshot API.
const (
	AgeUnder5 AgeBucket = "UND5"
	Age5to19  AgeBucket = "A5_19"
	Age20to34 AgeBucket = "A20_34"
	Age35to49 AgeBucket = "A35_49"
	Age50to64 AgeBucket = "A50_64"
	Age65to74 AgeBucket = "A65_74"
	Age75to84 AgeBucket = "A75_84"
	AgeOver85 AgeBucket = "OV85"
)

// AgeBucketOrder is the canonical column order for age buckets.
var AgeBucketOrder = []AgeBucket{
	AgeUnder5, Age5to19, Age20to34, Age35to49,
	Age50to64, Age65to74, Age75to84, AgeOver85,
}

// RaceCategory identifies one racial composition column.
type RaceCategory string

// Race categories as published by the community data snapshot API.
const (
	RaceWhite    RaceCategory = "WHITE"
	RaceHispanic RaceCategory = "HISP"
	RaceBlack    RaceCategory = "BLACK"
	RaceAsian    RaceCategory = "ASIAN"
	RaceOther    RaceCategory = "OTHER"
)

// RaceCategoryOrder is the canonical column order for race categories.
var RaceCategoryOrder = []RaceCategory{
	RaceWhite, RaceHispanic, RaceBlack, RaceAsian, RaceOther,
}

// Community is one simple community polygon with its raw demographic counts.
// A source multi-polygon is split into one Community per part before it
// reaches this type; Geometry is never a multi-polygon.
type Community struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Geometry        *geom.Polygon `json:"-"`
	PopulationTotal float64       `json:"population_total"`
	AgeBuckets      map[AgeBucket]float64
	RaceBuckets     map[RaceCategory]float64
	MedianRent      *float64 `json:"median_rent,omitempty"`
}

// NormalizedCommunity is a Community plus percentage shares derived from its
// raw counts. Shares are nil when the corresponding population total is zero;
// a nil share means "unavailable", which is distinct from 0.0.
type NormalizedCommunity struct {
	Community
	AgeShares  map[AgeBucket]*float64
	RaceShares map[RaceCategory]*float64
}

// Float64Ptr returns a pointer to v. Convenience for building fixtures and
// optional fields.
func Float64Ptr(v float64) *float64 { return &v }
