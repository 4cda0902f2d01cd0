// Package demography converts raw per-community demographic counts into
// percentage shares.
package demography

import (
	"math"

	"github.com/chiffordable/chiffordable/internal/model"
)

// Normalize derives percentage shares from a community's raw age and race
// counts. The two category totals are summed independently: they come from
// different upstream aggregate fields and may diverge slightly under census
// suppression.
//
// When a category total is zero every share in that category is nil —
// zero-population is "unavailable", never 0.0. Shares are rounded to one
// decimal place; census rounding drift means a category sums to 100 only
// within a small tolerance, and no renormalization is attempted.
// Median rent passes through unchanged, nil included.
func Normalize(c model.Community) model.NormalizedCommunity {
	n := model.NormalizedCommunity{Community: c}

	var ageTotal float64
	for _, b := range model.AgeBucketOrder {
		ageTotal += c.AgeBuckets[b]
	}
	n.AgeShares = make(map[model.AgeBucket]*float64, len(model.AgeBucketOrder))
	for _, b := range model.AgeBucketOrder {
		n.AgeShares[b] = share(c.AgeBuckets[b], ageTotal)
	}

	var raceTotal float64
	for _, r := range model.RaceCategoryOrder {
		raceTotal += c.RaceBuckets[r]
	}
	n.RaceShares = make(map[model.RaceCategory]*float64, len(model.RaceCategoryOrder))
	for _, r := range model.RaceCategoryOrder {
		n.RaceShares[r] = share(c.RaceBuckets[r], raceTotal)
	}

	return n
}

// NormalizeAll maps Normalize over a community slice, preserving order.
func NormalizeAll(communities []model.Community) []model.NormalizedCommunity {
	out := make([]model.NormalizedCommunity, 0, len(communities))
	for _, c := range communities {
		out = append(out, Normalize(c))
	}
	return out
}

func share(count, total float64) *float64 {
	if total == 0 {
		return nil
	}
	v := math.Round(count/total*1000) / 10
	return &v
}
