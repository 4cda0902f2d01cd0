package listings

import (
	"github.com/chiffordable/chiffordable/internal/model"
)

// PricedUnit is one offerable price point resolved from a raw unit. A unit
// advertising a price range contributes two PricedUnits, one per endpoint.
type PricedUnit struct {
	Price      float64
	Bedrooms   *float64
	Bathrooms  *float64
	LivingArea *float64
}

// ExtractUnits returns the unit entries of a detail payload. The upstream
// stores them under floorPlans or, failing that, ungroupedUnits; the two
// keys are equivalent schema shapes tried in that fixed order. A payload
// with neither yields an empty slice, not an error.
func ExtractUnits(payload *DetailPayload) []RawUnit {
	if payload == nil {
		return nil
	}
	if len(payload.FloorPlans) > 0 {
		return payload.FloorPlans
	}
	return payload.UngroupedUnits
}

// UnitsToPrices resolves each unit's effective price bounds and expands
// ranges into per-endpoint price points.
//
// A single price field fills whichever bounds are absent; a present bound
// fills its missing counterpart. A unit with no resolved bound at all
// carries no price signal and is skipped entirely — it must not surface as
// a zero-priced record. Units of a non-rental listing type are excluded;
// an unspecified type is treated as rental.
//
// A range (min != max) emits two PricedUnits, max endpoint first; a
// degenerate range emits one.
func UnitsToPrices(units []RawUnit) []PricedUnit {
	var out []PricedUnit
	for _, u := range units {
		if u.ListingType != "" && model.ParseListingStatus(u.ListingType) != model.StatusForRent {
			continue
		}

		minPrice, maxPrice := u.MinPrice, u.MaxPrice
		if u.Price != nil {
			if minPrice == nil {
				minPrice = u.Price
			}
			if maxPrice == nil {
				maxPrice = u.Price
			}
		}
		if minPrice == nil {
			minPrice = maxPrice
		}
		if maxPrice == nil {
			maxPrice = minPrice
		}
		if minPrice == nil {
			continue
		}

		if *minPrice != *maxPrice {
			out = append(out, PricedUnit{
				Price:      *maxPrice,
				Bedrooms:   u.Bedrooms,
				Bathrooms:  u.Bathrooms,
				LivingArea: u.Sqft,
			})
		}
		out = append(out, PricedUnit{
			Price:      *minPrice,
			Bedrooms:   u.Bedrooms,
			Bathrooms:  u.Bathrooms,
			LivingArea: u.Sqft,
		})
	}
	return out
}

// Combine expands a parent listing into one child Listing per priced unit.
// Children inherit the parent's address, detail URL, status, zip code,
// coordinates, and listing key; price, bedrooms, bathrooms, and living
// area come from the unit. Feeding the same parent and units through twice
// is caught by the run-level dedup key, not by state here.
func Combine(parent model.Listing, units []PricedUnit) []model.Listing {
	out := make([]model.Listing, 0, len(units))
	for _, u := range units {
		child := parent
		price := u.Price
		child.Price = &price
		child.Bedrooms = u.Bedrooms
		child.Bathrooms = u.Bathrooms
		child.LivingArea = u.LivingArea
		out = append(out, child)
	}
	return out
}
