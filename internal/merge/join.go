// Package merge assembles the denormalized affordability view: communities
// joined with listings by point containment and with livability scores by
// zip code.
package merge

import (
	"github.com/rotisserie/eris"

	"github.com/chiffordable/chiffordable/internal/geoindex"
	"github.com/chiffordable/chiffordable/internal/model"
)

// Snapshot is the immutable dataset a serving process works from, built
// once by an explicit load step and passed to query functions — never held
// in package-level state.
type Snapshot struct {
	Communities []model.NormalizedCommunity
	Listings    []model.Listing
	Livability  map[string]model.LivabilityScores
	Index       *geoindex.Index
}

// NewSnapshot assembles a Snapshot and its community index.
func NewSnapshot(communities []model.NormalizedCommunity, listings []model.Listing, livability []model.LivabilityScores) (*Snapshot, error) {
	raw := make([]model.Community, 0, len(communities))
	for _, c := range communities {
		raw = append(raw, c.Community)
	}
	ix, err := geoindex.NewIndex(raw)
	if err != nil {
		return nil, eris.Wrap(err, "merge: build snapshot index")
	}

	byZip := make(map[string]model.LivabilityScores, len(livability))
	for _, s := range livability {
		byZip[s.ZipCode] = s
	}

	return &Snapshot{
		Communities: communities,
		Listings:    listings,
		Livability:  byZip,
		Index:       ix,
	}, nil
}

// JoinedView is the affordability-filtered subset served to the
// presentation layer.
type JoinedView struct {
	MaxRent     float64
	Communities []model.NormalizedCommunity
	Listings    []model.Listing
}

// BuildJoin filters the snapshot to the given rent threshold. A community
// with unknown median rent or a listing with unknown price fails the
// filter: unknown is never shown as affordable.
func BuildJoin(snap *Snapshot, maxRent float64) JoinedView {
	view := JoinedView{MaxRent: maxRent}
	for _, c := range snap.Communities {
		if c.MedianRent != nil && *c.MedianRent <= maxRent {
			view.Communities = append(view.Communities, c)
		}
	}
	for _, l := range snap.Listings {
		if l.Price != nil && *l.Price <= maxRent {
			view.Listings = append(view.Listings, l)
		}
	}
	return view
}

// Selection is a user pick: either a point (a map click on a listing pin or
// inside a community) or a community name.
type Selection struct {
	Latitude  float64
	Longitude float64
	Name      string
	// ByName selects name lookup; otherwise the point is used.
	ByName bool
}

// EnrichedDetail is the drill-down payload for one selection.
type EnrichedDetail struct {
	Community  *model.NormalizedCommunity
	Listing    *model.Listing
	Livability *model.LivabilityScores
}

// ResolveSelection resolves a pick against the snapshot. A point pick finds
// the containing community and, when a listing sits at exactly the picked
// coordinate, the livability scores for that listing's zip code. A name
// pick resolves the community only: no zip code is derivable from a
// community alone, a known coverage gap rather than a defect.
func ResolveSelection(snap *Snapshot, sel Selection) EnrichedDetail {
	var detail EnrichedDetail

	var community *model.Community
	if sel.ByName {
		community = snap.Index.FindByName(sel.Name)
	} else {
		community = snap.Index.FindByPoint(sel.Latitude, sel.Longitude)
		if listing := listingAt(snap.Listings, sel.Latitude, sel.Longitude); listing != nil {
			detail.Listing = listing
			if scores, ok := snap.Livability[listing.ZipCode]; ok {
				detail.Livability = &scores
			}
		}
	}
	if community != nil {
		for i := range snap.Communities {
			if snap.Communities[i].ID == community.ID {
				detail.Community = &snap.Communities[i]
				break
			}
		}
	}
	return detail
}

func listingAt(listings []model.Listing, lat, lon float64) *model.Listing {
	for i := range listings {
		if listings[i].Latitude == lat && listings[i].Longitude == lon {
			return &listings[i]
		}
	}
	return nil
}

// RentBudget derives the maximum affordable monthly rent from an annual
// income and the share of income to spend on rent. No income means no
// budget; an income with no share means the whole income is on the table,
// not none of it.
func RentBudget(annualIncome, sharePct float64) float64 {
	if annualIncome == 0 {
		return 0
	}
	if sharePct == 0 {
		return annualIncome
	}
	return annualIncome * sharePct / 100 / 12
}
