package model

// LivabilityScores holds the seven-category livability index for one zip
// code. A zip code the upstream source has no data for is retained with all
// scores nil so downstream joins by zip never miss a key.
type LivabilityScores struct {
	ZipCode        string   `json:"zip_code"`
	Proximity      *float64 `json:"proximity,omitempty"`
	Engagement     *float64 `json:"engagement,omitempty"`
	Environment    *float64 `json:"environment,omitempty"`
	Health         *float64 `json:"health,omitempty"`
	Housing        *float64 `json:"housing,omitempty"`
	Opportunity    *float64 `json:"opportunity,omitempty"`
	Transportation *float64 `json:"transportation,omitempty"`
}

// HasData reports whether at least one score is present.
func (s LivabilityScores) HasData() bool {
	for _, v := range []*float64{
		s.Proximity, s.Engagement, s.Environment, s.Health,
		s.Housing, s.Opportunity, s.Transportation,
	} {
		if v != nil {
			return true
		}
	}
	return false
}
