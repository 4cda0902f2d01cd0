package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ListingStatus classifies a listing's market status.
type ListingStatus string

const (
	// StatusForRent marks an active rental listing.
	StatusForRent ListingStatus = "FOR_RENT"
	// StatusOther marks any non-rental status (for sale, sold, off market).
	StatusOther ListingStatus = "OTHER"
)

// ParseListingStatus maps a raw upstream status string onto the enum.
// Anything that is not the rental status collapses to StatusOther.
func ParseListingStatus(raw string) ListingStatus {
	if strings.EqualFold(strings.TrimSpace(raw), string(StatusForRent)) {
		return StatusForRent
	}
	return StatusOther
}

// Listing is one priced (or price-unknown) rental unit. A single source
// listing page can expand into several Listings, one per unit price point;
// the expansion shares the parent's identity fields and varies only in
// price, bedrooms, bathrooms, and living area.
type Listing struct {
	Address    string        `json:"address"`
	DetailURL  string        `json:"detail_url"`
	Status     ListingStatus `json:"status"`
	ZipCode    string        `json:"zip_code"`
	Latitude   float64       `json:"latitude"`
	Longitude  float64       `json:"longitude"`
	Price      *float64      `json:"price,omitempty"`
	LivingArea *float64      `json:"living_area,omitempty"`
	ListingKey string        `json:"listing_key,omitempty"`
	Bedrooms   *float64      `json:"bedrooms,omitempty"`
	Bathrooms  *float64      `json:"bathrooms,omitempty"`
}

// DedupKey returns the unit identity tuple. Two listings with the same key
// are the same unit and must collapse to one record.
func (l Listing) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		l.DetailURL,
		formatOpt(l.Price),
		formatOpt(l.Bedrooms),
		formatOpt(l.Bathrooms),
		formatOpt(l.LivingArea),
	)
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

var nonDigit = regexp.MustCompile(`[^\d]`)

// CleanPrice strips currency formatting ("$1,234+/mo") and returns the
// numeric price. Returns nil when no digits remain.
func CleanPrice(raw string) *float64 {
	digits := nonDigit.ReplaceAllString(raw, "")
	if digits == "" {
		return nil
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	return &v
}

// PadZip left-pads a zip code to the 5-digit string format. Zip codes are
// strings throughout the pipeline to preserve leading zeros.
func PadZip(raw string) string {
	z := strings.TrimSpace(raw)
	for len(z) < 5 {
		z = "0" + z
	}
	return z
}
