// Package listings scrapes the rental listing source: a paginated search
// surface whose summaries sometimes lack a price and require a second-pass
// detail fetch to expand into priced unit records.
package listings

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/chiffordable/chiffordable/internal/fetcher"
	"github.com/chiffordable/chiffordable/internal/model"
)

// Summary is one listing summary extracted from a search results page.
// PriceRaw keeps the source's display string ("$1,234+/mo"); the cleaned
// numeric price is derived when the summary becomes a Listing.
type Summary struct {
	Address    string
	DetailURL  string
	StatusRaw  string
	ZipCode    string
	Latitude   float64
	Longitude  float64
	PriceRaw   string
	LivingArea *float64
	ListingKey string
	Bedrooms   *float64
	Bathrooms  *float64
}

// SearchPage is one page of search results. NextURL is empty when the page
// carries no next-page marker.
type SearchPage struct {
	Listings []Summary
	NextURL  string
}

// RawUnit is one unit entry from a detail payload, before price resolution.
type RawUnit struct {
	ListingType string   `json:"listingType"`
	Bedrooms    *float64 `json:"beds"`
	Bathrooms   *float64 `json:"baths"`
	Sqft        *float64 `json:"sqft"`
	Price       *float64 `json:"price"`
	MinPrice    *float64 `json:"minPrice"`
	MaxPrice    *float64 `json:"maxPrice"`
}

// DetailPayload is the building section of a detail page. The upstream
// schema stores units under one of two keys, assigned unpredictably; both
// shapes carry the same concept.
type DetailPayload struct {
	FloorPlans     []RawUnit `json:"floorPlans"`
	UngroupedUnits []RawUnit `json:"ungroupedUnits"`
}

// Source supplies search pages and detail payloads. The production
// implementation scrapes over HTTP; tests substitute fixtures.
type Source interface {
	SearchPage(ctx context.Context, url string) (*SearchPage, error)
	Detail(ctx context.Context, url string) (*DetailPayload, error)
}

// HTTPSourceConfig configures the HTTP-backed Source.
type HTTPSourceConfig struct {
	// BaseURL prefixes relative detail and next-page links.
	BaseURL string
	// StripSegment is removed from paginated search URLs before fetching.
	// The upstream echoes a redundant city segment into them.
	StripSegment string
}

// HTTPSource scrapes the listing site, extracting the JSON state payload
// embedded in each page's bootstrap script tag.
type HTTPSource struct {
	client *fetcher.Client
	cfg    HTTPSourceConfig
}

// NewHTTPSource creates an HTTPSource backed by the given client.
func NewHTTPSource(client *fetcher.Client, cfg HTTPSourceConfig) *HTTPSource {
	return &HTTPSource{client: client, cfg: cfg}
}

// SearchPage fetches and parses one page of search results.
func (s *HTTPSource) SearchPage(ctx context.Context, url string) (*SearchPage, error) {
	if s.cfg.StripSegment != "" {
		url = strings.ReplaceAll(url, s.cfg.StripSegment, "")
	}

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	state, err := extractStateJSON(body)
	if err != nil {
		return nil, eris.Wrapf(err, "listings: parse search page %s", url)
	}

	var payload searchState
	if err := json.Unmarshal(state, &payload); err != nil {
		return nil, eris.Wrapf(err, "listings: decode search state %s", url)
	}

	page := &SearchPage{NextURL: s.completeLink(payload.nextURL())}
	for _, raw := range payload.results() {
		page.Listings = append(page.Listings, Summary{
			Address:    raw.Address,
			DetailURL:  s.completeLink(raw.DetailURL),
			StatusRaw:  raw.StatusType,
			ZipCode:    model.PadZip(raw.AddressZipcode),
			Latitude:   raw.LatLong.Latitude,
			Longitude:  raw.LatLong.Longitude,
			PriceRaw:   raw.Price,
			LivingArea: raw.Area,
			ListingKey: raw.ID,
			Bedrooms:   raw.Beds,
			Bathrooms:  raw.Baths,
		})
	}
	return page, nil
}

// Detail fetches and parses a detail page's building payload.
func (s *HTTPSource) Detail(ctx context.Context, url string) (*DetailPayload, error) {
	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	state, err := extractStateJSON(body)
	if err != nil {
		return nil, eris.Wrapf(err, "listings: parse detail page %s", url)
	}

	var payload detailState
	if err := json.Unmarshal(state, &payload); err != nil {
		return nil, eris.Wrapf(err, "listings: decode detail state %s", url)
	}
	return payload.building(), nil
}

// completeLink prefixes scheme-less paths with the base URL. Links that
// already carry a scheme are complete and pass through unchanged.
func (s *HTTPSource) completeLink(link string) string {
	if link == "" {
		return link
	}
	if u, err := url.Parse(link); err == nil && u.IsAbs() {
		return link
	}
	return s.cfg.BaseURL + link
}

const (
	stateScriptOpen  = `<script id="__NEXT_DATA__" type="application/json">`
	stateScriptClose = `</script>`
)

// extractStateJSON pulls the embedded JSON state blob out of a page's
// bootstrap script tag.
func extractStateJSON(body []byte) (json.RawMessage, error) {
	html := string(body)
	start := strings.Index(html, stateScriptOpen)
	if start < 0 {
		return nil, eris.New("listings: state script tag not found")
	}
	rest := html[start+len(stateScriptOpen):]
	end := strings.Index(rest, stateScriptClose)
	if end < 0 {
		return nil, eris.New("listings: state script tag not terminated")
	}
	return json.RawMessage(rest[:end]), nil
}

// searchState mirrors the nested search page JSON down to the fields the
// pipeline uses.
type searchState struct {
	Props struct {
		PageProps struct {
			SearchPageState struct {
				Cat1 struct {
					SearchResults struct {
						ListResults []rawResult `json:"listResults"`
					} `json:"searchResults"`
					SearchList struct {
						Pagination struct {
							NextURL string `json:"nextUrl"`
						} `json:"pagination"`
					} `json:"searchList"`
				} `json:"cat1"`
			} `json:"searchPageState"`
		} `json:"pageProps"`
	} `json:"props"`
}

func (s searchState) results() []rawResult {
	return s.Props.PageProps.SearchPageState.Cat1.SearchResults.ListResults
}

func (s searchState) nextURL() string {
	return s.Props.PageProps.SearchPageState.Cat1.SearchList.Pagination.NextURL
}

type rawResult struct {
	ID             string `json:"id"`
	Address        string `json:"address"`
	DetailURL      string `json:"detailUrl"`
	StatusType     string `json:"statusType"`
	AddressZipcode string `json:"addressZipcode"`
	LatLong        struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"latLong"`
	Price string   `json:"price"`
	Area  *float64 `json:"area"`
	Beds  *float64 `json:"beds"`
	Baths *float64 `json:"baths"`
}

// detailState mirrors the nested detail page JSON down to the building
// section.
type detailState struct {
	Props struct {
		PageProps struct {
			ComponentProps struct {
				InitialReduxState struct {
					GDP struct {
						Building DetailPayload `json:"building"`
					} `json:"gdp"`
				} `json:"initialReduxState"`
			} `json:"componentProps"`
		} `json:"pageProps"`
	} `json:"props"`
}

func (d detailState) building() *DetailPayload {
	b := d.Props.PageProps.ComponentProps.InitialReduxState.GDP.Building
	return &b
}
