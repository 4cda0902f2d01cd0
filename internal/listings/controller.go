package listings

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chiffordable/chiffordable/internal/model"
)

// ErrSystemicFailure is returned when scraping fails across the leading
// areas of a run, indicating an upstream block or outage rather than
// isolated bad areas. Callers must treat it as a hard error and not write
// a truncated dataset.
var ErrSystemicFailure = eris.New("listings: systemic scrape failure")

// ControllerConfig tunes the per-area scrape loop.
type ControllerConfig struct {
	// MaxPages bounds pagination within one area.
	MaxPages int
	// SystemicFailureThreshold aborts the run when this many areas fail
	// consecutively from the start of the run. Zero disables the check.
	SystemicFailureThreshold int
	// AreaDelay is an additional pause between areas, on top of the
	// fetcher's request rate limit. Zero disables it (tests).
	AreaDelay time.Duration
}

// Area is one scrape job: a named search area (typically a zip code) and
// its first search page URL.
type Area struct {
	Name     string
	StartURL string
}

// AreaSummary records the per-area outcome for observability.
type AreaSummary struct {
	Area            string `json:"area"`
	Pages           int    `json:"pages"`
	Found           int    `json:"found"`
	DetailResolved  int    `json:"detail_resolved"`
	Dropped         int    `json:"dropped"`
	FailureReason   string `json:"failure_reason,omitempty"`
	Succeeded       bool   `json:"succeeded"`
}

// Result is the aggregate output of a run: listings deduplicated by unit
// identity plus one summary per attempted area.
type Result struct {
	Listings []model.Listing
	Areas    []AreaSummary
}

// Controller drives the per-area scraping loop with bounded pagination,
// loop detection, and at-most-once semantics per unit identity.
type Controller struct {
	source Source
	cfg    ControllerConfig

	seen          map[string]struct{} // unit dedup keys accepted this run
	detailFetched map[string]struct{} // detail URLs resolved this run
}

// NewController creates a Controller over the given source.
func NewController(source Source, cfg ControllerConfig) *Controller {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	return &Controller{
		source: source,
		cfg:    cfg,
	}
}

// Run scrapes every area in order. A failed area is recorded and the run
// continues, unless the first SystemicFailureThreshold areas all fail, in
// which case ErrSystemicFailure is returned. Cancellation is honored
// between areas: the current area drains, and the accumulated result is
// returned alongside the context error.
func (c *Controller) Run(ctx context.Context, areas []Area) (*Result, error) {
	log := zap.L().With(zap.String("component", "listings.controller"))

	c.seen = make(map[string]struct{})
	c.detailFetched = make(map[string]struct{})

	result := &Result{}
	leadingFailures := 0

	for i, area := range areas {
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled, stopping before next area",
				zap.String("area", area.Name),
				zap.Int("areas_done", i),
			)
			return result, eris.Wrap(err, "listings: run cancelled")
		}

		if c.cfg.AreaDelay > 0 && i > 0 {
			t := time.NewTimer(c.cfg.AreaDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return result, eris.Wrap(ctx.Err(), "listings: run cancelled")
			case <-t.C:
			}
		}

		summary, found := c.scrapeArea(ctx, area)
		result.Areas = append(result.Areas, summary)
		result.Listings = append(result.Listings, found...)

		if !summary.Succeeded {
			if i == leadingFailures {
				leadingFailures++
			}
			if c.cfg.SystemicFailureThreshold > 0 && leadingFailures >= c.cfg.SystemicFailureThreshold {
				return result, eris.Wrapf(ErrSystemicFailure,
					"first %d areas failed", leadingFailures)
			}
			log.Warn("area failed",
				zap.String("area", area.Name),
				zap.String("reason", summary.FailureReason),
			)
			continue
		}

		log.Info("area complete",
			zap.String("area", area.Name),
			zap.Int("pages", summary.Pages),
			zap.Int("found", summary.Found),
			zap.Int("detail_resolved", summary.DetailResolved),
		)
	}

	return result, nil
}

// scrapeArea walks one area's pagination until a termination condition
// fires: page budget reached, next link absent, next link identical to the
// current one (the upstream echoes the same link instead of signaling the
// end), or a page with zero listings.
func (c *Controller) scrapeArea(ctx context.Context, area Area) (AreaSummary, []model.Listing) {
	summary := AreaSummary{Area: area.Name}
	var found []model.Listing

	url := area.StartURL
	for page := 1; page <= c.cfg.MaxPages && url != ""; page++ {
		sp, err := c.source.SearchPage(ctx, url)
		if err != nil {
			summary.FailureReason = err.Error()
			return summary, found
		}
		summary.Pages = page

		if len(sp.Listings) == 0 {
			break
		}

		for _, s := range sp.Listings {
			accepted, resolved, dropped := c.processSummary(ctx, s)
			found = append(found, accepted...)
			summary.Found += len(accepted)
			summary.DetailResolved += resolved
			summary.Dropped += dropped
		}

		if sp.NextURL == "" || sp.NextURL == url {
			break
		}
		url = sp.NextURL
	}

	summary.Succeeded = true
	return summary, found
}

// processSummary applies the per-listing branching: priced summaries are
// accepted as-is; unpriced active rentals go through detail resolution at
// most once per detail URL; unpriced non-rentals carry no price signal and
// are dropped (counted, never silently lost).
func (c *Controller) processSummary(ctx context.Context, s Summary) (accepted []model.Listing, resolved, dropped int) {
	parent := model.Listing{
		Address:    s.Address,
		DetailURL:  s.DetailURL,
		Status:     model.ParseListingStatus(s.StatusRaw),
		ZipCode:    s.ZipCode,
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
		Price:      model.CleanPrice(s.PriceRaw),
		LivingArea: s.LivingArea,
		ListingKey: s.ListingKey,
		Bedrooms:   s.Bedrooms,
		Bathrooms:  s.Bathrooms,
	}

	if parent.Price != nil {
		return c.accept(parent), 0, 0
	}

	if parent.Status != model.StatusForRent {
		return nil, 0, 1
	}

	if _, done := c.detailFetched[parent.DetailURL]; done {
		return nil, 0, 0
	}
	c.detailFetched[parent.DetailURL] = struct{}{}

	payload, err := c.source.Detail(ctx, parent.DetailURL)
	if err != nil {
		// A failed detail fetch loses one listing, not the area.
		zap.L().Warn("detail fetch failed",
			zap.String("url", parent.DetailURL),
			zap.Error(err),
		)
		return nil, 0, 1
	}

	units := UnitsToPrices(ExtractUnits(payload))
	for _, child := range Combine(parent, units) {
		accepted = append(accepted, c.accept(child)...)
	}
	return accepted, 1, 0
}

// accept admits a listing unless its unit identity was already seen this
// run.
func (c *Controller) accept(l model.Listing) []model.Listing {
	key := l.DedupKey()
	if _, dup := c.seen[key]; dup {
		return nil
	}
	c.seen[key] = struct{}{}
	return []model.Listing{l}
}
