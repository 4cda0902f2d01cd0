package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chiffordable/chiffordable/internal/communities"
	"github.com/chiffordable/chiffordable/internal/dataset"
	"github.com/chiffordable/chiffordable/internal/demography"
	"github.com/chiffordable/chiffordable/internal/fetcher"
	"github.com/chiffordable/chiffordable/internal/geoindex"
	"github.com/chiffordable/chiffordable/internal/listings"
	"github.com/chiffordable/chiffordable/internal/livability"
	"github.com/chiffordable/chiffordable/internal/merge"
	"github.com/chiffordable/chiffordable/internal/store"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the affordability dataset from upstream sources",
	Long:  "Fetches community demographics, scrapes rental listings area by area, collects livability scores, and writes the joined dataset. Per-area outcomes are recorded in the run store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.CreateRun(ctx)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		f := newFetcher()

		// Community boundaries and demographics
		commClient := communities.NewClient(f, cfg.Communities.SnapshotURL)
		fc, err := commClient.FeatureCollection(ctx)
		if err != nil {
			return failRun(ctx, st, run, eris.Wrap(err, "fetch communities"))
		}
		ix, err := geoindex.Build(fc)
		if err != nil {
			return failRun(ctx, st, run, eris.Wrap(err, "build community index"))
		}
		normalized := demography.NormalizeAll(ix.Communities())
		run.Communities = len(normalized)

		// Zip coverage: scrape only zips whose polygon sits in a community
		zips := scrapeZips(ctx, f, ix)

		// Listings
		source := listings.NewHTTPSource(f, listings.HTTPSourceConfig{
			BaseURL:      cfg.Listings.BaseURL,
			StripSegment: cfg.Listings.StripSegment,
		})
		ctrl := listings.NewController(source, listings.ControllerConfig{
			MaxPages:                 cfg.Listings.MaxPages,
			SystemicFailureThreshold: cfg.Listings.SystemicFailureThreshold,
			AreaDelay:                cfg.Listings.AreaDelay(),
		})
		areas := make([]listings.Area, 0, len(zips))
		for _, zip := range zips {
			areas = append(areas, listings.Area{
				Name:     zip,
				StartURL: searchURL(cfg.Listings.BaseURL, zip),
			})
		}

		result, runErr := ctrl.Run(ctx, areas)
		recordAreas(ctx, st, run.ID, result)
		run.Listings = len(result.Listings)
		run.AreasAttempted = len(result.Areas)
		for _, a := range result.Areas {
			if !a.Succeeded {
				run.AreasFailed++
			}
		}
		if runErr != nil {
			return failRun(ctx, st, run, eris.Wrap(runErr, "scrape listings"))
		}

		// Livability scores
		livClient := livability.NewClient(f, cfg.Livability.BaseURL,
			livability.WithConcurrency(cfg.Livability.Concurrency))
		scores, err := livClient.Collect(ctx, cfg.Livability.Zips)
		if err != nil {
			return failRun(ctx, st, run, eris.Wrap(err, "collect livability"))
		}
		supplement, err := livability.OpenSupplement(ctx, cfg.Livability.SupplementFile)
		if err != nil {
			return failRun(ctx, st, run, eris.Wrap(err, "load livability supplement"))
		}
		scores = livability.MergeSupplement(scores, supplement)

		// Join and write
		snap, err := merge.NewSnapshot(normalized, result.Listings, scores)
		if err != nil {
			return failRun(ctx, st, run, eris.Wrap(err, "assemble snapshot"))
		}
		if err := dataset.Write(cfg.Dataset.Dir, snap); err != nil {
			return failRun(ctx, st, run, eris.Wrap(err, "write dataset"))
		}

		run.Status = store.RunStatusComplete
		if err := st.CompleteRun(ctx, run); err != nil {
			return eris.Wrap(err, "complete run")
		}

		formatRefreshSummary(run, result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

// scrapeZips narrows the configured zip list to zips whose boundary polygon
// resolves to an indexed community. When the zip boundary table is
// unavailable the full configured list is scraped.
func scrapeZips(ctx context.Context, f *fetcher.Client, ix *geoindex.Index) []string {
	zips := cfg.Livability.Zips
	if cfg.Communities.ZipBoundaryURL == "" {
		return zips
	}

	body, err := f.Get(ctx, cfg.Communities.ZipBoundaryURL)
	if err != nil {
		zap.L().Warn("zip boundary table unavailable, scraping all configured zips", zap.Error(err))
		return zips
	}
	locator, err := geoindex.BuildZipLocator(ctx, bytes.NewReader(body), ix)
	if err != nil {
		zap.L().Warn("zip locator build failed, scraping all configured zips", zap.Error(err))
		return zips
	}

	kept := make([]string, 0, len(zips))
	for _, zip := range zips {
		if locator.CommunityForZip(zip) != nil {
			kept = append(kept, zip)
		}
	}
	if len(kept) == 0 {
		zap.L().Warn("no configured zip resolved to a community, scraping all configured zips")
		return zips
	}
	zap.L().Info("zip coverage resolved",
		zap.Int("configured", len(zips)),
		zap.Int("in_community", len(kept)),
	)
	return kept
}

// recordAreas persists per-area outcomes; a storage failure degrades the
// audit trail, not the run.
func recordAreas(ctx context.Context, st store.RunStore, runID string, result *listings.Result) {
	for _, a := range result.Areas {
		err := st.RecordArea(ctx, store.AreaRecord{
			RunID:          runID,
			Area:           a.Area,
			Pages:          a.Pages,
			Found:          a.Found,
			DetailResolved: a.DetailResolved,
			Dropped:        a.Dropped,
			Succeeded:      a.Succeeded,
			FailureReason:  a.FailureReason,
		})
		if err != nil {
			zap.L().Warn("record area failed",
				zap.String("area", a.Area),
				zap.Error(err),
			)
		}
	}
}

// failRun marks the run failed with whatever counts accumulated, then
// returns the original error.
func failRun(ctx context.Context, st store.RunStore, run *store.Run, cause error) error {
	run.Status = store.RunStatusFailed
	run.Error = cause.Error()
	if err := st.CompleteRun(ctx, run); err != nil {
		zap.L().Error("mark run failed", zap.Error(err))
	}
	return cause
}

func formatRefreshSummary(run *store.Run, result *listings.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Communities:\t%d\n", run.Communities)
	_, _ = fmt.Fprintf(w, "Listings:\t%d\n", run.Listings)
	_, _ = fmt.Fprintf(w, "Areas:\t%d attempted, %d failed\n", run.AreasAttempted, run.AreasFailed)

	var pages, resolved, dropped int
	for _, a := range result.Areas {
		pages += a.Pages
		resolved += a.DetailResolved
		dropped += a.Dropped
	}
	_, _ = fmt.Fprintf(w, "Pages fetched:\t%d\n", pages)
	_, _ = fmt.Fprintf(w, "Details resolved:\t%d\n", resolved)
	_, _ = fmt.Fprintf(w, "Dropped unpriced:\t%d\n", dropped)
	_ = w.Flush()
}
