package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/chiffordable/chiffordable/internal/communities"
	"github.com/chiffordable/chiffordable/internal/demography"
	"github.com/chiffordable/chiffordable/internal/geoindex"
	"github.com/chiffordable/chiffordable/internal/listings"
	"github.com/chiffordable/chiffordable/internal/livability"
)

var scrapeZipFlags []string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a single pipeline stage",
	Long:  "Runs one upstream stage in isolation and prints its output as JSON. Useful for checking a source before a full refresh.",
}

var scrapeCommunitiesCmd = &cobra.Command{
	Use:   "communities",
	Short: "Fetch and normalize the community snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := newFetcher()

		fc, err := communities.NewClient(f, cfg.Communities.SnapshotURL).FeatureCollection(ctx)
		if err != nil {
			return eris.Wrap(err, "fetch communities")
		}
		ix, err := geoindex.Build(fc)
		if err != nil {
			return eris.Wrap(err, "build community index")
		}

		return printJSON(demography.NormalizeAll(ix.Communities()))
	},
}

var scrapeListingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Scrape rental listings for the given zip codes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := newFetcher()

		zips := scrapeZipFlags
		if len(zips) == 0 {
			zips = cfg.Livability.Zips
		}

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

		result, err := ctrl.Run(ctx, areas)
		if err != nil {
			return eris.Wrap(err, "scrape listings")
		}
		return printJSON(result)
	},
}

var scrapeLivabilityCmd = &cobra.Command{
	Use:   "livability",
	Short: "Collect livability scores for the given zip codes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := newFetcher()

		zips := scrapeZipFlags
		if len(zips) == 0 {
			zips = cfg.Livability.Zips
		}

		client := livability.NewClient(f, cfg.Livability.BaseURL,
			livability.WithConcurrency(cfg.Livability.Concurrency))
		scores, err := client.Collect(ctx, zips)
		if err != nil {
			return eris.Wrap(err, "collect livability")
		}
		return printJSON(scores)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	scrapeListingsCmd.Flags().StringSliceVar(&scrapeZipFlags, "zip", nil, "zip codes to scrape (default: configured list)")
	scrapeLivabilityCmd.Flags().StringSliceVar(&scrapeZipFlags, "zip", nil, "zip codes to collect (default: configured list)")

	scrapeCmd.AddCommand(scrapeCommunitiesCmd)
	scrapeCmd.AddCommand(scrapeListingsCmd)
	scrapeCmd.AddCommand(scrapeLivabilityCmd)
	rootCmd.AddCommand(scrapeCmd)
}
