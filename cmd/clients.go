package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/chiffordable/chiffordable/internal/fetcher"
	"github.com/chiffordable/chiffordable/internal/store"
)

// newFetcher builds the shared rate-limited HTTP client from config.
func newFetcher() *fetcher.Client {
	return fetcher.New(fetcher.Options{
		UserAgent:         cfg.Fetcher.UserAgent,
		Timeout:           time.Duration(cfg.Fetcher.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Fetcher.MaxRetries,
		RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
		Burst:             cfg.Fetcher.Burst,
	})
}

// initStore opens the run audit store.
func initStore() (store.RunStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "open run store %s", cfg.Store.Path)
	}
	return st, nil
}

// searchURL builds the first search page URL for one zip code area.
func searchURL(base, zip string) string {
	return fmt.Sprintf("%s/%s/rentals/", base, zip)
}
