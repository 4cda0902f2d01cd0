// Package livability collects the seven-category livability index keyed by
// zip code.
package livability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chiffordable/chiffordable/internal/fetcher"
	"github.com/chiffordable/chiffordable/internal/model"
)

// Client fetches livability scores from the zip-indexed score API.
type Client struct {
	fetcher     *fetcher.Client
	baseURL     string
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithConcurrency sets the number of parallel score fetches.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a Client. baseURL is the score API root; the per-zip
// path is <baseURL>/zip/<zip>/scores.
func NewClient(f *fetcher.Client, baseURL string, opts ...Option) *Client {
	c := &Client{fetcher: f, baseURL: baseURL, concurrency: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scorePayload mirrors the score API response body.
type scorePayload struct {
	ScoreProx   *float64 `json:"score_prox"`
	ScoreEngage *float64 `json:"score_engage"`
	ScoreEnv    *float64 `json:"score_env"`
	ScoreHealth *float64 `json:"score_health"`
	ScoreHouse  *float64 `json:"score_house"`
	ScoreOpp    *float64 `json:"score_opp"`
	ScoreTrans  *float64 `json:"score_trans"`
}

// ScoresForZip fetches the scores for one zip code. Unavailability — a
// non-success response or an unparseable body — yields an all-nil score
// set, never an omitted zip: downstream joins index by zip unconditionally.
func (c *Client) ScoresForZip(ctx context.Context, zip string) model.LivabilityScores {
	zip = model.PadZip(zip)
	scores := model.LivabilityScores{ZipCode: zip}

	url := fmt.Sprintf("%s/zip/%s/scores", c.baseURL, zip)
	var payload scorePayload
	if err := c.fetcher.GetJSON(ctx, url, &payload); err != nil {
		zap.L().Debug("livability: no data for zip",
			zap.String("zip", zip),
			zap.Error(err),
		)
		return scores
	}

	scores.Proximity = payload.ScoreProx
	scores.Engagement = payload.ScoreEngage
	scores.Environment = payload.ScoreEnv
	scores.Health = payload.ScoreHealth
	scores.Housing = payload.ScoreHouse
	scores.Opportunity = payload.ScoreOpp
	scores.Transportation = payload.ScoreTrans
	return scores
}

// Collect fetches scores for every zip with bounded parallelism. The
// shared fetcher rate limit applies across workers, and the output keeps
// the input zip order. Every input zip appears in the output exactly once.
func (c *Client) Collect(ctx context.Context, zips []string) ([]model.LivabilityScores, error) {
	out := make([]model.LivabilityScores, len(zips))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, zip := range zips {
		g.Go(func() error {
			out[i] = c.ScoresForZip(gctx, zip)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "livability: collect")
	}

	withData := 0
	for _, s := range out {
		if s.HasData() {
			withData++
		}
	}
	zap.L().Info("livability scores collected",
		zap.Int("zips", len(out)),
		zap.Int("with_data", withData),
	)
	return out, nil
}

// MergeSupplement overlays manually collected scores (a CSV score table
// for zips the API does not cover) onto collected results. Supplement rows
// win only where the collected set has no data for the zip; new zips are
// appended in zip order.
func MergeSupplement(collected, supplement []model.LivabilityScores) []model.LivabilityScores {
	byZip := make(map[string]int, len(collected))
	out := make([]model.LivabilityScores, len(collected))
	copy(out, collected)
	for i, s := range out {
		byZip[s.ZipCode] = i
	}

	var appended []model.LivabilityScores
	for _, s := range supplement {
		if i, ok := byZip[s.ZipCode]; ok {
			if !out[i].HasData() {
				out[i] = s
			}
			continue
		}
		appended = append(appended, s)
	}
	sort.Slice(appended, func(i, j int) bool { return appended[i].ZipCode < appended[j].ZipCode })
	return append(out, appended...)
}

// LoadSupplement reads a supplemental score CSV (zip_code plus the seven
// score columns, header row required).
func LoadSupplement(ctx context.Context, r io.Reader) ([]model.LivabilityScores, error) {
	headerCh := make(chan []string, 1)
	rows, errs := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	var out []model.LivabilityScores
	for row := range rows {
		if header == nil {
			select {
			case header = <-headerCh:
			default:
				return nil, eris.New("livability: supplement file missing header")
			}
		}
		s, err := supplementRow(header, row)
		if err != nil {
			zap.L().Warn("livability: skipping malformed supplement row", zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	if err := <-errs; err != nil {
		return nil, eris.Wrap(err, "livability: read supplement")
	}
	return out, nil
}

// OpenSupplement loads the supplement file at path, or returns nil when
// path is empty.
func OpenSupplement(ctx context.Context, path string) ([]model.LivabilityScores, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "livability: open supplement %s", path)
	}
	defer f.Close() //nolint:errcheck
	return LoadSupplement(ctx, f)
}

func supplementRow(header, row []string) (model.LivabilityScores, error) {
	var s model.LivabilityScores
	if len(row) < len(header) {
		return s, eris.Errorf("livability: row has %d fields, header has %d", len(row), len(header))
	}
	for i, col := range header {
		val := row[i]
		switch col {
		case "zip_code":
			s.ZipCode = model.PadZip(val)
		case "score_prox":
			s.Proximity = parseScore(val)
		case "score_engage":
			s.Engagement = parseScore(val)
		case "score_env":
			s.Environment = parseScore(val)
		case "score_health":
			s.Health = parseScore(val)
		case "score_house":
			s.Housing = parseScore(val)
		case "score_opp":
			s.Opportunity = parseScore(val)
		case "score_trans":
			s.Transportation = parseScore(val)
		}
	}
	if s.ZipCode == "" {
		return s, eris.New("livability: supplement row missing zip_code")
	}
	return s, nil
}

func parseScore(raw string) *float64 {
	if raw == "" {
		return nil
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%f", &v); err != nil {
		return nil
	}
	return &v
}
