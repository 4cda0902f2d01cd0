package livability

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiffordable/chiffordable/internal/fetcher"
	"github.com/chiffordable/chiffordable/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(fetcher.New(fetcher.Options{MaxRetries: 1}), srv.URL)
}

func scoreHandler(t *testing.T, known map[string]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		require.Len(t, parts, 3)
		require.Equal(t, "zip", parts[0])
		require.Equal(t, "scores", parts[2])

		body, ok := known[parts[1]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}
}

func TestScoresForZip(t *testing.T) {
	c := newTestClient(t, scoreHandler(t, map[string]string{
		"60601": `{"score_prox": 72.5, "score_engage": 61, "score_env": 48, "score_health": 55, "score_house": 40, "score_opp": 63, "score_trans": 81}`,
	}))

	s := c.ScoresForZip(context.Background(), "60601")
	assert.Equal(t, "60601", s.ZipCode)
	require.NotNil(t, s.Proximity)
	assert.Equal(t, 72.5, *s.Proximity)
	require.NotNil(t, s.Transportation)
	assert.Equal(t, 81.0, *s.Transportation)
	assert.True(t, s.HasData())
}

func TestScoresForZipUnavailable(t *testing.T) {
	c := newTestClient(t, scoreHandler(t, nil))

	// The zip is retained with every score nil, never omitted
	s := c.ScoresForZip(context.Background(), "60699")
	assert.Equal(t, "60699", s.ZipCode)
	assert.False(t, s.HasData())
}

func TestScoresForZipPadsZip(t *testing.T) {
	c := newTestClient(t, scoreHandler(t, map[string]string{
		"00601": `{"score_prox": 10}`,
	}))

	s := c.ScoresForZip(context.Background(), "601")
	assert.Equal(t, "00601", s.ZipCode)
	assert.True(t, s.HasData())
}

func TestCollectKeepsInputOrder(t *testing.T) {
	c := newTestClient(t, scoreHandler(t, map[string]string{
		"60601": `{"score_prox": 1}`,
		"60603": `{"score_prox": 3}`,
	}))

	got, err := c.Collect(context.Background(), []string{"60601", "60602", "60603"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "60601", got[0].ZipCode)
	assert.Equal(t, "60602", got[1].ZipCode)
	assert.Equal(t, "60603", got[2].ZipCode)
	assert.True(t, got[0].HasData())
	assert.False(t, got[1].HasData())
	assert.True(t, got[2].HasData())
}

func TestMergeSupplement(t *testing.T) {
	collected := []model.LivabilityScores{
		{ZipCode: "60601", Housing: model.Float64Ptr(50)},
		{ZipCode: "60602"}, // no data
	}
	supplement := []model.LivabilityScores{
		// Must not clobber collected data
		{ZipCode: "60601", Housing: model.Float64Ptr(99)},
		// Fills the gap
		{ZipCode: "60602", Housing: model.Float64Ptr(45)},
		// New zips appended in zip order
		{ZipCode: "60611", Housing: model.Float64Ptr(60)},
		{ZipCode: "60605", Housing: model.Float64Ptr(55)},
	}

	got := MergeSupplement(collected, supplement)
	require.Len(t, got, 4)
	assert.Equal(t, 50.0, *got[0].Housing)
	assert.Equal(t, 45.0, *got[1].Housing)
	assert.Equal(t, "60605", got[2].ZipCode)
	assert.Equal(t, "60611", got[3].ZipCode)
}

func TestMergeSupplementEmpty(t *testing.T) {
	collected := []model.LivabilityScores{{ZipCode: "60601"}}
	assert.Equal(t, collected, MergeSupplement(collected, nil))
}

func TestLoadSupplement(t *testing.T) {
	csv := `zip_code,score_prox,score_engage,score_env,score_health,score_house,score_opp,score_trans
60601,72.5,61,48,55,40,63,81
601,10,,,,,,
`
	got, err := LoadSupplement(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "60601", got[0].ZipCode)
	require.NotNil(t, got[0].Proximity)
	assert.Equal(t, 72.5, *got[0].Proximity)
	require.NotNil(t, got[0].Transportation)
	assert.Equal(t, 81.0, *got[0].Transportation)

	// Short zip padded, blank scores stay nil
	assert.Equal(t, "00601", got[1].ZipCode)
	assert.NotNil(t, got[1].Proximity)
	assert.Nil(t, got[1].Engagement)
}

func TestOpenSupplementEmptyPath(t *testing.T) {
	got, err := OpenSupplement(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
