// Package dataset writes and loads the pipeline's output files: one
// tabular file each for normalized communities, deduplicated listings, and
// livability scores. Column names and the zero-padded zip format are the
// compatibility contract with the presentation layer.
package dataset

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chiffordable/chiffordable/internal/geoindex"
	"github.com/chiffordable/chiffordable/internal/merge"
	"github.com/chiffordable/chiffordable/internal/model"
)

// Output file names within the dataset directory.
const (
	CommunitiesFile = "communities.csv"
	ListingsFile    = "listings.csv"
	LivabilityFile  = "livability.csv"
)

// communityRow is the on-disk shape of one normalized community. The age
// and race columns carry percentage shares (empty when unavailable);
// comm_poly carries the polygon as well-known text.
type communityRow struct {
	GEOID      string   `csv:"GEOID"`
	GEOG       string   `csv:"GEOG"`
	TotPop     float64  `csv:"TOT_POP"`
	Und5       *float64 `csv:"UND5"`
	A5_19      *float64 `csv:"A5_19"`
	A20_34     *float64 `csv:"A20_34"`
	A35_49     *float64 `csv:"A35_49"`
	A50_64     *float64 `csv:"A50_64"`
	A65_74     *float64 `csv:"A65_74"`
	A75_84     *float64 `csv:"A75_84"`
	Ov85       *float64 `csv:"OV85"`
	White      *float64 `csv:"WHITE"`
	Hisp       *float64 `csv:"HISP"`
	Black      *float64 `csv:"BLACK"`
	Asian      *float64 `csv:"ASIAN"`
	Other      *float64 `csv:"OTHER"`
	MedianRent *float64 `csv:"median_rent"`
	CommPoly   string   `csv:"comm_poly"`
}

// listingRow is the on-disk shape of one listing.
type listingRow struct {
	Address    string   `csv:"address"`
	DetailURL  string   `csv:"detailUrl"`
	StatusType string   `csv:"statusType"`
	ZipCode    string   `csv:"zipcode"`
	Latitude   float64  `csv:"latitude"`
	Longitude  float64  `csv:"longitude"`
	CleanPrice *float64 `csv:"clean_price"`
	LivingArea *float64 `csv:"livingarea"`
	ListingKey string   `csv:"listingkey"`
	Bedrooms   *float64 `csv:"bedrooms"`
	Bathrooms  *float64 `csv:"bathrooms"`
}

// livabilityRow is the on-disk shape of one zip's scores.
type livabilityRow struct {
	ZipCode     string   `csv:"zip_code"`
	ScoreProx   *float64 `csv:"score_prox"`
	ScoreEngage *float64 `csv:"score_engage"`
	ScoreEnv    *float64 `csv:"score_env"`
	ScoreHealth *float64 `csv:"score_health"`
	ScoreHouse  *float64 `csv:"score_house"`
	ScoreOpp    *float64 `csv:"score_opp"`
	ScoreTrans  *float64 `csv:"score_trans"`
}

// Write serializes the snapshot into dir. Each file is written to a
// temporary sibling and renamed into place, so a failed run never leaves a
// partially written dataset behind.
func Write(dir string, snap *merge.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "dataset: create dir %s", dir)
	}

	commRows := make([]communityRow, 0, len(snap.Communities))
	for _, c := range snap.Communities {
		wktGeom, err := geoindex.EncodeWKT(c.Geometry)
		if err != nil {
			return eris.Wrapf(err, "dataset: encode geometry for %s", c.Name)
		}
		commRows = append(commRows, communityRow{
			GEOID:      c.ID,
			GEOG:       c.Name,
			TotPop:     c.PopulationTotal,
			Und5:       c.AgeShares[model.AgeUnder5],
			A5_19:      c.AgeShares[model.Age5to19],
			A20_34:     c.AgeShares[model.Age20to34],
			A35_49:     c.AgeShares[model.Age35to49],
			A50_64:     c.AgeShares[model.Age50to64],
			A65_74:     c.AgeShares[model.Age65to74],
			A75_84:     c.AgeShares[model.Age75to84],
			Ov85:       c.AgeShares[model.AgeOver85],
			White:      c.RaceShares[model.RaceWhite],
			Hisp:       c.RaceShares[model.RaceHispanic],
			Black:      c.RaceShares[model.RaceBlack],
			Asian:      c.RaceShares[model.RaceAsian],
			Other:      c.RaceShares[model.RaceOther],
			MedianRent: c.MedianRent,
			CommPoly:   wktGeom,
		})
	}
	if err := writeCSV(filepath.Join(dir, CommunitiesFile), commRows); err != nil {
		return err
	}

	listRows := make([]listingRow, 0, len(snap.Listings))
	for _, l := range snap.Listings {
		listRows = append(listRows, listingRow{
			Address:    l.Address,
			DetailURL:  l.DetailURL,
			StatusType: string(l.Status),
			ZipCode:    model.PadZip(l.ZipCode),
			Latitude:   l.Latitude,
			Longitude:  l.Longitude,
			CleanPrice: l.Price,
			LivingArea: l.LivingArea,
			ListingKey: l.ListingKey,
			Bedrooms:   l.Bedrooms,
			Bathrooms:  l.Bathrooms,
		})
	}
	if err := writeCSV(filepath.Join(dir, ListingsFile), listRows); err != nil {
		return err
	}

	livRows := make([]livabilityRow, 0, len(snap.Livability))
	for _, s := range sortedLivability(snap.Livability) {
		livRows = append(livRows, livabilityRow{
			ZipCode:     model.PadZip(s.ZipCode),
			ScoreProx:   s.Proximity,
			ScoreEngage: s.Engagement,
			ScoreEnv:    s.Environment,
			ScoreHealth: s.Health,
			ScoreHouse:  s.Housing,
			ScoreOpp:    s.Opportunity,
			ScoreTrans:  s.Transportation,
		})
	}
	if err := writeCSV(filepath.Join(dir, LivabilityFile), livRows); err != nil {
		return err
	}

	zap.L().Info("dataset written",
		zap.String("dir", dir),
		zap.Int("communities", len(commRows)),
		zap.Int("listings", len(listRows)),
		zap.Int("livability_zips", len(livRows)),
	)
	return nil
}

// Load reads a previously written dataset directory into an immutable
// snapshot. The geometry column round-trips through WKT; a row whose
// geometry no longer parses fails the load rather than producing an
// index with holes.
func Load(dir string) (*merge.Snapshot, error) {
	var commRows []communityRow
	if err := readCSV(filepath.Join(dir, CommunitiesFile), &commRows); err != nil {
		return nil, err
	}
	communities := make([]model.NormalizedCommunity, 0, len(commRows))
	for _, r := range commRows {
		poly, err := geoindex.DecodeWKT(r.CommPoly)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: geometry for %s", r.GEOG)
		}
		communities = append(communities, model.NormalizedCommunity{
			Community: model.Community{
				ID:              r.GEOID,
				Name:            r.GEOG,
				Geometry:        poly,
				PopulationTotal: r.TotPop,
				MedianRent:      r.MedianRent,
			},
			AgeShares: map[model.AgeBucket]*float64{
				model.AgeUnder5: r.Und5,
				model.Age5to19:  r.A5_19,
				model.Age20to34: r.A20_34,
				model.Age35to49: r.A35_49,
				model.Age50to64: r.A50_64,
				model.Age65to74: r.A65_74,
				model.Age75to84: r.A75_84,
				model.AgeOver85: r.Ov85,
			},
			RaceShares: map[model.RaceCategory]*float64{
				model.RaceWhite:    r.White,
				model.RaceHispanic: r.Hisp,
				model.RaceBlack:    r.Black,
				model.RaceAsian:    r.Asian,
				model.RaceOther:    r.Other,
			},
		})
	}

	var listRows []listingRow
	if err := readCSV(filepath.Join(dir, ListingsFile), &listRows); err != nil {
		return nil, err
	}
	listingsOut := make([]model.Listing, 0, len(listRows))
	for _, r := range listRows {
		listingsOut = append(listingsOut, model.Listing{
			Address:    r.Address,
			DetailURL:  r.DetailURL,
			Status:     model.ParseListingStatus(r.StatusType),
			ZipCode:    model.PadZip(r.ZipCode),
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			Price:      r.CleanPrice,
			LivingArea: r.LivingArea,
			ListingKey: r.ListingKey,
			Bedrooms:   r.Bedrooms,
			Bathrooms:  r.Bathrooms,
		})
	}

	var livRows []livabilityRow
	if err := readCSV(filepath.Join(dir, LivabilityFile), &livRows); err != nil {
		return nil, err
	}
	livOut := make([]model.LivabilityScores, 0, len(livRows))
	for _, r := range livRows {
		livOut = append(livOut, model.LivabilityScores{
			ZipCode:        model.PadZip(r.ZipCode),
			Proximity:      r.ScoreProx,
			Engagement:     r.ScoreEngage,
			Environment:    r.ScoreEnv,
			Health:         r.ScoreHealth,
			Housing:        r.ScoreHouse,
			Opportunity:    r.ScoreOpp,
			Transportation: r.ScoreTrans,
		})
	}

	return merge.NewSnapshot(communities, listingsOut, livOut)
}

// writeCSV marshals rows and atomically replaces path.
func writeCSV[T any](path string, rows []T) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "dataset: marshal %s", filepath.Base(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return eris.Wrapf(err, "dataset: create temp for %s", path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "dataset: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "dataset: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "dataset: replace %s", path)
	}
	return nil
}

func readCSV[T any](path string, rows *[]T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: read %s", path)
	}
	if err := csvutil.Unmarshal(data, rows); err != nil {
		return eris.Wrapf(err, "dataset: decode %s", path)
	}
	return nil
}

func sortedLivability(byZip map[string]model.LivabilityScores) []model.LivabilityScores {
	zips := make([]string, 0, len(byZip))
	for z := range byZip {
		zips = append(zips, z)
	}
	// Deterministic file order keeps refresh diffs reviewable.
	sort.Strings(zips)
	out := make([]model.LivabilityScores, 0, len(zips))
	for _, z := range zips {
		out = append(out, byZip[z])
	}
	return out
}
