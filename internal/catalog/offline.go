package catalog

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// OfflineDatabase is the top level of an anime-offline-database dump.
type OfflineDatabase struct {
	Repository string         `json:"repository"`
	LastUpdate string         `json:"lastUpdate"`
	Data       []OfflineAnime `json:"data"`
}

// OfflineAnime is one entry of the dump.
type OfflineAnime struct {
	Sources      []string       `json:"sources"`
	Title        string         `json:"title"`
	Type         string         `json:"type"`
	Episodes     *int           `json:"episodes"`
	Status       string         `json:"status"`
	AnimeSeason  *OfflineSeason `json:"animeSeason"`
	Picture      string         `json:"picture"`
	Thumbnail    string         `json:"thumbnail"`
	Score        *OfflineScore  `json:"score"`
	Synonyms     []string       `json:"synonyms"`
	Tags         []string       `json:"tags"`
	Description  string         `json:"description"`
	Genres       []string       `json:"genres"`
	Demographics []string       `json:"demographics"`
}

// OfflineSeason is the airing season of an entry.
type OfflineSeason struct {
	Season string `json:"season"`
	Year   *int   `json:"year"`
}

// OfflineScore holds aggregated scores of an entry.
type OfflineScore struct {
	ArithmeticGeometricMean *float64 `json:"arithmeticGeometricMean"`
	ArithmeticMean          *float64 `json:"arithmeticMean"`
	Median                  *float64 `json:"median"`
}

// ParseOfflineDatabase decodes a dump.
func ParseOfflineDatabase(r io.Reader) (*OfflineDatabase, error) {
	var db OfflineDatabase
	if err := json.NewDecoder(r).Decode(&db); err != nil {
		return nil, fmt.Errorf("failed to decode offline database: %w", err)
	}
	return &db, nil
}

// Record converts a dump entry into a store record.
func (a OfflineAnime) Record() Record {
	rec := Record{
		Title:        a.Title,
		ImageURL:     a.Picture,
		Status:       a.Status,
		EpisodeCount: a.Episodes,
		Tags:         nonNil(a.Tags),
		Sources:      nonNil(a.Sources),
		ExtraTitles:  nonNil(a.Synonyms),
		Descriptor: BuildDescriptor(DescriptorFields{
			Title:        a.Title,
			Tags:         a.Tags,
			Sources:      a.Sources,
			Synonyms:     a.Synonyms,
			Status:       a.Status,
			Episodes:     a.Episodes,
			Description:  a.Description,
			Genres:       a.Genres,
			Demographics: a.Demographics,
		}),
	}
	if a.Score != nil {
		rec.Rating = a.Score.Median
	}
	if a.AnimeSeason != nil {
		rec.Season = a.AnimeSeason.Season
		rec.Year = a.AnimeSeason.Year
	}
	return rec
}

// Records converts every entry with a non-empty title.
func (db *OfflineDatabase) Records() []Record {
	out := make([]Record, 0, len(db.Data))
	for _, a := range db.Data {
		if a.Title == "" {
			continue
		}
		out = append(out, a.Record())
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
