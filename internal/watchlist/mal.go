package watchlist

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/logging"
)

// ErrEmptyExport is returned when an export contains no anime.
var ErrEmptyExport = errors.New("no anime found in the export")

// ParseError reports a malformed export.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "failed to parse MAL export: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// MALEntry is one <anime> element of a MyAnimeList export.
type MALEntry struct {
	Title  string `xml:"series_title"`
	Status string `xml:"my_status"`
	Score  string `xml:"my_score"`
}

type malExport struct {
	Anime []MALEntry `xml:"anime"`
}

// ParseMAL decodes a MyAnimeList XML export.
func ParseMAL(r io.Reader) ([]MALEntry, error) {
	var export malExport
	if err := xml.NewDecoder(r).Decode(&export); err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(export.Anime) == 0 {
		return nil, ErrEmptyExport
	}
	for i := range export.Anime {
		e := &export.Anime[i]
		e.Title = strings.TrimSpace(e.Title)
		e.Status = strings.TrimSpace(e.Status)
		e.Score = strings.TrimSpace(e.Score)
	}
	return export.Anime, nil
}

// Rating converts the MAL score. Zero, empty or out of range scores mean
// unrated.
func (e MALEntry) Rating() *int {
	n, err := strconv.Atoi(e.Score)
	if err != nil || n < 1 || n > 10 {
		return nil
	}
	return &n
}

// ImportStore is the storage used by the importer.
type ImportStore interface {
	GetOrCreateWatchlist(ctx context.Context, userID int64) (*db.Watchlist, error)
	GetAnimeByTitle(ctx context.Context, title string) (*db.Anime, error)
	GetWatchlistEntry(ctx context.Context, watchlistID, animeID int64) (*db.WatchlistEntry, error)
	CreateWatchlistEntry(ctx context.Context, watchlistID, animeID int64, status string, rating *int) error
	UpdateEntryRating(ctx context.Context, watchlistID, animeID int64, rating *int) (bool, error)
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Importer merges MAL exports into watchlists.
type Importer struct {
	store ImportStore
}

// NewImporter creates an importer.
func NewImporter(store ImportStore) *Importer {
	return &Importer{store: store}
}

// Import reads an export and merges it into the user's watchlist. Titles are
// matched exactly. Anime already on the list keep their status and get the
// exported rating. Unknown titles are skipped.
func (im *Importer) Import(ctx context.Context, userID int64, r io.Reader) (*ImportResult, error) {
	entries, err := ParseMAL(r)
	if err != nil {
		return nil, err
	}

	w, err := im.store.GetOrCreateWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	log := logging.Ctx(ctx)
	result := &ImportResult{}
	for _, e := range entries {
		anime, err := im.store.GetAnimeByTitle(ctx, e.Title)
		if err != nil {
			return nil, err
		}
		if anime == nil {
			log.Debug().Str("title", e.Title).Msg("anime not in catalog, skipping")
			result.Skipped++
			continue
		}

		existing, err := im.store.GetWatchlistEntry(ctx, w.ID, anime.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if _, err := im.store.UpdateEntryRating(ctx, w.ID, anime.ID, e.Rating()); err != nil {
				return nil, err
			}
			result.Updated++
			continue
		}

		if err := im.store.CreateWatchlistEntry(ctx, w.ID, anime.ID, string(FromMAL(e.Status)), e.Rating()); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				// Same title listed twice in the export.
				if _, err := im.store.UpdateEntryRating(ctx, w.ID, anime.ID, e.Rating()); err != nil {
					return nil, err
				}
				result.Updated++
				continue
			}
			return nil, err
		}
		result.Imported++
	}

	log.Info().
		Int64("user_id", userID).
		Int("imported", result.Imported).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("MAL export imported")
	return result, nil
}
