package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/animelist/internal/catalog"
	"github.com/jonathan/animelist/internal/logging"
	"github.com/jonathan/animelist/internal/metrics"
)

// DefaultLimit is the number of recommendations callers ask for when the user
// gives no limit.
const DefaultLimit = 10

// SnapshotSource provides catalog snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// RatingEntry is one watchlist entry of a user's rating history.
type RatingEntry struct {
	AnimeID int64
	Rating  *int
}

// HistoryStore reads a user's watchlist.
type HistoryStore interface {
	ListRatingHistory(ctx context.Context, userID int64) ([]RatingEntry, error)
	ListWatchedAnimeIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Request describes one recommendation call.
type Request struct {
	UserID int64
	// AnimeIDs seed the preference vector. When empty the user's WATCHED
	// entries are used.
	AnimeIDs []int64
	// Limit caps the number of items. A non-positive limit returns nothing.
	Limit int
	// FromWatchlist enables rating-aware weighting using the user's ratings.
	FromWatchlist bool
	// MinRating defaults to the engine's configured threshold when zero.
	MinRating int
}

// Result is the outcome of a recommendation call.
type Result struct {
	Items []Scored `json:"items"`
	// Unresolved counts seed ids that are not in the catalog.
	Unresolved int `json:"unresolved"`
}

// Engine computes recommendations over the current catalog snapshot.
type Engine struct {
	snapshots SnapshotSource
	history   HistoryStore
	minRating int

	mu      sync.RWMutex
	version uint64
	space   *VectorSpace
}

// NewEngine creates an engine. minRating is the default rating threshold for
// rating-aware requests.
func NewEngine(snapshots SnapshotSource, history HistoryStore, minRating int) *Engine {
	return &Engine{snapshots: snapshots, history: history, minRating: minRating}
}

// Recommend returns catalog items similar to the request's seed items.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := logging.Ctx(ctx)

	minRating := req.MinRating
	if minRating == 0 {
		minRating = e.minRating
	}

	var (
		snap    *catalog.Snapshot
		history []RatingEntry
		watched []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = e.snapshots.Snapshot(gctx)
		return err
	})
	if req.FromWatchlist {
		g.Go(func() error {
			var err error
			history, err = e.history.ListRatingHistory(gctx, req.UserID)
			if err != nil {
				return fmt.Errorf("failed to load rating history: %w", err)
			}
			return nil
		})
	}
	if len(req.AnimeIDs) == 0 {
		g.Go(func() error {
			var err error
			watched, err = e.history.ListWatchedAnimeIDs(gctx, req.UserID)
			if err != nil {
				return fmt.Errorf("failed to load watched anime: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seeds := req.AnimeIDs
	if len(seeds) == 0 {
		seeds = watched
	}

	space := e.vectorSpace(snap)

	ratings := make(map[int64]*int, len(history))
	for _, h := range history {
		if _, ok := ratings[h.AnimeID]; !ok {
			ratings[h.AnimeID] = h.Rating
		}
	}
	prefs := make([]Preference, len(seeds))
	for i, id := range seeds {
		prefs[i] = Preference{ItemID: id, Rating: ratings[id]}
	}

	composite, ok := Aggregate(space, prefs, AggregateOptions{
		RatingAware: req.FromWatchlist,
		MinRating:   minRating,
	})
	result := &Result{Unresolved: composite.Unresolved}
	if !ok {
		reason := "no_input"
		switch {
		case len(seeds) == 0:
		case composite.Unresolved == len(seeds):
			reason = "unresolved"
		default:
			reason = "below_threshold"
		}
		metrics.RecommendEmpty.WithLabelValues(reason).Inc()
		metrics.RecordRecommendation(time.Since(start), 0)
		log.Debug().
			Int64("user_id", req.UserID).
			Int("seeds", len(seeds)).
			Str("reason", reason).
			Msg("no preference vector")
		return result, nil
	}

	exclude := make(map[int64]struct{}, len(seeds)+len(history))
	for _, id := range seeds {
		exclude[id] = struct{}{}
	}
	if req.FromWatchlist {
		for _, h := range history {
			if h.Rating != nil && *h.Rating < minRating {
				exclude[h.AnimeID] = struct{}{}
			}
		}
	}

	result.Items = Rank(space, composite.Vector, RankOptions{Limit: req.Limit, Exclude: exclude})
	metrics.RecordRecommendation(time.Since(start), len(result.Items))
	log.Debug().
		Int64("user_id", req.UserID).
		Int("seeds", len(seeds)).
		Int("selected", len(composite.Selected)).
		Int("unresolved", composite.Unresolved).
		Int("results", len(result.Items)).
		Dur("duration", time.Since(start)).
		Msg("recommendations computed")
	return result, nil
}

// vectorSpace returns the space for snap, rebuilding it when the snapshot
// content changed.
func (e *Engine) vectorSpace(snap *catalog.Snapshot) *VectorSpace {
	e.mu.RLock()
	if e.space != nil && e.version == snap.Version {
		space := e.space
		e.mu.RUnlock()
		metrics.VectorSpaceCacheHits.Inc()
		return space
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.space != nil && e.version == snap.Version {
		metrics.VectorSpaceCacheHits.Inc()
		return e.space
	}
	metrics.VectorSpaceCacheMisses.Inc()
	start := time.Now()
	space := BuildVectorSpace(snap.Items)
	metrics.RecordVectorSpaceBuild(time.Since(start), space.Dim())
	logging.Debug().
		Int("items", space.Len()).
		Int("terms", space.Dim()).
		Msg("vector space rebuilt")
	e.space = space
	e.version = snap.Version
	return space
}
