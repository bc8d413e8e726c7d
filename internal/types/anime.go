package types

import (
	"github.com/jonathan/animelist/internal/db"
)

// UpdateWatchlistRequest is the body of PUT /anime/watchlists.
type UpdateWatchlistRequest struct {
	Request string  `json:"request" validate:"required,eq=update"`
	Anime   []int64 `json:"anime" validate:"required,min=1,max=500,dive,gt=0"`
	Status  string  `json:"status" validate:"required,oneof=WATCHING WATCHED PLANNING DROPPED"`
}

// ScoredAnime is a catalog row with its search or similarity score.
type ScoredAnime struct {
	db.Anime
	Score float64 `json:"score"`
}

// SearchResponse is one page of title search with the total hit count.
type SearchResponse struct {
	Animes     []ScoredAnime `json:"animes"`
	TotalCount int           `json:"total_count"`
}

// TagSearchResponse is one page of tag search.
type TagSearchResponse struct {
	TotalCount int        `json:"total_count"`
	Animes     []db.Anime `json:"animes"`
}

// RecommendationResponse lists recommended anime, best first. Unresolved
// counts the seed ids that were not in the catalog.
type RecommendationResponse struct {
	Animes     []ScoredAnime `json:"animes"`
	Unresolved int           `json:"unresolved"`
}

// WatchlistResponse lists the caller's watchlist.
type WatchlistResponse struct {
	Anime       []db.WatchlistAnime `json:"anime"`
	UserID      int64               `json:"user_id"`
	WatchlistID int64               `json:"watchlist_id"`
}

// AnimeDetail is an anime plus the caller's watchlist entry, if any.
type AnimeDetail struct {
	db.Anime
	WatchlistStatus *string `json:"watchlist_status"`
	UserRating      *int    `json:"user_rating"`
}

// WithScores pairs rows with scores by id, keeping the order of rows.
func WithScores(rows []db.Anime, scores map[int64]float64) []ScoredAnime {
	out := make([]ScoredAnime, 0, len(rows))
	for _, a := range rows {
		out = append(out, ScoredAnime{Anime: a, Score: scores[a.ID]})
	}
	return out
}
