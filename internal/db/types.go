package db

import "time"

// User is an account. Header-auth users have an empty password hash.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize to JSON
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey is the single API key of a user.
type APIKey struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Key       string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Anime is a catalog row.
type Anime struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	ImageURL     string   `json:"image_url"`
	Rating       *float64 `json:"rating"`
	Status       string   `json:"status"`
	Year         *int     `json:"year"`
	Season       string   `json:"season"`
	EpisodeCount *int     `json:"episode_count"`
	Tags         []string `json:"tags"`
	Sources      []string `json:"sources"`
	ExtraTitles  []string `json:"extra_titles"`
	// RecommendationString is the TF-IDF descriptor.
	RecommendationString string `json:"-"`
}

// Watchlist belongs to exactly one user.
type Watchlist struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WatchlistEntry links an anime to a watchlist.
type WatchlistEntry struct {
	WatchlistID int64     `json:"watchlist_id"`
	AnimeID     int64     `json:"anime_id"`
	Status      string    `json:"status"`
	Rating      *int      `json:"rating"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WatchlistAnime is an anime joined with the caller's entry.
type WatchlistAnime struct {
	Anime
	WatchlistStatus string `json:"watchlist_status"`
	UserRating      *int   `json:"user_rating"`
}

// TagSearch is one page of a tag search.
type TagSearch struct {
	Anime      []Anime
	TotalCount int
}
