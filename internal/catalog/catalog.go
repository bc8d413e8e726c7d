// Package catalog holds the anime catalog model, the offline-database
// importer and the in-memory snapshot used by search and recommendations.
package catalog

// Item is the read-only view of a catalog entry used by search and recommendations.
type Item struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ExtraTitles []string `json:"extra_titles"`
	Descriptor  string   `json:"-"`
	Rating      float64  `json:"rating"`
}

// Record is a catalog entry ready to be written to the store.
type Record struct {
	Title        string
	ImageURL     string
	Rating       *float64
	Status       string
	Year         *int
	Season       string
	EpisodeCount *int
	Tags         []string
	Sources      []string
	ExtraTitles  []string
	Descriptor   string
}

// Upcoming is the status of anime that have not aired yet.
const Upcoming = "UPCOMING"
