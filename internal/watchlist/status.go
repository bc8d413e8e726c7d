// Package watchlist holds watchlist statuses, MyAnimeList export import and
// watchlist statistics.
package watchlist

import "fmt"

// Status is the state of an anime on a watchlist.
type Status string

const (
	Watching Status = "WATCHING"
	Watched  Status = "WATCHED"
	Planning Status = "PLANNING"
	Dropped  Status = "DROPPED"
)

// Statuses lists every valid status.
var Statuses = []Status{Watching, Watched, Planning, Dropped}

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown watchlist status %q", s)
}

// FromMAL maps a MyAnimeList status to a watchlist status. Unknown values,
// including "On-Hold", become WATCHING.
func FromMAL(status string) Status {
	switch status {
	case "Completed":
		return Watched
	case "Plan to Watch":
		return Planning
	case "Dropped":
		return Dropped
	default:
		return Watching
	}
}
