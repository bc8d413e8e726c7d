package watchlist

import (
	"sort"

	"github.com/jonathan/animelist/internal/db"
)

// TagCount is how many watchlist anime carry a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes a watchlist.
type Stats struct {
	TotalAnime       int        `json:"total_anime_watched"`
	AverageLength    float64    `json:"average_length"`
	MostCommonGenres []TagCount `json:"most_common_genres"`
}

// ComputeStats summarizes anime. Unknown episode counts count as zero. Tags
// are sorted by count descending, then by first appearance.
func ComputeStats(anime []db.Anime) Stats {
	stats := Stats{TotalAnime: len(anime), MostCommonGenres: []TagCount{}}
	if len(anime) == 0 {
		return stats
	}

	var episodes int
	index := make(map[string]int)
	for _, a := range anime {
		if a.EpisodeCount != nil {
			episodes += *a.EpisodeCount
		}
		for _, tag := range a.Tags {
			i, ok := index[tag]
			if !ok {
				i = len(stats.MostCommonGenres)
				index[tag] = i
				stats.MostCommonGenres = append(stats.MostCommonGenres, TagCount{Tag: tag})
			}
			stats.MostCommonGenres[i].Count++
		}
	}
	stats.AverageLength = float64(episodes) / float64(len(anime))

	sort.SliceStable(stats.MostCommonGenres, func(a, b int) bool {
		return stats.MostCommonGenres[a].Count > stats.MostCommonGenres[b].Count
	})
	return stats
}
