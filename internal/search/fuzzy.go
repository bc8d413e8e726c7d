// Package search implements fuzzy title search over the catalog snapshot.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/jonathan/animelist/internal/catalog"
)

// Ratio scores the similarity of two strings from 0 to 100 using the
// Levenshtein distance over lowercased runes.
func Ratio(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(dist)/float64(maxLen))
}

// Hit is a matched catalog item and the best title score that selected it.
// Items added only by the alternate-title substring pass carry score 0.
type Hit struct {
	Item  catalog.Item `json:"item"`
	Score float64      `json:"score"`
}

// Page is one window of search hits.
type Page struct {
	Hits  []Hit `json:"hits"`
	Total int   `json:"total"`
}

type candidate struct {
	item  int
	score float64
}

// Match searches items for query and returns hits[offset:offset+limit].
//
// Every primary title and then every alternate title is scored with Ratio.
// The best offset+limit titles are resolved to their items. Items whose
// alternate titles contain the query, ignoring case, are appended in catalog
// order. Hits are then deduplicated by lowercase primary title keeping the
// first. Total counts the deduplicated hits, so it can exceed the number of
// fuzzy candidates when the substring pass adds items. A non-positive limit
// yields an empty page.
func Match(items []catalog.Item, query string, limit, offset int) Page {
	if limit <= 0 || len(items) == 0 {
		return Page{}
	}
	if offset < 0 {
		offset = 0
	}

	cands := make([]candidate, 0, len(items))
	for i, it := range items {
		cands = append(cands, candidate{item: i, score: Ratio(query, it.Title)})
	}
	for i, it := range items {
		for _, t := range it.ExtraTitles {
			cands = append(cands, candidate{item: i, score: Ratio(query, t)})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].score > cands[b].score })
	if window := offset + limit; len(cands) > window {
		cands = cands[:window]
	}

	hits := make([]Hit, 0, len(cands))
	for _, c := range cands {
		hits = append(hits, Hit{Item: items[c.item], Score: c.score})
	}

	needle := strings.ToLower(query)
	if needle != "" {
		for _, it := range items {
			for _, t := range it.ExtraTitles {
				if strings.Contains(strings.ToLower(t), needle) {
					hits = append(hits, Hit{Item: it})
					break
				}
			}
		}
	}

	hits = dedupe(hits)
	page := Page{Total: len(hits)}
	if offset >= len(hits) {
		return page
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	page.Hits = hits[offset:end]
	return page
}

func dedupe(hits []Hit) []Hit {
	seen := make(map[string]struct{}, len(hits))
	out := hits[:0]
	for _, h := range hits {
		key := strings.ToLower(h.Item.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
