package recommend

import (
	"sort"

	"github.com/jonathan/animelist/internal/catalog"
)

// Scored is a catalog item with its similarity to the preference vector.
type Scored struct {
	Item  catalog.Item `json:"item"`
	Score float64      `json:"score"`
}

// RankOptions bounds and filters a ranking.
type RankOptions struct {
	Limit   int
	Exclude map[int64]struct{}
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either has zero magnitude.
func CosineSimilarity(a, b SparseVector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return a.Dot(b) / (na * nb)
}

// Rank scores every row against query and returns the best Limit items not
// in Exclude. Equal scores keep row order. A non-positive Limit yields nil.
func Rank(space *VectorSpace, query SparseVector, opts RankOptions) []Scored {
	if opts.Limit <= 0 || space == nil || space.Len() == 0 {
		return nil
	}

	scored := make([]Scored, 0, space.Len())
	for i := 0; i < space.Len(); i++ {
		item := space.Items[i]
		if _, skip := opts.Exclude[item.ID]; skip {
			continue
		}
		scored = append(scored, Scored{Item: item, Score: CosineSimilarity(query, space.Row(i))})
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })

	if len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored
}
