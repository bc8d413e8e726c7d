package recommend

import "sort"

// Preference is one item the caller likes, with the caller's rating if any.
type Preference struct {
	ItemID int64
	Rating *int
}

// AggregateOptions controls how preferences are weighted.
type AggregateOptions struct {
	// RatingAware drops preferences rated below MinRating and weights the
	// rest by rating. Unrated preferences count as rating 0.
	RatingAware bool
	MinRating   int
}

// Composite is the weighted mean of the selected preference rows.
type Composite struct {
	Vector SparseVector
	// Selected holds the ids that contributed, in input order.
	Selected []int64
	Weights  []float64
	// Unresolved counts input ids with no row in the vector space.
	Unresolved int
}

// RatingWeight maps a 1-10 rating to a weight, floored at 0.01.
func RatingWeight(rating int) float64 {
	w := float64(rating-1) / 9
	if w < 0.01 {
		return 0.01
	}
	return w
}

// Aggregate builds the preference vector. The second return value is false
// when no preference resolved to a row, in which case no recommendation is
// possible. Repeated ids count once, using the first occurrence.
func Aggregate(space *VectorSpace, prefs []Preference, opts AggregateOptions) (*Composite, bool) {
	c := &Composite{}
	if space == nil {
		c.Unresolved = len(prefs)
		return c, false
	}

	seen := make(map[int64]struct{}, len(prefs))
	sums := make(map[int]float64)
	var total float64
	for _, p := range prefs {
		if _, dup := seen[p.ItemID]; dup {
			continue
		}
		seen[p.ItemID] = struct{}{}

		row, ok := space.RowIndex(p.ItemID)
		if !ok {
			c.Unresolved++
			continue
		}

		weight := 1.0
		if opts.RatingAware {
			rating := 0
			if p.Rating != nil {
				rating = *p.Rating
			}
			if rating < opts.MinRating {
				continue
			}
			weight = RatingWeight(rating)
		}

		vec := space.Row(row)
		for k, j := range vec.Indices {
			sums[j] += weight * vec.Values[k]
		}
		total += weight
		c.Selected = append(c.Selected, p.ItemID)
		c.Weights = append(c.Weights, weight)
	}

	if len(c.Selected) == 0 {
		return c, false
	}

	indices := make([]int, 0, len(sums))
	for j := range sums {
		indices = append(indices, j)
	}
	sort.Ints(indices)
	c.Vector = SparseVector{
		Indices: indices,
		Values:  make([]float64, len(indices)),
	}
	for k, j := range indices {
		c.Vector.Values[k] = sums[j] / total
	}
	return c, true
}
