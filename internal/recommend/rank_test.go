package recommend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/animelist/internal/catalog"
)

func intPtr(v int) *int { return &v }

func TestRatingWeight(t *testing.T) {
	assert.Equal(t, 0.01, RatingWeight(1))
	assert.Equal(t, 0.01, RatingWeight(0))
	assert.InDelta(t, 1.0, RatingWeight(10), 1e-12)
	assert.InDelta(t, 7.0/9.0, RatingWeight(8), 1e-12)
}

func TestAggregate_Unweighted(t *testing.T) {
	space := BuildVectorSpace(sampleItems())

	c, ok := Aggregate(space, []Preference{{ItemID: 1}, {ItemID: 2}, {ItemID: 42}}, AggregateOptions{})
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, c.Selected)
	assert.Equal(t, []float64{1, 1}, c.Weights)
	assert.Equal(t, 1, c.Unresolved)

	for _, j := range c.Vector.Indices {
		assert.Less(t, j, space.Dim())
	}
	r1, r2 := space.Row(0), space.Row(1)
	want := (r1.Dot(SparseVector{Indices: []int{2}, Values: []float64{1}}) +
		r2.Dot(SparseVector{Indices: []int{2}, Values: []float64{1}})) / 2
	got := c.Vector.Dot(SparseVector{Indices: []int{2}, Values: []float64{1}})
	assert.InDelta(t, want, got, 1e-12)
}

func TestAggregate_RatingAware(t *testing.T) {
	space := BuildVectorSpace(sampleItems())
	opts := AggregateOptions{RatingAware: true, MinRating: 4}

	c, ok := Aggregate(space, []Preference{
		{ItemID: 1, Rating: intPtr(10)},
		{ItemID: 2, Rating: intPtr(3)},
		{ItemID: 3},
	}, opts)
	require.True(t, ok)
	assert.Equal(t, []int64{1}, c.Selected)
	assert.Equal(t, []float64{1}, c.Weights)
}

func TestAggregate_AllBelowThreshold(t *testing.T) {
	space := BuildVectorSpace(sampleItems())

	_, ok := Aggregate(space, []Preference{
		{ItemID: 1, Rating: intPtr(2)},
		{ItemID: 2, Rating: intPtr(3)},
	}, AggregateOptions{RatingAware: true, MinRating: 4})
	assert.False(t, ok)
}

func TestAggregate_NoResolvableInput(t *testing.T) {
	space := BuildVectorSpace(sampleItems())

	c, ok := Aggregate(space, []Preference{{ItemID: 7}, {ItemID: 8}}, AggregateOptions{})
	assert.False(t, ok)
	assert.Equal(t, 2, c.Unresolved)

	_, ok = Aggregate(BuildVectorSpace(nil), []Preference{{ItemID: 1}}, AggregateOptions{})
	assert.False(t, ok)
}

func TestAggregate_DuplicateIDsCountOnce(t *testing.T) {
	space := BuildVectorSpace(sampleItems())

	c, ok := Aggregate(space, []Preference{{ItemID: 1}, {ItemID: 1}, {ItemID: 3}}, AggregateOptions{})
	require.True(t, ok)
	assert.Equal(t, []int64{1, 3}, c.Selected)
}

func TestCosineSimilarity(t *testing.T) {
	v := SparseVector{Indices: []int{0, 3}, Values: []float64{0.3, 4}}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-12)

	zero := SparseVector{}
	s := CosineSimilarity(v, zero)
	assert.Equal(t, 0.0, s)
	assert.False(t, math.IsNaN(s))
	assert.Equal(t, 0.0, CosineSimilarity(zero, zero))

	orth := SparseVector{Indices: []int{1}, Values: []float64{2}}
	assert.Equal(t, 0.0, CosineSimilarity(v, orth))
}

func TestRank_MechaOverRomance(t *testing.T) {
	space := BuildVectorSpace(sampleItems())
	c, ok := Aggregate(space, []Preference{{ItemID: 1, Rating: intPtr(8)}}, AggregateOptions{RatingAware: true, MinRating: 4})
	require.True(t, ok)

	got := Rank(space, c.Vector, RankOptions{Limit: 2, Exclude: map[int64]struct{}{1: {}}})
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Item.ID)
	assert.Equal(t, int64(3), got[1].Item.ID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRank_ExcludesInputs(t *testing.T) {
	items := []catalog.Item{
		{ID: 10, Descriptor: "space pirates"},
		{ID: 11, Descriptor: "space pirates"},
		{ID: 12, Descriptor: "space opera"},
		{ID: 13, Descriptor: "cooking"},
	}
	space := BuildVectorSpace(items)
	for _, input := range []int64{10, 11, 12, 13} {
		c, ok := Aggregate(space, []Preference{{ItemID: input}}, AggregateOptions{})
		require.True(t, ok)
		got := Rank(space, c.Vector, RankOptions{Limit: 10, Exclude: map[int64]struct{}{input: {}}})
		for _, s := range got {
			assert.NotEqual(t, input, s.Item.ID)
		}
		assert.Len(t, got, 3)
	}
}

func TestRank_TiesKeepRowOrder(t *testing.T) {
	items := []catalog.Item{
		{ID: 1, Descriptor: "alpha"},
		{ID: 2, Descriptor: "beta"},
		{ID: 3, Descriptor: "gamma"},
	}
	space := BuildVectorSpace(items)
	query := SparseVector{Indices: []int{0}, Values: []float64{1}} // "alpha"

	got := Rank(space, query, RankOptions{Limit: 3})
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Item.ID)
	assert.Equal(t, int64(2), got[1].Item.ID)
	assert.Equal(t, int64(3), got[2].Item.ID)
}

func TestRank_Limits(t *testing.T) {
	space := BuildVectorSpace(sampleItems())
	query := space.Row(0)

	assert.Empty(t, Rank(space, query, RankOptions{Limit: 0}))
	assert.Empty(t, Rank(space, query, RankOptions{Limit: -1}))
	assert.Len(t, Rank(space, query, RankOptions{Limit: 1}), 1)
	assert.Len(t, Rank(space, query, RankOptions{Limit: 50}), 3)
	assert.Empty(t, Rank(BuildVectorSpace(nil), query, RankOptions{Limit: 5}))
}
