package recommend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/animelist/internal/catalog"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and splits", "Mecha Robot-War", []string{"mecha", "robot", "war"}},
		{"drops stop words", "the war of the worlds", []string{"war", "worlds"}},
		{"drops single runes", "a b c tv 1 24", []string{"tv", "24"}},
		{"keeps underscores", "slice_of_life", []string{"slice_of_life"}},
		{"unicode letters", "Shingeki no Kyojin 進撃", []string{"shingeki", "kyojin", "進撃"}},
		{"empty", "", nil},
		{"only punctuation", "!!! ... ???", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func sampleItems() []catalog.Item {
	return []catalog.Item{
		{ID: 1, Title: "One", Descriptor: "mecha robot war", Rating: 8},
		{ID: 2, Title: "Two", Descriptor: "mecha robot battle", Rating: 7},
		{ID: 3, Title: "Three", Descriptor: "romance school drama", Rating: 6},
	}
}

func TestBuildVectorSpace_Shape(t *testing.T) {
	space := BuildVectorSpace(sampleItems())

	assert.Equal(t, 3, space.Len())
	assert.Equal(t, []string{"battle", "drama", "mecha", "robot", "romance", "school", "war"}, space.Vocabulary)
	assert.Equal(t, space.Dim(), len(space.IDF))

	for i := 0; i < space.Len(); i++ {
		assert.InDelta(t, 1.0, space.Row(i).Norm(), 1e-9)
	}

	row, ok := space.RowIndex(3)
	require.True(t, ok)
	assert.Equal(t, 2, row)
	_, ok = space.RowIndex(99)
	assert.False(t, ok)
}

func TestBuildVectorSpace_SmoothIDF(t *testing.T) {
	space := BuildVectorSpace(sampleItems())

	idf := map[string]float64{}
	for j, term := range space.Vocabulary {
		idf[term] = space.IDF[j]
	}
	// mecha appears in 2 of 3 documents, war in 1.
	assert.InDelta(t, math.Log(4.0/3.0)+1, idf["mecha"], 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, idf["war"], 1e-12)
	assert.Greater(t, idf["war"], idf["mecha"])
}

func TestBuildVectorSpace_RawCounts(t *testing.T) {
	space := BuildVectorSpace([]catalog.Item{
		{ID: 1, Descriptor: "robot robot war"},
		{ID: 2, Descriptor: "robot war"},
	})
	row := space.Row(0)
	require.Len(t, row.Values, 2)
	// Both terms share idf 1, so weights are proportional to counts.
	assert.InDelta(t, 2*row.Values[1], row.Values[0], 1e-12)
}

func TestBuildVectorSpace_EmptyDescriptor(t *testing.T) {
	space := BuildVectorSpace([]catalog.Item{
		{ID: 1, Descriptor: ""},
		{ID: 2, Descriptor: "robot"},
	})
	assert.True(t, space.Row(0).IsZero())
	assert.Equal(t, 0.0, space.Row(0).Norm())
	assert.Equal(t, 2, space.Len())
}

func TestBuildVectorSpace_EmptyCatalog(t *testing.T) {
	space := BuildVectorSpace(nil)
	assert.Equal(t, 0, space.Len())
	assert.Equal(t, 0, space.Dim())
}

func TestSparseVector_Dot(t *testing.T) {
	a := SparseVector{Indices: []int{0, 2, 5}, Values: []float64{1, 2, 3}}
	b := SparseVector{Indices: []int{2, 3, 5}, Values: []float64{4, 1, 2}}
	assert.Equal(t, 2*4.0+3*2.0, a.Dot(b))
	assert.Equal(t, 0.0, a.Dot(SparseVector{}))
}
