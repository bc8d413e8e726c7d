// Package recommend turns catalog descriptors into TF-IDF vectors and ranks
// catalog items by cosine similarity to a user's preference vector.
package recommend

import (
	"math"
	"sort"

	"github.com/jonathan/animelist/internal/catalog"
)

// SparseVector holds non-zero weights keyed by vocabulary column.
// Indices are strictly increasing.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Norm returns the Euclidean magnitude.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of two sparse vectors.
func (v SparseVector) Dot(o SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// IsZero reports whether the vector has no non-zero weight.
func (v SparseVector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// VectorSpace is the TF-IDF matrix of one catalog snapshot. Row i belongs to
// Items[i].
type VectorSpace struct {
	Items      []catalog.Item
	Vocabulary []string
	IDF        []float64

	rows  []SparseVector
	index map[int64]int
}

// BuildVectorSpace fits and transforms the descriptors of items.
//
// Term frequency is the raw count, idf is ln((1+n)/(1+df))+1 and every
// non-empty row is scaled to unit length. Vocabulary columns are in
// lexicographic order.
func BuildVectorSpace(items []catalog.Item) *VectorSpace {
	n := len(items)
	docs := make([]map[string]int, n)
	df := make(map[string]int)
	for i, it := range items {
		counts := make(map[string]int)
		for _, term := range Tokenize(it.Descriptor) {
			counts[term]++
		}
		for term := range counts {
			df[term]++
		}
		docs[i] = counts
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)

	column := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for j, term := range vocab {
		column[term] = j
		idf[j] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	rows := make([]SparseVector, n)
	index := make(map[int64]int, n)
	for i, counts := range docs {
		rows[i] = weightRow(counts, column, idf)
		if _, dup := index[items[i].ID]; !dup {
			index[items[i].ID] = i
		}
	}

	return &VectorSpace{
		Items:      items,
		Vocabulary: vocab,
		IDF:        idf,
		rows:       rows,
		index:      index,
	}
}

func weightRow(counts map[string]int, column map[string]int, idf []float64) SparseVector {
	if len(counts) == 0 {
		return SparseVector{}
	}
	type cell struct {
		col   int
		count int
	}
	cells := make([]cell, 0, len(counts))
	for term, c := range counts {
		cells = append(cells, cell{col: column[term], count: c})
	}
	sort.Slice(cells, func(a, b int) bool { return cells[a].col < cells[b].col })

	row := SparseVector{
		Indices: make([]int, len(cells)),
		Values:  make([]float64, len(cells)),
	}
	for k, c := range cells {
		row.Indices[k] = c.col
		row.Values[k] = float64(c.count) * idf[c.col]
	}
	if norm := row.Norm(); norm > 0 {
		for k := range row.Values {
			row.Values[k] /= norm
		}
	}
	return row
}

// Len returns the number of rows.
func (s *VectorSpace) Len() int { return len(s.rows) }

// Dim returns the vocabulary size.
func (s *VectorSpace) Dim() int { return len(s.Vocabulary) }

// Row returns the vector of row i.
func (s *VectorSpace) Row(i int) SparseVector { return s.rows[i] }

// RowIndex resolves a catalog id to its row.
func (s *VectorSpace) RowIndex(id int64) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}
