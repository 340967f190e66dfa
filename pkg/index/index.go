// Package index owns the vector index lifecycle: building from the
// corpus, snapshot persistence, staleness pruning and retrieval.
package index

import (
	"math"
	"sort"

	"github.com/docsetai/askdocs/internal/models"
)

// Index is an immutable snapshot of (chunk, vector) pairs. Rebuilds
// produce a fresh Index and publish it with a single pointer swap, so a
// retrieval in flight always sees one consistent snapshot.
type Index struct {
	dimension int
	chunks    []models.Chunk
	vectors   [][]float32
}

func newIndex(chunks []models.Chunk, vectors [][]float32) *Index {
	ix := &Index{chunks: chunks, vectors: vectors}
	if len(vectors) > 0 {
		ix.dimension = len(vectors[0])
	}
	return ix
}

func (ix *Index) Len() int {
	return len(ix.chunks)
}

func (ix *Index) Dimension() int {
	return ix.dimension
}

// Sources returns the unique source document names represented in the
// index, in first-occurrence order.
func (ix *Index) Sources() []string {
	var sources []string
	seen := make(map[string]bool)
	for _, ch := range ix.chunks {
		if !seen[ch.Source] {
			seen[ch.Source] = true
			sources = append(sources, ch.Source)
		}
	}
	return sources
}

// Search returns the k nearest chunks by cosine similarity, descending.
// Equal scores keep ingestion order, earliest first.
func (ix *Index) Search(query []float32, k int) []models.RetrievalResult {
	results := make([]models.RetrievalResult, 0, len(ix.chunks))
	for i, ch := range ix.chunks {
		results = append(results, models.RetrievalResult{
			Chunk: ch,
			Score: cosine(query, ix.vectors[i]),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

func (ix *Index) snapshot() *models.Snapshot {
	return &models.Snapshot{
		Dimension: ix.dimension,
		Chunks:    ix.chunks,
		Vectors:   ix.vectors,
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
