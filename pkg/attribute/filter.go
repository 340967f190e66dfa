// Package attribute decides which retrieved chunks plausibly informed a
// generated answer.
package attribute

import (
	"strings"
	"unicode"

	"github.com/docsetai/askdocs/internal/models"
)

// DefaultThreshold is deliberately low: the model paraphrases rather
// than quotes, so even a genuinely used chunk rarely scores high. The
// value is empirical and exposed as configuration, not a constant of
// the algorithm.
const DefaultThreshold = 0.13

// Filter cites the chunks whose text is similar enough to the answer.
type Filter struct {
	threshold float64
}

func New(threshold float64) *Filter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Filter{threshold: threshold}
}

func (f *Filter) Threshold() float64 {
	return f.threshold
}

// CitedSources returns the source names of chunks whose similarity
// ratio against the answer meets the threshold (boundary inclusive),
// deduplicated by source file and ordered by first occurrence among the
// retrieved chunks. An empty result means no confident source.
func (f *Filter) CitedSources(answer string, retrieved []models.RetrievalResult) []string {
	var sources []string
	seen := make(map[string]bool)

	for _, result := range retrieved {
		if Ratio(result.Chunk.Text, answer) < f.threshold {
			continue
		}
		if seen[result.Chunk.Source] {
			continue
		}
		seen[result.Chunk.Source] = true
		sources = append(sources, result.Chunk.Source)
	}

	return sources
}

// Ratio is a case-insensitive similarity measure in [0,1] based on the
// longest common subsequence of the two texts: 2*LCS / (len(a)+len(b)).
// Two empty strings are identical; one empty string matches nothing.
func Ratio(a, b string) float64 {
	ra := []rune(strings.Map(unicode.ToLower, a))
	rb := []rune(strings.Map(unicode.ToLower, b))

	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	return 2 * float64(lcs(ra, rb)) / float64(len(ra)+len(rb))
}

// lcs computes the longest-common-subsequence length with a two-row
// dynamic program.
func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}

	return prev[len(b)]
}
