package retrieval

import (
	"math"

	"github.com/siherrmann/legalrag/database/memory"
	"github.com/siherrmann/legalrag/model"
)

// MaximalMarginalRelevance selects k candidates, each time taking the one
// maximizing lambda*sim(query) - (1-lambda)*max(sim(selected)). The first
// pick is the candidate most similar to the query.
func MaximalMarginalRelevance(query []float32, candidates []*model.Chunk, k int, lambda float64) []*model.Chunk {
	n := min(k, len(candidates))
	if n <= 0 {
		return []*model.Chunk{}
	}

	toQuery := make([]float64, len(candidates))
	best := 0
	for i, candidate := range candidates {
		toQuery[i] = memory.CosineSimilarity(query, candidate.Embedding)
		if toQuery[i] > toQuery[best] {
			best = i
		}
	}

	selected := []int{best}
	picked := map[int]bool{best: true}
	// redundancy holds the highest similarity of each candidate to the selection.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	for len(selected) < n {
		last := candidates[selected[len(selected)-1]]
		next, nextScore := -1, math.Inf(-1)
		for i, candidate := range candidates {
			if picked[i] {
				continue
			}
			redundancy[i] = math.Max(redundancy[i], memory.CosineSimilarity(candidate.Embedding, last.Embedding))
			score := lambda*toQuery[i] - (1-lambda)*redundancy[i]
			if score > nextScore {
				next, nextScore = i, score
			}
		}
		selected = append(selected, next)
		picked[next] = true
	}

	result := make([]*model.Chunk, len(selected))
	for i, idx := range selected {
		result[i] = candidates[idx]
	}
	return result
}
