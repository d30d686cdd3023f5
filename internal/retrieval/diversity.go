package retrieval

import (
	"strings"

	"design-workers/internal/models"
)

const (
	mmrRelevance = 0.7
	mmrDiversity = 0.3
)

// JaccardSimilarity compares lower-cased tag sets. Two empty sets are
// identical.
func JaccardSimilarity(a, b []string) float64 {
	setA := lowerSet(a)
	setB := lowerSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func lowerSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = true
	}
	return set
}

// SelectDiverse picks up to k objects by maximal marginal relevance. The first
// pick is the highest score; each following pick maximises
// 0.7*score + 0.3*min(1 - jaccard(candidate, selected)).
func SelectDiverse(objs []models.ScoredObject, k int) []models.ScoredObject {
	if k <= 0 || len(objs) == 0 {
		return nil
	}

	remaining := make([]models.ScoredObject, len(objs))
	copy(remaining, objs)

	best := 0
	for i := range remaining {
		if remaining[i].Score > remaining[best].Score {
			best = i
		}
	}
	selected := []models.ScoredObject{remaining[best]}
	remaining = append(remaining[:best], remaining[best+1:]...)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx, bestVal := -1, 0.0
		for i, cand := range remaining {
			minDist := 1.0
			for _, s := range selected {
				if d := 1 - JaccardSimilarity(cand.Tags, s.Tags); d < minDist {
					minDist = d
				}
			}
			val := mmrRelevance*cand.Score + mmrDiversity*minDist
			if bestIdx < 0 || val > bestVal {
				bestIdx, bestVal = i, val
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// topOne returns the best scored object, or false when there is none.
func topOne(objs []models.ScoredObject) (models.ScoredObject, bool) {
	if len(objs) == 0 {
		return models.ScoredObject{}, false
	}
	best := 0
	for i := range objs {
		if objs[i].Score > objs[best].Score {
			best = i
		}
	}
	return objs[best], true
}
