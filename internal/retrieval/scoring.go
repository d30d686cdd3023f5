package retrieval

import (
	"math"
	"sort"
	"strings"
	"time"

	"design-workers/internal/governance"
	"design-workers/internal/models"
)

const (
	weightSimilarity = 0.6
	weightPreference = 0.2
	weightQuality    = 0.2
	weightFreshness  = 0.1

	// MaxPreferenceBoost caps the combined user and global preference signal.
	MaxPreferenceBoost = 1.5
)

// ComputeScore is the ranking formula:
// 0.6*similarity + 0.2*preference + 0.2*quality - 0.1*freshnessPenalty.
func ComputeScore(similarity, preference, quality, freshnessPenalty float64) float64 {
	return weightSimilarity*similarity +
		weightPreference*preference +
		weightQuality*quality -
		weightFreshness*freshnessPenalty
}

// PreferenceBoost combines user weights with half the global weights for the
// object's tags and kind, capped at MaxPreferenceBoost.
func PreferenceBoost(obj models.KnowledgeObject, user, global models.PreferenceWeights) float64 {
	userScore := tagWeight(obj.Tags, user.Tags) + user.Kinds[string(obj.Kind)]
	globalScore := tagWeight(obj.Tags, global.Tags) + global.Kinds[string(obj.Kind)]
	return math.Min(MaxPreferenceBoost, userScore+0.5*globalScore)
}

func tagWeight(tags []string, weights map[string]float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range tags {
		total += weights[strings.ToLower(t)]
	}
	return total
}

// FreshnessPenalty is 0 inside the threshold window, then grows linearly to 1
// at twice the threshold. A missing timestamp gets the full penalty.
func FreshnessPenalty(updatedAt *time.Time, now time.Time, threshold time.Duration) float64 {
	if updatedAt == nil || threshold <= 0 {
		return 1
	}
	age := now.Sub(*updatedAt)
	if age <= threshold {
		return 0
	}
	return math.Min(1, float64(age)/float64(threshold)-1)
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TagSimilarity is the fraction of the object's tags that appear among the
// prompt's words.
func TagSimilarity(tags []string, promptTokens map[string]bool) float64 {
	if len(tags) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tags {
		if promptTokens[strings.ToLower(t)] {
			hits++
		}
	}
	return float64(hits) / float64(len(tags))
}

func tokenSet(prompt string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range governance.Tokenize(prompt) {
		set[w] = true
		if strings.HasSuffix(w, "s") && len(w) > 3 {
			set[strings.TrimSuffix(w, "s")] = true
		}
	}
	return set
}

// Scorer ranks candidates against one user's preferences.
type Scorer struct {
	User      models.PreferenceWeights
	Global    models.PreferenceWeights
	Threshold time.Duration
	Now       func() time.Time
}

// Score fills the ranking signals for each candidate and sorts by score,
// highest first. Ties keep candidate order.
func (s Scorer) Score(candidates []candidate) []models.ScoredObject {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now()

	out := make([]models.ScoredObject, 0, len(candidates))
	for _, c := range candidates {
		pref := PreferenceBoost(c.obj, s.User, s.Global)
		fresh := FreshnessPenalty(c.obj.UpdatedAt, t, s.Threshold)
		out = append(out, models.ScoredObject{
			KnowledgeObject: c.obj,
			Similarity:      c.similarity,
			PreferenceBoost: pref,
			Quality:         c.obj.QualityScore,
			Freshness:       fresh,
			Score:           ComputeScore(c.similarity, pref, c.obj.QualityScore, fresh),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
