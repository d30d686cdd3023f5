package retrieval

import (
	"math"
	"testing"
	"time"

	"design-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeScore(t *testing.T) {
	got := ComputeScore(0.8, 0.6, 0.9, 0.7)
	assert.InDelta(t, 0.67, got, 1e-9)
}

func TestPreferenceBoost(t *testing.T) {
	obj := models.KnowledgeObject{Kind: models.KindMotif, Tags: []string{"Leaf", "nature"}}

	tests := []struct {
		name   string
		user   models.PreferenceWeights
		global models.PreferenceWeights
		want   float64
	}{
		{
			name: "no preferences",
			want: 0,
		},
		{
			name: "user tags and kind",
			user: models.PreferenceWeights{
				Tags:  map[string]float64{"leaf": 0.2, "nature": 0.1},
				Kinds: map[string]float64{"motif": 0.3},
			},
			want: 0.6,
		},
		{
			name:   "global counts half",
			user:   models.PreferenceWeights{Kinds: map[string]float64{"motif": 0.2}},
			global: models.PreferenceWeights{Tags: map[string]float64{"leaf": 0.4}},
			want:   0.4,
		},
		{
			name: "capped",
			user: models.PreferenceWeights{
				Tags:  map[string]float64{"leaf": 3},
				Kinds: map[string]float64{"motif": 2},
			},
			global: models.PreferenceWeights{Kinds: map[string]float64{"motif": 5}},
			want:   MaxPreferenceBoost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreferenceBoost(obj, tt.user, tt.global)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.LessOrEqual(t, got, MaxPreferenceBoost)
		})
	}
}

func TestFreshnessPenalty(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	threshold := 120 * 24 * time.Hour
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name      string
		updatedAt *time.Time
		want      float64
	}{
		{"fresh", at(24 * time.Hour), 0},
		{"exactly at threshold", at(threshold), 0},
		{"one and a half thresholds", at(threshold * 3 / 2), 0.5},
		{"twice the threshold", at(2 * threshold), 1},
		{"far past", at(10 * threshold), 1},
		{"missing timestamp", nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FreshnessPenalty(tt.updatedAt, now, threshold), 1e-9)
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestTagSimilarity(t *testing.T) {
	tokens := tokenSet("Scattered stars and a Circle")

	assert.InDelta(t, 1, TagSimilarity([]string{"star", "Circle"}, tokens), 1e-9)
	assert.InDelta(t, 0.5, TagSimilarity([]string{"stars", "square"}, tokens), 1e-9)
	assert.Equal(t, 0.0, TagSimilarity(nil, tokens))
}

func TestScorer_Score(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)

	cands := []candidate{
		{obj: models.KnowledgeObject{ID: "low", Kind: models.KindMotif, QualityScore: 0.5, UpdatedAt: &recent}, similarity: 0.4},
		{obj: models.KnowledgeObject{ID: "high", Kind: models.KindMotif, QualityScore: 0.9, UpdatedAt: &recent}, similarity: 0.9},
		{obj: models.KnowledgeObject{ID: "stale", Kind: models.KindMotif, QualityScore: 0.9}, similarity: 0.9},
	}

	s := Scorer{Threshold: 120 * 24 * time.Hour, Now: func() time.Time { return now }}
	ranked := s.Score(cands)
	require.Len(t, ranked, 3)

	assert.Equal(t, "high", ranked[0].ID)
	assert.Equal(t, "stale", ranked[1].ID)
	assert.Equal(t, "low", ranked[2].ID)
	assert.InDelta(t, 0.6*0.9+0.2*0.9, ranked[0].Score, 1e-9)
	assert.Equal(t, 1.0, ranked[1].Freshness)
	for _, r := range ranked {
		assert.False(t, math.IsNaN(r.Score))
	}
}
