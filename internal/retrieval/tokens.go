package retrieval

import (
	"encoding/json"
	"time"

	"design-workers/internal/models"
)

const charsPerToken = 4

// EstimateTokens approximates prompt tokens as one per four characters of
// the bundle's JSON form.
func EstimateTokens(v interface{}) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return (len(raw) + charsPerToken - 1) / charsPerToken
}

// Optimize trims the bundle until it fits budget: glossary entries go first,
// then motifs, then reusable components, always from the tail. The style pack
// and few-shot examples are kept. Returns the final estimate.
func Optimize(g *models.GroundingData, budget int) int {
	tokens := EstimateTokens(g)
	if budget <= 0 {
		return tokens
	}
	for tokens > budget && len(g.Glossary) > 0 {
		g.Glossary = g.Glossary[:len(g.Glossary)-1]
		tokens = EstimateTokens(g)
	}
	for tokens > budget && len(g.Motifs) > 0 {
		g.Motifs = g.Motifs[:len(g.Motifs)-1]
		tokens = EstimateTokens(g)
	}
	for tokens > budget && len(g.Components) > 0 {
		g.Components = g.Components[:len(g.Components)-1]
		tokens = EstimateTokens(g)
	}
	return tokens
}

// CacheTTL tiers cache lifetime by how expensive the bundle was to build.
func CacheTTL(tokens int) time.Duration {
	switch {
	case tokens > 2000:
		return 15 * time.Minute
	case tokens > 1000:
		return 10 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// EstimateCost prices tokens at costPer1K.
func EstimateCost(tokens int, costPer1K float64) float64 {
	return float64(tokens) / 1000 * costPer1K
}
