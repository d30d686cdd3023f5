package retrieval

import (
	"context"
	"errors"
	"sort"

	"design-workers/internal/governance"
	"design-workers/internal/models"
)

type candidate struct {
	obj        models.KnowledgeObject
	similarity float64
}

// candidates prefers semantic search and drops to tag matching when the
// embedder is missing or fails. Both paths apply the governance filter.
func (e *Engine) candidates(ctx context.Context, prompt string) ([]candidate, error) {
	if e.embedder != nil {
		cands, err := e.semanticCandidates(ctx, prompt)
		if err == nil {
			return cands, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		e.logger.Warn("semantic search failed, using tag search", map[string]interface{}{"error": err})
	}
	return e.tagCandidates(ctx, prompt)
}

func (e *Engine) semanticCandidates(ctx context.Context, prompt string) ([]candidate, error) {
	vecs, err := e.embedder.Embed(ctx, []string{prompt})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, errors.New("empty prompt embedding")
	}
	query := vecs[0]

	objs, err := e.store.ListActiveWithEmbeddings(ctx, e.cfg.MinQualityScore)
	if err != nil {
		return nil, err
	}

	var out []candidate
	for _, o := range governance.Filter(objs, e.cfg.MinQualityScore) {
		if len(o.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(query, o.Embedding)
		if sim > e.cfg.SimilarityThreshold {
			out = append(out, candidate{obj: o, similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].similarity > out[j].similarity })
	if len(out) > e.cfg.CandidateLimit {
		out = out[:e.cfg.CandidateLimit]
	}
	return out, nil
}

func (e *Engine) tagCandidates(ctx context.Context, prompt string) ([]candidate, error) {
	tokens := tokenSet(prompt)

	var (
		objs []models.KnowledgeObject
		err  error
	)
	if e.index != nil {
		terms := make([]string, 0, len(tokens))
		for t := range tokens {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		objs, err = e.index.SearchByTags(ctx, terms, e.cfg.MinQualityScore, e.cfg.CandidateLimit)
		if err != nil {
			e.logger.Warn("tag index search failed, scanning store", map[string]interface{}{"error": err})
			objs = nil
		}
	}
	if objs == nil {
		// The scan is unbounded: tag similarity is only known after loading,
		// so a quality cut here would hide well-matching objects.
		objs, err = e.store.ListActive(ctx, e.cfg.MinQualityScore, 0)
		if err != nil {
			return nil, err
		}
	}

	filtered := governance.Filter(objs, e.cfg.MinQualityScore)
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].QualityScore > filtered[j].QualityScore })

	out := make([]candidate, 0, len(filtered))
	for _, o := range filtered {
		out = append(out, candidate{obj: o, similarity: TagSimilarity(o.Tags, tokens)})
	}
	return out, nil
}
