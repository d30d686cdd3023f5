package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	objects     []models.KnowledgeObject
	prefs       map[string]models.PreferenceWeights
	listErr     error
	prefErr     error
	semanticHit int
	activeHit   int
	lastLimit   int
}

func (f *fakeStore) ListActiveWithEmbeddings(_ context.Context, _ float64) ([]models.KnowledgeObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.semanticHit++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.objects, nil
}

func (f *fakeStore) ListActive(_ context.Context, _ float64, limit int) ([]models.KnowledgeObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeHit++
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && len(f.objects) > limit {
		return f.objects[:limit], nil
	}
	return f.objects, nil
}

func (f *fakeStore) Preferences(_ context.Context, userID string) (models.PreferenceWeights, error) {
	if f.prefErr != nil {
		return models.PreferenceWeights{}, f.prefErr
	}
	return f.prefs[userID], nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeIndex struct {
	objs  []models.KnowledgeObject
	err   error
	terms []string
}

func (f *fakeIndex) SearchByTags(_ context.Context, terms []string, _ float64, _ int) ([]models.KnowledgeObject, error) {
	f.terms = terms
	return f.objs, f.err
}

var testNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func object(id string, kind models.KnowledgeKind, body models.KnowledgeBody, emb []float32, tags ...string) models.KnowledgeObject {
	updated := testNow.Add(-24 * time.Hour)
	return models.KnowledgeObject{
		ID:           id,
		Kind:         kind,
		Title:        id,
		Body:         body,
		Tags:         tags,
		Version:      "1.0.0",
		Status:       models.StatusActive,
		QualityScore: 0.8,
		Embedding:    emb,
		UpdatedAt:    &updated,
	}
}

func corpus() []models.KnowledgeObject {
	near := []float32{1, 0}
	far := []float32{0, 1}
	return []models.KnowledgeObject{
		object("mono", models.KindStylePack, models.StylePackBody{Name: "mono", Palette: []string{"#111111"}}, near, "minimal"),
		object("leaf", models.KindMotif, models.MotifBody{
			Name:      "leaf",
			Primitive: "path",
			Components: []models.ReusableComponent{
				{ID: "leaf-1", Type: "path", Element: "path", Attributes: map[string]interface{}{"d": "M0 0 L10 10"}},
			},
		}, near, "leaf", "nature"),
		object("circle", models.KindMotif, models.MotifBody{Name: "circle", Primitive: "circle"}, near, "circle", "geometric"),
		object("stroke", models.KindGlossary, models.GlossaryBody{Term: "stroke", Definition: "outline of a shape"}, near, "stroke"),
		object("example", models.KindFewshot, models.FewshotBody{Prompt: "leaves"}, near, "leaf"),
		object("rule", models.KindRule, models.RuleBody{Rule: "keep margins"}, near, "layout"),
		object("far-motif", models.KindMotif, models.MotifBody{Name: "far"}, far, "far"),
		object("political", models.KindMotif, models.MotifBody{Name: "election badge"}, near, "badge"),
	}
}

func newTestEngine(t *testing.T, store KnowledgeSource, emb Embedder, idx TagSearcher, rdb redis.Cmdable) *Engine {
	t.Helper()
	return NewEngine(Deps{
		Store:    store,
		Index:    idx,
		Embedder: emb,
		Redis:    rdb,
		Logger:   logger.NewTestLogger(t),
		Now:      func() time.Time { return testNow },
	}, DefaultConfig())
}

func TestEngine_Retrieve_Semantic(t *testing.T) {
	store := &fakeStore{objects: corpus()}
	e := newTestEngine(t, store, fakeEmbedder{vec: []float32{1, 0}}, nil, nil)

	g, err := e.Retrieve(context.Background(), "falling leaves", "u1")
	require.NoError(t, err)

	require.NotNil(t, g.StylePack)
	assert.Equal(t, "mono", g.StylePack.Name)
	assert.ElementsMatch(t, []string{"leaf", "circle"}, g.MotifNames())
	require.Len(t, g.Glossary, 1)
	assert.Equal(t, "stroke", g.Glossary[0].Term)
	require.Len(t, g.Fewshot, 1)
	require.Len(t, g.Components, 1)
	assert.Equal(t, "leaf", g.Components[0].Motif, "component inherits motif name")
	assert.Equal(t, 1, store.semanticHit)
	assert.Equal(t, 0, store.activeHit)
}

func TestEngine_Retrieve_EmbedderFailureUsesTags(t *testing.T) {
	store := &fakeStore{objects: corpus()}
	e := newTestEngine(t, store, fakeEmbedder{err: errors.New("provider down")}, nil, nil)

	g, err := e.Retrieve(context.Background(), "a leaf", "")
	require.NoError(t, err)

	assert.Equal(t, 0, store.semanticHit)
	assert.Equal(t, 1, store.activeHit)
	assert.NotContains(t, g.MotifNames(), "election badge")
	assert.Contains(t, g.MotifNames(), "leaf")
}

func TestEngine_Retrieve_TagIndex(t *testing.T) {
	store := &fakeStore{objects: corpus()}
	idx := &fakeIndex{objs: corpus()[1:3]}
	e := newTestEngine(t, store, nil, idx, nil)

	g, err := e.Retrieve(context.Background(), "Circle and leaf", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"and", "circle", "leaf"}, idx.terms)
	assert.Equal(t, 0, store.activeHit)
	assert.Nil(t, g.StylePack)
	assert.Len(t, g.Motifs, 2)
}

func TestEngine_Retrieve_TagIndexFailureScansStore(t *testing.T) {
	store := &fakeStore{objects: corpus()}
	idx := &fakeIndex{err: errors.New("index unavailable")}
	e := newTestEngine(t, store, nil, idx, nil)

	_, err := e.Retrieve(context.Background(), "leaf", "")
	require.NoError(t, err)
	assert.Equal(t, 1, store.activeHit)
}

func TestEngine_Retrieve_TagScanCoversWholeCorpus(t *testing.T) {
	// Sixty higher-quality objects sit ahead of the only relevant motif.
	var objs []models.KnowledgeObject
	for i := 0; i < 60; i++ {
		name := fmt.Sprintf("filler-%02d", i)
		o := object(name, models.KindMotif, models.MotifBody{Name: name}, nil, "filler")
		o.QualityScore = 0.9
		objs = append(objs, o)
	}
	leaf := object("leaf", models.KindMotif, models.MotifBody{Name: "leaf", Primitive: "path"}, nil, "leaf")
	leaf.QualityScore = 0.4
	objs = append(objs, leaf)

	store := &fakeStore{objects: objs}
	e := newTestEngine(t, store, nil, nil, nil)

	g, err := e.Retrieve(context.Background(), "a single leaf", "")
	require.NoError(t, err)

	assert.Equal(t, 0, store.lastLimit)
	require.NotEmpty(t, g.Motifs)
	assert.Equal(t, "leaf", g.Motifs[0].Name)
}

func TestEngine_Retrieve_StoreFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	e := newTestEngine(t, store, nil, nil, nil)

	_, err := e.Retrieve(context.Background(), "leaf", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRetrievalFailed))
}

func TestEngine_Retrieve_PreferenceFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{objects: corpus(), prefErr: errors.New("prefs down")}
	e := newTestEngine(t, store, fakeEmbedder{vec: []float32{1, 0}}, nil, nil)

	g, err := e.Retrieve(context.Background(), "leaf", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, g.Motifs)
}

func TestEngine_Retrieve_PreferencesShiftRanking(t *testing.T) {
	store := &fakeStore{
		objects: []models.KnowledgeObject{
			object("mono", models.KindStylePack, models.StylePackBody{Name: "mono"}, []float32{1, 0}, "minimal"),
			object("warm", models.KindStylePack, models.StylePackBody{Name: "warm"}, []float32{1, 0}, "autumn"),
		},
		prefs: map[string]models.PreferenceWeights{
			"u1": {Tags: map[string]float64{"autumn": 1}},
		},
	}
	e := newTestEngine(t, store, fakeEmbedder{vec: []float32{1, 0}}, nil, nil)

	g, err := e.Retrieve(context.Background(), "anything", "u1")
	require.NoError(t, err)
	require.NotNil(t, g.StylePack)
	assert.Equal(t, "warm", g.StylePack.Name)
}

func TestEngine_Retrieve_CachesAndRecordsUsage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := &fakeStore{objects: corpus()}
	e := newTestEngine(t, store, fakeEmbedder{vec: []float32{1, 0}}, nil, rdb)
	ctx := context.Background()

	first, err := e.Retrieve(ctx, "leaves", "u1")
	require.NoError(t, err)
	second, err := e.Retrieve(ctx, "leaves", "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.semanticHit, "second call is served from cache")
	assert.Equal(t, first.MotifNames(), second.MotifNames())

	key := CacheKey("leaves", "u1")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 5*time.Minute, mr.TTL(key))

	assert.Equal(t, "1", mr.HGet(UsageKey, "cache_hits"))
	assert.Equal(t, "1", mr.HGet(UsageKey, "cache_misses"))
	assert.NotEqual(t, "", mr.HGet(UsageKey, "tokens"))
}

func TestEngine_Retrieve_CacheDownStillServes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	store := &fakeStore{objects: corpus()}
	e := newTestEngine(t, store, fakeEmbedder{vec: []float32{1, 0}}, nil, rdb)

	g, err := e.Retrieve(context.Background(), "leaves", "")
	require.NoError(t, err)
	assert.NotEmpty(t, g.Motifs)
}
