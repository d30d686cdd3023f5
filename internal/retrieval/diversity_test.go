package retrieval

import (
	"fmt"
	"testing"

	"design-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(id string, score float64, tags ...string) models.ScoredObject {
	return models.ScoredObject{
		KnowledgeObject: models.KnowledgeObject{ID: id, Kind: models.KindMotif, Tags: tags},
		Score:           score,
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b"}, []string{"b", "a"}, 1},
		{"disjoint", []string{"a"}, []string{"b"}, 0},
		{"half", []string{"a", "b"}, []string{"b", "c", "a", "d"}, 0.5},
		{"case insensitive", []string{"Leaf"}, []string{"leaf"}, 1},
		{"both empty", nil, nil, 1},
		{"one empty", []string{"a"}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaccardSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSelectDiverse_Size(t *testing.T) {
	objs := make([]models.ScoredObject, 0, 8)
	for i := 0; i < 8; i++ {
		objs = append(objs, scored(fmt.Sprintf("m%d", i), float64(i)/10, fmt.Sprintf("t%d", i%3)))
	}

	for _, k := range []int{0, 1, 3, 6, 8, 12} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			got := SelectDiverse(objs, k)
			want := k
			if want > len(objs) {
				want = len(objs)
			}
			assert.Len(t, got, want)
			if k > 0 && k < len(objs) {
				assert.Equal(t, "m7", got[0].ID, "first pick is the highest score")
			}
		})
	}
}

func TestSelectDiverse_PrefersDissimilarTags(t *testing.T) {
	objs := []models.ScoredObject{
		scored("leaf-a", 0.90, "leaf", "nature"),
		scored("leaf-b", 0.88, "leaf", "nature"),
		scored("circle", 0.80, "circle", "geometric"),
	}

	got := SelectDiverse(objs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "leaf-a", got[0].ID)
	assert.Equal(t, "circle", got[1].ID)
}

func TestSelectDiverse_DoesNotMutateInput(t *testing.T) {
	objs := []models.ScoredObject{scored("a", 0.1), scored("b", 0.9), scored("c", 0.5)}
	_ = SelectDiverse(objs, 2)
	assert.Equal(t, []string{"a", "b", "c"}, []string{objs[0].ID, objs[1].ID, objs[2].ID})
}
