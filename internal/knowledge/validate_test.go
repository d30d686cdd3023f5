package knowledge

import (
	"strings"
	"testing"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMotif() models.KnowledgeObject {
	return models.KnowledgeObject{
		ID:           "k1",
		Kind:         models.KindMotif,
		Title:        "leaf",
		Body:         models.MotifBody{Name: "leaf", Primitive: "path"},
		Tags:         []string{"leaf", "nature"},
		Version:      "1.0.0",
		Status:       models.StatusExperimental,
		QualityScore: 0.8,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *models.KnowledgeObject)
		wantErr string
	}{
		{
			name:   "valid motif",
			mutate: func(o *models.KnowledgeObject) {},
		},
		{
			name:    "missing title",
			mutate:  func(o *models.KnowledgeObject) { o.Title = "  " },
			wantErr: "title is required",
		},
		{
			name:    "no tags",
			mutate:  func(o *models.KnowledgeObject) { o.Tags = nil },
			wantErr: "at least one tag",
		},
		{
			name:    "bad version",
			mutate:  func(o *models.KnowledgeObject) { o.Version = "v1" },
			wantErr: "not semver",
		},
		{
			name:    "quality out of range",
			mutate:  func(o *models.KnowledgeObject) { o.QualityScore = 1.2 },
			wantErr: "qualityScore",
		},
		{
			name:    "body kind mismatch",
			mutate:  func(o *models.KnowledgeObject) { o.Body = models.GlossaryBody{Term: "a", Definition: "b"} },
			wantErr: "body is a glossary",
		},
		{
			name:    "missing body",
			mutate:  func(o *models.KnowledgeObject) { o.Body = nil },
			wantErr: "body is required",
		},
		{
			name:    "unnamed motif",
			mutate:  func(o *models.KnowledgeObject) { o.Body = models.MotifBody{} },
			wantErr: "motif name",
		},
		{
			name: "body over token budget",
			mutate: func(o *models.KnowledgeObject) {
				o.Body = models.MotifBody{Name: "leaf", Keywords: []string{strings.Repeat("x", 9000)}}
			},
			wantErr: "limit is 2000",
		},
		{
			name:    "sensitive content",
			mutate:  func(o *models.KnowledgeObject) { o.Title = "password leaf" },
			wantErr: "content_policy",
		},
		{
			name:    "biased content",
			mutate:  func(o *models.KnowledgeObject) { o.Title = "always the best and superior leaf" },
			wantErr: "bias",
		},
		{
			name: "style pack with bad colour",
			mutate: func(o *models.KnowledgeObject) {
				o.Kind = models.KindStylePack
				o.Body = models.StylePackBody{Name: "warm", Palette: []string{"#FFAA00", "orange"}}
			},
			wantErr: `"orange" is not hex`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := validMotif()
			tt.mutate(&obj)
			err := Validate(obj, 0)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeKnowledgeValidationFailed))
			se, _ := apperrors.AsStandardError(err)
			assert.Contains(t, se.Details, tt.wantErr)
		})
	}
}

func TestNextPatch(t *testing.T) {
	v, err := NextPatch("1.4.9")
	require.NoError(t, err)
	assert.Equal(t, "1.4.10", v)

	_, err = NextPatch("1.4")
	assert.Error(t, err)
}

func TestMatchesCanonical(t *testing.T) {
	prompts := []string{"scattered leaf shapes in autumn colors", "a centered mandala of circles"}

	assert.True(t, MatchesCanonical(validMotif(), prompts))

	circle := validMotif()
	circle.Title = "ring"
	circle.Tags = []string{"circle"}
	assert.True(t, MatchesCanonical(circle, prompts))

	other := validMotif()
	other.Title = "zigzag"
	other.Tags = []string{"zigzag"}
	assert.False(t, MatchesCanonical(other, prompts))

	assert.True(t, MatchesCanonical(other, nil))
}
