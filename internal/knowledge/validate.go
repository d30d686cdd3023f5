package knowledge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/governance"
	"design-workers/internal/models"
	"design-workers/internal/retrieval"
)

// DefaultMaxBodyTokens bounds the estimated size of a single object body.
const DefaultMaxBodyTokens = 2000

var (
	semverPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)$`)
	colorPattern  = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Validate runs every write-time check and returns a
// KNOWLEDGE_VALIDATION_FAILED error listing all problems found.
func Validate(obj models.KnowledgeObject, maxBodyTokens int) error {
	if maxBodyTokens <= 0 {
		maxBodyTokens = DefaultMaxBodyTokens
	}

	problems := structural(obj)
	if obj.Body != nil {
		if tokens := retrieval.EstimateTokens(obj.Body); tokens > maxBodyTokens {
			problems = append(problems, fmt.Sprintf("body is %d tokens, limit is %d", tokens, maxBodyTokens))
		}
		for _, v := range governance.CheckContent(obj) {
			problems = append(problems, v.String())
		}
	}

	if len(problems) > 0 {
		return apperrors.NewKnowledgeValidationFailedError(strings.Join(problems, "; "))
	}
	return nil
}

func structural(obj models.KnowledgeObject) []string {
	var problems []string

	if !obj.Kind.Valid() {
		problems = append(problems, fmt.Sprintf("unknown kind %q", obj.Kind))
	}

	if strings.TrimSpace(obj.Title) == "" {
		problems = append(problems, "title is required")
	}
	if len(obj.Tags) == 0 {
		problems = append(problems, "at least one tag is required")
	}
	for _, t := range obj.Tags {
		if strings.TrimSpace(t) == "" {
			problems = append(problems, "tags must not be blank")
			break
		}
	}
	if !semverPattern.MatchString(obj.Version) {
		problems = append(problems, fmt.Sprintf("version %q is not semver", obj.Version))
	}
	if obj.QualityScore < 0 || obj.QualityScore > 1 {
		problems = append(problems, "qualityScore must be within [0,1]")
	}

	if obj.Body == nil {
		return append(problems, "body is required")
	}
	if obj.Body.Kind() != obj.Kind {
		return append(problems, fmt.Sprintf("body is a %s, object kind is %s", obj.Body.Kind(), obj.Kind))
	}
	return append(problems, bodyProblems(obj.Body)...)
}

func bodyProblems(body models.KnowledgeBody) []string {
	var problems []string
	switch b := body.(type) {
	case models.StylePackBody:
		if b.Name == "" {
			problems = append(problems, "style pack name is required")
		}
		if len(b.Palette) == 0 {
			problems = append(problems, "style pack palette is required")
		}
		for _, c := range b.Palette {
			if !colorPattern.MatchString(c) {
				problems = append(problems, fmt.Sprintf("palette colour %q is not hex", c))
			}
		}
		if b.StrokeRules.MaxStrokeWidth > 0 && b.StrokeRules.MinStrokeWidth > b.StrokeRules.MaxStrokeWidth {
			problems = append(problems, "minStrokeWidth exceeds maxStrokeWidth")
		}
	case models.MotifBody:
		if b.Name == "" {
			problems = append(problems, "motif name is required")
		}
		for _, c := range b.Components {
			if c.ID == "" || c.Element == "" {
				problems = append(problems, "motif components need id and element")
				break
			}
		}
	case models.GlossaryBody:
		if b.Term == "" || b.Definition == "" {
			problems = append(problems, "glossary term and definition are required")
		}
	case models.RuleBody:
		if b.Rule == "" {
			problems = append(problems, "rule text is required")
		}
	case models.FewshotBody:
		if b.Prompt == "" {
			problems = append(problems, "fewshot prompt is required")
		}
	}
	return problems
}

// NextPatch bumps the patch component of a semver string.
func NextPatch(version string) (string, error) {
	m := semverPattern.FindStringSubmatch(version)
	if m == nil {
		return "", fmt.Errorf("version %q is not semver", version)
	}
	patch, err := strconv.Atoi(m[3])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s.%d", m[1], m[2], patch+1), nil
}

// MatchesCanonical reports whether the object is relevant to at least one
// canonical prompt, by title word or tag. An empty prompt list accepts all.
func MatchesCanonical(obj models.KnowledgeObject, prompts []string) bool {
	if len(prompts) == 0 {
		return true
	}
	terms := make(map[string]bool)
	for _, w := range governance.Tokenize(obj.Title) {
		terms[w] = true
	}
	for _, t := range obj.Tags {
		for _, w := range governance.Tokenize(t) {
			terms[w] = true
		}
	}
	for _, p := range prompts {
		for _, w := range governance.Tokenize(p) {
			if len(w) < 3 {
				continue
			}
			if terms[w] || terms[strings.TrimSuffix(w, "s")] {
				return true
			}
		}
	}
	return false
}
