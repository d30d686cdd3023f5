// Package governance holds the content rules applied to knowledge objects,
// both when they are written and when they are retrieved.
package governance

import (
	"fmt"
	"regexp"
	"strings"

	"design-workers/internal/models"
)

// MaxBiasWords is the number of bias indicator words tolerated in one object.
const MaxBiasWords = 2

var (
	sensitiveTerms = []string{
		"password", "passwd", "ssn", "social security", "credit card",
		"api key", "apikey", "secret", "private key", "access token",
		"bank account",
	}

	nonNeutralTerms = []string{
		"election", "political", "politics", "democrat", "republican",
		"religion", "religious", "church", "mosque", "temple", "bible",
		"brand", "trademark", "logo of", "advertisement", "sponsored",
	}

	biasWords = map[string]bool{
		"always": true, "never": true, "superior": true, "inferior": true,
		"best": true, "worst": true, "everyone": true, "nobody": true,
		"only": true, "must": true, "perfect": true, "ugly": true,
	}

	wordPattern = regexp.MustCompile(`[a-z0-9]+`)
)

// Tokenize lower-cases text and splits it into alphanumeric words.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func normalized(text string) string {
	return " " + strings.Join(Tokenize(text), " ") + " "
}

func firstMatch(text string, terms []string) (string, bool) {
	norm := normalized(text)
	for _, term := range terms {
		if strings.Contains(norm, " "+term+" ") {
			return term, true
		}
	}
	return "", false
}

// SensitiveTerm returns the first sensitive keyword found in text.
func SensitiveTerm(text string) (string, bool) {
	return firstMatch(text, sensitiveTerms)
}

// NonNeutralTerm returns the first political, religious or commercial
// keyword found in text.
func NonNeutralTerm(text string) (string, bool) {
	return firstMatch(text, nonNeutralTerms)
}

// BiasWordCount counts absolute or judgemental words in text.
func BiasWordCount(text string) int {
	n := 0
	for _, w := range Tokenize(text) {
		if biasWords[w] {
			n++
		}
	}
	return n
}

// Violation is one reason an object fails governance.
type Violation struct {
	Rule   string
	Detail string
}

func (v Violation) String() string {
	return v.Rule + ": " + v.Detail
}

// CheckContent applies the text rules: content policy, neutrality and bias.
func CheckContent(obj models.KnowledgeObject) []Violation {
	text := obj.SearchText() + " " + strings.Join(obj.Tags, " ")

	var out []Violation
	if term, ok := SensitiveTerm(text); ok {
		out = append(out, Violation{Rule: "content_policy", Detail: fmt.Sprintf("sensitive term %q", term)})
	}
	if term, ok := NonNeutralTerm(text); ok {
		out = append(out, Violation{Rule: "design_neutral", Detail: fmt.Sprintf("non-neutral term %q", term)})
	}
	if n := BiasWordCount(text); n > MaxBiasWords {
		out = append(out, Violation{Rule: "bias", Detail: fmt.Sprintf("%d bias indicator words", n)})
	}
	return out
}

// Check is the retrieval-time filter: the object must be active, meet the
// quality threshold and pass CheckContent.
func Check(obj models.KnowledgeObject, minQuality float64) []Violation {
	var out []Violation
	if obj.Status != models.StatusActive {
		out = append(out, Violation{Rule: "status", Detail: string(obj.Status)})
	}
	if obj.QualityScore < minQuality {
		out = append(out, Violation{Rule: "quality", Detail: fmt.Sprintf("%.2f below %.2f", obj.QualityScore, minQuality)})
	}
	return append(out, CheckContent(obj)...)
}

// Allowed reports whether obj passes Check.
func Allowed(obj models.KnowledgeObject, minQuality float64) bool {
	return len(Check(obj, minQuality)) == 0
}

// Filter keeps the objects that pass Check, preserving order.
func Filter(objs []models.KnowledgeObject, minQuality float64) []models.KnowledgeObject {
	out := make([]models.KnowledgeObject, 0, len(objs))
	for _, o := range objs {
		if Allowed(o, minQuality) {
			out = append(out, o)
		}
	}
	return out
}
