// internal/models/knowledge.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type KnowledgeKind string

const (
	KindStylePack KnowledgeKind = "style_pack"
	KindMotif     KnowledgeKind = "motif"
	KindGlossary  KnowledgeKind = "glossary"
	KindRule      KnowledgeKind = "rule"
	KindFewshot   KnowledgeKind = "fewshot"
)

func (k KnowledgeKind) Valid() bool {
	switch k {
	case KindStylePack, KindMotif, KindGlossary, KindRule, KindFewshot:
		return true
	}
	return false
}

type KnowledgeStatus string

const (
	StatusExperimental KnowledgeStatus = "experimental"
	StatusActive       KnowledgeStatus = "active"
	StatusDeprecated   KnowledgeStatus = "deprecated"
)

// KnowledgeBody is the kind-specific payload of a KnowledgeObject. The set of
// implementations is closed: StylePackBody, MotifBody, GlossaryBody, RuleBody
// and FewshotBody.
type KnowledgeBody interface {
	Kind() KnowledgeKind
	isKnowledgeBody()
}

type StylePackBody struct {
	Name        string      `json:"name"`
	Palette     []string    `json:"palette"`
	StrokeRules StrokeRules `json:"strokeRules"`
	Density     Density     `json:"density,omitempty"`
	Description string      `json:"description,omitempty"`
}

type MotifBody struct {
	Name       string              `json:"name"`
	Primitive  string              `json:"primitive,omitempty"`
	Keywords   []string            `json:"keywords,omitempty"`
	Components []ReusableComponent `json:"components,omitempty"`
}

type GlossaryBody struct {
	Term       string   `json:"term"`
	Definition string   `json:"definition"`
	Synonyms   []string `json:"synonyms,omitempty"`
}

type RuleBody struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity,omitempty"`
}

type FewshotBody struct {
	Prompt string        `json:"prompt"`
	Intent *DesignIntent `json:"intent,omitempty"`
	SVG    string        `json:"svg,omitempty"`
}

func (StylePackBody) Kind() KnowledgeKind { return KindStylePack }
func (MotifBody) Kind() KnowledgeKind     { return KindMotif }
func (GlossaryBody) Kind() KnowledgeKind  { return KindGlossary }
func (RuleBody) Kind() KnowledgeKind      { return KindRule }
func (FewshotBody) Kind() KnowledgeKind   { return KindFewshot }

func (StylePackBody) isKnowledgeBody() {}
func (MotifBody) isKnowledgeBody()     {}
func (GlossaryBody) isKnowledgeBody()  {}
func (RuleBody) isKnowledgeBody()      {}
func (FewshotBody) isKnowledgeBody()   {}

// ReusableComponent is a pre-built SVG fragment attached to a motif.
type ReusableComponent struct {
	ID         string                 `json:"id"`
	Motif      string                 `json:"motif,omitempty"`
	Type       string                 `json:"type"`
	Element    string                 `json:"element"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// KnowledgeObject is one persisted, versioned unit of design knowledge.
type KnowledgeObject struct {
	ID           string          `json:"id"`
	ParentID     string          `json:"parentId,omitempty"`
	Kind         KnowledgeKind   `json:"kind"`
	Title        string          `json:"title"`
	Body         KnowledgeBody   `json:"body"`
	Tags         []string        `json:"tags"`
	Version      string          `json:"version"`
	Status       KnowledgeStatus `json:"status"`
	QualityScore float64         `json:"qualityScore"`
	Embedding    []float32       `json:"embedding,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    *time.Time      `json:"updatedAt,omitempty"`
}

// DecodeBody decodes raw JSON into the body type matching kind.
func DecodeBody(kind KnowledgeKind, raw []byte) (KnowledgeBody, error) {
	var (
		body KnowledgeBody
		err  error
	)
	switch kind {
	case KindStylePack:
		var b StylePackBody
		err = strictUnmarshal(raw, &b)
		body = b
	case KindMotif:
		var b MotifBody
		err = strictUnmarshal(raw, &b)
		body = b
	case KindGlossary:
		var b GlossaryBody
		err = strictUnmarshal(raw, &b)
		body = b
	case KindRule:
		var b RuleBody
		err = strictUnmarshal(raw, &b)
		body = b
	case KindFewshot:
		var b FewshotBody
		err = strictUnmarshal(raw, &b)
		body = b
	default:
		return nil, fmt.Errorf("unknown knowledge kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", kind, err)
	}
	return body, nil
}

// strictUnmarshal rejects fields that do not belong to the target body, so a
// motif body filed under kind "glossary" fails instead of decoding empty.
func strictUnmarshal(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (o *KnowledgeObject) UnmarshalJSON(data []byte) error {
	type alias KnowledgeObject
	aux := struct {
		*alias
		Body json.RawMessage `json:"body"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Body) == 0 || string(aux.Body) == "null" {
		o.Body = nil
		return nil
	}
	body, err := DecodeBody(o.Kind, aux.Body)
	if err != nil {
		return err
	}
	o.Body = body
	return nil
}

// SearchText is the text used for policy checks and tag matching.
func (o KnowledgeObject) SearchText() string {
	raw, _ := json.Marshal(o.Body)
	return o.Title + " " + string(raw)
}

// ScoredObject carries ranking signals for one retrieval call only.
type ScoredObject struct {
	KnowledgeObject
	Similarity      float64 `json:"similarity"`
	PreferenceBoost float64 `json:"preferenceBoost"`
	Quality         float64 `json:"quality"`
	Freshness       float64 `json:"freshness"`
	Score           float64 `json:"score"`
}

// GroundingData is the bundle of knowledge selected for a single prompt.
type GroundingData struct {
	StylePack  *StylePackBody      `json:"stylePack,omitempty"`
	Motifs     []MotifBody         `json:"motifs"`
	Glossary   []GlossaryBody      `json:"glossary"`
	Fewshot    []FewshotBody       `json:"fewshot"`
	Components []ReusableComponent `json:"components"`
}

// MotifNames returns the names of the grounding motifs in order.
func (g *GroundingData) MotifNames() []string {
	if g == nil {
		return nil
	}
	names := make([]string, 0, len(g.Motifs))
	for _, m := range g.Motifs {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

// PreferenceWeights are learned affinities for one user (or "*" for the
// global population) keyed by lower-cased tag and by kind.
type PreferenceWeights struct {
	Tags  map[string]float64 `json:"tags"`
	Kinds map[string]float64 `json:"kinds"`
}

// GlobalPreferenceUser is the user id under which global weights are stored.
const GlobalPreferenceUser = "*"
