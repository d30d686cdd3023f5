// internal/models/document.go
package models

type ComponentMetadata struct {
	Motif     string `json:"motif,omitempty"`
	Generated bool   `json:"generated"`
	Reused    bool   `json:"reused"`
	Repaired  bool   `json:"repaired,omitempty"`
	// ZIndex is the planned paint depth. Components stay in planning order
	// until the document is sorted for drawing.
	ZIndex float64 `json:"zIndex"`
}

// SVGComponent is one drawable element. Attribute values are float64 for
// numeric attributes and string otherwise.
type SVGComponent struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Element    string                 `json:"element"`
	Attributes map[string]interface{} `json:"attributes"`
	Text       string                 `json:"text,omitempty"`
	Metadata   ComponentMetadata      `json:"metadata"`
}

type DocumentMetadata struct {
	RequestID        string      `json:"requestId,omitempty"`
	Model            string      `json:"model"`
	Prompt           string      `json:"prompt"`
	Seed             *int64      `json:"seed,omitempty"`
	Arrangement      Arrangement `json:"arrangement,omitempty"`
	ComponentCount   int         `json:"componentCount"`
	RepairIterations int         `json:"repairIterations"`
	RemainingIssues  []string    `json:"remainingIssues,omitempty"`
	GeneratedAt      string      `json:"generatedAt"`
	DurationMs       int64       `json:"durationMs"`
}

// AISVGDocument is the pre-render document. It is only mutated by the
// validate-and-repair loop.
type AISVGDocument struct {
	Components []SVGComponent   `json:"components"`
	Metadata   DocumentMetadata `json:"metadata"`
	Bounds     Size             `json:"bounds"`
	Palette    []string         `json:"palette"`
	Background string           `json:"background,omitempty"`
}

type GenerateRequest struct {
	Prompt              string   `json:"prompt"`
	Size                *Size    `json:"size,omitempty"`
	Palette             []string `json:"palette,omitempty"`
	Seed                *int64   `json:"seed,omitempty"`
	UserID              string   `json:"userId,omitempty"`
	Model               string   `json:"model,omitempty"`
	FallbackToRuleBased *bool    `json:"fallbackToRuleBased,omitempty"`
	MaxRetries          *int     `json:"maxRetries,omitempty"`
}

type GenerateResponse struct {
	SVG      string           `json:"svg"`
	Metadata DocumentMetadata `json:"metadata"`
	Layers   []SVGComponent   `json:"layers"`
	Warnings []string         `json:"warnings"`
}
