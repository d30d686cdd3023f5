// internal/models/plan.go
package models

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PlanLayout struct {
	Bounds      Size        `json:"bounds"`
	ViewBox     string      `json:"viewBox"`
	Background  string      `json:"background,omitempty"`
	Arrangement Arrangement `json:"arrangement"`
	Spacing     float64     `json:"spacing"`
}

type ComponentStyle struct {
	Fill        string   `json:"fill,omitempty"`
	Stroke      string   `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
}

type ComponentPlan struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Point          `json:"position"`
	Size     Size           `json:"size"`
	Rotation float64        `json:"rotation"`
	Style    ComponentStyle `json:"style"`
	Motif    string         `json:"motif,omitempty"`
}

// CompositionPlan is concrete geometry derived from a DesignIntent.
// ZIndex is index-aligned with Components.
type CompositionPlan struct {
	Layout     PlanLayout      `json:"layout"`
	Components []ComponentPlan `json:"components"`
	ZIndex     []float64       `json:"zIndex"`
}
