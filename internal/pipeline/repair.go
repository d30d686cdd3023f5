package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"design-workers/internal/models"
)

type IssueKind string

// Issue kinds, listed in the order they are checked and repaired.
const (
	IssueTooManyComponents    IssueKind = "too_many_components"
	IssueMissingRequiredMotif IssueKind = "missing_required_motif"
	IssueStrokeOnlyViolation  IssueKind = "stroke_only_violation"
	IssueInvalidNumber        IssueKind = "invalid_number"
	IssueThinStroke           IssueKind = "thin_stroke"
	IssueExcessPrecision      IssueKind = "excess_precision"
	IssueInvalidBounds        IssueKind = "invalid_bounds"
)

var issueOrder = []IssueKind{
	IssueTooManyComponents,
	IssueMissingRequiredMotif,
	IssueStrokeOnlyViolation,
	IssueInvalidNumber,
	IssueThinStroke,
	IssueExcessPrecision,
	IssueInvalidBounds,
}

// Issue is one validation finding. ComponentID and Field are empty for
// document-level issues.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	ComponentID string    `json:"componentId,omitempty"`
	Field       string    `json:"field,omitempty"`
	Detail      string    `json:"detail"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(string(i.Kind))
	if i.ComponentID != "" {
		b.WriteString(" " + i.ComponentID)
		if i.Field != "" {
			b.WriteString("." + i.Field)
		}
	}
	if i.Detail != "" {
		b.WriteString(": " + i.Detail)
	}
	return b.String()
}

func issueStrings(issues []Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.String()
	}
	return out
}

// Rules is the subset of the intent the validator enforces.
type Rules struct {
	MaxElements    int
	RequiredMotifs []string
	StrokeOnly     bool
}

func RulesFor(intent models.DesignIntent) Rules {
	return Rules{
		MaxElements:    intent.Constraints.MaxElements,
		RequiredMotifs: intent.Constraints.RequiredMotifs,
		StrokeOnly:     intent.Constraints.StrokeOnly || intent.Style.StrokeRules.StrokeOnly,
	}
}

// Validate runs every check and returns issues grouped by kind in repair
// order. It does not modify doc.
func Validate(doc *models.AISVGDocument, rules Rules) []Issue {
	var issues []Issue

	if rules.MaxElements > 0 && len(doc.Components) > rules.MaxElements {
		issues = append(issues, Issue{
			Kind:   IssueTooManyComponents,
			Detail: fmt.Sprintf("%d components exceed the limit of %d", len(doc.Components), rules.MaxElements),
		})
	}

	for _, motif := range missingMotifs(doc, rules.RequiredMotifs) {
		issues = append(issues, Issue{Kind: IssueMissingRequiredMotif, Field: "motif", Detail: motif})
	}

	if rules.StrokeOnly {
		for _, c := range doc.Components {
			if fill, _ := c.Attributes["fill"].(string); fill != "none" {
				issues = append(issues, Issue{Kind: IssueStrokeOnlyViolation, ComponentID: c.ID, Field: "fill", Detail: "fill must be none"})
			}
		}
	}

	for _, c := range doc.Components {
		for _, k := range sortedKeys(c.Attributes) {
			if f, ok := c.Attributes[k].(float64); ok && !finite(f) {
				issues = append(issues, Issue{Kind: IssueInvalidNumber, ComponentID: c.ID, Field: k, Detail: fmt.Sprint(f)})
			}
		}
	}

	for _, c := range doc.Components {
		if !hasStroke(c) {
			continue
		}
		if w, ok := c.Attributes["stroke-width"].(float64); ok && finite(w) && w < 1 {
			issues = append(issues, Issue{Kind: IssueThinStroke, ComponentID: c.ID, Field: "stroke-width", Detail: fmt.Sprintf("%g is below 1", w)})
		}
	}

	for _, c := range doc.Components {
		for _, k := range sortedKeys(c.Attributes) {
			if f, ok := c.Attributes[k].(float64); ok && finite(f) && excessPrecision(f) {
				issues = append(issues, Issue{Kind: IssueExcessPrecision, ComponentID: c.ID, Field: k, Detail: fmt.Sprint(f)})
			}
		}
	}

	if !validSize(doc.Bounds) {
		issues = append(issues, Issue{
			Kind:   IssueInvalidBounds,
			Field:  "bounds",
			Detail: fmt.Sprintf("%gx%g", doc.Bounds.Width, doc.Bounds.Height),
		})
	}
	return issues
}

// Repair applies the fix for every kind present in issues, in check order.
// Each fix is idempotent: applying it to its own output finds nothing left
// to change.
func Repair(doc *models.AISVGDocument, issues []Issue, rules Rules) {
	present := make(map[IssueKind]bool, len(issues))
	for _, is := range issues {
		present[is.Kind] = true
	}

	for _, kind := range issueOrder {
		if !present[kind] {
			continue
		}
		switch kind {
		case IssueTooManyComponents:
			if rules.MaxElements > 0 && len(doc.Components) > rules.MaxElements {
				doc.Components = doc.Components[:rules.MaxElements]
			}
		case IssueMissingRequiredMotif:
			for _, motif := range missingMotifs(doc, rules.RequiredMotifs) {
				insertRequiredMotif(doc, motif, rules)
			}
		case IssueStrokeOnlyViolation:
			forceStrokeOnly(doc)
		case IssueInvalidNumber:
			for i := range doc.Components {
				replaceNonFinite(&doc.Components[i])
			}
		case IssueThinStroke:
			for i := range doc.Components {
				c := &doc.Components[i]
				if w, ok := c.Attributes["stroke-width"].(float64); ok && hasStroke(*c) && finite(w) && w < 1 {
					c.Attributes["stroke-width"] = 1.0
					c.Metadata.Repaired = true
				}
			}
		case IssueExcessPrecision:
			for i := range doc.Components {
				c := &doc.Components[i]
				for k, v := range c.Attributes {
					if f, ok := v.(float64); ok && finite(f) && excessPrecision(f) {
						c.Attributes[k] = round2(f)
						c.Metadata.Repaired = true
					}
				}
			}
		case IssueInvalidBounds:
			doc.Bounds = models.Size{Width: 400, Height: 400}
		}
	}
}

// RepairLoop validates and repairs until the document is clean or
// maxRetries repair passes have run. It returns the passes used and the
// issues still present.
func RepairLoop(doc *models.AISVGDocument, rules Rules, maxRetries int) (int, []Issue) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	for pass := 0; ; pass++ {
		issues := Validate(doc, rules)
		if len(issues) == 0 {
			return pass, nil
		}
		if pass >= maxRetries {
			return pass, issues
		}
		Repair(doc, issues, rules)
	}
}

func missingMotifs(doc *models.AISVGDocument, required []string) []string {
	var missing []string
	for _, motif := range required {
		found := false
		for _, c := range doc.Components {
			if strings.EqualFold(c.Metadata.Motif, motif) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, motif)
		}
	}
	return missing
}

// insertRequiredMotif adds a stand-in shape at the centre, painted above
// everything else. When the document is already at the element limit, the
// last planned component that is not itself a required motif makes room.
func insertRequiredMotif(doc *models.AISVGDocument, motif string, rules Rules) {
	if rules.MaxElements > 0 && len(doc.Components) >= rules.MaxElements {
		drop := -1
		for i := len(doc.Components) - 1; i >= 0; i-- {
			if !isRequired(doc.Components[i].Metadata.Motif, rules.RequiredMotifs) {
				drop = i
				break
			}
		}
		if drop < 0 {
			return
		}
		doc.Components = append(doc.Components[:drop], doc.Components[drop+1:]...)
	}

	bounds := doc.Bounds
	if !validSize(bounds) {
		bounds = models.Size{Width: 400, Height: 400}
	}
	cx, cy := round2(bounds.Width/2), round2(bounds.Height/2)
	r := round2(math.Min(bounds.Width, bounds.Height) / 10)

	color := models.DefaultPalette[0]
	if len(doc.Palette) > 0 {
		color = doc.Palette[0]
	}

	comp := models.SVGComponent{
		ID:         "required-" + strings.ToLower(strings.ReplaceAll(strings.TrimSpace(motif), " ", "-")),
		Attributes: map[string]interface{}{},
		Metadata:   models.ComponentMetadata{Motif: motif, Generated: true, Repaired: true, ZIndex: topZIndex(doc.Components) + 1},
	}
	name := strings.ToLower(motif)
	switch {
	case strings.Contains(name, "circle"):
		comp.Type, comp.Element = "circle", "circle"
		comp.Attributes["cx"], comp.Attributes["cy"], comp.Attributes["r"] = cx, cy, r
	case strings.Contains(name, "star"):
		comp.Type, comp.Element = "polygon", "polygon"
		comp.Attributes["points"] = starPoints(cx, cy, r)
	default:
		comp.Type, comp.Element = "rect", "rect"
		comp.Attributes["x"], comp.Attributes["y"] = round2(cx-r), round2(cy-r)
		comp.Attributes["width"], comp.Attributes["height"] = round2(2*r), round2(2*r)
	}
	if rules.StrokeOnly {
		comp.Attributes["fill"] = "none"
		comp.Attributes["stroke"] = color
		comp.Attributes["stroke-width"] = 2.0
	} else {
		comp.Attributes["fill"] = color
	}
	doc.Components = append(doc.Components, comp)
}

func isRequired(motif string, required []string) bool {
	for _, r := range required {
		if strings.EqualFold(r, motif) {
			return true
		}
	}
	return false
}

func forceStrokeOnly(doc *models.AISVGDocument) {
	for i := range doc.Components {
		c := &doc.Components[i]
		fill, _ := c.Attributes["fill"].(string)
		if fill == "none" {
			continue
		}
		c.Attributes["fill"] = "none"
		if !hasStroke(*c) {
			// Keep the shape visible with its former fill colour.
			stroke := fill
			if stroke == "" {
				stroke = models.DefaultPalette[0]
			}
			c.Attributes["stroke"] = stroke
			if _, ok := c.Attributes["stroke-width"]; !ok {
				c.Attributes["stroke-width"] = 1.0
			}
		}
		c.Metadata.Repaired = true
	}
}

func replaceNonFinite(c *models.SVGComponent) {
	for k, v := range c.Attributes {
		if f, ok := v.(float64); ok && !finite(f) {
			c.Attributes[k] = numberDefault(k)
			c.Metadata.Repaired = true
		}
	}
}

func numberDefault(attr string) float64 {
	switch attr {
	case "x", "y", "cx", "cy", "x1", "y1", "x2", "y2":
		return 0
	case "width", "height":
		return 10
	case "r", "rx", "ry":
		return 5
	default:
		return 1
	}
}

func hasStroke(c models.SVGComponent) bool {
	s, _ := c.Attributes["stroke"].(string)
	return s != "" && s != "none"
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func excessPrecision(f float64) bool {
	scaled := f * 100
	return math.Abs(scaled-math.Round(scaled)) > 1e-9
}

func validSize(s models.Size) bool {
	return finite(s.Width) && finite(s.Height) && s.Width > 0 && s.Height > 0
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
