package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"design-workers/internal/models"
)

// Synthesizer turns planned geometry into SVG components. Sources, in order
// of preference: a reusable grounding component matching the motif and
// type, a template for the motif or primitive, procedural path geometry.
type Synthesizer struct{}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

func (s *Synthesizer) Synthesize(plan *models.CompositionPlan, grounding *models.GroundingData, intent models.DesignIntent) (*models.AISVGDocument, error) {
	if plan == nil {
		return nil, fmt.Errorf("nil plan")
	}

	palette := intent.Style.Palette
	if len(palette) == 0 {
		palette = models.DefaultPalette
	}

	doc := &models.AISVGDocument{
		Components: make([]models.SVGComponent, 0, len(plan.Components)),
		Bounds:     plan.Layout.Bounds,
		Palette:    append([]string(nil), palette...),
		Background: plan.Layout.Background,
	}

	for i, cp := range plan.Components {
		var comp models.SVGComponent
		if reusable, ok := findReusable(cp, grounding); ok {
			comp = reuse(cp, reusable)
		} else {
			comp = fromTemplate(cp)
		}
		if i < len(plan.ZIndex) {
			comp.Metadata.ZIndex = plan.ZIndex[i]
		}
		applyStyle(&comp, cp)
		roundAttributes(comp.Attributes)
		doc.Components = append(doc.Components, comp)
	}
	return doc, nil
}

// SortByDrawOrder puts components in ascending z-index, stable on ties.
// Repair works on planning order, so this runs only once repair is done.
func SortByDrawOrder(doc *models.AISVGDocument) {
	sort.SliceStable(doc.Components, func(a, b int) bool {
		return doc.Components[a].Metadata.ZIndex < doc.Components[b].Metadata.ZIndex
	})
}

func topZIndex(components []models.SVGComponent) float64 {
	top := 0.0
	for _, c := range components {
		if c.Metadata.ZIndex > top {
			top = c.Metadata.ZIndex
		}
	}
	return top
}

func findReusable(cp models.ComponentPlan, grounding *models.GroundingData) (models.ReusableComponent, bool) {
	if grounding == nil || cp.Motif == "" {
		return models.ReusableComponent{}, false
	}
	for _, rc := range grounding.Components {
		if strings.EqualFold(rc.Motif, cp.Motif) && rc.Type == cp.Type && rc.Element != "" {
			return rc, true
		}
	}
	return models.ReusableComponent{}, false
}

// reuse keeps the fragment's own shape attributes and places it with a
// transform, so fragments authored around the origin land on the planned
// position.
func reuse(cp models.ComponentPlan, rc models.ReusableComponent) models.SVGComponent {
	attrs := make(map[string]interface{}, len(rc.Attributes)+1)
	for k, v := range rc.Attributes {
		attrs[k] = v
	}
	transform := "translate(" + formatNumber(cp.Position.X) + " " + formatNumber(cp.Position.Y) + ")"
	if cp.Rotation != 0 {
		transform += " rotate(" + formatNumber(cp.Rotation) + ")"
	}
	attrs["transform"] = transform

	return models.SVGComponent{
		ID:         cp.ID,
		Type:       cp.Type,
		Element:    rc.Element,
		Attributes: attrs,
		Metadata:   models.ComponentMetadata{Motif: cp.Motif, Reused: true},
	}
}

func fromTemplate(cp models.ComponentPlan) models.SVGComponent {
	cx, cy := cp.Position.X, cp.Position.Y
	w, h := cp.Size.Width, cp.Size.Height
	attrs := make(map[string]interface{})
	element := cp.Type

	switch {
	case strings.EqualFold(cp.Motif, "star"):
		element = "polygon"
		attrs["points"] = starPoints(cx, cy, math.Min(w, h)/2)
	case strings.EqualFold(cp.Motif, "leaf"):
		element = "path"
		attrs["d"] = leafPath(cx, cy, w, h)
	default:
		switch cp.Type {
		case "circle":
			attrs["cx"], attrs["cy"], attrs["r"] = cx, cy, math.Min(w, h)/2
		case "ellipse":
			attrs["cx"], attrs["cy"], attrs["rx"], attrs["ry"] = cx, cy, w/2, h/2
		case "rect":
			attrs["x"], attrs["y"], attrs["width"], attrs["height"] = cx-w/2, cy-h/2, w, h
		case "line":
			attrs["x1"], attrs["y1"], attrs["x2"], attrs["y2"] = cx-w/2, cy, cx+w/2, cy
		case "polygon":
			attrs["points"] = trianglePoints(cx, cy, w, h)
		default:
			element = "path"
			attrs["d"] = blobPath(cx, cy, w, h)
		}
	}

	if cp.Rotation != 0 {
		attrs["transform"] = "rotate(" + formatNumber(cp.Rotation) + " " + formatNumber(cx) + " " + formatNumber(cy) + ")"
	}
	return models.SVGComponent{
		ID:         cp.ID,
		Type:       cp.Type,
		Element:    element,
		Attributes: attrs,
		Metadata:   models.ComponentMetadata{Motif: cp.Motif, Generated: true},
	}
}

func applyStyle(comp *models.SVGComponent, cp models.ComponentPlan) {
	st := cp.Style
	if comp.Element == "line" && st.Stroke == "" {
		// A line has no fill area, so its fill colour becomes the stroke.
		st.Stroke, st.Fill = st.Fill, "none"
		if st.StrokeWidth == nil {
			one := 1.0
			st.StrokeWidth = &one
		}
	}
	if st.Fill != "" {
		comp.Attributes["fill"] = st.Fill
	}
	if st.Stroke != "" {
		comp.Attributes["stroke"] = st.Stroke
	}
	if st.StrokeWidth != nil {
		comp.Attributes["stroke-width"] = *st.StrokeWidth
	}
	if st.Opacity != nil {
		comp.Attributes["opacity"] = *st.Opacity
	}
}

func roundAttributes(attrs map[string]interface{}) {
	for k, v := range attrs {
		if f, ok := v.(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			attrs[k] = round2(f)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatNumber prints at most two decimals and no trailing zeros.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(round2(v), 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func joinPoints(pts [][2]float64) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = formatNumber(p[0]) + "," + formatNumber(p[1])
	}
	return strings.Join(parts, " ")
}

func trianglePoints(cx, cy, w, h float64) string {
	return joinPoints([][2]float64{
		{cx, cy - h/2},
		{cx + w/2, cy + h/2},
		{cx - w/2, cy + h/2},
	})
}

func starPoints(cx, cy, r float64) string {
	pts := make([][2]float64, 0, 10)
	for i := 0; i < 10; i++ {
		radius := r
		if i%2 == 1 {
			radius = r * 0.45
		}
		angle := -math.Pi/2 + float64(i)*math.Pi/5
		pts = append(pts, [2]float64{cx + radius*math.Cos(angle), cy + radius*math.Sin(angle)})
	}
	return joinPoints(pts)
}

func leafPath(cx, cy, w, h float64) string {
	top, bottom := cy-h/2, cy+h/2
	return "M " + formatNumber(cx) + " " + formatNumber(bottom) +
		" Q " + formatNumber(cx+w/2) + " " + formatNumber(cy) + " " + formatNumber(cx) + " " + formatNumber(top) +
		" Q " + formatNumber(cx-w/2) + " " + formatNumber(cy) + " " + formatNumber(cx) + " " + formatNumber(bottom) + " Z"
}

// blobPath is a closed four-lobe curve inscribed in the component box.
func blobPath(cx, cy, w, h float64) string {
	rx, ry := w/2, h/2
	return "M " + formatNumber(cx-rx) + " " + formatNumber(cy) +
		" C " + formatNumber(cx-rx) + " " + formatNumber(cy-ry) + " " + formatNumber(cx) + " " + formatNumber(cy-ry*1.1) + " " + formatNumber(cx) + " " + formatNumber(cy-ry) +
		" C " + formatNumber(cx+rx*0.9) + " " + formatNumber(cy-ry) + " " + formatNumber(cx+rx) + " " + formatNumber(cy-ry*0.4) + " " + formatNumber(cx+rx) + " " + formatNumber(cy) +
		" C " + formatNumber(cx+rx) + " " + formatNumber(cy+ry) + " " + formatNumber(cx) + " " + formatNumber(cy+ry*0.9) + " " + formatNumber(cx) + " " + formatNumber(cy+ry) +
		" C " + formatNumber(cx-rx*0.9) + " " + formatNumber(cy+ry) + " " + formatNumber(cx-rx) + " " + formatNumber(cy+ry*0.4) + " " + formatNumber(cx-rx) + " " + formatNumber(cy) + " Z"
}
