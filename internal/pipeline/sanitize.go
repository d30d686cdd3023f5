package pipeline

import (
	"html"
	"math"
	"regexp"
	"strings"

	"design-workers/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

var allowedElements = map[string]bool{
	"circle":   true,
	"ellipse":  true,
	"rect":     true,
	"line":     true,
	"polyline": true,
	"polygon":  true,
	"path":     true,
	"text":     true,
	"g":        true,
}

var allowedAttributes = map[string]bool{
	"cx": true, "cy": true, "r": true, "rx": true, "ry": true,
	"x": true, "y": true, "width": true, "height": true,
	"x1": true, "y1": true, "x2": true, "y2": true,
	"points": true, "d": true, "transform": true,
	"fill": true, "stroke": true, "stroke-width": true, "opacity": true,
	"fill-opacity": true, "stroke-opacity": true, "stroke-linecap": true, "stroke-linejoin": true,
	"font-size": true, "font-family": true, "text-anchor": true,
}

var (
	unsafeValue = regexp.MustCompile(`(?i)javascript:|data:|url\s*\(|expression\s*\(|<|>`)
	paintValue  = regexp.MustCompile(`^(?:none|#[0-9a-fA-F]{3,8}|[a-zA-Z]+)$`)
)

// Sanitizer strips anything that could execute or load content from a
// document before it is serialized.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize returns a cleaned copy of doc and how many attributes or
// components were removed. Element names are checked against an allowlist,
// event handlers and unknown attributes are dropped, string values are run
// through the strict HTML policy, stroke widths are floored at 1 and numbers
// are rounded to two decimals.
func (s *Sanitizer) Sanitize(doc *models.AISVGDocument) (*models.AISVGDocument, int) {
	out := *doc
	out.Components = make([]models.SVGComponent, 0, len(doc.Components))
	out.Background = s.paint(doc.Background)
	removed := 0

	for _, c := range doc.Components {
		if !allowedElements[c.Element] {
			removed++
			continue
		}
		clean := c
		clean.Attributes = make(map[string]interface{}, len(c.Attributes))
		for k, v := range c.Attributes {
			name := strings.ToLower(k)
			if !allowedAttributes[name] {
				removed++
				continue
			}
			switch val := v.(type) {
			case float64:
				if !finite(val) {
					removed++
					continue
				}
				if name == "stroke-width" && val < 1 {
					val = 1
				}
				clean.Attributes[name] = math.Round(val*100) / 100
			case int:
				clean.Attributes[name] = float64(val)
			case string:
				cleaned, ok := s.value(name, val)
				if !ok {
					removed++
					continue
				}
				clean.Attributes[name] = cleaned
			default:
				removed++
			}
		}
		clean.Text = s.text(c.Text)
		out.Components = append(out.Components, clean)
	}
	return &out, removed
}

func (s *Sanitizer) value(name, v string) (string, bool) {
	if unsafeValue.MatchString(v) {
		return "", false
	}
	cleaned := s.text(v)
	switch name {
	case "fill", "stroke":
		if !paintValue.MatchString(cleaned) {
			return "", false
		}
	}
	return cleaned, cleaned != "" || v == ""
}

func (s *Sanitizer) paint(v string) string {
	if v == "" {
		return ""
	}
	cleaned, ok := s.value("fill", v)
	if !ok {
		return ""
	}
	return cleaned
}

// text strips markup and returns plain characters. The renderer escapes
// them again, so entities from the policy are decoded here.
func (s *Sanitizer) text(v string) string {
	if v == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}
