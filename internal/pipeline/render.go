package pipeline

import (
	"encoding/xml"
	"fmt"
	"strings"

	"design-workers/internal/models"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// Render serializes a sanitized document. Attributes are written in sorted
// order and numbers with at most two decimals, so equal documents always
// produce byte-identical output.
func Render(doc *models.AISVGDocument) (string, error) {
	if !validSize(doc.Bounds) {
		return "", fmt.Errorf("cannot render bounds %gx%g", doc.Bounds.Width, doc.Bounds.Height)
	}

	w, h := formatNumber(doc.Bounds.Width), formatNumber(doc.Bounds.Height)
	var b strings.Builder
	b.WriteString(`<svg xmlns="` + svgNamespace + `" width="` + w + `" height="` + h + `" viewBox="0 0 ` + w + ` ` + h + `">`)
	if doc.Background != "" {
		b.WriteString(`<rect width="100%" height="100%" fill="` + escape(doc.Background) + `"/>`)
	}
	for _, c := range doc.Components {
		if err := renderComponent(&b, c); err != nil {
			return "", err
		}
	}
	b.WriteString(`</svg>`)
	return b.String(), nil
}

func renderComponent(b *strings.Builder, c models.SVGComponent) error {
	if c.Element == "" {
		return fmt.Errorf("component %s has no element", c.ID)
	}
	b.WriteString("<" + c.Element)
	if c.ID != "" {
		b.WriteString(` id="` + escape(c.ID) + `"`)
	}
	for _, k := range sortedKeys(c.Attributes) {
		val, err := attrString(c.Attributes[k])
		if err != nil {
			return fmt.Errorf("component %s attribute %s: %w", c.ID, k, err)
		}
		b.WriteString(" " + k + `="` + escape(val) + `"`)
	}
	if c.Text == "" {
		b.WriteString("/>")
		return nil
	}
	b.WriteString(">" + escape(c.Text) + "</" + c.Element + ">")
	return nil
}

func attrString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		if !finite(val) {
			return "", fmt.Errorf("non-finite number %v", val)
		}
		return formatNumber(val), nil
	case int:
		return formatNumber(float64(val)), nil
	case bool:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
