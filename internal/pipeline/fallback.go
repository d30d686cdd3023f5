package pipeline

import (
	"math"
	"time"

	"design-workers/internal/models"
)

const (
	FallbackModel   = "fallback"
	FallbackWarning = "Used fallback generation due to pipeline failure"

	maxLabelRunes = 80
)

// Fallback builds the trivial document used when the pipeline fails: a
// single circle and the prompt as an escaped text label. It cannot fail.
func Fallback(req models.GenerateRequest, requestID string, now time.Time, elapsed time.Duration) *models.GenerateResponse {
	bounds := models.Size{Width: 400, Height: 400}
	if req.Size != nil && validSize(*req.Size) {
		bounds = *req.Size
	}

	palette := req.Palette
	if len(palette) == 0 {
		palette = models.DefaultPalette
	}
	cx, cy := round2(bounds.Width/2), round2(bounds.Height/2)
	r := round2(math.Min(bounds.Width, bounds.Height) / 4)

	label := []rune(req.Prompt)
	if len(label) > maxLabelRunes {
		label = append(label[:maxLabelRunes-1], '…')
	}

	doc := &models.AISVGDocument{
		Bounds:  bounds,
		Palette: append([]string(nil), palette...),
		Components: []models.SVGComponent{
			{
				ID:      "fallback-circle",
				Type:    "circle",
				Element: "circle",
				Attributes: map[string]interface{}{
					"cx": cx, "cy": cy, "r": r,
					"fill":   "none",
					"stroke": palette[0], "stroke-width": 2.0,
				},
				Metadata: models.ComponentMetadata{Generated: true},
			},
			{
				ID:      "fallback-label",
				Type:    "text",
				Element: "text",
				Attributes: map[string]interface{}{
					"x": cx, "y": round2(cy + r + 24),
					"fill":        palette[0],
					"font-size":   14.0,
					"text-anchor": "middle",
				},
				Text:     string(label),
				Metadata: models.ComponentMetadata{Generated: true},
			},
		},
	}

	svg, err := Render(doc)
	if err != nil {
		// Bounds are always valid here, so this is unreachable in practice.
		svg = `<svg xmlns="` + svgNamespace + `" width="400" height="400" viewBox="0 0 400 400"></svg>`
	}

	return &models.GenerateResponse{
		SVG: svg,
		Metadata: models.DocumentMetadata{
			RequestID:      requestID,
			Model:          FallbackModel,
			Prompt:         req.Prompt,
			Seed:           req.Seed,
			ComponentCount: len(doc.Components),
			GeneratedAt:    now.UTC().Format(time.RFC3339),
			DurationMs:     elapsed.Milliseconds(),
		},
		Layers:   doc.Components,
		Warnings: []string{FallbackWarning},
	}
}
