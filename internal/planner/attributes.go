package planner

import (
	"math"
	"strings"

	"design-workers/internal/models"
)

var motifPrimitives = map[string]string{
	"circle":    "circle",
	"square":    "rect",
	"triangle":  "polygon",
	"line":      "line",
	"curve":     "path",
	"organic":   "path",
	"geometric": "polygon",
}

// PrimitiveForMotif maps a motif name to its SVG primitive, if it has one.
func PrimitiveForMotif(motif string) (string, bool) {
	t, ok := motifPrimitives[strings.ToLower(strings.TrimSpace(motif))]
	return t, ok
}

func selectMotif(i int, intent models.DesignIntent, grounding *models.GroundingData) string {
	if req := intent.Constraints.RequiredMotifs; len(req) > 0 {
		return req[i%len(req)]
	}
	if len(intent.Motifs) > 0 {
		return intent.Motifs[i%len(intent.Motifs)]
	}
	if names := grounding.MotifNames(); len(names) > 0 {
		return names[i%len(names)]
	}
	return ""
}

func primitiveFor(motif string, grounding *models.GroundingData) string {
	if motif == "" {
		return "path"
	}
	if t, ok := PrimitiveForMotif(motif); ok {
		return t
	}
	if grounding != nil {
		for _, m := range grounding.Motifs {
			if strings.EqualFold(m.Name, motif) && m.Primitive != "" {
				return m.Primitive
			}
		}
	}
	return "path"
}

func matchSizeSpec(typ, motif string, specs []models.SizeSpec) (models.SizeSpec, bool) {
	if len(specs) == 0 {
		return models.SizeSpec{}, false
	}
	for _, s := range specs {
		if s.Type != "" && (strings.EqualFold(s.Type, typ) || strings.EqualFold(s.Type, motif)) {
			return s, true
		}
	}
	for _, s := range specs {
		if s.Type == "" {
			return s, true
		}
	}
	return specs[0], true
}

// size draws a base size then applies +/-10% jitter, always two draws.
func (p *Planner) size(typ, motif string, specs []models.SizeSpec, bounds models.Size) models.Size {
	minDim := math.Min(bounds.Width, bounds.Height)
	lo, hi := minDim*0.08, minDim*0.2
	aspect := 0.0

	if spec, ok := matchSizeSpec(typ, motif, specs); ok && spec.MaxSize > 0 {
		lo, hi = spec.MinSize, spec.MaxSize
		if hi < lo {
			lo, hi = hi, lo
		}
		aspect = spec.AspectRatio
	}

	base := lo + p.rng.Float64()*(hi-lo)
	w := base * (1 + (p.rng.Float64()-0.5)*0.2)
	h := w
	if aspect > 0 {
		h = w / aspect
	}
	return models.Size{Width: w, Height: h}
}

func (p *Planner) rotation(i int, arrangement models.Arrangement, symmetry models.Symmetry) float64 {
	switch {
	case arrangement == models.ArrangementGrid:
		return 0
	case symmetry == models.SymmetryRadial:
		return float64(i) * 360 / 8
	case arrangement == models.ArrangementOrganic || arrangement == models.ArrangementScattered:
		return p.rng.Float64() * 360
	default:
		return 0
	}
}

func (p *Planner) style(i int, palette []string, intent models.DesignIntent) models.ComponentStyle {
	color := palette[i%len(palette)]
	rules := intent.Style.StrokeRules

	if intent.Constraints.StrokeOnly || rules.StrokeOnly {
		lo, hi := rules.MinStrokeWidth, rules.MaxStrokeWidth
		if hi <= 0 {
			lo, hi = 1, 3
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		width := lo + p.rng.Float64()*(hi-lo)
		return models.ComponentStyle{Fill: "none", Stroke: color, StrokeWidth: &width}
	}

	opacity := 0.7 + p.rng.Float64()*0.3
	st := models.ComponentStyle{Fill: color, Opacity: &opacity}
	if p.rng.Float64() < 0.5 {
		width := math.Max(1, rules.MinStrokeWidth)
		st.Stroke = palette[(i+1)%len(palette)]
		st.StrokeWidth = &width
	}
	return st
}
