// Package planner turns a DesignIntent into concrete, reproducible geometry.
package planner

import (
	"fmt"
	"math"
	"strconv"

	"design-workers/internal/models"
)

const (
	DefaultWidth  = 400.0
	DefaultHeight = 400.0
)

// PlanContext carries per-request hints. A nil TargetSize means 400x400.
type PlanContext struct {
	TargetSize *models.Size
}

// Planner is single-use per request: its random source carries state, so an
// instance must not be shared between concurrent requests.
type Planner struct {
	rng RandomSource
}

func New(rng RandomSource) *Planner {
	if rng == nil {
		rng = NewRandom()
	}
	return &Planner{rng: rng}
}

// Plan builds the composition. Random values are consumed in a fixed order
// (all positions, then size, rotation and style per component) so a seeded
// source always yields the same geometry.
func (p *Planner) Plan(intent models.DesignIntent, grounding *models.GroundingData, pc PlanContext) (*models.CompositionPlan, error) {
	arrangement := intent.Layout.Arrangement
	if arrangement == "" {
		arrangement = models.ArrangementCentered
	}
	if !arrangement.Valid() {
		return nil, fmt.Errorf("unknown arrangement %q", arrangement)
	}

	layout := buildLayout(intent, arrangement, pc)
	n := componentCount(intent)

	positions := p.positions(arrangement, n, layout.Bounds, layout.Spacing)

	palette := intent.Style.Palette
	if len(palette) == 0 {
		palette = models.DefaultPalette
	}

	components := make([]models.ComponentPlan, 0, n)
	for i := 0; i < n; i++ {
		motif := selectMotif(i, intent, grounding)
		typ := primitiveFor(motif, grounding)
		size := p.size(typ, motif, intent.Layout.Sizes, layout.Bounds)

		components = append(components, models.ComponentPlan{
			ID:       "component-" + strconv.Itoa(i+1),
			Type:     typ,
			Position: positions[i],
			Size:     size,
			Rotation: p.rotation(i, arrangement, intent.Style.Symmetry),
			Style:    p.style(i, palette, intent),
			Motif:    motif,
		})
	}

	return &models.CompositionPlan{
		Layout:     layout,
		Components: components,
		ZIndex:     zIndex(arrangement, n),
	}, nil
}

func buildLayout(intent models.DesignIntent, arrangement models.Arrangement, pc PlanContext) models.PlanLayout {
	bounds := models.Size{Width: DefaultWidth, Height: DefaultHeight}
	if pc.TargetSize != nil {
		bounds = *pc.TargetSize
	}

	layout := models.PlanLayout{
		Bounds:      bounds,
		ViewBox:     "0 0 " + formatDim(bounds.Width) + " " + formatDim(bounds.Height),
		Arrangement: arrangement,
		Spacing:     Spacing(intent.Style.Density),
	}
	if len(intent.Style.Palette) >= 4 {
		layout.Background = intent.Style.Palette[3]
	}
	return layout
}

func formatDim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Spacing maps density to the gap between components.
func Spacing(d models.Density) float64 {
	switch d {
	case models.DensitySparse:
		return 40
	case models.DensityDense:
		return 10
	default:
		return 20
	}
}

func defaultCount(d models.Density) int {
	switch d {
	case models.DensitySparse:
		return 3
	case models.DensityDense:
		return 8
	default:
		return 5
	}
}

// componentCount prefers explicit count hints, falls back to density, and is
// clamped to MaxElements when that is set.
func componentCount(intent models.DesignIntent) int {
	n := intent.Layout.RequestedCount()
	if n <= 0 {
		n = defaultCount(intent.Style.Density)
	}
	if max := intent.Constraints.MaxElements; max > 0 && n > max {
		n = max
	}
	return n
}

func zIndex(arrangement models.Arrangement, n int) []float64 {
	z := make([]float64, n)
	mid := float64(n-1) / 2
	for i := range z {
		if arrangement == models.ArrangementCentered {
			z[i] = 100 - 10*math.Abs(float64(i)-mid)
		} else {
			z[i] = float64(i + 1)
		}
	}
	return z
}
