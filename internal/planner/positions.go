package planner

import (
	"math"

	"design-workers/internal/models"
)

func (p *Planner) positions(arrangement models.Arrangement, n int, bounds models.Size, spacing float64) []models.Point {
	switch arrangement {
	case models.ArrangementGrid:
		return gridPositions(n, bounds, spacing)
	case models.ArrangementScattered:
		return p.scatteredPositions(n, bounds, spacing)
	case models.ArrangementOrganic:
		return organicPositions(n, bounds, spacing)
	default:
		return centeredPositions(n, bounds)
	}
}

// gridPositions places items at cell centres of a near-square grid with a
// margin of one spacing unit.
func gridPositions(n int, bounds models.Size, spacing float64) []models.Point {
	out := make([]models.Point, n)
	if n == 0 {
		return out
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))

	cellW := (bounds.Width - 2*spacing) / float64(cols)
	cellH := (bounds.Height - 2*spacing) / float64(rows)

	for i := range out {
		col := i % cols
		row := i / cols
		out[i] = models.Point{
			X: spacing + (float64(col)+0.5)*cellW,
			Y: spacing + (float64(row)+0.5)*cellH,
		}
	}
	return out
}

func centeredPositions(n int, bounds models.Size) []models.Point {
	out := make([]models.Point, n)
	cx, cy := bounds.Width/2, bounds.Height/2
	if n == 1 {
		out[0] = models.Point{X: cx, Y: cy}
		return out
	}
	radius := math.Min(bounds.Width, bounds.Height) / 4
	for i := range out {
		angle := 2 * math.Pi * float64(i) / float64(n)
		out[i] = models.Point{
			X: cx + radius*math.Cos(angle),
			Y: cy + radius*math.Sin(angle),
		}
	}
	return out
}

// scatteredPositions draws x then y per item inside a 2*spacing inset.
func (p *Planner) scatteredPositions(n int, bounds models.Size, spacing float64) []models.Point {
	out := make([]models.Point, n)
	margin := 2 * spacing
	spanX := math.Max(0, bounds.Width-2*margin)
	spanY := math.Max(0, bounds.Height-2*margin)
	for i := range out {
		x := margin + p.rng.Float64()*spanX
		y := margin + p.rng.Float64()*spanY
		out[i] = models.Point{X: x, Y: y}
	}
	return out
}

// organicPositions follows a wave over a slow spiral, clamped to stay one
// spacing unit inside the bounds.
func organicPositions(n int, bounds models.Size, spacing float64) []models.Point {
	out := make([]models.Point, n)
	for i := range out {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		wave := math.Sin(2*math.Pi*t) * 0.3
		spiral := t * 0.5

		x := bounds.Width*(0.25+spiral) + wave*bounds.Width*0.2
		y := bounds.Height/2 + wave*bounds.Height + (spiral-0.25)*bounds.Height*0.5

		out[i] = models.Point{
			X: clamp(x, spacing, bounds.Width-spacing),
			Y: clamp(y, spacing, bounds.Height-spacing),
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
