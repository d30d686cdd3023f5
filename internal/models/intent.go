// internal/models/intent.go
package models

type Density string

const (
	DensitySparse Density = "sparse"
	DensityMedium Density = "medium"
	DensityDense  Density = "dense"
)

type Arrangement string

const (
	ArrangementGrid      Arrangement = "grid"
	ArrangementCentered  Arrangement = "centered"
	ArrangementScattered Arrangement = "scattered"
	ArrangementOrganic   Arrangement = "organic"
)

type Symmetry string

const (
	SymmetryNone      Symmetry = "none"
	SymmetryRadial    Symmetry = "radial"
	SymmetryBilateral Symmetry = "bilateral"
)

// DefaultPalette is used when neither the request nor the prompt names colours.
var DefaultPalette = []string{"#1F2937", "#3B82F6", "#F59E0B"}

// DesignIntent is the normalized form of a design prompt. It is treated as
// read-only once produced by a normalizer.
type DesignIntent struct {
	Style       StyleSpec   `json:"style"`
	Motifs      []string    `json:"motifs"`
	Layout      LayoutSpec  `json:"layout"`
	Constraints Constraints `json:"constraints"`
}

type StyleSpec struct {
	Palette     []string    `json:"palette"`
	StrokeRules StrokeRules `json:"strokeRules"`
	Density     Density     `json:"density"`
	Symmetry    Symmetry    `json:"symmetry"`
}

type StrokeRules struct {
	StrokeOnly     bool    `json:"strokeOnly"`
	MinStrokeWidth float64 `json:"minStrokeWidth"`
	MaxStrokeWidth float64 `json:"maxStrokeWidth"`
	AllowFill      bool    `json:"allowFill"`
}

type LayoutSpec struct {
	Sizes       []SizeSpec     `json:"sizes"`
	Counts      map[string]int `json:"counts,omitempty"`
	Arrangement Arrangement    `json:"arrangement"`
}

// SizeSpec bounds the drawn size of components of a given type. An empty
// Type matches any component.
type SizeSpec struct {
	Type        string  `json:"type,omitempty"`
	MinSize     float64 `json:"minSize"`
	MaxSize     float64 `json:"maxSize"`
	AspectRatio float64 `json:"aspectRatio,omitempty"`
}

type Constraints struct {
	StrokeOnly     bool     `json:"strokeOnly"`
	MaxElements    int      `json:"maxElements"`
	RequiredMotifs []string `json:"requiredMotifs,omitempty"`
}

// RequestedCount sums the explicit per-type count hints.
func (l LayoutSpec) RequestedCount() int {
	total := 0
	for _, c := range l.Counts {
		if c > 0 {
			total += c
		}
	}
	return total
}

func (d Density) Valid() bool {
	switch d {
	case DensitySparse, DensityMedium, DensityDense:
		return true
	}
	return false
}

func (a Arrangement) Valid() bool {
	switch a {
	case ArrangementGrid, ArrangementCentered, ArrangementScattered, ArrangementOrganic:
		return true
	}
	return false
}
