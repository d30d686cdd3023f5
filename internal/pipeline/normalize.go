package pipeline

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"design-workers/internal/models"
)

const RuleBasedModel = "rule-based"

// NormalizeRequest is what the normalizer sees of a generation request.
type NormalizeRequest struct {
	Prompt  string
	Model   string
	Palette []string
}

type NormalizeResult struct {
	Intent models.DesignIntent
	Model  string
}

// IntentNormalizer turns a free-text prompt into a DesignIntent.
type IntentNormalizer interface {
	Normalize(ctx context.Context, req NormalizeRequest) (*NormalizeResult, error)
}

var (
	hexColor   = regexp.MustCompile(`#[0-9a-fA-F]{6}\b|#[0-9a-fA-F]{3}\b`)
	hexOnly    = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	countMotif = regexp.MustCompile(`\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|twelve)\s+([a-z]+)(?:\s+([a-z]+))?`)
)

var namedColors = map[string]string{
	"black":  "#000000",
	"white":  "#FFFFFF",
	"red":    "#EF4444",
	"orange": "#F97316",
	"amber":  "#F59E0B",
	"yellow": "#EAB308",
	"green":  "#22C55E",
	"teal":   "#14B8A6",
	"blue":   "#3B82F6",
	"navy":   "#1E3A8A",
	"purple": "#8B5CF6",
	"pink":   "#EC4899",
	"brown":  "#92400E",
	"gray":   "#6B7280",
	"grey":   "#6B7280",
	"gold":   "#D4AF37",
}

// Palettes keyed by mood words, used when the prompt names no colours.
var moodPalettes = map[string][]string{
	"autumn": {"#B45309", "#D97706", "#92400E", "#FEF3C7"},
	"ocean":  {"#0E7490", "#0284C7", "#1E3A8A", "#ECFEFF"},
	"forest": {"#166534", "#15803D", "#4D7C0F", "#F0FDF4"},
	"pastel": {"#FBCFE8", "#BFDBFE", "#BBF7D0", "#FFFBEB"},
	"warm":   {"#DC2626", "#F97316", "#FACC15"},
	"cool":   {"#2563EB", "#0891B2", "#7C3AED"},
	"mono":   {"#111827", "#4B5563", "#9CA3AF"},
}

var knownMotifs = map[string]bool{
	"circle": true, "square": true, "triangle": true, "line": true, "curve": true,
	"star": true, "leaf": true, "flower": true, "wave": true, "heart": true,
	"hexagon": true, "dot": true, "spiral": true, "ring": true, "diamond": true,
	"organic": true, "geometric": true,
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "twelve": 12,
}

// RuleNormalizer is the deterministic keyword normalizer. It accepts any
// input, including an empty prompt, and never returns an error.
type RuleNormalizer struct{}

func NewRuleNormalizer() *RuleNormalizer {
	return &RuleNormalizer{}
}

func (n *RuleNormalizer) Normalize(_ context.Context, req NormalizeRequest) (*NormalizeResult, error) {
	return &NormalizeResult{Intent: n.Intent(req.Prompt, req.Palette), Model: RuleBasedModel}, nil
}

// Intent derives the intent directly. An explicit palette wins over colours
// found in the prompt.
func (n *RuleNormalizer) Intent(prompt string, palette []string) models.DesignIntent {
	text := strings.ToLower(prompt)
	words := promptWords(text)

	strokeOnly := containsAny(text, "outline", "line art", "line-art", "stroke only", "stroke-only", "linework")
	intent := models.DesignIntent{
		Style: models.StyleSpec{
			Palette:  ruleBasedPalette(prompt, words, palette),
			Density:  ruleBasedDensity(words),
			Symmetry: ruleBasedSymmetry(words),
			StrokeRules: models.StrokeRules{
				StrokeOnly:     strokeOnly,
				MinStrokeWidth: 1,
				MaxStrokeWidth: 3,
				AllowFill:      !strokeOnly,
			},
		},
		Motifs: ruleBasedMotifs(words),
		Layout: models.LayoutSpec{
			Arrangement: ruleBasedArrangement(words),
			Counts:      ruleBasedCounts(text),
		},
		Constraints: models.Constraints{StrokeOnly: strokeOnly},
	}
	if len(intent.Layout.Counts) == 0 {
		intent.Layout.Counts = nil
	}
	return intent
}

func promptWords(text string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '-'
	}) {
		out[w] = true
		out[singular(w)] = true
	}
	return out
}

var irregularPlurals = map[string]string{
	"leaves":  "leaf",
	"circles": "circle",
}

func singular(w string) string {
	if s, ok := irregularPlurals[w]; ok {
		return s
	}
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return strings.TrimSuffix(w, "s")
	}
	return w
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func hasAny(words map[string]bool, candidates ...string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}

func ruleBasedPalette(prompt string, words map[string]bool, explicit []string) []string {
	if len(explicit) > 0 {
		return append([]string(nil), explicit...)
	}

	var palette []string
	seen := make(map[string]bool)
	add := func(c string) {
		c = strings.ToUpper(c)
		if !seen[c] {
			seen[c] = true
			palette = append(palette, c)
		}
	}
	for _, c := range hexColor.FindAllString(prompt, -1) {
		add(c)
	}

	names := make([]string, 0, len(namedColors))
	for name := range namedColors {
		names = append(names, name)
	}
	sort.Strings(names)
	// Keep prompt order for named colours.
	lower := strings.ToLower(prompt)
	sort.SliceStable(names, func(i, j int) bool {
		return strings.Index(lower, names[i]) < strings.Index(lower, names[j])
	})
	for _, name := range names {
		if words[name] {
			add(namedColors[name])
		}
	}
	if len(palette) > 0 {
		return palette
	}

	moods := make([]string, 0, len(moodPalettes))
	for m := range moodPalettes {
		moods = append(moods, m)
	}
	sort.Strings(moods)
	for _, m := range moods {
		if words[m] {
			return append([]string(nil), moodPalettes[m]...)
		}
	}
	return append([]string(nil), models.DefaultPalette...)
}

func ruleBasedDensity(words map[string]bool) models.Density {
	switch {
	case hasAny(words, "sparse", "minimal", "minimalist", "simple", "few", "clean"):
		return models.DensitySparse
	case hasAny(words, "dense", "busy", "many", "lots", "crowded", "intricate", "packed"):
		return models.DensityDense
	default:
		return models.DensityMedium
	}
}

func ruleBasedSymmetry(words map[string]bool) models.Symmetry {
	switch {
	case hasAny(words, "radial", "mandala", "kaleidoscope", "rosette"):
		return models.SymmetryRadial
	case hasAny(words, "symmetric", "symmetrical", "mirror", "mirrored", "bilateral"):
		return models.SymmetryBilateral
	default:
		return models.SymmetryNone
	}
}

func ruleBasedArrangement(words map[string]bool) models.Arrangement {
	switch {
	case hasAny(words, "grid", "tiled", "tile", "pattern", "rows", "checkerboard"):
		return models.ArrangementGrid
	case hasAny(words, "scattered", "random", "confetti", "sprinkled"):
		return models.ArrangementScattered
	case hasAny(words, "organic", "flowing", "natural", "wavy"):
		return models.ArrangementOrganic
	default:
		return models.ArrangementCentered
	}
}

func ruleBasedMotifs(words map[string]bool) []string {
	var motifs []string
	for w := range words {
		if knownMotifs[w] {
			motifs = append(motifs, w)
		}
	}
	sort.Strings(motifs)
	return motifs
}

func ruleBasedCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range countMotif.FindAllStringSubmatch(text, -1) {
		// Allow one adjective between the number and the motif.
		motif := singular(m[2])
		if !knownMotifs[motif] {
			motif = singular(m[3])
		}
		if !knownMotifs[motif] {
			continue
		}
		n, ok := numberWords[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		if n > 0 {
			counts[motif] += n
		}
	}
	return counts
}
