package pipeline

import (
	"fmt"
	"strings"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/models"
)

// QualityGate is a heuristic pass/fail check run after repair.
type QualityGate struct {
	maxComponents int
}

func NewQualityGate(maxComponents int) *QualityGate {
	return &QualityGate{maxComponents: maxComponents}
}

// Check returns QA_FAILED with every finding joined by "; ".
func (g *QualityGate) Check(doc *models.AISVGDocument, remaining []Issue) error {
	var issues []string

	if len(doc.Components) == 0 {
		issues = append(issues, "document has no components")
	}
	if g.maxComponents > 0 && len(doc.Components) > g.maxComponents {
		issues = append(issues, fmt.Sprintf("%d components exceed the hard limit of %d", len(doc.Components), g.maxComponents))
	}
	if !validSize(doc.Bounds) {
		issues = append(issues, "document bounds are not positive")
	}

	seen := make(map[string]bool, len(doc.Components))
	for _, c := range doc.Components {
		if seen[c.ID] {
			issues = append(issues, "duplicate component id "+c.ID)
		}
		seen[c.ID] = true

		if !allowedElements[c.Element] {
			issues = append(issues, fmt.Sprintf("%s uses unsupported element %q", c.ID, c.Element))
		}
		fill, _ := c.Attributes["fill"].(string)
		if (fill == "none" || fill == "") && !hasStroke(c) && c.Element != "text" {
			issues = append(issues, c.ID+" has neither fill nor stroke")
		}
	}

	// Unrepaired numbers would render as garbage; other leftovers are tolerated.
	for _, is := range remaining {
		if is.Kind == IssueInvalidNumber || is.Kind == IssueInvalidBounds {
			issues = append(issues, is.String())
		}
	}

	if len(issues) > 0 {
		return apperrors.NewQAFailedError(strings.Join(issues, "; "))
	}
	return nil
}
