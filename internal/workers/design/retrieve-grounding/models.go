// internal/workers/design/retrieve-grounding/models.go
package retrievegrounding

import "design-workers/internal/models"

type Input struct {
	Prompt string `json:"prompt"`
	UserID string `json:"userId,omitempty"`
}

type Output struct {
	Grounding      *models.GroundingData `json:"grounding"`
	MotifCount     int                   `json:"motifCount"`
	ComponentCount int                   `json:"componentCount"`
	HasStylePack   bool                  `json:"hasStylePack"`
}
