// internal/workers/design/generate-svg/models.go
package generatesvg

import "design-workers/internal/models"

type Input struct {
	Prompt              string       `json:"prompt"`
	Size                *models.Size `json:"size,omitempty"`
	Palette             []string     `json:"palette,omitempty"`
	Seed                *int64       `json:"seed,omitempty"`
	UserID              string       `json:"userId,omitempty"`
	Model               string       `json:"model,omitempty"`
	FallbackToRuleBased *bool        `json:"fallbackToRuleBased,omitempty"`
	MaxRetries          *int         `json:"maxRetries,omitempty"`
}

func (in *Input) request() models.GenerateRequest {
	return models.GenerateRequest{
		Prompt:              in.Prompt,
		Size:                in.Size,
		Palette:             in.Palette,
		Seed:                in.Seed,
		UserID:              in.UserID,
		Model:               in.Model,
		FallbackToRuleBased: in.FallbackToRuleBased,
		MaxRetries:          in.MaxRetries,
	}
}

type Output struct {
	SVG          string                  `json:"svg"`
	Metadata     models.DocumentMetadata `json:"metadata"`
	Layers       []models.SVGComponent   `json:"layers"`
	Warnings     []string                `json:"warnings"`
	UsedFallback bool                    `json:"usedFallback"`
}
