package validation

import (
	"fmt"
	"math"
	"strings"

	"design-workers/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CompositionPlanSchema is the JSON schema every plan must satisfy before
// synthesis.
var CompositionPlanSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"layout", "components", "zIndex"},
	"properties": map[string]interface{}{
		"layout": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"bounds", "viewBox", "arrangement", "spacing"},
			"properties": map[string]interface{}{
				"bounds": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"width", "height"},
					"properties": map[string]interface{}{
						"width":  map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
						"height": map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
					},
				},
				"viewBox":     map[string]interface{}{"type": "string", "pattern": `^0 0 [0-9.]+ [0-9.]+$`},
				"background":  map[string]interface{}{"type": "string"},
				"arrangement": map[string]interface{}{"enum": []interface{}{"grid", "centered", "scattered", "organic"}},
				"spacing":     map[string]interface{}{"type": "number", "minimum": 0},
			},
		},
		"components": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "type", "position", "size", "rotation", "style"},
				"properties": map[string]interface{}{
					"id":   map[string]interface{}{"type": "string", "minLength": 1},
					"type": map[string]interface{}{"type": "string", "minLength": 1},
					"position": map[string]interface{}{
						"type":     "object",
						"required": []interface{}{"x", "y"},
						"properties": map[string]interface{}{
							"x": map[string]interface{}{"type": "number"},
							"y": map[string]interface{}{"type": "number"},
						},
					},
					"size": map[string]interface{}{
						"type":     "object",
						"required": []interface{}{"width", "height"},
						"properties": map[string]interface{}{
							"width":  map[string]interface{}{"type": "number", "minimum": 0},
							"height": map[string]interface{}{"type": "number", "minimum": 0},
						},
					},
					"rotation": map[string]interface{}{"type": "number", "minimum": 0},
					"style": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"fill":        map[string]interface{}{"type": "string"},
							"stroke":      map[string]interface{}{"type": "string"},
							"strokeWidth": map[string]interface{}{"type": "number", "minimum": 0},
							"opacity":     map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
						},
					},
					"motif": map[string]interface{}{"type": "string"},
				},
			},
		},
		"zIndex": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "number"},
		},
	},
}

// Validate checks document against a JSON schema held as a Go value.
func Validate(schema map[string]interface{}, document interface{}) (*ValidationResult, error) {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out, nil
}

// ValidatePlan runs the composition plan schema plus the checks JSON schema
// cannot express: finite numbers and z-index alignment.
func ValidatePlan(plan *models.CompositionPlan) *ValidationResult {
	if plan == nil {
		return &ValidationResult{Errors: []ValidationError{{Field: "(root)", Message: "plan is nil", Code: "required"}}}
	}

	// encoding/json refuses NaN and Inf, so catch them before the schema run.
	var errs []ValidationError
	for i, c := range plan.Components {
		for field, v := range map[string]float64{
			"position.x": c.Position.X, "position.y": c.Position.Y,
			"size.width": c.Size.Width, "size.height": c.Size.Height,
			"rotation": c.Rotation,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("components.%d.%s", i, field),
					Message: "must be a finite number",
					Code:    "not_finite",
				})
			}
		}
	}
	if len(plan.ZIndex) != len(plan.Components) {
		errs = append(errs, ValidationError{
			Field:   "zIndex",
			Message: fmt.Sprintf("has %d entries for %d components", len(plan.ZIndex), len(plan.Components)),
			Code:    "length_mismatch",
		})
	}
	if len(errs) > 0 {
		return &ValidationResult{Errors: errs}
	}

	res, err := Validate(CompositionPlanSchema, plan)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "schema_error"}}}
	}
	return res
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) String() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
