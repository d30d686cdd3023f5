// internal/workers/knowledge/sweep-knowledge-lifecycle/models.go
package sweepknowledgelifecycle

// Input carries no fields; the sweep reads its thresholds from configuration.
type Input struct{}

type Output struct {
	Checked    int      `json:"checked"`
	Deprecated []string `json:"deprecated"`
	Failed     []string `json:"failed,omitempty"`
	SweptAt    string   `json:"sweptAt"`
}
