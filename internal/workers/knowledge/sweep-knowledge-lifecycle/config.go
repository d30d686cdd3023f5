// internal/workers/knowledge/sweep-knowledge-lifecycle/config.go
package sweepknowledgelifecycle

import "time"

type Config struct {
	Timeout time.Duration
	// FailOnPartial fails the job when some deprecations did not go through.
	FailOnPartial bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 2 * time.Minute,
	}
}
