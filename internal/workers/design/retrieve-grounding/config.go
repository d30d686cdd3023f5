// internal/workers/design/retrieve-grounding/config.go
package retrievegrounding

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
