// Package genai builds the LLM and embedding provider clients from config.
package genai

import (
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// ClientConfig is the connection part of an apis.* config section.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

func NewOpenAIClient(cfg ClientConfig) openai.Client {
	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, ooption.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, ooption.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, ooption.WithMaxRetries(cfg.MaxRetries))
	}
	return openai.NewClient(opts...)
}

func NewAnthropicClient(cfg ClientConfig) anthropic.Client {
	opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, aoption.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, aoption.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, aoption.WithMaxRetries(cfg.MaxRetries))
	}
	return anthropic.NewClient(opts...)
}
