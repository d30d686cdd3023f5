// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	APIs      APIsConfig              `mapstructure:"apis"`
	Pipeline  PipelineConfig          `mapstructure:"pipeline"`
	Retrieval RetrievalConfig         `mapstructure:"retrieval"`
	Knowledge KnowledgeConfig         `mapstructure:"knowledge"`
	HTTP      HTTPConfig              `mapstructure:"http"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name         string `mapstructure:"name"`
	Version      string `mapstructure:"version"`
	Environment  string `mapstructure:"environment"`
	RegistryPath string `mapstructure:"registry_path"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig is optional; an empty address list disables the tag index.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// APIsConfig holds settings for the LLM and embedding providers.
type APIsConfig struct {
	LLM struct {
		Provider string `mapstructure:"provider"` // openai | anthropic | "" (disabled)
		BaseURL  string `mapstructure:"base_url"`
		APIKey   string `mapstructure:"api_key"`
		Model    string `mapstructure:"model"`
		Timeout  int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"llm"`

	Embedding struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"embedding"`
}

type PipelineConfig struct {
	MaxRetries          int     `mapstructure:"max_retries"`
	FallbackToRuleBased bool    `mapstructure:"fallback_to_rule_based"`
	DefaultWidth        float64 `mapstructure:"default_width"`
	DefaultHeight       float64 `mapstructure:"default_height"`
	DefaultMaxElements  int     `mapstructure:"default_max_elements"`
	MaxComponents       int     `mapstructure:"max_components"`
	Timeout             int     `mapstructure:"timeout"` // milliseconds
}

type RetrievalConfig struct {
	MinQualityScore     float64 `mapstructure:"min_quality_score"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	CandidateLimit      int     `mapstructure:"candidate_limit"`
	MotifCap            int     `mapstructure:"motif_cap"`
	GlossaryCap         int     `mapstructure:"glossary_cap"`
	TokenBudget         int     `mapstructure:"token_budget"`
	CostPer1KTokens     float64 `mapstructure:"cost_per_1k_tokens"`
}

type KnowledgeConfig struct {
	FreshnessDays   int      `mapstructure:"freshness_days"`
	MaxBodyTokens   int      `mapstructure:"max_body_tokens"`
	CanonicalPrompt []string `mapstructure:"canonical_prompts"`

	// DeprecationQuality is the score below which a stale active object is
	// retired by the lifecycle sweep. It sits above the promotion floor.
	DeprecationQuality float64 `mapstructure:"deprecation_quality"`

	Governance struct {
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"governance"`
}

// FreshnessThreshold is the staleness window used by ranking and lifecycle.
func (k KnowledgeConfig) FreshnessThreshold() time.Duration {
	return time.Duration(k.FreshnessDays) * 24 * time.Hour
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
