package model

import "time"

// Config is the full application configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Runner     RunnerConfig     `yaml:"runner" mapstructure:"runner"`
	Reputation ReputationConfig `yaml:"reputation" mapstructure:"reputation"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// HTTPConfig controls outbound fetches of original sources.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls the in-memory cache for retrieval results.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMConfig configures the external reasoning service.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // Never serialized
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RetrievalConfig configures the web-search/content-extraction service.
type RetrievalConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string        `yaml:"-" mapstructure:"api_key"`
	MaxResults        int           `yaml:"max_results" mapstructure:"max_results"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StorageConfig configures the durable record store.
type StorageConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // SQLite database path
}

// LedgerConfig configures the distributed-ledger write service.
type LedgerConfig struct {
	Simulated bool   `yaml:"simulated" mapstructure:"simulated"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// RunnerConfig bounds the evaluator batch execution.
type RunnerConfig struct {
	MaxConcurrent    int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	EvaluatorTimeout time.Duration `yaml:"evaluator_timeout" mapstructure:"evaluator_timeout"`
}

// ReputationConfig controls score decay toward neutral.
type ReputationConfig struct {
	DecayRate       float64 `yaml:"decay_rate" mapstructure:"decay_rate"`
	DecayPeriodDays int     `yaml:"decay_period_days" mapstructure:"decay_period_days"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Veritrail/0.1 (+https://github.com/veritrail/veritrail)",
			MaxBodyBytes: 2_000_000,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     15 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Timeout:   60,
			MaxTokens: 2000,
		},
		Retrieval: RetrievalConfig{
			MaxResults:        10,
			RequestsPerSecond: 1.0,
			Burst:             5,
			Timeout:           30 * time.Second,
		},
		Storage: StorageConfig{
			Path: "veritrail.db",
		},
		Ledger: LedgerConfig{
			Simulated: true,
			Timeout:   15,
		},
		Runner: RunnerConfig{
			MaxConcurrent:    4,
			EvaluatorTimeout: 60 * time.Second,
		},
		Reputation: ReputationConfig{
			DecayRate:       0.01,
			DecayPeriodDays: 7,
		},
		Output: OutputConfig{},
	}
}
