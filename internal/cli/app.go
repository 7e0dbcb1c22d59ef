package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/aggregate"
	"github.com/veritrail/veritrail/internal/cache"
	"github.com/veritrail/veritrail/internal/evaluator"
	"github.com/veritrail/veritrail/internal/evidence"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/llm"
	"github.com/veritrail/veritrail/internal/logging"
	"github.com/veritrail/veritrail/internal/model"
	"github.com/veritrail/veritrail/internal/reputation"
	"github.com/veritrail/veritrail/internal/retrieval"
	"github.com/veritrail/veritrail/internal/runner"
	"github.com/veritrail/veritrail/internal/storage"
	"github.com/veritrail/veritrail/internal/verify"
)

// app wires the verification pipeline from configuration. Close must be
// called when done.
type app struct {
	cfg      *model.Config
	logger   *zap.Logger
	store    *storage.Store
	pipeline *verify.Pipeline
}

// loadConfig merges defaults, config file and environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveAPIKey fills in the provider API key from the environment.
func resolveAPIKey(cfg *model.Config) error {
	if cfg.LLM.APIKey != "" {
		return nil
	}
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

// newApp builds the full pipeline from configuration.
func newApp(cfg *model.Config) (*app, error) {
	level := "info"
	if cfg.Output.Verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := resolveAPIKey(cfg); err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	var memCache cache.Cache
	if cfg.Cache.Enabled {
		memCache = cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.TTL)
	}

	var searcher retrieval.Searcher
	if cfg.Retrieval.BaseURL != "" {
		searcher = retrieval.NewClient(cfg.Retrieval, memCache, logger)
	}

	fetcher := evidence.NewFetcher(cfg.HTTP, memCache, cfg.Cache.TTL)
	registry := evaluator.NewRegistry(provider)

	pipeline := verify.NewPipeline(verify.Options{
		Registry:   registry,
		Searcher:   searcher,
		Normalizer: evidence.NewNormalizer(fetcher, logger),
		Runner:     runner.New(registry, cfg.Runner, logger),
		Aggregator: aggregate.New(provider, logger),
		Reputation: reputation.NewStore(cfg.Reputation, store, logger),
		Archiver:   store,
		Ledger:     ledger.New(cfg.Ledger, logger),
		Logger:     logger,
		MaxResults: cfg.Retrieval.MaxResults,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pipeline: pipeline,
	}, nil
}

// Close flushes the logger and closes the store.
func (a *app) Close() {
	_ = a.logger.Sync()
	if a.store != nil {
		_ = a.store.Close()
	}
}
