package embedding

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
)

// Registry maps semantic strategies to their clients. All clients share one
// Cache; keys include the provider name so vectors never mix.
type Registry struct {
	mu      sync.RWMutex
	clients map[constants.Strategy]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[constants.Strategy]*Client)}
}

// Register binds a client to a semantic strategy.
func (r *Registry) Register(strategy constants.Strategy, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strategy] = c
}

// Get returns the client for a strategy.
func (r *Registry) Get(strategy constants.Strategy) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strategy]
	return c, ok
}

// Strategies lists registered strategies in name order.
func (r *Registry) Strategies() []constants.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]constants.Strategy, 0, len(r.clients))
	for s := range r.clients {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewRegistryFromConfig registers the local provider always and the OpenAI
// and Ollama providers when configured.
func NewRegistryFromConfig(cfg common.EmbeddingConfig, cache *Cache, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	ccfg := ClientConfig{
		Timeout:        cfg.Timeout,
		Retries:        cfg.Retries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		RatePerSecond:  cfg.RatePerSecond,
	}

	reg := NewRegistry()
	reg.Register(constants.StrategySemanticLocal, NewClient(NewLocalProvider(cfg.LocalDims), cache, ClientConfig{Timeout: cfg.Timeout}, logger))

	if cfg.OpenAI.APIKey != "" {
		p, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			BatchSize: cfg.OpenAI.BatchSize,
			Timeout:   cfg.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("embedding.openai.disabled", "error", err)
		} else {
			reg.Register(constants.StrategySemanticOpenAI, NewClient(p, cache, ccfg, logger))
		}
	}

	if cfg.Ollama.URL != "" {
		p := NewOllamaProvider(OllamaConfig{
			BaseURL:   cfg.Ollama.URL,
			Model:     cfg.Ollama.Model,
			BatchSize: cfg.Ollama.BatchSize,
			Timeout:   cfg.Timeout,
		}, logger)
		reg.Register(constants.StrategySemanticOllama, NewClient(p, cache, ccfg, logger))
	}

	logger.Info("embedding.registry.ready", "strategies", reg.Strategies())
	return reg
}
