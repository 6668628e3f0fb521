package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL   string // default http://localhost:11434
	Model     string // default nomic-embed-text
	BatchSize int
	Timeout   time.Duration
}

// OllamaProvider calls the batch /api/embed endpoint of a local Ollama.
type OllamaProvider struct {
	cfg    OllamaConfig
	http   *http.Client
	logger *slog.Logger
}

func NewOllamaProvider(cfg OllamaConfig, logger *slog.Logger) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaProvider{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *OllamaProvider) Name() string    { return "ollama:" + p.cfg.Model }
func (p *OllamaProvider) MaxBatch() int   { return p.cfg.BatchSize }
func (p *OllamaProvider) Dimensions() int { return 0 }

// Embed sends the whole slice in one request. nomic-style models expect a
// task prefix, so query and document texts are prefixed accordingly.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string, role Role) ([][]float64, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = ollamaPrefix(p.cfg.Model, role) + t
	}

	raw, _, err := SendJSON(ctx, p.http, p.cfg.BaseURL+"/api/embed", ollamaEmbedRequest{Model: p.cfg.Model, Input: input}, nil, p.logger)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func ollamaPrefix(model string, role Role) string {
	if !strings.Contains(model, "nomic") {
		return ""
	}
	if role == RoleQuery {
		return "search_query: "
	}
	return "search_document: "
}
