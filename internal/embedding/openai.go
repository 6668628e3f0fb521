package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string // if empty, falls back to env OPENAI_API_KEY
	BaseURL    string // default https://api.openai.com/v1
	Model      string // e.g. "text-embedding-3-small"
	BatchSize  int
	Dimensions int // 0 keeps the model default
	Timeout    time.Duration
}

// OpenAIProvider wraps the embeddings endpoint of the official SDK.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client openai.Client
	logger *slog.Logger
}

func NewOpenAIProvider(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > 2048 {
		cfg.BatchSize = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		// retries are owned by Client
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: logger,
	}, nil
}

func (p *OpenAIProvider) Name() string    { return "openai:" + p.cfg.Model }
func (p *OpenAIProvider) MaxBatch() int   { return p.cfg.BatchSize }
func (p *OpenAIProvider) Dimensions() int { return p.cfg.Dimensions }

// Embed ignores role; OpenAI models are symmetric.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string, _ Role) ([][]float64, error) {
	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(p.cfg.Model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if p.cfg.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(p.cfg.Dimensions))
	}

	start := time.Now()
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	p.logger.Debug("embedding.openai.response",
		"model", p.cfg.Model,
		"texts", len(texts),
		"prompt_tokens", resp.Usage.PromptTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float64, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
