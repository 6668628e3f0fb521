package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
)

// ClientConfig bounds how a Client talks to its provider.
type ClientConfig struct {
	Timeout        time.Duration // per request
	Retries        int           // extra attempts after the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RatePerSecond  float64 // 0 disables throttling
}

// Client wraps a Provider with caching, chunking by MaxBatch, request
// throttling, a per-request timeout and bounded exponential backoff.
type Client struct {
	provider Provider
	cache    *Cache
	limiter  *rate.Limiter
	cfg      ClientConfig
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewClient(provider Provider, cache *Cache, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Client{
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Name is the provider name.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Cached returns a vector from the cache without calling the provider.
func (c *Client) Cached(text string) ([]float64, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(text, c.provider.Name())
}

// Embed returns one vector per text. Cached texts are served locally and the
// rest are requested in chunks of at most MaxBatch. Any failure after
// retries is reported as ProviderUnavailable.
func (c *Client) Embed(ctx context.Context, texts []string, role Role) ([][]float64, error) {
	out := make([][]float64, len(texts))
	missing := make(map[string][]int)
	var order []string
	for i, t := range texts {
		if v, ok := c.Cached(t); ok {
			out[i] = v
			continue
		}
		if _, seen := missing[t]; !seen {
			order = append(order, t)
		}
		missing[t] = append(missing[t], i)
	}
	if len(order) == 0 {
		return out, nil
	}

	batch := c.provider.MaxBatch()
	if batch <= 0 {
		batch = len(order)
	}
	for start := 0; start < len(order); start += batch {
		end := min(start+batch, len(order))
		chunk := order[start:end]

		vectors, err := c.embedChunk(ctx, chunk, role)
		if err != nil {
			return nil, common.ProviderUnavailable(fmt.Sprintf("embedding provider %s", c.provider.Name()), err)
		}
		for j, t := range chunk {
			if c.cache != nil {
				c.cache.Put(t, c.provider.Name(), vectors[j])
			}
			for _, idx := range missing[t] {
				out[idx] = vectors[j]
			}
		}
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (c *Client) EmbedOne(ctx context.Context, text string, role Role) ([]float64, error) {
	vs, err := c.Embed(ctx, []string{text}, role)
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (c *Client) embedChunk(ctx context.Context, texts []string, role Role) ([][]float64, error) {
	backoff := c.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		vectors, err := c.provider.Embed(reqCtx, texts, role)
		cancel()
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
		}
		if err == nil {
			return vectors, nil
		}

		lastErr = err
		c.logger.Warn("embedding.request.failed",
			"provider", c.provider.Name(),
			"attempt", attempt+1,
			"texts", len(texts),
			"error", err,
		)
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
