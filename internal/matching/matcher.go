// Package matching selects the best catalog item for a BOQ line under a
// chosen strategy.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/catalog"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/embedding"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/matching/lexical"
	"github.com/joseph-ayodele/boq-matcher/internal/matching/semantic"
	"github.com/joseph-ayodele/boq-matcher/internal/units"
)

const tracerName = "github.com/joseph-ayodele/boq-matcher/internal/matching"

// Config holds the HYBRID weights.
type Config struct {
	LexicalWeight  float64
	SemanticWeight float64
}

// Matcher is safe for concurrent use.
type Matcher struct {
	embeddings *embedding.Registry
	results    *ResultCache
	cfg        Config
	logger     *slog.Logger
	tracer     trace.Tracer

	mu         sync.Mutex
	index      *lexical.Index
	indexOfVer uint64
}

func New(embeddings *embedding.Registry, results *ResultCache, cfg Config, logger *slog.Logger) *Matcher {
	if embeddings == nil {
		embeddings = embedding.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LexicalWeight <= 0 {
		cfg.LexicalWeight = 0.85
	}
	if cfg.SemanticWeight <= 0 {
		cfg.SemanticWeight = 1.0
	}
	return &Matcher{
		embeddings: embeddings,
		results:    results,
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// ValidateStrategy rejects unknown strategies and semantic strategies without
// a registered provider.
func (m *Matcher) ValidateStrategy(strategy constants.Strategy) error {
	switch {
	case strategy == constants.StrategyLexical, strategy == constants.StrategyHybrid:
		return nil
	case strategy.IsSemantic():
		if _, ok := m.embeddings.Get(strategy); !ok {
			return common.InvalidInputf("strategy %s has no configured embedding provider", strategy)
		}
		return nil
	default:
		return common.InvalidInputf("unknown strategy %q", strategy)
	}
}

// Match scores one line against the snapshot. A zero snapshot version marks
// an ad-hoc catalog; such calls bypass the caches.
func (m *Matcher) Match(ctx context.Context, item entity.WorkItem, strategy constants.Strategy, snap catalog.Snapshot) (entity.MatchResult, error) {
	if strings.TrimSpace(item.Description) == "" {
		return entity.MatchResult{}, common.InvalidInput("description is required")
	}
	if err := m.ValidateStrategy(strategy); err != nil {
		return entity.MatchResult{}, err
	}

	ctx, span := m.tracer.Start(ctx, "matching.match", trace.WithAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.Int("row", item.RowNumber),
		attribute.Int64("catalog.version", int64(snap.Version)),
	))
	defer span.End()

	if len(snap.Items) == 0 {
		return entity.NewUnmatched(item, constants.Method(strategy), "catalog is empty"), nil
	}

	cacheable := m.results != nil && snap.Version > 0
	var key string
	if cacheable {
		key = resultKey(snap.Version, strategy, item)
		if r, ok := m.results.get(key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return rebase(r, item), nil
		}
	}

	var (
		res entity.MatchResult
		err error
	)
	switch {
	case strategy == constants.StrategyLexical:
		res = m.lexicalMatch(item, snap)
	case strategy == constants.StrategyHybrid:
		res, err = m.hybridMatch(ctx, item, snap)
	default:
		res, err = m.semanticOrFallback(ctx, item, strategy, snap)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return entity.MatchResult{}, err
	}

	if err := res.Validate(); err != nil {
		m.logger.Error("matching.invariant_violation",
			"row", item.RowNumber,
			"strategy", strategy,
			"method", res.Method,
			"confidence", res.Confidence,
			"item_id", res.MatchedItemID(),
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invariant violation")
		return entity.MatchResult{}, err
	}

	if cacheable {
		m.results.put(key, res)
	}
	return res, nil
}

// MatchItems matches against a plain slice of catalog items.
func (m *Matcher) MatchItems(ctx context.Context, item entity.WorkItem, strategy constants.Strategy, items []entity.CatalogItem) (entity.MatchResult, error) {
	return m.Match(ctx, item, strategy, catalog.Snapshot{Items: items})
}

func (m *Matcher) indexFor(snap catalog.Snapshot) *lexical.Index {
	if snap.Version == 0 {
		return lexical.NewIndex(snap.Items)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil || m.indexOfVer != snap.Version {
		m.index = lexical.NewIndex(snap.Items)
		m.indexOfVer = snap.Version
	}
	return m.index
}

func (m *Matcher) lexicalMatch(item entity.WorkItem, snap catalog.Snapshot) entity.MatchResult {
	idx := m.indexFor(snap)
	best, ok := idx.Best(idx.Query(item.Description, item.Unit, item.ContextHeaders))
	if !ok {
		return entity.NewUnmatched(item, constants.MethodLexical, "catalog is empty")
	}
	res := entity.NewMatched(item, best.Item, constants.MethodLexical, best.Confidence())
	res.Breakdown = best.Breakdown
	return res
}

// semanticMatch ranks candidates by cosine similarity. It fails when the
// query cannot be embedded or no catalog item has a vector.
func (m *Matcher) semanticMatch(ctx context.Context, item entity.WorkItem, strategy constants.Strategy, snap catalog.Snapshot) (entity.MatchResult, error) {
	client, ok := m.embeddings.Get(strategy)
	if !ok {
		return entity.MatchResult{}, common.ProviderUnavailable(fmt.Sprintf("no provider for %s", strategy), nil)
	}

	unit := units.Resolve(item.Unit, item.Description)
	qvec, err := client.EmbedOne(ctx, semantic.QueryText(item.Description, unit, item.ContextHeaders), embedding.RoleQuery)
	if err != nil {
		return entity.MatchResult{}, err
	}

	cands := m.candidates(client, snap.Items)
	best, conf, ok := semantic.Best(qvec, cands, unit)
	if !ok {
		return entity.MatchResult{}, common.ProviderUnavailable("no catalog vectors available", nil)
	}
	res := entity.NewMatched(item, best.Item, constants.Method(strategy), conf)
	res.Breakdown = map[string]float64{
		"similarity": best.Similarity,
		"adjusted":   best.Adjusted,
	}
	return res, nil
}

func (m *Matcher) candidates(client *embedding.Client, items []entity.CatalogItem) []semantic.Candidate {
	out := make([]semantic.Candidate, 0, len(items))
	for _, it := range items {
		if it.HasEmbeddingFrom(client.Name()) {
			out = append(out, semantic.Candidate{Item: it, Vector: it.Embedding})
			continue
		}
		if v, ok := client.Cached(semantic.ItemText(it)); ok {
			out = append(out, semantic.Candidate{Item: it, Vector: v})
		}
	}
	return out
}

// semanticOrFallback runs the semantic path and degrades to lexical scoring
// on any failure. The fallback result is labelled LEXICAL and records the
// requested strategy in FallbackFrom.
func (m *Matcher) semanticOrFallback(ctx context.Context, item entity.WorkItem, strategy constants.Strategy, snap catalog.Snapshot) (entity.MatchResult, error) {
	res, err := m.semanticMatch(ctx, item, strategy, snap)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return entity.MatchResult{}, ctx.Err()
	}
	m.logger.Warn("matching.semantic.fallback",
		"row", item.RowNumber,
		"strategy", strategy,
		"error", err,
	)
	trace.SpanFromContext(ctx).AddEvent("fallback", trace.WithAttributes(attribute.String("reason", err.Error())))

	fb := m.lexicalMatch(item, snap)
	fb.FallbackFrom = strategy
	fb.Notes = fmt.Sprintf("fallback from %s: %v", strategy, err)
	return fb, nil
}

type hybridCandidate struct {
	scorer   constants.Strategy
	result   entity.MatchResult
	weighted float64
}

// hybridMatch runs lexical and every registered semantic scorer concurrently
// and keeps the highest weighted confidence.
func (m *Matcher) hybridMatch(ctx context.Context, item entity.WorkItem, snap catalog.Snapshot) (entity.MatchResult, error) {
	strategies := m.embeddings.Strategies()
	slots := make([]*hybridCandidate, len(strategies)+1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r := m.lexicalMatch(item, snap)
		slots[0] = &hybridCandidate{scorer: constants.StrategyLexical, result: r, weighted: r.Confidence * m.cfg.LexicalWeight}
		return nil
	})
	for i, s := range strategies {
		g.Go(func() error {
			r, err := m.semanticMatch(gctx, item, s, snap)
			if err != nil {
				m.logger.Debug("matching.hybrid.scorer_skipped", "row", item.RowNumber, "scorer", s, "error", err)
				return nil
			}
			slots[i+1] = &hybridCandidate{scorer: s, result: r, weighted: r.Confidence * m.cfg.SemanticWeight}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return entity.MatchResult{}, err
	}
	if ctx.Err() != nil {
		return entity.MatchResult{}, ctx.Err()
	}

	var best *hybridCandidate
	var ran []string
	for _, c := range slots {
		if c == nil {
			continue
		}
		ran = append(ran, string(c.scorer))
		if best == nil || c.weighted > best.weighted {
			best = c
		}
	}
	if best == nil {
		return entity.NewUnmatched(item, constants.MethodHybrid, "no scorer produced a candidate"), nil
	}

	res := best.result
	res.Method = constants.MethodHybrid
	res.Confidence = min(best.weighted, 1)
	res.FallbackFrom = ""
	res.Notes = fmt.Sprintf("best of %s: %s", strings.Join(ran, ","), best.scorer)
	return res, nil
}

// WarmCatalog embeds catalog items that have neither a precomputed vector
// nor a cached one, in one bulk pass per provider.
func (m *Matcher) WarmCatalog(ctx context.Context, strategy constants.Strategy, snap catalog.Snapshot) error {
	for _, client := range m.clientsFor(strategy) {
		var texts []string
		for _, it := range snap.Items {
			if it.HasEmbeddingFrom(client.Name()) {
				continue
			}
			text := semantic.ItemText(it)
			if _, ok := client.Cached(text); !ok {
				texts = append(texts, text)
			}
		}
		if len(texts) == 0 {
			continue
		}
		if _, err := client.Embed(ctx, texts, embedding.RoleDocument); err != nil {
			return err
		}
		m.logger.Info("matching.warm.catalog", "provider", client.Name(), "texts", len(texts))
	}
	return nil
}

// WarmQueries embeds the query texts of a batch in one bulk call per
// provider. Context header rows are skipped.
func (m *Matcher) WarmQueries(ctx context.Context, strategy constants.Strategy, items []entity.WorkItem) error {
	clients := m.clientsFor(strategy)
	if len(clients) == 0 {
		return nil
	}
	texts := make([]string, 0, len(items))
	for _, it := range items {
		if it.IsContextHeader() || strings.TrimSpace(it.Description) == "" {
			continue
		}
		texts = append(texts, semantic.QueryText(it.Description, units.Resolve(it.Unit, it.Description), it.ContextHeaders))
	}
	if len(texts) == 0 {
		return nil
	}
	for _, client := range clients {
		if _, err := client.Embed(ctx, texts, embedding.RoleQuery); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) clientsFor(strategy constants.Strategy) []*embedding.Client {
	var strategies []constants.Strategy
	switch {
	case strategy == constants.StrategyHybrid:
		strategies = m.embeddings.Strategies()
	case strategy.IsSemantic():
		strategies = []constants.Strategy{strategy}
	}
	var out []*embedding.Client
	for _, s := range strategies {
		if c, ok := m.embeddings.Get(s); ok {
			out = append(out, c)
		}
	}
	return out
}

// PurgeResults clears the result cache.
func (m *Matcher) PurgeResults() {
	if m.results != nil {
		m.results.Purge()
	}
}
