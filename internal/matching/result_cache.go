package matching

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/matching/lexical"
	"github.com/joseph-ayodele/boq-matcher/internal/units"
)

// ResultCache remembers recent match outcomes so duplicate lines within a
// job are scored once.
type ResultCache struct {
	lru    *expirable.LRU[string, entity.MatchResult]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = 2000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResultCache{lru: expirable.NewLRU[string, entity.MatchResult](size, nil, ttl)}
}

// resultKey folds everything that can change the outcome: the catalog
// version, the strategy and the normalized line.
func resultKey(version uint64, strategy constants.Strategy, item entity.WorkItem) string {
	headers := make([]string, len(item.ContextHeaders))
	for i, h := range item.ContextHeaders {
		headers[i] = lexical.NormalizeText(h)
	}
	return fmt.Sprintf("%d|%s|%s|%s|%s",
		version,
		strategy,
		lexical.NormalizeText(item.Description),
		units.Resolve(item.Unit, item.Description),
		strings.Join(headers, ">"),
	)
}

func (c *ResultCache) get(key string) (entity.MatchResult, bool) {
	r, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return r, ok
}

func (c *ResultCache) put(key string, r entity.MatchResult) {
	c.lru.Add(key, detach(r))
}

// Purge drops every cached result.
func (c *ResultCache) Purge() {
	c.lru.Purge()
}

// Len is the number of live entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Hits and Misses are cumulative counters.
func (c *ResultCache) Hits() int64   { return c.hits.Load() }
func (c *ResultCache) Misses() int64 { return c.misses.Load() }

// detach copies the reference fields of r so the cache and its callers never
// share them.
func detach(r entity.MatchResult) entity.MatchResult {
	r.Breakdown = maps.Clone(r.Breakdown)
	r.ContextHeaders = slices.Clone(r.ContextHeaders)
	if r.Match != nil {
		m := *r.Match
		r.Match = &m
	}
	return r
}

// rebase moves a cached outcome onto another line with the same key.
func rebase(r entity.MatchResult, item entity.WorkItem) entity.MatchResult {
	r = detach(r)
	r.JobID = ""
	r.RowNumber = item.RowNumber
	r.Description = item.Description
	r.Quantity = item.Quantity
	r.Unit = item.Unit
	r.ContextHeaders = slices.Clone(item.ContextHeaders)
	return r
}
