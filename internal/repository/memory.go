package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// MemoryCatalog is an in-process CatalogRepository.
type MemoryCatalog struct {
	mu       sync.RWMutex
	items    map[string]entity.CatalogItem
	inactive map[string]bool
}

func NewMemoryCatalog(items ...entity.CatalogItem) *MemoryCatalog {
	c := &MemoryCatalog{items: make(map[string]entity.CatalogItem), inactive: make(map[string]bool)}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *MemoryCatalog) GetActiveCatalogItems(context.Context) ([]entity.CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.CatalogItem, 0, len(c.items))
	for id, it := range c.items {
		if !c.inactive[id] {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) UpsertItems(_ context.Context, items []entity.CatalogItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		if it.ID == "" || it.Description == "" {
			return common.InvalidInputf("catalog item requires id and description (id=%q)", it.ID)
		}
		if it.Rate < 0 {
			return common.InvalidInputf("catalog item %s has negative rate", it.ID)
		}
		c.items[it.ID] = it
		delete(c.inactive, it.ID)
	}
	return nil
}

func (c *MemoryCatalog) SaveEmbeddings(_ context.Context, provider string, vectors map[string][]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, v := range vectors {
		it, ok := c.items[id]
		if !ok {
			continue
		}
		it.Embedding, it.EmbeddingProvider = v, provider
		c.items[id] = it
	}
	return nil
}

func (c *MemoryCatalog) Deactivate(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.inactive[id] = true
	}
	return nil
}

func (c *MemoryCatalog) Count(ctx context.Context) (int, error) {
	items, _ := c.GetActiveCatalogItems(ctx)
	return len(items), nil
}

// MemoryResults is an in-process ResultRepository.
type MemoryResults struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]entity.JobSnapshot
	results map[string]map[int]entity.MatchResult
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{
		jobs:    make(map[uuid.UUID]entity.JobSnapshot),
		results: make(map[string]map[int]entity.MatchResult),
	}
}

func (s *MemoryResults) UpsertJob(_ context.Context, snap entity.JobSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[snap.JobID] = snap
	return nil
}

func (s *MemoryResults) UpdateJobStatus(_ context.Context, jobID uuid.UUID, status constants.JobStatus, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.jobs[jobID]
	if !ok {
		return common.NotFound(fmt.Sprintf("job %s", jobID))
	}
	snap.Status, snap.Progress, snap.Message = status, progress, message
	if status.IsTerminal() && snap.FinishedAt == nil {
		now := time.Now().UTC()
		snap.FinishedAt = &now
	}
	s.jobs[jobID] = snap
	return nil
}

func (s *MemoryResults) GetJob(_ context.Context, jobID uuid.UUID) (*entity.JobSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.jobs[jobID]
	if !ok {
		return nil, common.NotFound(fmt.Sprintf("job %s", jobID))
	}
	return &snap, nil
}

func (s *MemoryResults) SaveResults(_ context.Context, results []entity.MatchResult) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		rows, ok := s.results[r.JobID]
		if !ok {
			rows = make(map[int]entity.MatchResult)
			s.results[r.JobID] = rows
		}
		rows[r.RowNumber] = r
	}
	return len(results), 0, nil
}

func (s *MemoryResults) ListResults(_ context.Context, jobID uuid.UUID) ([]entity.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.results[jobID.String()]
	out := make([]entity.MatchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowNumber < out[j].RowNumber })
	return out, nil
}
