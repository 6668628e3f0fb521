package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

type fakeStore struct {
	mu    sync.Mutex
	items []entity.CatalogItem
	err   error
	calls int
}

func (f *fakeStore) GetActiveCatalogItems(context.Context) ([]entity.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func TestCacheServesWithinTTL(t *testing.T) {
	store := &fakeStore{items: []entity.CatalogItem{{ID: "b"}, {ID: "a"}}}
	c := NewCache(store, time.Minute, nil)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	s1, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s1.Version)
	assert.Equal(t, "a", s1.Items[0].ID)

	s2, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s1.Version, s2.Version)
	assert.Equal(t, 1, store.calls)

	now = now.Add(2 * time.Minute)
	s3, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s3.Version)
	assert.Equal(t, 2, store.calls)
}

func TestCacheFallsBackToLastSnapshot(t *testing.T) {
	store := &fakeStore{items: []entity.CatalogItem{{ID: "a"}}}
	c := NewCache(store, time.Minute, nil)

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	store.err = errors.New("db down")
	c.Invalidate()
	s, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Version)
	assert.Len(t, s.Items, 1)
}

func TestCacheFailsWithoutSnapshot(t *testing.T) {
	c := NewCache(&fakeStore{err: errors.New("db down")}, time.Minute, nil)
	_, err := c.Get(context.Background())
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}
