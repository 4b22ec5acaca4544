package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records calls that reach the backing store.
type countingStore struct {
	*MemoryStore
	lists   atomic.Int32
	gets    atomic.Int32
	updates atomic.Int32
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func (c *countingStore) List(ctx context.Context) ([]WorkSummary, error) {
	c.lists.Add(1)
	return c.MemoryStore.List(ctx)
}

func (c *countingStore) Get(ctx context.Context, id string) (*WorkPost, error) {
	c.gets.Add(1)
	return c.MemoryStore.Get(ctx, id)
}

func (c *countingStore) UpdateContent(ctx context.Context, id, content string) error {
	c.updates.Add(1)
	return c.MemoryStore.UpdateContent(ctx, id, content)
}

func TestCachedStore_ListReadThrough(t *testing.T) {
	backing := newCountingStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "a", Title: "a"}))

	cs := NewCachedStore(backing, time.Hour, 0, nil)
	defer cs.Close()

	for range 3 {
		list, err := cs.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	assert.Equal(t, int32(1), backing.lists.Load())

	require.NoError(t, cs.Upsert(ctx, &WorkPost{ID: "b", Title: "b"}))
	list, err := cs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int32(2), backing.lists.Load())

	cs.Invalidate()
	_, err = cs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), backing.lists.Load())
}

func TestCachedStore_ListExpires(t *testing.T) {
	backing := newCountingStore()
	cs := NewCachedStore(backing, time.Minute, 0, nil)
	defer cs.Close()

	now := time.Now()
	cs.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := cs.List(ctx)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = cs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), backing.lists.Load())

	now = now.Add(time.Minute)
	_, err = cs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.lists.Load())
}

func TestCachedStore_ConcurrentListsShareOneFetch(t *testing.T) {
	backing := newCountingStore()
	cs := NewCachedStore(backing, time.Hour, 0, nil)
	defer cs.Close()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cs.List(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, backing.lists.Load(), int32(16))

	_, err := cs.List(context.Background())
	require.NoError(t, err)
	before := backing.lists.Load()
	_, err = cs.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, backing.lists.Load())
}

func TestCachedStore_GetCached(t *testing.T) {
	backing := newCountingStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "a", Title: "a"}))

	cs := NewCachedStore(backing, time.Hour, 0, nil)
	defer cs.Close()

	for range 3 {
		w, err := cs.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "a", w.Title)
	}
	assert.Equal(t, int32(1), backing.gets.Load())

	_, err := cs.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_WriteThroughContent(t *testing.T) {
	backing := newCountingStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "a", Content: "old"}))

	cs := NewCachedStore(backing, time.Hour, 0, nil)
	defer cs.Close()

	require.NoError(t, cs.UpdateContent(ctx, "a", "new"))
	w, err := backing.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new", w.Content)
	assert.ErrorIs(t, cs.UpdateContent(ctx, "missing", "x"), ErrNotFound)
}

func TestCachedStore_WriteBehindContent(t *testing.T) {
	backing := newCountingStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "a", Content: "old"}))

	cs := NewCachedStore(backing, time.Hour, 50*time.Millisecond, nil)
	defer cs.Close()

	for _, c := range []string{"v1", "v2", "v3"} {
		require.NoError(t, cs.UpdateContent(ctx, "a", c))
	}

	// Reads through the cache see buffered content immediately.
	w, err := cs.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v3", w.Content)

	assert.Eventually(t, func() bool {
		w, err := backing.MemoryStore.Get(ctx, "a")
		return err == nil && w.Content == "v3"
	}, 2*time.Second, 20*time.Millisecond)
	assert.LessOrEqual(t, backing.updates.Load(), int32(3))
}

func TestCachedStore_CloseFlushes(t *testing.T) {
	backing := newCountingStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "a", Content: "old"}))

	cs := NewCachedStore(backing, time.Hour, time.Hour, nil)
	require.NoError(t, cs.UpdateContent(ctx, "a", "final"))
	assert.Equal(t, int32(0), backing.updates.Load())

	cs.Close()
	cs.Close()

	w, err := backing.MemoryStore.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "final", w.Content)
}

func TestCachedStore_DeleteDropsBufferedContent(t *testing.T) {
	backing := newCountingStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "a", Content: "old"}))

	cs := NewCachedStore(backing, time.Hour, time.Hour, nil)
	require.NoError(t, cs.UpdateContent(ctx, "a", "pending"))
	require.NoError(t, cs.Delete(ctx, "a"))
	cs.Close()

	assert.Equal(t, int32(0), backing.updates.Load())
	_, err := cs.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

// gatedStore holds UpdateContent for one work until released.
type gatedStore struct {
	*MemoryStore
	gateID  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) UpdateContent(ctx context.Context, id, content string) error {
	if id == g.gateID {
		close(g.entered)
		<-g.release
	}
	return g.MemoryStore.UpdateContent(ctx, id, content)
}

func TestCachedStore_FlushDoesNotOverwriteUpsert(t *testing.T) {
	backing := &gatedStore{MemoryStore: NewMemoryStore(), gateID: "a", entered: make(chan struct{}), release: make(chan struct{})}
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "a", Content: "old"}))
	require.NoError(t, backing.Upsert(ctx, &WorkPost{ID: "b", Content: "old"}))

	cs := NewCachedStore(backing, time.Hour, time.Hour, nil)
	require.NoError(t, cs.UpdateContent(ctx, "a", "buffered"))
	require.NoError(t, cs.UpdateContent(ctx, "b", "buffered"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cs.flush()
	}()
	<-backing.entered

	// b is replaced after the flush took its snapshot.
	go func() {
		defer wg.Done()
		assert.NoError(t, cs.Upsert(ctx, &WorkPost{ID: "b", Content: "fresh"}))
	}()
	time.Sleep(50 * time.Millisecond)
	close(backing.release)
	wg.Wait()
	cs.Close()

	b, err := backing.MemoryStore.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "fresh", b.Content)
	a, err := backing.MemoryStore.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "buffered", a.Content)
}
