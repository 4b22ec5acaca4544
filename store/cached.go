package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL matches how long a published page may serve stale data.
const DefaultCacheTTL = 10 * time.Minute

type cachedWork struct {
	work      WorkPost
	fetchedAt time.Time
}

// CachedStore wraps a backing WorkStore with a read-through cache.
// List and Get results are kept for ttl or until Invalidate. Upsert and
// Delete write through and invalidate. UpdateContent is buffered and
// flushed to the backing store every flushInterval; a zero interval
// writes through instead.
type CachedStore struct {
	backing       WorkStore
	ttl           time.Duration
	flushInterval time.Duration
	log           *zap.Logger
	group         singleflight.Group
	now           func() time.Time

	// writeMu orders flushes against Upsert and Delete so buffered content
	// never lands on top of a newer full write.
	writeMu sync.Mutex

	mu     sync.Mutex
	gen    uint64
	list   []WorkSummary
	listAt time.Time
	works  map[string]cachedWork
	dirty  map[string]string

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewCachedStore creates a CachedStore over backing. A non-positive ttl
// uses DefaultCacheTTL.
func NewCachedStore(backing WorkStore, ttl, flushInterval time.Duration, log *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	cs := &CachedStore{
		backing:       backing,
		ttl:           ttl,
		flushInterval: flushInterval,
		log:           log,
		now:           time.Now,
		works:         make(map[string]cachedWork),
		dirty:         make(map[string]string),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if flushInterval > 0 {
		go cs.flushLoop()
	} else {
		close(cs.done)
	}
	return cs
}

// Invalidate drops every cached read. Buffered content is kept.
func (cs *CachedStore) Invalidate() {
	cs.mu.Lock()
	cs.gen++
	cs.list = nil
	clear(cs.works)
	cs.mu.Unlock()
}

func (cs *CachedStore) List(ctx context.Context) ([]WorkSummary, error) {
	cs.mu.Lock()
	if cs.list != nil && cs.now().Sub(cs.listAt) < cs.ttl {
		out := slices.Clone(cs.list)
		cs.mu.Unlock()
		return out, nil
	}
	gen := cs.gen
	cs.mu.Unlock()

	v, err, _ := cs.group.Do("list", func() (any, error) {
		return cs.backing.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	list := v.([]WorkSummary)

	cs.mu.Lock()
	if cs.gen == gen {
		cs.list = list
		cs.listAt = cs.now()
	}
	cs.mu.Unlock()
	return slices.Clone(list), nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*WorkPost, error) {
	cs.mu.Lock()
	if c, ok := cs.works[id]; ok && cs.now().Sub(c.fetchedAt) < cs.ttl {
		w := c.work
		cs.overlay(&w)
		cs.mu.Unlock()
		return &w, nil
	}
	gen := cs.gen
	cs.mu.Unlock()

	v, err, _ := cs.group.Do("get:"+id, func() (any, error) {
		return cs.backing.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	w := *v.(*WorkPost)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.gen == gen {
		cs.works[id] = cachedWork{work: w, fetchedAt: cs.now()}
	}
	cs.overlay(&w)
	return &w, nil
}

// overlay applies buffered content. Callers hold cs.mu.
func (cs *CachedStore) overlay(w *WorkPost) {
	if content, ok := cs.dirty[w.ID]; ok {
		w.Content = content
	}
}

func (cs *CachedStore) Upsert(ctx context.Context, w *WorkPost) error {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	if err := cs.backing.Upsert(ctx, w); err != nil {
		return err
	}
	cs.mu.Lock()
	delete(cs.dirty, w.ID)
	cs.mu.Unlock()
	cs.Invalidate()
	return nil
}

func (cs *CachedStore) UpdateContent(ctx context.Context, id, content string) error {
	if cs.flushInterval <= 0 {
		if err := cs.backing.UpdateContent(ctx, id, content); err != nil {
			return err
		}
		cs.Invalidate()
		return nil
	}
	// Ensure the work exists before accepting content for it.
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[id] = content
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Delete(ctx context.Context, id string) error {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	cs.mu.Lock()
	delete(cs.dirty, id)
	cs.mu.Unlock()
	if err := cs.backing.Delete(ctx, id); err != nil {
		return err
	}
	cs.Invalidate()
	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush writes buffered content to the backing store.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	snapshot := make(map[string]string, len(cs.dirty))
	for id, content := range cs.dirty {
		snapshot[id] = content
	}
	cs.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	ctx := context.Background()
	flushed := 0
	for _, id := range slices.Sorted(maps.Keys(snapshot)) {
		if cs.flushOne(ctx, id, snapshot[id]) {
			flushed++
		}
	}
	if flushed > 0 {
		cs.Invalidate()
		cs.log.Debug("cached store: flushed content", zap.Int("works", flushed))
	}
}

// flushOne writes content for id unless a write since the snapshot has
// replaced or dropped it, and reports whether it was written.
func (cs *CachedStore) flushOne(ctx context.Context, id, content string) bool {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()

	cs.mu.Lock()
	cur, ok := cs.dirty[id]
	cs.mu.Unlock()
	if !ok || cur != content {
		return false
	}

	err := cs.backing.UpdateContent(ctx, id, content)
	if err != nil && !errors.Is(err, ErrNotFound) {
		cs.log.Error("cached store: failed to flush content", zap.String("id", id), zap.Error(err))
		return false
	}
	if err != nil {
		cs.log.Warn("cached store: dropping content for deleted work", zap.String("id", id))
	}

	cs.mu.Lock()
	// Only clear if no new content arrived while writing.
	if cur, ok := cs.dirty[id]; ok && cur == content {
		delete(cs.dirty, id)
	}
	cs.mu.Unlock()
	return err == nil
}

// Close performs a final flush and waits for it to complete.
func (cs *CachedStore) Close() {
	cs.closeOnce.Do(func() {
		if cs.flushInterval > 0 {
			close(cs.stop)
		}
		<-cs.done
	})
}
