package server

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/store"
)

type joinRequest struct {
	client *Client
	workID string
}

// Hub manages live editing sessions and routes clients to the session of
// the work they edit. A session lives while it has clients.
type Hub struct {
	works    store.WorkStore
	log      *zap.Logger
	metrics  *metrics
	sessions map[string]*Session
	mu       sync.RWMutex

	joinWork chan joinRequest
	done     chan struct{}
	once     sync.Once
}

func NewHub(works store.WorkStore, log *zap.Logger, m *metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		works:    works,
		log:      log.Named("hub"),
		metrics:  m,
		sessions: make(map[string]*Session),
		joinWork: make(chan joinRequest, 64),
		done:     make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns after Close.
func (h *Hub) Run() {
	for {
		select {
		case req := <-h.joinWork:
			h.handleJoin(req)
		case <-h.done:
			return
		}
	}
}

// Close stops the hub and every session.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for id, s := range h.sessions {
			close(s.stop)
			delete(h.sessions, id)
		}
	})
}

func (h *Hub) handleJoin(req joinRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[req.workID]
	if !ok {
		w, err := h.works.Get(context.Background(), req.workID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				req.client.sendError("work not found")
				return
			}
			h.log.Error("load work", zap.String("work", req.workID), zap.Error(err))
			req.client.sendError("failed to load work")
			return
		}

		s = newSession(h, req.workID, w.Content)
		h.sessions[req.workID] = s
		go s.Run()
	}

	select {
	case s.join <- req.client:
	default:
		req.client.sendError("session busy, retry")
	}
}

// release removes s once it has no clients. It refuses while joins are
// queued for s, so a join routed just before the last leave is served.
func (h *Hub) release(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(s.join) > 0 {
		return false
	}
	if h.sessions[s.workID] == s {
		delete(h.sessions, s.workID)
	}
	return true
}

// GetSession returns the session for a work, if active.
func (h *Hub) GetSession(workID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[workID]
}
