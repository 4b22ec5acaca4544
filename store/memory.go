package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu        sync.RWMutex
	works     map[string]*WorkPost
	inquiries []Inquiry

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{works: make(map[string]*WorkPost), now: time.Now}
}

func (s *MemoryStore) List(_ context.Context) ([]WorkSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]WorkSummary, 0, len(s.works))
	for _, w := range s.works {
		result = append(result, w.Brief())
	}
	sortSummaries(result)
	return result, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*WorkPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.works[id]
	if !ok {
		return nil, workNotFound(id)
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) Upsert(_ context.Context, w *WorkPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := prepareWork(w, s.works[w.ID], s.now()); err != nil {
		return err
	}
	cp := *w
	s.works[w.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.works[id]
	if !ok {
		return workNotFound(id)
	}
	w.Content = content
	w.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.works[id]; !ok {
		return workNotFound(id)
	}
	delete(s.works, id)
	return nil
}

func (s *MemoryStore) CreateInquiry(_ context.Context, q *Inquiry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareInquiry(q, s.now())
	for _, existing := range s.inquiries {
		if existing.ID == q.ID {
			return fmt.Errorf("inquiry %q: %w", q.ID, ErrAlreadyExists)
		}
	}
	s.inquiries = append(s.inquiries, *q)
	return nil
}

func (s *MemoryStore) ListInquiries(_ context.Context) ([]Inquiry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.inquiries)
	if result == nil {
		result = []Inquiry{}
	}
	sortInquiries(result)
	return result, nil
}
