// Package catalog holds an in-memory store catalog for local runs and tests
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/preuvely/storematch/pkg/models"
)

// Memory is a store catalog kept in process memory. Reads return copies in
// insertion order.
type Memory struct {
	stores []models.Store
	mu     sync.RWMutex
}

// NewMemory creates a catalog seeded with the given stores
func NewMemory(stores ...models.Store) *Memory {
	m := &Memory{}
	for _, s := range stores {
		m.stores = append(m.stores, cloneStore(s))
	}
	return m
}

// Put inserts a store or replaces the one with the same ID
func (m *Memory) Put(store models.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.stores {
		if s.ID == store.ID {
			m.stores[i] = cloneStore(store)
			return
		}
	}
	m.stores = append(m.stores, cloneStore(store))
}

// Remove deletes a store by ID
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.stores {
		if s.ID == id {
			m.stores = append(m.stores[:i], m.stores[i+1:]...)
			return
		}
	}
}

// Count returns the number of stores in any status
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stores)
}

// ListActive returns all active stores with their links
func (m *Memory) ListActive(ctx context.Context) ([]models.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	active := []models.Store{}
	for _, s := range m.stores {
		if s.IsActive() {
			active = append(active, cloneStore(s))
		}
	}
	return active, nil
}

// FindActiveByLink returns active stores having a link that satisfies filter
func (m *Memory) FindActiveByLink(ctx context.Context, filter models.LinkFilter) ([]models.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := []models.Store{}
	for _, s := range m.stores {
		if s.IsActive() && filter.MatchesStore(s) {
			matches = append(matches, cloneStore(s))
		}
	}
	return matches, nil
}

// FindPending returns pending stores that satisfy filter
func (m *Memory) FindPending(ctx context.Context, filter models.PendingFilter) ([]models.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := []models.Store{}
	for _, s := range m.stores {
		if s.Status == models.StoreStatusPending && filter.Matches(s) {
			matches = append(matches, cloneStore(s))
		}
	}
	return matches, nil
}

// GetByID returns the store with the given ID in any status
func (m *Memory) GetByID(ctx context.Context, id string) (*models.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stores {
		if s.ID == id {
			store := cloneStore(s)
			return &store, nil
		}
	}
	return nil, nil
}

// Create persists a new store built from req and returns it
func (m *Memory) Create(ctx context.Context, req models.CreateStoreRequest) (*models.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	store := models.Store{
		ID:             uuid.New().String(),
		Name:           req.Name,
		NormalizedName: req.NormalizedName,
		Slug:           req.Slug,
		Status:         req.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
		Links:          make([]models.Link, 0, len(req.Links)),
	}
	for _, in := range req.Links {
		store.Links = append(store.Links, models.NewLink(store.ID, in))
	}

	m.mu.Lock()
	m.stores = append(m.stores, cloneStore(store))
	m.mu.Unlock()

	return &store, nil
}

func cloneStore(s models.Store) models.Store {
	links := make([]models.Link, len(s.Links))
	copy(links, s.Links)
	s.Links = links
	return s
}

// SlugExists reports whether any store already uses slug
func (m *Memory) SlugExists(ctx context.Context, slug string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stores {
		if s.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}
