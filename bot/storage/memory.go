package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/m3rciful/adboard/bot/ads"
)

// Memory is an in-process ads.Store used in development and tests.
// Values are copied in and out, so callers never share state with the store.
type Memory struct {
	mu     sync.RWMutex
	users  map[int64]ads.User
	ads    map[int64]ads.Ad
	nextID int64
}

var _ ads.Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		users: make(map[int64]ads.User),
		ads:   make(map[int64]ads.Ad),
	}
}

// AddUser implements ads.Store.
func (m *Memory) AddUser(_ context.Context, u ads.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return false, nil
	}
	m.users[u.ID] = u
	return true, nil
}

// GetUser implements ads.Store.
func (m *Memory) GetUser(_ context.Context, id int64) (ads.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return ads.User{}, fmt.Errorf("get user %d: %w", id, ads.ErrNotFound)
	}
	return u, nil
}

// CreateAd implements ads.Store.
func (m *Memory) CreateAd(_ context.Context, ownerID int64, f ads.Fields, postRef string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[ownerID]; !ok {
		return 0, fmt.Errorf("create ad for %d: unknown owner", ownerID)
	}
	m.nextID++
	m.ads[m.nextID] = ads.Ad{ID: m.nextID, OwnerID: ownerID, Fields: f, PostRef: postRef}
	return m.nextID, nil
}

// GetAd implements ads.Store.
func (m *Memory) GetAd(_ context.Context, id int64) (ads.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ad, ok := m.ads[id]
	if !ok {
		return ads.Ad{}, fmt.Errorf("get ad %d: %w", id, ads.ErrNotFound)
	}
	return ad, nil
}

// GetAdsByOwner implements ads.Store.
func (m *Memory) GetAdsByOwner(_ context.Context, ownerID int64) ([]ads.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []ads.Ad
	for _, ad := range m.ads {
		if ad.OwnerID == ownerID {
			list = append(list, ad)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// UpdateAd implements ads.Store.
func (m *Memory) UpdateAd(_ context.Context, id int64, f ads.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ad, ok := m.ads[id]
	if !ok {
		return fmt.Errorf("update ad %d: %w", id, ads.ErrNotFound)
	}
	ad.Fields = f
	m.ads[id] = ad
	return nil
}

// SetPostRef implements ads.Store.
func (m *Memory) SetPostRef(_ context.Context, id int64, postRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ad, ok := m.ads[id]
	if !ok {
		return fmt.Errorf("set post ref of ad %d: %w", id, ads.ErrNotFound)
	}
	ad.PostRef = postRef
	m.ads[id] = ad
	return nil
}

// DeleteAd implements ads.Store.
func (m *Memory) DeleteAd(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ads[id]; !ok {
		return fmt.Errorf("delete ad %d: %w", id, ads.ErrNotFound)
	}
	delete(m.ads, id)
	return nil
}

// Close implements ads.Store.
func (m *Memory) Close() error { return nil }
