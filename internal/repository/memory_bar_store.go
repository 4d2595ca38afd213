package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"BarFlow/internal/domain/models"
	domrepo "BarFlow/internal/domain/repository"
)

// MemoryBarStore is the reference in-memory BarStore: appends merge by
// timestamp (last write wins) under one mutex, which makes concurrent
// appends to the same key trivially linearizable. Used in tests and as
// the executable statement of the storage contract the engine assumes.
type MemoryBarStore struct {
	mu     sync.RWMutex
	series map[models.StorageKey]map[int64]models.Bar
}

func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{series: make(map[models.StorageKey]map[int64]models.Bar)}
}

func (s *MemoryBarStore) Read(_ context.Context, key models.StorageKey, w models.Window) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.series[key]
	if !ok {
		return nil, nil
	}
	out := make([]models.Bar, 0, len(m))
	for _, b := range m {
		if w.IsZero() || w.Contains(b.Timestamp) {
			out = append(out, b)
		}
	}
	models.SortBars(out)
	return out, nil
}

func (s *MemoryBarStore) Append(_ context.Context, key models.StorageKey, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.series[key]
	if !ok {
		m = make(map[int64]models.Bar, len(bars))
		s.series[key] = m
	}
	for _, b := range bars {
		m[b.Timestamp.Unix()] = b
	}
	return nil
}

func (s *MemoryBarStore) Exists(_ context.Context, key models.StorageKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.series[key]
	return ok && len(m) > 0, nil
}

func (s *MemoryBarStore) ListKeys(_ context.Context, prefix string) ([]models.StorageKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []models.StorageKey
	for k := range s.series {
		if strings.HasPrefix(string(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (s *MemoryBarStore) DateRange(_ context.Context, key models.StorageKey) (time.Time, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.series[key]
	if !ok || len(m) == 0 {
		return time.Time{}, time.Time{}, nil
	}
	var first, last time.Time
	for _, b := range m {
		if first.IsZero() || b.Timestamp.Before(first) {
			first = b.Timestamp
		}
		if b.Timestamp.After(last) {
			last = b.Timestamp
		}
	}
	return first, last, nil
}

func (s *MemoryBarStore) Delete(_ context.Context, key models.StorageKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, key)
	return nil
}

var _ domrepo.BarStore = (*MemoryBarStore)(nil)
