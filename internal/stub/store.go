package stub

import (
	"sort"
	"sync"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
)

// Store keeps estimates in memory. Entries older than the TTL are dropped
// by a background sweep; a zero TTL keeps everything.
type Store struct {
	mu        sync.RWMutex
	estimates map[string]*domain.Estimate
	ttl       time.Duration
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewStore creates a store and starts the cleanup loop when ttl > 0
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		estimates: make(map[string]*domain.Estimate),
		ttl:       ttl,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

// Put stores or replaces an estimate
func (s *Store) Put(est *domain.Estimate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimates[est.EstimateID] = est
}

// Get returns the estimate with id, or nil
func (s *Store) Get(id string) *domain.Estimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimates[id]
}

// Delete removes id and reports whether it existed
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.estimates[id]; !ok {
		return false
	}
	delete(s.estimates, id)
	return true
}

// Len returns the number of stored estimates
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.estimates)
}

// List returns one page of estimates, newest first, and the filtered total
func (s *Store) List(status domain.Status, limit, offset int) ([]domain.Estimate, int) {
	s.mu.RLock()
	matched := make([]*domain.Estimate, 0, len(s.estimates))
	for _, est := range s.estimates {
		if status != "" && est.Status != status {
			continue
		}
		matched = append(matched, est)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].CreatedAt.Time, matched[j].CreatedAt.Time
		if a.Equal(b) {
			return matched[i].EstimateID > matched[j].EstimateID
		}
		return a.After(b)
	})

	total := len(matched)
	if offset >= total {
		return []domain.Estimate{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]domain.Estimate, 0, end-offset)
	for _, est := range matched[offset:end] {
		page = append(page, *est)
	}
	return page, total
}

// Close stops the cleanup loop
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for id, est := range s.estimates {
		if est.CreatedAt.Before(cutoff) {
			delete(s.estimates, id)
		}
	}
}
