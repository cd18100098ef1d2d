package enrollment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory enrollment Store.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[[2]string]Progress
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[[2]string]Progress)}
}

func (s *MemoryStore) Create(_ context.Context, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{p.UserID, p.CourseID}
	if _, ok := s.rows[key]; ok {
		return ErrAlreadyEnrolled
	}
	s.rows[key] = p
	return nil
}

func (s *MemoryStore) Advance(_ context.Context, userID, courseID string, pct, threshold int, now time.Time) (Progress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{userID, courseID}
	p, ok := s.rows[key]
	if !ok {
		return Progress{}, false, ErrNotEnrolled
	}

	p.ProgressPercentage = max(p.ProgressPercentage, pct)
	p.LastAccessedAt = &now

	completed := false
	if p.Status != StatusCompleted && p.ProgressPercentage >= threshold {
		p.Status = StatusCompleted
		p.CompletedAt = &now
		completed = true
	}

	s.rows[key] = p
	return p, completed, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, courseID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.rows[[2]string{userID, courseID}]
	if !ok {
		return Progress{}, ErrNotEnrolled
	}
	return p, nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID string) ([]Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Progress
	for _, p := range s.rows {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessedAt.After(*out[j].LastAccessedAt)
	})
	return out, nil
}
