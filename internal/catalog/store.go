package catalog

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory catalog Store.
type MemoryStore struct {
	mu      sync.RWMutex
	courses map[string]Course
}

// NewMemoryStore creates a store seeded with courses.
func NewMemoryStore(courses ...Course) *MemoryStore {
	s := &MemoryStore{courses: make(map[string]Course)}
	for _, c := range courses {
		s.courses[c.ID] = c
	}
	return s
}

func (s *MemoryStore) ListCourses(context.Context) ([]Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) GetCourse(_ context.Context, id string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpsertCourse(_ context.Context, c Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
	return nil
}
