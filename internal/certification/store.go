package certification

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory certificate Store.
type MemoryStore struct {
	mu       sync.Mutex
	byNumber map[string]Certificate
	byOwner  map[[2]string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byNumber: make(map[string]Certificate),
		byOwner:  make(map[[2]string]string),
	}
}

func (s *MemoryStore) GetByUserCourse(_ context.Context, userID, courseID string) (Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number, ok := s.byOwner[[2]string{userID, courseID}]
	if !ok {
		return Certificate{}, ErrCertificateNotFound
	}
	return s.byNumber[number], nil
}

func (s *MemoryStore) GetByNumber(_ context.Context, number string) (Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byNumber[number]
	if !ok {
		return Certificate{}, ErrCertificateNotFound
	}
	return c, nil
}

func (s *MemoryStore) Insert(_ context.Context, c Certificate) (Certificate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{c.UserID, c.CourseID}
	if number, ok := s.byOwner[key]; ok {
		return s.byNumber[number], false, nil
	}
	if _, taken := s.byNumber[c.CertificateNumber]; taken {
		return Certificate{}, false, ErrNumberTaken
	}

	c.ID = uuid.NewString()
	s.byNumber[c.CertificateNumber] = c
	s.byOwner[key] = c.CertificateNumber
	return c, true, nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID string) ([]Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Certificate
	for _, c := range s.byNumber {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}
