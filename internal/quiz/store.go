package quiz

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory quiz Store.
type MemoryStore struct {
	mu        sync.Mutex
	quizzes   map[string]Quiz
	questions map[string][]Question
	attempts  map[[2]string][]Attempt
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes:   make(map[string]Quiz),
		questions: make(map[string][]Question),
		attempts:  make(map[[2]string][]Attempt),
	}
}

func (s *MemoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return q, nil
}

func (s *MemoryStore) Questions(_ context.Context, quizID string) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Question(nil), s.questions[quizID]...), nil
}

func (s *MemoryStore) QuizzesForCourse(_ context.Context, courseID string) ([]Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Quiz
	for _, q := range s.quizzes {
		if q.CourseID == courseID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveQuiz(_ context.Context, q Quiz, questions []Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]Question(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })
	s.quizzes[q.ID] = q
	s.questions[q.ID] = sorted
	return nil
}

func (s *MemoryStore) InsertAttempt(_ context.Context, a Attempt, allowed func(prior int) error) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{a.UserID, a.QuizID}
	prior := s.attempts[key]
	if err := allowed(len(prior)); err != nil {
		return Attempt{}, err
	}

	a.ID = uuid.NewString()
	a.AttemptNumber = 1
	for _, p := range prior {
		a.AttemptNumber = max(a.AttemptNumber, p.AttemptNumber+1)
	}
	s.attempts[key] = append(prior, a)
	return a, nil
}

func (s *MemoryStore) ListAttempts(_ context.Context, userID, quizID string) ([]Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attempt(nil), s.attempts[[2]string{userID, quizID}]...), nil
}
