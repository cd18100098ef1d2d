package forum

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory forum Store.
type MemoryStore struct {
	mu          sync.Mutex
	discussions map[string]Discussion
	replies     map[string]Reply
	order       []string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		discussions: make(map[string]Discussion),
		replies:     make(map[string]Reply),
	}
}

// SetFlags pins or locks a discussion.
func (s *MemoryStore) SetFlags(id string, pinned, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discussions[id]
	if !ok {
		return ErrDiscussionNotFound
	}
	d.IsPinned, d.IsLocked = pinned, locked
	s.discussions[id] = d
	return nil
}

func (s *MemoryStore) CreateDiscussion(_ context.Context, d Discussion) (Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = uuid.NewString()
	s.discussions[d.ID] = d
	return d, nil
}

func (s *MemoryStore) GetDiscussion(_ context.Context, id string) (Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discussions[id]
	if !ok {
		return Discussion{}, ErrDiscussionNotFound
	}
	d.ReplyCount = s.countReplies(id)
	return d, nil
}

func (s *MemoryStore) ViewDiscussion(_ context.Context, id string) (Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discussions[id]
	if !ok {
		return Discussion{}, ErrDiscussionNotFound
	}
	d.ViewCount++
	s.discussions[id] = d
	d.ReplyCount = s.countReplies(id)
	return d, nil
}

func (s *MemoryStore) ListDiscussions(_ context.Context, courseID string) ([]Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Discussion{}
	for _, d := range s.discussions {
		if d.CourseID == courseID {
			d.ReplyCount = s.countReplies(d.ID)
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateReply(_ context.Context, r Reply) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discussions[r.DiscussionID]
	if !ok {
		return Reply{}, ErrDiscussionNotFound
	}
	if d.IsLocked {
		return Reply{}, ErrDiscussionLocked
	}

	r.ID = uuid.NewString()
	s.replies[r.ID] = r
	s.order = append(s.order, r.ID)
	return r, nil
}

func (s *MemoryStore) GetReply(_ context.Context, id string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.replies[id]
	if !ok {
		return Reply{}, ErrReplyNotFound
	}
	return r, nil
}

func (s *MemoryStore) Replies(_ context.Context, discussionID string) ([]Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Reply
	for _, id := range s.order {
		if r := s.replies[id]; r.DiscussionID == discussionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkSolution(_ context.Context, discussionID, replyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.replies[replyID]
	if !ok || target.DiscussionID != discussionID {
		return ErrReplyNotFound
	}
	for id, r := range s.replies {
		if r.DiscussionID == discussionID && r.IsSolution {
			r.IsSolution = false
			s.replies[id] = r
		}
	}
	target.IsSolution = true
	s.replies[replyID] = target
	return nil
}

func (s *MemoryStore) countReplies(discussionID string) int {
	n := 0
	for _, r := range s.replies {
		if r.DiscussionID == discussionID {
			n++
		}
	}
	return n
}
