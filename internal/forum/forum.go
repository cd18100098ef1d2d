// Package forum implements per-course discussions with replies and accepted
// solutions.
package forum

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

// Discussion is the root post of a thread.
type Discussion struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsPinned   bool      `json:"is_pinned"`
	IsLocked   bool      `json:"is_locked"`
	ViewCount  int       `json:"view_count"`
	ReplyCount int       `json:"reply_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Reply answers a discussion.
type Reply struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	IsSolution   bool      `json:"is_solution"`
	CreatedAt    time.Time `json:"created_at"`
}

// Thread is a discussion with its replies in creation order.
type Thread struct {
	Discussion
	Replies []Reply `json:"replies"`
}

var (
	ErrDiscussionNotFound = apperr.NotFound("discussion not found")
	ErrReplyNotFound      = apperr.NotFound("reply not found")
	ErrDiscussionLocked   = apperr.Conflict("discussion is locked")
	ErrNotOriginalPoster  = apperr.New(apperr.KindForbidden, "only the original poster can mark a solution")
	ErrTitleRequired      = apperr.Validation("title is required")
	ErrContentRequired    = apperr.Validation("content is required")
)

// Store persists discussions and replies.
type Store interface {
	CreateDiscussion(ctx context.Context, d Discussion) (Discussion, error)
	GetDiscussion(ctx context.Context, id string) (Discussion, error)
	// ViewDiscussion increments the view counter and returns the discussion.
	ViewDiscussion(ctx context.Context, id string) (Discussion, error)
	// ListDiscussions orders pinned first, then newest first.
	ListDiscussions(ctx context.Context, courseID string) ([]Discussion, error)
	// CreateReply rejects replies to locked discussions with
	// ErrDiscussionLocked.
	CreateReply(ctx context.Context, r Reply) (Reply, error)
	GetReply(ctx context.Context, id string) (Reply, error)
	Replies(ctx context.Context, discussionID string) ([]Reply, error)
	// MarkSolution clears any other solution of the discussion and marks
	// replyID, atomically.
	MarkSolution(ctx context.Context, discussionID, replyID string) error
}

// CourseLookup resolves courses.
type CourseLookup interface {
	Get(ctx context.Context, id string) (catalog.Course, error)
}

// Service implements the discussion forum.
type Service struct {
	store   Store
	courses CourseLookup
	events  activity.EventLogger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEventLogger sets the activity logger.
func WithEventLogger(l activity.EventLogger) Option {
	return func(s *Service) { s.events = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a forum service.
func NewService(store Store, courses CourseLookup, opts ...Option) *Service {
	s := &Service{store: store, courses: courses, events: activity.NopEventLogger{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDiscussion opens a thread on a course.
func (s *Service) CreateDiscussion(ctx context.Context, actor auth.Actor, courseID, title, content string) (Discussion, error) {
	if err := auth.Require(actor); err != nil {
		return Discussion{}, err
	}
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if title == "" {
		return Discussion{}, ErrTitleRequired
	}
	if content == "" {
		return Discussion{}, ErrContentRequired
	}
	if _, err := s.courses.Get(ctx, courseID); err != nil {
		return Discussion{}, err
	}

	return s.store.CreateDiscussion(ctx, Discussion{
		CourseID:  courseID,
		UserID:    actor.UserID,
		Title:     title,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
}

// CreateReply answers a discussion.
func (s *Service) CreateReply(ctx context.Context, actor auth.Actor, discussionID, content string) (Reply, error) {
	if err := auth.Require(actor); err != nil {
		return Reply{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Reply{}, ErrContentRequired
	}
	if uuid.Validate(discussionID) != nil {
		return Reply{}, ErrDiscussionNotFound
	}

	return s.store.CreateReply(ctx, Reply{
		DiscussionID: discussionID,
		UserID:       actor.UserID,
		Content:      content,
		CreatedAt:    s.now().UTC(),
	})
}

// MarkAsSolution marks a reply as the accepted answer of its discussion.
// Only the discussion's original poster may do so; any earlier solution is
// cleared.
func (s *Service) MarkAsSolution(ctx context.Context, actor auth.Actor, replyID string) (Reply, error) {
	if err := auth.Require(actor); err != nil {
		return Reply{}, err
	}
	if uuid.Validate(replyID) != nil {
		return Reply{}, ErrReplyNotFound
	}

	r, err := s.store.GetReply(ctx, replyID)
	if err != nil {
		return Reply{}, err
	}
	d, err := s.store.GetDiscussion(ctx, r.DiscussionID)
	if err != nil {
		return Reply{}, err
	}
	if d.UserID != actor.UserID {
		return Reply{}, ErrNotOriginalPoster
	}

	if err := s.store.MarkSolution(ctx, d.ID, r.ID); err != nil {
		return Reply{}, err
	}
	r.IsSolution = true

	activity.Record(ctx, s.events, activity.Event{
		UserID:    actor.UserID,
		EventType: activity.EventSolutionMarked,
		Data:      map[string]any{"discussion_id": d.ID, "reply_id": r.ID, "reply_author": r.UserID},
	})
	return r, nil
}

// ListDiscussions lists a course's discussions, pinned first then newest,
// each with its current reply count.
func (s *Service) ListDiscussions(ctx context.Context, courseID string) ([]Discussion, error) {
	return s.store.ListDiscussions(ctx, courseID)
}

// GetDiscussion counts a view and returns the thread.
func (s *Service) GetDiscussion(ctx context.Context, id string) (Thread, error) {
	if uuid.Validate(id) != nil {
		return Thread{}, ErrDiscussionNotFound
	}

	d, err := s.store.ViewDiscussion(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	replies, err := s.store.Replies(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	if replies == nil {
		replies = []Reply{}
	}
	d.ReplyCount = len(replies)
	return Thread{Discussion: d, Replies: replies}, nil
}
