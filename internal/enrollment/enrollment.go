// Package enrollment tracks which courses a learner is taking and how far
// they have got.
package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

// Status is the lifecycle state of an enrollment.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// DefaultCompletionThreshold is the progress at which a course completes.
const DefaultCompletionThreshold = 95

// Progress is a learner's enrollment in one course.
type Progress struct {
	UserID             string     `json:"user_id"`
	CourseID           string     `json:"course_id"`
	Status             Status     `json:"status"`
	ProgressPercentage int        `json:"progress_percentage"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	LastAccessedAt     *time.Time `json:"last_accessed_at,omitempty"`
}

var (
	ErrAlreadyEnrolled = apperr.Conflict("already enrolled in this course")
	ErrNotEnrolled     = apperr.NotFound("not enrolled in this course")
	ErrInvalidProgress = apperr.Validation("progress_percentage must be between 0 and 100")
)

// Store persists enrollment rows.
type Store interface {
	// Create inserts a new row, returning ErrAlreadyEnrolled when one exists.
	Create(ctx context.Context, p Progress) error
	// Advance raises progress to max(current, pct) and completes the row once
	// it reaches threshold. completed reports a transition on this call.
	Advance(ctx context.Context, userID, courseID string, pct, threshold int, now time.Time) (p Progress, completed bool, err error)
	// Get returns ErrNotEnrolled when no row exists.
	Get(ctx context.Context, userID, courseID string) (Progress, error)
	ListForUser(ctx context.Context, userID string) ([]Progress, error)
}

// CourseLookup resolves course ids.
type CourseLookup interface {
	Get(ctx context.Context, id string) (catalog.Course, error)
}

// CompletionHook is told when an enrollment completes.
type CompletionHook interface {
	OnCourseCompleted(ctx context.Context, userID, courseID string, completedAt time.Time) error
}

// HookFunc adapts a function to CompletionHook.
type HookFunc func(ctx context.Context, userID, courseID string, completedAt time.Time) error

func (f HookFunc) OnCourseCompleted(ctx context.Context, userID, courseID string, completedAt time.Time) error {
	return f(ctx, userID, courseID, completedAt)
}

// Service implements enrollment and progress tracking.
type Service struct {
	store     Store
	courses   CourseLookup
	hook      CompletionHook
	events    activity.EventLogger
	threshold int
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCompletionHook sets the hook run when a course completes.
func WithCompletionHook(h CompletionHook) Option {
	return func(s *Service) { s.hook = h }
}

// WithEventLogger sets the activity logger.
func WithEventLogger(l activity.EventLogger) Option {
	return func(s *Service) { s.events = l }
}

// WithThreshold overrides the completion threshold.
func WithThreshold(pct int) Option {
	return func(s *Service) { s.threshold = pct }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an enrollment service.
func NewService(store Store, courses CourseLookup, opts ...Option) *Service {
	s := &Service{
		store:     store,
		courses:   courses,
		events:    activity.NopEventLogger{},
		threshold: DefaultCompletionThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll starts the actor on a course.
func (s *Service) Enroll(ctx context.Context, actor auth.Actor, courseID string) (Progress, error) {
	if err := auth.Require(actor); err != nil {
		return Progress{}, err
	}
	if _, err := s.courses.Get(ctx, courseID); err != nil {
		return Progress{}, err
	}

	now := s.now().UTC()
	p := Progress{
		UserID:             actor.UserID,
		CourseID:           courseID,
		Status:             StatusInProgress,
		ProgressPercentage: 0,
		StartedAt:          &now,
		LastAccessedAt:     &now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return Progress{}, err
	}

	activity.Record(ctx, s.events, activity.Event{
		UserID:    actor.UserID,
		EventType: activity.EventEnrolled,
		Data:      map[string]any{"course_id": courseID},
	})
	return p, nil
}

// UpdateProgress records progress for the actor. Progress never decreases;
// reaching the threshold completes the course and runs the completion hook.
func (s *Service) UpdateProgress(ctx context.Context, actor auth.Actor, courseID string, pct int) (Progress, error) {
	if err := auth.Require(actor); err != nil {
		return Progress{}, err
	}
	if pct < 0 || pct > 100 {
		return Progress{}, ErrInvalidProgress
	}

	p, completed, err := s.store.Advance(ctx, actor.UserID, courseID, pct, s.threshold, s.now().UTC())
	if err != nil {
		return Progress{}, err
	}

	if completed {
		activity.Record(ctx, s.events, activity.Event{
			UserID:    actor.UserID,
			EventType: activity.EventCourseCompleted,
			Data:      map[string]any{"course_id": courseID},
		})
		s.runHook(ctx, p)
	}
	return p, nil
}

// runHook notifies the completion hook. A failure does not undo the
// completion; the certificate reconciler picks the enrollment up later.
func (s *Service) runHook(ctx context.Context, p Progress) {
	if s.hook == nil || p.CompletedAt == nil {
		return
	}
	err := s.hook.OnCourseCompleted(ctx, p.UserID, p.CourseID, *p.CompletedAt)
	switch {
	case err == nil:
	case apperr.KindOf(err) == apperr.KindConflict:
		// Requirements such as required quizzes are still open.
		slog.Info("completion hook deferred",
			"user_id", p.UserID,
			"course_id", p.CourseID,
			"reason", apperr.Message(err),
		)
	default:
		slog.Error("completion hook failed",
			"user_id", p.UserID,
			"course_id", p.CourseID,
			"error", err,
		)
	}
}

// Get returns the actor's progress on a course, or a not_started view when
// the actor never enrolled.
func (s *Service) Get(ctx context.Context, actor auth.Actor, courseID string) (Progress, error) {
	if err := auth.Require(actor); err != nil {
		return Progress{}, err
	}

	p, err := s.store.Get(ctx, actor.UserID, courseID)
	if err == nil {
		return p, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return Progress{}, fmt.Errorf("get progress: %w", err)
	}
	return Progress{UserID: actor.UserID, CourseID: courseID, Status: StatusNotStarted}, nil
}

// CompletedAt reports when userID completed courseID. ok is false when the
// course is not completed.
func (s *Service) CompletedAt(ctx context.Context, userID, courseID string) (at time.Time, ok bool, err error) {
	p, err := s.store.Get(ctx, userID, courseID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if p.Status != StatusCompleted || p.CompletedAt == nil {
		return time.Time{}, false, nil
	}
	return *p.CompletedAt, true, nil
}

// ListForUser returns the actor's enrollments, most recently accessed first.
func (s *Service) ListForUser(ctx context.Context, actor auth.Actor) ([]Progress, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}
	return s.store.ListForUser(ctx, actor.UserID)
}
