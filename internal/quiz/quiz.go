// Package quiz grades quiz attempts against server-held answer keys.
package quiz

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

// DefaultPassingScore applies when a quiz sets no passing score.
const DefaultPassingScore = 70

// Quiz belongs to a course.
type Quiz struct {
	ID                         string `json:"id"`
	CourseID                   string `json:"course_id"`
	Title                      string `json:"title"`
	PassingScore               *int   `json:"passing_score,omitempty"`
	MaxAttempts                *int   `json:"max_attempts,omitempty"`
	TimeLimitMinutes           *int   `json:"time_limit_minutes,omitempty"`
	IsRequiredForCertification bool   `json:"is_required_for_certification"`
}

// Question is one quiz question. CorrectAnswer never leaves the server.
type Question struct {
	ID            string   `json:"id"`
	QuizID        string   `json:"quiz_id"`
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"-"`
	Points        int      `json:"points"`
	OrderIndex    int      `json:"order_index"`
}

// Attempt is an immutable graded submission.
type Attempt struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	QuizID           string            `json:"quiz_id"`
	Score            int               `json:"score"`
	TotalQuestions   int               `json:"total_questions"`
	CorrectCount     int               `json:"correct_count"`
	Answers          map[string]string `json:"answers"`
	Passed           bool              `json:"passed"`
	AttemptNumber    int               `json:"attempt_number"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
	CompletedAt      time.Time         `json:"completed_at"`
}

// WithQuestions is a quiz as shown to a learner.
type WithQuestions struct {
	Quiz
	Questions []Question `json:"questions"`
}

var (
	ErrQuizNotFound       = apperr.NotFound("quiz not found")
	ErrNoQuestions        = apperr.Validation("quiz has no questions")
	ErrMaxAttemptsReached = apperr.Conflict("maximum attempts reached for this quiz")
)

// Store persists quizzes and attempts.
type Store interface {
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	Questions(ctx context.Context, quizID string) ([]Question, error)
	QuizzesForCourse(ctx context.Context, courseID string) ([]Quiz, error)
	SaveQuiz(ctx context.Context, q Quiz, questions []Question) error
	// InsertAttempt numbers and stores a. allowed is called with the number
	// of prior attempts while the per-(user, quiz) sequence is held, and its
	// error aborts the insert.
	InsertAttempt(ctx context.Context, a Attempt, allowed func(prior int) error) (Attempt, error)
	ListAttempts(ctx context.Context, userID, quizID string) ([]Attempt, error)
}

// Service runs quizzes.
type Service struct {
	store          Store
	events         activity.EventLogger
	defaultPassing int
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEventLogger sets the activity logger.
func WithEventLogger(l activity.EventLogger) Option {
	return func(s *Service) { s.events = l }
}

// WithDefaultPassingScore overrides the passing score for quizzes without one.
func WithDefaultPassingScore(score int) Option {
	return func(s *Service) { s.defaultPassing = score }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a quiz service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		events:         activity.NopEventLogger{},
		defaultPassing: DefaultPassingScore,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetQuiz returns a quiz and its ordered questions.
func (s *Service) GetQuiz(ctx context.Context, id string) (WithQuestions, error) {
	q, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return WithQuestions{}, err
	}
	questions, err := s.store.Questions(ctx, id)
	if err != nil {
		return WithQuestions{}, fmt.Errorf("load questions: %w", err)
	}
	return WithQuestions{Quiz: q, Questions: questions}, nil
}

// ForCourse lists a course's quizzes.
func (s *Service) ForCourse(ctx context.Context, courseID string) ([]Quiz, error) {
	return s.store.QuizzesForCourse(ctx, courseID)
}

// PassingScore returns the effective passing score of q.
func (s *Service) PassingScore(q Quiz) int {
	if q.PassingScore != nil {
		return *q.PassingScore
	}
	return s.defaultPassing
}

// SubmitAttempt grades answers against the stored answer key and records the
// attempt. startedAt comes from the client and only feeds time_taken.
func (s *Service) SubmitAttempt(ctx context.Context, actor auth.Actor, quizID string, answers map[string]string, startedAt time.Time) (Attempt, error) {
	if err := auth.Require(actor); err != nil {
		return Attempt{}, err
	}

	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	questions, err := s.store.Questions(ctx, quizID)
	if err != nil {
		return Attempt{}, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return Attempt{}, ErrNoQuestions
	}

	now := s.now().UTC()
	correct := Grade(questions, answers)
	score := Score(correct, len(questions))

	kept := make(map[string]string, len(answers))
	for _, qu := range questions {
		if a, ok := answers[qu.ID]; ok {
			kept[qu.ID] = a
		}
	}

	a := Attempt{
		UserID:           actor.UserID,
		QuizID:           quizID,
		Score:            score,
		TotalQuestions:   len(questions),
		CorrectCount:     correct,
		Answers:          kept,
		Passed:           score >= s.PassingScore(q),
		TimeTakenSeconds: elapsedSeconds(startedAt, now),
		CompletedAt:      now,
	}

	a, err = s.store.InsertAttempt(ctx, a, func(prior int) error {
		if q.MaxAttempts != nil && prior >= *q.MaxAttempts {
			return ErrMaxAttemptsReached
		}
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}

	activity.Record(ctx, s.events, activity.Event{
		UserID:    actor.UserID,
		EventType: activity.EventQuizSubmitted,
		Data: map[string]any{
			"quiz_id":        quizID,
			"score":          a.Score,
			"passed":         a.Passed,
			"attempt_number": a.AttemptNumber,
		},
	})
	return a, nil
}

// ListAttempts returns the actor's attempts at a quiz, oldest first.
func (s *Service) ListAttempts(ctx context.Context, actor auth.Actor, quizID string) ([]Attempt, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}
	return s.store.ListAttempts(ctx, actor.UserID, quizID)
}

// BestAttempt returns the actor's highest-scoring attempt; ties go to the
// earliest. ok is false when there are no attempts.
func (s *Service) BestAttempt(ctx context.Context, actor auth.Actor, quizID string) (best Attempt, ok bool, err error) {
	attempts, err := s.ListAttempts(ctx, actor, quizID)
	if err != nil {
		return Attempt{}, false, err
	}
	for _, a := range attempts {
		if !ok || a.Score > best.Score {
			best, ok = a, true
		}
	}
	return best, ok, nil
}

// PassedRequired reports whether userID has a passing attempt on every quiz
// of courseID that is required for certification.
func (s *Service) PassedRequired(ctx context.Context, userID, courseID string) (bool, error) {
	quizzes, err := s.store.QuizzesForCourse(ctx, courseID)
	if err != nil {
		return false, fmt.Errorf("list course quizzes: %w", err)
	}
	for _, q := range quizzes {
		if !q.IsRequiredForCertification {
			continue
		}
		attempts, err := s.store.ListAttempts(ctx, userID, q.ID)
		if err != nil {
			return false, fmt.Errorf("list attempts: %w", err)
		}
		passed := false
		for _, a := range attempts {
			if a.Passed {
				passed = true
				break
			}
		}
		if !passed {
			return false, nil
		}
	}
	return true, nil
}

// SeedQuiz stores a quiz read from a catalog seed file.
func (s *Service) SeedQuiz(ctx context.Context, courseID string, seed catalog.QuizSeed) error {
	q := Quiz{
		ID:                         seed.ID,
		CourseID:                   courseID,
		Title:                      seed.Title,
		PassingScore:               seed.PassingScore,
		MaxAttempts:                seed.MaxAttempts,
		TimeLimitMinutes:           seed.TimeLimitMinutes,
		IsRequiredForCertification: seed.RequiredForCertification,
	}
	questions := make([]Question, len(seed.Questions))
	for i, qs := range seed.Questions {
		points := qs.Points
		if points == 0 {
			points = 1
		}
		questions[i] = Question{
			ID:            qs.ID,
			QuizID:        seed.ID,
			QuestionText:  qs.Text,
			Options:       qs.Options,
			CorrectAnswer: qs.Answer,
			Points:        points,
			OrderIndex:    i,
		}
	}
	return s.store.SaveQuiz(ctx, q, questions)
}

// Grade counts exact answer matches.
func Grade(questions []Question, answers map[string]string) int {
	correct := 0
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && a == q.CorrectAnswer {
			correct++
		}
	}
	return correct
}

// Score is round(100 * correct / total).
func Score(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func elapsedSeconds(startedAt, now time.Time) int {
	if startedAt.IsZero() {
		return 0
	}
	d := now.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
