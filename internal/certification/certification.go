// Package certification issues course certificates and verifies them.
package certification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/profile"
)

// Certificate is an issued certification.
type Certificate struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	CourseID          string    `json:"course_id"`
	CertificateNumber string    `json:"certificate_number"`
	IssuedAt          time.Time `json:"issued_at"`
	SkillsEarned      []string  `json:"skills_earned"`
}

// Verification is the public view of a certificate.
type Verification struct {
	CertificateNumber string    `json:"certificate_number"`
	HolderName        string    `json:"holder_name"`
	CourseTitle       string    `json:"course_title"`
	IssuedAt          time.Time `json:"issued_at"`
}

// maxNumberAttempts bounds retries on certificate number collisions.
const maxNumberAttempts = 5

var (
	ErrCertificateNotFound = apperr.NotFound("certificate not found")
	ErrNotEligible         = apperr.Conflict("course requirements not met")
	ErrNumberTaken         = errors.New("certificate number already taken")
)

// Store persists certificates.
type Store interface {
	// GetByUserCourse returns ErrCertificateNotFound when none exists.
	GetByUserCourse(ctx context.Context, userID, courseID string) (Certificate, error)
	GetByNumber(ctx context.Context, number string) (Certificate, error)
	// Insert stores c unless the user already holds a certificate for the
	// course, in which case it returns that one with inserted=false. A
	// number collision returns ErrNumberTaken.
	Insert(ctx context.Context, c Certificate) (stored Certificate, inserted bool, err error)
	ListForUser(ctx context.Context, userID string) ([]Certificate, error)
}

// CourseLookup resolves courses.
type CourseLookup interface {
	Get(ctx context.Context, id string) (catalog.Course, error)
}

// CompletionLookup reports course completion.
type CompletionLookup interface {
	CompletedAt(ctx context.Context, userID, courseID string) (time.Time, bool, error)
}

// QuizGate reports whether the required quizzes of a course were passed.
type QuizGate interface {
	PassedRequired(ctx context.Context, userID, courseID string) (bool, error)
}

// Service issues and verifies certificates.
type Service struct {
	store       Store
	courses     CourseLookup
	completions CompletionLookup
	profiles    profile.Directory
	quizzes     QuizGate
	notifier    Notifier
	events      activity.EventLogger
	verifyBase  string
	rand        io.Reader
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithQuizGate makes issuance require passing every certification-required
// quiz of the course.
func WithQuizGate(g QuizGate) Option {
	return func(s *Service) { s.quizzes = g }
}

// WithNotifier sets the issuance notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithEventLogger sets the activity logger.
func WithEventLogger(l activity.EventLogger) Option {
	return func(s *Service) { s.events = l }
}

// WithVerifyBaseURL sets the site origin used in verification links.
func WithVerifyBaseURL(base string) Option {
	return func(s *Service) { s.verifyBase = strings.TrimRight(base, "/") }
}

// WithRandom overrides the entropy source for certificate numbers.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a certification service.
func NewService(store Store, courses CourseLookup, completions CompletionLookup, profiles profile.Directory, opts ...Option) *Service {
	s := &Service{
		store:       store,
		courses:     courses,
		completions: completions,
		profiles:    profiles,
		notifier:    NopNotifier{},
		events:      activity.NopEventLogger{},
		rand:        rand.Reader,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns the user's certificate for the course, minting it when none
// exists. created is true only for the call that minted it. Repeated and
// concurrent calls return the same certificate.
func (s *Service) Issue(ctx context.Context, userID, courseID string, completedAt time.Time) (cert Certificate, created bool, err error) {
	existing, err := s.store.GetByUserCourse(ctx, userID, courseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrCertificateNotFound) {
		return Certificate{}, false, fmt.Errorf("lookup certificate: %w", err)
	}

	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return Certificate{}, false, err
	}
	if s.quizzes != nil {
		passed, err := s.quizzes.PassedRequired(ctx, userID, courseID)
		if err != nil {
			return Certificate{}, false, fmt.Errorf("check required quizzes: %w", err)
		}
		if !passed {
			return Certificate{}, false, ErrNotEligible
		}
	}

	if completedAt.IsZero() {
		completedAt = s.now()
	}
	candidate := Certificate{
		UserID:       userID,
		CourseID:     courseID,
		IssuedAt:     s.now().UTC(),
		SkillsEarned: SkillsFor(course.Category),
	}

	for range maxNumberAttempts {
		candidate.CertificateNumber, err = NewNumber(s.rand, completedAt.UTC().Year())
		if err != nil {
			return Certificate{}, false, err
		}

		stored, inserted, err := s.store.Insert(ctx, candidate)
		if errors.Is(err, ErrNumberTaken) {
			slog.Warn("certificate number collision, retrying", "number", candidate.CertificateNumber)
			continue
		}
		if err != nil {
			return Certificate{}, false, fmt.Errorf("insert certificate: %w", err)
		}
		if inserted {
			s.announce(ctx, stored, course)
		}
		return stored, inserted, nil
	}

	return Certificate{}, false, fmt.Errorf("no free certificate number after %d attempts", maxNumberAttempts)
}

// Claim issues the actor's certificate for a completed course.
func (s *Service) Claim(ctx context.Context, actor auth.Actor, courseID string) (Certificate, bool, error) {
	if err := auth.Require(actor); err != nil {
		return Certificate{}, false, err
	}
	completedAt, ok, err := s.completions.CompletedAt(ctx, actor.UserID, courseID)
	if err != nil {
		return Certificate{}, false, fmt.Errorf("check completion: %w", err)
	}
	if !ok {
		return Certificate{}, false, ErrNotEligible
	}
	return s.Issue(ctx, actor.UserID, courseID, completedAt)
}

// OnCourseCompleted issues the certificate for a just-completed enrollment.
func (s *Service) OnCourseCompleted(ctx context.Context, userID, courseID string, completedAt time.Time) error {
	_, _, err := s.Issue(ctx, userID, courseID, completedAt)
	return err
}

// Verify looks a certificate up by number. Malformed and unknown numbers
// are both reported as ErrCertificateNotFound.
func (s *Service) Verify(ctx context.Context, number string) (Verification, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if !ValidNumber(number) {
		return Verification{}, ErrCertificateNotFound
	}

	cert, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		return Verification{}, err
	}

	v := Verification{
		CertificateNumber: cert.CertificateNumber,
		HolderName:        profile.DisplayName(ctx, s.profiles, cert.UserID),
		IssuedAt:          cert.IssuedAt,
	}
	if course, err := s.courses.Get(ctx, cert.CourseID); err == nil {
		v.CourseTitle = course.Title
	}
	return v, nil
}

// ListForUser returns the actor's certificates, newest first.
func (s *Service) ListForUser(ctx context.Context, actor auth.Actor) ([]Certificate, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}
	return s.store.ListForUser(ctx, actor.UserID)
}

// VerifyURL returns the public verification link for a certificate number.
func (s *Service) VerifyURL(number string) string {
	return s.verifyBase + "/verify-certificate/" + url.PathEscape(number)
}

// announce records and mails a freshly minted certificate. Neither step can
// fail the issuance.
func (s *Service) announce(ctx context.Context, cert Certificate, course catalog.Course) {
	activity.Record(ctx, s.events, activity.Event{
		UserID:    cert.UserID,
		EventType: activity.EventCertificateIssued,
		Data: map[string]any{
			"course_id":          cert.CourseID,
			"certificate_number": cert.CertificateNumber,
		},
	})

	p, err := s.profiles.Get(ctx, cert.UserID)
	if err != nil || p.Email == "" {
		slog.Debug("certificate email skipped, no address", "user_id", cert.UserID)
		return
	}
	notice := Notice{
		ToName:            p.DisplayName,
		ToEmail:           p.Email,
		CourseTitle:       course.Title,
		CertificateNumber: cert.CertificateNumber,
		VerifyURL:         s.VerifyURL(cert.CertificateNumber),
	}
	if err := s.notifier.CertificateIssued(ctx, notice); err != nil {
		slog.Warn("certificate email failed",
			"user_id", cert.UserID,
			"certificate_number", cert.CertificateNumber,
			"error", err,
		)
	}
}
