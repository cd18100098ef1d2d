package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/certification"
	"github.com/filmforge/academy/internal/enrollment"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/quiz"
)

// Transcript is a learner's academy record.
type Transcript struct {
	Holder       string
	GeneratedAt  time.Time
	Courses      []CourseLine
	Attempts     []AttemptLine
	Certificates []certification.Certificate
}

// CourseLine is one enrollment on a transcript.
type CourseLine struct {
	Course   catalog.Course
	Progress enrollment.Progress
}

// AttemptLine is one quiz attempt on a transcript.
type AttemptLine struct {
	CourseTitle string
	QuizTitle   string
	Attempt     quiz.Attempt
}

// Sources are the services a transcript is assembled from.
type Sources struct {
	Courses      interface{ Get(context.Context, string) (catalog.Course, error) }
	Enrollments  interface{ ListForUser(context.Context, auth.Actor) ([]enrollment.Progress, error) }
	Quizzes      QuizSource
	Certificates interface{ ListForUser(context.Context, auth.Actor) ([]certification.Certificate, error) }
}

// QuizSource lists a course's quizzes and the actor's attempts.
type QuizSource interface {
	ForCourse(ctx context.Context, courseID string) ([]quiz.Quiz, error)
	ListAttempts(ctx context.Context, actor auth.Actor, quizID string) ([]quiz.Attempt, error)
}

// BuildTranscript gathers the actor's enrollments, quiz attempts and
// certificates.
func BuildTranscript(ctx context.Context, src Sources, actor auth.Actor, holder string, now time.Time) (Transcript, error) {
	if err := auth.Require(actor); err != nil {
		return Transcript{}, err
	}
	t := Transcript{Holder: holder, GeneratedAt: now.UTC()}

	progress, err := src.Enrollments.ListForUser(ctx, actor)
	if err != nil {
		return Transcript{}, fmt.Errorf("list enrollments: %w", err)
	}
	for _, p := range progress {
		course, err := src.Courses.Get(ctx, p.CourseID)
		if err != nil {
			return Transcript{}, fmt.Errorf("get course %s: %w", p.CourseID, err)
		}
		t.Courses = append(t.Courses, CourseLine{Course: course, Progress: p})

		quizzes, err := src.Quizzes.ForCourse(ctx, p.CourseID)
		if err != nil {
			return Transcript{}, fmt.Errorf("list quizzes for %s: %w", p.CourseID, err)
		}
		for _, q := range quizzes {
			attempts, err := src.Quizzes.ListAttempts(ctx, actor, q.ID)
			if err != nil {
				return Transcript{}, fmt.Errorf("list attempts for %s: %w", q.ID, err)
			}
			for _, a := range attempts {
				t.Attempts = append(t.Attempts, AttemptLine{CourseTitle: course.Title, QuizTitle: q.Title, Attempt: a})
			}
		}
	}

	t.Certificates, err = src.Certificates.ListForUser(ctx, actor)
	if err != nil {
		return Transcript{}, fmt.Errorf("list certificates: %w", err)
	}
	return t, nil
}

// TranscriptXLSX writes t as a workbook with Courses, Quiz Attempts and
// Certificates sheets.
func TranscriptXLSX(out io.Writer, t Transcript) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}
	defer w.close()

	courses := make([][]any, len(t.Courses))
	for i, c := range t.Courses {
		courses[i] = []any{
			c.Course.Title,
			c.Course.Category,
			string(c.Progress.Status),
			c.Progress.ProgressPercentage,
			formatTime(c.Progress.StartedAt),
			formatTime(c.Progress.CompletedAt),
		}
	}
	if err := w.sheet("Courses",
		[]string{"Course", "Category", "Status", "Progress %", "Started", "Completed"}, courses); err != nil {
		return err
	}

	attempts := make([][]any, len(t.Attempts))
	for i, a := range t.Attempts {
		attempts[i] = []any{
			a.CourseTitle,
			a.QuizTitle,
			a.Attempt.AttemptNumber,
			a.Attempt.Score,
			passFail(a.Attempt.Passed),
			a.Attempt.CompletedAt.UTC().Format(timeLayout),
		}
	}
	if err := w.sheet("Quiz Attempts",
		[]string{"Course", "Quiz", "Attempt", "Score", "Result", "Completed"}, attempts); err != nil {
		return err
	}

	titles := make(map[string]string, len(t.Courses))
	for _, c := range t.Courses {
		titles[c.Course.ID] = c.Course.Title
	}
	certs := make([][]any, len(t.Certificates))
	for i, c := range t.Certificates {
		title := titles[c.CourseID]
		if title == "" {
			title = c.CourseID
		}
		certs[i] = []any{c.CertificateNumber, title, c.IssuedAt.UTC().Format(timeLayout), strings.Join(c.SkillsEarned, ", ")}
	}
	if err := w.sheet("Certificates",
		[]string{"Certificate", "Course", "Issued", "Skills"}, certs); err != nil {
		return err
	}

	if err := w.props("FilmForge Academy transcript", t.Holder); err != nil {
		return err
	}
	return w.writeTo(out)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func passFail(passed bool) string {
	if passed {
		return "Passed"
	}
	return "Not passed"
}
