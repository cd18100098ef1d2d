package quiz_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/quiz"
)

var ava = auth.Actor{UserID: "0b7e7d1c-8a43-4c36-9d49-5c2d1b0f7a11"}

func intPtr(n int) *int { return &n }

func seededService(t *testing.T, seeds map[string]catalog.QuizSeed, opts ...quiz.Option) (*quiz.Service, time.Time) {
	t.Helper()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	opts = append([]quiz.Option{quiz.WithClock(func() time.Time { return now })}, opts...)
	svc := quiz.NewService(quiz.NewMemoryStore(), opts...)
	for courseID, s := range seeds {
		if err := svc.SeedQuiz(context.Background(), courseID, s); err != nil {
			t.Fatalf("SeedQuiz() error = %v", err)
		}
	}
	return svc, now
}

func threeQuestions(id string) catalog.QuizSeed {
	return catalog.QuizSeed{
		ID:    id,
		Title: "Lighting check",
		Questions: []catalog.QuestionSeed{
			{ID: "q1", Text: "Key light?", Options: []string{"main", "fill"}, Answer: "main"},
			{ID: "q2", Text: "Fill light?", Options: []string{"main", "fill"}, Answer: "fill"},
			{ID: "q3", Text: "Back light?", Options: []string{"rim", "fill"}, Answer: "rim"},
		},
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		correct, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := quiz.Score(tt.correct, tt.total); got != tt.want {
			t.Errorf("Score(%d, %d) = %d, want %d", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestSubmitAttempt_Grading(t *testing.T) {
	svc, now := seededService(t, map[string]catalog.QuizSeed{"lighting": threeQuestions("lq")})
	ctx := context.Background()

	tests := []struct {
		name       string
		answers    map[string]string
		wantScore  int
		wantPassed bool
	}{
		{"all correct", map[string]string{"q1": "main", "q2": "fill", "q3": "rim"}, 100, true},
		{"two of three", map[string]string{"q1": "main", "q2": "fill", "q3": "fill"}, 67, false},
		{"unanswered count as wrong", map[string]string{"q1": "main"}, 33, false},
		{"unknown question ids ignored", map[string]string{"zz": "main"}, 0, false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := svc.SubmitAttempt(ctx, ava, "lq", tt.answers, now.Add(-90*time.Second))
			if err != nil {
				t.Fatalf("SubmitAttempt() error = %v", err)
			}
			if a.Score != tt.wantScore || a.Passed != tt.wantPassed {
				t.Errorf("score/passed = %d/%v, want %d/%v", a.Score, a.Passed, tt.wantScore, tt.wantPassed)
			}
			if a.TotalQuestions != 3 || a.AttemptNumber != i+1 || a.TimeTakenSeconds != 90 {
				t.Errorf("attempt = %+v", a)
			}
			if _, ok := a.Answers["zz"]; ok {
				t.Error("answers to unknown questions should not be stored")
			}
		})
	}
}

func TestSubmitAttempt_PassingScore(t *testing.T) {
	custom := threeQuestions("strict")
	custom.PassingScore = intPtr(100)
	svc, now := seededService(t, map[string]catalog.QuizSeed{
		"a": threeQuestions("default"),
		"b": custom,
	}, quiz.WithDefaultPassingScore(60))
	ctx := context.Background()
	twoOfThree := map[string]string{"q1": "main", "q2": "fill"}

	a, err := svc.SubmitAttempt(ctx, ava, "default", twoOfThree, now)
	if err != nil || !a.Passed {
		t.Errorf("default passing 60: passed = %v, err = %v", a.Passed, err)
	}
	a, err = svc.SubmitAttempt(ctx, ava, "strict", twoOfThree, now)
	if err != nil || a.Passed {
		t.Errorf("passing 100: passed = %v, err = %v", a.Passed, err)
	}
}

func TestSubmitAttempt_ClockSkewClampsTime(t *testing.T) {
	svc, now := seededService(t, map[string]catalog.QuizSeed{"c": threeQuestions("lq")})

	a, err := svc.SubmitAttempt(context.Background(), ava, "lq", nil, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if a.TimeTakenSeconds != 0 {
		t.Errorf("TimeTakenSeconds = %d, want 0", a.TimeTakenSeconds)
	}
}

func TestSubmitAttempt_MaxAttempts(t *testing.T) {
	seed := threeQuestions("capped")
	seed.MaxAttempts = intPtr(2)
	svc, now := seededService(t, map[string]catalog.QuizSeed{"c": seed})
	ctx := context.Background()

	for i := range 2 {
		if _, err := svc.SubmitAttempt(ctx, ava, "capped", nil, now); err != nil {
			t.Fatalf("attempt %d error = %v", i+1, err)
		}
	}
	_, err := svc.SubmitAttempt(ctx, ava, "capped", nil, now)
	if !errors.Is(err, quiz.ErrMaxAttemptsReached) || apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("third attempt error = %v, want ErrMaxAttemptsReached", err)
	}
}

func TestSubmitAttempt_ConcurrentNumbering(t *testing.T) {
	svc, now := seededService(t, map[string]catalog.QuizSeed{"c": threeQuestions("lq")})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int]bool{}
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := svc.SubmitAttempt(ctx, ava, "lq", nil, now)
			if err != nil {
				t.Errorf("SubmitAttempt() error = %v", err)
				return
			}
			mu.Lock()
			seen[a.AttemptNumber] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	for n := 1; n <= 10; n++ {
		if !seen[n] {
			t.Errorf("attempt number %d missing", n)
		}
	}
}

func TestSubmitAttempt_Errors(t *testing.T) {
	svc, now := seededService(t, map[string]catalog.QuizSeed{
		"c": {ID: "empty", Title: "No questions yet"},
	})
	ctx := context.Background()

	if _, err := svc.SubmitAttempt(ctx, auth.Actor{}, "empty", nil, now); !errors.Is(err, apperr.ErrSignInRequired) {
		t.Errorf("anonymous error = %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, ava, "missing", nil, now); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Errorf("missing quiz error = %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, ava, "empty", nil, now); !errors.Is(err, quiz.ErrNoQuestions) {
		t.Errorf("empty quiz error = %v", err)
	}
}

func TestGetQuiz_HidesAnswers(t *testing.T) {
	svc, _ := seededService(t, map[string]catalog.QuizSeed{"c": threeQuestions("lq")})

	q, err := svc.GetQuiz(context.Background(), "lq")
	if err != nil {
		t.Fatalf("GetQuiz() error = %v", err)
	}
	if len(q.Questions) != 3 || q.Questions[0].ID != "q1" {
		t.Fatalf("questions = %+v", q.Questions)
	}

	body, err := json.Marshal(q)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(body), "correct") || strings.Contains(string(body), `"rim"}`) {
		t.Errorf("serialized quiz leaks answers: %s", body)
	}
}

func TestBestAttemptAndList(t *testing.T) {
	events := activity.NewMemoryEventLogger()
	svc, now := seededService(t, map[string]catalog.QuizSeed{"c": threeQuestions("lq")}, quiz.WithEventLogger(events))
	ctx := context.Background()

	if _, ok, err := svc.BestAttempt(ctx, ava, "lq"); err != nil || ok {
		t.Fatalf("BestAttempt() with none = %v, %v", ok, err)
	}

	for _, answers := range []map[string]string{
		{"q1": "main"},
		{"q1": "main", "q2": "fill", "q3": "rim"},
		{"q1": "main", "q2": "fill", "q3": "rim"},
		{},
	} {
		if _, err := svc.SubmitAttempt(ctx, ava, "lq", answers, now); err != nil {
			t.Fatal(err)
		}
	}

	best, ok, err := svc.BestAttempt(ctx, ava, "lq")
	if err != nil || !ok {
		t.Fatalf("BestAttempt() = %v, %v", ok, err)
	}
	if best.Score != 100 || best.AttemptNumber != 2 {
		t.Errorf("best = %d (#%d), want 100 (#2)", best.Score, best.AttemptNumber)
	}

	list, err := svc.ListAttempts(ctx, ava, "lq")
	if err != nil || len(list) != 4 {
		t.Fatalf("ListAttempts() = %d, %v", len(list), err)
	}
	for i, a := range list {
		if a.AttemptNumber != i+1 {
			t.Errorf("list[%d].AttemptNumber = %d", i, a.AttemptNumber)
		}
	}
	if n := len(events.OfType(activity.EventQuizSubmitted)); n != 4 {
		t.Errorf("quiz_submitted events = %d, want 4", n)
	}
}

func TestPassedRequired(t *testing.T) {
	required := threeQuestions("final")
	required.RequiredForCertification = true
	optional := threeQuestions("practice")
	svc, now := seededService(t, nil)
	ctx := context.Background()
	for _, s := range []catalog.QuizSeed{required, optional} {
		if err := svc.SeedQuiz(ctx, "lighting", s); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := svc.PassedRequired(ctx, ava.UserID, "lighting")
	if err != nil || ok {
		t.Fatalf("PassedRequired() before attempts = %v, %v", ok, err)
	}

	if _, err := svc.SubmitAttempt(ctx, ava, "final", map[string]string{"q1": "main"}, now); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.PassedRequired(ctx, ava.UserID, "lighting"); ok {
		t.Error("failing attempt should not satisfy requirement")
	}

	if _, err := svc.SubmitAttempt(ctx, ava, "final", map[string]string{"q1": "main", "q2": "fill", "q3": "rim"}, now); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.PassedRequired(ctx, ava.UserID, "lighting"); !ok {
		t.Error("passing attempt should satisfy requirement")
	}

	if ok, _ := svc.PassedRequired(ctx, ava.UserID, "no-quizzes"); !ok {
		t.Error("course without required quizzes should pass")
	}
}
