package enrollment_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/enrollment"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

var ava = auth.Actor{UserID: "0b7e7d1c-8a43-4c36-9d49-5c2d1b0f7a11", Name: "Ava"}

type hookRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (h *hookRecorder) OnCourseCompleted(_ context.Context, userID, courseID string, _ time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, userID+"/"+courseID)
	return h.err
}

func newService(t *testing.T, opts ...enrollment.Option) (*enrollment.Service, *activity.MemoryEventLogger) {
	t.Helper()
	courses := catalog.NewService(catalog.NewMemoryStore(
		catalog.Course{ID: "lighting", Title: "Lighting Basics", Category: "Production"},
	))
	events := activity.NewMemoryEventLogger()
	opts = append([]enrollment.Option{enrollment.WithEventLogger(events)}, opts...)
	return enrollment.NewService(enrollment.NewMemoryStore(), courses, opts...), events
}

func TestEnroll(t *testing.T) {
	svc, events := newService(t)
	ctx := context.Background()

	p, err := svc.Enroll(ctx, ava, "lighting")
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if p.Status != enrollment.StatusInProgress || p.ProgressPercentage != 0 || p.StartedAt == nil {
		t.Errorf("Enroll() = %+v", p)
	}
	if len(events.OfType(activity.EventEnrolled)) != 1 {
		t.Error("enrolled event not recorded")
	}

	_, err = svc.Enroll(ctx, ava, "lighting")
	if !errors.Is(err, enrollment.ErrAlreadyEnrolled) {
		t.Errorf("second Enroll() error = %v, want ErrAlreadyEnrolled", err)
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("kind = %v, want Conflict", apperr.KindOf(err))
	}
}

func TestEnroll_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, auth.Actor{}, "lighting"); !errors.Is(err, apperr.ErrSignInRequired) {
		t.Errorf("anonymous Enroll() error = %v", err)
	}
	if _, err := svc.Enroll(ctx, ava, "missing"); !errors.Is(err, catalog.ErrCourseNotFound) {
		t.Errorf("unknown course Enroll() error = %v", err)
	}
}

func TestEnroll_ConcurrentOnlyOneWins(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, conflicts int
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Enroll(ctx, ava, "lighting")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, enrollment.ErrAlreadyEnrolled):
				conflicts++
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != 7 {
		t.Errorf("ok = %d, conflicts = %d; want 1 and 7", ok, conflicts)
	}
}

func TestUpdateProgress(t *testing.T) {
	hook := &hookRecorder{}
	svc, events := newService(t, enrollment.WithCompletionHook(hook))
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, ava, "lighting"); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		pct        int
		wantPct    int
		wantStatus enrollment.Status
	}{
		{40, 40, enrollment.StatusInProgress},
		{20, 40, enrollment.StatusInProgress},
		{94, 94, enrollment.StatusInProgress},
		{95, 95, enrollment.StatusCompleted},
		{10, 95, enrollment.StatusCompleted},
		{100, 100, enrollment.StatusCompleted},
	}

	var completedAt *time.Time
	for _, s := range steps {
		p, err := svc.UpdateProgress(ctx, ava, "lighting", s.pct)
		if err != nil {
			t.Fatalf("UpdateProgress(%d) error = %v", s.pct, err)
		}
		if p.ProgressPercentage != s.wantPct || p.Status != s.wantStatus {
			t.Errorf("UpdateProgress(%d) = %d/%s, want %d/%s", s.pct, p.ProgressPercentage, p.Status, s.wantPct, s.wantStatus)
		}
		if p.Status == enrollment.StatusCompleted {
			if completedAt == nil {
				completedAt = p.CompletedAt
			} else if !p.CompletedAt.Equal(*completedAt) {
				t.Errorf("completed_at changed from %v to %v", completedAt, p.CompletedAt)
			}
		}
	}

	if len(hook.calls) != 1 {
		t.Errorf("hook calls = %d, want 1", len(hook.calls))
	}
	if len(events.OfType(activity.EventCourseCompleted)) != 1 {
		t.Error("course_completed event not recorded exactly once")
	}
}

func TestUpdateProgress_CustomThreshold(t *testing.T) {
	svc, _ := newService(t, enrollment.WithThreshold(50))
	ctx := context.Background()
	if _, err := svc.Enroll(ctx, ava, "lighting"); err != nil {
		t.Fatal(err)
	}
	p, err := svc.UpdateProgress(ctx, ava, "lighting", 50)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != enrollment.StatusCompleted {
		t.Errorf("Status = %s, want completed", p.Status)
	}
}

func TestUpdateProgress_HookFailureKeepsCompletion(t *testing.T) {
	hook := &hookRecorder{err: errors.New("issuer down")}
	svc, _ := newService(t, enrollment.WithCompletionHook(hook))
	ctx := context.Background()
	if _, err := svc.Enroll(ctx, ava, "lighting"); err != nil {
		t.Fatal(err)
	}

	p, err := svc.UpdateProgress(ctx, ava, "lighting", 100)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if p.Status != enrollment.StatusCompleted {
		t.Errorf("Status = %s, want completed", p.Status)
	}
}

func TestUpdateProgress_HookLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"requirements still open", apperr.Conflict("course requirements not met"), "level=INFO"},
		{"issuer failure", errors.New("issuer down"), "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
			defer slog.SetDefault(prev)

			svc, _ := newService(t, enrollment.WithCompletionHook(&hookRecorder{err: tt.err}))
			ctx := context.Background()
			if _, err := svc.Enroll(ctx, ava, "lighting"); err != nil {
				t.Fatal(err)
			}
			if _, err := svc.UpdateProgress(ctx, ava, "lighting", 100); err != nil {
				t.Fatalf("UpdateProgress() error = %v", err)
			}
			if !bytes.Contains(buf.Bytes(), []byte(tt.wantLevel)) {
				t.Errorf("log = %q, want %s", buf.String(), tt.wantLevel)
			}
			if tt.wantLevel == "level=INFO" && bytes.Contains(buf.Bytes(), []byte("level=ERROR")) {
				t.Errorf("deferred issuance logged as error: %q", buf.String())
			}
		})
	}
}

func TestUpdateProgress_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   auth.Actor
		pct     int
		wantErr error
	}{
		{"anonymous", auth.Actor{}, 10, apperr.ErrSignInRequired},
		{"negative", ava, -1, enrollment.ErrInvalidProgress},
		{"over 100", ava, 101, enrollment.ErrInvalidProgress},
		{"not enrolled", ava, 10, enrollment.ErrNotEnrolled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProgress(ctx, tt.actor, "lighting", tt.pct)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateProgress() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGet_NotStarted(t *testing.T) {
	svc, _ := newService(t)

	p, err := svc.Get(context.Background(), ava, "lighting")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Status != enrollment.StatusNotStarted || p.StartedAt != nil {
		t.Errorf("Get() = %+v, want not_started view", p)
	}
}

func TestListForUser_NewestAccessFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	courses := catalog.NewService(catalog.NewMemoryStore(
		catalog.Course{ID: "a", Title: "A", Category: "Production"},
		catalog.Course{ID: "b", Title: "B", Category: "Production"},
	))
	svc := enrollment.NewService(enrollment.NewMemoryStore(), courses, enrollment.WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, ava, "a"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	if _, err := svc.Enroll(ctx, ava, "b"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	if _, err := svc.UpdateProgress(ctx, ava, "a", 10); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListForUser(ctx, ava)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(list) != 2 || list[0].CourseID != "a" || list[1].CourseID != "b" {
		t.Errorf("ListForUser() order = %+v", list)
	}

	if _, done, err := svc.CompletedAt(ctx, ava.UserID, "a"); err != nil || done {
		t.Errorf("CompletedAt() = %v, %v; want false", done, err)
	}
	if _, err := svc.UpdateProgress(ctx, ava, "b", 100); err != nil {
		t.Fatal(err)
	}
	at, done, err := svc.CompletedAt(ctx, ava.UserID, "b")
	if err != nil || !done || !at.Equal(now) {
		t.Errorf("CompletedAt() = %v, %v, %v; want %v, true", at, done, err, now)
	}
}
