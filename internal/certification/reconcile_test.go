package certification_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/filmforge/academy/internal/certification"
)

// fakePending pages through items, which must be in keyset order, and drops
// completions that already have a certificate in certs.
type fakePending struct {
	items []certification.Completion
	certs *certification.MemoryStore
	err   error
	calls int
}

func (f *fakePending) Pending(ctx context.Context, after *certification.Completion, limit int) ([]certification.Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []certification.Completion
	for _, c := range f.items {
		if after != nil && !afterCursor(c, *after) {
			continue
		}
		if f.certs != nil {
			if _, err := f.certs.GetByUserCourse(ctx, c.UserID, c.CourseID); err == nil {
				continue
			}
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func afterCursor(c, cur certification.Completion) bool {
	if !c.CompletedAt.Equal(cur.CompletedAt) {
		return c.CompletedAt.After(cur.CompletedAt)
	}
	if c.UserID != cur.UserID {
		return c.UserID > cur.UserID
	}
	return c.CourseID > cur.CourseID
}

// onlyUser passes the required-quiz check for one user.
type onlyUser string

func (u onlyUser) PassedRequired(_ context.Context, userID, _ string) (bool, error) {
	return userID == string(u), nil
}

func TestReconciler_RunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Issue(ctx, ben.UserID, "breakdown", done); err != nil {
		t.Fatal(err)
	}

	r := certification.NewReconciler(f.svc, &fakePending{items: []certification.Completion{
		{UserID: ava.UserID, CourseID: "breakdown", CompletedAt: done},
		{UserID: ava.UserID, CourseID: "oddball", CompletedAt: done},
		{UserID: ava.UserID, CourseID: "deleted-course", CompletedAt: done},
		{UserID: ben.UserID, CourseID: "breakdown", CompletedAt: done},
	}})

	n, err := r.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RunOnce() issued %d, want 2", n)
	}
	if _, err := f.store.GetByUserCourse(ctx, ava.UserID, "oddball"); err != nil {
		t.Errorf("oddball certificate missing: %v", err)
	}
}

func TestReconciler_SourceError(t *testing.T) {
	f := newFixture(t)
	r := certification.NewReconciler(f.svc, &fakePending{err: errors.New("db down")})
	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from pending source")
	}
}

func TestReconciler_StartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	r := certification.NewReconciler(f.svc, &fakePending{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx, "every now and then"); err == nil {
		t.Fatal("Start() should reject an invalid schedule")
	}
	if err := r.Start(ctx, "@every 1h"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()
	time.Sleep(10 * time.Millisecond)
}

func TestReconciler_IneligibleBacklogDoesNotBlock(t *testing.T) {
	const eligible = "ffffffff-0000-4000-8000-000000000000"
	f := newFixture(t, certification.WithQuizGate(onlyUser(eligible)))
	ctx := context.Background()

	var items []certification.Completion
	for i := range 250 {
		items = append(items, certification.Completion{
			UserID:      fmt.Sprintf("00000000-0000-4000-8000-%012d", i),
			CourseID:    "breakdown",
			CompletedAt: done,
		})
	}
	items = append(items, certification.Completion{UserID: eligible, CourseID: "breakdown", CompletedAt: done.Add(time.Hour)})
	src := &fakePending{items: items, certs: f.store}

	n, err := certification.NewReconciler(f.svc, src).RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RunOnce() issued %d, want 1", n)
	}
	if _, err := f.store.GetByUserCourse(ctx, eligible, "breakdown"); err != nil {
		t.Errorf("eligible completion behind the backlog not certified: %v", err)
	}
	if src.calls != 3 {
		t.Errorf("Pending() called %d times, want 3 pages", src.calls)
	}
}
