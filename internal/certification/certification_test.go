package certification_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/certification"
	"github.com/filmforge/academy/internal/enrollment"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/profile"
)

var (
	ava  = auth.Actor{UserID: "0b7e7d1c-8a43-4c36-9d49-5c2d1b0f7a11"}
	ben  = auth.Actor{UserID: "7c0d4a5e-2b1f-4e3a-8c9d-0e1f2a3b4c5d"}
	done = time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
)

type fixture struct {
	svc      *certification.Service
	store    *certification.MemoryStore
	enroll   *enrollment.Service
	notifier *recordingNotifier
	events   *activity.MemoryEventLogger
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []certification.Notice
	err     error
}

func (r *recordingNotifier) CertificateIssued(_ context.Context, n certification.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

type gate struct{ passed bool }

func (g gate) PassedRequired(context.Context, string, string) (bool, error) { return g.passed, nil }

func newFixture(t *testing.T, opts ...certification.Option) fixture {
	t.Helper()
	courses := catalog.NewService(catalog.NewMemoryStore(
		catalog.Course{ID: "breakdown", Title: "Script Breakdown", Category: catalog.CategoryPreProduction},
		catalog.Course{ID: "oddball", Title: "Experimental Forms", Category: "Avant-Garde"},
	))
	profiles := profile.NewMemoryDirectory(
		profile.Profile{ID: ava.UserID, DisplayName: "Ava Reyes", Email: "ava@example.com"},
	)
	f := fixture{
		store:    certification.NewMemoryStore(),
		notifier: &recordingNotifier{},
		events:   activity.NewMemoryEventLogger(),
	}
	f.enroll = enrollment.NewService(enrollment.NewMemoryStore(), courses)
	opts = append([]certification.Option{
		certification.WithNotifier(f.notifier),
		certification.WithEventLogger(f.events),
		certification.WithVerifyBaseURL("https://filmforge.test/"),
		certification.WithClock(func() time.Time { return done.Add(time.Minute) }),
	}, opts...)
	f.svc = certification.NewService(f.store, courses, f.enroll, profiles, opts...)
	return f
}

func TestNewNumber(t *testing.T) {
	if n, err := certification.NewNumber(bytes.NewReader(nil), 2026); err == nil {
		t.Fatalf("NewNumber(empty reader) = %s, want error", n)
	}

	n, err := certification.NewNumber(bytes.NewReader([]byte{0, 0, 42}), 2026)
	if err != nil {
		t.Fatal(err)
	}
	if n != "FFA-2026-000042" {
		t.Errorf("NewNumber() = %s, want FFA-2026-000042", n)
	}
	if !certification.ValidNumber(n) {
		t.Errorf("ValidNumber(%s) = false", n)
	}
}

func TestValidNumber(t *testing.T) {
	tests := map[string]bool{
		"FFA-2025-123456":  true,
		"FFA-2025-12345":   false,
		"FFA-25-123456":    false,
		"ffa-2025-123456":  false,
		"FFA-2025-1234567": false,
		"":                 false,
		"FFA-2025-12345a":  false,
	}
	for in, want := range tests {
		if got := certification.ValidNumber(in); got != want {
			t.Errorf("ValidNumber(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSkillsFor(t *testing.T) {
	tests := []struct {
		category string
		first    string
	}{
		{catalog.CategoryPreProduction, "Script Analysis"},
		{catalog.CategoryProduction, "Directing"},
		{catalog.CategoryPostProduction, "Editing"},
		{catalog.CategoryDistribution, "Festival Strategy"},
		{catalog.CategoryBusiness, "Financing"},
		{"Avant-Garde", "Filmmaking Fundamentals"},
	}
	for _, tt := range tests {
		got := certification.SkillsFor(tt.category)
		if len(got) == 0 || got[0] != tt.first {
			t.Errorf("SkillsFor(%q) = %v", tt.category, got)
		}
	}

	got := certification.SkillsFor(catalog.CategoryBusiness)
	got[0] = "mutated"
	if certification.SkillsFor(catalog.CategoryBusiness)[0] != "Financing" {
		t.Error("SkillsFor() returned shared slice")
	}
}

func TestIssue_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.svc.Issue(ctx, ava.UserID, "breakdown", done)
	if err != nil || !created {
		t.Fatalf("Issue() = %v, %v", created, err)
	}
	if !strings.HasPrefix(first.CertificateNumber, "FFA-2026-") || !certification.ValidNumber(first.CertificateNumber) {
		t.Errorf("CertificateNumber = %s", first.CertificateNumber)
	}
	if len(first.SkillsEarned) != 4 || first.SkillsEarned[0] != "Script Analysis" {
		t.Errorf("SkillsEarned = %v", first.SkillsEarned)
	}

	again, created, err := f.svc.Issue(ctx, ava.UserID, "breakdown", done)
	if err != nil || created {
		t.Fatalf("second Issue() = %v, %v", created, err)
	}
	if again.CertificateNumber != first.CertificateNumber {
		t.Errorf("second Issue() number = %s, want %s", again.CertificateNumber, first.CertificateNumber)
	}

	if len(f.notifier.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(f.notifier.notices))
	}
	n := f.notifier.notices[0]
	if n.ToEmail != "ava@example.com" || n.VerifyURL != "https://filmforge.test/verify-certificate/"+first.CertificateNumber {
		t.Errorf("notice = %+v", n)
	}
	if len(f.events.OfType(activity.EventCertificateIssued)) != 1 {
		t.Error("certificate_issued event not recorded once")
	}
}

func TestIssue_ConcurrentCallsShareCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	numbers := make(chan string, 10)
	var createdCount int
	var mu sync.Mutex
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, created, err := f.svc.Issue(ctx, ava.UserID, "breakdown", done)
			if err != nil {
				t.Errorf("Issue() error = %v", err)
				return
			}
			numbers <- c.CertificateNumber
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(numbers)

	distinct := map[string]bool{}
	for n := range numbers {
		distinct[n] = true
	}
	if len(distinct) != 1 || createdCount != 1 {
		t.Errorf("distinct numbers = %d, created = %d; want 1 and 1", len(distinct), createdCount)
	}
}

func TestIssue_RetriesNumberCollision(t *testing.T) {
	// Three zero bytes yield 000000, then 0,0,1 yields 000001.
	r := bytes.NewReader([]byte{0, 0, 0, 0, 0, 1})
	f := newFixture(t, certification.WithRandom(r))
	ctx := context.Background()

	if _, _, err := f.store.Insert(ctx, certification.Certificate{
		UserID: ben.UserID, CourseID: "breakdown", CertificateNumber: "FFA-2026-000000",
	}); err != nil {
		t.Fatal(err)
	}

	c, created, err := f.svc.Issue(ctx, ava.UserID, "breakdown", done)
	if err != nil || !created {
		t.Fatalf("Issue() = %v, %v", created, err)
	}
	if c.CertificateNumber != "FFA-2026-000001" {
		t.Errorf("CertificateNumber = %s, want FFA-2026-000001", c.CertificateNumber)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

var _ io.Reader = zeroReader{}

func TestIssue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t, certification.WithRandom(zeroReader{}))
	ctx := context.Background()
	if _, _, err := f.store.Insert(ctx, certification.Certificate{
		UserID: ben.UserID, CourseID: "breakdown", CertificateNumber: "FFA-2026-000000",
	}); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.svc.Issue(ctx, ava.UserID, "breakdown", done); err == nil {
		t.Fatal("Issue() should fail when every number collides")
	}
}

func TestIssue_UnknownCategoryAndCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, _, err := f.svc.Issue(ctx, ava.UserID, "oddball", done)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.SkillsEarned) != 1 || c.SkillsEarned[0] != "Filmmaking Fundamentals" {
		t.Errorf("SkillsEarned = %v", c.SkillsEarned)
	}

	if _, _, err := f.svc.Issue(ctx, ava.UserID, "missing", done); !errors.Is(err, catalog.ErrCourseNotFound) {
		t.Errorf("Issue(missing) error = %v", err)
	}
}

func TestIssue_NotifierFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	if _, created, err := f.svc.Issue(context.Background(), ava.UserID, "breakdown", done); err != nil || !created {
		t.Fatalf("Issue() = %v, %v", created, err)
	}
}

func TestIssue_QuizGate(t *testing.T) {
	ctx := context.Background()

	blocked := newFixture(t, certification.WithQuizGate(gate{passed: false}))
	if _, _, err := blocked.svc.Issue(ctx, ava.UserID, "breakdown", done); !errors.Is(err, certification.ErrNotEligible) {
		t.Errorf("gated Issue() error = %v, want ErrNotEligible", err)
	}

	open := newFixture(t, certification.WithQuizGate(gate{passed: true}))
	if _, created, err := open.svc.Issue(ctx, ava.UserID, "breakdown", done); err != nil || !created {
		t.Errorf("passed-gate Issue() = %v, %v", created, err)
	}
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Claim(ctx, auth.Actor{}, "breakdown"); !errors.Is(err, apperr.ErrSignInRequired) {
		t.Errorf("anonymous Claim() error = %v", err)
	}
	if _, _, err := f.svc.Claim(ctx, ava, "breakdown"); !errors.Is(err, certification.ErrNotEligible) {
		t.Errorf("not enrolled Claim() error = %v", err)
	}

	if _, err := f.enroll.Enroll(ctx, ava, "breakdown"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.enroll.UpdateProgress(ctx, ava, "breakdown", 50); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.Claim(ctx, ava, "breakdown"); !errors.Is(err, certification.ErrNotEligible) {
		t.Errorf("in-progress Claim() error = %v", err)
	}
	if apperr.KindOf(certification.ErrNotEligible) != apperr.KindConflict {
		t.Error("ErrNotEligible should be a conflict")
	}

	if _, err := f.enroll.UpdateProgress(ctx, ava, "breakdown", 100); err != nil {
		t.Fatal(err)
	}
	c, created, err := f.svc.Claim(ctx, ava, "breakdown")
	if err != nil || !created {
		t.Fatalf("Claim() = %v, %v", created, err)
	}

	list, err := f.svc.ListForUser(ctx, ava)
	if err != nil || len(list) != 1 || list[0].CertificateNumber != c.CertificateNumber {
		t.Errorf("ListForUser() = %+v, %v", list, err)
	}
}

func TestCompletionHookIssues(t *testing.T) {
	courses := catalog.NewService(catalog.NewMemoryStore(
		catalog.Course{ID: "breakdown", Title: "Script Breakdown", Category: catalog.CategoryPreProduction},
	))
	store := certification.NewMemoryStore()
	var svc *certification.Service
	enroll := enrollment.NewService(enrollment.NewMemoryStore(), courses,
		enrollment.WithCompletionHook(enrollment.HookFunc(func(ctx context.Context, u, c string, at time.Time) error {
			return svc.OnCourseCompleted(ctx, u, c, at)
		})))
	svc = certification.NewService(store, courses, enroll, profile.NewMemoryDirectory())
	ctx := context.Background()

	if _, err := enroll.Enroll(ctx, ava, "breakdown"); err != nil {
		t.Fatal(err)
	}
	if _, err := enroll.UpdateProgress(ctx, ava, "breakdown", 96); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetByUserCourse(ctx, ava.UserID, "breakdown"); err != nil {
		t.Errorf("certificate not issued on completion: %v", err)
	}
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _, err := f.svc.Issue(ctx, ava.UserID, "breakdown", done)
	if err != nil {
		t.Fatal(err)
	}

	v, err := f.svc.Verify(ctx, " "+strings.ToLower(c.CertificateNumber)+" ")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	want := certification.Verification{
		CertificateNumber: c.CertificateNumber,
		HolderName:        "Ava Reyes",
		CourseTitle:       "Script Breakdown",
		IssuedAt:          c.IssuedAt,
	}
	if v != want {
		t.Errorf("Verify() = %+v, want %+v", v, want)
	}

	for _, number := range []string{"FFA-2025-123456", "not-a-number", "", "FFA-2025-123456; DROP TABLE"} {
		_, err := f.svc.Verify(ctx, number)
		if !errors.Is(err, certification.ErrCertificateNotFound) {
			t.Errorf("Verify(%q) error = %v, want ErrCertificateNotFound", number, err)
		}
	}
}
