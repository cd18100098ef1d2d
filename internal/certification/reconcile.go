package certification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Completion is a completed enrollment awaiting a certificate.
type Completion struct {
	UserID      string
	CourseID    string
	CompletedAt time.Time
}

// PendingSource lists completions without certificates in (CompletedAt,
// UserID, CourseID) order, starting strictly after the cursor. A nil cursor
// starts at the beginning.
type PendingSource interface {
	Pending(ctx context.Context, after *Completion, limit int) ([]Completion, error)
}

const reconcileBatch = 100

// Reconciler issues certificates that the completion hook missed.
type Reconciler struct {
	issuer  *Service
	pending PendingSource
	timeout time.Duration
}

// NewReconciler creates a Reconciler.
func NewReconciler(issuer *Service, pending PendingSource) *Reconciler {
	return &Reconciler{issuer: issuer, pending: pending, timeout: 4 * time.Minute}
}

// RunOnce walks every pending completion in batches and returns how many
// certificates were created. Completions that are not yet eligible are
// skipped, so they never hold back later ones.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	created := 0
	var cursor *Completion
	for {
		batch, err := r.pending.Pending(ctx, cursor, reconcileBatch)
		if err != nil {
			return created, err
		}

		for _, c := range batch {
			_, ok, err := r.issuer.Issue(ctx, c.UserID, c.CourseID, c.CompletedAt)
			switch {
			case errors.Is(err, ErrNotEligible):
				slog.Debug("certificate still not eligible", "user_id", c.UserID, "course_id", c.CourseID)
			case err != nil:
				slog.Error("reconcile certificate failed",
					"user_id", c.UserID,
					"course_id", c.CourseID,
					"error", err,
				)
			case ok:
				created++
			}
		}

		if len(batch) < reconcileBatch {
			return created, nil
		}
		if err := ctx.Err(); err != nil {
			return created, err
		}
		last := batch[len(batch)-1]
		cursor = &last
	}
}

// Start schedules RunOnce on spec (robfig/cron syntax, e.g. "@every 10m")
// until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if _, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		n, err := r.RunOnce(runCtx)
		if err != nil {
			slog.Error("certificate reconcile run failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("certificates reconciled", "issued", n)
		}
	}); err != nil {
		return err
	}

	c.Start()
	slog.Info("certificate reconciler started", "schedule", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("certificate reconciler stopped")
	}()
	return nil
}
