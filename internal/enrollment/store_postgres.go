package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/database"
)

const progressColumns = `user_id::text, course_id, status, progress_percentage,
	started_at, completed_at, last_accessed_at`

// PostgresStore persists enrollments in user_course_progress.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a PostgreSQL-backed enrollment store.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p Progress) error {
	cmd, err := s.db.Exec(ctx,
		`INSERT INTO user_course_progress
		   (user_id, course_id, status, progress_percentage, started_at, last_accessed_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, course_id) DO NOTHING`,
		p.UserID, p.CourseID, string(p.Status), p.ProgressPercentage, p.StartedAt, p.LastAccessedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return catalog.ErrCourseNotFound
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyEnrolled
	}
	return nil
}

func (s *PostgresStore) Advance(ctx context.Context, userID, courseID string, pct, threshold int, now time.Time) (Progress, bool, error) {
	var prev string
	p, err := scanProgress(s.db.QueryRow(ctx,
		`WITH prev AS (
		   SELECT status FROM user_course_progress
		   WHERE user_id = $1::uuid AND course_id = $2
		   FOR UPDATE
		 )
		 UPDATE user_course_progress p SET
		   progress_percentage = GREATEST(p.progress_percentage, $3),
		   status = CASE
		     WHEN p.status = 'completed' OR GREATEST(p.progress_percentage, $3) >= $4 THEN 'completed'
		     ELSE p.status
		   END,
		   completed_at = CASE
		     WHEN p.status <> 'completed' AND GREATEST(p.progress_percentage, $3) >= $4 THEN $5
		     ELSE p.completed_at
		   END,
		   last_accessed_at = $5
		 FROM prev
		 WHERE p.user_id = $1::uuid AND p.course_id = $2
		 RETURNING p.user_id::text, p.course_id, p.status, p.progress_percentage,
		   p.started_at, p.completed_at, p.last_accessed_at, prev.status`,
		userID, courseID, pct, threshold, now,
	), &prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return Progress{}, false, ErrNotEnrolled
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("advance progress: %w", err)
	}
	return p, prev != string(StatusCompleted) && p.Status == StatusCompleted, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, courseID string) (Progress, error) {
	p, err := scanProgress(s.db.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM user_course_progress
		 WHERE user_id = $1::uuid AND course_id = $2`,
		userID, courseID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Progress{}, ErrNotEnrolled
	}
	if err != nil {
		return Progress{}, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string) ([]Progress, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+progressColumns+` FROM user_course_progress
		 WHERE user_id = $1::uuid
		 ORDER BY last_accessed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return out, nil
}

func scanProgress(row pgx.Row, extra ...any) (Progress, error) {
	var p Progress
	var status string
	var startedAt, lastAccessedAt time.Time
	dest := append([]any{
		&p.UserID, &p.CourseID, &status, &p.ProgressPercentage,
		&startedAt, &p.CompletedAt, &lastAccessedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Progress{}, err
	}
	p.Status = Status(status)
	p.StartedAt = &startedAt
	p.LastAccessedAt = &lastAccessedAt
	return p, nil
}
