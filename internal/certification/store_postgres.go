package certification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/database"
)

const certColumns = `id::text, user_id::text, course_id, certificate_number, issued_at, skills_earned`

// PostgresStore persists certificates in user_certifications.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a PostgreSQL-backed certificate store.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByUserCourse(ctx context.Context, userID, courseID string) (Certificate, error) {
	return s.getOne(ctx,
		`SELECT `+certColumns+` FROM user_certifications WHERE user_id = $1::uuid AND course_id = $2`,
		userID, courseID)
}

func (s *PostgresStore) GetByNumber(ctx context.Context, number string) (Certificate, error) {
	return s.getOne(ctx,
		`SELECT `+certColumns+` FROM user_certifications WHERE certificate_number = $1`,
		number)
}

// Insert relies on the (user_id, course_id) constraint: a concurrent winner
// makes this insert a no-op and the winner's row is read back.
func (s *PostgresStore) Insert(ctx context.Context, c Certificate) (Certificate, bool, error) {
	stored, err := scanCertificate(s.db.QueryRow(ctx,
		`INSERT INTO user_certifications (user_id, course_id, certificate_number, issued_at, skills_earned)
		 VALUES ($1::uuid, $2, $3, $4, $5)
		 ON CONFLICT ON CONSTRAINT user_certifications_user_course_key DO NOTHING
		 RETURNING `+certColumns,
		c.UserID, c.CourseID, c.CertificateNumber, c.IssuedAt, c.SkillsEarned,
	))
	switch {
	case err == nil:
		return stored, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := s.GetByUserCourse(ctx, c.UserID, c.CourseID)
		if err != nil {
			return Certificate{}, false, err
		}
		return existing, false, nil
	case database.IsUniqueViolation(err, "user_certifications_number_key"):
		return Certificate{}, false, ErrNumberTaken
	case database.IsForeignKeyViolation(err):
		return Certificate{}, false, catalog.ErrCourseNotFound
	default:
		return Certificate{}, false, fmt.Errorf("insert certificate: %w", err)
	}
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string) ([]Certificate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+certColumns+` FROM user_certifications WHERE user_id = $1::uuid ORDER BY issued_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer rows.Close()

	var out []Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Pending lists completed enrollments that have no certificate yet, in
// keyset order after the cursor.
func (s *PostgresStore) Pending(ctx context.Context, after *Completion, limit int) ([]Completion, error) {
	var (
		afterAt                *time.Time
		afterUser, afterCourse string
	)
	if after != nil {
		at := after.CompletedAt
		afterAt, afterUser, afterCourse = &at, after.UserID, after.CourseID
	}

	rows, err := s.db.Query(ctx,
		`SELECT p.user_id::text, p.course_id, p.completed_at
		 FROM user_course_progress p
		 WHERE p.status = 'completed'
		   AND p.completed_at IS NOT NULL
		   AND NOT EXISTS (
		     SELECT 1 FROM user_certifications c
		     WHERE c.user_id = p.user_id AND c.course_id = p.course_id
		   )
		   AND ($1::timestamptz IS NULL
		     OR (p.completed_at, p.user_id::text, p.course_id) > ($1::timestamptz, $2::text, $3::text))
		 ORDER BY p.completed_at, p.user_id::text, p.course_id
		 LIMIT $4`,
		afterAt, afterUser, afterCourse, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending certificates: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.UserID, &c.CourseID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) getOne(ctx context.Context, sql string, args ...any) (Certificate, error) {
	c, err := scanCertificate(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Certificate{}, ErrCertificateNotFound
	}
	if err != nil {
		return Certificate{}, fmt.Errorf("get certificate: %w", err)
	}
	return c, nil
}

func scanCertificate(row pgx.Row) (Certificate, error) {
	var c Certificate
	err := row.Scan(&c.ID, &c.UserID, &c.CourseID, &c.CertificateNumber, &c.IssuedAt, &c.SkillsEarned)
	return c, err
}
