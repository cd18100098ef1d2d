package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/filmforge/academy/internal/platform/database"
)

const courseColumns = `id, title, description, category, level, duration_hours::float8,
	related_tool, is_featured, order_index`

// PostgresStore reads academy_courses.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a PostgreSQL-backed catalog store.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+courseColumns+` FROM academy_courses ORDER BY order_index, title`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(s.db.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM academy_courses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, ErrCourseNotFound
	}
	return c, err
}

func (s *PostgresStore) UpsertCourse(ctx context.Context, c Course) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO academy_courses
		   (id, title, description, category, level, duration_hours, related_tool, is_featured, order_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   category = EXCLUDED.category,
		   level = EXCLUDED.level,
		   duration_hours = EXCLUDED.duration_hours,
		   related_tool = EXCLUDED.related_tool,
		   is_featured = EXCLUDED.is_featured,
		   order_index = EXCLUDED.order_index,
		   updated_at = NOW()`,
		c.ID, c.Title, c.Description, c.Category, c.Level, c.DurationHours,
		c.RelatedTool, c.IsFeatured, c.OrderIndex,
	)
	if err != nil {
		return fmt.Errorf("upsert course %s: %w", c.ID, err)
	}
	return nil
}

func scanCourse(row pgx.Row) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Level,
		&c.DurationHours, &c.RelatedTool, &c.IsFeatured, &c.OrderIndex)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Course{}, err
		}
		return Course{}, fmt.Errorf("scan course: %w", err)
	}
	return c, nil
}
