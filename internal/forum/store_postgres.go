package forum

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/database"
)

const discussionColumns = `d.id::text, d.course_id, d.user_id::text, d.title, d.content,
	d.is_pinned, d.is_locked, d.view_count, d.created_at,
	(SELECT count(*) FROM discussion_replies r WHERE r.discussion_id = d.id)`

const replyColumns = `id::text, discussion_id::text, user_id::text, content, is_solution, created_at`

// PostgresStore persists the forum in course_discussions and
// discussion_replies.
type PostgresStore struct {
	db database.DBTX
	tx *database.Transactor
}

// NewPostgresStore creates a PostgreSQL-backed forum store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool, tx: database.NewTransactor(pool)}
}

func (s *PostgresStore) CreateDiscussion(ctx context.Context, d Discussion) (Discussion, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO course_discussions (course_id, user_id, title, content, created_at)
		 VALUES ($1, $2::uuid, $3, $4, $5)
		 RETURNING id::text`,
		d.CourseID, d.UserID, d.Title, d.Content, d.CreatedAt,
	).Scan(&d.ID)
	if database.IsForeignKeyViolation(err) {
		return Discussion{}, catalog.ErrCourseNotFound
	}
	if err != nil {
		return Discussion{}, fmt.Errorf("insert discussion: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetDiscussion(ctx context.Context, id string) (Discussion, error) {
	return s.oneDiscussion(ctx,
		`SELECT `+discussionColumns+` FROM course_discussions d WHERE d.id = $1::uuid`, id)
}

func (s *PostgresStore) ViewDiscussion(ctx context.Context, id string) (Discussion, error) {
	return s.oneDiscussion(ctx,
		`UPDATE course_discussions d SET view_count = d.view_count + 1
		 WHERE d.id = $1::uuid
		 RETURNING `+discussionColumns, id)
}

func (s *PostgresStore) ListDiscussions(ctx context.Context, courseID string) ([]Discussion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+discussionColumns+` FROM course_discussions d
		 WHERE d.course_id = $1
		 ORDER BY d.is_pinned DESC, d.created_at DESC, d.id`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query discussions: %w", err)
	}
	defer rows.Close()

	out := []Discussion{}
	for rows.Next() {
		d, err := scanDiscussion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discussion: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateReply(ctx context.Context, r Reply) (Reply, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO discussion_replies (discussion_id, user_id, content, created_at)
		 SELECT d.id, $2::uuid, $3, $4
		 FROM course_discussions d
		 WHERE d.id = $1::uuid AND NOT d.is_locked
		 RETURNING id::text`,
		r.DiscussionID, r.UserID, r.Content, r.CreatedAt,
	).Scan(&r.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.GetDiscussion(ctx, r.DiscussionID); err != nil {
			return Reply{}, err
		}
		return Reply{}, ErrDiscussionLocked
	}
	if err != nil {
		return Reply{}, fmt.Errorf("insert reply: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetReply(ctx context.Context, id string) (Reply, error) {
	r, err := scanReply(s.db.QueryRow(ctx,
		`SELECT `+replyColumns+` FROM discussion_replies WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reply{}, ErrReplyNotFound
	}
	if err != nil {
		return Reply{}, fmt.Errorf("get reply: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Replies(ctx context.Context, discussionID string) ([]Reply, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+replyColumns+` FROM discussion_replies
		 WHERE discussion_id = $1::uuid
		 ORDER BY created_at, id`,
		discussionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	var out []Reply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkSolution locks the discussion row so concurrent marks on the same
// thread apply one after the other.
func (s *PostgresStore) MarkSolution(ctx context.Context, discussionID, replyID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx,
			`SELECT id::text FROM course_discussions WHERE id = $1::uuid FOR UPDATE`,
			discussionID,
		).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrDiscussionNotFound
			}
			return fmt.Errorf("lock discussion: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE discussion_replies SET is_solution = FALSE
			 WHERE discussion_id = $1::uuid AND is_solution AND id <> $2::uuid`,
			discussionID, replyID,
		); err != nil {
			return fmt.Errorf("clear solution: %w", err)
		}

		cmd, err := tx.Exec(ctx,
			`UPDATE discussion_replies SET is_solution = TRUE
			 WHERE id = $2::uuid AND discussion_id = $1::uuid`,
			discussionID, replyID,
		)
		if err != nil {
			return fmt.Errorf("set solution: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrReplyNotFound
		}
		return nil
	})
}

func (s *PostgresStore) oneDiscussion(ctx context.Context, sql, id string) (Discussion, error) {
	d, err := scanDiscussion(s.db.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Discussion{}, ErrDiscussionNotFound
	}
	if err != nil {
		return Discussion{}, fmt.Errorf("get discussion: %w", err)
	}
	return d, nil
}

func scanDiscussion(row pgx.Row) (Discussion, error) {
	var d Discussion
	err := row.Scan(&d.ID, &d.CourseID, &d.UserID, &d.Title, &d.Content,
		&d.IsPinned, &d.IsLocked, &d.ViewCount, &d.CreatedAt, &d.ReplyCount)
	return d, err
}

func scanReply(row pgx.Row) (Reply, error) {
	var r Reply
	err := row.Scan(&r.ID, &r.DiscussionID, &r.UserID, &r.Content, &r.IsSolution, &r.CreatedAt)
	return r, err
}
