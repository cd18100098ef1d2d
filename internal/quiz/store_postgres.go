package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/database"
)

const quizColumns = `id, course_id, title, passing_score, max_attempts,
	time_limit_minutes, is_required_for_certification`

const attemptColumns = `id::text, user_id::text, quiz_id, score, total_questions, correct_count,
	answers, passed, attempt_number, time_taken_seconds, completed_at`

// PostgresStore persists quizzes in course_quizzes / quiz_questions and
// attempts in user_quiz_attempts.
type PostgresStore struct {
	db database.DBTX
	tx *database.Transactor
}

// NewPostgresStore creates a PostgreSQL-backed quiz store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool, tx: database.NewTransactor(pool)}
}

func (s *PostgresStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := scanQuiz(s.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM course_quizzes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Quiz{}, ErrQuizNotFound
	}
	if err != nil {
		return Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) Questions(ctx context.Context, quizID string) ([]Question, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, quiz_id, question_text, options, correct_answer, points, order_index
		 FROM quiz_questions
		 WHERE quiz_id = $1
		 ORDER BY order_index, id`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.QuestionText, &q.Options,
			&q.CorrectAnswer, &q.Points, &q.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *PostgresStore) QuizzesForCourse(ctx context.Context, courseID string) ([]Quiz, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+quizColumns+` FROM course_quizzes WHERE course_id = $1 ORDER BY id`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	var out []Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SaveQuiz upserts the quiz and replaces its questions.
func (s *PostgresStore) SaveQuiz(ctx context.Context, q Quiz, questions []Question) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO course_quizzes
			   (id, course_id, title, passing_score, max_attempts, time_limit_minutes, is_required_for_certification)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
			   course_id = EXCLUDED.course_id,
			   title = EXCLUDED.title,
			   passing_score = EXCLUDED.passing_score,
			   max_attempts = EXCLUDED.max_attempts,
			   time_limit_minutes = EXCLUDED.time_limit_minutes,
			   is_required_for_certification = EXCLUDED.is_required_for_certification`,
			q.ID, q.CourseID, q.Title, q.PassingScore, q.MaxAttempts, q.TimeLimitMinutes, q.IsRequiredForCertification,
		); err != nil {
			if database.IsForeignKeyViolation(err) {
				return catalog.ErrCourseNotFound
			}
			return fmt.Errorf("upsert quiz %s: %w", q.ID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, q.ID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}

		batch := &pgx.Batch{}
		for _, qu := range questions {
			options := qu.Options
			if options == nil {
				options = []string{}
			}
			batch.Queue(
				`INSERT INTO quiz_questions (id, quiz_id, question_text, options, correct_answer, points, order_index)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				qu.ID, q.ID, qu.QuestionText, options, qu.CorrectAnswer, qu.Points, qu.OrderIndex,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		return nil
	})
}

// InsertAttempt serializes attempts per (user, quiz) with a transaction
// advisory lock so numbering and the attempt cap see a stable count.
func (s *PostgresStore) InsertAttempt(ctx context.Context, a Attempt, allowed func(prior int) error) (Attempt, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, fmt.Errorf("marshal answers: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1))`,
			"quiz_attempt:"+a.UserID+":"+a.QuizID,
		); err != nil {
			return fmt.Errorf("lock attempts: %w", err)
		}

		var prior, last int
		if err := tx.QueryRow(ctx,
			`SELECT count(*), COALESCE(max(attempt_number), 0)
			 FROM user_quiz_attempts
			 WHERE user_id = $1::uuid AND quiz_id = $2`,
			a.UserID, a.QuizID,
		).Scan(&prior, &last); err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		if err := allowed(prior); err != nil {
			return err
		}

		a.AttemptNumber = last + 1
		return tx.QueryRow(ctx,
			`INSERT INTO user_quiz_attempts
			   (user_id, quiz_id, score, total_questions, correct_count, answers, passed,
			    attempt_number, time_taken_seconds, completed_at)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10)
			 RETURNING id::text`,
			a.UserID, a.QuizID, a.Score, a.TotalQuestions, a.CorrectCount, string(answers),
			a.Passed, a.AttemptNumber, a.TimeTakenSeconds, a.CompletedAt,
		).Scan(&a.ID)
	})
	if database.IsUniqueViolation(err, "user_quiz_attempts_number_key") {
		return Attempt{}, apperr.Wrap(apperr.KindConflict, "attempt already recorded", err)
	}
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *PostgresStore) ListAttempts(ctx context.Context, userID, quizID string) ([]Attempt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM user_quiz_attempts
		 WHERE user_id = $1::uuid AND quiz_id = $2
		 ORDER BY attempt_number`,
		userID, quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var answers []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.Score, &a.TotalQuestions,
			&a.CorrectCount, &answers, &a.Passed, &a.AttemptNumber, &a.TimeTakenSeconds,
			&a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanQuiz(row pgx.Row) (Quiz, error) {
	var q Quiz
	err := row.Scan(&q.ID, &q.CourseID, &q.Title, &q.PassingScore, &q.MaxAttempts,
		&q.TimeLimitMinutes, &q.IsRequiredForCertification)
	return q, err
}
