package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const quizColumns = `id,lesson_id,title,description,passing_score,time_limit,max_attempts,questions_json,created_at`

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	var limit sql.NullInt64
	if q.TimeLimit != nil && *q.TimeLimit > 0 {
		limit = sql.NullInt64{Int64: int64(*q.TimeLimit), Valid: true}
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (`+quizColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET lesson_id=EXCLUDED.lesson_id, title=EXCLUDED.title,
			description=EXCLUDED.description, passing_score=EXCLUDED.passing_score,
			time_limit=EXCLUDED.time_limit, max_attempts=EXCLUDED.max_attempts,
			questions_json=EXCLUDED.questions_json`,
		q.ID, q.LessonID, q.Title, q.Description, q.PassingScore, limit, q.MaxAttempts, string(qj), q.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (Quiz, error) {
	var (
		q     Quiz
		limit sql.NullInt64
		qjson string
	)
	if err := row.Scan(&q.ID, &q.LessonID, &q.Title, &q.Description, &q.PassingScore,
		&limit, &q.MaxAttempts, &qjson, &q.CreatedAt); err != nil {
		return Quiz{}, err
	}
	if limit.Valid {
		v := int(limit.Int64)
		q.TimeLimit = &v
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("decode questions of quiz %s: %w", q.ID, err)
	}
	return q, nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := scanQuiz(s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrNotFound
	}
	return q, err
}

func (s *SQLStore) GetQuizByLesson(ctx context.Context, lessonID string) (Quiz, error) {
	q, err := scanQuiz(s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes
		WHERE lesson_id=$1 ORDER BY created_at ASC, id ASC LIMIT 1`, lessonID))
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrNotFound
	}
	return q, err
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error) {
	var (
		where []string
		args  []any
	)
	if opts.LessonID != "" {
		args = append(args, opts.LessonID)
		where = append(where, fmt.Sprintf("lesson_id=$%d", len(args)))
	}
	query := `SELECT ` + quizColumns + ` FROM quizzes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC` + limitClause(&args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_results WHERE quiz_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

const resultColumns = `id,quiz_id,user_id,score,total_questions,correct_answers,passed,answers_json,breakdown_json,completed_at,time_taken,auto_submitted`

func (s *SQLStore) SaveResult(ctx context.Context, r Result) error {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, r.QuizID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	aj, err := json.Marshal(r.Answers)
	if err != nil {
		return err
	}
	bj, err := json.Marshal(r.Breakdown)
	if err != nil {
		return err
	}
	// results are immutable; a duplicate id is an error
	_, err = s.db.ExecContext(ctx, `INSERT INTO quiz_results (`+resultColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.QuizID, r.UserID, r.Score, r.TotalQuestions, r.CorrectAnswers, r.Passed,
		string(aj), string(bj), r.CompletedAt.UnixMilli(), r.TimeTaken, r.AutoSubmitted)
	return err
}

func scanResult(row rowScanner) (Result, error) {
	var (
		r         Result
		aj, bj    string
		completed int64
	)
	if err := row.Scan(&r.ID, &r.QuizID, &r.UserID, &r.Score, &r.TotalQuestions, &r.CorrectAnswers,
		&r.Passed, &aj, &bj, &completed, &r.TimeTaken, &r.AutoSubmitted); err != nil {
		return Result{}, err
	}
	r.CompletedAt = time.UnixMilli(completed).UTC()
	if err := json.Unmarshal([]byte(aj), &r.Answers); err != nil {
		return Result{}, fmt.Errorf("decode answers of result %s: %w", r.ID, err)
	}
	if bj != "" && bj != "null" {
		if err := json.Unmarshal([]byte(bj), &r.Breakdown); err != nil {
			return Result{}, fmt.Errorf("decode breakdown of result %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *SQLStore) GetResult(ctx context.Context, id string) (Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM quiz_results WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	return r, err
}

func (s *SQLStore) ListResults(ctx context.Context, f ResultFilter) ([]Result, error) {
	var (
		where []string
		args  []any
	)
	if f.QuizID != "" {
		args = append(args, f.QuizID)
		where = append(where, fmt.Sprintf("quiz_id=$%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	query := `SELECT ` + resultColumns + ` FROM quiz_results`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY completed_at DESC, id ASC` + limitClause(&args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountResults(ctx context.Context, quizID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_results WHERE quiz_id=$1 AND user_id=$2`,
		quizID, userID).Scan(&n)
	return n, err
}

func limitClause(args *[]any, limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = math.MaxInt32 // OFFSET needs a LIMIT in sqlite
	}
	*args = append(*args, limit)
	clause := fmt.Sprintf(" LIMIT $%d", len(*args))
	if offset > 0 {
		*args = append(*args, offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}
