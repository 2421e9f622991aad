package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	grader grading.Grader
	events *syncx.EventRepo
	now    func() time.Time
}

func NewSQLStore(conn *sql.DB, driver db.Driver, grader grading.Grader, events *syncx.EventRepo) *SQLStore {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	if events == nil {
		events = syncx.NewEventRepo("")
	}
	return &SQLStore{db: conn, driver: driver, grader: grader, events: events, now: time.Now}
}

// ---- quizzes ----

func (s *SQLStore) CreateQuiz(ctx context.Context, in NewQuiz) (Quiz, error) {
	if err := in.validate(); err != nil {
		return Quiz{}, err
	}
	q := Quiz{
		ID:          newID(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		CreatedAt:   s.now().Unix(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id,title,description,created_at) VALUES ($1,$2,$3,$4)`,
		q.ID, q.Title, q.Description, q.CreatedAt)
	if err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	var q Quiz
	err := s.db.QueryRowContext(ctx,
		`SELECT id,title,description,created_at FROM quizzes WHERE id=$1`, id,
	).Scan(&q.ID, &q.Title, &q.Description, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, fmt.Errorf("quiz %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Quiz{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,text,type,position,key_json,created_at FROM questions
		 WHERE quiz_id=$1 ORDER BY position ASC`, id)
	if err != nil {
		return Quiz{}, err
	}
	defer rows.Close()
	for rows.Next() {
		qu, err := scanQuestion(rows)
		if err != nil {
			return Quiz{}, err
		}
		q.Questions = append(q.Questions, qu)
	}
	return q, rows.Err()
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error) {
	limit, offset := clampLimit(opts.Limit, opts.Offset)
	var w where
	if q := strings.TrimSpace(opts.Q); q != "" {
		w.add("LOWER(title) LIKE %s", "%"+strings.ToLower(q)+"%")
	}
	query := `SELECT id,title,description,created_at FROM quizzes` + w.sql() +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Quiz{}
	for rows.Next() {
		var q Quiz
		if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, id string, patch QuizPatch) (Quiz, error) {
	if err := patch.validate(); err != nil {
		return Quiz{}, err
	}
	var sets []string
	var args []any
	if patch.Title != nil {
		args = append(args, strings.TrimSpace(*patch.Title))
		sets = append(sets, fmt.Sprintf("title=$%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, *patch.Description)
		sets = append(sets, fmt.Sprintf("description=$%d", len(args)))
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE quizzes SET %s WHERE id=$%d`, strings.Join(sets, ","), len(args)), args...)
		if err != nil {
			return Quiz{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Quiz{}, fmt.Errorf("quiz %q: %w", id, ErrNotFound)
		}
	}
	return s.GetQuiz(ctx, id)
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("quiz %q: %w", id, ErrNotFound)
	}
	return nil
}

// ---- questions ----

func (s *SQLStore) AddQuestion(ctx context.Context, quizID string, in NewQuestion) (Question, error) {
	if err := in.validate(); err != nil {
		return Question{}, err
	}
	kj, err := json.Marshal(in.Key)
	if err != nil {
		return Question{}, err
	}
	q := Question{
		ID:        newID(),
		QuizID:    quizID,
		Text:      strings.TrimSpace(in.Text),
		Type:      in.Type,
		Key:       in.Key,
		CreatedAt: s.now().Unix(),
	}
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, quizID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("quiz %q: %w", quizID, ErrNotFound)
			}
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position),0)+1 FROM questions WHERE quiz_id=$1`, quizID,
		).Scan(&q.Position); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id,quiz_id,text,type,position,key_json,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			q.ID, q.QuizID, q.Text, string(q.Type), q.Position, string(kj), q.CreatedAt)
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	return getQuestion(ctx, s.db, id)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (Question, error) {
	var q Question
	var typ, kj string
	if err := r.Scan(&q.ID, &q.QuizID, &q.Text, &typ, &q.Position, &kj, &q.CreatedAt); err != nil {
		return Question{}, err
	}
	q.Type = grading.QuestionType(typ)
	if err := json.Unmarshal([]byte(kj), &q.Key); err != nil {
		return Question{}, fmt.Errorf("question %s: decode key: %w", q.ID, err)
	}
	return q, nil
}

func getQuestion(ctx context.Context, x db.Execer, id string) (Question, error) {
	q, err := scanQuestion(x.QueryRowContext(ctx,
		`SELECT id,quiz_id,text,type,position,key_json,created_at FROM questions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return q, err
}

// ---- submissions ----

func (s *SQLStore) Submit(ctx context.Context, learner rbac.Identity, questionID string, resp grading.Response) (SubmitResult, error) {
	if learner.UserID == "" {
		return SubmitResult{}, errors.New("submit: learner identity required")
	}
	var out SubmitResult
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		q, err := getQuestion(ctx, tx, questionID)
		if errors.Is(err, ErrNotFound) {
			return grading.FieldError("question_id", "question %q does not exist", questionID)
		}
		if err != nil {
			return err
		}
		res, err := s.grader.Grade(ctx, grading.Q{Type: q.Type, Key: q.Key}, resp)
		if err != nil {
			return err
		}

		now := s.now()
		p, err := s.lockProgress(ctx, tx, learner.UserID, learner.SchoolID, q.QuizID, now.Unix())
		if err != nil {
			return err
		}

		a := UserAnswer{
			ID:         newID(),
			UserID:     learner.UserID,
			SchoolID:   learner.SchoolID,
			QuestionID: q.ID,
			QuizID:     q.QuizID,
			Type:       q.Type,
			Payload:    resp.Normalized(),
			IsCorrect:  res.Correct,
			AnsweredAt: now.Unix(),
		}
		pj, err := json.Marshal(a.Payload)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_answers (id,user_id,school_id,question_id,quiz_id,type,payload_json,is_correct,answered_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			a.ID, a.UserID, a.SchoolID, a.QuestionID, a.QuizID, string(a.Type), string(pj), a.IsCorrect, a.AnsweredAt,
		); err != nil {
			return err
		}

		p.SchoolID = learner.SchoolID
		completed, err := s.recompute(ctx, tx, &p, now.Unix())
		if err != nil {
			return err
		}

		if err := s.events.Append(ctx, tx, syncx.TypeAnswerSubmitted, a.ID, a); err != nil {
			return err
		}
		if completed {
			if err := s.events.Append(ctx, tx, syncx.TypeQuizCompleted, p.ID, p); err != nil {
				return err
			}
		}
		out = SubmitResult{Answer: a, Progress: p, Completed: completed}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return out, nil
}

func (s *SQLStore) RecomputeProgress(ctx context.Context, userID, quizID string) (Progress, error) {
	var out Progress
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, quizID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("quiz %q: %w", quizID, ErrNotFound)
			}
			return err
		}
		var school string
		err := tx.QueryRowContext(ctx,
			`SELECT school_id FROM user_answers WHERE user_id=$1 AND quiz_id=$2
			 ORDER BY answered_at DESC, id DESC LIMIT 1`, userID, quizID).Scan(&school)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// no ledger rows: only an existing snapshot is worth refreshing
			err = tx.QueryRowContext(ctx,
				`SELECT school_id FROM user_quiz_progress WHERE user_id=$1 AND quiz_id=$2`,
				userID, quizID).Scan(&school)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("progress of %q on quiz %q: %w", userID, quizID, ErrNotFound)
			}
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}
		now := s.now().Unix()
		p, err := s.lockProgress(ctx, tx, userID, school, quizID, now)
		if err != nil {
			return err
		}
		if _, err := s.recompute(ctx, tx, &p, now); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// lockProgress creates the (user, quiz) row if missing and reads it back,
// holding a row lock on postgres until the transaction ends.
func (s *SQLStore) lockProgress(ctx context.Context, tx *sql.Tx, userID, schoolID, quizID string, now int64) (Progress, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_quiz_progress (id,user_id,school_id,quiz_id,updated_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (user_id, quiz_id) DO NOTHING`,
		newID(), userID, schoolID, quizID, now,
	); err != nil {
		return Progress{}, err
	}
	query := `SELECT ` + progressCols + ` FROM user_quiz_progress WHERE user_id=$1 AND quiz_id=$2`
	if s.driver == db.DriverPostgres {
		query += ` FOR UPDATE`
	}
	return scanProgress(tx.QueryRowContext(ctx, query, userID, quizID))
}

// recompute rebuilds p from the ledger and writes it back.
func (s *SQLStore) recompute(ctx context.Context, tx *sql.Tx, p *Progress, now int64) (bool, error) {
	t, err := tally(ctx, tx, p.UserID, p.QuizID)
	if err != nil {
		return false, err
	}
	completed := p.apply(t, now)
	_, err = tx.ExecContext(ctx,
		`UPDATE user_quiz_progress
		 SET school_id=$1, total_questions=$2, answered_questions=$3, correct_answers=$4,
		     score_percentage=$5, completed_at=$6, updated_at=$7
		 WHERE id=$8`,
		p.SchoolID, p.TotalQuestions, p.AnsweredQuestions, p.CorrectAnswers,
		p.ScorePercentage, p.CompletedAt, p.UpdatedAt, p.ID)
	return completed, err
}

// tally counts distinct answered questions and those whose latest answer is
// correct. Answers to deleted questions are gone with the question.
func tally(ctx context.Context, x db.Execer, userID, quizID string) (Tally, error) {
	var t Tally
	if err := x.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE quiz_id=$1`, quizID).Scan(&t.Total); err != nil {
		return Tally{}, err
	}
	if err := x.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT question_id) FROM user_answers WHERE user_id=$1 AND quiz_id=$2`,
		userID, quizID).Scan(&t.Answered); err != nil {
		return Tally{}, err
	}
	if err := x.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_answers a
		 WHERE a.user_id=$1 AND a.quiz_id=$2 AND a.is_correct=$3
		   AND NOT EXISTS (
		     SELECT 1 FROM user_answers b
		     WHERE b.user_id=a.user_id AND b.question_id=a.question_id
		       AND (b.answered_at > a.answered_at OR (b.answered_at = a.answered_at AND b.id > a.id))
		   )`,
		userID, quizID, true).Scan(&t.Correct); err != nil {
		return Tally{}, err
	}
	return t, nil
}

const progressCols = `id,user_id,school_id,quiz_id,total_questions,answered_questions,correct_answers,score_percentage,completed_at,updated_at`

func scanProgress(r rowScanner) (Progress, error) {
	var p Progress
	var completed sql.NullInt64
	if err := r.Scan(&p.ID, &p.UserID, &p.SchoolID, &p.QuizID, &p.TotalQuestions, &p.AnsweredQuestions,
		&p.CorrectAnswers, &p.ScorePercentage, &completed, &p.UpdatedAt); err != nil {
		return Progress{}, err
	}
	if completed.Valid {
		ts := completed.Int64
		p.CompletedAt = &ts
	}
	return p, nil
}

// ---- listings ----

func (s *SQLStore) ListAnswers(ctx context.Context, f AnswerFilter) ([]UserAnswer, error) {
	limit, offset := clampLimit(f.Limit, f.Offset)
	var w where
	w.scope(f.Scope)
	w.eq("quiz_id", f.QuizID)
	w.eq("question_id", f.QuestionID)
	w.eq("user_id", f.UserID)
	w.eq("school_id", f.SchoolID)
	query := `SELECT id,user_id,school_id,question_id,quiz_id,type,payload_json,is_correct,answered_at
		FROM user_answers` + w.sql() +
		fmt.Sprintf(` ORDER BY answered_at DESC, id DESC LIMIT %d OFFSET %d`, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []UserAnswer{}
	for rows.Next() {
		var a UserAnswer
		var typ, pj string
		if err := rows.Scan(&a.ID, &a.UserID, &a.SchoolID, &a.QuestionID, &a.QuizID, &typ, &pj, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		a.Type = grading.QuestionType(typ)
		if err := json.Unmarshal([]byte(pj), &a.Payload); err != nil {
			return nil, fmt.Errorf("answer %s: decode payload: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListProgress(ctx context.Context, f ProgressFilter) ([]Progress, error) {
	limit, offset := clampLimit(f.Limit, f.Offset)
	var w where
	w.scope(f.Scope)
	w.eq("quiz_id", f.QuizID)
	w.eq("user_id", f.UserID)
	w.eq("school_id", f.SchoolID)
	query := `SELECT ` + progressCols + ` FROM user_quiz_progress` + w.sql() +
		fmt.Sprintf(` ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d`, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// where builds a $n-numbered WHERE clause.
type where struct {
	conds []string
	args  []any
}

func (w *where) next(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// add appends a condition; each %s in cond is replaced by a placeholder for v.
func (w *where) add(cond string, v any) {
	w.conds = append(w.conds, fmt.Sprintf(cond, w.next(v)))
}

func (w *where) eq(col, v string) {
	if v != "" {
		w.add(col+"=%s", v)
	}
}

func (w *where) scope(s rbac.Scope) {
	switch {
	case s.All:
	case s.SchoolID != "" && s.UserID != "":
		w.conds = append(w.conds, fmt.Sprintf("(school_id=%s OR user_id=%s)", w.next(s.SchoolID), w.next(s.UserID)))
	case s.SchoolID != "":
		w.add("school_id=%s", s.SchoolID)
	case s.UserID != "":
		w.add("user_id=%s", s.UserID)
	default:
		w.conds = append(w.conds, "1=0")
	}
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
