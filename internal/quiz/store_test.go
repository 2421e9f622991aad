package quiz

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:quiz_"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newSQLStore(t *testing.T) (*SQLStore, *sql.DB) {
	conn := openSQLite(t)
	return NewSQLStore(conn, db.DriverSQLite, nil, syncx.NewEventRepo("test")), conn
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sql", func(t *testing.T) {
		s, _ := newSQLStore(t)
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewInMemoryStore(nil))
	})
}

func strp(s string) *string { return &s }

var (
	alice = rbac.Identity{UserID: "alice", Role: rbac.RoleStudent, SchoolID: "s1"}
	bob   = rbac.Identity{UserID: "bob", Role: rbac.RoleStudent, SchoolID: "s2"}
)

type quizA struct {
	quiz    Quiz
	capital Question // single choice, option 2 correct
	city    Question // input, accepts Paris
}

func seedQuizA(t *testing.T, s Store) quizA {
	t.Helper()
	ctx := context.Background()
	qz, err := s.CreateQuiz(ctx, NewQuiz{Title: "Quiz A", Description: "geography"})
	require.NoError(t, err)

	q1, err := s.AddQuestion(ctx, qz.ID, NewQuestion{
		Text: "Capital of Italy?",
		Type: grading.SingleChoice,
		Key: grading.AnswerKey{Choice: &grading.ChoiceKey{Options: []grading.Option{
			{ID: 1, Text: "Milan"}, {ID: 2, Text: "Rome", IsCorrect: true},
		}}},
	})
	require.NoError(t, err)

	q2, err := s.AddQuestion(ctx, qz.ID, NewQuestion{
		Text: "Capital of France?",
		Type: grading.Input,
		Key: grading.AnswerKey{Input: &grading.InputKey{Items: []grading.InputItem{
			{Number: 1, CorrectTexts: []string{"Paris", "paris "}},
		}}},
	})
	require.NoError(t, err)
	return quizA{quiz: qz, capital: q1, city: q2}
}

func TestSubmit_QuizAScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := seedQuizA(t, s)

		res, err := s.Submit(ctx, alice, a.capital.ID, grading.Response{SelectedAnswers: []int{2}})
		require.NoError(t, err)
		assert.True(t, res.Answer.IsCorrect)
		assert.Equal(t, 2, res.Progress.TotalQuestions)
		assert.Equal(t, 1, res.Progress.AnsweredQuestions)
		assert.Equal(t, 1, res.Progress.CorrectAnswers)
		assert.InDelta(t, 50.0, res.Progress.ScorePercentage, 1e-9)
		assert.Nil(t, res.Progress.CompletedAt)
		assert.False(t, res.Completed)

		res, err = s.Submit(ctx, alice, a.city.ID, grading.Response{InputText: strp("Lyon")})
		require.NoError(t, err)
		assert.False(t, res.Answer.IsCorrect)
		assert.Equal(t, 2, res.Progress.AnsweredQuestions)
		assert.Equal(t, 1, res.Progress.CorrectAnswers)
		assert.InDelta(t, 50.0, res.Progress.ScorePercentage, 1e-9)
		require.NotNil(t, res.Progress.CompletedAt)
		assert.True(t, res.Completed)

		mine, err := s.ListProgress(ctx, ProgressFilter{Scope: rbac.ScopeFor(alice)})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, res.Progress, mine[0])
	})
}

func TestSubmit_InputNormalised(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		a := seedQuizA(t, s)
		res, err := s.Submit(context.Background(), alice, a.city.ID, grading.Response{InputText: strp(" PARIS ")})
		require.NoError(t, err)
		assert.True(t, res.Answer.IsCorrect)
		require.NotNil(t, res.Answer.Payload.InputText)
		assert.Equal(t, "paris", *res.Answer.Payload.InputText)

		stored, err := s.ListAnswers(context.Background(), AnswerFilter{Scope: rbac.ScopeFor(alice)})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "paris", *stored[0].Payload.InputText)
	})
}

func TestSubmit_ResubmissionAppendsButProgressCounted(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := seedQuizA(t, s)

		for _, sel := range [][]int{{2}, {1}, {1}} {
			_, err := s.Submit(ctx, alice, a.capital.ID, grading.Response{SelectedAnswers: sel})
			require.NoError(t, err)
		}
		ledger, err := s.ListAnswers(ctx, AnswerFilter{Scope: rbac.ScopeFor(alice), QuestionID: a.capital.ID})
		require.NoError(t, err)
		assert.Len(t, ledger, 3, "every submission is kept")

		res, err := s.Submit(ctx, alice, a.city.ID, grading.Response{InputText: strp("paris")})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Progress.AnsweredQuestions, "repeat answers do not inflate the count")
		assert.Equal(t, 1, res.Progress.CorrectAnswers, "latest answer to the choice question is wrong")
		require.NotNil(t, res.Progress.CompletedAt, "completion is reachable after resubmissions")

		res, err = s.Submit(ctx, alice, a.capital.ID, grading.Response{SelectedAnswers: []int{2}})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Progress.CorrectAnswers)
		assert.InDelta(t, 100.0, res.Progress.ScorePercentage, 1e-9)
		assert.False(t, res.Completed, "already complete")
	})
}

func TestSubmit_Rejections(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := seedQuizA(t, s)

		_, err := s.Submit(ctx, alice, a.capital.ID, grading.Response{InputText: strp("Rome")})
		assert.True(t, grading.IsValidation(err), "free text for a choice question")

		_, err = s.Submit(ctx, alice, a.capital.ID, grading.Response{SelectedAnswers: []int{42}})
		assert.True(t, grading.IsValidation(err), "option from another question")

		_, err = s.Submit(ctx, alice, "missing", grading.Response{SelectedAnswers: []int{2}})
		var ve *grading.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "question_id")

		answers, err := s.ListAnswers(ctx, AnswerFilter{Scope: rbac.Scope{All: true}})
		require.NoError(t, err)
		assert.Empty(t, answers, "nothing persisted on rejection")
		progress, err := s.ListProgress(ctx, ProgressFilter{Scope: rbac.Scope{All: true}})
		require.NoError(t, err)
		assert.Empty(t, progress)
	})
}

func TestSubmit_MisconfiguredQuestion(t *testing.T) {
	s, conn := newSQLStore(t)
	ctx := context.Background()
	a := seedQuizA(t, s)

	_, err := conn.ExecContext(ctx,
		`INSERT INTO questions (id,quiz_id,text,type,position,key_json,created_at) VALUES ($1,$2,$3,$4,$5,$6,0)`,
		"broken", a.quiz.ID, "Pick one", "single_choice", 99, `{}`)
	require.NoError(t, err)

	_, err = s.Submit(ctx, alice, "broken", grading.Response{SelectedAnswers: []int{1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, grading.ErrKeyMissing))
	assert.False(t, grading.IsValidation(err))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_answers`).Scan(&n))
	assert.Zero(t, n)
}

func TestSubmit_WritesEvents(t *testing.T) {
	s, conn := newSQLStore(t)
	ctx := context.Background()
	a := seedQuizA(t, s)

	_, err := s.Submit(ctx, alice, a.capital.ID, grading.Response{SelectedAnswers: []int{2}})
	require.NoError(t, err)
	_, err = s.Submit(ctx, alice, a.city.ID, grading.Response{InputText: strp("paris")})
	require.NoError(t, err)

	events, err := syncx.NewEventRepo("test").Since(ctx, conn, 0, 10)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
		assert.Equal(t, "test", e.SiteID)
	}
	assert.Equal(t, []string{syncx.TypeAnswerSubmitted, syncx.TypeAnswerSubmitted, syncx.TypeQuizCompleted}, types)
}

func TestSubmit_ConcurrentSameLearner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := seedQuizA(t, s)

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var err error
				if i%2 == 0 {
					_, err = s.Submit(ctx, alice, a.capital.ID, grading.Response{SelectedAnswers: []int{2}})
				} else {
					_, err = s.Submit(ctx, alice, a.city.ID, grading.Response{InputText: strp("Paris")})
				}
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		answers, err := s.ListAnswers(ctx, AnswerFilter{Scope: rbac.ScopeFor(alice)})
		require.NoError(t, err)
		assert.Len(t, answers, 20)

		progress, err := s.ListProgress(ctx, ProgressFilter{Scope: rbac.ScopeFor(alice)})
		require.NoError(t, err)
		require.Len(t, progress, 1)
		assert.Equal(t, 2, progress[0].AnsweredQuestions)
		assert.Equal(t, 2, progress[0].CorrectAnswers)
		assert.NotNil(t, progress[0].CompletedAt)
	})
}

func TestListings_RoleScoped(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := seedQuizA(t, s)
		for _, who := range []rbac.Identity{alice, bob} {
			_, err := s.Submit(ctx, who, a.capital.ID, grading.Response{SelectedAnswers: []int{2}})
			require.NoError(t, err)
		}

		teacher := rbac.Identity{UserID: "t1", Role: rbac.RoleTeacher, SchoolID: "s1"}
		admin := rbac.Identity{UserID: "root", Role: rbac.RoleAdmin}

		got, err := s.ListAnswers(ctx, AnswerFilter{Scope: rbac.ScopeFor(alice)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "alice", got[0].UserID)

		got, err = s.ListAnswers(ctx, AnswerFilter{Scope: rbac.ScopeFor(teacher)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "alice", got[0].UserID)

		got, err = s.ListAnswers(ctx, AnswerFilter{Scope: rbac.ScopeFor(admin)})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.ListAnswers(ctx, AnswerFilter{Scope: rbac.ScopeFor(alice), UserID: "bob"})
		require.NoError(t, err)
		assert.Empty(t, got, "filters narrow the scope, never widen it")

		prog, err := s.ListProgress(ctx, ProgressFilter{Scope: rbac.ScopeFor(admin), SchoolID: "s2"})
		require.NoError(t, err)
		require.Len(t, prog, 1)
		assert.Equal(t, "bob", prog[0].UserID)

		prog, err = s.ListProgress(ctx, ProgressFilter{Scope: rbac.Scope{}})
		require.NoError(t, err)
		assert.Empty(t, prog)
	})
}

func TestQuizLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.CreateQuiz(ctx, NewQuiz{Title: "   "})
		assert.True(t, grading.IsValidation(err))

		a := seedQuizA(t, s)
		got, err := s.GetQuiz(ctx, a.quiz.ID)
		require.NoError(t, err)
		require.Len(t, got.Questions, 2)
		assert.Equal(t, 1, got.Questions[0].Position)
		assert.Equal(t, 2, got.Questions[1].Position)
		require.NotNil(t, got.Questions[0].Key.Choice)
		assert.True(t, got.Questions[0].Key.Choice.Options[1].IsCorrect)

		pub := got.Public()
		assert.False(t, pub.Questions[0].Key.Choice.Options[1].IsCorrect)

		title := "Quiz A (revised)"
		upd, err := s.UpdateQuiz(ctx, a.quiz.ID, QuizPatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, upd.Title)
		assert.Equal(t, "geography", upd.Description)

		_, err = s.UpdateQuiz(ctx, "nope", QuizPatch{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := s.ListQuizzes(ctx, ListOpts{Q: "revised"})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = s.AddQuestion(ctx, a.quiz.ID, NewQuestion{Text: "Bad", Type: grading.Input,
			Key: grading.AnswerKey{Choice: &grading.ChoiceKey{}}})
		assert.True(t, grading.IsValidation(err))

		_, err = s.AddQuestion(ctx, "nope", NewQuestion{Text: "x", Type: grading.Input,
			Key: grading.AnswerKey{Input: &grading.InputKey{Items: []grading.InputItem{{Number: 1, CorrectTexts: []string{"x"}}}}}})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Submit(ctx, alice, a.city.ID, grading.Response{InputText: strp("paris")})
		require.NoError(t, err)

		require.NoError(t, s.DeleteQuiz(ctx, a.quiz.ID))
		_, err = s.GetQuiz(ctx, a.quiz.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetQuestion(ctx, a.city.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		answers, err := s.ListAnswers(ctx, AnswerFilter{Scope: rbac.Scope{All: true}})
		require.NoError(t, err)
		assert.Empty(t, answers)
		progress, err := s.ListProgress(ctx, ProgressFilter{Scope: rbac.Scope{All: true}})
		require.NoError(t, err)
		assert.Empty(t, progress)

		assert.ErrorIs(t, s.DeleteQuiz(ctx, a.quiz.ID), ErrNotFound)
	})
}

func TestRecomputeProgress_TracksQuizEdits(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := seedQuizA(t, s)

		_, err := s.Submit(ctx, alice, a.capital.ID, grading.Response{SelectedAnswers: []int{2}})
		require.NoError(t, err)
		res, err := s.Submit(ctx, alice, a.city.ID, grading.Response{InputText: strp("paris")})
		require.NoError(t, err)
		completedAt := res.Progress.CompletedAt
		require.NotNil(t, completedAt)

		_, err = s.AddQuestion(ctx, a.quiz.ID, NewQuestion{Text: "Capital of Spain?", Type: grading.Input,
			Key: grading.AnswerKey{Input: &grading.InputKey{Items: []grading.InputItem{{Number: 1, CorrectTexts: []string{"Madrid"}}}}}})
		require.NoError(t, err)

		p, err := s.RecomputeProgress(ctx, alice.UserID, a.quiz.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, p.TotalQuestions)
		assert.Equal(t, 2, p.AnsweredQuestions)
		assert.InDelta(t, 200.0/3.0, p.ScorePercentage, 1e-9)
		require.NotNil(t, p.CompletedAt, "completion is not revoked by new questions")
		assert.Equal(t, *completedAt, *p.CompletedAt)
		assert.Equal(t, "s1", p.SchoolID)

		_, err = s.RecomputeProgress(ctx, alice.UserID, "nope")
		assert.ErrorIs(t, err, ErrNotFound)

		// No ledger rows and no snapshot: nothing to recompute, nothing created.
		_, err = s.RecomputeProgress(ctx, "nobody", a.quiz.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		empty, err := s.CreateQuiz(ctx, NewQuiz{Title: "Empty"})
		require.NoError(t, err)
		_, err = s.RecomputeProgress(ctx, "nobody", empty.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		list, err := s.ListProgress(ctx, ProgressFilter{Scope: rbac.Scope{All: true}, UserID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestTallyScore(t *testing.T) {
	assert.Equal(t, 0.0, Tally{}.Score())
	assert.InDelta(t, 50.0, Tally{Total: 2, Correct: 1}.Score(), 1e-9)

	var p Progress
	assert.False(t, p.apply(Tally{Total: 2, Answered: 1, Correct: 1}, 10))
	assert.Nil(t, p.CompletedAt)
	assert.True(t, p.apply(Tally{Total: 2, Answered: 2, Correct: 1}, 20))
	assert.Equal(t, int64(20), *p.CompletedAt)
	assert.False(t, p.apply(Tally{Total: 2, Answered: 2, Correct: 2}, 30))
	assert.Equal(t, int64(30), *p.CompletedAt, "restamped while answered equals total")
	assert.False(t, p.apply(Tally{Total: 3, Answered: 2, Correct: 2}, 40))
	assert.Equal(t, int64(30), *p.CompletedAt, "left unchanged otherwise")

	var empty Progress
	assert.False(t, empty.apply(Tally{}, 50), "a quiz without questions is never complete")
	assert.Nil(t, empty.CompletedAt)
	assert.Equal(t, 0.0, empty.ScorePercentage)
}
