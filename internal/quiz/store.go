package quiz

import (
	"context"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type Store interface {
	CreateQuiz(ctx context.Context, in NewQuiz) (Quiz, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error) // with questions and full keys
	ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error)
	UpdateQuiz(ctx context.Context, id string, patch QuizPatch) (Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error

	AddQuestion(ctx context.Context, quizID string, in NewQuestion) (Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)
	DeleteQuestion(ctx context.Context, id string) error

	// Submit grades resp against the question, appends a UserAnswer and
	// recomputes the learner's progress for the owning quiz, atomically.
	Submit(ctx context.Context, learner rbac.Identity, questionID string, resp grading.Response) (SubmitResult, error)
	// RecomputeProgress re-derives one snapshot from the ledger.
	RecomputeProgress(ctx context.Context, userID, quizID string) (Progress, error)

	ListAnswers(ctx context.Context, f AnswerFilter) ([]UserAnswer, error)
	ListProgress(ctx context.Context, f ProgressFilter) ([]Progress, error)
}
