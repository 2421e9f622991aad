package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type quizRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=10000"`
}

type quizPatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
}

type questionRequest struct {
	Text string               `json:"text" validate:"required"`
	Type grading.QuestionType `json:"question_type" validate:"required,oneof=single_choice multiple_choice ordering matching grouping input select"`
	Key  grading.AnswerKey    `json:"answer_key"`
}

// canSeeKeys reports whether the caller may see answer keys.
func canSeeKeys(r *http.Request) bool {
	return rbac.Can(rbac.RoleFromContext(r.Context()), rbac.PermQuizEdit)
}

// GET /quizzes?q=&limit=&offset=
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			Q:      strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !canSeeKeys(r) {
			q = q.Public()
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quizRequest
		if !decode(w, r, &req) {
			return
		}
		q, err := store.CreateQuiz(r.Context(), quiz.NewQuiz{Title: req.Title, Description: req.Description})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// PATCH /quizzes/{quizID}: title and description only.
func UpdateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quizPatchRequest
		if !decode(w, r, &req) {
			return
		}
		q, err := store.UpdateQuiz(r.Context(), chi.URLParam(r, "quizID"), quiz.QuizPatch{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func DeleteQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AddQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if !decode(w, r, &req) {
			return
		}
		q, err := store.AddQuestion(r.Context(), chi.URLParam(r, "quizID"), quiz.NewQuestion{
			Text: req.Text,
			Type: req.Type,
			Key:  req.Key,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func GetQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !canSeeKeys(r) {
			q = q.Public()
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func DeleteQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
