package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/metrics"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type submitRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	grading.Response
}

type submitResponse struct {
	Message   string        `json:"message"`
	IsCorrect bool          `json:"is_correct"`
	AnswerID  string        `json:"answer_id"`
	Progress  quiz.Progress `json:"progress"`
}

var errNoIdentity = errors.New("no identity in context")

// POST /user-answers/submit
func SubmitAnswerHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.SubmitTimer()
		defer timer.ObserveDuration()

		learner, ok := rbac.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, r, errNoIdentity)
			return
		}
		var req submitRequest
		if !decode(w, r, &req) {
			metrics.ObserveSubmissionError("validation")
			return
		}
		res, err := store.Submit(r.Context(), learner, req.QuestionID, req.Response)
		if err != nil {
			_, class := errorClass(err)
			metrics.ObserveSubmissionError(class)
			writeError(w, r, err)
			return
		}
		metrics.ObserveSubmission(string(res.Answer.Type), res.Answer.IsCorrect)
		if res.Completed {
			metrics.ObserveCompletion()
			slog.InfoContext(r.Context(), "quiz completed",
				"user_id", learner.UserID, "quiz_id", res.Progress.QuizID,
				"score", res.Progress.ScorePercentage)
		}
		writeJSON(w, http.StatusOK, submitResponse{
			Message:   "Answer accepted",
			IsCorrect: res.Answer.IsCorrect,
			AnswerID:  res.Answer.ID,
			Progress:  res.Progress,
		})
	}
}

// GET /user-answers?quiz=&question=&user=&school=
func ListAnswersHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer, _ := rbac.IdentityFromContext(r.Context())
		qs := r.URL.Query()
		list, err := store.ListAnswers(r.Context(), quiz.AnswerFilter{
			Scope:      rbac.ScopeFor(viewer),
			QuizID:     qs.Get("quiz"),
			QuestionID: qs.Get("question"),
			UserID:     qs.Get("user"),
			SchoolID:   qs.Get("school"),
			Limit:      parseIntDefault(qs.Get("limit"), 100),
			Offset:     parseIntDefault(qs.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
