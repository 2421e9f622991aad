package quiz

import (
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

const maxTitleLen = 255

type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   int64      `json:"created_at"`
	Questions   []Question `json:"questions,omitempty"`
}

type Question struct {
	ID        string               `json:"id"`
	QuizID    string               `json:"quiz_id"`
	Text      string               `json:"text"`
	Type      grading.QuestionType `json:"question_type"`
	Position  int                  `json:"position"`
	Key       grading.AnswerKey    `json:"answer_key"`
	CreatedAt int64                `json:"created_at"`
}

// Public returns a copy safe to show a learner before they answer.
func (q Question) Public() Question {
	q.Key = q.Key.Public()
	return q
}

// Public strips answer keys from every question.
func (qz Quiz) Public() Quiz {
	out := qz
	out.Questions = make([]Question, len(qz.Questions))
	for i, q := range qz.Questions {
		out.Questions[i] = q.Public()
	}
	return out
}

// UserAnswer is one submission attempt. Rows are never updated.
type UserAnswer struct {
	ID         string               `json:"id"`
	UserID     string               `json:"user_id"`
	SchoolID   string               `json:"school_id,omitempty"`
	QuestionID string               `json:"question_id"`
	QuizID     string               `json:"quiz_id"`
	Type       grading.QuestionType `json:"question_type"`
	Payload    grading.Response     `json:"payload"`
	IsCorrect  bool                 `json:"is_correct"`
	AnsweredAt int64                `json:"answered_at"`
}

// Progress is the per learner and quiz snapshot derived from the answer ledger.
type Progress struct {
	ID                string  `json:"id"`
	UserID            string  `json:"user_id"`
	SchoolID          string  `json:"school_id,omitempty"`
	QuizID            string  `json:"quiz_id"`
	TotalQuestions    int     `json:"total_questions"`
	AnsweredQuestions int     `json:"answered_questions"`
	CorrectAnswers    int     `json:"correct_answers"`
	ScorePercentage   float64 `json:"score_percentage"`
	CompletedAt       *int64  `json:"completed_at"`
	UpdatedAt         int64   `json:"updated_at"`
}

// SubmitResult is what a submission produced.
type SubmitResult struct {
	Answer   UserAnswer `json:"answer"`
	Progress Progress   `json:"progress"`
	// Completed is true when this submission moved the progress to complete.
	Completed bool `json:"completed"`
}

type NewQuiz struct {
	Title       string
	Description string
}

func (n NewQuiz) validate() error {
	return validateTitle(n.Title)
}

type QuizPatch struct {
	Title       *string
	Description *string
}

func (p QuizPatch) validate() error {
	if p.Title != nil {
		return validateTitle(*p.Title)
	}
	return nil
}

func validateTitle(t string) error {
	t = strings.TrimSpace(t)
	switch {
	case t == "":
		return grading.FieldError("title", "title is required")
	case len([]rune(t)) > maxTitleLen:
		return grading.FieldError("title", "title must be at most %d characters", maxTitleLen)
	}
	return nil
}

type NewQuestion struct {
	Text string
	Type grading.QuestionType
	Key  grading.AnswerKey
}

// validate enforces the one-variant-per-type rule at construction time.
func (n NewQuestion) validate() error {
	ve := &grading.ValidationError{Fields: map[string]string{}}
	if strings.TrimSpace(n.Text) == "" {
		ve.Fields["text"] = "text is required"
	}
	if err := n.Key.Validate(n.Type); err != nil {
		kv, ok := err.(*grading.ValidationError)
		if !ok {
			return err
		}
		for k, v := range kv.Fields {
			ve.Fields[k] = v
		}
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

type ListOpts struct {
	Q      string
	Limit  int
	Offset int
}

type AnswerFilter struct {
	Scope      rbac.Scope
	QuizID     string
	QuestionID string
	UserID     string
	SchoolID   string
	Limit      int
	Offset     int
}

type ProgressFilter struct {
	Scope    rbac.Scope
	QuizID   string
	UserID   string
	SchoolID string
	Limit    int
	Offset   int
}

func clampLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
