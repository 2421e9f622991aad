package quiz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// memoryStore keeps everything in maps behind one mutex; a submit holds the
// write lock for the whole grade, append and recompute sequence.
type memoryStore struct {
	mu        sync.RWMutex
	grader    grading.Grader
	now       func() time.Time
	quizzes   map[string]Quiz // without questions
	questions map[string]Question
	answers   []UserAnswer // append-only, in submission order
	progress  map[string]Progress
}

func NewInMemoryStore(grader grading.Grader) Store {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	return &memoryStore{
		grader:    grader,
		now:       time.Now,
		quizzes:   map[string]Quiz{},
		questions: map[string]Question{},
		progress:  map[string]Progress{},
	}
}

func progressKey(userID, quizID string) string { return userID + "|" + quizID }

func (m *memoryStore) CreateQuiz(_ context.Context, in NewQuiz) (Quiz, error) {
	if err := in.validate(); err != nil {
		return Quiz{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q := Quiz{ID: newID(), Title: strings.TrimSpace(in.Title), Description: in.Description, CreatedAt: m.now().Unix()}
	m.quizzes[q.ID] = q
	return q, nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("quiz %q: %w", id, ErrNotFound)
	}
	q.Questions = m.questionsOf(id)
	return q, nil
}

func (m *memoryStore) questionsOf(quizID string) []Question {
	var out []Question
	for _, q := range m.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *memoryStore) ListQuizzes(_ context.Context, opts ListOpts) ([]Quiz, error) {
	limit, offset := clampLimit(opts.Limit, opts.Offset)
	needle := strings.ToLower(strings.TrimSpace(opts.Q))
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Quiz{}
	for _, q := range m.quizzes {
		if needle == "" || strings.Contains(strings.ToLower(q.Title), needle) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return page(out, limit, offset), nil
}

func (m *memoryStore) UpdateQuiz(ctx context.Context, id string, patch QuizPatch) (Quiz, error) {
	if err := patch.validate(); err != nil {
		return Quiz{}, err
	}
	m.mu.Lock()
	q, ok := m.quizzes[id]
	if !ok {
		m.mu.Unlock()
		return Quiz{}, fmt.Errorf("quiz %q: %w", id, ErrNotFound)
	}
	if patch.Title != nil {
		q.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		q.Description = *patch.Description
	}
	m.quizzes[id] = q
	m.mu.Unlock()
	return m.GetQuiz(ctx, id)
}

func (m *memoryStore) DeleteQuiz(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return fmt.Errorf("quiz %q: %w", id, ErrNotFound)
	}
	delete(m.quizzes, id)
	for qid, q := range m.questions {
		if q.QuizID == id {
			delete(m.questions, qid)
		}
	}
	m.answers = filterAnswers(m.answers, func(a UserAnswer) bool { return a.QuizID != id })
	for k, p := range m.progress {
		if p.QuizID == id {
			delete(m.progress, k)
		}
	}
	return nil
}

func (m *memoryStore) AddQuestion(_ context.Context, quizID string, in NewQuestion) (Question, error) {
	if err := in.validate(); err != nil {
		return Question{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return Question{}, fmt.Errorf("quiz %q: %w", quizID, ErrNotFound)
	}
	pos := 0
	for _, q := range m.questions {
		if q.QuizID == quizID && q.Position > pos {
			pos = q.Position
		}
	}
	q := Question{
		ID:        newID(),
		QuizID:    quizID,
		Text:      strings.TrimSpace(in.Text),
		Type:      in.Type,
		Position:  pos + 1,
		Key:       in.Key,
		CreatedAt: m.now().Unix(),
	}
	m.questions[q.ID] = q
	return q, nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *memoryStore) DeleteQuestion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	delete(m.questions, id)
	m.answers = filterAnswers(m.answers, func(a UserAnswer) bool { return a.QuestionID != id })
	return nil
}

func (m *memoryStore) Submit(ctx context.Context, learner rbac.Identity, questionID string, resp grading.Response) (SubmitResult, error) {
	if learner.UserID == "" {
		return SubmitResult{}, errors.New("submit: learner identity required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.questions[questionID]
	if !ok {
		return SubmitResult{}, grading.FieldError("question_id", "question %q does not exist", questionID)
	}
	res, err := m.grader.Grade(ctx, grading.Q{Type: q.Type, Key: q.Key}, resp)
	if err != nil {
		return SubmitResult{}, err
	}
	now := m.now().Unix()
	a := UserAnswer{
		ID:         newID(),
		UserID:     learner.UserID,
		SchoolID:   learner.SchoolID,
		QuestionID: q.ID,
		QuizID:     q.QuizID,
		Type:       q.Type,
		Payload:    resp.Normalized(),
		IsCorrect:  res.Correct,
		AnsweredAt: now,
	}
	m.answers = append(m.answers, a)

	p := m.progressFor(learner.UserID, q.QuizID, now)
	p.SchoolID = learner.SchoolID
	completed := p.apply(m.tally(learner.UserID, q.QuizID), now)
	m.progress[progressKey(p.UserID, p.QuizID)] = p
	return SubmitResult{Answer: a, Progress: p, Completed: completed}, nil
}

func (m *memoryStore) RecomputeProgress(_ context.Context, userID, quizID string) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return Progress{}, fmt.Errorf("quiz %q: %w", quizID, ErrNotFound)
	}
	now := m.now().Unix()
	p, seen := m.progress[progressKey(userID, quizID)]
	for i := len(m.answers) - 1; i >= 0; i-- {
		if a := m.answers[i]; a.UserID == userID && a.QuizID == quizID {
			if !seen {
				p = m.progressFor(userID, quizID, now)
			}
			p.SchoolID = a.SchoolID
			seen = true
			break
		}
	}
	if !seen {
		return Progress{}, fmt.Errorf("progress of %q on quiz %q: %w", userID, quizID, ErrNotFound)
	}
	p.apply(m.tally(userID, quizID), now)
	m.progress[progressKey(userID, quizID)] = p
	return p, nil
}

func (m *memoryStore) progressFor(userID, quizID string, now int64) Progress {
	if p, ok := m.progress[progressKey(userID, quizID)]; ok {
		return p
	}
	return Progress{ID: newID(), UserID: userID, QuizID: quizID, UpdatedAt: now}
}

// tally mirrors the SQL store: distinct questions, latest answer wins.
func (m *memoryStore) tally(userID, quizID string) Tally {
	var t Tally
	for _, q := range m.questions {
		if q.QuizID == quizID {
			t.Total++
		}
	}
	latest := map[string]bool{}
	for _, a := range m.answers {
		if a.UserID == userID && a.QuizID == quizID {
			latest[a.QuestionID] = a.IsCorrect
		}
	}
	t.Answered = len(latest)
	for _, ok := range latest {
		if ok {
			t.Correct++
		}
	}
	return t
}

func (m *memoryStore) ListAnswers(_ context.Context, f AnswerFilter) ([]UserAnswer, error) {
	limit, offset := clampLimit(f.Limit, f.Offset)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []UserAnswer{}
	for i := len(m.answers) - 1; i >= 0; i-- {
		a := m.answers[i]
		if !f.Scope.Allows(rbac.Learner{UserID: a.UserID, SchoolID: a.SchoolID}) ||
			!matches(f.QuizID, a.QuizID) || !matches(f.QuestionID, a.QuestionID) ||
			!matches(f.UserID, a.UserID) || !matches(f.SchoolID, a.SchoolID) {
			continue
		}
		out = append(out, a)
	}
	return page(out, limit, offset), nil
}

func (m *memoryStore) ListProgress(_ context.Context, f ProgressFilter) ([]Progress, error) {
	limit, offset := clampLimit(f.Limit, f.Offset)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Progress{}
	for _, p := range m.progress {
		if !f.Scope.Allows(rbac.Learner{UserID: p.UserID, SchoolID: p.SchoolID}) ||
			!matches(f.QuizID, p.QuizID) || !matches(f.UserID, p.UserID) || !matches(f.SchoolID, p.SchoolID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID > out[j].ID
	})
	return page(out, limit, offset), nil
}

func matches(filter, v string) bool { return filter == "" || filter == v }

func filterAnswers(in []UserAnswer, keep func(UserAnswer) bool) []UserAnswer {
	out := in[:0]
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if len(in) > limit {
		in = in[:limit]
	}
	return in
}
