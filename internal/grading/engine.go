package grading

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Q is the view of a question needed for grading.
type Q struct {
	Type QuestionType
	Key  AnswerKey
}

// Result is the verdict for one submission. There is no partial credit.
type Result struct {
	Correct bool `json:"is_correct"`
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, r Response) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, r Response) (Result, error)
}

type defaultGrader struct {
	strategies map[QuestionType]Strategy
}

// Grade checks the key and payload shape, then dispatches. Errors are either
// a *ValidationError (learner input) or wrap ErrMisconfigured.
func (g *defaultGrader) Grade(ctx context.Context, q Q, r Response) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownType, q.Type)
	}
	if !q.Key.Has(q.Type) {
		return Result{}, fmt.Errorf("%w %q", ErrKeyMissing, q.Type)
	}
	if err := r.CheckShape(q.Type); err != nil {
		return Result{}, err
	}
	return s.Grade(ctx, q, r.Normalized())
}

// GraderOption customises NewDefaultGrader.
type GraderOption func(map[QuestionType]Strategy)

// WithStrategy replaces the strategy used for t.
func WithStrategy(t QuestionType, s Strategy) GraderOption {
	return func(m map[QuestionType]Strategy) { m[t] = s }
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...GraderOption) Grader {
	m := map[QuestionType]Strategy{
		SingleChoice:   choiceStrategy{},
		MultipleChoice: choiceStrategy{},
		Input:          inputStrategy{},
		Ordering:       orderingStrategy{},
		Matching:       matchingStrategy{},
		Grouping:       groupingStrategy{},
		Select:         selectStrategy{},
	}
	for _, o := range opts {
		o(m)
	}
	return &defaultGrader{strategies: m}
}

// --- Strategies ---

// choiceStrategy: selected set must equal the correct set exactly.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, r Response) (Result, error) {
	known := map[int]bool{}
	correct := map[int]struct{}{}
	for _, o := range q.Key.Choice.Options {
		known[o.ID] = true
		if o.IsCorrect {
			correct[o.ID] = struct{}{}
		}
	}
	for _, id := range r.SelectedAnswers {
		if !known[id] {
			return Result{}, FieldError("selected_answers", "option %d does not belong to this question", id)
		}
	}
	return Result{Correct: setEqual(correct, toSet(r.SelectedAnswers))}, nil
}

// inputStrategy only consults the first input item.
type inputStrategy struct{}

func (inputStrategy) Grade(_ context.Context, q Q, r Response) (Result, error) {
	items := q.Key.Input.Items
	if len(items) == 0 {
		return Result{}, fmt.Errorf("%w: input key has no items", ErrMisconfigured)
	}
	text := *r.InputText
	for _, accepted := range normalizeAll(items[0].CorrectTexts) {
		if accepted != "" && accepted == text {
			return Result{Correct: true}, nil
		}
	}
	return Result{}, nil
}

// orderingStrategy: submitted item ids must follow the canonical positions.
type orderingStrategy struct{}

func (orderingStrategy) Grade(_ context.Context, q Q, r Response) (Result, error) {
	items := append([]OrderingItem(nil), q.Key.Ordering.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	if len(items) != len(r.SelectedOrder) {
		return Result{}, nil
	}
	for i, it := range items {
		if r.SelectedOrder[i] != it.ID {
			return Result{}, nil
		}
	}
	return Result{Correct: true}, nil
}

// matchingStrategy: submitted pairs must equal the canonical pairs as a set.
type matchingStrategy struct{}

func (matchingStrategy) Grade(_ context.Context, q Q, r Response) (Result, error) {
	want := map[Pair]struct{}{}
	for _, p := range q.Key.Matching.Pairs {
		want[trimPair(p)] = struct{}{}
	}
	got := map[Pair]struct{}{}
	for _, p := range r.SelectedMatching {
		p = trimPair(p)
		if _, dup := got[p]; dup {
			return Result{}, nil
		}
		got[p] = struct{}{}
	}
	return Result{Correct: setEqual(want, got)}, nil
}

// groupingStrategy: the submitted partition must reproduce the canonical one.
type groupingStrategy struct{}

func (groupingStrategy) Grade(_ context.Context, q Q, r Response) (Result, error) {
	want := map[string]map[string]struct{}{}
	for _, g := range q.Key.Grouping.Groups {
		want[strings.TrimSpace(g.Name)] = toSet(trimAll(g.Items))
	}
	if len(r.SelectedGrouping) != len(want) {
		return Result{}, nil
	}
	seen := map[string]bool{}
	for _, a := range r.SelectedGrouping {
		name := strings.TrimSpace(a.Group)
		items, ok := want[name]
		if !ok || seen[name] {
			return Result{}, nil
		}
		seen[name] = true
		submitted := trimAll(a.Items)
		set := toSet(submitted)
		if len(set) != len(submitted) || !setEqual(items, set) {
			return Result{}, nil
		}
	}
	return Result{Correct: true}, nil
}

// selectStrategy: selected_option indexes the first item's offered options.
type selectStrategy struct{}

func (selectStrategy) Grade(_ context.Context, q Q, r Response) (Result, error) {
	items := q.Key.Select.Items
	if len(items) == 0 {
		return Result{}, fmt.Errorf("%w: select key has no items", ErrMisconfigured)
	}
	first := items[0]
	idx := *r.SelectedOption
	if idx < 0 || idx >= len(first.Options) {
		return Result{}, FieldError("selected_option", "option index %d out of range [0,%d)", idx, len(first.Options))
	}
	chosen := normalize(first.Options[idx])
	for _, c := range normalizeAll(first.CorrectTexts) {
		if c == chosen {
			return Result{Correct: true}, nil
		}
	}
	return Result{}, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
