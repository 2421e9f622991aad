package grading

import (
	"fmt"
	"sort"
	"strings"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	Ordering       QuestionType = "ordering"
	Matching       QuestionType = "matching"
	Grouping       QuestionType = "grouping"
	Input          QuestionType = "input"
	Select         QuestionType = "select"
)

var AllTypes = []QuestionType{SingleChoice, MultipleChoice, Ordering, Matching, Grouping, Input, Select}

func (t QuestionType) Valid() bool {
	for _, k := range AllTypes {
		if t == k {
			return true
		}
	}
	return false
}

func (t QuestionType) IsChoice() bool { return t == SingleChoice || t == MultipleChoice }

// ---- answer keys ----

type Option struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type ChoiceKey struct {
	Options []Option `json:"options"`
}

type OrderingItem struct {
	ID       int    `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type OrderingKey struct {
	Items []OrderingItem `json:"items"`
}

type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type MatchingKey struct {
	Pairs []Pair `json:"pairs,omitempty"`

	// learner view: both columns, unpaired
	Lefts  []string `json:"lefts,omitempty"`
	Rights []string `json:"rights,omitempty"`
}

type Group struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

type GroupingKey struct {
	Groups []Group `json:"groups"`

	// learner view: every item, unassigned
	Pool []string `json:"pool,omitempty"`
}

type InputItem struct {
	Number       int      `json:"number"`
	Placeholder  string   `json:"placeholder,omitempty"`
	CorrectTexts []string `json:"correct_texts"`
}

type InputKey struct {
	Items []InputItem `json:"items"`
}

type SelectItem struct {
	Number       int      `json:"number"`
	Placeholder  string   `json:"placeholder,omitempty"`
	CorrectTexts []string `json:"correct_texts"`
	Options      []string `json:"options"`
}

type SelectKey struct {
	Items []SelectItem `json:"items"`
}

// AnswerKey holds exactly one variant, the one matching the question type.
type AnswerKey struct {
	Choice   *ChoiceKey   `json:"choice,omitempty"`
	Ordering *OrderingKey `json:"ordering,omitempty"`
	Matching *MatchingKey `json:"matching,omitempty"`
	Grouping *GroupingKey `json:"grouping,omitempty"`
	Input    *InputKey    `json:"input,omitempty"`
	Select   *SelectKey   `json:"select,omitempty"`
}

func (k AnswerKey) populated() []QuestionType {
	var out []QuestionType
	if k.Choice != nil {
		out = append(out, SingleChoice)
	}
	if k.Ordering != nil {
		out = append(out, Ordering)
	}
	if k.Matching != nil {
		out = append(out, Matching)
	}
	if k.Grouping != nil {
		out = append(out, Grouping)
	}
	if k.Input != nil {
		out = append(out, Input)
	}
	if k.Select != nil {
		out = append(out, Select)
	}
	return out
}

// Has reports whether the variant for t is present.
func (k AnswerKey) Has(t QuestionType) bool {
	switch t {
	case SingleChoice, MultipleChoice:
		return k.Choice != nil
	case Ordering:
		return k.Ordering != nil
	case Matching:
		return k.Matching != nil
	case Grouping:
		return k.Grouping != nil
	case Input:
		return k.Input != nil
	case Select:
		return k.Select != nil
	}
	return false
}

// Validate checks that k is a well-formed key for a question of type t.
// Violations are reported as a *ValidationError keyed by field path.
func (k AnswerKey) Validate(t QuestionType) error {
	if !t.Valid() {
		return fieldError("question_type", fmt.Sprintf("unknown question type %q", t))
	}
	pop := k.populated()
	if len(pop) != 1 || !k.Has(t) {
		return fieldError("answer_key", fmt.Sprintf("exactly one %s key is required", t))
	}
	ve := &ValidationError{Fields: map[string]string{}}
	switch t {
	case SingleChoice, MultipleChoice:
		validateChoice(ve, t, k.Choice)
	case Ordering:
		validateOrdering(ve, k.Ordering)
	case Matching:
		validateMatching(ve, k.Matching)
	case Grouping:
		validateGrouping(ve, k.Grouping)
	case Input:
		validateInput(ve, k.Input)
	case Select:
		validateSelect(ve, k.Select)
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func validateChoice(ve *ValidationError, t QuestionType, c *ChoiceKey) {
	if len(c.Options) == 0 {
		ve.Fields["answer_key.choice.options"] = "at least one option is required"
		return
	}
	seen := map[int]bool{}
	correct := 0
	for i, o := range c.Options {
		if seen[o.ID] {
			ve.Fields[fmt.Sprintf("answer_key.choice.options[%d].id", i)] = "duplicate option id"
		}
		seen[o.ID] = true
		if strings.TrimSpace(o.Text) == "" {
			ve.Fields[fmt.Sprintf("answer_key.choice.options[%d].text", i)] = "text is required"
		}
		if o.IsCorrect {
			correct++
		}
	}
	switch {
	case correct == 0:
		ve.Fields["answer_key.choice.options"] = "at least one option must be correct"
	case t == SingleChoice && correct > 1:
		ve.Fields["answer_key.choice.options"] = "single_choice allows exactly one correct option"
	}
}

func validateOrdering(ve *ValidationError, o *OrderingKey) {
	if len(o.Items) < 2 {
		ve.Fields["answer_key.ordering.items"] = "at least two items are required"
		return
	}
	ids := map[int]bool{}
	pos := map[int]bool{}
	for i, it := range o.Items {
		if ids[it.ID] {
			ve.Fields[fmt.Sprintf("answer_key.ordering.items[%d].id", i)] = "duplicate item id"
		}
		ids[it.ID] = true
		if pos[it.Position] {
			ve.Fields[fmt.Sprintf("answer_key.ordering.items[%d].position", i)] = "duplicate position"
		}
		pos[it.Position] = true
	}
}

func validateMatching(ve *ValidationError, m *MatchingKey) {
	if len(m.Pairs) == 0 {
		ve.Fields["answer_key.matching.pairs"] = "at least one pair is required"
		return
	}
	seen := map[Pair]bool{}
	for i, p := range m.Pairs {
		p = trimPair(p)
		if p.Left == "" || p.Right == "" {
			ve.Fields[fmt.Sprintf("answer_key.matching.pairs[%d]", i)] = "left and right are required"
			continue
		}
		if seen[p] {
			ve.Fields[fmt.Sprintf("answer_key.matching.pairs[%d]", i)] = "duplicate pair"
		}
		seen[p] = true
	}
}

func validateGrouping(ve *ValidationError, g *GroupingKey) {
	if len(g.Groups) == 0 {
		ve.Fields["answer_key.grouping.groups"] = "at least one group is required"
		return
	}
	names := map[string]bool{}
	owner := map[string]string{}
	for i, grp := range g.Groups {
		name := strings.TrimSpace(grp.Name)
		if name == "" {
			ve.Fields[fmt.Sprintf("answer_key.grouping.groups[%d].name", i)] = "name is required"
			continue
		}
		if names[name] {
			ve.Fields[fmt.Sprintf("answer_key.grouping.groups[%d].name", i)] = "duplicate group name"
		}
		names[name] = true
		for _, it := range grp.Items {
			it = strings.TrimSpace(it)
			if prev, ok := owner[it]; ok && prev != name {
				ve.Fields[fmt.Sprintf("answer_key.grouping.groups[%d].items", i)] =
					fmt.Sprintf("item %q already belongs to group %q", it, prev)
			}
			owner[it] = name
		}
	}
}

func validateInput(ve *ValidationError, in *InputKey) {
	if len(in.Items) == 0 {
		ve.Fields["answer_key.input.items"] = "at least one item is required"
		return
	}
	for i, it := range in.Items {
		if len(nonEmpty(it.CorrectTexts)) == 0 {
			ve.Fields[fmt.Sprintf("answer_key.input.items[%d].correct_texts", i)] = "at least one accepted text is required"
		}
	}
}

func validateSelect(ve *ValidationError, s *SelectKey) {
	if len(s.Items) == 0 {
		ve.Fields["answer_key.select.items"] = "at least one item is required"
		return
	}
	for i, it := range s.Items {
		if len(nonEmpty(it.Options)) == 0 {
			ve.Fields[fmt.Sprintf("answer_key.select.items[%d].options", i)] = "at least one option is required"
			continue
		}
		if len(nonEmpty(it.CorrectTexts)) == 0 {
			ve.Fields[fmt.Sprintf("answer_key.select.items[%d].correct_texts", i)] = "at least one accepted text is required"
			continue
		}
		offered := toSet(normalizeAll(it.Options))
		for _, c := range normalizeAll(it.CorrectTexts) {
			if _, ok := offered[c]; !ok {
				ve.Fields[fmt.Sprintf("answer_key.select.items[%d].correct_texts", i)] =
					fmt.Sprintf("accepted text %q is not an offered option", c)
			}
		}
	}
}

// Public strips everything a learner must not see before answering.
func (k AnswerKey) Public() AnswerKey {
	var out AnswerKey
	if k.Choice != nil {
		c := &ChoiceKey{Options: make([]Option, len(k.Choice.Options))}
		for i, o := range k.Choice.Options {
			c.Options[i] = Option{ID: o.ID, Text: o.Text}
		}
		out.Choice = c
	}
	if k.Ordering != nil {
		o := &OrderingKey{Items: make([]OrderingItem, len(k.Ordering.Items))}
		for i, it := range k.Ordering.Items {
			o.Items[i] = OrderingItem{ID: it.ID, Text: it.Text}
		}
		// stored order usually is the answer
		sort.Slice(o.Items, func(i, j int) bool {
			a, b := o.Items[i], o.Items[j]
			if a.Text != b.Text {
				return a.Text < b.Text
			}
			return a.ID < b.ID
		})
		out.Ordering = o
	}
	if k.Matching != nil {
		m := &MatchingKey{}
		for _, p := range k.Matching.Pairs {
			m.Lefts = append(m.Lefts, p.Left)
			m.Rights = append(m.Rights, p.Right)
		}
		sortStrings(m.Lefts)
		sortStrings(m.Rights)
		out.Matching = m
	}
	if k.Grouping != nil {
		g := &GroupingKey{}
		for _, grp := range k.Grouping.Groups {
			g.Groups = append(g.Groups, Group{Name: grp.Name})
			g.Pool = append(g.Pool, grp.Items...)
		}
		sortStrings(g.Pool)
		out.Grouping = g
	}
	if k.Input != nil {
		in := &InputKey{Items: make([]InputItem, len(k.Input.Items))}
		for i, it := range k.Input.Items {
			in.Items[i] = InputItem{Number: it.Number, Placeholder: it.Placeholder}
		}
		out.Input = in
	}
	if k.Select != nil {
		s := &SelectKey{Items: make([]SelectItem, len(k.Select.Items))}
		for i, it := range k.Select.Items {
			s.Items[i] = SelectItem{Number: it.Number, Placeholder: it.Placeholder, Options: append([]string(nil), it.Options...)}
		}
		out.Select = s
	}
	return out
}

// ---- learner payload ----

type GroupAssignment struct {
	Group string   `json:"group"`
	Items []string `json:"items"`
}

// Response is a learner's submission for one question. Only the field matching
// the question type may be set.
type Response struct {
	SelectedAnswers  []int             `json:"selected_answers,omitempty"`
	InputText        *string           `json:"input_text,omitempty"`
	SelectedOrder    []int             `json:"selected_order,omitempty"`
	SelectedMatching []Pair            `json:"selected_matching,omitempty"`
	SelectedGrouping []GroupAssignment `json:"selected_grouping,omitempty"`
	SelectedOption   *int              `json:"selected_option,omitempty"`
}

func (r Response) present() map[string]bool {
	return map[string]bool{
		"selected_answers":  r.SelectedAnswers != nil,
		"input_text":        r.InputText != nil,
		"selected_order":    r.SelectedOrder != nil,
		"selected_matching": r.SelectedMatching != nil,
		"selected_grouping": r.SelectedGrouping != nil,
		"selected_option":   r.SelectedOption != nil,
	}
}

func fieldFor(t QuestionType) string {
	switch t {
	case SingleChoice, MultipleChoice:
		return "selected_answers"
	case Input:
		return "input_text"
	case Ordering:
		return "selected_order"
	case Matching:
		return "selected_matching"
	case Grouping:
		return "selected_grouping"
	case Select:
		return "selected_option"
	}
	return ""
}

// CheckShape reports a *ValidationError when r does not carry exactly the
// payload field expected for t.
func (r Response) CheckShape(t QuestionType) error {
	want := fieldFor(t)
	if want == "" {
		return fieldError("question_type", fmt.Sprintf("unknown question type %q", t))
	}
	ve := &ValidationError{Fields: map[string]string{}}
	for name, set := range r.present() {
		if set && name != want {
			ve.Fields[name] = fmt.Sprintf("not allowed for %s questions", t)
		}
	}
	if !r.present()[want] {
		ve.Fields[want] = fmt.Sprintf("required for %s questions", t)
	}
	switch want {
	case "selected_answers":
		if r.SelectedAnswers != nil && len(r.SelectedAnswers) == 0 {
			ve.Fields[want] = "select at least one option"
		}
	case "selected_order":
		if r.SelectedOrder != nil && len(r.SelectedOrder) == 0 {
			ve.Fields[want] = "must not be empty"
		}
	case "selected_matching":
		if r.SelectedMatching != nil && len(r.SelectedMatching) == 0 {
			ve.Fields[want] = "must not be empty"
		}
	case "selected_grouping":
		if r.SelectedGrouping != nil && len(r.SelectedGrouping) == 0 {
			ve.Fields[want] = "must not be empty"
		}
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

// Normalized returns a copy with free text trimmed and lower-cased, the form
// that is graded and stored.
func (r Response) Normalized() Response {
	out := r
	if r.InputText != nil {
		s := normalize(*r.InputText)
		out.InputText = &s
	}
	return out
}
