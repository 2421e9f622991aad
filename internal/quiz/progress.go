package quiz

// Tally is the raw count a progress snapshot is derived from.
type Tally struct {
	Total    int
	Answered int
	Correct  int
}

// Score is correct/total*100, or 0 for an empty quiz.
func (t Tally) Score() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total) * 100
}

// apply overwrites p with t as of now. completed_at is stamped with now
// whenever a non-empty quiz is fully answered and left alone otherwise. It
// reports whether p went from incomplete to complete.
func (p *Progress) apply(t Tally, now int64) bool {
	wasComplete := p.CompletedAt != nil
	p.TotalQuestions = t.Total
	p.AnsweredQuestions = t.Answered
	p.CorrectAnswers = t.Correct
	p.ScorePercentage = t.Score()
	if t.Total > 0 && t.Answered == t.Total {
		ts := now
		p.CompletedAt = &ts
	}
	p.UpdatedAt = now
	return !wasComplete && p.CompletedAt != nil
}
