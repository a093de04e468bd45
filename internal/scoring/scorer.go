// Package scoring derives a Result from a Test and a finished Attempt. It is
// pure: re-running it over a persisted attempt reproduces the stored result,
// which is what makes scores auditable.
package scoring

import (
	"math"

	"github.com/dummy7679/testcraft/internal/quiz"
)

// A strategy decides correctness for one question variant. Responses arrive
// as decoded JSON (any), so each strategy tolerates the number/bool/array
// shapes the wire produces; anything malformed is simply incorrect.
type strategy func(q quiz.Question, resp any) bool

var strategies = map[quiz.QuestionType]strategy{
	quiz.MultipleChoice: choiceCorrect,
	quiz.TrueFalse:      trueFalseCorrect,
	quiz.FillInBlank:    blanksCorrect,
}

// Score walks every question in the test in canonical order; display shuffle
// never enters here because answers key by question id.
func Score(t quiz.Test, a quiz.Attempt) quiz.Result {
	r := quiz.Result{
		AttemptID:      a.ID,
		TestID:         t.ID,
		PerQuestion:    map[string]bool{},
		ViolationCount: a.ViolationCount,
		StartedAt:      a.StartedAt,
		EndedAt:        a.EndedAt,
	}
	for _, q := range t.AllQuestions() {
		r.Total++
		correct := false
		if resp, answered := a.Answers[q.ID]; answered {
			if s, ok := strategies[q.Type]; ok {
				correct = s(q, resp)
			}
		}
		r.PerQuestion[q.ID] = correct
		if correct {
			r.Correct++
		}
	}
	if r.Total > 0 {
		r.Score = int(math.Round(100 * float64(r.Correct) / float64(r.Total)))
	}
	return r
}

func choiceCorrect(q quiz.Question, resp any) bool {
	switch v := resp.(type) {
	case float64: // JSON numbers decode to float64
		return int(v) == q.CorrectOptionIndex
	case int:
		return v == q.CorrectOptionIndex
	case string: // option id form
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			return false
		}
		return v == q.Options[q.CorrectOptionIndex].ID
	default:
		return false
	}
}

func trueFalseCorrect(q quiz.Question, resp any) bool {
	v, ok := resp.(bool)
	return ok && v == q.CorrectAnswer
}

// blanksCorrect requires every blank to match; each blank independently
// accepts its answer or any alternative after folding.
func blanksCorrect(q quiz.Question, resp any) bool {
	vals, ok := toStringSlice(resp)
	if !ok || len(vals) != len(q.Blanks) {
		return false
	}
	for i, b := range q.Blanks {
		if !blankMatches(b, vals[i]) {
			return false
		}
	}
	return len(q.Blanks) > 0
}

func blankMatches(b quiz.Blank, submitted string) bool {
	got := Normalize(submitted)
	if got == "" {
		return false
	}
	if got == Normalize(b.Answer) {
		return true
	}
	for _, alt := range b.Alternatives {
		if got == Normalize(alt) {
			return true
		}
	}
	return false
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
