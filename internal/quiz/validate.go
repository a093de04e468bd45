package quiz

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidationError blocks an authoring save. It is reported to the author and
// never silently coerced, except where RemoveOption documents otherwise.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the question invariants from the data model.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" && q.Latex == "" {
		return invalid("text", "question text is empty")
	}
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) < 2 {
			return invalid("options", "need at least 2 options, got %d", len(q.Options))
		}
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			return invalid("correct_option_index", "index %d out of range [0,%d)", q.CorrectOptionIndex, len(q.Options))
		}
	case TrueFalse:
		// nothing beyond the prompt
	case FillInBlank:
		if n := q.BlankCount(); n != len(q.Blanks) {
			return invalid("blanks", "text has %d blank tokens but %d blank entries", n, len(q.Blanks))
		}
		if len(q.Blanks) == 0 {
			return invalid("blanks", "fill-in-blank question has no blanks")
		}
		for i, b := range q.Blanks {
			if strings.TrimSpace(b.Answer) == "" {
				return invalid("blanks", "blank %d has an empty answer", i)
			}
		}
	default:
		return invalid("type", "unknown question type %q", q.Type)
	}
	return nil
}

// Validate checks a whole test after normalization.
func (t Test) Validate() error {
	if strings.TrimSpace(t.Settings.Title) == "" {
		return invalid("settings.title", "title is empty")
	}
	if len(t.Sections) == 0 {
		return invalid("sections", "test has no sections")
	}
	for si, s := range t.Sections {
		if s.TimeLimitMin <= 0 {
			return invalid(fmt.Sprintf("sections[%d].time_limit_min", si), "time limit must be > 0, got %d", s.TimeLimitMin)
		}
		if len(s.Questions) == 0 {
			return invalid(fmt.Sprintf("sections[%d].questions", si), "section has no questions")
		}
		for qi, q := range s.Questions {
			if err := q.Validate(); err != nil {
				return fmt.Errorf("sections[%d].questions[%d]: %w", si, qi, err)
			}
		}
	}
	return nil
}

// Normalize folds a flat test (bare questions plus a duration) into the
// canonical sectioned form, so the session engine never special-cases
// sectionless tests. It also assigns any missing ids.
func Normalize(t Test) Test {
	if len(t.Sections) == 0 && len(t.Questions) > 0 {
		limit := t.Settings.DurationMin
		if limit <= 0 {
			limit = 60
		}
		t.Sections = []Section{{
			Title:        t.Settings.Title,
			TimeLimitMin: limit,
			Questions:    t.Questions,
		}}
		t.Questions = nil
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for si := range t.Sections {
		for qi := range t.Sections[si].Questions {
			q := &t.Sections[si].Questions[qi]
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			for oi := range q.Options {
				if q.Options[oi].ID == "" {
					q.Options[oi].ID = uuid.NewString()
				}
			}
			for bi := range q.Blanks {
				if q.Blanks[bi].ID == "" {
					q.Blanks[bi].ID = uuid.NewString()
				}
			}
		}
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	t.UpdatedAt = time.Now().Unix()
	return t
}

// StripAnswers returns a student-safe copy: answer keys removed, structure
// (option order, blank count) preserved so the UI can still render inputs.
func StripAnswers(t Test) Test {
	out := t
	out.Sections = make([]Section, len(t.Sections))
	for si, s := range t.Sections {
		cs := s
		cs.Questions = make([]Question, len(s.Questions))
		for qi, q := range s.Questions {
			cq := q
			cq.CorrectOptionIndex = 0
			cq.CorrectAnswer = false
			if len(q.Blanks) > 0 {
				cq.Blanks = make([]Blank, len(q.Blanks))
				for bi, b := range q.Blanks {
					cq.Blanks[bi] = Blank{ID: b.ID}
				}
			}
			cs.Questions[qi] = cq
		}
		out.Sections[si] = cs
	}
	return out
}
