package quiz

import "strings"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillInBlank    QuestionType = "fill_in_blank"
)

// BlankToken marks one fill-in blank inside a question's text.
const BlankToken = "[___]"

type Option struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Latex string `json:"latex,omitempty"`
}

type Blank struct {
	ID           string   `json:"id"`
	Answer       string   `json:"answer"`
	Alternatives []string `json:"alternatives,omitempty"`
}

type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	Latex    string       `json:"latex,omitempty"`
	ImageRef string       `json:"image_ref,omitempty"` // opaque key into the blob store

	// multiple_choice
	Options            []Option `json:"options,omitempty"`
	CorrectOptionIndex int      `json:"correct_option_index,omitempty"`

	// true_false
	CorrectAnswer bool `json:"correct_answer,omitempty"`

	// fill_in_blank: one entry per BlankToken occurrence in Text, in order
	Blanks []Blank `json:"blanks,omitempty"`
}

// BlankCount reports how many blank tokens the question text carries.
func (q Question) BlankCount() int {
	return strings.Count(q.Text, BlankToken)
}

type Section struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	TimeLimitMin     int        `json:"time_limit_min"`
	Questions        []Question `json:"questions"`
	ShuffleQuestions bool       `json:"shuffle_questions,omitempty"`
}

type Settings struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DurationMin int    `json:"duration_min,omitempty"`
}

type Test struct {
	ID       string   `json:"id"`
	Settings Settings `json:"settings"`

	// Sections is the canonical form. Questions carries the flat form accepted
	// from authors; Normalize folds it into a single section.
	Sections  []Section  `json:"sections,omitempty"`
	Questions []Question `json:"questions,omitempty"`

	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// AllQuestions returns every question across sections in canonical order.
func (t Test) AllQuestions() []Question {
	var out []Question
	for _, s := range t.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// QuestionByID looks a question up across all sections.
func (t Test) QuestionByID(id string) (Question, bool) {
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

type StudentIdentity struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

type AttemptStatus string

const (
	StatusNotStarted AttemptStatus = "not_started"
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusAborted    AttemptStatus = "aborted"
)

// Terminal reports whether no further mutation of the attempt is permitted.
func (s AttemptStatus) Terminal() bool {
	return s == StatusSubmitted || s == StatusAborted
}

type Attempt struct {
	ID             string          `json:"id"`
	TestID         string          `json:"test_id"`
	Student        StudentIdentity `json:"student"`
	Status         AttemptStatus   `json:"status"`
	CurrentSection int             `json:"current_section"`
	RemainingSec   int             `json:"remaining_sec"`
	Answers        map[string]any  `json:"answers"` // question id -> submitted payload
	ViolationCount int             `json:"violation_count"`
	StartedAt      int64           `json:"started_at,omitempty"`
	EndedAt        int64           `json:"ended_at,omitempty"`
}

// Result is derived once by the scorer at finalization and never mutated.
type Result struct {
	AttemptID      string          `json:"attempt_id"`
	TestID         string          `json:"test_id"`
	PerQuestion    map[string]bool `json:"per_question"`
	Correct        int             `json:"correct"`
	Total          int             `json:"total"`
	Score          int             `json:"score"` // percent, rounded
	ViolationCount int             `json:"violation_count"`
	StartedAt      int64           `json:"started_at"`
	EndedAt        int64           `json:"ended_at"`
}
