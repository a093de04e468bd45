package quiz

import "fmt"

// Authoring operations. A shared test is immutable except through these,
// followed by an explicit re-save.

// AddQuestion appends a question to the given section.
func (t *Test) AddQuestion(section int, q Question) error {
	if section < 0 || section >= len(t.Sections) {
		return fmt.Errorf("section %d out of range", section)
	}
	if err := q.Validate(); err != nil {
		return err
	}
	t.Sections[section].Questions = append(t.Sections[section].Questions, q)
	return nil
}

// UpdateQuestion replaces the question with the same id wherever it lives.
func (t *Test) UpdateQuestion(q Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	for si := range t.Sections {
		for qi := range t.Sections[si].Questions {
			if t.Sections[si].Questions[qi].ID == q.ID {
				t.Sections[si].Questions[qi] = q
				return nil
			}
		}
	}
	return fmt.Errorf("question %s not found", q.ID)
}

// RemoveQuestion deletes a question by id, preserving order of the rest.
func (t *Test) RemoveQuestion(id string) bool {
	for si := range t.Sections {
		qs := t.Sections[si].Questions
		for qi := range qs {
			if qs[qi].ID == id {
				t.Sections[si].Questions = append(qs[:qi:qi], qs[qi+1:]...)
				return true
			}
		}
	}
	return false
}

// RemoveOption drops one option from a multiple-choice question. If the
// correct index ends up out of range it is coerced back to 0; this is the one
// silent coercion the authoring layer allows.
func (q *Question) RemoveOption(index int) error {
	if q.Type != MultipleChoice {
		return fmt.Errorf("question %s is not multiple choice", q.ID)
	}
	if index < 0 || index >= len(q.Options) {
		return fmt.Errorf("option %d out of range", index)
	}
	q.Options = append(q.Options[:index:index], q.Options[index+1:]...)
	switch {
	case q.CorrectOptionIndex == index:
		q.CorrectOptionIndex = 0
	case q.CorrectOptionIndex > index:
		q.CorrectOptionIndex--
	}
	if q.CorrectOptionIndex >= len(q.Options) {
		q.CorrectOptionIndex = 0
	}
	return nil
}

// ReorderQuestions rearranges a section's questions to the given id order.
// The order must be a permutation of the section's current question ids.
func (t *Test) ReorderQuestions(section int, order []string) error {
	if section < 0 || section >= len(t.Sections) {
		return fmt.Errorf("section %d out of range", section)
	}
	qs := t.Sections[section].Questions
	if len(order) != len(qs) {
		return fmt.Errorf("order has %d ids, section has %d questions", len(order), len(qs))
	}
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	next := make([]Question, 0, len(order))
	for _, id := range order {
		q, ok := byID[id]
		if !ok {
			return fmt.Errorf("unknown question id %s in order", id)
		}
		delete(byID, id)
		next = append(next, q)
	}
	t.Sections[section].Questions = next
	return nil
}
