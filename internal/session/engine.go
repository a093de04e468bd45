// Package session drives one exam attempt: section sequencing, the countdown,
// answer capture, violation handling and finalization into a Result.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/dummy7679/testcraft/internal/quiz"
	"github.com/dummy7679/testcraft/internal/scoring"
)

// Phase is the engine's own state, finer grained than the persisted attempt
// status: both InSection and Transition persist as in_progress.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInSection
	PhaseTransition // between sections, waiting for the student to continue
	PhaseTerminal
)

// Engine is the attempt state machine. It is deliberately not goroutine-safe:
// every external event reaches it through one serialized queue (see Runner),
// and each transition runs to completion before the next event is applied.
type Engine struct {
	test    quiz.Test
	attempt quiz.Attempt
	phase   Phase
	order   []string // display order of the active section
	result  *quiz.Result

	threshold int // violations that force submission
	now       func() time.Time
	dirty     bool
}

type Option func(*Engine)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithViolationThreshold sets how many violations force submission.
// 1 (the default) aborts on the first signal.
func WithViolationThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// New builds an engine over a normalized test. The test is a read-only
// borrow: the engine never mutates it.
func New(test quiz.Test, opts ...Option) *Engine {
	e := &Engine{
		test:      quiz.Normalize(test),
		threshold: 1,
		now:       time.Now,
	}
	e.attempt.Status = quiz.StatusNotStarted
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start begins the attempt for the given student.
func (e *Engine) Start(student quiz.StudentIdentity) error {
	if e.phase != PhaseNotStarted {
		return ErrInvalidState
	}
	if len(e.test.Sections) == 0 {
		return ErrInvalidState
	}
	e.attempt = quiz.Attempt{
		ID:        uuid.NewString(),
		TestID:    e.test.ID,
		Student:   student,
		Status:    quiz.StatusInProgress,
		Answers:   map[string]any{},
		StartedAt: e.now().Unix(),
	}
	e.enterSection(0)
	e.phase = PhaseInSection
	e.dirty = true
	return nil
}

// Tick advances the countdown. A no-op outside InSection, so time spent on a
// section-transition screen is not charged. Reaching zero behaves as a
// timeout-forced AdvanceSection: answers so far are kept, unanswered
// questions stay unanswered.
func (e *Engine) Tick(deltaSeconds int) {
	if e.phase != PhaseInSection || deltaSeconds <= 0 {
		return
	}
	e.attempt.RemainingSec -= deltaSeconds
	e.dirty = true
	if e.attempt.RemainingSec <= 0 {
		e.attempt.RemainingSec = 0
		e.advance()
	}
}

// RecordAnswer stores a submitted value for a question in the active section.
// Last write wins; correctness is never checked here.
func (e *Engine) RecordAnswer(questionID string, value any) error {
	if e.phase != PhaseInSection {
		return ErrInvalidState
	}
	if !e.inCurrentSection(questionID) {
		return ErrUnknownQuestion
	}
	e.attempt.Answers[questionID] = value
	e.dirty = true
	return nil
}

// AdvanceSection moves past the active section on the student's request.
func (e *Engine) AdvanceSection() error {
	if e.phase != PhaseInSection {
		return ErrInvalidState
	}
	e.advance()
	return nil
}

// Continue acknowledges a section transition and resumes the countdown.
func (e *Engine) Continue() error {
	if e.phase != PhaseTransition {
		return ErrInvalidState
	}
	e.phase = PhaseInSection
	e.dirty = true
	return nil
}

// ReportViolation counts one integrity violation and, once the threshold is
// reached, forces an aborted finalization. Idempotent under replay: in a
// terminal phase it does nothing, so duplicate signals can never re-finalize
// or touch the stored result.
func (e *Engine) ReportViolation() {
	if e.phase == PhaseTerminal || e.phase == PhaseNotStarted {
		return
	}
	e.attempt.ViolationCount++
	e.dirty = true
	if e.attempt.ViolationCount >= e.threshold {
		e.finalize(quiz.StatusAborted)
	}
}

func (e *Engine) advance() {
	last := e.attempt.CurrentSection >= len(e.test.Sections)-1
	if last {
		e.finalize(quiz.StatusSubmitted)
		return
	}
	e.attempt.CurrentSection++
	e.enterSection(e.attempt.CurrentSection)
	e.phase = PhaseTransition
	e.dirty = true
}

func (e *Engine) enterSection(i int) {
	sec := e.test.Sections[i]
	e.attempt.RemainingSec = sec.TimeLimitMin * 60
	e.order = displayOrder(e.attempt.ID, i, sec.Questions, sec.ShuffleQuestions)
}

// finalize is the single exit: by advancing past the last section, by the
// last section timing out, or by the violation policy. First finalizing
// event wins; everything after is a no-op.
func (e *Engine) finalize(status quiz.AttemptStatus) {
	if e.phase == PhaseTerminal {
		return
	}
	e.attempt.Status = status
	e.attempt.EndedAt = e.now().Unix()
	e.phase = PhaseTerminal
	r := scoring.Score(e.test, e.attempt)
	e.result = &r
	e.dirty = true
}

func (e *Engine) inCurrentSection(questionID string) bool {
	for _, q := range e.test.Sections[e.attempt.CurrentSection].Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// Phase reports the engine state.
func (e *Engine) Phase() Phase { return e.phase }

// Attempt returns the live attempt record.
func (e *Engine) Attempt() quiz.Attempt { return e.attempt }

// Result returns the finalized result, if any.
func (e *Engine) Result() (quiz.Result, bool) {
	if e.result == nil {
		return quiz.Result{}, false
	}
	return *e.result, true
}

// DisplayOrder returns the active section's question ids in display order.
func (e *Engine) DisplayOrder() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Dirty reports unpersisted changes; persistence is the caller's job and is
// fire-and-forget relative to the state machine.
func (e *Engine) Dirty() bool { return e.dirty }
func (e *Engine) ClearDirty() { e.dirty = false }

// Snapshot is an owning copy of the engine's externally visible state, safe
// to hand to another goroutine for persistence.
type Snapshot struct {
	Attempt quiz.Attempt
	Result  *quiz.Result
	Phase   Phase
	Order   []string
}

func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{Attempt: e.attempt, Phase: e.phase, Order: e.DisplayOrder()}
	s.Attempt.Answers = make(map[string]any, len(e.attempt.Answers))
	for k, v := range e.attempt.Answers {
		s.Attempt.Answers[k] = v
	}
	if e.result != nil {
		r := *e.result
		s.Result = &r
	}
	return s
}
