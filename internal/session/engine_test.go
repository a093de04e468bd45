package session

import (
	"errors"
	"testing"
	"time"

	"github.com/dummy7679/testcraft/internal/quiz"
)

func fixedClock(sec *int64) func() time.Time {
	return func() time.Time { return time.Unix(*sec, 0) }
}

func mcq(id string, correct int) quiz.Question {
	return quiz.Question{
		ID: id, Type: quiz.MultipleChoice, Text: id + "?",
		Options: []quiz.Option{
			{ID: id + "-a", Text: "a"}, {ID: id + "-b", Text: "b"},
			{ID: id + "-c", Text: "c"}, {ID: id + "-d", Text: "d"},
		},
		CorrectOptionIndex: correct,
	}
}

func oneSectionTest(shuffle bool, qs ...quiz.Question) quiz.Test {
	return quiz.Test{
		ID:       "t1",
		Settings: quiz.Settings{Title: "One"},
		Sections: []quiz.Section{{
			Title: "S1", TimeLimitMin: 1, Questions: qs, ShuffleQuestions: shuffle,
		}},
	}
}

func student() quiz.StudentIdentity {
	return quiz.StudentIdentity{Name: "Ada", ExternalID: "s-1"}
}

func TestStartRequiresNotStarted(t *testing.T) {
	e := New(oneSectionTest(false, mcq("q1", 0)))
	if err := e.Start(student()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := e.Start(student()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second start = %v, want ErrInvalidState", err)
	}
	a := e.Attempt()
	if a.Status != quiz.StatusInProgress || a.CurrentSection != 0 || a.RemainingSec != 60 {
		t.Errorf("attempt after start = %+v", a)
	}
}

func TestStartRejectsTestWithoutSections(t *testing.T) {
	e := New(quiz.Test{ID: "empty", Settings: quiz.Settings{Title: "Empty"}})
	if err := e.Start(student()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("start on sectionless test = %v, want ErrInvalidState", err)
	}
	if e.Phase() != PhaseNotStarted {
		t.Fatalf("phase = %v after rejected start", e.Phase())
	}
}

// Before Start there is no attempt to abort; a signal is dropped rather than
// counted against whichever attempt starts later.
func TestViolationBeforeStartIsDropped(t *testing.T) {
	e := New(oneSectionTest(false, mcq("q1", 0)))
	e.ReportViolation()
	if e.Phase() != PhaseNotStarted {
		t.Fatalf("phase = %v", e.Phase())
	}
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	if got := e.Attempt().ViolationCount; got != 0 {
		t.Fatalf("violation count = %d, pre-start signal leaked into the attempt", got)
	}
}

// Test with one section, timeLimit = 1 minute, two MCQs. Answer the first
// correctly, leave the second blank, let 60 seconds elapse.
func TestTimeoutSubmitsWithPartialAnswers(t *testing.T) {
	now := int64(1000)
	e := New(oneSectionTest(false, mcq("q1", 1), mcq("q2", 2)), WithClock(fixedClock(&now)))
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordAnswer("q1", 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 60; i++ {
		now++
		e.Tick(1)
	}
	a := e.Attempt()
	if a.Status != quiz.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", a.Status)
	}
	if a.RemainingSec != 0 {
		t.Errorf("remaining = %d", a.RemainingSec)
	}
	r, ok := e.Result()
	if !ok {
		t.Fatal("no result after timeout")
	}
	if r.Score != 50 || !r.PerQuestion["q1"] || r.PerQuestion["q2"] {
		t.Errorf("result = %+v", r)
	}
	if a.EndedAt != 1060 {
		t.Errorf("endedAt = %d, want 1060", a.EndedAt)
	}
}

// Same test; a violation fires at t=10s under the default threshold of 1.
func TestViolationAbortsAndKeepsAnswers(t *testing.T) {
	now := int64(0)
	e := New(oneSectionTest(false, mcq("q1", 1), mcq("q2", 2)), WithClock(fixedClock(&now)))
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordAnswer("q1", 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		now++
		e.Tick(1)
	}
	e.ReportViolation()

	a := e.Attempt()
	if a.Status != quiz.StatusAborted || a.EndedAt == 0 || a.ViolationCount != 1 {
		t.Fatalf("attempt = %+v", a)
	}
	r, ok := e.Result()
	if !ok || !r.PerQuestion["q1"] || r.ViolationCount != 1 {
		t.Fatalf("result = %+v ok=%v; answers before the signal must survive", r, ok)
	}
}

func TestFinalizationIdempotentUnderReplay(t *testing.T) {
	e := New(oneSectionTest(false, mcq("q1", 0)))
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	e.ReportViolation()
	first, _ := e.Result()
	count := e.Attempt().ViolationCount
	ended := e.Attempt().EndedAt

	for i := 0; i < 5; i++ {
		e.ReportViolation()
		e.Tick(1)
	}
	if got := e.Attempt().ViolationCount; got != count {
		t.Errorf("violation count %d changed to %d after terminal", count, got)
	}
	if got := e.Attempt().EndedAt; got != ended {
		t.Errorf("endedAt changed after terminal")
	}
	again, _ := e.Result()
	if again.Score != first.Score || again.ViolationCount != first.ViolationCount {
		t.Errorf("result changed under replay: %+v vs %+v", first, again)
	}
}

func TestViolationThresholdAccumulates(t *testing.T) {
	e := New(oneSectionTest(false, mcq("q1", 0)), WithViolationThreshold(3))
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	e.ReportViolation()
	e.ReportViolation()
	if e.Attempt().Status != quiz.StatusInProgress {
		t.Fatal("aborted below threshold")
	}
	e.ReportViolation()
	if e.Attempt().Status != quiz.StatusAborted {
		t.Fatal("third violation should abort")
	}
}

func TestRecordAnswerGuards(t *testing.T) {
	e := New(oneSectionTest(false, mcq("q1", 0)))
	if err := e.RecordAnswer("q1", 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("before start: %v", err)
	}
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordAnswer("nope", 0); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("unknown question: %v", err)
	}
	// last write wins
	if err := e.RecordAnswer("q1", 0); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordAnswer("q1", 3); err != nil {
		t.Fatal(err)
	}
	if got := e.Attempt().Answers["q1"]; got != 3 {
		t.Errorf("answer = %v, want 3", got)
	}
	if err := e.AdvanceSection(); err != nil { // last section -> submit
		t.Fatal(err)
	}
	if err := e.RecordAnswer("q1", 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("after submit: %v", err)
	}
}

func TestSectionSequenceWithTransition(t *testing.T) {
	tt := quiz.Test{
		ID:       "t2",
		Settings: quiz.Settings{Title: "Two"},
		Sections: []quiz.Section{
			{Title: "S1", TimeLimitMin: 1, Questions: []quiz.Question{mcq("q1", 0)}},
			{Title: "S2", TimeLimitMin: 2, Questions: []quiz.Question{mcq("q2", 0)}},
		},
	}
	e := New(tt)
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	// Answering a question from a later section is refused.
	if err := e.RecordAnswer("q2", 0); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("cross-section answer: %v", err)
	}
	if err := e.AdvanceSection(); err != nil {
		t.Fatal(err)
	}
	if e.Phase() != PhaseTransition {
		t.Fatalf("phase = %v, want transition", e.Phase())
	}
	// Countdown is paused while waiting for the acknowledgment.
	before := e.Attempt().RemainingSec
	e.Tick(30)
	if e.Attempt().RemainingSec != before {
		t.Error("tick consumed time during transition")
	}
	if before != 120 {
		t.Errorf("remaining = %d, want reset to 120", before)
	}
	if err := e.Continue(); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordAnswer("q2", 0); err != nil {
		t.Fatal(err)
	}
	if err := e.AdvanceSection(); err != nil {
		t.Fatal(err)
	}
	if e.Attempt().Status != quiz.StatusSubmitted {
		t.Fatalf("status = %s", e.Attempt().Status)
	}
}

func TestTimeoutOnNonFinalSectionEntersTransition(t *testing.T) {
	tt := quiz.Test{
		ID: "t3",
		Sections: []quiz.Section{
			{Title: "S1", TimeLimitMin: 1, Questions: []quiz.Question{mcq("q1", 0)}},
			{Title: "S2", TimeLimitMin: 1, Questions: []quiz.Question{mcq("q2", 0)}},
		},
	}
	e := New(tt)
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	e.Tick(60)
	if e.Phase() != PhaseTransition || e.Attempt().CurrentSection != 1 {
		t.Fatalf("phase=%v section=%d", e.Phase(), e.Attempt().CurrentSection)
	}
	if e.Attempt().Status != quiz.StatusInProgress {
		t.Errorf("status = %s", e.Attempt().Status)
	}
}

func TestShuffleIsStableBijection(t *testing.T) {
	qs := []quiz.Question{mcq("q1", 0), mcq("q2", 0), mcq("q3", 0), mcq("q4", 0), mcq("q5", 0)}
	e := New(oneSectionTest(true, qs...))
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	order := e.DisplayOrder()
	if len(order) != len(qs) {
		t.Fatalf("order length %d", len(order))
	}
	seen := map[string]bool{}
	for _, id := range order {
		if seen[id] {
			t.Fatalf("duplicate id %s in display order", id)
		}
		seen[id] = true
	}
	for _, q := range qs {
		if !seen[q.ID] {
			t.Fatalf("id %s missing from display order", q.ID)
		}
	}
	// Stable for the same attempt and section.
	got := displayOrder(e.Attempt().ID, 0, qs, true)
	for i := range order {
		if order[i] != got[i] {
			t.Fatal("re-derived order differs for same (attempt, section)")
		}
	}
}

func TestShuffleDoesNotAffectScoring(t *testing.T) {
	qs := []quiz.Question{mcq("q1", 1), mcq("q2", 2), mcq("q3", 3)}
	answers := map[string]any{"q1": 1, "q2": 2, "q3": 0}

	run := func(shuffle bool) quiz.Result {
		e := New(oneSectionTest(shuffle, qs...))
		if err := e.Start(student()); err != nil {
			t.Fatal(err)
		}
		for id, v := range answers {
			if err := e.RecordAnswer(id, v); err != nil {
				t.Fatal(err)
			}
		}
		if err := e.AdvanceSection(); err != nil {
			t.Fatal(err)
		}
		r, _ := e.Result()
		return r
	}

	plain, shuffled := run(false), run(true)
	if plain.Score != shuffled.Score || plain.Correct != shuffled.Correct {
		t.Errorf("score differs with shuffle: %+v vs %+v", plain, shuffled)
	}
	for id := range answers {
		if plain.PerQuestion[id] != shuffled.PerQuestion[id] {
			t.Errorf("question %s correctness differs with shuffle", id)
		}
	}
}

func TestFlatTestNormalizedToOneSection(t *testing.T) {
	flat := quiz.Test{
		ID:        "flat",
		Settings:  quiz.Settings{Title: "Flat", DurationMin: 30},
		Questions: []quiz.Question{mcq("q1", 0)},
	}
	e := New(flat)
	if err := e.Start(student()); err != nil {
		t.Fatal(err)
	}
	if got := e.Attempt().RemainingSec; got != 30*60 {
		t.Errorf("remaining = %d, want duration-derived limit", got)
	}
}
