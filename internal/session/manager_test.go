package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dummy7679/testcraft/internal/quiz"
	syncx "github.com/dummy7679/testcraft/internal/sync"
)

type memorySink struct {
	mu     sync.Mutex
	events []syncx.Event
}

func (s *memorySink) Append(_ context.Context, e syncx.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memorySink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func seededStore(t *testing.T, test quiz.Test) quiz.Store {
	t.Helper()
	store := quiz.NewInMemoryStore()
	if err := store.PutTest(context.Background(), quiz.Normalize(test)); err != nil {
		t.Fatal(err)
	}
	return store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestManagerFullFlow(t *testing.T) {
	store := seededStore(t, oneSectionTest(false, mcq("q1", 1), mcq("q2", 2)))
	sink := &memorySink{}
	// Long tick so the wall clock never interferes with the scripted flow.
	m := NewManager(store, WithTickInterval(time.Hour), WithEventSink(sink))
	defer m.Shutdown()
	ctx := context.Background()

	a, err := m.Begin(ctx, "t1", student())
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != quiz.StatusInProgress {
		t.Fatalf("status = %s", a.Status)
	}

	if _, err := m.Answer(ctx, a.ID, "q1", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Answer(ctx, a.ID, "zzz", 1); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("unknown question: %v", err)
	}

	done, err := m.Advance(ctx, a.ID) // single section -> submit
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != quiz.StatusSubmitted {
		t.Fatalf("status = %s", done.Status)
	}

	// Persistence is fire-and-forget; wait for it to land.
	waitFor(t, func() bool {
		_, err := store.GetResult(ctx, a.ID)
		return err == nil
	})
	res, err := m.ResultFor(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 50 {
		t.Errorf("score = %d, want 50", res.Score)
	}

	// Post-terminal answer is rejected without corrupting anything.
	if _, err := m.Answer(ctx, a.ID, "q1", 0); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("post-terminal answer: %v", err)
	}

	waitFor(t, func() bool {
		types := sink.types()
		return len(types) >= 2 && types[len(types)-1] == syncx.EventAttemptSubmitted
	})
}

func TestManagerTickDrivesTimeout(t *testing.T) {
	store := seededStore(t, oneSectionTest(false, mcq("q1", 1)))
	m := NewManager(store, WithTickInterval(10*time.Millisecond))
	defer m.Shutdown()
	ctx := context.Background()

	// Each 10ms tick burns one simulated second, so the 1-minute section
	// times out in well under a second of wall clock.
	a, err := m.Begin(ctx, "t1", student())
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		got, err := m.Get(ctx, a.ID)
		return err == nil && got.Status == quiz.StatusSubmitted
	})
	waitFor(t, func() bool {
		_, err := store.GetResult(ctx, a.ID)
		return err == nil
	})
}

func TestManagerDuplicateViolationsNoOp(t *testing.T) {
	store := seededStore(t, oneSectionTest(false, mcq("q1", 1)))
	m := NewManager(store, WithTickInterval(time.Hour))
	defer m.Shutdown()
	ctx := context.Background()

	a, err := m.Begin(ctx, "t1", student())
	if err != nil {
		t.Fatal(err)
	}
	first, err := m.Violation(ctx, a.ID, "tab switch")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != quiz.StatusAborted || first.ViolationCount != 1 {
		t.Fatalf("attempt = %+v", first)
	}
	waitFor(t, func() bool {
		got, err := store.GetAttempt(ctx, a.ID)
		return err == nil && got.Status == quiz.StatusAborted
	})

	for i := 0; i < 3; i++ {
		again, err := m.Violation(ctx, a.ID, "replay")
		if err != nil {
			t.Fatal(err)
		}
		if again.ViolationCount != 1 || again.Status != quiz.StatusAborted {
			t.Fatalf("replay %d mutated attempt: %+v", i, again)
		}
	}
}

// laggyStore delays the first in-progress save that carries answers. Saves
// for one attempt must still commit in engine order, so the terminal state
// lands last no matter how slow an earlier write is.
type laggyStore struct {
	quiz.Store
	mu     sync.Mutex
	lagged bool
	writes []quiz.AttemptStatus
}

func (s *laggyStore) PutAttempt(ctx context.Context, a quiz.Attempt) error {
	s.mu.Lock()
	lag := !s.lagged && a.Status == quiz.StatusInProgress && len(a.Answers) > 0
	if lag {
		s.lagged = true
	}
	s.mu.Unlock()
	if lag {
		time.Sleep(50 * time.Millisecond)
	}
	err := s.Store.PutAttempt(ctx, a)
	s.mu.Lock()
	s.writes = append(s.writes, a.Status)
	s.mu.Unlock()
	return err
}

func (s *laggyStore) statuses() []quiz.AttemptStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]quiz.AttemptStatus(nil), s.writes...)
}

func TestSlowSaveCannotRollBackTerminalState(t *testing.T) {
	store := &laggyStore{Store: seededStore(t, oneSectionTest(false, mcq("q1", 1)))}
	m := NewManager(store, WithTickInterval(time.Hour))
	defer m.Shutdown()
	ctx := context.Background()

	a, err := m.Begin(ctx, "t1", student())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Answer(ctx, a.ID, "q1", 1); err != nil {
		t.Fatal(err)
	}
	// The answer's save is still stalled when the abort finalizes.
	if _, err := m.Violation(ctx, a.ID, "tab switch"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		got, err := store.GetAttempt(ctx, a.ID)
		return err == nil && got.Status == quiz.StatusAborted
	})
	// Give any straggling write time to land, then check it did not regress.
	time.Sleep(100 * time.Millisecond)
	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != quiz.StatusAborted {
		t.Fatalf("persisted status = %q after finalization", got.Status)
	}
	seenTerminal := false
	for _, st := range store.statuses() {
		if seenTerminal && !st.Terminal() {
			t.Fatalf("non-terminal save after terminal one: %v", store.statuses())
		}
		if st.Terminal() {
			seenTerminal = true
		}
	}
	if !seenTerminal {
		t.Fatal("terminal state never persisted")
	}
}

type failingPutStore struct {
	quiz.Store
}

func (s *failingPutStore) PutAttempt(ctx context.Context, a quiz.Attempt) error {
	return errors.New("disk full")
}

func TestBeginFailedSaveLeavesNoLiveSession(t *testing.T) {
	store := &failingPutStore{Store: seededStore(t, oneSectionTest(false, mcq("q1", 1)))}
	m := NewManager(store, WithTickInterval(time.Hour))
	defer m.Shutdown()

	if _, err := m.Begin(context.Background(), "t1", student()); err == nil {
		t.Fatal("begin should surface the failed save")
	}
	m.mu.Lock()
	n := len(m.live)
	m.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d live sessions registered for an attempt the caller never received", n)
	}
}

func TestManagerUnknownAttempt(t *testing.T) {
	m := NewManager(quiz.NewInMemoryStore())
	defer m.Shutdown()
	if _, err := m.Answer(context.Background(), "ghost", "q1", 0); !errors.Is(err, quiz.ErrAttemptNotFound) {
		t.Fatalf("err = %v", err)
	}
}
