package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dummy7679/testcraft/internal/quiz"
	syncx "github.com/dummy7679/testcraft/internal/sync"
)

// EventSink receives attempt lifecycle events. *syncx.EventRepo satisfies it.
type EventSink interface {
	Append(ctx context.Context, e syncx.Event) error
}

// Manager owns the live sessions of this process: one Runner per in-progress
// attempt, keyed by attempt id. Finished attempts are served from the store.
type Manager struct {
	store     quiz.Store
	events    EventSink // optional
	tickEvery time.Duration
	threshold int

	mu   sync.Mutex
	live map[string]*liveSession
}

// liveSession pairs a runner with the goroutine that persists its snapshots.
type liveSession struct {
	runner  *Runner
	persist *persister
}

type ManagerOption func(*Manager)

func WithTickInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.tickEvery = d }
}

func WithThreshold(n int) ManagerOption {
	return func(m *Manager) { m.threshold = n }
}

func WithEventSink(s EventSink) ManagerOption {
	return func(m *Manager) { m.events = s }
}

func NewManager(store quiz.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		tickEvery: time.Second,
		threshold: 1,
		live:      map[string]*liveSession{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Begin loads the test, starts a fresh attempt and registers its runner.
func (m *Manager) Begin(ctx context.Context, testID string, student quiz.StudentIdentity) (quiz.Attempt, error) {
	t, err := m.store.GetTest(ctx, testID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	eng := New(t, WithViolationThreshold(m.threshold))
	if err := eng.Start(student); err != nil {
		return quiz.Attempt{}, err
	}
	a := eng.Attempt()
	eng.ClearDirty() // the state Start produced is saved right below

	// Initial save is synchronous so the attempt exists before we answer.
	// The runner is registered only afterwards: a failed save must not leave
	// a live session for an attempt the caller never received.
	if err := m.store.PutAttempt(ctx, a); err != nil {
		return quiz.Attempt{}, err
	}

	p := m.newPersister()
	ls := &liveSession{runner: NewRunner(eng, m.tickEvery, p.offer), persist: p}
	m.mu.Lock()
	m.live[a.ID] = ls
	m.mu.Unlock()
	ls.runner.Start()
	m.logEvent(a.ID, syncx.EventAttemptStarted, map[string]any{
		"test_id": testID,
		"student": student.ExternalID,
	})
	return a, nil
}

// Answer records a submitted value on the running attempt.
func (m *Manager) Answer(ctx context.Context, attemptID, questionID string, value any) (quiz.Attempt, error) {
	return m.apply(ctx, attemptID, func(e *Engine) error {
		return e.RecordAnswer(questionID, value)
	})
}

// Advance moves past the current section (or submits, on the last one).
func (m *Manager) Advance(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	a, err := m.apply(ctx, attemptID, func(e *Engine) error {
		if err := e.AdvanceSection(); err != nil {
			return err
		}
		if e.Phase() == PhaseTransition {
			m.logEvent(attemptID, syncx.EventSectionAdvanced, map[string]any{
				"section": e.Attempt().CurrentSection,
			})
		}
		return nil
	})
	return a, err
}

// Continue acknowledges a section transition.
func (m *Manager) Continue(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	return m.apply(ctx, attemptID, func(e *Engine) error { return e.Continue() })
}

// Violation delivers an integrity signal. Signals against an attempt that is
// already terminal (or gone) are discarded: the forced-submission path must
// stay idempotent under duplicate delivery.
func (m *Manager) Violation(ctx context.Context, attemptID, reason string) (quiz.Attempt, error) {
	r := m.runner(attemptID)
	if r == nil {
		return m.store.GetAttempt(ctx, attemptID)
	}
	m.logEvent(attemptID, syncx.EventViolationReported, map[string]any{"reason": reason})
	a, err := m.apply(ctx, attemptID, func(e *Engine) error {
		e.ReportViolation()
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return m.store.GetAttempt(ctx, attemptID)
	}
	return a, err
}

// Get returns the live attempt if running, otherwise the persisted one.
func (m *Manager) Get(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	if r := m.runner(attemptID); r != nil {
		var a quiz.Attempt
		if err := r.Do(func(e *Engine) error { a = e.Attempt(); return nil }); err == nil {
			return a, nil
		}
	}
	return m.store.GetAttempt(ctx, attemptID)
}

// DisplayOrder returns the running attempt's current section order.
func (m *Manager) DisplayOrder(attemptID string) ([]string, error) {
	r := m.runner(attemptID)
	if r == nil {
		return nil, quiz.ErrAttemptNotFound
	}
	var order []string
	err := r.Do(func(e *Engine) error { order = e.DisplayOrder(); return nil })
	return order, err
}

// ResultFor returns the result of a finalized attempt.
func (m *Manager) ResultFor(ctx context.Context, attemptID string) (quiz.Result, error) {
	if r := m.runner(attemptID); r != nil {
		var res quiz.Result
		var ok bool
		if err := r.Do(func(e *Engine) error { res, ok = e.Result(); return nil }); err == nil && ok {
			return res, nil
		}
	}
	return m.store.GetResult(ctx, attemptID)
}

func (m *Manager) apply(ctx context.Context, attemptID string, fn func(*Engine) error) (quiz.Attempt, error) {
	r := m.runner(attemptID)
	if r == nil {
		// No live session: distinguish "finished" from "never existed".
		a, err := m.store.GetAttempt(ctx, attemptID)
		if err != nil {
			return quiz.Attempt{}, err
		}
		if a.Status.Terminal() {
			return a, ErrInvalidState
		}
		return a, ErrClosed
	}
	var a quiz.Attempt
	var phase Phase
	err := r.Do(func(e *Engine) error {
		opErr := fn(e)
		a = e.Attempt()
		phase = e.Phase()
		return opErr
	})
	if phase == PhaseTerminal {
		m.retire(attemptID, a)
	}
	return a, err
}

func (m *Manager) runner(attemptID string) *Runner {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ls := m.live[attemptID]; ls != nil {
		return ls.runner
	}
	return nil
}

// retire stops and forgets the runner of a finalized attempt.
func (m *Manager) retire(attemptID string, a quiz.Attempt) {
	m.mu.Lock()
	ls := m.live[attemptID]
	delete(m.live, attemptID)
	m.mu.Unlock()
	if ls == nil {
		return // already retired
	}
	// Stop the runner before the persister so the terminal snapshot it
	// flushed is drained, not dropped.
	go func() {
		ls.runner.Stop()
		ls.persist.Stop()
	}()
	typ := syncx.EventAttemptSubmitted
	if a.Status == quiz.StatusAborted {
		typ = syncx.EventAttemptAborted
	}
	m.logEvent(attemptID, typ, map[string]any{"violations": a.ViolationCount})
}

// persister serializes one attempt's saves. Snapshots commit in the order the
// engine produced them, so a stale in-progress state can never overwrite the
// terminal one; a snapshot still waiting is replaced by a newer one rather
// than queued, since each snapshot carries the full state.
type persister struct {
	m    *Manager
	ch   chan Snapshot
	stop chan struct{}
	done chan struct{}
}

func (m *Manager) newPersister() *persister {
	p := &persister{
		m:    m,
		ch:   make(chan Snapshot, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.loop()
	return p
}

// offer is the runner's flush hook. It never blocks: if a snapshot is still
// pending it is swapped out for this newer one.
func (p *persister) offer(s Snapshot) {
	for {
		select {
		case p.ch <- s:
			return
		default:
		}
		select {
		case <-p.ch: // discard the superseded snapshot
		default:
		}
	}
}

func (p *persister) loop() {
	defer close(p.done)
	for {
		select {
		case s := <-p.ch:
			p.m.save(s)
		case <-p.stop:
			// drain the final snapshot, if any
			select {
			case s := <-p.ch:
				p.m.save(s)
			default:
			}
			return
		}
	}
}

func (p *persister) Stop() {
	close(p.stop)
	<-p.done
}

// save writes one snapshot. A failed write is logged and repaired implicitly
// by the next flush; a failed terminal write has no later flush, so the
// store keeps the last in-progress state and the attempt reads as abandoned.
func (m *Manager) save(s Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.PutAttempt(ctx, s.Attempt); err != nil {
		log.Printf("session: save attempt %s: %v", s.Attempt.ID, err)
	}
	if s.Result != nil {
		if err := m.store.PutResult(ctx, *s.Result); err != nil {
			log.Printf("session: save result %s: %v", s.Attempt.ID, err)
		}
	}
	if s.Phase == PhaseTerminal {
		m.retireIfLive(s.Attempt)
	}
}

// retireIfLive covers finalization by timer tick, which bypasses apply.
func (m *Manager) retireIfLive(a quiz.Attempt) {
	m.mu.Lock()
	_, ok := m.live[a.ID]
	m.mu.Unlock()
	if ok {
		m.retire(a.ID, a)
	}
}

func (m *Manager) logEvent(attemptID, typ string, data map[string]any) {
	if m.events == nil {
		return
	}
	buf, _ := json.Marshal(data)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.events.Append(ctx, syncx.Event{Type: typ, Key: attemptID, DataJSON: string(buf)}); err != nil {
		log.Printf("session: event %s for %s: %v", typ, attemptID, err)
	}
}

// Shutdown stops every live runner. In-progress attempts stay in_progress in
// the store; an abandoned session is the storage owner's problem, not the
// engine's.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*liveSession, 0, len(m.live))
	for id, ls := range m.live {
		sessions = append(sessions, ls)
		delete(m.live, id)
	}
	m.mu.Unlock()
	for _, ls := range sessions {
		ls.runner.Stop()
		ls.persist.Stop()
	}
}
