package session

import "time"

// Runner serializes all events for one engine: handler calls, timer ticks and
// violation signals go through a single queue and are applied in arrival
// order. The timer and the violation monitor never touch engine state
// directly, which is what makes "first finalizing event wins" hold.
type Runner struct {
	eng    *Engine
	events chan func()
	stop   chan struct{}
	done   chan struct{}

	tickEvery time.Duration
	flush     func(Snapshot) // fire-and-forget persistence hook
}

// NewRunner wires an engine to its event queue. flush, if non-nil, receives a
// snapshot after every state-changing event; it must not block.
func NewRunner(eng *Engine, tickEvery time.Duration, flush func(Snapshot)) *Runner {
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	return &Runner{
		eng:       eng,
		events:    make(chan func(), 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		tickEvery: tickEvery,
		flush:     flush,
	}
}

// Start launches the consuming goroutine and the timer driver.
func (r *Runner) Start() {
	go r.loop()
}

func (r *Runner) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.tickEvery)
	defer ticker.Stop()
	delta := int(r.tickEvery / time.Second)
	if delta < 1 {
		delta = 1
	}
	for {
		select {
		case fn := <-r.events:
			fn()
			r.flushIfDirty()
		case <-ticker.C:
			r.eng.Tick(delta)
			r.flushIfDirty()
		case <-r.stop:
			return
		}
	}
}

func (r *Runner) flushIfDirty() {
	if !r.eng.Dirty() {
		return
	}
	snap := r.eng.Snapshot()
	r.eng.ClearDirty()
	if r.flush != nil {
		r.flush(snap)
	}
}

// Do applies fn on the engine from inside the queue and waits for it.
func (r *Runner) Do(fn func(*Engine) error) error {
	errc := make(chan error, 1)
	select {
	case r.events <- func() { errc <- fn(r.eng) }:
	case <-r.done:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-r.done:
		return ErrClosed
	}
}

// Stop shuts the queue down. Pending events are discarded; the attempt's
// persisted state is whatever the last flush wrote.
func (r *Runner) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}
