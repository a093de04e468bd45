// Package monitor is the boundary to the external proctoring subsystem. The
// session engine never talks to screen capture or tab-visibility machinery;
// it only consumes violation signals delivered through here.
package monitor

import (
	"context"
	"time"
)

// Signal reports one suspected integrity breach on an attempt.
type Signal struct {
	AttemptID string    `json:"attempt_id"`
	Kind      string    `json:"kind"` // e.g. "tab_hidden", "recording_stopped"
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// KindMonitorFailure marks the fail-closed case: the monitor itself could not
// start or stay alive, which counts as a violation.
const KindMonitorFailure = "monitor_failure"

// Source produces signals. Its channel closing with a non-nil Err means the
// monitor died, not that supervision ended cleanly.
type Source interface {
	Signals() <-chan Signal
	Err() error
}

// Pump forwards every signal from src to report until the source closes or
// ctx is done. A source failure is fail-closed: it is reported as a violation
// on the supervised attempt, forcing the same aborted finalization path as an
// explicit cheating signal.
func Pump(ctx context.Context, attemptID string, src Source, report func(Signal)) {
	for {
		select {
		case sig, ok := <-src.Signals():
			if !ok {
				if err := src.Err(); err != nil {
					report(Signal{
						AttemptID: attemptID,
						Kind:      KindMonitorFailure,
						Detail:    err.Error(),
						At:        time.Now(),
					})
				}
				return
			}
			if sig.AttemptID == "" {
				sig.AttemptID = attemptID
			}
			report(sig)
		case <-ctx.Done():
			return
		}
	}
}
