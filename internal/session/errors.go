package session

import "errors"

var (
	// ErrInvalidState: the operation is not legal in the engine's current
	// state. Fatal to the call, not to the session.
	ErrInvalidState = errors.New("invalid session state")
	// ErrUnknownQuestion: the question id is not part of the active section.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrClosed: the serialized event queue for this attempt has shut down.
	ErrClosed = errors.New("session closed")
)
