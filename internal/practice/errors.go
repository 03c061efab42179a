package practice

import "errors"

var (
	// ErrNoLines is returned when a session is started with an empty script.
	ErrNoLines = errors.New("practice: dialogue has no lines")

	// ErrActive is returned when Start is called on a session that is
	// already running.
	ErrActive = errors.New("practice: session already active")

	// ErrInvalidTransition is returned when an operation is not legal in the
	// session's current state.
	ErrInvalidTransition = errors.New("practice: invalid transition")

	// ErrRecognitionUnavailable is returned when the recognition capability
	// cannot provide a session.
	ErrRecognitionUnavailable = errors.New("practice: speech recognition unavailable")
)
