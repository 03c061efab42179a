package practice

import "fmt"

// State is the phase of a practice session's turn-taking state machine.
type State int

const (
	// Idle means no practice run is in progress.
	Idle State = iota

	// PlayingRemoteLine means the other speaker's line is being synthesised
	// and played back.
	PlayingRemoteLine

	// AwaitingUserSpeech means the current line belongs to the learner and
	// the engine is waiting for them to start recording.
	AwaitingUserSpeech

	// Recording means a recognition session is capturing the learner's speech.
	Recording

	// ScoringResult means a transcript has been scored and the result is on
	// display; the session waits for an explicit advance.
	ScoringResult

	// Complete means every line has resolved and the run is finished.
	Complete
)

var stateNames = [...]string{
	Idle:               "Idle",
	PlayingRemoteLine:  "PlayingRemoteLine",
	AwaitingUserSpeech: "AwaitingUserSpeech",
	Recording:          "Recording",
	ScoringResult:      "ScoringResult",
	Complete:           "Complete",
}

// String returns the state name; for out-of-range values it returns "State(n)".
func (s State) String() string {
	if s >= Idle && s <= Complete {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler so states serialise by name
// in WebSocket payloads.
func (s State) MarshalText() ([]byte, error) {
	if s < Idle || s > Complete {
		return nil, fmt.Errorf("practice: invalid state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}
