package practice

import (
	"context"

	"github.com/nvail/echodrill/internal/speech"
)

// Synthesizer is the speech-synthesis collaborator. SynthesizeAndPlay blocks
// until playback of the synthesised audio has completed (or failed), mirroring
// how the practice engine must not advance past a line until its audio has
// fully resolved.
//
// Implementations must be safe for concurrent use.
type Synthesizer interface {
	// SynthesizeAndPlay synthesises text in the given speaker's voice, plays
	// it, and returns once playback has finished. A cancelled ctx or a
	// synthesis/playback failure is reported as an error.
	SynthesizeAndPlay(ctx context.Context, text, speaker string) error

	// Stop cancels any in-flight playback. It is idempotent and safe to call
	// when nothing is playing.
	Stop()
}

// RecognitionEventKind discriminates recognition events.
type RecognitionEventKind int

const (
	// RecognitionInterim carries a provisional transcript that may be
	// superseded by a final one.
	RecognitionInterim RecognitionEventKind = iota

	// RecognitionFinal carries the authoritative transcript for the attempt.
	RecognitionFinal

	// RecognitionError carries a recognition error code.
	RecognitionError

	// RecognitionEnd signals that the recognition session has terminated and
	// its capability slot is released. Every session emits it exactly once,
	// last.
	RecognitionEnd
)

// Recognition error codes, matching the Web Speech API error names the
// browser client forwards.
const (
	ErrCodeNoSpeech   = "no-speech"
	ErrCodeAborted    = "aborted"
	ErrCodeNotAllowed = "not-allowed"
)

// RecognitionEvent is one event from a recognition session.
type RecognitionEvent struct {
	Kind       RecognitionEventKind
	Transcript string // set for Interim and Final
	Code       string // set for Error
}

// Recognizer is one live speech-recognition session. The engine holds at
// most one at any instant.
//
// Events must deliver all session events and close after RecognitionEnd.
// Stop requests termination; it is not guaranteed to produce a final
// transcript, and the end signal may arrive late or never on some platforms —
// the engine guards against both.
type Recognizer interface {
	// Start begins capturing. Returns an error if the capability is
	// unavailable.
	Start() error

	// Stop requests the session to terminate. Idempotent.
	Stop()

	// Events returns the session's event stream. The channel is closed once
	// the session has ended.
	Events() <-chan RecognitionEvent
}

// RecognizerFactory creates a fresh recognition session per recording
// attempt. It returns an error when the capability is missing or denied.
type RecognizerFactory func() (Recognizer, error)

// NoticeKind classifies notifications for the UI toast surface.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notifier is the fire-and-forget message surface (toasts). Implementations
// must not block and must not call back into the session.
type Notifier interface {
	Notify(message string, kind NoticeKind)
}

// EventKind discriminates session events published to the UI transport.
type EventKind int

const (
	// EventState reports a state-machine transition.
	EventState EventKind = iota

	// EventInterim carries a live interim transcript while recording.
	EventInterim

	// EventScore carries the comparison result for a scored attempt.
	EventScore

	// EventFault reports a surfaced failure (synthesis, recognition,
	// timeout) together with the affordance the learner has.
	EventFault
)

// FaultKind classifies surfaced failures per the session's error taxonomy.
type FaultKind int

const (
	// FaultSynthesis is a synthesis or playback failure; the learner can
	// retry the line or skip it manually.
	FaultSynthesis FaultKind = iota

	// FaultPermission means microphone permission was denied.
	FaultPermission

	// FaultRecognition is any other non-transient recognition error.
	FaultRecognition

	// FaultNoSpeech means a recording ended with no usable transcript.
	FaultNoSpeech

	// FaultTimeout means the recording hit its hard time limit.
	FaultTimeout
)

// Event is one update published by a session. The Kind field selects which
// of the payload fields are meaningful.
type Event struct {
	Kind EventKind

	// State payload.
	State     State
	LineIndex int
	Line      *Line

	// Interim payload.
	Transcript string

	// Score payload.
	Result *speech.Result

	// Fault payload.
	Fault   FaultKind
	Message string
}

// EventSink receives session events in transition order. Publish is invoked
// synchronously from inside the session; implementations must be fast,
// non-blocking, and must not call back into the session.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ev Event) { f(ev) }
