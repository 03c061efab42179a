// Package mock provides test doubles for the practice session's
// collaborators: a call-recording synthesizer, a scriptable recognition
// session, and a notifier/event sink pair that capture what the engine
// published.
package mock

import (
	"context"
	"sync"

	"github.com/nvail/echodrill/internal/practice"
)

// PlayCall records one SynthesizeAndPlay invocation.
type PlayCall struct {
	Text    string
	Speaker string
}

// Synthesizer is a call-recording practice.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// PlayErr, when non-nil, is returned by every SynthesizeAndPlay call.
	PlayErr error

	// Block, when non-nil, makes SynthesizeAndPlay wait until the channel is
	// closed (or ctx is cancelled), simulating long playback.
	Block chan struct{}

	playCalls []PlayCall
	stopCalls int
}

// SynthesizeAndPlay records the call and returns PlayErr.
func (m *Synthesizer) SynthesizeAndPlay(ctx context.Context, text, speaker string) error {
	m.mu.Lock()
	m.playCalls = append(m.playCalls, PlayCall{Text: text, Speaker: speaker})
	block := m.Block
	err := m.PlayErr
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// SetPlayErr safely swaps the injected playback error mid-test.
func (m *Synthesizer) SetPlayErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayErr = err
}

// Stop records the call.
func (m *Synthesizer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

// PlayCalls returns a snapshot of recorded playback calls.
func (m *Synthesizer) PlayCalls() []PlayCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PlayCall, len(m.playCalls))
	copy(out, m.playCalls)
	return out
}

// StopCalls returns how many times Stop was invoked.
func (m *Synthesizer) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

// Recognizer is a scriptable practice.Recognizer. Tests emit events through
// the Emit* helpers; End closes the event channel the way a real session
// releases its capability.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, when non-nil, is returned by Start.
	StartErr error

	// SilentStop suppresses the end signal on Stop, simulating a platform
	// whose sessions never acknowledge termination.
	SilentStop bool

	events    chan practice.RecognitionEvent
	started   bool
	stopCalls int
	ended     bool
}

// NewRecognizer returns a Recognizer with a buffered event stream.
func NewRecognizer() *Recognizer {
	return &Recognizer{events: make(chan practice.RecognitionEvent, 16)}
}

// Start implements practice.Recognizer.
func (m *Recognizer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.started = true
	return nil
}

// Stop records the call and, unless SilentStop is set, emits the end signal.
func (m *Recognizer) Stop() {
	m.mu.Lock()
	m.stopCalls++
	silent := m.SilentStop
	m.mu.Unlock()
	if !silent {
		m.EmitEnd()
	}
}

// Events implements practice.Recognizer.
func (m *Recognizer) Events() <-chan practice.RecognitionEvent {
	return m.events
}

// EmitInterim delivers an interim transcript.
func (m *Recognizer) EmitInterim(text string) {
	m.emit(practice.RecognitionEvent{Kind: practice.RecognitionInterim, Transcript: text})
}

// EmitFinal delivers a final transcript.
func (m *Recognizer) EmitFinal(text string) {
	m.emit(practice.RecognitionEvent{Kind: practice.RecognitionFinal, Transcript: text})
}

// EmitError delivers a recognition error code.
func (m *Recognizer) EmitError(code string) {
	m.emit(practice.RecognitionEvent{Kind: practice.RecognitionError, Code: code})
}

// EmitEnd delivers the end signal and closes the stream. Safe to call once.
func (m *Recognizer) EmitEnd() {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return
	}
	m.ended = true
	m.mu.Unlock()
	m.events <- practice.RecognitionEvent{Kind: practice.RecognitionEnd}
	close(m.events)
}

func (m *Recognizer) emit(ev practice.RecognitionEvent) {
	m.mu.Lock()
	ended := m.ended
	m.mu.Unlock()
	if !ended {
		m.events <- ev
	}
}

// StopCalls returns how many times Stop was invoked.
func (m *Recognizer) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

// Started reports whether Start succeeded.
func (m *Recognizer) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// RecognizerFactory hands out prepared Recognizers in order and counts how
// many sessions were created.
type RecognizerFactory struct {
	mu      sync.Mutex
	queue   []*Recognizer
	created int

	// Err, when non-nil, is returned instead of a session.
	Err error
}

// NewRecognizerFactory queues the given sessions for hand-out.
func NewRecognizerFactory(sessions ...*Recognizer) *RecognizerFactory {
	return &RecognizerFactory{queue: sessions}
}

// Next implements practice.RecognizerFactory.
func (f *RecognizerFactory) Next() (practice.Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.queue) == 0 {
		r := NewRecognizer()
		f.created++
		return r, nil
	}
	r := f.queue[0]
	f.queue = f.queue[1:]
	f.created++
	return r, nil
}

// Created returns how many sessions the factory handed out.
func (f *RecognizerFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Notice records one Notify invocation.
type Notice struct {
	Message string
	Kind    practice.NoticeKind
}

// Notifier is a call-recording practice.Notifier.
type Notifier struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify records the message.
func (m *Notifier) Notify(message string, kind practice.NoticeKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, Notice{Message: message, Kind: kind})
}

// Notices returns a snapshot of recorded notifications.
func (m *Notifier) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notice, len(m.notices))
	copy(out, m.notices)
	return out
}

// Sink collects published session events.
type Sink struct {
	mu     sync.Mutex
	events []practice.Event
}

// Publish implements practice.EventSink.
func (m *Sink) Publish(ev practice.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a snapshot of everything published so far.
func (m *Sink) Events() []practice.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]practice.Event, len(m.events))
	copy(out, m.events)
	return out
}

// States returns the sequence of states from published state events.
func (m *Sink) States() []practice.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []practice.State
	for _, ev := range m.events {
		if ev.Kind == practice.EventState {
			out = append(out, ev.State)
		}
	}
	return out
}

// Faults returns the published fault events.
func (m *Sink) Faults() []practice.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []practice.Event
	for _, ev := range m.events {
		if ev.Kind == practice.EventFault {
			out = append(out, ev)
		}
	}
	return out
}
