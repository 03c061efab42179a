// Package practice implements the dialogue turn-taking engine: a state
// machine that walks a scripted two-speaker dialogue line by line,
// alternating synthesised playback for the other speaker's lines with
// listen-and-score cycles for the learner's lines.
//
// The engine owns the lifecycle of at most one live recognition session at a
// time. Starting a new recording while a previous session has not yet
// signalled its end defers the new start until that signal arrives, with a
// bounded forced start as a fallback so a silent session can never lock the
// learner out. Late events from superseded recognition or playback attempts
// are discarded via per-attempt generation tokens.
//
// All exported methods are safe for concurrent use.
package practice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nvail/echodrill/internal/speech"
)

// Default bounds for the recording lifecycle.
const (
	// DefaultRecordTimeout is the hard limit on one recording attempt.
	// When it elapses without a result the attempt resolves as "no speech".
	DefaultRecordTimeout = 20 * time.Second

	// DefaultHandoffTimeout bounds how long a deferred recording start waits
	// for the previous recognition session's end signal before forcing the
	// new session to start.
	DefaultHandoffTimeout = 2 * time.Second
)

// Line is one ordered utterance of a dialogue script. Lines are immutable
// once the session is constructed.
type Line struct {
	Speaker     string `json:"speaker"`
	Content     string `json:"content"`
	Translation string `json:"translation"`
	Order       int    `json:"order"`
}

// Config holds the collaborators and tuning for a Session.
type Config struct {
	// Lines is the dialogue script in playback order.
	Lines []Line

	// Synthesizer plays the other speaker's lines and replays.
	Synthesizer Synthesizer

	// Recognizer creates one recognition session per recording attempt.
	Recognizer RecognizerFactory

	// Notifier receives fire-and-forget user messages.
	Notifier Notifier

	// Sink receives session events in transition order.
	Sink EventSink

	// RecordTimeout overrides DefaultRecordTimeout when positive.
	RecordTimeout time.Duration

	// HandoffTimeout overrides DefaultHandoffTimeout when positive.
	HandoffTimeout time.Duration
}

// Session drives one practice run over a dialogue script. Construct with
// NewSession, begin with Start, and always Close when the view goes away so
// no playback or recognition handle is left dangling.
type Session struct {
	mu    sync.Mutex
	lines []Line
	role  string
	idx   int
	state State

	synth         Synthesizer
	newRecognizer RecognizerFactory
	notifier      Notifier
	sink          EventSink

	ctx    context.Context
	cancel context.CancelFunc

	// Recognition lifecycle. rec is the single live handle; recGen is
	// bumped whenever a new attempt starts so late events from older
	// sessions are provably ignored.
	rec         Recognizer
	recGen      uint64
	gotResult   bool
	lastInterim string
	deferred    bool

	// playGen invalidates in-flight playback completions after a skip or
	// close.
	playGen uint64

	recordTimer  *time.Timer
	handoffTimer *time.Timer

	recordTimeout  time.Duration
	handoffTimeout time.Duration
}

// NewSession creates a session over the given script. The config must carry
// all four collaborators.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Synthesizer == nil || cfg.Recognizer == nil || cfg.Notifier == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("practice: all collaborators must be set")
	}

	s := &Session{
		lines:          cfg.Lines,
		state:          Idle,
		synth:          cfg.Synthesizer,
		newRecognizer:  cfg.Recognizer,
		notifier:       cfg.Notifier,
		sink:           cfg.Sink,
		recordTimeout:  cfg.RecordTimeout,
		handoffTimeout: cfg.HandoffTimeout,
	}
	if s.recordTimeout <= 0 {
		s.recordTimeout = DefaultRecordTimeout
	}
	if s.handoffTimeout <= 0 {
		s.handoffTimeout = DefaultHandoffTimeout
	}
	return s, nil
}

// Start begins the run with the learner playing the given speaker role.
// Line 0 dispatches immediately: the session enters PlayingRemoteLine or
// AwaitingUserSpeech depending on who speaks first.
func (s *Session) Start(ctx context.Context, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return fmt.Errorf("%w (state %s)", ErrActive, s.state)
	}
	if len(s.lines) == 0 {
		return ErrNoLines
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.role = role
	s.idx = 0
	s.dispatchLocked()
	return nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LineIndex returns the current position in the script.
func (s *Session) LineIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// CurrentLine returns the line at the current position, or false when the
// session is idle, complete, or past the end.
func (s *Session) CurrentLine() (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle || s.idx >= len(s.lines) {
		return Line{}, false
	}
	return s.lines[s.idx], true
}

// Active reports whether a run is in progress (neither idle nor complete).
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Idle && s.state != Complete
}

// StartRecording begins a recording attempt for the learner's current line.
// Legal in AwaitingUserSpeech and in ScoringResult (retrying a scored line).
//
// If the previous recognition session has not yet signalled its end, the new
// session's start is deferred to that signal, bounded by the hand-off
// timeout; at no instant are two recognition sessions live.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case AwaitingUserSpeech, ScoringResult:
	default:
		return fmt.Errorf("%w: cannot record in state %s", ErrInvalidTransition, s.state)
	}

	s.gotResult = false
	s.lastInterim = ""
	s.setStateLocked(Recording)

	if s.rec != nil {
		// The old session is still live. Request its termination and defer
		// our start to its end signal, with a bounded forced start in case
		// that signal never comes.
		s.deferred = true
		old := s.rec
		s.armHandoffTimerLocked()
		old.Stop()
		return nil
	}
	return s.startRecognizerLocked()
}

// StopRecording is the learner's manual stop. When only an interim
// transcript exists, it is promoted to the attempt's final result — some
// platforms never deliver a true final after a manual stop. With no interim
// the session keeps waiting for the end signal or the hard timeout.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording {
		return fmt.Errorf("%w: cannot stop recording in state %s", ErrInvalidTransition, s.state)
	}

	if s.lastInterim != "" {
		transcript := s.lastInterim
		s.lastInterim = ""
		if s.rec != nil {
			s.rec.Stop()
		}
		s.finishAttemptLocked(transcript)
		return nil
	}

	if s.rec != nil {
		s.rec.Stop()
	}
	return nil
}

// Next advances to the following line. It is the explicit advance out of
// ScoringResult, the skip affordance after a playback failure, and the
// manual skip of the learner's own line.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case PlayingRemoteLine, AwaitingUserSpeech, ScoringResult:
	default:
		return fmt.Errorf("%w: cannot advance in state %s", ErrInvalidTransition, s.state)
	}

	s.synth.Stop()
	s.playGen++ // a completion from the skipped playback must not double-advance
	s.idx++
	s.dispatchLocked()
	return nil
}

// Replay re-plays the current line's audio in the voice of whichever speaker
// owns the line, without touching the line index or state. Legal while the
// learner is deciding what to do with their line.
func (s *Session) Replay() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case AwaitingUserSpeech, ScoringResult:
	default:
		return fmt.Errorf("%w: cannot replay in state %s", ErrInvalidTransition, s.state)
	}

	line := s.lines[s.idx]
	ctx := s.ctx
	go func() {
		if err := s.synth.SynthesizeAndPlay(ctx, line.Content, line.Speaker); err != nil && ctx.Err() == nil {
			s.notifier.Notify("replay failed: "+err.Error(), NoticeError)
		}
	}()
	return nil
}

// Close tears the session down from any state: in-flight playback and
// recognition are cancelled, late events from either are discarded, and the
// session returns to Idle. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stopRecordTimerLocked()
	s.stopHandoffTimerLocked()
	s.deferred = false
	if s.rec != nil {
		s.rec.Stop()
		s.rec = nil
	}
	s.recGen++
	s.playGen++
	s.gotResult = false
	s.lastInterim = ""
	s.synth.Stop()

	if s.state != Idle {
		s.setStateLocked(Idle)
	}
}

// ---- line dispatch ----

// dispatchLocked routes the current line: past the end completes the run,
// the learner's lines await speech, every other line plays.
func (s *Session) dispatchLocked() {
	if s.idx >= len(s.lines) {
		s.setStateLocked(Complete)
		s.notifier.Notify("Practice complete!", NoticeSuccess)
		return
	}

	line := s.lines[s.idx]
	if line.Speaker == s.role {
		// The learner speaks next; release any lingering audio first.
		s.synth.Stop()
		s.setStateLocked(AwaitingUserSpeech)
		return
	}

	s.setStateLocked(PlayingRemoteLine)
	s.playGen++
	go s.play(s.ctx, s.playGen, line)
}

// play runs one playback attempt off the lock and feeds its resolution back
// into the state machine. A stale generation means the line was skipped or
// the session closed while audio was in flight.
func (s *Session) play(ctx context.Context, gen uint64, line Line) {
	err := s.synth.SynthesizeAndPlay(ctx, line.Content, line.Speaker)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.playGen || s.state != PlayingRemoteLine {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Stay on the line; the learner advances manually.
		s.publishFaultLocked(FaultSynthesis, "speech playback failed: "+err.Error())
		s.notifier.Notify("speech playback failed — use next to skip the line", NoticeError)
		return
	}

	s.idx++
	s.dispatchLocked()
}

// ---- recognition lifecycle ----

// startRecognizerLocked opens a fresh recognition session and becomes its
// sole owner. Called with the state already set to Recording.
func (s *Session) startRecognizerLocked() error {
	// Release the audio session before capturing; some platforms cannot
	// hold playback and the microphone at once.
	s.synth.Stop()

	rec, err := s.newRecognizer()
	if err != nil {
		return s.failRecordingStartLocked(err)
	}

	s.recGen++
	gen := s.recGen
	s.rec = rec

	if err := rec.Start(); err != nil {
		s.rec = nil
		return s.failRecordingStartLocked(err)
	}

	s.armRecordTimerLocked(gen)
	go s.pump(gen, rec.Events())
	return nil
}

// failRecordingStartLocked surfaces an unusable recognition capability and
// returns the learner to a recording-capable state.
func (s *Session) failRecordingStartLocked(err error) error {
	s.stopRecordTimerLocked()
	s.setStateLocked(AwaitingUserSpeech)
	s.publishFaultLocked(FaultRecognition, "could not start recording: "+err.Error())
	return fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err)
}

// pump forwards one recognition session's events into the state machine.
// It exits when the session's channel closes; stale generations are dropped
// inside handleRecognition.
func (s *Session) pump(gen uint64, events <-chan RecognitionEvent) {
	for ev := range events {
		s.handleRecognition(gen, ev)
	}
}

func (s *Session) handleRecognition(gen uint64, ev RecognitionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.recGen {
		// Event from a superseded or closed session.
		return
	}

	switch ev.Kind {
	case RecognitionInterim:
		if s.state != Recording {
			return
		}
		s.lastInterim = ev.Transcript
		s.sink.Publish(Event{Kind: EventInterim, Transcript: ev.Transcript})

	case RecognitionFinal:
		if s.state != Recording || s.gotResult {
			return
		}
		s.finishAttemptLocked(ev.Transcript)

	case RecognitionError:
		switch ev.Code {
		case ErrCodeNoSpeech, ErrCodeAborted:
			// Expected noise; the end signal decides the outcome.
		case ErrCodeNotAllowed:
			s.abortAttemptLocked()
			s.publishFaultLocked(FaultPermission, "microphone permission denied")
		default:
			s.abortAttemptLocked()
			s.publishFaultLocked(FaultRecognition, "recognition error: "+ev.Code)
		}

	case RecognitionEnd:
		s.rec = nil

		if s.deferred {
			// The session we were waiting out has released the capability.
			s.deferred = false
			s.stopHandoffTimerLocked()
			if err := s.startRecognizerLocked(); err != nil {
				slog.Warn("deferred recognition start failed", "err", err)
			}
			return
		}

		if s.state == Recording && !s.gotResult {
			// Ended without any result.
			s.stopRecordTimerLocked()
			s.setStateLocked(AwaitingUserSpeech)
			s.publishFaultLocked(FaultNoSpeech, "no speech detected — try again")
		}
	}
}

// abortAttemptLocked cancels the in-flight attempt, including a deferred
// start still waiting on the hand-off timer, and returns the learner to a
// recording-capable state. Without clearing the deferred slot, the hand-off
// timer would open a fresh recognition session whose events no state accepts.
func (s *Session) abortAttemptLocked() {
	s.deferred = false
	s.stopHandoffTimerLocked()
	s.stopRecordTimerLocked()
	s.setStateLocked(AwaitingUserSpeech)
}

// finishAttemptLocked scores the transcript against the current line and
// presents the result.
func (s *Session) finishAttemptLocked(transcript string) {
	s.gotResult = true
	s.stopRecordTimerLocked()

	line := s.lines[s.idx]
	res := speech.Compare(line.Content, transcript)
	s.setStateLocked(ScoringResult)
	s.sink.Publish(Event{Kind: EventScore, Result: &res, Transcript: transcript})
}

// ---- timers ----

func (s *Session) armRecordTimerLocked(gen uint64) {
	s.stopRecordTimerLocked()
	s.recordTimer = time.AfterFunc(s.recordTimeout, func() { s.onRecordTimeout(gen) })
}

func (s *Session) onRecordTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.recGen || s.gotResult || s.state != Recording {
		return
	}
	if s.rec != nil {
		s.rec.Stop()
	}
	s.setStateLocked(AwaitingUserSpeech)
	s.publishFaultLocked(FaultTimeout, "recording timed out — try again")
}

func (s *Session) armHandoffTimerLocked() {
	s.stopHandoffTimerLocked()
	s.handoffTimer = time.AfterFunc(s.handoffTimeout, s.onHandoffTimeout)
}

// onHandoffTimeout forces a deferred start when the previous session never
// signalled its end. The generation bump inside startRecognizerLocked makes
// any late events from the abandoned session no-ops.
func (s *Session) onHandoffTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deferred || s.state != Recording {
		return
	}
	s.deferred = false
	s.rec = nil
	if err := s.startRecognizerLocked(); err != nil {
		slog.Warn("forced recognition start failed", "err", err)
	}
}

func (s *Session) stopRecordTimerLocked() {
	if s.recordTimer != nil {
		s.recordTimer.Stop()
		s.recordTimer = nil
	}
}

func (s *Session) stopHandoffTimerLocked() {
	if s.handoffTimer != nil {
		s.handoffTimer.Stop()
		s.handoffTimer = nil
	}
}

// ---- event publishing ----

func (s *Session) setStateLocked(state State) {
	s.state = state
	ev := Event{Kind: EventState, State: state, LineIndex: s.idx}
	if s.idx < len(s.lines) && state != Idle && state != Complete {
		line := s.lines[s.idx]
		ev.Line = &line
	}
	s.sink.Publish(ev)
}

func (s *Session) publishFaultLocked(kind FaultKind, message string) {
	s.sink.Publish(Event{Kind: EventFault, Fault: kind, Message: message, State: s.state, LineIndex: s.idx})
}
