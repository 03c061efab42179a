package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nvail/echodrill/internal/practice"
	"github.com/nvail/echodrill/internal/speech"
	"github.com/nvail/echodrill/internal/tts"
)

// writeTimeout bounds a single websocket write. A stalled client must not
// wedge the practice session.
const writeTimeout = 5 * time.Second

// outboundQueueSize bounds the frames waiting on the writer goroutine.
// Session transitions enqueue without blocking; a client that stalls past
// the queue loses frames instead of holding the session lock.
const outboundQueueSize = 64

// errPlaybackStopped resolves a pending playback when it is cancelled
// server-side; the session discards the result via its generation guard.
var errPlaybackStopped = errors.New("server: playback stopped")

// wsMessage is the single frame shape of the practice protocol, both
// directions. Type selects which fields are meaningful.
type wsMessage struct {
	Type string `json:"type"`

	// client → server: start
	DialogueID int64  `json:"dialogueId,omitempty"`
	Role       string `json:"role,omitempty"`

	// playback handshake
	PlaybackID string `json:"playbackId,omitempty"`

	// recognition events and interim transcripts
	Transcript string `json:"transcript,omitempty"`
	Code       string `json:"code,omitempty"`

	// server → client payloads
	SessionID string         `json:"sessionId,omitempty"`
	Speaker   string         `json:"speaker,omitempty"`
	Audio     []byte         `json:"audio,omitempty"`
	State     string         `json:"state,omitempty"`
	LineIndex int            `json:"lineIndex,omitempty"`
	Line      *practice.Line `json:"line,omitempty"`
	Result    *speech.Result `json:"result,omitempty"`
	Fault     string         `json:"fault,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// sessionManager enforces the single-active-practice-session rule: starting
// a new session closes the previous one.
type sessionManager struct {
	srv *Server

	mu     sync.Mutex
	active *liveSession
}

func newSessionManager(srv *Server) *sessionManager {
	return &sessionManager{srv: srv}
}

// replace installs ls as the active session, closing any previous one.
func (m *sessionManager) replace(ls *liveSession) {
	m.mu.Lock()
	prev := m.active
	m.active = ls
	m.mu.Unlock()

	if prev != nil && prev != ls {
		prev.shutdown()
	}
}

// release clears ls if it is still the active session.
func (m *sessionManager) release(ls *liveSession) {
	m.mu.Lock()
	if m.active == ls {
		m.active = nil
	}
	m.mu.Unlock()
}

// closeActive tears down the live session, if any. Called on server shutdown.
func (m *sessionManager) closeActive() {
	m.mu.Lock()
	active := m.active
	m.active = nil
	m.mu.Unlock()

	if active != nil {
		active.shutdown()
	}
}

// handlePracticeSocket upgrades the connection and runs the practice
// protocol until the client disconnects.
func (s *Server) handlePracticeSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}

	ls := &liveSession{
		srv:      s,
		conn:     conn,
		pending:  make(map[string]chan error),
		outbound: make(chan wsMessage, outboundQueueSize),
		lineTime: time.Now(),
	}
	go ls.writeLoop()
	defer ls.shutdown()

	s.log.Info("practice socket connected", "remote", r.RemoteAddr)
	ls.readLoop(r.Context())
	s.sessions.release(ls)
	s.log.Info("practice socket closed", "remote", r.RemoteAddr)
}

// liveSession is one websocket connection together with the practice
// session it drives. The browser client contributes the audio-playback and
// speech-recognition capabilities; this type bridges their events into the
// session's collaborator interfaces.
type liveSession struct {
	srv  *Server
	conn *websocket.Conn

	mu      sync.Mutex
	id      string
	session *practice.Session
	rec     *wsRecognizer
	pending map[string]chan error

	outbound chan wsMessage

	lineTime time.Time
	closed   bool
}

// send hands msg to the writer goroutine. It never blocks: session
// transitions run under the session lock and a stalled client must not hold
// it, so frames past a full queue are dropped.
func (ls *liveSession) send(msg wsMessage) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return
	}
	select {
	case ls.outbound <- msg:
	default:
		ls.srv.log.Warn("outbound queue full, dropping frame", "type", msg.Type)
	}
}

// writeLoop drains the outbound queue onto the connection. It exits when
// shutdown closes the queue.
func (ls *liveSession) writeLoop() {
	for msg := range ls.outbound {
		data, err := json.Marshal(msg)
		if err != nil {
			ls.srv.log.Warn("ws marshal failed", "type", msg.Type, "err", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = ls.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			ls.srv.log.Warn("ws write failed", "type", msg.Type, "err", err)
		}
	}
}

func (ls *liveSession) sendError(message string) {
	ls.send(wsMessage{Type: "error", Message: message})
}

// readLoop dispatches incoming frames until the connection dies.
func (ls *liveSession) readLoop(ctx context.Context) {
	for {
		_, data, err := ls.conn.Read(ctx)
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			ls.sendError("invalid message: " + err.Error())
			continue
		}
		ls.dispatch(ctx, msg)
	}
}

func (ls *liveSession) dispatch(ctx context.Context, msg wsMessage) {
	switch msg.Type {
	case "start":
		ls.handleStart(ctx, msg)
	case "record":
		ls.controlCall(func(s *practice.Session) error { return s.StartRecording() })
	case "stop-recording":
		ls.controlCall(func(s *practice.Session) error { return s.StopRecording() })
	case "next":
		ls.controlCall(func(s *practice.Session) error { return s.Next() })
	case "replay":
		ls.controlCall(func(s *practice.Session) error { return s.Replay() })
	case "close":
		ls.closeSession()
	case "playback-ended":
		ls.resolvePlayback(msg.PlaybackID, nil)
	case "playback-failed":
		ls.resolvePlayback(msg.PlaybackID, errors.New(nonEmpty(msg.Message, "playback failed")))
	case "recognition-interim":
		ls.routeRecognition(practice.RecognitionEvent{Kind: practice.RecognitionInterim, Transcript: msg.Transcript})
	case "recognition-final":
		ls.routeRecognition(practice.RecognitionEvent{Kind: practice.RecognitionFinal, Transcript: msg.Transcript})
	case "recognition-error":
		ls.routeRecognition(practice.RecognitionEvent{Kind: practice.RecognitionError, Code: msg.Code})
	case "recognition-end":
		ls.routeRecognition(practice.RecognitionEvent{Kind: practice.RecognitionEnd})
	default:
		ls.sendError("unknown message type " + msg.Type)
	}
}

func (ls *liveSession) handleStart(ctx context.Context, msg wsMessage) {
	lines, err := ls.srv.store.GetDialogueLines(ctx, msg.DialogueID)
	if err != nil {
		ls.sendError("load dialogue: " + err.Error())
		return
	}

	script := make([]practice.Line, 0, len(lines))
	for _, l := range lines {
		script = append(script, practice.Line{
			Speaker:     l.Speaker,
			Content:     l.Content,
			Translation: l.Translation,
			Order:       l.Order,
		})
	}

	session, err := practice.NewSession(practice.Config{
		Lines:          script,
		Synthesizer:    &wsSynthesizer{live: ls, synth: ls.srv.synth},
		Recognizer:     ls.newRecognizer,
		Notifier:       wsNotifier{live: ls},
		Sink:           practice.EventSinkFunc(ls.publishEvent),
		RecordTimeout:  ls.srv.practice.RecordTimeout,
		HandoffTimeout: ls.srv.practice.HandoffTimeout,
	})
	if err != nil {
		ls.sendError(err.Error())
		return
	}

	ls.mu.Lock()
	if ls.session != nil {
		old := ls.session
		ls.session = nil
		ls.mu.Unlock()
		old.Close()
		ls.srv.metrics.ActivePracticeSessions.Add(ctx, -1)
		ls.mu.Lock()
	}
	ls.id = uuid.NewString()
	ls.session = session
	ls.lineTime = time.Now()
	ls.mu.Unlock()

	ls.srv.sessions.replace(ls)
	ls.srv.metrics.ActivePracticeSessions.Add(ctx, 1)

	if err := session.Start(context.Background(), msg.Role); err != nil {
		ls.srv.metrics.ActivePracticeSessions.Add(ctx, -1)
		ls.mu.Lock()
		ls.session = nil
		ls.mu.Unlock()
		ls.sendError(err.Error())
		return
	}

	ls.send(wsMessage{Type: "started", SessionID: ls.sessionID()})
}

func (ls *liveSession) sessionID() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.id
}

// controlCall runs a session operation and reports rule violations back to
// the client instead of tearing the connection down.
func (ls *liveSession) controlCall(fn func(*practice.Session) error) {
	ls.mu.Lock()
	session := ls.session
	ls.mu.Unlock()

	if session == nil {
		ls.sendError("no active session")
		return
	}
	if err := fn(session); err != nil {
		ls.sendError(err.Error())
	}
}

func (ls *liveSession) closeSession() {
	ls.mu.Lock()
	session := ls.session
	ls.session = nil
	ls.mu.Unlock()

	if session != nil {
		session.Close()
		ls.srv.metrics.ActivePracticeSessions.Add(context.Background(), -1)
	}
	ls.srv.sessions.release(ls)
}

// shutdown tears down the practice session and the connection. Idempotent.
func (ls *liveSession) shutdown() {
	ls.mu.Lock()
	if ls.closed {
		ls.mu.Unlock()
		return
	}
	ls.closed = true
	session := ls.session
	ls.session = nil
	for id, ch := range ls.pending {
		delete(ls.pending, id)
		ch <- errPlaybackStopped
	}
	close(ls.outbound)
	ls.mu.Unlock()

	if session != nil {
		session.Close()
		ls.srv.metrics.ActivePracticeSessions.Add(context.Background(), -1)
	}
	ls.conn.Close(websocket.StatusNormalClosure, "session closed")
}

// ---- playback bridge ----

func (ls *liveSession) registerPlayback(id string) chan error {
	ch := make(chan error, 1)
	ls.mu.Lock()
	ls.pending[id] = ch
	ls.mu.Unlock()
	return ch
}

func (ls *liveSession) resolvePlayback(id string, result error) {
	ls.mu.Lock()
	ch, ok := ls.pending[id]
	if ok {
		delete(ls.pending, id)
	}
	ls.mu.Unlock()
	if ok {
		ch <- result
	}
}

// cancelPlaybacks resolves every pending playback as stopped.
func (ls *liveSession) cancelPlaybacks() {
	ls.mu.Lock()
	pending := ls.pending
	ls.pending = make(map[string]chan error)
	ls.mu.Unlock()
	for _, ch := range pending {
		ch <- errPlaybackStopped
	}
}

// wsSynthesizer synthesizes audio server-side and plays it through the
// browser, blocking until the client reports playback completion.
type wsSynthesizer struct {
	live  *liveSession
	synth tts.Synthesizer
}

func (w *wsSynthesizer) SynthesizeAndPlay(ctx context.Context, text, speaker string) error {
	start := time.Now()
	audio, err := w.synth.Synthesize(ctx, text, speaker)
	w.live.srv.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("server: synthesize line: %w", err)
	}

	id := uuid.NewString()
	done := w.live.registerPlayback(id)
	w.live.send(wsMessage{Type: "play", PlaybackID: id, Speaker: speaker, Audio: audio})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		w.live.resolvePlayback(id, nil)
		return ctx.Err()
	}
}

func (w *wsSynthesizer) Stop() {
	w.live.send(wsMessage{Type: "stop-playback"})
	w.live.cancelPlaybacks()
}

// ---- recognition bridge ----

// newRecognizer creates the per-attempt recognition handle. The browser owns
// the actual Web Speech session; this side forwards start/stop commands and
// receives its events from the read loop.
func (ls *liveSession) newRecognizer() (practice.Recognizer, error) {
	return &wsRecognizer{live: ls, events: make(chan practice.RecognitionEvent, 16)}, nil
}

// setRecognizer routes subsequent recognition events to r.
func (ls *liveSession) setRecognizer(r *wsRecognizer) {
	ls.mu.Lock()
	ls.rec = r
	ls.mu.Unlock()
}

func (ls *liveSession) routeRecognition(ev practice.RecognitionEvent) {
	ls.mu.Lock()
	rec := ls.rec
	if ev.Kind == practice.RecognitionEnd {
		ls.rec = nil
	}
	ls.mu.Unlock()

	if rec == nil {
		return
	}
	rec.deliver(ev)
}

type wsRecognizer struct {
	live   *liveSession
	events chan practice.RecognitionEvent

	mu    sync.Mutex
	ended bool
}

func (r *wsRecognizer) Start() error {
	r.live.setRecognizer(r)
	r.live.send(wsMessage{Type: "start-recognition"})
	return nil
}

func (r *wsRecognizer) Stop() {
	r.live.send(wsMessage{Type: "stop-recognition"})
}

func (r *wsRecognizer) Events() <-chan practice.RecognitionEvent {
	return r.events
}

// deliver forwards one event, closing the stream after the end signal.
// Events arriving after the end, or past a full buffer, are dropped — except
// the end signal itself, which always terminates the stream so the session's
// pump goroutine cannot leak behind a full buffer.
func (r *wsRecognizer) deliver(ev practice.RecognitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	if ev.Kind == practice.RecognitionEnd {
		r.ended = true
		select {
		case r.events <- ev:
		default:
		}
		close(r.events)
		return
	}
	select {
	case r.events <- ev:
	default:
	}
}

// ---- UI event bridges ----

type wsNotifier struct {
	live *liveSession
}

func (n wsNotifier) Notify(message string, kind practice.NoticeKind) {
	k := "success"
	if kind == practice.NoticeError {
		k = "error"
	}
	n.live.send(wsMessage{Type: "notice", Kind: k, Message: message})
}

// publishEvent forwards session events to the client and records metrics.
func (ls *liveSession) publishEvent(ev practice.Event) {
	ctx := context.Background()
	switch ev.Kind {
	case practice.EventState:
		ls.mu.Lock()
		elapsed := time.Since(ls.lineTime)
		ls.lineTime = time.Now()
		ls.mu.Unlock()
		if ev.State == practice.PlayingRemoteLine || ev.State == practice.Complete {
			ls.srv.metrics.LineDuration.Record(ctx, elapsed.Seconds())
		}
		ls.send(wsMessage{
			Type:      "state",
			State:     ev.State.String(),
			LineIndex: ev.LineIndex,
			Line:      ev.Line,
		})
	case practice.EventInterim:
		ls.send(wsMessage{Type: "interim", Transcript: ev.Transcript})
	case practice.EventScore:
		outcome := "failed"
		if ev.Result != nil && ev.Result.Passed() {
			outcome = "passed"
		}
		ls.srv.metrics.RecordRecognition(ctx, outcome)
		ls.send(wsMessage{Type: "score", Result: ev.Result})
	case practice.EventFault:
		ls.srv.metrics.RecordRecognition(ctx, faultOutcome(ev.Fault))
		ls.send(wsMessage{Type: "fault", Fault: faultName(ev.Fault), Message: ev.Message})
	}
}

func faultName(f practice.FaultKind) string {
	switch f {
	case practice.FaultSynthesis:
		return "synthesis"
	case practice.FaultPermission:
		return "permission"
	case practice.FaultRecognition:
		return "recognition"
	case practice.FaultNoSpeech:
		return "no-speech"
	case practice.FaultTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// faultOutcome maps a fault to the recognition-outcome metric label.
func faultOutcome(f practice.FaultKind) string {
	switch f {
	case practice.FaultTimeout:
		return "timeout"
	case practice.FaultNoSpeech:
		return "no-speech"
	default:
		return "error"
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
