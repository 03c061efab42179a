// Package mock provides a synthesizer test double.
package mock

import (
	"context"
	"sync"
)

// Call records one Synthesize invocation.
type Call struct {
	Text string
	Role string
}

// Synthesizer records calls and returns canned audio or an injected error.
type Synthesizer struct {
	mu    sync.Mutex
	calls []Call

	// Audio is returned on success. Defaults to a small fixed payload.
	Audio []byte
	// Err, when set, is returned by every Synthesize call.
	Err error
}

// Synthesize records the call and returns the configured result.
func (s *Synthesizer) Synthesize(_ context.Context, text, role string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Text: text, Role: role})
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Audio != nil {
		return s.Audio, nil
	}
	return []byte("mp3:" + text), nil
}

// Calls returns a snapshot of the recorded invocations.
func (s *Synthesizer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// SetErr swaps the injected error.
func (s *Synthesizer) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}
