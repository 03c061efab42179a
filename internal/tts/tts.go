// Package tts defines the speech-synthesis contract the practice and
// flashcard surfaces consume, plus a caching wrapper so repeated lines are
// synthesized once per voice and rate.
package tts

import (
	"context"
	"errors"
)

// Speaker roles. The learner's own lines and the partner's lines are read
// with different voices.
const (
	RoleUser  = "User"
	RoleCoach = "Coach"
)

var (
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("tts: empty text")
	// ErrUnavailable is returned when the synthesis backend is not
	// configured, typically a missing API key.
	ErrUnavailable = errors.New("tts: synthesis backend unavailable")
)

// Synthesizer converts text into encoded audio. Implementations must be
// safe for concurrent use. The returned bytes are a complete MP3 stream.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, role string) ([]byte, error)
}

// Unavailable is the synthesizer used when no backend is configured. Every
// call fails with ErrUnavailable, which the HTTP layer maps to 503.
type Unavailable struct{}

func (Unavailable) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, ErrUnavailable
}
