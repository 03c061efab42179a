// Package googletts synthesizes speech with the Google Cloud
// Text-to-Speech API.
package googletts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/nvail/echodrill/internal/tts"
)

// The API rejects inputs above 5000 bytes; stay under with headroom.
const maxChunkBytes = 4500

// Config selects the language, per-role voices, and speaking rate.
type Config struct {
	LanguageCode string
	// Voices maps a speaker role to a voice name. Roles without an entry
	// fall back to DefaultVoice.
	Voices       map[string]string
	DefaultVoice string
	SpeakingRate float64
}

// Client calls the Google Cloud Text-to-Speech API. Safe for concurrent
// use; the underlying gRPC client multiplexes requests.
type Client struct {
	client *texttospeech.Client
	cfg    Config
}

var _ tts.Synthesizer = (*Client)(nil)

// New dials the Text-to-Speech API authenticated with apiKey.
func New(ctx context.Context, apiKey string, cfg Config) (*Client, error) {
	if apiKey == "" {
		return nil, tts.ErrUnavailable
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SpeakingRate <= 0 {
		cfg.SpeakingRate = 1.0
	}

	client, err := texttospeech.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("googletts: dial: %w", err)
	}
	return &Client{client: client, cfg: cfg}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Synthesize renders text as MP3 audio with the voice configured for role.
// Long inputs are split at sentence boundaries under the API byte limit and
// the resulting audio segments concatenated.
func (c *Client) Synthesize(ctx context.Context, text, role string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	voice := c.cfg.Voices[role]
	if voice == "" {
		voice = c.cfg.DefaultVoice
	}

	var audio []byte
	for _, chunk := range splitChunks(text, maxChunkBytes) {
		resp, err := c.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: c.cfg.LanguageCode,
				Name:         voice,
			},
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding: texttospeechpb.AudioEncoding_MP3,
				SpeakingRate:  c.cfg.SpeakingRate,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("googletts: synthesize: %w", err)
		}
		audio = append(audio, resp.AudioContent...)
	}
	return audio, nil
}

// splitChunks cuts text into pieces of at most maxBytes, preferring to cut
// after sentence punctuation and never splitting a UTF-8 sequence.
func splitChunks(text string, maxBytes int) []string {
	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxBytes {
			chunks = append(chunks, remaining)
			break
		}

		cut := maxBytes
		for i := maxBytes; i > 0; i-- {
			if b := remaining[i-1]; b == '.' || b == '!' || b == '?' || b == '\n' {
				cut = i
				break
			}
		}
		for cut < len(remaining) && remaining[cut]&0xC0 == 0x80 {
			cut++
		}

		chunks = append(chunks, remaining[:cut])
		remaining = remaining[cut:]
	}
	return chunks
}
