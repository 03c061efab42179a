// Package config provides the configuration schema, loader, and file
// watcher for the echodrill server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	TTS      TTSConfig      `yaml:"tts"`
	Practice PracticeConfig `yaml:"practice"`
}

// ServerConfig holds network, storage, and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// DBPath is the SQLite database file, created on first start.
	DBPath string `yaml:"db_path"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// TTSConfig selects the synthesis language, voices, and speaking rate.
// The API key is deliberately not part of the file; it comes from the
// GOOGLE_TTS_API_KEY environment variable so the config can be checked in.
type TTSConfig struct {
	// LanguageCode is the BCP-47 synthesis language (e.g., "en-US").
	LanguageCode string `yaml:"language_code"`

	// UserVoice reads the learner's own lines during dialogue playback.
	UserVoice string `yaml:"user_voice"`

	// CoachVoice reads the partner's lines.
	CoachVoice string `yaml:"coach_voice"`

	// SpeakingRate scales playback speed. Valid range is [0.25, 4.0].
	SpeakingRate float64 `yaml:"speaking_rate"`

	// CacheEntries bounds the in-memory audio cache.
	CacheEntries int `yaml:"cache_entries"`
}

// PracticeConfig tunes the dialogue practice state machine.
type PracticeConfig struct {
	// RecordTimeout caps how long one recording attempt may run.
	RecordTimeout time.Duration `yaml:"record_timeout"`

	// HandoffTimeout caps how long a deferred recording start waits for
	// the previous recognizer to release the microphone.
	HandoffTimeout time.Duration `yaml:"handoff_timeout"`
}

// Default returns the configuration applied where fields are left unset.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
			DBPath:     "echodrill.db",
		},
		TTS: TTSConfig{
			LanguageCode: "en-US",
			UserVoice:    "en-US-Wavenet-D",
			CoachVoice:   "en-US-Wavenet-F",
			SpeakingRate: 1.0,
			CacheEntries: 256,
		},
		Practice: PracticeConfig{
			RecordTimeout:  20 * time.Second,
			HandoffTimeout: 2 * time.Second,
		},
	}
}
