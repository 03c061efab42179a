package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills unset fields with
// defaults, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = def.Server.ListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = def.Server.DBPath
	}
	if cfg.TTS.LanguageCode == "" {
		cfg.TTS.LanguageCode = def.TTS.LanguageCode
	}
	if cfg.TTS.UserVoice == "" {
		cfg.TTS.UserVoice = def.TTS.UserVoice
	}
	if cfg.TTS.CoachVoice == "" {
		cfg.TTS.CoachVoice = def.TTS.CoachVoice
	}
	if cfg.TTS.SpeakingRate == 0 {
		cfg.TTS.SpeakingRate = def.TTS.SpeakingRate
	}
	if cfg.TTS.CacheEntries == 0 {
		cfg.TTS.CacheEntries = def.TTS.CacheEntries
	}
	if cfg.Practice.RecordTimeout == 0 {
		cfg.Practice.RecordTimeout = def.Practice.RecordTimeout
	}
	if cfg.Practice.HandoffTimeout == 0 {
		cfg.Practice.HandoffTimeout = def.Practice.HandoffTimeout
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	if cfg.TTS.SpeakingRate < 0.25 || cfg.TTS.SpeakingRate > 4.0 {
		errs = append(errs, fmt.Errorf("tts.speaking_rate %.2f is out of range [0.25, 4.0]", cfg.TTS.SpeakingRate))
	}
	if cfg.TTS.CacheEntries < 0 {
		errs = append(errs, fmt.Errorf("tts.cache_entries %d must not be negative", cfg.TTS.CacheEntries))
	}

	if cfg.Practice.RecordTimeout <= 0 {
		errs = append(errs, fmt.Errorf("practice.record_timeout %v must be positive", cfg.Practice.RecordTimeout))
	}
	if cfg.Practice.HandoffTimeout <= 0 {
		errs = append(errs, fmt.Errorf("practice.handoff_timeout %v must be positive", cfg.Practice.HandoffTimeout))
	}
	if cfg.Practice.HandoffTimeout >= cfg.Practice.RecordTimeout {
		errs = append(errs, fmt.Errorf("practice.handoff_timeout %v must be shorter than record_timeout %v",
			cfg.Practice.HandoffTimeout, cfg.Practice.RecordTimeout))
	}

	return errors.Join(errs...)
}
