package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	// VoiceChanged is true when a voice, language, or speaking rate
	// changed. Cached audio no longer matches and must be discarded.
	VoiceChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PracticeChanged is true when a practice timeout changed. Applies to
	// sessions started after the reload, not the one in flight.
	PracticeChanged bool
}

// Any reports whether the diff carries any change at all.
func (d ConfigDiff) Any() bool {
	return d.VoiceChanged || d.LogLevelChanged || d.PracticeChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.TTS.LanguageCode != new.TTS.LanguageCode ||
		old.TTS.UserVoice != new.TTS.UserVoice ||
		old.TTS.CoachVoice != new.TTS.CoachVoice ||
		old.TTS.SpeakingRate != new.TTS.SpeakingRate {
		d.VoiceChanged = true
	}

	if old.Practice != new.Practice {
		d.PracticeChanged = true
	}

	return d
}
