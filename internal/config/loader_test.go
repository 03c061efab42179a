package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nvail/echodrill/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
  db_path: /tmp/practice.db
tts:
  language_code: en-GB
  user_voice: en-GB-Wavenet-A
  coach_voice: en-GB-Wavenet-B
  speaking_rate: 0.9
  cache_entries: 64
practice:
  record_timeout: 30s
  handoff_timeout: 3s
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server config = %+v", cfg.Server)
	}
	if cfg.TTS.UserVoice != "en-GB-Wavenet-A" || cfg.TTS.SpeakingRate != 0.9 {
		t.Errorf("tts config = %+v", cfg.TTS)
	}
	if cfg.Practice.RecordTimeout != 30*time.Second {
		t.Errorf("record_timeout = %v", cfg.Practice.RecordTimeout)
	}
}

func TestLoadFromReader_DefaultsFillGaps(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("server:\n  listen_addr: \":7000\"\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	def := config.Default()
	if cfg.Server.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != def.Server.LogLevel {
		t.Errorf("LogLevel = %q, want default %q", cfg.Server.LogLevel, def.Server.LogLevel)
	}
	if cfg.TTS.CoachVoice != def.TTS.CoachVoice {
		t.Errorf("CoachVoice = %q, want default", cfg.TTS.CoachVoice)
	}
	if cfg.Practice.RecordTimeout != 20*time.Second || cfg.Practice.HandoffTimeout != 2*time.Second {
		t.Errorf("practice defaults = %+v", cfg.Practice)
	}
}

func TestLoadFromReader_EmptyInputIsAllDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if *cfg != config.Default() {
		t.Errorf("empty config = %+v, want defaults", cfg)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_port: 8080\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: loud
tts:
  speaking_rate: 9.5
practice:
  record_timeout: 1s
  handoff_timeout: 5s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"log_level", "speaking_rate", "handoff_timeout"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  tls:
    cert_file: /etc/certs/server.pem
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "key_file") {
		t.Errorf("err = %v, want key_file complaint", err)
	}
}
