// Command echodrill runs the language-practice server: sentence and
// vocabulary import, spaced-repetition flashcards, and the dialogue practice
// WebSocket, backed by SQLite and Google Cloud Text-to-Speech.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nvail/echodrill/internal/config"
	"github.com/nvail/echodrill/internal/importer"
	"github.com/nvail/echodrill/internal/observe"
	"github.com/nvail/echodrill/internal/server"
	"github.com/nvail/echodrill/internal/srs"
	"github.com/nvail/echodrill/internal/store"
	"github.com/nvail/echodrill/internal/tts"
	"github.com/nvail/echodrill/internal/tts/googletts"
)

// apiKeyEnv names the env var carrying the Google Cloud TTS API key. It is
// read from the environment (or a .env file) rather than the config file so
// the config can be checked in.
const apiKeyEnv = "GOOGLE_TTS_API_KEY"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "echodrill: load .env: %v\n", err)
		return 1
	}

	// The level lives in a LevelVar so config reloads can adjust verbosity
	// without recreating the logger.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// srv is captured by the reload callback before it exists; the callback
	// checks for nil until the server is built.
	var srv *server.Server

	onChange := func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.VoiceChanged {
			if s := srv; s != nil {
				s.ClearAudioCache()
			}
			slog.Info("voice settings changed, audio cache cleared")
		}
		if d.PracticeChanged {
			slog.Info("practice timeouts changed, applies from the next restart")
		}
	}

	var cfg *config.Config
	watcher, err := config.NewWatcher(*configPath, onChange)
	switch {
	case err == nil:
		cfg = watcher.Current()
		defer watcher.Stop()
	case errors.Is(err, os.ErrNotExist):
		// No config file is fine for a first run; everything has a default.
		def := config.Default()
		cfg = &def
	default:
		fmt.Fprintf(os.Stderr, "echodrill: %v\n", err)
		return 1
	}
	level.Set(slogLevel(cfg.Server.LogLevel))

	slog.Info("echodrill starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"db_path", cfg.Server.DBPath,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("metrics init failed", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		slog.Error("open database failed", "err", err)
		return 1
	}
	defer st.Close()

	synth := buildSynthesizer(ctx, cfg.TTS)

	srv, err = server.New(server.Config{
		Server:      cfg.Server,
		Practice:    cfg.Practice,
		Store:       st,
		Reviewer:    srs.NewReviewer(st),
		Importer:    importer.NewService(st, logger),
		Synthesizer: synth,
		Logger:      logger,
	})
	if err != nil {
		slog.Error("server init failed", "err", err)
		return 1
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildSynthesizer wires the Google TTS client behind the audio cache. With
// no API key the server still runs; synthesis endpoints report 503 until a
// key is provided.
func buildSynthesizer(ctx context.Context, cfg config.TTSConfig) tts.Synthesizer {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		slog.Warn("no TTS API key set, speech synthesis disabled", "env", apiKeyEnv)
		return tts.Unavailable{}
	}

	client, err := googletts.New(ctx, apiKey, googletts.Config{
		LanguageCode: cfg.LanguageCode,
		Voices: map[string]string{
			tts.RoleUser:  cfg.UserVoice,
			tts.RoleCoach: cfg.CoachVoice,
		},
		DefaultVoice: cfg.UserVoice,
		SpeakingRate: cfg.SpeakingRate,
	})
	if err != nil {
		slog.Error("tts client init failed, speech synthesis disabled", "err", err)
		return tts.Unavailable{}
	}
	return tts.NewCache(client, cfg.CacheEntries)
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
