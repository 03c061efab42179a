// Package server exposes the HTTP API and the practice WebSocket bridge.
//
// The browser client owns the audio and microphone capabilities; everything
// else — persistence, scheduling, import, synthesis — lives here. REST
// endpoints cover the flashcard and import surfaces, while /ws/practice
// carries the event-driven dialogue practice protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nvail/echodrill/internal/config"
	"github.com/nvail/echodrill/internal/health"
	"github.com/nvail/echodrill/internal/importer"
	"github.com/nvail/echodrill/internal/observe"
	"github.com/nvail/echodrill/internal/srs"
	"github.com/nvail/echodrill/internal/store"
	"github.com/nvail/echodrill/internal/tts"
)

// shutdownTimeout bounds graceful HTTP shutdown after the context ends.
const shutdownTimeout = 10 * time.Second

// Server ties the stores and services to their HTTP surface.
type Server struct {
	cfg      config.ServerConfig
	practice config.PracticeConfig

	store    *store.SQLite
	reviewer *srs.Reviewer
	importer *importer.Service
	synth    tts.Synthesizer
	metrics  *observe.Metrics
	log      *slog.Logger

	sessions *sessionManager
}

// Config carries the server's collaborators. All fields are required except
// Logger and Metrics, which fall back to the process defaults.
type Config struct {
	Server   config.ServerConfig
	Practice config.PracticeConfig

	Store       *store.SQLite
	Reviewer    *srs.Reviewer
	Importer    *importer.Service
	Synthesizer tts.Synthesizer
	Metrics     *observe.Metrics
	Logger      *slog.Logger
}

// New creates a Server from its collaborators.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Reviewer == nil || cfg.Importer == nil || cfg.Synthesizer == nil {
		return nil, errors.New("server: store, reviewer, importer, and synthesizer are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		cfg:      cfg.Server,
		practice: cfg.Practice,
		store:    cfg.Store,
		reviewer: cfg.Reviewer,
		importer: cfg.Importer,
		synth:    cfg.Synthesizer,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
	s.sessions = newSessionManager(s)
	return s, nil
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/topics", s.handleTopics)

	mux.HandleFunc("GET /api/items/sentences", s.handleListSentences)
	mux.HandleFunc("GET /api/items/vocabulary", s.handleListVocabulary)
	mux.HandleFunc("DELETE /api/items/sentences", s.handleDeleteSentences)
	mux.HandleFunc("DELETE /api/items/vocabulary", s.handleDeleteVocabulary)

	mux.HandleFunc("GET /api/cards/due", s.handleDue)
	mux.HandleFunc("GET /api/cards/stats", s.handleStats)
	mux.HandleFunc("POST /api/cards/{id}/rate", s.handleRate)
	mux.HandleFunc("POST /api/cards/restudy", s.handleRestudy)

	mux.HandleFunc("GET /api/dialogues", s.handleListDialogues)
	mux.HandleFunc("GET /api/dialogues/{id}", s.handleGetDialogue)
	mux.HandleFunc("DELETE /api/dialogues/{id}", s.handleDeleteDialogue)

	mux.HandleFunc("POST /api/tts", s.handleSynthesize)

	mux.HandleFunc("GET /api/backup", s.handleExport)
	mux.HandleFunc("POST /api/backup", s.handleImportBackup)

	health.New(health.Database(s.store)).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := observe.Middleware(s.metrics)(mux)

	// The websocket route bypasses the metrics middleware: the status
	// recorder hides the http.Hijacker the upgrade needs.
	root := http.NewServeMux()
	root.HandleFunc("GET /ws/practice", s.handlePracticeSocket)
	root.Handle("/", handler)
	return root
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
// closes any live practice session.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s.Routes(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http server listening", "addr", s.cfg.ListenAddr, "tls", s.cfg.TLS != nil)
		var err error
		if s.cfg.TLS != nil {
			err = srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		s.sessions.closeActive()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// ClearAudioCache drops cached synthesis output. Wired to config reloads
// that change voices or speaking rate.
func (s *Server) ClearAudioCache() {
	if c, ok := s.synth.(*tts.Cache); ok {
		c.Clear()
	}
}
