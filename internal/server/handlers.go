package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nvail/echodrill/internal/importer"
	"github.com/nvail/echodrill/internal/srs"
	"github.com/nvail/echodrill/internal/store"
	"github.com/nvail/echodrill/internal/tts"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError maps store errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, srs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error("store operation failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// filterFromQuery builds the progress partition filter from query params.
func filterFromQuery(r *http.Request) (srs.Filter, error) {
	itemType := srs.ItemType(r.URL.Query().Get("type"))
	if itemType == "" {
		itemType = srs.ItemSentence
	}
	if !itemType.IsValid() {
		return srs.Filter{}, srs.ErrInvalidItemType
	}
	return srs.Filter{ItemType: itemType, Topic: r.URL.Query().Get("topic")}, nil
}

// ---- import ----

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text"`
		Topic string `json:"topic"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	report, err := s.importer.Import(r.Context(), req.Text, req.Topic)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrEmptyInput),
			errors.Is(err, importer.ErrUnknownFormat),
			errors.Is(err, importer.ErrNoRows):
			s.metrics.RecordImport(r.Context(), "unknown", "rejected")
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.metrics.RecordImport(r.Context(), "unknown", "error")
			s.writeStoreError(w, err)
		}
		return
	}

	s.metrics.RecordImport(r.Context(), string(report.Format), "ok")
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.store.Topics(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, topics)
}

// ---- items ----

func (s *Server) handleListSentences(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListSentences(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []store.Sentence{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListVocabulary(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListVocabulary(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []store.Vocabulary{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDeleteSentences(w http.ResponseWriter, r *http.Request) {
	s.deleteItems(w, r, s.store.DeleteSentences)
}

func (s *Server) handleDeleteVocabulary(w http.ResponseWriter, r *http.Request) {
	s.deleteItems(w, r, s.store.DeleteVocabulary)
}

func (s *Server) deleteItems(w http.ResponseWriter, r *http.Request, del func(context.Context, []int64) error) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := del(r.Context(), req.IDs); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- cards ----

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	due, err := s.reviewer.Due(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if due == nil {
		due = []srs.Progress{}
	}
	writeJSON(w, http.StatusOK, due)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.reviewer.Stats(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Rating srs.Rating `json:"rating"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.reviewer.Rate(r.Context(), id, req.Rating)
	if err != nil {
		if errors.Is(err, srs.ErrInvalidRating) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeStoreError(w, err)
		return
	}

	s.metrics.RecordReview(r.Context(), req.Rating.String(), string(p.ItemType))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRestudy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type  srs.ItemType `json:"type"`
		Topic string       `json:"topic"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Type.IsValid() {
		writeError(w, http.StatusBadRequest, srs.ErrInvalidItemType.Error())
		return
	}

	res, err := s.reviewer.Restudy(r.Context(), srs.Filter{ItemType: req.Type, Topic: req.Topic})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	status := http.StatusOK
	if res.Failed > 0 {
		// Partial completion: some records were reset, others were not.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

// ---- dialogues ----

func (s *Server) handleListDialogues(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListDialogueSessions(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.DialogueSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetDialogue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	session, err := s.store.GetDialogueSession(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	lines, err := s.store.GetDialogueLines(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Session store.DialogueSession `json:"session"`
		Lines   []store.DialogueLine  `json:"lines"`
	}{session, lines})
}

func (s *Server) handleDeleteDialogue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteDialogueSession(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- synthesis ----

// handleSynthesize serves MP3 audio for the flashcard surface, which plays
// back single phrases outside any practice session.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Role string `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = tts.RoleUser
	}

	start := time.Now()
	audio, err := s.synth.Synthesize(r.Context(), req.Text, req.Role)
	s.metrics.SynthesisDuration.Record(r.Context(), time.Since(start).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, tts.ErrEmptyText):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, tts.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.log.Error("synthesis failed", "err", err)
			writeError(w, http.StatusBadGateway, "synthesis failed")
		}
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Write(audio)
}

// ---- backup ----

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.ExportAll(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="echodrill-backup.json"`)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	var snap store.Snapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	if err := s.store.ImportAll(r.Context(), snap); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
