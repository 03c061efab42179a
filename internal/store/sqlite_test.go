package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nvail/echodrill/internal/srs"
	"github.com/nvail/echodrill/internal/store"
)

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestSQLite_CreateSentencesWithProgress(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	ids, err := s.CreateSentences(ctx, []store.Sentence{
		{Original: "I goed home", Polished: "I went home", Reason: "irregular past tense", Topic: "daily"},
		{Polished: "See you tomorrow", Topic: "daily"},
	})
	if err != nil {
		t.Fatalf("CreateSentences: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}

	got, err := s.GetSentence(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetSentence: %v", err)
	}
	if got.Polished != "I went home" || got.Reason != "irregular past tense" {
		t.Errorf("unexpected sentence: %+v", got)
	}

	// Each item gets exactly one fresh progress record.
	progress, err := s.ListProgress(ctx, srs.Filter{ItemType: srs.ItemSentence})
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(progress) != 2 {
		t.Fatalf("got %d progress records, want 2", len(progress))
	}
	for _, p := range progress {
		if !p.IsNew() {
			t.Errorf("progress %d not new: %+v", p.ID, p)
		}
		if p.EaseFactor != 2.5 {
			t.Errorf("progress %d ease = %v, want 2.5", p.ID, p.EaseFactor)
		}
	}
}

func TestSQLite_ProgressRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	ids, err := s.CreateVocabulary(ctx, []store.Vocabulary{
		{Phrase: "break the ice", Meaning: "start a conversation", Topic: "idioms"},
	})
	if err != nil {
		t.Fatalf("CreateVocabulary: %v", err)
	}

	list, err := s.ListProgress(ctx, srs.Filter{ItemType: srs.ItemVocabulary})
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(list) != 1 || list[0].ItemID != ids[0] {
		t.Fatalf("unexpected progress list: %+v", list)
	}

	p := list[0]
	p.Interval = 8
	p.Repetitions = 3
	p.EaseFactor = 2.65
	p.NextReview = time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	if err := s.UpdateProgress(ctx, p); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	got, err := s.GetProgress(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if got.Interval != 8 || got.Repetitions != 3 || got.EaseFactor != 2.65 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.NextReview.Equal(p.NextReview) {
		t.Errorf("NextReview = %v, want %v", got.NextReview, p.NextReview)
	}
}

func TestSQLite_ProgressNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetProgress(ctx, 999); !errors.Is(err, srs.ErrNotFound) {
		t.Errorf("GetProgress err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateProgress(ctx, srs.Progress{ID: 999}); !errors.Is(err, srs.ErrNotFound) {
		t.Errorf("UpdateProgress err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetSentence(ctx, 999); !errors.Is(err, srs.ErrNotFound) {
		t.Errorf("GetSentence err = %v, want ErrNotFound", err)
	}
}

func TestSQLite_DeleteRemovesProgress(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	ids, err := s.CreateSentences(ctx, []store.Sentence{
		{Polished: "keep me"},
		{Polished: "delete me"},
	})
	if err != nil {
		t.Fatalf("CreateSentences: %v", err)
	}

	if err := s.DeleteSentences(ctx, []int64{ids[1]}); err != nil {
		t.Fatalf("DeleteSentences: %v", err)
	}

	if _, err := s.GetSentence(ctx, ids[1]); !errors.Is(err, srs.ErrNotFound) {
		t.Errorf("deleted sentence still readable, err = %v", err)
	}
	progress, err := s.ListProgress(ctx, srs.Filter{ItemType: srs.ItemSentence})
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(progress) != 1 || progress[0].ItemID != ids[0] {
		t.Errorf("orphaned progress after delete: %+v", progress)
	}
}

func TestSQLite_TopicFilterJoinsItemTable(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSentences(ctx, []store.Sentence{
		{Polished: "ordering coffee", Topic: "cafe"},
		{Polished: "asking directions", Topic: "travel"},
	}); err != nil {
		t.Fatalf("CreateSentences: %v", err)
	}
	if _, err := s.CreateVocabulary(ctx, []store.Vocabulary{
		{Phrase: "latte", Topic: "cafe"},
	}); err != nil {
		t.Fatalf("CreateVocabulary: %v", err)
	}

	got, err := s.ListProgress(ctx, srs.Filter{ItemType: srs.ItemSentence, Topic: "cafe"})
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records for cafe sentences, want 1", len(got))
	}
	if got[0].ItemType != srs.ItemSentence {
		t.Errorf("ItemType = %q, want sentence", got[0].ItemType)
	}
}

func TestSQLite_DialogueLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	lines := []store.DialogueLine{
		{Speaker: "A", Content: "Hi, table for two?", Translation: "two people"},
		{Speaker: "B", Content: "Sure, follow me."},
		{Speaker: "A", Content: "Thanks."},
	}
	id, err := s.CreateDialogue(ctx, store.DialogueSession{Title: "At the restaurant", Topic: "food"}, lines)
	if err != nil {
		t.Fatalf("CreateDialogue: %v", err)
	}

	session, err := s.GetDialogueSession(ctx, id)
	if err != nil {
		t.Fatalf("GetDialogueSession: %v", err)
	}
	if session.LineCount != 3 {
		t.Errorf("LineCount = %d, want 3", session.LineCount)
	}

	got, err := s.GetDialogueLines(ctx, id)
	if err != nil {
		t.Fatalf("GetDialogueLines: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d lines, want 3", len(got))
	}
	for i, line := range got {
		if line.Order != i {
			t.Errorf("line %d order = %d", i, line.Order)
		}
		if line.Content != lines[i].Content {
			t.Errorf("line %d content = %q, want %q", i, line.Content, lines[i].Content)
		}
	}

	if err := s.DeleteDialogueSession(ctx, id); err != nil {
		t.Fatalf("DeleteDialogueSession: %v", err)
	}
	if _, err := s.GetDialogueSession(ctx, id); !errors.Is(err, srs.ErrNotFound) {
		t.Errorf("deleted session still readable, err = %v", err)
	}
	remaining, err := s.GetDialogueLines(ctx, id)
	if err != nil {
		t.Fatalf("GetDialogueLines after delete: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("lines survived session delete: %+v", remaining)
	}
}

func TestSQLite_Topics(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSentences(ctx, []store.Sentence{
		{Polished: "a", Topic: "travel"},
		{Polished: "b"},
	}); err != nil {
		t.Fatalf("CreateSentences: %v", err)
	}
	if _, err := s.CreateVocabulary(ctx, []store.Vocabulary{
		{Phrase: "x", Topic: "cafe"},
		{Phrase: "y", Topic: "travel"},
	}); err != nil {
		t.Fatalf("CreateVocabulary: %v", err)
	}

	topics, err := s.Topics(ctx)
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	want := []string{"cafe", "travel"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, topics[i], want[i])
		}
	}
}

func TestSQLite_ExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := openTestStore(t)
	if _, err := src.CreateSentences(ctx, []store.Sentence{{Polished: "hello there", Topic: "greetings"}}); err != nil {
		t.Fatalf("CreateSentences: %v", err)
	}
	if _, err := src.CreateDialogue(ctx, store.DialogueSession{Title: "Greetings"}, []store.DialogueLine{
		{Speaker: "A", Content: "Hello!"},
		{Speaker: "B", Content: "Hi!"},
	}); err != nil {
		t.Fatalf("CreateDialogue: %v", err)
	}

	snap, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}

	dst := openTestStore(t)
	if err := dst.ImportAll(ctx, snap); err != nil {
		t.Fatalf("ImportAll: %v", err)
	}

	restored, err := dst.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll (restored): %v", err)
	}
	if len(restored.Sentences) != 1 || restored.Sentences[0].Polished != "hello there" {
		t.Errorf("restored sentences = %+v", restored.Sentences)
	}
	if len(restored.DialogueLines) != 2 {
		t.Errorf("restored %d dialogue lines, want 2", len(restored.DialogueLines))
	}
	if len(restored.CardProgress) != 1 {
		t.Errorf("restored %d progress records, want 1", len(restored.CardProgress))
	}

	// Importing the same snapshot again replaces, not duplicates.
	if err := dst.ImportAll(ctx, snap); err != nil {
		t.Fatalf("ImportAll (second): %v", err)
	}
	again, err := dst.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll (again): %v", err)
	}
	if len(again.Sentences) != 1 || len(again.CardProgress) != 1 {
		t.Errorf("second import duplicated rows: %d sentences, %d progress",
			len(again.Sentences), len(again.CardProgress))
	}
}

func TestSQLite_Ping(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
