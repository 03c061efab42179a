package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvail/echodrill/internal/store"
)

// Store is the subset of the persistence layer the import service needs.
type Store interface {
	CreateSentences(ctx context.Context, items []store.Sentence) ([]int64, error)
	CreateVocabulary(ctx context.Context, items []store.Vocabulary) ([]int64, error)
	CreateDialogue(ctx context.Context, session store.DialogueSession, lines []store.DialogueLine) (int64, error)
	ListSentences(ctx context.Context) ([]store.Sentence, error)
	ListVocabulary(ctx context.Context) ([]store.Vocabulary, error)
	ListDialogueSessions(ctx context.Context, topic string) ([]store.DialogueSession, error)
}

// Report summarises one import: how many rows were persisted and how many
// were skipped as duplicates of existing data.
type Report struct {
	Format  Format `json:"format"`
	Saved   int    `json:"saved"`
	Skipped int    `json:"skipped"`
}

// Service parses pasted text and persists the result, skipping duplicates.
// Safe for concurrent use as long as the Store is.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService returns a Service backed by st. A nil logger falls back to the
// default slog logger.
func NewService(st Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, log: log}
}

// Import parses text, dedupes against existing records, and persists the
// remainder tagged with topic. Duplicate detection follows the item type:
// corrections by polished sentence, vocabulary by phrase, dialogues by
// title plus line count.
func (s *Service) Import(ctx context.Context, text, topic string) (Report, error) {
	batch, err := Parse(text)
	if err != nil {
		return Report{}, err
	}

	report := Report{Format: batch.Format}
	switch batch.Format {
	case FormatDialogue:
		err = s.importDialogue(ctx, batch, topic, &report)
	case FormatVocabulary:
		err = s.importVocabulary(ctx, batch, topic, &report)
	default:
		err = s.importSentences(ctx, batch, topic, &report)
	}
	if err != nil {
		return Report{}, err
	}

	s.log.Info("import finished",
		"format", report.Format, "saved", report.Saved, "skipped", report.Skipped)
	return report, nil
}

func (s *Service) importSentences(ctx context.Context, batch Batch, topic string, report *Report) error {
	existing, err := s.store.ListSentences(ctx)
	if err != nil {
		return fmt.Errorf("importer: list sentences: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		seen[it.Polished] = struct{}{}
	}

	var fresh []store.Sentence
	for _, row := range batch.Corrections {
		if _, dup := seen[row.Polished]; dup {
			report.Skipped++
			continue
		}
		seen[row.Polished] = struct{}{}
		fresh = append(fresh, store.Sentence{
			Original: row.Original,
			Polished: row.Polished,
			Reason:   row.Reason,
			Topic:    topic,
		})
	}
	if len(fresh) > 0 {
		if _, err := s.store.CreateSentences(ctx, fresh); err != nil {
			return err
		}
	}
	report.Saved = len(fresh)
	return nil
}

func (s *Service) importVocabulary(ctx context.Context, batch Batch, topic string, report *Report) error {
	existing, err := s.store.ListVocabulary(ctx)
	if err != nil {
		return fmt.Errorf("importer: list vocabulary: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		seen[it.Phrase] = struct{}{}
	}

	var fresh []store.Vocabulary
	for _, row := range batch.Vocabulary {
		if _, dup := seen[row.Phrase]; dup {
			report.Skipped++
			continue
		}
		seen[row.Phrase] = struct{}{}
		fresh = append(fresh, store.Vocabulary{
			Phrase:        row.Phrase,
			Pronunciation: row.Pronunciation,
			Meaning:       row.Meaning,
			Usage:         row.Usage,
			Topic:         topic,
		})
	}
	if len(fresh) > 0 {
		if _, err := s.store.CreateVocabulary(ctx, fresh); err != nil {
			return err
		}
	}
	report.Saved = len(fresh)
	return nil
}

func (s *Service) importDialogue(ctx context.Context, batch Batch, topic string, report *Report) error {
	title := DialogueTitle(batch.Dialogue[0].Content)

	sessions, err := s.store.ListDialogueSessions(ctx, "")
	if err != nil {
		return fmt.Errorf("importer: list dialogue sessions: %w", err)
	}
	for _, sess := range sessions {
		if sess.Title == title && sess.LineCount == len(batch.Dialogue) {
			report.Skipped = len(batch.Dialogue)
			return nil
		}
	}

	lines := make([]store.DialogueLine, 0, len(batch.Dialogue))
	for _, row := range batch.Dialogue {
		lines = append(lines, store.DialogueLine{
			Speaker:     row.Speaker,
			Content:     row.Content,
			Translation: row.Translation,
		})
	}
	if _, err := s.store.CreateDialogue(ctx, store.DialogueSession{Title: title, Topic: topic}, lines); err != nil {
		return err
	}
	report.Saved = len(lines)
	return nil
}
