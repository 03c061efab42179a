// Package store persists the learner's items, dialogue scripts, and card
// progress in a local SQLite database. It is the single-device storage the
// scheduler and both learning surfaces share.
//
// Every learnable item is created together with its initial progress record
// in one transaction and deleted with it, keeping exactly one progress row
// per item at all times.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nvail/echodrill/internal/srs"
)

const schema = `
CREATE TABLE IF NOT EXISTS sentences (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	original   TEXT NOT NULL DEFAULT '',
	polished   TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	topic      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS vocabulary (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	phrase        TEXT NOT NULL,
	pronunciation TEXT NOT NULL DEFAULT '',
	meaning       TEXT NOT NULL DEFAULT '',
	usage         TEXT NOT NULL DEFAULT '',
	topic         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dialogue_sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	line_count INTEGER NOT NULL,
	topic      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dialogue_lines (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  INTEGER NOT NULL REFERENCES dialogue_sessions(id) ON DELETE CASCADE,
	speaker     TEXT NOT NULL,
	content     TEXT NOT NULL,
	translation TEXT NOT NULL DEFAULT '',
	ord         INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dialogue_lines_session ON dialogue_lines(session_id, ord);

CREATE TABLE IF NOT EXISTS card_progress (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	item_type   TEXT NOT NULL,
	item_id     INTEGER NOT NULL,
	interval    INTEGER NOT NULL DEFAULT 0,
	repetitions INTEGER NOT NULL DEFAULT 0,
	ease_factor REAL NOT NULL DEFAULT 2.5,
	next_review TIMESTAMP NOT NULL,
	UNIQUE (item_type, item_id)
);

CREATE INDEX IF NOT EXISTS idx_card_progress_due ON card_progress(item_type, next_review);
`

// SQLite is the sqlx-backed store. It implements srs.ProgressStore.
// All methods are safe for concurrent use; SQLite serialises writers.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// Compile-time check that *SQLite satisfies the scheduler's store contract.
var _ srs.ProgressStore = (*SQLite)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_fk=1&_loc=UTC", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY between the API handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- items ----

// CreateSentences inserts the given sentences and one initial progress
// record per sentence, atomically. Returns the new sentence IDs in order.
func (s *SQLite) CreateSentences(ctx context.Context, items []Sentence) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	now := s.now().UTC()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, it := range items {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO sentences (original, polished, reason, topic, created_at) VALUES (?, ?, ?, ?, ?)`,
				it.Original, it.Polished, it.Reason, it.Topic, now)
			if err != nil {
				return fmt.Errorf("insert sentence: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			if err := insertProgress(ctx, tx, srs.NewProgress(srs.ItemSentence, id, now)); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateVocabulary inserts vocabulary items with their initial progress
// records, atomically. Returns the new item IDs in order.
func (s *SQLite) CreateVocabulary(ctx context.Context, items []Vocabulary) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	now := s.now().UTC()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, it := range items {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO vocabulary (phrase, pronunciation, meaning, usage, topic, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
				it.Phrase, it.Pronunciation, it.Meaning, it.Usage, it.Topic, now)
			if err != nil {
				return fmt.Errorf("insert vocabulary: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			if err := insertProgress(ctx, tx, srs.NewProgress(srs.ItemVocabulary, id, now)); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetSentence returns one sentence by ID.
func (s *SQLite) GetSentence(ctx context.Context, id int64) (Sentence, error) {
	var out Sentence
	err := s.db.GetContext(ctx, &out, `SELECT * FROM sentences WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Sentence{}, fmt.Errorf("store: sentence %d: %w", id, srs.ErrNotFound)
	}
	if err != nil {
		return Sentence{}, fmt.Errorf("store: get sentence %d: %w", id, err)
	}
	return out, nil
}

// GetVocabulary returns one vocabulary item by ID.
func (s *SQLite) GetVocabulary(ctx context.Context, id int64) (Vocabulary, error) {
	var out Vocabulary
	err := s.db.GetContext(ctx, &out, `SELECT * FROM vocabulary WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Vocabulary{}, fmt.Errorf("store: vocabulary %d: %w", id, srs.ErrNotFound)
	}
	if err != nil {
		return Vocabulary{}, fmt.Errorf("store: get vocabulary %d: %w", id, err)
	}
	return out, nil
}

// ListSentences returns all sentences, newest first.
func (s *SQLite) ListSentences(ctx context.Context) ([]Sentence, error) {
	var out []Sentence
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM sentences ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("store: list sentences: %w", err)
	}
	return out, nil
}

// ListVocabulary returns all vocabulary items, newest first.
func (s *SQLite) ListVocabulary(ctx context.Context) ([]Vocabulary, error) {
	var out []Vocabulary
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM vocabulary ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("store: list vocabulary: %w", err)
	}
	return out, nil
}

// DeleteSentences removes the given sentences and their progress records.
func (s *SQLite) DeleteSentences(ctx context.Context, ids []int64) error {
	return s.deleteItems(ctx, srs.ItemSentence, "sentences", ids)
}

// DeleteVocabulary removes the given vocabulary items and their progress
// records.
func (s *SQLite) DeleteVocabulary(ctx context.Context, ids []int64) error {
	return s.deleteItems(ctx, srs.ItemVocabulary, "vocabulary", ids)
}

func (s *SQLite) deleteItems(ctx context.Context, itemType srs.ItemType, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(`DELETE FROM `+table+` WHERE id IN (?)`, ids)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}

		query, args, err = sqlx.In(`DELETE FROM card_progress WHERE item_type = ? AND item_id IN (?)`, string(itemType), ids)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
		return nil
	})
}

// ---- dialogues ----

// CreateDialogue inserts a dialogue session and its ordered lines
// atomically. Returns the new session ID.
func (s *SQLite) CreateDialogue(ctx context.Context, session DialogueSession, lines []DialogueLine) (int64, error) {
	now := s.now().UTC()
	var sessionID int64

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO dialogue_sessions (title, line_count, topic, created_at) VALUES (?, ?, ?, ?)`,
			session.Title, len(lines), session.Topic, now)
		if err != nil {
			return fmt.Errorf("insert dialogue session: %w", err)
		}
		sessionID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for i, line := range lines {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO dialogue_lines (session_id, speaker, content, translation, ord, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
				sessionID, line.Speaker, line.Content, line.Translation, i, now); err != nil {
				return fmt.Errorf("insert dialogue line %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sessionID, nil
}

// GetDialogueSession returns one dialogue session by ID.
func (s *SQLite) GetDialogueSession(ctx context.Context, id int64) (DialogueSession, error) {
	var out DialogueSession
	err := s.db.GetContext(ctx, &out, `SELECT * FROM dialogue_sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return DialogueSession{}, fmt.Errorf("store: dialogue session %d: %w", id, srs.ErrNotFound)
	}
	if err != nil {
		return DialogueSession{}, fmt.Errorf("store: get dialogue session %d: %w", id, err)
	}
	return out, nil
}

// ListDialogueSessions returns dialogue sessions, newest first, optionally
// filtered by topic.
func (s *SQLite) ListDialogueSessions(ctx context.Context, topic string) ([]DialogueSession, error) {
	var out []DialogueSession
	var err error
	if topic == "" {
		err = s.db.SelectContext(ctx, &out, `SELECT * FROM dialogue_sessions ORDER BY created_at DESC, id DESC`)
	} else {
		err = s.db.SelectContext(ctx, &out, `SELECT * FROM dialogue_sessions WHERE topic = ? ORDER BY created_at DESC, id DESC`, topic)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list dialogue sessions: %w", err)
	}
	return out, nil
}

// GetDialogueLines returns a session's lines in playback order.
func (s *SQLite) GetDialogueLines(ctx context.Context, sessionID int64) ([]DialogueLine, error) {
	var out []DialogueLine
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM dialogue_lines WHERE session_id = ? ORDER BY ord ASC`, sessionID); err != nil {
		return nil, fmt.Errorf("store: get dialogue lines: %w", err)
	}
	return out, nil
}

// DeleteDialogueSession removes a session together with its lines.
func (s *SQLite) DeleteDialogueSession(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dialogue_lines WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete dialogue lines: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM dialogue_sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete dialogue session: %w", err)
		}
		return nil
	})
}

// ---- progress (srs.ProgressStore) ----

// GetProgress returns the progress record with the given ID.
func (s *SQLite) GetProgress(ctx context.Context, id int64) (srs.Progress, error) {
	var out srs.Progress
	err := s.db.GetContext(ctx, &out, `SELECT * FROM card_progress WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return srs.Progress{}, fmt.Errorf("store: progress %d: %w", id, srs.ErrNotFound)
	}
	if err != nil {
		return srs.Progress{}, fmt.Errorf("store: get progress %d: %w", id, err)
	}
	return out, nil
}

// UpdateProgress persists the scheduling fields of p.
func (s *SQLite) UpdateProgress(ctx context.Context, p srs.Progress) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE card_progress SET interval = ?, repetitions = ?, ease_factor = ?, next_review = ? WHERE id = ?`,
		p.Interval, p.Repetitions, p.EaseFactor, p.NextReview.UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("store: update progress %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store: progress %d: %w", p.ID, srs.ErrNotFound)
	}
	return nil
}

// ListProgress returns all progress records in the filtered partition. A
// topic filter joins through the owning item table.
func (s *SQLite) ListProgress(ctx context.Context, f srs.Filter) ([]srs.Progress, error) {
	var (
		query string
		args  []any
	)
	switch {
	case f.Topic == "":
		query = `SELECT * FROM card_progress WHERE item_type = ? ORDER BY next_review ASC, id ASC`
		args = []any{string(f.ItemType)}
	case f.ItemType == srs.ItemSentence:
		query = `SELECT p.* FROM card_progress p
			JOIN sentences s ON s.id = p.item_id
			WHERE p.item_type = ? AND s.topic = ?
			ORDER BY p.next_review ASC, p.id ASC`
		args = []any{string(f.ItemType), f.Topic}
	default:
		query = `SELECT p.* FROM card_progress p
			JOIN vocabulary v ON v.id = p.item_id
			WHERE p.item_type = ? AND v.topic = ?
			ORDER BY p.next_review ASC, p.id ASC`
		args = []any{string(f.ItemType), f.Topic}
	}

	var out []srs.Progress
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("store: list progress: %w", err)
	}
	return out, nil
}

// ---- topics ----

// Topics returns the distinct non-empty topics across sentences, vocabulary,
// and dialogue sessions, sorted.
func (s *SQLite) Topics(ctx context.Context) ([]string, error) {
	var out []string
	query := `
		SELECT topic FROM sentences WHERE topic != ''
		UNION SELECT topic FROM vocabulary WHERE topic != ''
		UNION SELECT topic FROM dialogue_sessions WHERE topic != ''
		ORDER BY topic`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("store: topics: %w", err)
	}
	return out, nil
}

// ---- backup ----

// ExportAll returns a snapshot of every table for backup.
func (s *SQLite) ExportAll(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := s.db.SelectContext(ctx, &snap.Sentences, `SELECT * FROM sentences ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("store: export sentences: %w", err)
	}
	if err := s.db.SelectContext(ctx, &snap.Vocabulary, `SELECT * FROM vocabulary ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("store: export vocabulary: %w", err)
	}
	if err := s.db.SelectContext(ctx, &snap.DialogueSessions, `SELECT * FROM dialogue_sessions ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("store: export dialogue sessions: %w", err)
	}
	if err := s.db.SelectContext(ctx, &snap.DialogueLines, `SELECT * FROM dialogue_lines ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("store: export dialogue lines: %w", err)
	}
	if err := s.db.SelectContext(ctx, &snap.CardProgress, `SELECT * FROM card_progress ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("store: export progress: %w", err)
	}
	return snap, nil
}

// ImportAll restores a snapshot, replacing rows that share an ID. The whole
// restore runs in one transaction.
func (s *SQLite) ImportAll(ctx context.Context, snap Snapshot) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, it := range snap.Sentences {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO sentences (id, original, polished, reason, topic, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
				it.ID, it.Original, it.Polished, it.Reason, it.Topic, it.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("import sentence %d: %w", it.ID, err)
			}
		}
		for _, it := range snap.Vocabulary {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO vocabulary (id, phrase, pronunciation, meaning, usage, topic, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.ID, it.Phrase, it.Pronunciation, it.Meaning, it.Usage, it.Topic, it.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("import vocabulary %d: %w", it.ID, err)
			}
		}
		for _, it := range snap.DialogueSessions {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO dialogue_sessions (id, title, line_count, topic, created_at) VALUES (?, ?, ?, ?, ?)`,
				it.ID, it.Title, it.LineCount, it.Topic, it.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("import dialogue session %d: %w", it.ID, err)
			}
		}
		for _, it := range snap.DialogueLines {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO dialogue_lines (id, session_id, speaker, content, translation, ord, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.ID, it.SessionID, it.Speaker, it.Content, it.Translation, it.Order, it.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("import dialogue line %d: %w", it.ID, err)
			}
		}
		for _, p := range snap.CardProgress {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO card_progress (id, item_type, item_id, interval, repetitions, ease_factor, next_review) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, string(p.ItemType), p.ItemID, p.Interval, p.Repetitions, p.EaseFactor, p.NextReview.UTC()); err != nil {
				return fmt.Errorf("import progress %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// ---- helpers ----

func insertProgress(ctx context.Context, tx *sqlx.Tx, p srs.Progress) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO card_progress (item_type, item_id, interval, repetitions, ease_factor, next_review) VALUES (?, ?, ?, ?, ?, ?)`,
		string(p.ItemType), p.ItemID, p.Interval, p.Repetitions, p.EaseFactor, p.NextReview.UTC()); err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("store: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("store: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
