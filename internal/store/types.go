package store

import (
	"time"

	"github.com/nvail/echodrill/internal/srs"
)

// Sentence is one imported sentence-correction item. Original and Reason are
// empty for natural sentences that carry no correction.
type Sentence struct {
	ID        int64     `db:"id" json:"id"`
	Original  string    `db:"original" json:"original"`
	Polished  string    `db:"polished" json:"polished"`
	Reason    string    `db:"reason" json:"reason"`
	Topic     string    `db:"topic" json:"topic"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Vocabulary is one imported vocabulary item.
type Vocabulary struct {
	ID            int64     `db:"id" json:"id"`
	Phrase        string    `db:"phrase" json:"phrase"`
	Pronunciation string    `db:"pronunciation" json:"pronunciation"`
	Meaning       string    `db:"meaning" json:"meaning"`
	Usage         string    `db:"usage" json:"usage"`
	Topic         string    `db:"topic" json:"topic"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// DialogueSession is one imported dialogue script.
type DialogueSession struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	LineCount int       `db:"line_count" json:"lineCount"`
	Topic     string    `db:"topic" json:"topic"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DialogueLine is one ordered utterance owned by a dialogue session.
// Lines are immutable once created and are deleted with their session.
type DialogueLine struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   int64     `db:"session_id" json:"sessionId"`
	Speaker     string    `db:"speaker" json:"speaker"`
	Content     string    `db:"content" json:"content"`
	Translation string    `db:"translation" json:"translation"`
	Order       int       `db:"ord" json:"order"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Snapshot is a full backup of the learner's data, used by export/import.
type Snapshot struct {
	Sentences        []Sentence        `json:"sentences"`
	Vocabulary       []Vocabulary      `json:"vocabulary"`
	DialogueSessions []DialogueSession `json:"dialogueSessions"`
	DialogueLines    []DialogueLine    `json:"dialogueLines"`
	CardProgress     []srs.Progress    `json:"cardProgress"`
}
