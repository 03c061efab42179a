// Package srs implements the spaced-repetition scheduling core: the card
// progress model, the SM-2 variant rating transition, and the review service
// that applies transitions against a progress store.
//
// The transition itself ([Apply]) is a pure function of (previous progress,
// rating, clock); it performs no I/O. Persistence is the caller's concern.
package srs

import (
	"encoding"
	"fmt"
	"time"
)

// Scheduling constants for the SM-2 variant. These are fixed; the algorithm
// takes no tuning parameters.
const (
	initialEase = 2.5
	minEase     = 1.3
	maxEase     = 3.0
	easeStep    = 0.15
	hardGrowth  = 1.2
	easyBonus   = 1.3
)

// ItemType identifies which collection a learnable item belongs to.
type ItemType string

const (
	ItemSentence   ItemType = "sentence"
	ItemVocabulary ItemType = "vocabulary"
)

// Compile-time interface checks.
var (
	_ encoding.TextMarshaler   = ItemType("")
	_ encoding.TextUnmarshaler = (*ItemType)(nil)
)

// IsValid reports whether t is a recognised item type.
func (t ItemType) IsValid() bool {
	return t == ItemSentence || t == ItemVocabulary
}

// MarshalText implements encoding.TextMarshaler.
func (t ItemType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidItemType, string(t))
	}
	return []byte(t), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ItemType) UnmarshalText(text []byte) error {
	v := ItemType(text)
	if !v.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidItemType, text)
	}
	*t = v
	return nil
}

// Progress is the scheduling state of one learnable item. Exactly one
// Progress record exists per item; it is created together with the item and
// deleted with it.
type Progress struct {
	ID          int64     `db:"id" json:"id"`
	ItemType    ItemType  `db:"item_type" json:"itemType"`
	ItemID      int64     `db:"item_id" json:"itemId"`
	Interval    int       `db:"interval" json:"interval"`    // days until next review
	Repetitions int       `db:"repetitions" json:"repetitions"`
	EaseFactor  float64   `db:"ease_factor" json:"easeFactor"` // clamped to [1.3, 3.0]
	NextReview  time.Time `db:"next_review" json:"nextReview"`
}

// NewProgress returns the initial scheduling state for a freshly imported
// item: interval 0, no repetitions, default ease, due immediately.
func NewProgress(itemType ItemType, itemID int64, now time.Time) Progress {
	return Progress{
		ItemType:    itemType,
		ItemID:      itemID,
		Interval:    0,
		Repetitions: 0,
		EaseFactor:  initialEase,
		NextReview:  now,
	}
}

// Reset returns p restored to the initial scheduling state, keeping its
// identity fields. Used by the restudy operation.
func (p Progress) Reset(now time.Time) Progress {
	p.Interval = 0
	p.Repetitions = 0
	p.EaseFactor = initialEase
	p.NextReview = now
	return p
}

// IsNew reports whether the card has never been successfully reviewed.
func (p Progress) IsNew() bool {
	return p.Repetitions == 0
}

// IsDue reports whether the card is due for review at the given time.
func (p Progress) IsDue(now time.Time) bool {
	return !p.NextReview.After(now)
}

// IsMastered reports whether the card has entered a stable review cycle:
// at least one successful review and an interval of two days or more.
func (p Progress) IsMastered() bool {
	return p.Repetitions >= 1 && p.Interval >= 2
}
