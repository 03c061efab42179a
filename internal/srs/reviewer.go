package srs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ProgressStore is the persistence contract the review service depends on.
// Implementations must return an error satisfying errors.Is(err, ErrNotFound)
// when a progress record does not exist.
type ProgressStore interface {
	// GetProgress returns the progress record with the given ID.
	GetProgress(ctx context.Context, id int64) (Progress, error)

	// UpdateProgress persists the scheduling fields of p, matched by p.ID.
	UpdateProgress(ctx context.Context, p Progress) error

	// ListProgress returns all progress records matching the filter.
	ListProgress(ctx context.Context, f Filter) ([]Progress, error)
}

// Filter selects a partition of the progress set: an item-type collection,
// optionally narrowed to a topic the owning items belong to.
type Filter struct {
	ItemType ItemType
	Topic    string // empty means all topics
}

// Stats summarises a progress partition. All classifications are derived
// from the stored scheduling fields; nothing here is persisted.
type Stats struct {
	Total    int `json:"total"`
	Due      int `json:"due"`
	New      int `json:"new"`
	Mastered int `json:"mastered"`
}

// RestudyResult reports the outcome of a bulk reset. The reset is applied
// record by record; a failure on one record does not stop the rest, so both
// counters can be non-zero at once.
type RestudyResult struct {
	Reset  int `json:"reset"`
	Failed int `json:"failed"`
}

// RateOutcome is the per-record result of a batch rating call.
type RateOutcome struct {
	ProgressID int64     `json:"progressId"`
	Progress   *Progress `json:"progress,omitempty"`
	Err        error     `json:"-"`
}

// Reviewer applies rating transitions against a progress store. A zero
// Reviewer is not usable; construct with NewReviewer.
//
// All methods are safe for concurrent use as long as the underlying store is.
type Reviewer struct {
	store ProgressStore
	now   func() time.Time
}

// ReviewerOption is a functional option for NewReviewer.
type ReviewerOption func(*Reviewer)

// WithClock replaces the wall clock. Intended for tests.
func WithClock(now func() time.Time) ReviewerOption {
	return func(r *Reviewer) { r.now = now }
}

// NewReviewer creates a review service backed by the given store.
func NewReviewer(store ProgressStore, opts ...ReviewerOption) *Reviewer {
	r := &Reviewer{store: store, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Rate applies rating to the progress record with the given ID and persists
// the result. A missing record is reported as ErrNotFound; it is the
// caller's choice whether that is fatal.
func (r *Reviewer) Rate(ctx context.Context, progressID int64, rating Rating) (Progress, error) {
	p, err := r.store.GetProgress(ctx, progressID)
	if err != nil {
		return Progress{}, fmt.Errorf("srs: rate %d: %w", progressID, err)
	}

	next, err := Apply(p, rating, r.now())
	if err != nil {
		return Progress{}, fmt.Errorf("srs: rate %d: %w", progressID, err)
	}

	if err := r.store.UpdateProgress(ctx, next); err != nil {
		return Progress{}, fmt.Errorf("srs: rate %d: persist: %w", progressID, err)
	}
	return next, nil
}

// RateAll applies one rating per progress ID. Each record's failure is
// independent: missing records are logged and skipped, and the batch always
// runs to completion. The returned slice has one outcome per input ID, in
// order.
func (r *Reviewer) RateAll(ctx context.Context, ratings map[int64]Rating, order []int64) []RateOutcome {
	outcomes := make([]RateOutcome, 0, len(order))
	for _, id := range order {
		p, err := r.Rate(ctx, id, ratings[id])
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				slog.Warn("skipping rating for missing progress record", "progress_id", id)
			}
			outcomes = append(outcomes, RateOutcome{ProgressID: id, Err: err})
			continue
		}
		outcomes = append(outcomes, RateOutcome{ProgressID: id, Progress: &p})
	}
	return outcomes
}

// Restudy resets every progress record in the filtered partition to the
// initial scheduling state. Each record is reset atomically on its own; a
// partial run leaves some records reset and others untouched, and the result
// reports both counts so the caller can surface failures.
func (r *Reviewer) Restudy(ctx context.Context, f Filter) (RestudyResult, error) {
	records, err := r.store.ListProgress(ctx, f)
	if err != nil {
		return RestudyResult{}, fmt.Errorf("srs: restudy: list: %w", err)
	}

	now := r.now()
	var res RestudyResult
	for _, p := range records {
		if err := r.store.UpdateProgress(ctx, p.Reset(now)); err != nil {
			slog.Warn("restudy reset failed", "progress_id", p.ID, "err", err)
			res.Failed++
			continue
		}
		res.Reset++
	}
	return res, nil
}

// Due returns the progress records in the filtered partition that are due
// for review now.
func (r *Reviewer) Due(ctx context.Context, f Filter) ([]Progress, error) {
	records, err := r.store.ListProgress(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("srs: due: %w", err)
	}

	now := r.now()
	due := make([]Progress, 0, len(records))
	for _, p := range records {
		if p.IsDue(now) {
			due = append(due, p)
		}
	}
	return due, nil
}

// Stats classifies the filtered partition into due/new/mastered counts.
func (r *Reviewer) Stats(ctx context.Context, f Filter) (Stats, error) {
	records, err := r.store.ListProgress(ctx, f)
	if err != nil {
		return Stats{}, fmt.Errorf("srs: stats: %w", err)
	}

	now := r.now()
	s := Stats{Total: len(records)}
	for _, p := range records {
		if p.IsDue(now) {
			s.Due++
		}
		if p.IsNew() {
			s.New++
		}
		if p.IsMastered() {
			s.Mastered++
		}
	}
	return s, nil
}
