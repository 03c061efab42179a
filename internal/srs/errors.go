package srs

import "errors"

var (
	// ErrInvalidRating is returned when a rating value outside the
	// Again..Easy range is applied or decoded.
	ErrInvalidRating = errors.New("srs: invalid rating")

	// ErrInvalidItemType is returned when an item type outside
	// sentence/vocabulary is decoded.
	ErrInvalidItemType = errors.New("srs: invalid item type")

	// ErrNotFound is returned when a progress record does not exist.
	// Progress stores must wrap their own missing-row errors so that
	// errors.Is(err, ErrNotFound) holds.
	ErrNotFound = errors.New("srs: progress not found")
)
