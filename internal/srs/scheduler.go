package srs

import (
	"fmt"
	"math"
	"time"
)

// Apply computes the next scheduling state for a card given the learner's
// rating. It is a pure function: p is not modified, no clock is read, and the
// same inputs always produce the same output.
//
// The transition table:
//
//	Again: repetitions and interval reset to 0; ease unchanged.
//	Hard:  interval 1 on a fresh card, else ceil(interval*1.2);
//	       ease decreases by 0.15 (floor 1.3).
//	Good:  interval 1 then 3 for the first two reviews, else
//	       ceil(interval*ease); ease unchanged.
//	Easy:  interval 2 then 4 for the first two reviews, else
//	       ceil(interval*ease*1.3); ease increases by 0.15 (cap 3.0).
//
// NextReview is now plus the new interval in days; an interval of 0 leaves
// the card due immediately.
func Apply(p Progress, r Rating, now time.Time) (Progress, error) {
	if !r.IsValid() {
		return Progress{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}

	switch r {
	case Again:
		p.Repetitions = 0
		p.Interval = 0

	case Hard:
		if p.Repetitions == 0 {
			p.Interval = 1
		} else {
			p.Interval = ceilDays(float64(p.Interval) * hardGrowth)
		}
		p.EaseFactor = math.Max(minEase, p.EaseFactor-easeStep)
		p.Repetitions++

	case Good:
		switch p.Repetitions {
		case 0:
			p.Interval = 1
		case 1:
			p.Interval = 3
		default:
			p.Interval = ceilDays(float64(p.Interval) * p.EaseFactor)
		}
		p.Repetitions++

	case Easy:
		switch p.Repetitions {
		case 0:
			p.Interval = 2
		case 1:
			p.Interval = 4
		default:
			p.Interval = ceilDays(float64(p.Interval) * p.EaseFactor * easyBonus)
		}
		p.EaseFactor = math.Min(maxEase, p.EaseFactor+easeStep)
		p.Repetitions++
	}

	p.NextReview = now.AddDate(0, 0, p.Interval)
	return p, nil
}

func ceilDays(days float64) int {
	return int(math.Ceil(days))
}
