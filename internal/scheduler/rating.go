package scheduler

import (
	"fmt"
	"strings"
)

// Rating is the learner's self-assessment of recall for one card.
type Rating int

const (
	Again Rating = iota + 1 // failed to recall
	Hard                    // recalled with significant effort
	Good                    // recalled correctly
	Easy                    // recalled effortlessly
)

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// IsValid reports whether r is one of the four defined ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// String returns the rating's name, or "Rating(n)" for invalid values.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating converts a rating name ("Again", "Hard", "Good", "Easy",
// case-insensitive) into a Rating. Unknown names return ErrInvalidRating.
func ParseRating(s string) (Rating, error) {
	for r := Again; r <= Easy; r++ {
		if strings.EqualFold(s, ratingNames[r]) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}
