package scheduler

import "errors"

// Sentinel errors. Check with errors.Is.
var (
	ErrInvalidRating = errors.New("scheduler: invalid rating")
	ErrInvalidLevel  = errors.New("scheduler: level out of range")
	ErrInvalidPolicy = errors.New("scheduler: invalid policy")
)
