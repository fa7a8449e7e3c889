package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/wortschatz/internal/domain"
)

const day = 24 * time.Hour

// Policy configures the level-transition and interval tables.
// Zero values produce the defaults; see field comments.
type Policy struct {
	AgainDelay     time.Duration // delay after a failed card; zero → 1m
	FirstInterval  time.Duration // interval at level 1; zero → 1 day
	SecondInterval time.Duration // interval at level 2; zero → 6 days
	EaseFactor     float64       // multiplier per level above 2; zero → 2.5
	RequeueOnFail  bool          // Again-rated cards return to the session queue tail
}

// DefaultPolicy returns the canonical SuperMemo-2-style progression:
// 1m / 1d / 6d, then ×2.5 per level rounded to whole days (15/38/94).
func DefaultPolicy() Policy {
	return Policy{
		AgainDelay:     time.Minute,
		FirstInterval:  day,
		SecondInterval: 6 * day,
		EaseFactor:     2.5,
	}
}

// Result is the outcome of one scheduling computation. Produced fresh on
// every call, never mutated.
type Result struct {
	NewLevel  int
	Interval  time.Duration
	NextDueAt time.Time
}

// IntervalDays returns the interval in whole days (0 for sub-day intervals).
func (r Result) IntervalDays() int {
	return int(r.Interval / day)
}

// Engine computes the next mastery state for a card after a grading event.
// It is pure: no I/O, no hidden state, and identical inputs always produce
// identical outputs. Safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine creates an Engine from the given policy. Zero-valued policy
// fields are filled with defaults; out-of-bounds values return an error.
func NewEngine(p Policy) (*Engine, error) {
	if p.AgainDelay == 0 {
		p.AgainDelay = time.Minute
	}
	if p.FirstInterval == 0 {
		p.FirstInterval = day
	}
	if p.SecondInterval == 0 {
		p.SecondInterval = 6 * day
	}
	if p.EaseFactor == 0 {
		p.EaseFactor = 2.5
	}
	if p.AgainDelay < 0 || p.FirstInterval < 0 || p.SecondInterval < 0 {
		return nil, fmt.Errorf("%w: negative interval", ErrInvalidPolicy)
	}
	if p.EaseFactor < 1 {
		return nil, fmt.Errorf("%w: ease factor %v below 1", ErrInvalidPolicy, p.EaseFactor)
	}
	return &Engine{policy: p}, nil
}

// Policy returns the engine's effective policy, defaults filled in.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ComputeNext applies one rating to the current mastery level and returns the
// new level and due time.
//
// Transitions: Again resets to 0, Hard keeps the level, Good moves up one,
// Easy moves up two; the level never leaves [0, MaxLevel]. A level outside
// that range is a caller bug and returns ErrInvalidLevel; an unknown rating
// returns ErrInvalidRating rather than being coerced to a default.
func (e *Engine) ComputeNext(level int, rating Rating, now time.Time) (Result, error) {
	if level < 0 || level > domain.MaxLevel {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if !rating.IsValid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}

	newLevel := level
	switch rating {
	case Again:
		newLevel = 0
	case Hard:
		// unchanged
	case Good:
		newLevel = min(level+1, domain.MaxLevel)
	case Easy:
		newLevel = min(level+2, domain.MaxLevel)
	}

	interval := e.Interval(newLevel)
	return Result{
		NewLevel:  newLevel,
		Interval:  interval,
		NextDueAt: now.Add(interval),
	}, nil
}

// Interval returns the review interval for a card at the given level.
// Levels above 2 are derived from the level-2 interval compounded by the
// ease factor and rounded to whole days, so each level's interval comes from
// the exact geometric value rather than an already-rounded predecessor.
func (e *Engine) Interval(level int) time.Duration {
	switch {
	case level <= 0:
		return e.policy.AgainDelay
	case level == 1:
		return e.policy.FirstInterval
	case level == 2:
		return e.policy.SecondInterval
	default:
		base := e.policy.SecondInterval.Hours() / 24
		days := base * math.Pow(e.policy.EaseFactor, float64(level-2))
		return time.Duration(math.Round(days)) * day
	}
}
