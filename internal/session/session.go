// Package session drives one study session: it pulls due cards from the
// store once at start, works through them as an in-memory queue, and writes
// graded results back through the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/conorfennell/wortschatz/internal/domain"
	"github.com/conorfennell/wortschatz/internal/scheduler"
)

// Sentinel errors. Check with errors.Is.
var (
	ErrInvalidState = errors.New("session: operation not valid in current state")
	ErrNotRevealed  = errors.New("session: current card has not been flipped")
)

// Clock supplies the current time. Injected so tests can pin it.
type Clock func() time.Time

// Config configures a Session. Store and Engine are required; a nil Clock
// defaults to time.Now.
type Config struct {
	Store  domain.CardStore
	Engine *scheduler.Engine
	Clock  Clock
}

// ReviewLogger is an optional store capability: stores that implement it
// receive a log entry for every grading event.
type ReviewLogger interface {
	InsertReviewLog(ctx context.Context, log domain.ReviewLog) error
}

// Session owns the transient queue for one sitting. The store remains the
// source of truth for mastery state; discarding a session loses only the
// remaining queue order, never a persisted grade.
//
// A Session is single-owner: it must not be mutated from multiple
// goroutines.
type Session struct {
	store  domain.CardStore
	engine *scheduler.Engine
	clock  Clock

	state    State
	userID   string
	language string
	queue    []domain.Card
	revealed bool
	total    int
	graded   int
}

// New creates a Session in the Initial state.
func New(cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: Config.Store is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("session: Config.Engine is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		store:  cfg.Store,
		engine: cfg.Engine,
		clock:  clock,
		state:  Initial,
	}, nil
}

// Start loads the user's due cards and builds the queue, oldest due first
// with ties kept in store order. It may be called only once per session.
func (s *Session) Start(ctx context.Context, userID, language string) error {
	if s.state != Initial {
		return fmt.Errorf("%w: Start in state %v", ErrInvalidState, s.state)
	}
	s.state = Loading

	cards, err := s.store.DueCards(ctx, userID, language, s.clock())
	if err != nil {
		s.state = Initial
		return fmt.Errorf("session: loading due cards: %w", err)
	}

	// The store orders by due date already; re-sort stably so the queue
	// contract does not depend on the store implementation.
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Mastery.NextDueAt.Before(cards[j].Mastery.NextDueAt)
	})

	s.userID = userID
	s.language = language
	s.queue = cards
	s.total = len(cards)
	s.graded = 0
	s.revealed = false
	if len(cards) == 0 {
		s.state = Empty
	} else {
		s.state = Active
	}
	return nil
}

// Flip reveals the current card's answer. It has no effect on scheduling
// and is idempotent: flipping an already revealed card changes nothing.
func (s *Session) Flip() error {
	if s.state != Active {
		return fmt.Errorf("%w: Flip in state %v", ErrInvalidState, s.state)
	}
	s.revealed = true
	return nil
}

// Grade applies the rating to the current card, persists the new mastery
// state, and advances the queue. The card must be revealed first: grading
// an unflipped card is a UI contract violation and returns ErrNotRevealed.
//
// The queue advances only after the store write succeeds. On a write
// failure the session is unchanged and Grade can be retried safely; the
// engine is deterministic, so a replayed grade produces the same result.
func (s *Session) Grade(ctx context.Context, rating scheduler.Rating) (scheduler.Result, error) {
	if s.state != Active {
		return scheduler.Result{}, fmt.Errorf("%w: Grade in state %v", ErrInvalidState, s.state)
	}
	if !s.revealed {
		return scheduler.Result{}, ErrNotRevealed
	}

	card := s.queue[0]
	now := s.clock()

	res, err := s.engine.ComputeNext(card.Mastery.Level, rating, now)
	if err != nil {
		return scheduler.Result{}, err
	}

	updated := domain.MasteryState{
		Level:          res.NewLevel,
		LastReviewedAt: &now,
		NextDueAt:      res.NextDueAt,
		ReviewCount:    card.Mastery.ReviewCount + 1,
	}
	if err := s.store.UpdateMastery(ctx, card.ID, updated); err != nil {
		return scheduler.Result{}, fmt.Errorf("session: persisting grade for card %s: %w", card.ID, err)
	}

	if logger, ok := s.store.(ReviewLogger); ok {
		logEntry := domain.ReviewLog{
			CardID:      card.ID,
			Rating:      rating.String(),
			LevelBefore: card.Mastery.Level,
			LevelAfter:  res.NewLevel,
			ReviewedAt:  now,
		}
		if err := logger.InsertReviewLog(ctx, logEntry); err != nil {
			// The mastery write already succeeded; the history entry is
			// advisory and must not block the session.
			slog.Warn("failed to record review log", "card", card.ID, "error", err)
		}
	}

	s.queue = s.queue[1:]
	if rating == scheduler.Again && s.engine.Policy().RequeueOnFail {
		card.Mastery = updated
		s.queue = append(s.queue, card)
	}
	s.graded++
	s.revealed = false
	if len(s.queue) == 0 {
		s.state = Empty
	}
	return res, nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Current returns the card at the head of the queue, if any.
func (s *Session) Current() (domain.Card, bool) {
	if s.state != Active {
		return domain.Card{}, false
	}
	return s.queue[0], true
}

// Snapshot is the session view exposed to the UI layer.
type Snapshot struct {
	State     State
	Card      *domain.Card // nil unless State is Active
	Revealed  bool
	Remaining int
	Total     int
	Graded    int
}

// Snapshot returns the current UI-facing view of the session.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:     s.state,
		Revealed:  s.revealed,
		Remaining: len(s.queue),
		Total:     s.total,
		Graded:    s.graded,
	}
	if s.state == Active {
		card := s.queue[0]
		snap.Card = &card
	}
	return snap
}
