package domain

import (
	"context"
	"time"
)

// MaxLevel is the highest mastery level a card can reach.
const MaxLevel = 5

// MasteryState is the scheduling-relevant state of a card.
type MasteryState struct {
	Level          int        // 0 (unlearned/failed) .. MaxLevel (mastered)
	LastReviewedAt *time.Time // nil until the first grading event
	NextDueAt      time.Time
	ReviewCount    int
}

// Due reports whether the card is eligible for review at the given time.
func (m MasteryState) Due(now time.Time) bool {
	return !m.NextDueAt.After(now)
}

// Card is a single vocabulary entry together with its mastery state.
type Card struct {
	ID                 string
	UserID             string
	Language           string
	Term               string
	Translation        string
	Example            string
	ExampleTranslation string
	Mastery            MasteryState
}

// ReviewLog records one grading event for a card.
type ReviewLog struct {
	CardID      string
	Rating      string
	LevelBefore int
	LevelAfter  int
	ReviewedAt  time.Time
}

// CardStore is the persistence boundary the scheduling core depends on.
// Implementations must be swappable: the production store is SQLite, tests
// use an in-memory fake.
type CardStore interface {
	// DueCards returns all cards for the user/language whose NextDueAt is at
	// or before now, ordered by NextDueAt ascending (oldest due first).
	DueCards(ctx context.Context, userID, language string, now time.Time) ([]Card, error)

	// RandomCards returns up to n cards for the user/language in random order.
	RandomCards(ctx context.Context, userID, language string, n int) ([]Card, error)

	// UpdateMastery persists a card's new mastery state. The store is the only
	// writer of durable scheduling state.
	UpdateMastery(ctx context.Context, cardID string, state MasteryState) error

	// Count returns the number of cards stored for the user/language.
	Count(ctx context.Context, userID, language string) (int, error)
}
