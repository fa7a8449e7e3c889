package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/wortschatz/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertCard(t *testing.T, db *DB, id string, due time.Time) {
	t.Helper()
	card := domain.Card{
		ID:          id,
		UserID:      "u1",
		Language:    "de",
		Term:        "term-" + id,
		Translation: "translation-" + id,
		Example:     "Beispiel",
	}
	if err := db.InsertCard(context.Background(), card, 0); err != nil {
		t.Fatalf("InsertCard(%s): %v", id, err)
	}
	// InsertCard sets the card due now; move it where the test wants it.
	state := domain.MasteryState{Level: 0, NextDueAt: due}
	if err := db.UpdateMastery(context.Background(), id, state); err != nil {
		t.Fatalf("UpdateMastery(%s): %v", id, err)
	}
}

func TestDueCardsFilterAndOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	insertCard(t, db, "late", t0.Add(-time.Minute))
	insertCard(t, db, "early", t0.Add(-48*time.Hour))
	insertCard(t, db, "mid", t0.Add(-time.Hour))
	insertCard(t, db, "future", t0.Add(time.Hour))

	due, err := db.DueCards(ctx, "u1", "de", t0)
	if err != nil {
		t.Fatalf("DueCards: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("got %d due cards, want 3", len(due))
	}
	wantOrder := []string{"early", "mid", "late"}
	for i, want := range wantOrder {
		if due[i].ID != want {
			t.Errorf("due[%d] = %s, want %s", i, due[i].ID, want)
		}
	}

	// Other user/language sees nothing.
	other, err := db.DueCards(ctx, "u2", "de", t0)
	if err != nil {
		t.Fatalf("DueCards: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d cards for other user, want 0", len(other))
	}
}

func TestUpdateMasteryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	insertCard(t, db, "a", t0)

	reviewed := t0.Add(time.Minute)
	state := domain.MasteryState{
		Level:          3,
		LastReviewedAt: &reviewed,
		NextDueAt:      t0.Add(15 * 24 * time.Hour),
		ReviewCount:    7,
	}
	if err := db.UpdateMastery(ctx, "a", state); err != nil {
		t.Fatalf("UpdateMastery: %v", err)
	}

	card, err := db.FindCard(ctx, "a")
	if err != nil {
		t.Fatalf("FindCard: %v", err)
	}
	if card == nil {
		t.Fatal("FindCard returned nil")
	}
	if card.Mastery.Level != 3 || card.Mastery.ReviewCount != 7 {
		t.Errorf("mastery = %+v, want level 3, count 7", card.Mastery)
	}
	if card.Mastery.LastReviewedAt == nil || !card.Mastery.LastReviewedAt.Equal(reviewed) {
		t.Errorf("last reviewed = %v, want %v", card.Mastery.LastReviewedAt, reviewed)
	}
	if !card.Mastery.NextDueAt.Equal(state.NextDueAt) {
		t.Errorf("next due = %v, want %v", card.Mastery.NextDueAt, state.NextDueAt)
	}
}

func TestUpdateMasteryMissingCard(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateMastery(context.Background(), "nope", domain.MasteryState{NextDueAt: t0})
	if err == nil {
		t.Error("UpdateMastery for a missing card should fail")
	}
}

func TestNewCardIsUnreviewed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	card := domain.Card{ID: "n", UserID: "u1", Language: "de", Term: "neu", Translation: "new"}
	if err := db.InsertCard(ctx, card, 0); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	got, err := db.FindCard(ctx, "n")
	if err != nil {
		t.Fatalf("FindCard: %v", err)
	}
	if got.Mastery.Level != 0 || got.Mastery.ReviewCount != 0 {
		t.Errorf("new card mastery = %+v, want level 0, count 0", got.Mastery)
	}
	if got.Mastery.LastReviewedAt != nil {
		t.Errorf("new card last reviewed = %v, want nil", got.Mastery.LastReviewedAt)
	}
}

func TestCountAndRandom(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		insertCard(t, db, id, t0)
	}

	n, err := db.Count(ctx, "u1", "de")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}

	random, err := db.RandomCards(ctx, "u1", "de", 2)
	if err != nil {
		t.Fatalf("RandomCards: %v", err)
	}
	if len(random) != 2 {
		t.Errorf("RandomCards returned %d cards, want 2", len(random))
	}
}

func TestFindCardByTerm(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	insertCard(t, db, "a", t0)

	card, err := db.FindCardByTerm(ctx, "u1", "de", "term-a")
	if err != nil {
		t.Fatalf("FindCardByTerm: %v", err)
	}
	if card == nil || card.ID != "a" {
		t.Errorf("FindCardByTerm = %+v, want card a", card)
	}

	missing, err := db.FindCardByTerm(ctx, "u1", "de", "unbekannt")
	if err != nil {
		t.Fatalf("FindCardByTerm: %v", err)
	}
	if missing != nil {
		t.Errorf("FindCardByTerm for unknown term = %+v, want nil", missing)
	}
}

func TestReviewLogRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	insertCard(t, db, "a", t0)

	logs := []domain.ReviewLog{
		{CardID: "a", Rating: "Good", LevelBefore: 0, LevelAfter: 1, ReviewedAt: t0},
		{CardID: "a", Rating: "Again", LevelBefore: 1, LevelAfter: 0, ReviewedAt: t0.Add(24 * time.Hour)},
	}
	for _, l := range logs {
		if err := db.InsertReviewLog(ctx, l); err != nil {
			t.Fatalf("InsertReviewLog: %v", err)
		}
	}

	got, err := db.ReviewLogsForCard(ctx, "a")
	if err != nil {
		t.Fatalf("ReviewLogsForCard: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d logs, want 2", len(got))
	}
	if got[0].Rating != "Good" || got[1].Rating != "Again" {
		t.Errorf("log order = %s, %s; want Good, Again", got[0].Rating, got[1].Rating)
	}
	if got[1].LevelAfter != 0 {
		t.Errorf("second log LevelAfter = %d, want 0", got[1].LevelAfter)
	}
}

func TestSources(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertSource(ctx, "/decks/german", "local")
	if err != nil {
		t.Fatalf("InsertSource: %v", err)
	}

	src, err := db.FindSourceByPath(ctx, "/decks/german")
	if err != nil {
		t.Fatalf("FindSourceByPath: %v", err)
	}
	if src == nil || src.ID != id || src.Type != "local" {
		t.Fatalf("FindSourceByPath = %+v, want id %d type local", src, id)
	}
	if src.LastSynced.Valid {
		t.Error("new source should have no last_synced")
	}

	if err := db.UpdateSourceLastSynced(ctx, id); err != nil {
		t.Fatalf("UpdateSourceLastSynced: %v", err)
	}
	src, err = db.FindSourceByPath(ctx, "/decks/german")
	if err != nil {
		t.Fatalf("FindSourceByPath: %v", err)
	}
	if !src.LastSynced.Valid {
		t.Error("last_synced not set after sync")
	}

	// Deleting the source keeps its cards but detaches them.
	card := domain.Card{ID: "c", UserID: "u1", Language: "de", Term: "Wort", Translation: "word"}
	if err := db.InsertCard(ctx, card, id); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	if err := db.DeleteSource(ctx, id); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	sources, err := db.GetAllSources(ctx)
	if err != nil {
		t.Fatalf("GetAllSources: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("got %d sources after delete, want 0", len(sources))
	}
	kept, err := db.FindCard(ctx, "c")
	if err != nil {
		t.Fatalf("FindCard: %v", err)
	}
	if kept == nil {
		t.Error("card deleted along with its source")
	}
}
